// Package search orchestrates one activity search against the model: prompt
// rendering, the retried remote call with a web search tool grant, stream
// accumulation, and defensive extraction of the activity records from the
// model's free-form text output.
package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/familyscout/familyscout/internal/api/anthropic"
	"github.com/familyscout/familyscout/internal/domain"
	"github.com/familyscout/familyscout/internal/prompt"
	"github.com/familyscout/familyscout/internal/retry"
	"github.com/familyscout/familyscout/internal/tokens"
)

// Client is the outbound model capability: given prompts and a tool grant,
// return a message with content blocks, usage metadata, and a stop reason.
type Client interface {
	CreateMessage(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error)
	StreamMessage(ctx context.Context, req *anthropic.MessagesRequest) (<-chan anthropic.StreamEventResult, error)
}

// Config tunes the orchestrated call.
type Config struct {
	Model            string
	MaxTokens        int
	WebSearchMaxUses int
	Streaming        bool
	Retry            retry.Config
}

// DefaultConfig returns the production call configuration.
func DefaultConfig() Config {
	return Config{
		Model:            "claude-sonnet-4-5-20250929",
		MaxTokens:        12000,
		WebSearchMaxUses: 5,
		Streaming:        true,
		Retry:            retry.DefaultConfig(),
	}
}

// Service performs activity searches. It holds no per-request state; caching
// is the caller's responsibility.
type Service struct {
	client    Client
	cfg       Config
	retrier   *retry.Controller
	estimator *tokens.Estimator
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the time source used for the prompt date context.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithEstimator enables prompt token budget logging.
func WithEstimator(e *tokens.Estimator) Option {
	return func(s *Service) {
		s.estimator = e
	}
}

// New creates a search Service.
func New(client Client, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		client:  client,
		cfg:     cfg,
		retrier: retry.New(cfg.Retry, logger),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchActivities runs one orchestrated search and returns the validated
// activity records in model order. It may suspend for the duration of the
// remote call including retries; rate limiting is retried internally, all
// other failures propagate unchanged.
func (s *Service) SearchActivities(ctx context.Context, criteria domain.SearchCriteria) ([]domain.RawActivity, error) {
	dc := prompt.NewDateContext(s.now())
	prompts := prompt.Build(criteria, dc)

	s.logger.Info("searching activities",
		slog.String("city", criteria.City),
		slog.String("season", dc.Season),
	)
	s.logPromptBudget(prompts)

	req := &anthropic.MessagesRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		// cache_control marks the system prompt as cacheable across requests;
		// reads cost a fraction of regular input tokens.
		System: []anthropic.SystemBlock{{
			Type:         "text",
			Text:         prompts.System,
			CacheControl: &anthropic.CacheControl{Type: "ephemeral"},
		}},
		Tools: []anthropic.Tool{
			anthropic.WebSearchTool(s.cfg.WebSearchMaxUses),
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: prompts.User},
		},
	}

	resp, err := retry.Do(ctx, s.retrier, classifyRateLimit, func(ctx context.Context) (*anthropic.MessagesResponse, error) {
		if s.cfg.Streaming {
			stream, err := s.client.StreamMessage(ctx, req)
			if err != nil {
				return nil, err
			}
			return accumulate(stream)
		}
		return s.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.logUsage(resp)

	return extractActivities(resp.Content)
}

// classifyRateLimit is the retry classifier: only HTTP 429 from the provider
// is retryable.
func classifyRateLimit(err error) (bool, time.Duration) {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) && apiErr.RateLimited() {
		return true, apiErr.RetryAfter
	}
	return false, 0
}

func (s *Service) logPromptBudget(p prompt.Prompts) {
	if s.estimator == nil {
		return
	}
	systemTokens, err := s.estimator.Count(p.System)
	if err != nil {
		s.logger.Debug("token estimate unavailable", slog.String("error", err.Error()))
		return
	}
	userTokens, _ := s.estimator.Count(p.User)
	s.logger.Debug("estimated prompt budget",
		slog.Int("system_tokens", systemTokens),
		slog.Int("user_tokens", userTokens),
	)
}

func (s *Service) logUsage(resp *anthropic.MessagesResponse) {
	attrs := []slog.Attr{
		slog.String("stop_reason", resp.StopReason),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
	}
	if resp.Usage.CacheReadInputTokens > 0 {
		attrs = append(attrs, slog.Int("cache_read_input_tokens", resp.Usage.CacheReadInputTokens))
	}
	if resp.Usage.CacheCreationInputTokens > 0 {
		attrs = append(attrs, slog.Int("cache_creation_input_tokens", resp.Usage.CacheCreationInputTokens))
	}
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "model response received", attrs...)
}
