package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/familyscout/familyscout/internal/api/anthropic"
	"github.com/familyscout/familyscout/internal/domain"
	"github.com/familyscout/familyscout/internal/retry"
)

type fakeClient struct {
	createFn func(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error)
	streamFn func(ctx context.Context, req *anthropic.MessagesRequest) (<-chan anthropic.StreamEventResult, error)
	calls    int
}

func (f *fakeClient) CreateMessage(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
	f.calls++
	return f.createFn(ctx, req)
}

func (f *fakeClient) StreamMessage(ctx context.Context, req *anthropic.MessagesRequest) (<-chan anthropic.StreamEventResult, error) {
	f.calls++
	return f.streamFn(ctx, req)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Streaming = false
	cfg.Retry = retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return cfg
}

func testCriteria() domain.SearchCriteria {
	return domain.SearchCriteria{
		City:         "Seattle, WA",
		KidsAges:     "5, 8",
		Availability: "Saturday afternoon",
		MaxDistance:  "20",
	}
}

func activitiesJSON(n int) string {
	records := make([]string, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, fmt.Sprintf(`{
			"name": "Activity %d",
			"emoji": "🎡",
			"website": "https://example.com/%d",
			"address": "%d Main St",
			"description": "Fun for kids."
		}`, i+1, i+1, i+1))
	}
	return "[" + strings.Join(records, ",") + "]"
}

func textResponse(text string) *anthropic.MessagesResponse {
	return &anthropic.MessagesResponse{
		StopReason: "end_turn",
		Content:    []anthropic.ResponseContent{{Type: "text", Text: text}},
		Usage:      anthropic.Usage{InputTokens: 100, OutputTokens: 200},
	}
}

func TestSearchActivities_ParsesFullBatch(t *testing.T) {
	client := &fakeClient{
		createFn: func(_ context.Context, _ *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
			return textResponse(activitiesJSON(20)), nil
		},
	}
	svc := New(client, testConfig(), testLogger())

	activities, err := svc.SearchActivities(context.Background(), testCriteria())
	if err != nil {
		t.Fatalf("SearchActivities() error = %v", err)
	}
	if len(activities) != 20 {
		t.Fatalf("len = %d, want 20", len(activities))
	}
	// Response order is preserved
	if activities[0].Name != "Activity 1" || activities[19].Name != "Activity 20" {
		t.Errorf("order not preserved: first=%q last=%q", activities[0].Name, activities[19].Name)
	}
}

func TestSearchActivities_BuildsExpectedRequest(t *testing.T) {
	var captured *anthropic.MessagesRequest
	client := &fakeClient{
		createFn: func(_ context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
			captured = req
			return textResponse(activitiesJSON(1)), nil
		},
	}
	svc := New(client, testConfig(), testLogger())

	if _, err := svc.SearchActivities(context.Background(), testCriteria()); err != nil {
		t.Fatalf("SearchActivities() error = %v", err)
	}

	if captured.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("model = %q", captured.Model)
	}
	if len(captured.System) != 1 || captured.System[0].CacheControl == nil ||
		captured.System[0].CacheControl.Type != "ephemeral" {
		t.Error("system prompt is not marked cacheable")
	}
	if len(captured.Tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(captured.Tools))
	}
	tool := captured.Tools[0]
	if tool.Type != "web_search_20250305" || tool.Name != "web_search" || tool.MaxUses != 5 {
		t.Errorf("unexpected web search tool: %+v", tool)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" {
		t.Error("expected a single user message")
	}
}

func TestSearchActivities_IgnoresNonTextBlocks(t *testing.T) {
	client := &fakeClient{
		createFn: func(_ context.Context, _ *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
			return &anthropic.MessagesResponse{
				Content: []anthropic.ResponseContent{
					{Type: "tool_use", Name: "web_search"},
					{Type: "text", Text: "Here are the results:\n" + activitiesJSON(2)},
				},
			}, nil
		},
	}
	svc := New(client, testConfig(), testLogger())

	activities, err := svc.SearchActivities(context.Background(), testCriteria())
	if err != nil {
		t.Fatalf("SearchActivities() error = %v", err)
	}
	if len(activities) != 2 {
		t.Errorf("len = %d, want 2", len(activities))
	}
}

func TestSearchActivities_NoTextContent(t *testing.T) {
	client := &fakeClient{
		createFn: func(_ context.Context, _ *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
			return &anthropic.MessagesResponse{
				Content: []anthropic.ResponseContent{{Type: "tool_use", Name: "web_search"}},
			}, nil
		},
	}
	svc := New(client, testConfig(), testLogger())

	_, err := svc.SearchActivities(context.Background(), testCriteria())
	if !errors.Is(err, domain.ErrNoTextContent) {
		t.Fatalf("error = %v, want ErrNoTextContent", err)
	}
}

func TestSearchActivities_NoJSONFound(t *testing.T) {
	client := &fakeClient{
		createFn: func(_ context.Context, _ *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
			return textResponse("I could not find any activities matching your criteria."), nil
		},
	}
	svc := New(client, testConfig(), testLogger())

	_, err := svc.SearchActivities(context.Background(), testCriteria())
	if !errors.Is(err, domain.ErrNoJSONFound) {
		t.Fatalf("error = %v, want ErrNoJSONFound", err)
	}
}

func TestSearchActivities_MalformedJSON(t *testing.T) {
	client := &fakeClient{
		createFn: func(_ context.Context, _ *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
			return textResponse(`[{"name": "Zoo", "emoji":]`), nil
		},
	}
	svc := New(client, testConfig(), testLogger())

	_, err := svc.SearchActivities(context.Background(), testCriteria())
	var malformed *domain.MalformedJSONError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want MalformedJSONError", err)
	}
}

func TestSearchActivities_EmptyArray(t *testing.T) {
	client := &fakeClient{
		createFn: func(_ context.Context, _ *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
			return textResponse("[]"), nil
		},
	}
	svc := New(client, testConfig(), testLogger())

	_, err := svc.SearchActivities(context.Background(), testCriteria())
	if !errors.Is(err, domain.ErrEmptyActivities) {
		t.Fatalf("error = %v, want ErrEmptyActivities", err)
	}
}

func TestSearchActivities_InvalidRecordNamesIndex(t *testing.T) {
	var records []map[string]string
	if err := json.Unmarshal([]byte(activitiesJSON(5)), &records); err != nil {
		t.Fatal(err)
	}
	delete(records[2], "description")
	body, _ := json.Marshal(records)

	client := &fakeClient{
		createFn: func(_ context.Context, _ *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
			return textResponse(string(body)), nil
		},
	}
	svc := New(client, testConfig(), testLogger())

	_, err := svc.SearchActivities(context.Background(), testCriteria())
	var invalid *domain.InvalidActivityError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidActivityError", err)
	}
	if invalid.Index != 2 || invalid.Field != "description" {
		t.Errorf("InvalidActivityError = %+v, want index 2, field description", invalid)
	}
}

func TestSearchActivities_RetriesRateLimit(t *testing.T) {
	client := &fakeClient{}
	client.createFn = func(_ context.Context, _ *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
		if client.calls <= 2 {
			return nil, &anthropic.APIError{StatusCode: 429, Type: "rate_limit_error", Message: "slow down"}
		}
		return textResponse(activitiesJSON(1)), nil
	}
	svc := New(client, testConfig(), testLogger())

	activities, err := svc.SearchActivities(context.Background(), testCriteria())
	if err != nil {
		t.Fatalf("SearchActivities() error = %v", err)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3", client.calls)
	}
	if len(activities) != 1 {
		t.Errorf("len = %d, want 1", len(activities))
	}
}

func TestSearchActivities_NonRateLimitErrorNotRetried(t *testing.T) {
	upstream := &anthropic.APIError{StatusCode: 500, Type: "api_error", Message: "internal"}
	client := &fakeClient{
		createFn: func(_ context.Context, _ *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
			return nil, upstream
		},
	}
	svc := New(client, testConfig(), testLogger())

	_, err := svc.SearchActivities(context.Background(), testCriteria())
	var apiErr *anthropic.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
		t.Fatalf("error = %v, want the upstream 500 unchanged", err)
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1", client.calls)
	}
}

func TestSearchActivities_StreamingAccumulatesInOrder(t *testing.T) {
	body := activitiesJSON(2)
	half := len(body) / 2

	events := []anthropic.StreamEventResult{
		sse("message_start", `{"type":"message_start","message":{"id":"msg_1","role":"assistant","model":"m","usage":{"input_tokens":50,"output_tokens":0}}}`),
		sse("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		sse("content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, body[:half])),
		sse("content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, body[half:])),
		sse("content_block_stop", `{"type":"content_block_stop","index":0}`),
		sse("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":300}}`),
		sse("message_stop", `{"type":"message_stop"}`),
	}

	client := &fakeClient{
		streamFn: func(_ context.Context, _ *anthropic.MessagesRequest) (<-chan anthropic.StreamEventResult, error) {
			out := make(chan anthropic.StreamEventResult)
			go func() {
				defer close(out)
				for _, ev := range events {
					out <- ev
				}
			}()
			return out, nil
		},
	}

	cfg := testConfig()
	cfg.Streaming = true
	svc := New(client, cfg, testLogger())

	activities, err := svc.SearchActivities(context.Background(), testCriteria())
	if err != nil {
		t.Fatalf("SearchActivities() error = %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("len = %d, want 2", len(activities))
	}
	if activities[0].Name != "Activity 1" || activities[1].Name != "Activity 2" {
		t.Error("streamed chunks were not accumulated in arrival order")
	}
}

func TestSearchActivities_StreamError(t *testing.T) {
	client := &fakeClient{
		streamFn: func(_ context.Context, _ *anthropic.MessagesRequest) (<-chan anthropic.StreamEventResult, error) {
			out := make(chan anthropic.StreamEventResult, 1)
			out <- anthropic.StreamEventResult{Err: errors.New("connection reset")}
			close(out)
			return out, nil
		},
	}

	cfg := testConfig()
	cfg.Streaming = true
	svc := New(client, cfg, testLogger())

	if _, err := svc.SearchActivities(context.Background(), testCriteria()); err == nil {
		t.Fatal("expected stream error to propagate")
	}
}

func sse(eventType, data string) anthropic.StreamEventResult {
	return anthropic.StreamEventResult{EventType: eventType, Data: json.RawMessage(data)}
}
