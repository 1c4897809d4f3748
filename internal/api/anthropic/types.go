// Package anthropic is a minimal HTTP client for the Anthropic Messages API,
// covering the surface the search service needs: single-shot and streamed
// message creation, the server-side web search tool, and ephemeral prompt
// caching of the system prompt.
package anthropic

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessagesRequest represents a Messages API request.
type MessagesRequest struct {
	Model     string         `json:"model"`
	Messages  []Message      `json:"messages"`
	MaxTokens int            `json:"max_tokens"`
	System    []SystemBlock  `json:"system,omitempty"`
	Stream    bool           `json:"stream,omitempty"`
	Tools     []Tool         `json:"tools,omitempty"`
}

// Message is a single conversation turn. Content is always plain text here;
// the API accepts the string shorthand.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemBlock is one block of the system prompt. Attaching CacheControl marks
// the end of cacheable content; cache reads are billed at a fraction of
// regular input tokens.
type SystemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// CacheControl configures prompt caching for a system block.
type CacheControl struct {
	Type string `json:"type"` // "ephemeral"
}

// Tool describes a tool grant. Only server-side tools are used here; the
// web search tool has a fixed type/name pair and a bounded use count.
type Tool struct {
	Type           string   `json:"type"`
	Name           string   `json:"name"`
	MaxUses        int      `json:"max_uses,omitempty"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
	BlockedDomains []string `json:"blocked_domains,omitempty"`
}

// WebSearchTool returns the server-side web search tool grant with a bounded
// number of searches per request.
func WebSearchTool(maxUses int) Tool {
	return Tool{
		Type:    "web_search_20250305",
		Name:    "web_search",
		MaxUses: maxUses,
	}
}

// MessagesResponse represents a Messages API response.
type MessagesResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []ResponseContent `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
	Usage      Usage             `json:"usage"`
}

// ResponseContent is one content block in a response. Text blocks carry the
// model output; tool_use and web_search_tool_result blocks are passed over
// when extracting text.
type ResponseContent struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`
}

// Usage reports token consumption, including prompt-cache activity.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// Streaming event types.

// MessageStartEvent is sent at the start of a streamed message.
type MessageStartEvent struct {
	Type    string           `json:"type"`
	Message MessagesResponse `json:"message"`
}

// ContentBlockStartEvent opens a content block at a given index.
type ContentBlockStartEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	ContentBlock ResponseContent `json:"content_block"`
}

// ContentBlockDeltaEvent carries an incremental update to a content block.
type ContentBlockDeltaEvent struct {
	Type  string     `json:"type"`
	Index int        `json:"index"`
	Delta BlockDelta `json:"delta"`
}

// BlockDelta is the payload of a content_block_delta event.
type BlockDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

// ContentBlockStopEvent closes a content block.
type ContentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MessageDeltaEvent carries message-level updates such as the stop reason.
type MessageDeltaEvent struct {
	Type  string       `json:"type"`
	Delta MessageDelta `json:"delta"`
	Usage *DeltaUsage  `json:"usage,omitempty"`
}

// MessageDelta holds updated message metadata.
type MessageDelta struct {
	StopReason string `json:"stop_reason,omitempty"`
}

// DeltaUsage reports output token usage in delta events.
type DeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}

// MessageStopEvent ends a streamed message.
type MessageStopEvent struct {
	Type string `json:"type"`
}

// APIError is a non-200 response from the API. StatusCode distinguishes
// rate limiting from other failures; RetryAfter carries the server-advised
// delay when the Retry-After header was present.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("anthropic: %s (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("anthropic: status %d: %s", e.StatusCode, e.Message)
}

// RateLimited reports whether the request was rejected for quota reasons.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == 429
}

type errorResponse struct {
	Type  string `json:"type"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseErrorBody(data []byte) (errType, message string, ok bool) {
	var resp errorResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.Error == nil {
		return "", "", false
	}
	return resp.Error.Type, resp.Error.Message, true
}
