// Package llm provides the provider-agnostic client interface and message types
// for chat completions with tool calling. The conversation loop depends only on
// this package, never on provider-specific SDK types.
package llm

import (
	"context"

	"nutracoach/pkg/tools"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the AI assistant.
	RoleAssistant CompletionRole = "assistant"
	// RoleTool indicates a tool result message fed back to the model.
	RoleTool CompletionRole = "tool"
)

// ToolCall represents a tool call requested by the LLM.
type ToolCall struct {
	Parameters map[string]any `json:"parameters"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
}

// ToolResult carries the serialized outcome of one tool call back to the model.
// Content is always set, even for failed dispatches.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// CompletionMessage represents a message in a completion request.
// An assistant message may carry ToolCalls; a user/tool message may carry
// ToolResults. Adapters translate these into each provider's wire shape.
type CompletionMessage struct {
	Content     string
	Role        CompletionRole
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages    []CompletionMessage
	Tools       []tools.ToolDefinition
	ToolChoice  string
	MaxTokens   int
	Temperature float32
}

// CompletionResponse represents a response from a completion request.
//
// Usage carries the provider's numeric token counts verbatim under the
// provider's own field names (input_tokens/output_tokens for Anthropic,
// prompt_tokens/completion_tokens/total_tokens for OpenAI, and so on).
// The fields are intentionally not unified.
type CompletionResponse struct {
	ToolCalls  []ToolCall
	Usage      map[string]int64
	Content    string
	StopReason string
}

// Client defines the interface for language model interactions.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name for this client.
	GetModelName() string
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{
		Role:    RoleSystem,
		Content: content,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{
		Role:    RoleUser,
		Content: content,
	}
}
