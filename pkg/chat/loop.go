// Package chat implements the tool-augmented conversation loop and the
// service that fronts it: caching, history persistence, and metrics.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nutracoach/pkg/llm"
	"nutracoach/pkg/llmerrors"
	"nutracoach/pkg/logx"
	"nutracoach/pkg/store"
	"nutracoach/pkg/tools"
	"nutracoach/pkg/utils"
)

// MaxToolIterations bounds how many provider round-trips one user message
// may trigger. A model that keeps requesting tools past this bound gets cut
// off with an exhaustion error rather than looping forever.
const MaxToolIterations = 5

// maxHistoryMessages caps how many prior turns are replayed into the prompt.
const maxHistoryMessages = 10

// ErrMaxIterations is the message surfaced when the loop is exhausted.
const ErrMaxIterations = "Max iterations reached in tool calling"

// Dispatcher executes one tool call and always returns serialized JSON.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any, username string) string
}

// ToolInvocation records one tool call made during a loop run, with the
// arguments as the model sent them (before identity injection).
type ToolInvocation struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Result is the outcome of a completed loop run.
type Result struct {
	Message     string           `json:"message"`
	ToolsCalled []ToolInvocation `json:"tools_called,omitempty"`
	Usage       map[string]int64 `json:"usage,omitempty"`
	Iterations  int              `json:"iterations"`
}

// Loop drives the conversation: provider call, tool dispatch, repeat until
// the model answers in plain text or the iteration bound is hit.
type Loop struct {
	client      llm.Client
	dispatcher  Dispatcher
	defs        []tools.ToolDefinition
	counter     *utils.TokenCounter
	logger      *logx.Logger
	maxTokens   int
	temperature float32
}

// NewLoop creates a conversation loop over the given client and dispatcher.
func NewLoop(client llm.Client, dispatcher Dispatcher, defs []tools.ToolDefinition, maxTokens int, temperature float32) *Loop {
	counter, err := utils.NewTokenCounter()
	if err != nil {
		// Counter degrades to character-based estimation.
		counter = nil
	}
	return &Loop{
		client:      client,
		dispatcher:  dispatcher,
		defs:        defs,
		counter:     counter,
		logger:      logx.NewLogger("chat-loop"),
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// buildMessages assembles the prompt: system, then the most recent valid
// history turns, then the current user message. History rows with unknown
// roles or empty content are skipped with a warning rather than failing the
// whole conversation.
func (l *Loop) buildMessages(systemPrompt string, history []store.ChatMessage, userMessage string) []llm.CompletionMessage {
	valid := make([]store.ChatMessage, 0, len(history))
	for i := range history {
		msg := &history[i]
		if (msg.Role != string(llm.RoleUser) && msg.Role != string(llm.RoleAssistant)) || msg.Content == "" {
			l.logger.Warn("Skipping invalid history entry id=%d role=%q", msg.ID, msg.Role)
			continue
		}
		valid = append(valid, *msg)
	}
	if len(valid) > maxHistoryMessages {
		valid = valid[len(valid)-maxHistoryMessages:]
	}

	messages := make([]llm.CompletionMessage, 0, len(valid)+2)
	messages = append(messages, llm.NewSystemMessage(systemPrompt))
	for i := range valid {
		messages = append(messages, llm.CompletionMessage{
			Role:    llm.CompletionRole(valid[i].Role),
			Content: valid[i].Content,
		})
	}
	messages = append(messages, llm.NewUserMessage(userMessage))
	return messages
}

// Run executes the loop for one user message. Provider transport errors are
// terminal: they return immediately without internal retry. The returned
// usage map accumulates the provider's verbatim token counters across all
// iterations.
func (l *Loop) Run(ctx context.Context, systemPrompt, username string, history []store.ChatMessage, userMessage string) (*Result, error) {
	messages := l.buildMessages(systemPrompt, history, userMessage)
	usage := make(map[string]int64)
	result := &Result{}

	for iteration := 0; iteration < MaxToolIterations; iteration++ {
		req := llm.CompletionRequest{
			Messages:    messages,
			Tools:       l.defs,
			MaxTokens:   l.maxTokens,
			Temperature: l.temperature,
		}

		l.logger.Info("LLM call to model '%s': %d messages, ~%d prompt tokens, %d tools (iteration %d/%d)",
			l.client.GetModelName(), len(messages), l.estimateTokens(messages), len(l.defs), iteration+1, MaxToolIterations)

		start := time.Now()
		resp, err := l.client.Complete(ctx, req)
		duration := time.Since(start)
		if err != nil {
			l.logger.Error("LLM call failed after %.3gs: %v", duration.Seconds(), err)
			return nil, fmt.Errorf("LLM completion failed: %w", err)
		}

		for k, v := range resp.Usage {
			usage[k] += v
		}
		result.Iterations = iteration + 1

		l.logger.Info("LLM call completed in %.3gs: %d chars, %d tool calls",
			duration.Seconds(), len(resp.Content), len(resp.ToolCalls))

		if len(resp.ToolCalls) == 0 {
			result.Message = resp.Content
			result.Usage = usage
			return result, nil
		}

		// Tool-seeking wins: any text alongside the calls stays in the
		// transcript for the model but is not surfaced to the user.
		if resp.Content != "" {
			l.logger.Debug("Discarding %d chars of text alongside tool calls", len(resp.Content))
		}

		messages = append(messages, llm.CompletionMessage{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		// Dispatch every requested call in request order. The API requires
		// a result for each call, so failures come back as in-band payloads.
		toolResults := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for i := range resp.ToolCalls {
			call := &resp.ToolCalls[i]
			l.logger.Info("Executing tool: %s", call.Name)

			output := l.dispatcher.Dispatch(ctx, call.Name, call.Parameters, username)
			toolResults = append(toolResults, llm.ToolResult{
				ToolCallID: call.ID,
				Content:    output,
				IsError:    isErrorPayload(output),
			})
			result.ToolsCalled = append(result.ToolsCalled, ToolInvocation{
				Name:      call.Name,
				Arguments: call.Parameters,
			})
		}

		messages = append(messages, llm.CompletionMessage{
			Role:        llm.RoleTool,
			ToolResults: toolResults,
		})
	}

	l.logger.Warn("Maximum tool iterations (%d) reached for user %s", MaxToolIterations, username)
	result.Usage = usage
	return result, llmerrors.NewError(llmerrors.ErrorTypeExhausted, ErrMaxIterations)
}

// estimateTokens approximates the prompt size for logging.
func (l *Loop) estimateTokens(messages []llm.CompletionMessage) int {
	total := 0
	for i := range messages {
		total += l.counter.CountTokens(messages[i].Content)
	}
	return total
}

// isErrorPayload reports whether a serialized tool result is an in-band
// error object.
func isErrorPayload(output string) bool {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(output), &payload); err != nil {
		return false
	}
	_, hasError := payload["error"]
	return hasError
}
