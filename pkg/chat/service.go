package chat

import (
	"context"
	"encoding/json"
	"time"

	"nutracoach/pkg/cache"
	"nutracoach/pkg/llmerrors"
	"nutracoach/pkg/logx"
	"nutracoach/pkg/metrics"
	"nutracoach/pkg/store"
)

// historyFetchLimit caps how many stored turns the history endpoint returns.
const historyFetchLimit = 50

// Response is the service-level outcome of one chat request.
type Response struct {
	Response    string           `json:"response"`
	Cached      bool             `json:"cached"`
	ToolsCalled []ToolInvocation `json:"tools_called,omitempty"`
	Usage       map[string]int64 `json:"usage,omitempty"`
}

// Service fronts the conversation loop with recommendation caching, chat
// history persistence, and metrics recording.
type Service struct {
	loop         *Loop
	ops          *store.Operations
	cache        *cache.Cache
	recorder     metrics.Recorder
	logger       *logx.Logger
	systemPrompt string
	provider     string
}

// NewService creates a chat service.
func NewService(loop *Loop, ops *store.Operations, c *cache.Cache, recorder metrics.Recorder, systemPrompt, provider string) *Service {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Service{
		loop:         loop,
		ops:          ops,
		cache:        c,
		recorder:     recorder,
		logger:       logx.NewLogger("chat"),
		systemPrompt: systemPrompt,
		provider:     provider,
	}
}

// Chat runs one user message through the loop. Repeated messages (after
// lowercasing and trimming) are served from the recommendation cache without
// touching the provider.
func (s *Service) Chat(ctx context.Context, username, message string) (*Response, error) {
	key := cache.RecommendationKey(username, message)
	if cached, ok := s.cache.Get(key); ok {
		s.recorder.IncCache("recommendation", true)
		s.logger.Debug("Recommendation cache hit for user %s", username)
		return &Response{Response: cached, Cached: true}, nil
	}
	s.recorder.IncCache("recommendation", false)

	history, err := s.ops.GetChatHistory(username, maxHistoryMessages)
	if err != nil {
		// History is an enrichment, not a requirement.
		s.logger.Warn("Failed to load chat history for %s: %v", username, err)
		history = nil
	}

	start := time.Now()
	result, err := s.loop.Run(ctx, s.systemPrompt, username, history, message)
	duration := time.Since(start)

	model := s.loop.client.GetModelName()
	if err != nil {
		s.recorder.ObserveLLMRequest(s.provider, model, 0, 0, false, llmerrors.TypeOf(err).String(), duration)
		return nil, err
	}
	prompt, completion := splitUsage(result.Usage)
	s.recorder.ObserveLLMRequest(s.provider, model, prompt, completion, true, "", duration)
	for i := range result.ToolsCalled {
		s.recorder.IncToolCall(result.ToolsCalled[i].Name, false)
	}

	s.persistTurn(username, message, result.Message)
	s.cache.Set(key, result.Message, cache.RecommendationTTL)

	return &Response{
		Response:    result.Message,
		ToolsCalled: result.ToolsCalled,
		Usage:       result.Usage,
	}, nil
}

// persistTurn stores the user and assistant messages. Persistence failures
// degrade the history, not the response.
func (s *Service) persistTurn(username, userMessage, assistantMessage string) {
	if err := s.ops.AppendChatMessage(username, "user", userMessage); err != nil {
		s.logger.Warn("Failed to persist user message for %s: %v", username, err)
		return
	}
	if err := s.ops.AppendChatMessage(username, "assistant", assistantMessage); err != nil {
		s.logger.Warn("Failed to persist assistant message for %s: %v", username, err)
	}
	s.cache.Delete(cache.ChatHistoryKey(username))
}

// History returns the user's stored conversation, newest turns last.
func (s *Service) History(_ context.Context, username string) ([]store.ChatMessage, error) {
	key := cache.ChatHistoryKey(username)
	if cached, ok := s.cache.Get(key); ok {
		var history []store.ChatMessage
		if err := json.Unmarshal([]byte(cached), &history); err == nil {
			s.recorder.IncCache("chat_history", true)
			return history, nil
		}
		// Corrupt entry degrades to a miss.
		s.cache.Delete(key)
	}
	s.recorder.IncCache("chat_history", false)

	history, err := s.ops.GetChatHistory(username, historyFetchLimit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(history); err == nil {
		s.cache.Set(key, string(data), cache.ChatHistoryTTL)
	}
	return history, nil
}

// ClearHistory deletes the user's stored conversation and its cache entry.
func (s *Service) ClearHistory(_ context.Context, username string) error {
	if err := s.ops.ClearChatHistory(username); err != nil {
		return err
	}
	s.cache.Delete(cache.ChatHistoryKey(username))
	return nil
}

// splitUsage folds the provider-specific usage keys into prompt/completion
// totals for metrics. The response-level map keeps the verbatim keys.
func splitUsage(usage map[string]int64) (prompt, completion int64) {
	prompt = usage["input_tokens"] + usage["prompt_tokens"] + usage["prompt_eval_count"] + usage["prompt_token_count"]
	completion = usage["output_tokens"] + usage["completion_tokens"] + usage["eval_count"] + usage["candidates_token_count"]
	return prompt, completion
}
