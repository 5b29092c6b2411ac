package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// UsageSummary represents aggregated LLM usage over a time window.
type UsageSummary struct {
	Provider         string `json:"provider"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
	Requests         int64  `json:"requests"`
}

// QueryService queries aggregated usage back out of Prometheus. The service
// exports raw counters; dashboards and the usage endpoint read sums from here.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetUsage retrieves aggregated token usage for one provider.
func (q *QueryService) GetUsage(ctx context.Context, provider string) (*UsageSummary, error) {
	summary := &UsageSummary{
		Provider: provider,
	}

	promptQuery := fmt.Sprintf(`sum(llm_tokens_total{provider=%q, type="prompt"})`, provider)
	promptResult, _, err := q.queryAPI.Query(ctx, promptQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query prompt tokens: %w", err)
	}
	if vector, ok := promptResult.(model.Vector); ok && len(vector) > 0 {
		summary.PromptTokens = int64(vector[0].Value)
	}

	completionQuery := fmt.Sprintf(`sum(llm_tokens_total{provider=%q, type="completion"})`, provider)
	completionResult, _, err := q.queryAPI.Query(ctx, completionQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query completion tokens: %w", err)
	}
	if vector, ok := completionResult.(model.Vector); ok && len(vector) > 0 {
		summary.CompletionTokens = int64(vector[0].Value)
	}

	summary.TotalTokens = summary.PromptTokens + summary.CompletionTokens

	requestsQuery := fmt.Sprintf(`sum(llm_requests_total{provider=%q})`, provider)
	requestsResult, _, err := q.queryAPI.Query(ctx, requestsQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query request count: %w", err)
	}
	if vector, ok := requestsResult.(model.Vector); ok && len(vector) > 0 {
		summary.Requests = int64(vector[0].Value)
	}

	return summary, nil
}

// GetUsageByModel retrieves usage broken down by model for one provider.
func (q *QueryService) GetUsageByModel(ctx context.Context, provider string) (map[string]*UsageSummary, error) {
	result := make(map[string]*UsageSummary)

	modelsQuery := fmt.Sprintf(`group by (model) (llm_tokens_total{provider=%q})`, provider)
	modelsResult, _, err := q.queryAPI.Query(ctx, modelsQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}

	var models []string
	if vector, ok := modelsResult.(model.Vector); ok {
		for _, sample := range vector {
			if modelName, ok := sample.Metric["model"]; ok {
				models = append(models, string(modelName))
			}
		}
	}

	for _, modelName := range models {
		summary := &UsageSummary{
			Provider: provider,
		}

		promptQuery := fmt.Sprintf(`sum(llm_tokens_total{provider=%q, model=%q, type="prompt"})`, provider, modelName)
		promptResult, _, err := q.queryAPI.Query(ctx, promptQuery, time.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to query prompt tokens for model %s: %w", modelName, err)
		}
		if vector, ok := promptResult.(model.Vector); ok && len(vector) > 0 {
			summary.PromptTokens = int64(vector[0].Value)
		}

		completionQuery := fmt.Sprintf(`sum(llm_tokens_total{provider=%q, model=%q, type="completion"})`, provider, modelName)
		completionResult, _, err := q.queryAPI.Query(ctx, completionQuery, time.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to query completion tokens for model %s: %w", modelName, err)
		}
		if vector, ok := completionResult.(model.Vector); ok && len(vector) > 0 {
			summary.CompletionTokens = int64(vector[0].Value)
		}

		summary.TotalTokens = summary.PromptTokens + summary.CompletionTokens
		result[modelName] = summary
	}

	return result, nil
}
