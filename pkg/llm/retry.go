package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"nutracoach/pkg/llmerrors"
	"nutracoach/pkg/logx"
)

// RetryableClient wraps a Client with retry logic driven by error
// classification. Retry policy comes from the classified error type, so rate
// limits back off longer than plain transient failures. Non-retryable errors
// (auth, bad prompt) pass through immediately.
//
// The conversation loop deliberately does not use this wrapper; only
// background task processing retries provider calls.
type RetryableClient struct {
	client Client
	logger *logx.Logger
}

// NewRetryableClient wraps a client with classification-driven retries.
func NewRetryableClient(client Client) *RetryableClient {
	return &RetryableClient{
		client: client,
		logger: logx.NewLogger("llm-retry"),
	}
}

// GetModelName returns the wrapped client's model name.
func (r *RetryableClient) GetModelName() string {
	return r.client.GetModelName()
}

// Complete implements Client with retry logic.
func (r *RetryableClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	attempt := 0
	for {
		resp, err := r.client.Complete(ctx, in)
		if err == nil {
			return resp, nil
		}

		cfg := retryConfigFor(err)
		var llmErr *llmerrors.Error
		if errors.As(err, &llmErr) && !llmErr.IsRetryable() {
			return CompletionResponse{}, err
		}

		if attempt >= cfg.MaxRetries {
			if cfg.MaxRetries == 0 {
				return CompletionResponse{}, err
			}
			return CompletionResponse{}, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, err)
		}

		attempt++
		delay := calculateDelay(cfg, attempt)
		r.logger.Warn("Provider call failed (%s), retry %d/%d in %v: %v",
			llmerrors.TypeOf(err), attempt, cfg.MaxRetries, delay, err)

		select {
		case <-ctx.Done():
			return CompletionResponse{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// retryConfigFor resolves the retry configuration for a classified error.
func retryConfigFor(err error) llmerrors.RetryConfig {
	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		return llmErr.GetRetryConfig()
	}
	return llmerrors.DefaultRetryConfigs[llmerrors.ErrorTypeUnknown]
}

// calculateDelay computes the backoff delay for the given retry attempt.
func calculateDelay(cfg llmerrors.RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1)))

	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	if cfg.Jitter {
		jitterFactor := float64(2*(time.Now().UnixNano()%2) - 1) // -1 or 1
		delay += time.Duration(float64(delay) * 0.1 * jitterFactor)
		if delay < 0 {
			delay = cfg.InitialDelay
		}
	}

	return delay
}
