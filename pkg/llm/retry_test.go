package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutracoach/pkg/llmerrors"
)

// failingClient returns a scripted error for every call.
type failingClient struct {
	err   error
	calls int
}

func (c *failingClient) Complete(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
	c.calls++
	if c.err != nil {
		return CompletionResponse{}, c.err
	}
	return CompletionResponse{Content: "ok"}, nil
}

func (c *failingClient) GetModelName() string { return "test-model" }

func TestRetryableClientPassesThroughSuccess(t *testing.T) {
	inner := &failingClient{}
	client := NewRetryableClient(inner)

	resp, err := client.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "test-model", client.GetModelName())
}

func TestRetryableClientNonRetryableFailsFast(t *testing.T) {
	for _, et := range []llmerrors.ErrorType{
		llmerrors.ErrorTypeAuth,
		llmerrors.ErrorTypeBadPrompt,
		llmerrors.ErrorTypeExhausted,
	} {
		inner := &failingClient{err: llmerrors.NewError(et, "terminal")}
		client := NewRetryableClient(inner)

		_, err := client.Complete(context.Background(), CompletionRequest{})
		require.Error(t, err, et.String())
		assert.True(t, llmerrors.Is(err, et))
		assert.Equal(t, 1, inner.calls, et.String())
	}
}

func TestRetryableClientHonorsContextDuringBackoff(t *testing.T) {
	inner := &failingClient{err: llmerrors.NewError(llmerrors.ErrorTypeTransient, "connection reset")}
	client := NewRetryableClient(inner)

	// The transient backoff starts at seconds; the context expires first.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, CompletionRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryConfigFor(t *testing.T) {
	transient := retryConfigFor(llmerrors.NewError(llmerrors.ErrorTypeTransient, "x"))
	assert.Equal(t, llmerrors.DefaultRetryConfigs[llmerrors.ErrorTypeTransient], transient)

	plain := retryConfigFor(errors.New("unclassified"))
	assert.Equal(t, llmerrors.DefaultRetryConfigs[llmerrors.ErrorTypeUnknown], plain)
}

func TestCalculateDelay(t *testing.T) {
	cfg := llmerrors.RetryConfig{
		MaxRetries:    5,
		InitialDelay:  time.Second,
		MaxDelay:      4 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        false,
	}

	assert.Equal(t, time.Second, calculateDelay(cfg, 1))
	assert.Equal(t, 2*time.Second, calculateDelay(cfg, 2))
	assert.Equal(t, 4*time.Second, calculateDelay(cfg, 3))
	// Capped at MaxDelay.
	assert.Equal(t, 4*time.Second, calculateDelay(cfg, 10))

	cfg.Jitter = true
	jittered := calculateDelay(cfg, 2)
	assert.InDelta(t, float64(2*time.Second), float64(jittered), float64(2*time.Second)*0.1)
}
