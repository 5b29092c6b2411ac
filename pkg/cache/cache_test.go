package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache returns a cache whose clock is controlled by the returned
// advance function.
func newTestCache() (*Cache, func(time.Duration)) {
	c := New()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }
	return c, func(d time.Duration) { current = current.Add(d) }
}

func TestSetGetDelete(t *testing.T) {
	c, _ := newTestCache()

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", "v", time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c, advance := newTestCache()

	c.Set("k", "v", time.Minute)
	advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestDeletePrefix(t *testing.T) {
	c, _ := newTestCache()

	c.Set("nutrition:alice:2025-06-01", "a", time.Hour)
	c.Set("nutrition:alice:2025-05-31", "b", time.Hour)
	c.Set("nutrition:bob:2025-06-01", "c", time.Hour)

	c.DeletePrefix("nutrition:alice:")

	_, ok := c.Get("nutrition:alice:2025-06-01")
	assert.False(t, ok)
	_, ok = c.Get("nutrition:bob:2025-06-01")
	assert.True(t, ok)
}

func TestSweep(t *testing.T) {
	c, advance := newTestCache()

	c.Set("short", "v", time.Minute)
	c.Set("long", "v", time.Hour)
	advance(2 * time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestRecommendationKeyNormalization(t *testing.T) {
	a := RecommendationKey("alice", "What should I eat today?")
	b := RecommendationKey("alice", "  what should i EAT today?  ")
	assert.Equal(t, a, b)

	// Different users never share a key.
	assert.NotEqual(t, a, RecommendationKey("bob", "What should I eat today?"))
	// Different messages never share a key.
	assert.NotEqual(t, a, RecommendationKey("alice", "What should I eat tomorrow?"))
}

func TestInvalidateIntake(t *testing.T) {
	c, _ := newTestCache()

	c.Set(NutritionKey("alice", "2025-06-01"), "totals", time.Hour)
	c.Set(HistoryKey("alice"), "history", time.Hour)
	c.Set(NutritionKey("alice", "2025-05-31"), "other day", time.Hour)

	c.InvalidateIntake("alice", "2025-06-01")

	_, ok := c.Get(NutritionKey("alice", "2025-06-01"))
	assert.False(t, ok)
	_, ok = c.Get(HistoryKey("alice"))
	assert.False(t, ok)
	_, ok = c.Get(NutritionKey("alice", "2025-05-31"))
	assert.True(t, ok)
}

func TestInvalidateUser(t *testing.T) {
	c, _ := newTestCache()

	c.Set(RecommendationKey("alice", "hi"), "v", time.Hour)
	c.Set(NutritionKey("alice", "2025-06-01"), "v", time.Hour)
	c.Set(HistoryKey("alice"), "v", time.Hour)
	c.Set(ChatHistoryKey("alice"), "v", time.Hour)
	c.Set(ChatHistoryKey("bob"), "v", time.Hour)

	c.InvalidateUser("alice")

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(ChatHistoryKey("bob"))
	assert.True(t, ok)
}
