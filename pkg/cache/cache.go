// Package cache provides an in-process TTL cache for expensive read paths:
// LLM recommendations, daily nutrition sums, and history queries. Failures
// anywhere in the cache degrade to a miss; callers never fail because of it.
package cache

import (
	"crypto/md5" //nolint:gosec // Key derivation, not security
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Default TTLs per key family.
const (
	RecommendationTTL = time.Hour
	NutritionTTL      = 24 * time.Hour
	HistoryTTL        = time.Hour
	ChatHistoryTTL    = 7 * 24 * time.Hour
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Cache is a thread-safe in-memory string cache with per-entry expiry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	// now is replaceable in tests.
	now func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value for key, or "" and false on a miss.
// Expired entries count as misses and are removed.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false
	}
	return e.value, true
}

// Set stores value under key for the given TTL.
func (c *Cache) Set(key, value string, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes a single key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeletePrefix removes every key with the given prefix.
func (c *Cache) DeletePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Sweep removes all expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	dropped := 0
	c.mu.Lock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			dropped++
		}
	}
	c.mu.Unlock()
	return dropped
}

// Len returns the number of live entries, counting unexpired only.
func (c *Cache) Len() int {
	now := c.now()
	n := 0
	c.mu.RLock()
	for _, e := range c.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	c.mu.RUnlock()
	return n
}

// RecommendationKey builds the cache key for an LLM recommendation. The
// message is lowercased and trimmed before hashing, so trivially rephrased
// whitespace or casing differences hit the same entry.
func RecommendationKey(username, message string) string {
	normalized := strings.ToLower(strings.TrimSpace(message))
	sum := md5.Sum([]byte(normalized)) //nolint:gosec // Key derivation, not security
	return "recommendation:" + username + ":" + hex.EncodeToString(sum[:])
}

// NutritionKey builds the cache key for a user's daily nutrition totals.
func NutritionKey(username, date string) string {
	return "nutrition:" + username + ":" + date
}

// HistoryKey builds the cache key for a user's 7-day history.
func HistoryKey(username string) string {
	return "history_7days:" + username
}

// ChatHistoryKey builds the cache key for a user's chat history.
func ChatHistoryKey(username string) string {
	return "chat_history:" + username
}

// InvalidateIntake drops every cached value derived from a user's intake log.
// Called after any intake write so stale sums never outlive the data.
func (c *Cache) InvalidateIntake(username, date string) {
	c.Delete(NutritionKey(username, date))
	c.Delete(HistoryKey(username))
}

// InvalidateUser drops all cached values for a user.
func (c *Cache) InvalidateUser(username string) {
	c.DeletePrefix("recommendation:" + username + ":")
	c.DeletePrefix("nutrition:" + username + ":")
	c.Delete(HistoryKey(username))
	c.Delete(ChatHistoryKey(username))
}
