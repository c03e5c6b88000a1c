// Package cache stores serialized analysis results keyed by a
// fingerprint of the user and their normalized text.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// keyPrefix namespaces analysis entries in a shared Redis.
const keyPrefix = "nlp:analysis:"

// DefaultTTL is a week: diary analyses are stable for a given text, so
// entries age out slowly.
const DefaultTTL = 7 * 24 * time.Hour

// Service is a total cache: operations never fail the caller. A backend
// error reads as a miss and turns a write into a no-op.
type Service interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Delete(ctx context.Context, key string)
	// Clear drops everything it can. Backends that cannot enumerate
	// their keys safely treat this as a no-op.
	Clear(ctx context.Context)
	Close() error
}

// Key fingerprints a user and their normalized entry text. The raw text
// never appears in the key.
func Key(userID int64, normalizedText string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", userID, normalizedText)))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// New picks the backend for the given Redis URL. An empty URL or an
// unusable one falls back to the in-process cache, so the service always
// has something to hit.
func New(redisURL string, ttl time.Duration) Service {
	if redisURL == "" {
		slog.Info("cache: using in-process backend")
		return NewMemory()
	}
	svc, err := NewRedis(redisURL, ttl)
	if err != nil {
		slog.Warn("cache: redis unavailable, falling back to in-process backend", "error", err)
		return NewMemory()
	}
	slog.Info("cache: using redis backend")
	return svc
}
