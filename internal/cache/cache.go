// Package cache stores classification results so repeated prompts skip the
// classifier backend. Memory is an in-process L1, Redis a shared L2, and
// Tiered combines the two.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key derives a fixed-length cache key from a model name and prompt text.
// Prompts are normalized for case and surrounding whitespace.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}
