package cache

import (
	"context"
	"log/slog"
	"time"
)

// Tiered layers a shared L2 behind an in-process L1. Reads try L1, then L2,
// copying L2 hits into L1. An unreachable L2 degrades reads to L1 only, so a
// Redis outage never fails a classification.
type Tiered struct {
	l1       Cache
	l2       Cache
	l1Expire time.Duration
	logger   *slog.Logger
}

// NewTiered creates a tiered cache. l1Expire bounds how long L2 backfill
// entries live in L1.
func NewTiered(l1, l2 Cache, l1Expire time.Duration, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiered{l1: l1, l2: l2, l1Expire: l1Expire, logger: logger}
}

// Get checks L1, then L2.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := t.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = t.l2.Get(ctx, key)
	if err != nil {
		t.logger.Warn("L2 cache read failed, continuing with L1 only", "error", err)
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	_ = t.l1.Set(ctx, key, val, t.l1Expire)
	return val, true, nil
}

// Set writes L1 first; an L2 failure is returned after L1 is populated.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return t.l2.Set(ctx, key, value, ttl)
}

// Delete removes from both levels.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	if err := t.l1.Delete(ctx, key); err != nil {
		return err
	}
	return t.l2.Delete(ctx, key)
}
