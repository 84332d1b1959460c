// Package idempotency keeps outbox consumers from acting twice on one event.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/redis"
)

// Guard records "consumer handled event" claims in redis. A claim value is
// the RFC3339 time it was taken; keys look like
// <prefix>:idempotency:evt:<consumer>:<event id>.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

// NewGuard builds a guard whose claims expire after ttl; zero keeps them forever.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl, now: time.Now}, nil
}

// Claim is true for exactly one caller per (consumer, event) until the
// claim expires or is released.
func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, g.now().UTC().Format(time.RFC3339), g.ttl)
}

// ClaimedAt reports when the current claim was taken, if there is one.
func (g *Guard) ClaimedAt(ctx context.Context, consumer string, eventID uuid.UUID) (time.Time, bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return time.Time{}, false, err
	}
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, true, fmt.Errorf("claim %s holds %q: %w", key, raw, err)
	}
	return at, true, nil
}

// Release gives the event back, for when the side effect failed after claiming.
func (g *Guard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
