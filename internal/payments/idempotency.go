package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minelance/minelance-backend/pkg/redis"
)

// IdempotencyGuard marks gateway operation ids as seen in Redis so replays
// short-circuit before touching the database.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether operationID was already marked, marking it
// otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, operationID string) (bool, error) {
	if operationID == "" {
		return false, errors.New("operation id is required")
	}
	key := g.store.IdempotencyKey(g.scope, operationID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete clears the mark so a failed delivery can be retried.
func (g *IdempotencyGuard) Delete(ctx context.Context, operationID string) error {
	if operationID == "" {
		return errors.New("operation id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, operationID))
}
