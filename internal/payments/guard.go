package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pageturnhq/bookstore-backend/pkg/redis"
)

const callbackGuardScope = "payment-callback"

// CallbackGuard short-circuits rapid duplicate gateway deliveries before
// they hit the database. The key includes the delivered outcome so a
// conflicting redelivery still reaches the state check and gets rejected
// there.
type CallbackGuard struct {
	store redis.DedupStore
	ttl   time.Duration
}

// NewCallbackGuard builds a guard over the provided dedup store.
func NewCallbackGuard(store redis.DedupStore, ttl time.Duration) (*CallbackGuard, error) {
	if store == nil {
		return nil, errors.New("dedup store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &CallbackGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark records the delivery and reports whether it was seen before.
func (g *CallbackGuard) CheckAndMark(ctx context.Context, transactionID string, succeeded bool) (bool, error) {
	if transactionID == "" {
		return false, errors.New("transaction id is required")
	}
	key := g.store.IdempotencyKey(callbackGuardScope, deliveryID(transactionID, succeeded))
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set callback dedup key: %w", err)
	}
	return !set, nil
}

// Forget releases the delivery marker so a failed apply can be retried.
func (g *CallbackGuard) Forget(ctx context.Context, transactionID string, succeeded bool) error {
	if transactionID == "" {
		return errors.New("transaction id is required")
	}
	key := g.store.IdempotencyKey(callbackGuardScope, deliveryID(transactionID, succeeded))
	return g.store.Del(ctx, key)
}

func deliveryID(transactionID string, succeeded bool) string {
	outcome := "failed"
	if succeeded {
		outcome = "success"
	}
	return transactionID + ":" + outcome
}
