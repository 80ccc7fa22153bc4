package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionID string) string
}

// Repository persists carts by session id.
type Repository interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, sessionID string) error
}

type redisRepository struct {
	store kvStore
	ttl   time.Duration
}

// NewRedisRepository stores each cart as one JSON document whose TTL is
// refreshed on every save.
func NewRedisRepository(store kvStore, ttl time.Duration) (Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &redisRepository{store: store, ttl: ttl}, nil
}

// Load returns nil, nil when the session has no cart.
func (r *redisRepository) Load(ctx context.Context, sessionID string) (*Cart, error) {
	raw, err := r.store.Get(ctx, r.store.CartKey(sessionID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	var cart Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
	}
	cart.SessionID = sessionID
	if cart.Items == nil {
		cart.Items = []Item{}
	}
	return &cart, nil
}

func (r *redisRepository) Save(ctx context.Context, cart *Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := r.store.Set(ctx, r.store.CartKey(cart.SessionID), payload, r.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

func (r *redisRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.store.Del(ctx, r.store.CartKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart")
	}
	return nil
}
