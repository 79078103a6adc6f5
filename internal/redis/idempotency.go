package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers which order was created for a given
// Idempotency-Key so a replayed submission returns the original order
// instead of creating a duplicate.
type IdempotencyStore interface {
	// Lookup returns the order previously recorded for the key, or
	// uuid.Nil and false when the key is unseen.
	Lookup(ctx context.Context, userID uuid.UUID, key string) (uuid.UUID, bool, error)
	// Record stores key -> orderID. The first writer wins.
	Record(ctx context.Context, userID uuid.UUID, key string, orderID uuid.UUID) error
}

type redisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) IdempotencyStore {
	return &redisIdempotencyStore{client: client, ttl: ttl}
}

func idemKey(userID uuid.UUID, key string) string {
	return fmt.Sprintf("idem:order:%s:%s", userID.String(), key)
}

func (s *redisIdempotencyStore) Lookup(ctx context.Context, userID uuid.UUID, key string) (uuid.UUID, bool, error) {
	val, err := s.client.Get(ctx, idemKey(userID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("lookup idempotency key: %w", err)
	}

	orderID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt idempotency entry %q: %w", val, err)
	}
	return orderID, true, nil
}

func (s *redisIdempotencyStore) Record(ctx context.Context, userID uuid.UUID, key string, orderID uuid.UUID) error {
	if err := s.client.SetNX(ctx, idemKey(userID, key), orderID.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("record idempotency key: %w", err)
	}
	return nil
}
