// Package presence tracks astrologer availability. Postgres holds the
// authoritative is_online flag; Redis, when configured, mirrors it under a
// TTL key so liveness survives a crashed client only for the heartbeat
// window.
package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "astrocall:presence:"

type StoreWriter interface {
	SetAstrologerOnline(ctx context.Context, astrologerID string, online bool) error
}

type Tracker struct {
	store StoreWriter
	redis *redis.Client
	ttl   time.Duration
}

func NewTracker(store StoreWriter, redisClient *redis.Client, ttl time.Duration) *Tracker {
	return &Tracker{store: store, redis: redisClient, ttl: ttl}
}

// SetOnline toggles availability. Only the owning astrologer reaches this
// path; enforcement happens in the HTTP layer.
func (t *Tracker) SetOnline(ctx context.Context, astrologerID string, online bool) error {
	if err := t.store.SetAstrologerOnline(ctx, astrologerID, online); err != nil {
		return err
	}
	if t.redis == nil {
		return nil
	}
	key := keyPrefix + astrologerID
	if online {
		return t.redis.Set(ctx, key, "1", t.ttl).Err()
	}
	return t.redis.Del(ctx, key).Err()
}

// Heartbeat extends the liveness window for an online astrologer.
func (t *Tracker) Heartbeat(ctx context.Context, astrologerID string) error {
	if t.redis == nil {
		return nil
	}
	return t.redis.Set(ctx, keyPrefix+astrologerID, "1", t.ttl).Err()
}

// IsLive reports Redis-side liveness; without Redis it defers to the
// persisted flag by reporting true.
func (t *Tracker) IsLive(ctx context.Context, astrologerID string) bool {
	if t.redis == nil {
		return true
	}
	n, err := t.redis.Exists(ctx, keyPrefix+astrologerID).Result()
	if err != nil {
		return true
	}
	return n > 0
}
