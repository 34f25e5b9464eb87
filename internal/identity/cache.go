package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CachedStore fronts a Store with a short-lived redis cache. Concurrent misses
// for the same actor collapse into one upstream lookup.
type CachedStore struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedStore wraps next. A nil client disables caching.
func NewCachedStore(next Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{next: next, client: client, ttl: ttl, logger: logger}
}

// GetActor returns the cached actor or loads it from the wrapped store.
func (c *CachedStore) GetActor(ctx context.Context, id int64) (Actor, error) {
	key := actorKey(id)
	if c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var actor Actor
			if jsonErr := json.Unmarshal(payload, &actor); jsonErr == nil {
				return actor, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("actor cache read", slog.Int64("actor_id", id), slog.Any("error", err))
		}
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		actor, err := c.next.GetActor(ctx, id)
		if err != nil {
			return Actor{}, err
		}
		c.store(ctx, key, actor)
		return actor, nil
	})
	if err != nil {
		return Actor{}, err
	}
	return v.(Actor), nil
}

// Invalidate drops the cached copy, called after role changes.
func (c *CachedStore) Invalidate(ctx context.Context, id int64) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, actorKey(id)).Err()
}

func (c *CachedStore) store(ctx context.Context, key string, actor Actor) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(actor)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("actor cache write", slog.Int64("actor_id", actor.ID), slog.Any("error", err))
	}
}

func actorKey(id int64) string {
	return "heritage:actor:" + strconv.FormatInt(id, 10)
}

var _ Store = (*CachedStore)(nil)
