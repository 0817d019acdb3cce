package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"habit-ai-billing/internal/domain/model"
	"habit-ai-billing/internal/domain/ports/repository"
	"habit-ai-billing/internal/infra/metrics"
	red "habit-ai-billing/internal/infra/redis"
)

var _ repository.ProfileRepository = (*profileRepoCacheDecorator)(nil)

// profileRepoCacheDecorator caches the entitlement tier lookup; the client
// apps read it on nearly every request while writes only happen on
// cancellation, so the cache is invalidated on UpdateTier.
type profileRepoCacheDecorator struct {
	inner repository.ProfileRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewProfileRepoCacheDecorator(inner repository.ProfileRepository, cache red.RedisClient, ttl time.Duration) repository.ProfileRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &profileRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func profileKey(userID string) string { return fmt.Sprintf("profile:tier:%s", userID) }

func (d *profileRepoCacheDecorator) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error) {
	key := profileKey(userID)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var p model.Profile
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("profile", "hit")
			return &p, nil
		}
	}

	metrics.IncCacheRequest("profile", "miss")
	p, err := d.inner.FindByUserID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return p, nil
}

func (d *profileRepoCacheDecorator) UpdateTier(ctx context.Context, tx repository.Tx, userID, tier string) error {
	_ = d.cache.Del(ctx, profileKey(userID))
	return d.inner.UpdateTier(ctx, tx, userID, tier)
}
