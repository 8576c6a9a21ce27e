package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	cache "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/cache/port"
	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"go.uber.org/zap"
)

// CachedProfileRepository is a read-through cache for display data. Only
// profiles and communities are cached; cache failures fall back to the store.
type CachedProfileRepository struct {
	inner  repository.ProfileRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedProfileRepository(inner repository.ProfileRepository, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedProfileRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProfileRepository{inner: inner, cache: c, ttl: ttl, logger: logger}
}

var _ repository.ProfileRepository = (*CachedProfileRepository)(nil)

func (r *CachedProfileRepository) FindProfiles(ctx context.Context, ids []string) (map[string]chat.Profile, error) {
	return readThrough(ctx, r, "profile:", ids, r.inner.FindProfiles)
}

func (r *CachedProfileRepository) FindCommunities(ctx context.Context, ids []string) (map[string]chat.Community, error) {
	return readThrough(ctx, r, "community:", ids, r.inner.FindCommunities)
}

// Invalidate drops cached entries for a profile.
func (r *CachedProfileRepository) Invalidate(ctx context.Context, userIDs ...string) error {
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = "profile:" + id
	}
	_, err := r.cache.Del(ctx, keys...)
	return err
}

func readThrough[T any](ctx context.Context, r *CachedProfileRepository, prefix string, ids []string, load func(context.Context, []string) (map[string]T, error)) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	var misses []string
	for _, id := range ids {
		raw, err := r.cache.Get(ctx, prefix+id)
		if err != nil {
			if !errors.Is(err, cache.ErrMiss) {
				r.logger.Debug("cache get failed", zap.String("key", prefix+id), zap.Error(err))
			}
			misses = append(misses, id)
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			misses = append(misses, id)
			continue
		}
		out[id] = v
	}
	if len(misses) == 0 {
		return out, nil
	}

	loaded, err := load(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, v := range loaded {
		out[id] = v
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		if err := r.cache.Set(ctx, prefix+id, string(b), r.ttl); err != nil {
			r.logger.Debug("cache set failed", zap.String("key", prefix+id), zap.Error(err))
		}
	}
	return out, nil
}
