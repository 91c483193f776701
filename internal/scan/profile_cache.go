package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"NutriScan/internal/database"
	"NutriScan/internal/nutrition"
	"NutriScan/internal/questionnaire"
	"NutriScan/internal/utility"
)

const profileTTL = time.Hour

// CachedProfile is a derived profile tagged with the preferences revision it was built from.
type CachedProfile struct {
	Revision int64                   `json:"revision"`
	Profile  nutrition.HealthProfile `json:"profile"`
}

// ProfileBackend stores derived profiles. A miss or a backend failure both read as absent.
type ProfileBackend interface {
	Get(ctx context.Context, userID string) (CachedProfile, bool)
	Set(ctx context.Context, userID string, p CachedProfile)
	Delete(ctx context.Context, userID string)
}

// ProfileCache is a read-through cache of health profiles. An entry is served only while its
// revision equals the stored preferences revision.
type ProfileCache struct {
	store   database.Store
	bank    *questionnaire.Bank
	backend ProfileBackend
}

func NewProfileCache(store database.Store, bank *questionnaire.Bank, backend ProfileBackend) *ProfileCache {
	if backend == nil {
		backend = NewLRUProfileBackend(1024)
	}
	return &ProfileCache{store: store, bank: bank, backend: backend}
}

// Profile returns the user's health profile. Users without preferences get the empty profile.
func (c *ProfileCache) Profile(ctx context.Context, userID string) (nutrition.HealthProfile, error) {
	rev, err := c.store.GetPreferencesRevision(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nutrition.EmptyProfile(), nil
	}
	if err != nil {
		return nutrition.HealthProfile{}, fmt.Errorf("failed to read preferences revision: %w", err)
	}

	if cached, ok := c.backend.Get(ctx, userID); ok && cached.Revision == rev {
		return cached.Profile, nil
	}

	prefs, err := c.store.GetUserPreferences(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nutrition.EmptyProfile(), nil
	}
	if err != nil {
		return nutrition.HealthProfile{}, fmt.Errorf("failed to read preferences: %w", err)
	}

	profile := nutrition.ExtractHealthProfile(c.bank.Named(prefs.DietaryPreferences))
	c.backend.Set(ctx, userID, CachedProfile{Revision: prefs.Revision, Profile: profile})
	return profile, nil
}

func (c *ProfileCache) Invalidate(ctx context.Context, userID string) {
	c.backend.Delete(ctx, userID)
}

/*=================================================================================
								BACKENDS
=================================================================================*/

type lruProfileBackend struct {
	cache *expirable.LRU[string, CachedProfile]
}

func NewLRUProfileBackend(size int) ProfileBackend {
	return &lruProfileBackend{cache: expirable.NewLRU[string, CachedProfile](size, nil, profileTTL)}
}

func (b *lruProfileBackend) Get(_ context.Context, userID string) (CachedProfile, bool) {
	return b.cache.Get(userID)
}

func (b *lruProfileBackend) Set(_ context.Context, userID string, p CachedProfile) {
	b.cache.Add(userID, p)
}

func (b *lruProfileBackend) Delete(_ context.Context, userID string) {
	b.cache.Remove(userID)
}

type redisProfileBackend struct {
	rdb *redis.Client
}

// NewRedisProfileBackend shares cached profiles across instances.
func NewRedisProfileBackend(rdb *redis.Client) ProfileBackend {
	return &redisProfileBackend{rdb: rdb}
}

func profileKey(userID string) string {
	return fmt.Sprintf("nutriscan:profile:%s", userID)
}

func (b *redisProfileBackend) Get(ctx context.Context, userID string) (CachedProfile, bool) {
	data, err := b.rdb.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			utility.Logger(ctx).Warn().Err(err).Str("user_id", userID).Msg("Failed to read cached profile from Redis")
		}
		return CachedProfile{}, false
	}
	var p CachedProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return CachedProfile{}, false
	}
	return p, true
}

func (b *redisProfileBackend) Set(ctx context.Context, userID string, p CachedProfile) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := b.rdb.Set(ctx, profileKey(userID), data, profileTTL).Err(); err != nil {
		utility.Logger(ctx).Warn().Err(err).Str("user_id", userID).Msg("Failed to cache profile in Redis")
	}
}

func (b *redisProfileBackend) Delete(ctx context.Context, userID string) {
	if err := b.rdb.Del(ctx, profileKey(userID)).Err(); err != nil {
		utility.Logger(ctx).Warn().Err(err).Str("user_id", userID).Msg("Failed to drop cached profile from Redis")
	}
}
