// Package directory serves the read-only list of bookable providers,
// cached for the lifetime of one booking session.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carebook/appointment-booking/internal/booking"
)

const cacheKey = "directory:providers"

// ProviderStore is the subset of the booking repository the loader reads.
type ProviderStore interface {
	ListProviders(ctx context.Context) ([]booking.Provider, error)
}

type Loader struct {
	store ProviderStore
	cache *redis.Client
	ttl   time.Duration
}

func NewLoader(store ProviderStore, cache *redis.Client, ttl time.Duration) *Loader {
	return &Loader{
		store: store,
		cache: cache,
		ttl:   ttl,
	}
}

// Providers returns the bookable provider list, serving from Redis when a
// fresh copy exists. Cache failures degrade to a direct read.
func (l *Loader) Providers(ctx context.Context) ([]booking.Provider, error) {
	if l.cache != nil {
		raw, err := l.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached []booking.Provider
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
			// Corrupt entry, fall through to the store and rewrite it.
		} else if err != redis.Nil {
			log.Printf("provider cache read error: %v", err)
		}
	}

	providers, err := l.store.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	if l.cache != nil {
		if raw, err := json.Marshal(providers); err == nil {
			if err := l.cache.Set(ctx, cacheKey, raw, l.ttl).Err(); err != nil {
				log.Printf("provider cache write error: %v", err)
			}
		}
	}

	return providers, nil
}

// Invalidate drops the cached list, forcing the next read through.
func (l *Loader) Invalidate(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	if err := l.cache.Del(ctx, cacheKey).Err(); err != nil {
		return fmt.Errorf("invalidate provider cache: %w", err)
	}
	return nil
}
