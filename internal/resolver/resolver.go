// Package resolver turns a qrId into its redirect target, cache first.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/MrSnakeDoc/qrlink/internal/cache"
	"github.com/MrSnakeDoc/qrlink/internal/domain"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
)

// DefaultTTL bounds how long a resolution may be served from cache.
const DefaultTTL = time.Hour

const lockStripes = 64

// Resolution is what a redirect needs, plus the metadata shown by /info.
type Resolution struct {
	QrID            string    `json:"qrId"`
	TargetURL       string    `json:"targetUrl"`
	Description     string    `json:"description,omitempty"`
	ApplicationID   *int64    `json:"applicationId,omitempty"`
	ApplicationName string    `json:"applicationName,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	IsActive        bool      `json:"isActive"`
}

// MappingFinder is the read path the resolver needs from the store.
type MappingFinder interface {
	FindActiveByQrID(ctx context.Context, qrID string) (*domain.Mapping, error)
}

// ApplicationFinder resolves the optional owner name.
type ApplicationFinder interface {
	FindApplicationByID(ctx context.Context, id int64) (*domain.Application, error)
}

// Resolver is side-effect free apart from populating its cache.
//
// A cache fill (store read then Put) and an invalidation of the same qrId
// never interleave: both hold the qrId's stripe lock. Once Invalidate returns,
// no fill that read the store before the mutation can still land.
type Resolver struct {
	store   MappingFinder
	apps    ApplicationFinder
	cache   cache.Cache
	ttl     time.Duration
	logger  logger.Logger
	stripes [lockStripes]sync.Mutex
}

// New creates a Resolver. apps may be nil.
func New(store MappingFinder, apps ApplicationFinder, c cache.Cache, ttl time.Duration, log logger.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{store: store, apps: apps, cache: c, ttl: ttl, logger: log}
}

func (r *Resolver) stripe(qrID string) *sync.Mutex {
	return &r.stripes[xxhash.Sum64String(qrID)%lockStripes]
}

// Resolve returns domain.ErrNotFound for malformed, unknown and inactive ids alike.
func (r *Resolver) Resolve(ctx context.Context, qrID string) (*Resolution, error) {
	if !domain.ValidQrID(qrID) {
		return nil, domain.ErrNotFound
	}

	key := cache.ResolutionKey(qrID)
	if res, ok := r.fromCache(ctx, key); ok {
		return res, nil
	}

	mu := r.stripe(qrID)
	mu.Lock()
	defer mu.Unlock()

	// Another miss may have filled the entry while we waited.
	if res, ok := r.fromCache(ctx, key); ok {
		return res, nil
	}

	m, err := r.store.FindActiveByQrID(ctx, qrID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve %s: %w", qrID, err)
	}

	res := r.toResolution(ctx, m)
	if data, err := json.Marshal(res); err == nil {
		if err := r.cache.Put(ctx, key, data, r.ttl); err != nil {
			r.logger.Warn("failed to cache resolution",
				logger.String("qr_id", qrID),
				logger.Error(err))
		}
	}
	return res, nil
}

// Invalidate evicts the cached resolution of qrID. It waits for any fill of
// qrID already in flight, so call it after the store write is committed.
func (r *Resolver) Invalidate(ctx context.Context, qrID string) error {
	mu := r.stripe(qrID)
	mu.Lock()
	defer mu.Unlock()

	if err := r.cache.Evict(ctx, cache.ResolutionKey(qrID)); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrCacheInvalidation, qrID, err)
	}
	return nil
}

// Warm loads qrID into the cache, ignoring ids that no longer resolve.
func (r *Resolver) Warm(ctx context.Context, qrID string) error {
	if err := r.Invalidate(ctx, qrID); err != nil {
		return err
	}
	_, err := r.Resolve(ctx, qrID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func (r *Resolver) fromCache(ctx context.Context, key string) (*Resolution, bool) {
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("cache lookup failed, falling back to store",
			logger.String("key", key),
			logger.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var res Resolution
	if err := json.Unmarshal(data, &res); err != nil {
		r.logger.Warn("dropping corrupt cache entry", logger.String("key", key), logger.Error(err))
		_ = r.cache.Evict(ctx, key)
		return nil, false
	}
	return &res, true
}

func (r *Resolver) toResolution(ctx context.Context, m *domain.Mapping) *Resolution {
	res := &Resolution{
		QrID:          m.QrID,
		TargetURL:     m.TargetURL,
		Description:   m.Description,
		ApplicationID: m.ApplicationID,
		CreatedAt:     m.CreatedAt,
		IsActive:      m.IsActive,
	}
	if m.ApplicationID != nil && r.apps != nil {
		app, err := r.apps.FindApplicationByID(ctx, *m.ApplicationID)
		switch {
		case err == nil:
			res.ApplicationName = app.Name
		case !errors.Is(err, domain.ErrNotFound):
			r.logger.Debug("application lookup failed",
				logger.Int64("application_id", *m.ApplicationID),
				logger.Error(err))
		}
	}
	return res
}
