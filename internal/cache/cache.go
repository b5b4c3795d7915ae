// Package cache is the acceleration layer in front of the store. Entries are
// opaque bytes; the store stays the source of truth.
package cache

import (
	"context"
	"time"
)

// Cache is safe for concurrent use. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Evict(ctx context.Context, key string) error
	// EvictPrefix drops every key starting with prefix.
	EvictPrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}

const (
	prefixResolution = "resolve:"
	prefixImage      = "image:"
)

// ResolutionKey is the cache key of a qrId -> target resolution.
func ResolutionKey(qrID string) string {
	return prefixResolution + qrID
}

// ImageKey is the cache key of one rendered image.
func ImageKey(qrID, fingerprint string) string {
	return ImagePrefix(qrID) + fingerprint
}

// ImagePrefix matches every rendered image of qrID.
func ImagePrefix(qrID string) string {
	return prefixImage + qrID + ":"
}
