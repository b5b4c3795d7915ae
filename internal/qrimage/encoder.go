// Package qrimage renders the QR bitmap of a qrId. The payload is always the
// redirect endpoint, never the target URL, so printed codes survive retargeting.
package qrimage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/cache"
	"github.com/MrSnakeDoc/qrlink/internal/domain"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
	"github.com/MrSnakeDoc/qrlink/internal/resolver"
)

// DefaultTTL for rendered images.
const DefaultTTL = time.Hour

// Image is an encoded bitmap ready to be served.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
	ETag        string
	Fingerprint string
}

// ActiveChecker confirms an identifier still resolves.
type ActiveChecker interface {
	Resolve(ctx context.Context, qrID string) (*resolver.Resolution, error)
}

// Encoder renders and caches images by (qrId, style fingerprint).
type Encoder struct {
	active  ActiveChecker
	cache   cache.Cache
	baseURL string
	ttl     time.Duration
	logger  logger.Logger
}

// New creates an Encoder. baseURL is the public origin the redirect is served from.
func New(active ActiveChecker, c cache.Cache, baseURL string, ttl time.Duration, log logger.Logger) *Encoder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Encoder{
		active:  active,
		cache:   c,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		logger:  log,
	}
}

// Payload is the string encoded into the code of qrID.
func (e *Encoder) Payload(qrID string) string {
	return e.baseURL + "/redirect?qr_id=" + url.QueryEscape(qrID)
}

// Render returns domain.ErrNotFound when qrID is not active (checked first),
// domain.ErrInvalidStyle for out-of-range styles and domain.ErrEncodingFailure
// when the payload cannot be encoded. The image is Size pixels square unless
// the code plus margin needs more, in which case it is one pixel per module.
func (e *Encoder) Render(ctx context.Context, qrID string, style Style) (*Image, error) {
	if _, err := e.active.Resolve(ctx, qrID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	style = style.Normalize()
	if err := style.Validate(); err != nil {
		return nil, err
	}

	fp := style.Fingerprint()
	key := cache.ImageKey(qrID, fp)

	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("image cache lookup failed", logger.String("qr_id", qrID), logger.Error(err))
	}
	if !ok {
		data, err = e.encode(qrID, style)
		if err != nil {
			e.logger.Error("failed to render qr image",
				logger.String("qr_id", qrID),
				logger.String("style", style.Canonical()),
				logger.Error(err))
			return nil, err
		}
		if err := e.cache.Put(ctx, key, data, e.ttl); err != nil {
			e.logger.Warn("failed to cache image", logger.String("qr_id", qrID), logger.Error(err))
		}
	}

	return &Image{
		Data:        data,
		ContentType: style.ContentType(),
		Extension:   style.Extension(),
		ETag:        etag(data),
		Fingerprint: fp,
	}, nil
}

// InvalidateImages drops every cached render of qrID.
func (e *Encoder) InvalidateImages(ctx context.Context, qrID string) error {
	if err := e.cache.EvictPrefix(ctx, cache.ImagePrefix(qrID)); err != nil {
		return fmt.Errorf("%w: images of %s: %v", domain.ErrCacheInvalidation, qrID, err)
	}
	return nil
}

func (e *Encoder) encode(qrID string, style Style) ([]byte, error) {
	modules, err := matrix(e.Payload(qrID), style.ErrorCorrection)
	if err != nil {
		return nil, err
	}
	img, err := rasterize(modules, style)
	if err != nil {
		return nil, err
	}
	return encode(img, style.Format)
}

func etag(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
