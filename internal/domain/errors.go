package domain

import "errors"

var (
	// ErrNotFound covers both unknown and inactive identifiers.
	ErrNotFound = errors.New("qr mapping not found")

	// ErrGenerationExhausted means every candidate identifier collided.
	ErrGenerationExhausted = errors.New("qr id generation exhausted")

	ErrInvalidStyle    = errors.New("invalid style")
	ErrEncodingFailure = errors.New("qr encoding failed")

	// ErrLoggingFailure is only ever logged, never returned to callers.
	ErrLoggingFailure = errors.New("audit logging failed")

	// ErrDuplicateQrID is returned by stores when the unique index on qr_id rejects an insert.
	ErrDuplicateQrID = errors.New("duplicate qr id")

	ErrInvalidPrefix     = errors.New("invalid qr id prefix")
	ErrInvalidTargetURL  = errors.New("invalid target url")
	ErrMappingInactive   = errors.New("qr mapping is inactive")
	ErrCacheInvalidation = errors.New("cache invalidation failed")
)
