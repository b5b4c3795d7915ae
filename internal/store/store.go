// Package store defines the persistence contract the redirect engine consumes.
package store

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
)

// Mappings is the mapping half of the store.
type Mappings interface {
	// FindActiveByQrID returns domain.ErrNotFound for unknown or inactive ids.
	FindActiveByQrID(ctx context.Context, qrID string) (*domain.Mapping, error)
	// FindByQrID returns the mapping whatever its status.
	FindByQrID(ctx context.Context, qrID string) (*domain.Mapping, error)
	FindByID(ctx context.Context, id int64) (*domain.Mapping, error)

	// ExistsByQrID includes inactive rows: an id is reserved forever once inserted.
	ExistsByQrID(ctx context.Context, qrID string) (bool, error)

	// Insert assigns m.ID. A qr_id unique violation is reported as domain.ErrDuplicateQrID.
	Insert(ctx context.Context, m *domain.Mapping) error
	UpdateFields(ctx context.Context, id int64, patch domain.MappingPatch, at time.Time) (*domain.Mapping, error)

	CountActive(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, active bool) (int64, error)
	Search(ctx context.Context, q domain.SearchQuery) (*domain.Page, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.Mapping, error)
}

// Events is the append-only audit trail.
type Events interface {
	AppendEvent(ctx context.Context, e *domain.RedirectEvent) error
	CountEvents(ctx context.Context, f domain.EventFilter) (int64, error)
	// TopByEventCount ranks qrIds by successful redirects, ties broken by qrId.
	TopByEventCount(ctx context.Context, n int) ([]domain.QrCount, error)
	ListEvents(ctx context.Context, qrID string, limit int) ([]*domain.RedirectEvent, error)
}

// Applications is read by the core, written by the seed loader.
type Applications interface {
	FindApplicationByID(ctx context.Context, id int64) (*domain.Application, error)
	InsertApplication(ctx context.Context, a *domain.Application) error
}

// Store is the full persistence surface.
type Store interface {
	Mappings
	Events
	Applications

	Ping(ctx context.Context) error
	Close() error
}
