// Package management orchestrates the operator-facing lifecycle of mappings.
// Every successful mutation evicts the affected cache entries before returning.
package management

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
	"github.com/MrSnakeDoc/qrlink/internal/store"
)

const defaultCreatedBy = "system"

// IDGenerator issues fresh identifiers.
type IDGenerator interface {
	Generate(ctx context.Context, prefix string) (string, error)
}

// ResolutionInvalidator evicts cached resolutions.
type ResolutionInvalidator interface {
	Invalidate(ctx context.Context, qrID string) error
}

// ImageInvalidator evicts cached renders.
type ImageInvalidator interface {
	InvalidateImages(ctx context.Context, qrID string) error
}

// Repository is the store surface management needs.
type Repository interface {
	store.Mappings
	FindApplicationByID(ctx context.Context, id int64) (*domain.Application, error)
}

// CreateRequest describes a new mapping.
type CreateRequest struct {
	TargetURL     string
	Description   string
	Prefix        string
	CreatedBy     string
	ApplicationID *int64
}

// Service is the management facade.
type Service struct {
	repo     Repository
	gen      IDGenerator
	resolver ResolutionInvalidator
	images   ImageInvalidator
	logger   logger.Logger
	now      func() time.Time
}

func New(repo Repository, gen IDGenerator, resolver ResolutionInvalidator, images ImageInvalidator, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		gen:      gen,
		resolver: resolver,
		images:   images,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create issues an identifier and persists the mapping. A unique violation at
// insert time counts as a collision: the whole operation is retried once.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Mapping, error) {
	req.TargetURL = strings.TrimSpace(req.TargetURL)
	if err := domain.ValidateTargetURL(req.TargetURL); err != nil {
		return nil, err
	}
	if req.ApplicationID != nil {
		if _, err := s.repo.FindApplicationByID(ctx, *req.ApplicationID); err != nil {
			return nil, fmt.Errorf("application %d: %w", *req.ApplicationID, err)
		}
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		req.CreatedBy = defaultCreatedBy
	}

	for attempt := 1; attempt <= 2; attempt++ {
		m, err := s.create(ctx, req)
		if err == nil {
			s.logger.Info("qr mapping created",
				logger.String("qr_id", m.QrID),
				logger.Int64("id", m.ID),
				logger.String("created_by", m.CreatedBy))
			return m, nil
		}
		if !errors.Is(err, domain.ErrDuplicateQrID) {
			return nil, err
		}
		s.logger.Warn("qr id taken between check and insert, retrying",
			logger.Int("attempt", attempt),
			logger.Error(err))
	}
	return nil, fmt.Errorf("%w: concurrent writers kept claiming the generated id", domain.ErrGenerationExhausted)
}

func (s *Service) create(ctx context.Context, req CreateRequest) (*domain.Mapping, error) {
	qrID, err := s.gen.Generate(ctx, req.Prefix)
	if err != nil {
		return nil, err
	}

	now := s.now()
	m := &domain.Mapping{
		QrID:          qrID,
		TargetURL:     req.TargetURL,
		Description:   strings.TrimSpace(req.Description),
		ApplicationID: req.ApplicationID,
		CreatedBy:     req.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
		IsActive:      true,
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		if errors.Is(err, domain.ErrDuplicateQrID) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert mapping %s: %w", qrID, err)
	}
	return m, nil
}

// Get returns a mapping by surrogate id whatever its status.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Mapping, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByQrID returns active mappings only.
func (s *Service) GetByQrID(ctx context.Context, qrID string) (*domain.Mapping, error) {
	return s.repo.FindActiveByQrID(ctx, qrID)
}

// Search pages through mappings matching q.
func (s *Service) Search(ctx context.Context, q domain.SearchQuery) (*domain.Page, error) {
	page, err := s.repo.Search(ctx, q.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to search mappings: %w", err)
	}
	return page, nil
}

// Recent lists the newest active mappings.
func (s *Service) Recent(ctx context.Context, limit int) ([]*domain.Mapping, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > domain.MaxPageSize {
		limit = domain.MaxPageSize
	}
	return s.repo.ListRecent(ctx, limit)
}

// Update applies a partial update. Inactive mappings only accept reactivation.
func (s *Service) Update(ctx context.Context, id int64, patch domain.MappingPatch) (*domain.Mapping, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.TargetURL != nil {
		u := strings.TrimSpace(*patch.TargetURL)
		if err := domain.ValidateTargetURL(u); err != nil {
			return nil, err
		}
		patch.TargetURL = &u
	}
	if patch.ApplicationID != nil {
		if _, err := s.repo.FindApplicationByID(ctx, *patch.ApplicationID); err != nil {
			return nil, fmt.Errorf("application %d: %w", *patch.ApplicationID, err)
		}
	}
	reactivating := patch.IsActive != nil && *patch.IsActive
	if !current.IsActive && !reactivating {
		return nil, domain.ErrMappingInactive
	}
	if patch.Empty() {
		return current, nil
	}

	updated, err := s.repo.UpdateFields(ctx, id, patch, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update mapping %d: %w", id, err)
	}

	deactivated := current.IsActive && !updated.IsActive
	if err := s.invalidate(ctx, updated.QrID, deactivated); err != nil {
		return nil, err
	}

	s.logger.Info("qr mapping updated",
		logger.String("qr_id", updated.QrID),
		logger.Bool("active", updated.IsActive))
	return updated, nil
}

// Deactivate soft-deletes a mapping. changed is false when it was already inactive.
func (s *Service) Deactivate(ctx context.Context, id int64) (bool, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return s.setActive(ctx, m, false)
}

// DeactivateByQrID is Deactivate addressed by public identifier.
func (s *Service) DeactivateByQrID(ctx context.Context, qrID string) (bool, error) {
	m, err := s.repo.FindByQrID(ctx, qrID)
	if err != nil {
		return false, err
	}
	return s.setActive(ctx, m, false)
}

// Reactivate undoes a deactivation. changed is false when it was already active.
func (s *Service) Reactivate(ctx context.Context, id int64) (bool, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return s.setActive(ctx, m, true)
}

func (s *Service) setActive(ctx context.Context, m *domain.Mapping, active bool) (bool, error) {
	if m.IsActive == active {
		return false, nil
	}
	if _, err := s.repo.UpdateFields(ctx, m.ID, domain.MappingPatch{IsActive: &active}, s.now()); err != nil {
		return false, fmt.Errorf("failed to update mapping %s: %w", m.QrID, err)
	}
	if err := s.invalidate(ctx, m.QrID, !active); err != nil {
		return false, err
	}

	s.logger.Info("qr mapping status changed",
		logger.String("qr_id", m.QrID),
		logger.Bool("active", active))
	return true, nil
}

// invalidate evicts the resolution, and on deactivation the rendered images.
// A failure here means the caller must not acknowledge success.
func (s *Service) invalidate(ctx context.Context, qrID string, deactivated bool) error {
	if err := s.resolver.Invalidate(ctx, qrID); err != nil {
		s.logger.Error("cache invalidation failed after mutation",
			logger.String("qr_id", qrID),
			logger.Error(err))
		return err
	}
	if deactivated && s.images != nil {
		if err := s.images.InvalidateImages(ctx, qrID); err != nil {
			s.logger.Error("image cache invalidation failed after deactivation",
				logger.String("qr_id", qrID),
				logger.Error(err))
			return err
		}
	}
	return nil
}
