package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
)

// Target is the store surface a seed is applied to.
type Target interface {
	InsertApplication(ctx context.Context, a *domain.Application) error
	ExistsByQrID(ctx context.Context, qrID string) (bool, error)
	Insert(ctx context.Context, m *domain.Mapping) error
}

// Result summarizes one Apply.
type Result struct {
	Applications int
	Created      int
	Skipped      int
}

// Seeder applies a seed file idempotently: existing qrIds are never touched.
type Seeder struct {
	loader *Loader
	target Target
	logger logger.Logger
	now    func() time.Time
}

func NewSeeder(filePath string, target Target, log logger.Logger) *Seeder {
	return &Seeder{
		loader: NewLoader(filePath),
		target: target,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Apply loads the file and writes what is missing.
func (s *Seeder) Apply(ctx context.Context) (*Result, error) {
	file, err := s.loader.Load()
	if err != nil {
		return nil, err
	}
	return s.ApplyFile(ctx, file)
}

// ApplyFile writes an already parsed seed.
func (s *Seeder) ApplyFile(ctx context.Context, file *File) (*Result, error) {
	now := s.now()
	res := &Result{}

	apps, err := MapApplications(file.Applications, now)
	if err != nil {
		return nil, err
	}
	appIDs := make(map[string]int64, len(apps))
	for _, a := range apps {
		if err := s.target.InsertApplication(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to seed application %s: %w", a.Name, err)
		}
		appIDs[a.Name] = a.ID
		res.Applications++
	}

	mappings, err := MapMappings(file.Mappings, appIDs, now)
	if err != nil {
		return nil, err
	}
	for _, m := range mappings {
		exists, err := s.target.ExistsByQrID(ctx, m.QrID)
		if err != nil {
			return nil, fmt.Errorf("failed to check seeded qr id %s: %w", m.QrID, err)
		}
		if exists {
			res.Skipped++
			continue
		}
		if err := s.target.Insert(ctx, m); err != nil {
			if errors.Is(err, domain.ErrDuplicateQrID) {
				res.Skipped++
				continue
			}
			return nil, fmt.Errorf("failed to seed mapping %s: %w", m.QrID, err)
		}
		res.Created++
	}

	s.logger.Info("seed applied",
		logger.Int("applications", res.Applications),
		logger.Int("created", res.Created),
		logger.Int("skipped", res.Skipped))
	return res, nil
}
