package seed

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
)

const seedCreator = "seed"

// MapApplications converts props to domain applications. Names must be unique.
func MapApplications(props []ApplicationProps, now time.Time) ([]*domain.Application, error) {
	seen := make(map[string]bool, len(props))
	apps := make([]*domain.Application, 0, len(props))
	for i, s := range props {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("applications[%d]: name is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("applications[%d]: duplicate name %q", i, name)
		}
		seen[name] = true

		apps = append(apps, &domain.Application{
			Name:         name,
			BaseURL:      strings.TrimSpace(s.BaseURL),
			Description:  s.Description,
			ContactEmail: s.ContactEmail,
			IsActive:     boolOr(s.Active, true),
			CreatedAt:    now,
		})
	}
	return apps, nil
}

// MapMappings converts props to domain mappings. appIDs maps application names to store ids.
func MapMappings(props []MappingProps, appIDs map[string]int64, now time.Time) ([]*domain.Mapping, error) {
	seen := make(map[string]bool, len(props))
	out := make([]*domain.Mapping, 0, len(props))
	for i, s := range props {
		qrID := strings.ToUpper(strings.TrimSpace(s.QrID))
		if !domain.ValidQrID(qrID) {
			return nil, fmt.Errorf("mappings[%d]: qrId %q does not match [PREFIX-]XXXXXXXX", i, s.QrID)
		}
		if seen[qrID] {
			return nil, fmt.Errorf("mappings[%d]: duplicate qrId %s", i, qrID)
		}
		seen[qrID] = true

		target := strings.TrimSpace(s.TargetURL)
		if err := domain.ValidateTargetURL(target); err != nil {
			return nil, fmt.Errorf("mappings[%d] (%s): %w", i, qrID, err)
		}

		m := &domain.Mapping{
			QrID:        qrID,
			TargetURL:   target,
			Description: strings.TrimSpace(s.Description),
			CreatedBy:   strings.TrimSpace(s.CreatedBy),
			CreatedAt:   now,
			UpdatedAt:   now,
			IsActive:    boolOr(s.Active, true),
		}
		if m.CreatedBy == "" {
			m.CreatedBy = seedCreator
		}
		if s.Application != "" {
			id, ok := appIDs[s.Application]
			if !ok {
				return nil, fmt.Errorf("mappings[%d] (%s): unknown application %q", i, qrID, s.Application)
			}
			m.ApplicationID = &id
		}
		out = append(out, m)
	}
	return out, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
