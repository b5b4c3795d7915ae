// Package memory is an in-process Store used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
)

// Store keeps mappings, events and applications in maps guarded by one RWMutex.
// Returned values are copies; callers never alias internal state.
type Store struct {
	mu           sync.RWMutex
	mappings     map[int64]*domain.Mapping // ID -> Mapping
	byQrID       map[string]int64          // qrId -> ID, never shrinks
	events       []*domain.RedirectEvent
	applications map[int64]*domain.Application
	nextID       int64
	nextEventID  int64
	nextAppID    int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		mappings:     make(map[int64]*domain.Mapping),
		byQrID:       make(map[string]int64),
		applications: make(map[int64]*domain.Application),
	}
}

// ─────────────────────────────────────────────────────────────────
// Mappings
// ─────────────────────────────────────────────────────────────────

func (s *Store) FindActiveByQrID(_ context.Context, qrID string) (*domain.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.lookupQrID(qrID)
	if !ok || !m.IsActive {
		return nil, domain.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Store) FindByQrID(_ context.Context, qrID string) (*domain.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.lookupQrID(qrID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Store) FindByID(_ context.Context, id int64) (*domain.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mappings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Store) ExistsByQrID(_ context.Context, qrID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byQrID[qrID]
	return ok, nil
}

// Insert enforces the unique qrId constraint the way a unique index would.
func (s *Store) Insert(_ context.Context, m *domain.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byQrID[m.QrID]; taken {
		return domain.ErrDuplicateQrID
	}

	s.nextID++
	m.ID = s.nextID
	s.mappings[m.ID] = m.Clone()
	s.byQrID[m.QrID] = m.ID
	return nil
}

func (s *Store) UpdateFields(_ context.Context, id int64, patch domain.MappingPatch, at time.Time) (*domain.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mappings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	patch.Apply(m, at)
	return m.Clone(), nil
}

func (s *Store) CountActive(ctx context.Context) (int64, error) {
	return s.CountByStatus(ctx, true)
}

func (s *Store) CountByStatus(_ context.Context, active bool) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, m := range s.mappings {
		if m.IsActive == active {
			n++
		}
	}
	return n, nil
}

func (s *Store) Search(_ context.Context, q domain.SearchQuery) (*domain.Page, error) {
	q = q.Normalize()
	needle := strings.ToLower(q.Text)

	s.mu.RLock()
	matched := make([]*domain.Mapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		if !q.IncludeInactive && !m.IsActive {
			continue
		}
		if q.CreatedBy != "" && m.CreatedBy != q.CreatedBy {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(m.QrID), needle) &&
			!strings.Contains(strings.ToLower(m.Description), needle) {
			continue
		}
		matched = append(matched, m.Clone())
	}
	s.mu.RUnlock()

	sortMappings(matched, q.SortBy, q.SortDesc)

	total := int64(len(matched))
	start := q.Page * q.Size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Size
	if end > len(matched) {
		end = len(matched)
	}
	return domain.NewPage(matched[start:end], q.Page, q.Size, total), nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]*domain.Mapping, error) {
	page, err := s.Search(ctx, domain.SearchQuery{Size: limit})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// ─────────────────────────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────────────────────────

func (s *Store) AppendEvent(_ context.Context, e *domain.RedirectEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	e.ID = s.nextEventID
	c := *e
	s.events = append(s.events, &c)
	return nil
}

func (s *Store) CountEvents(_ context.Context, f domain.EventFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if f.Matches(e) {
			n++
		}
	}
	return n, nil
}

func (s *Store) TopByEventCount(_ context.Context, n int) ([]domain.QrCount, error) {
	s.mu.RLock()
	counts := make(map[string]int64)
	for _, e := range s.events {
		if e.Success {
			counts[e.QrID]++
		}
	}
	s.mu.RUnlock()

	ranked := make([]domain.QrCount, 0, len(counts))
	for id, c := range counts {
		ranked = append(ranked, domain.QrCount{QrID: id, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].QrID < ranked[j].QrID
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

func (s *Store) ListEvents(_ context.Context, qrID string, limit int) ([]*domain.RedirectEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.RedirectEvent, 0)
	for _, e := range s.events {
		if e.QrID == qrID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RedirectTime.After(out[j].RedirectTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────
// Applications
// ─────────────────────────────────────────────────────────────────

func (s *Store) FindApplicationByID(_ context.Context, id int64) (*domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.applications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *a
	return &c, nil
}

// InsertApplication upserts by name, like the unique index on applications.name.
func (s *Store) InsertApplication(_ context.Context, a *domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.applications {
		if existing.Name == a.Name {
			a.ID = id
			a.CreatedAt = existing.CreatedAt
			c := *a
			s.applications[id] = &c
			return nil
		}
	}

	if a.ID == 0 {
		s.nextAppID++
		a.ID = s.nextAppID
	} else if a.ID > s.nextAppID {
		s.nextAppID = a.ID
	}
	c := *a
	s.applications[a.ID] = &c
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) lookupQrID(qrID string) (*domain.Mapping, bool) {
	id, ok := s.byQrID[qrID]
	if !ok {
		return nil, false
	}
	m, ok := s.mappings[id]
	return m, ok
}

func sortMappings(ms []*domain.Mapping, by string, desc bool) {
	less := func(a, b *domain.Mapping) bool {
		switch by {
		case domain.SortQrID:
			return a.QrID < b.QrID
		case domain.SortUpdatedAt:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	}
	sort.Slice(ms, func(i, j int) bool {
		if desc {
			return less(ms[j], ms[i])
		}
		return less(ms[i], ms[j])
	})
}
