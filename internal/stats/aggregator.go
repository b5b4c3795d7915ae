// Package stats derives counters and rankings from the store on demand.
package stats

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
)

const (
	DefaultTopN = 10
	MaxTopN     = 100
)

// Source is the read-only store surface the aggregator queries.
type Source interface {
	CountActive(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, active bool) (int64, error)
	CountEvents(ctx context.Context, f domain.EventFilter) (int64, error)
	TopByEventCount(ctx context.Context, n int) ([]domain.QrCount, error)
	ListEvents(ctx context.Context, qrID string, limit int) ([]*domain.RedirectEvent, error)
}

// Summary is the dashboard view.
type Summary struct {
	TotalMappings       int64 `json:"totalQrCodes"`
	ActiveMappings      int64 `json:"activeQrCodes"`
	InactiveMappings    int64 `json:"inactiveQrCodes"`
	TotalRedirects      int64 `json:"totalScans"`
	SuccessfulRedirects int64 `json:"successfulScans"`
	FailedRedirects     int64 `json:"failedScans"`
}

// Aggregator has no state of its own.
type Aggregator struct {
	src Source
}

func New(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// Summary runs every count independently; the result is as fresh as the slowest query.
func (a *Aggregator) Summary(ctx context.Context) (*Summary, error) {
	active, err := a.src.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active mappings: %w", err)
	}
	inactive, err := a.src.CountByStatus(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to count inactive mappings: %w", err)
	}

	ok, failed := true, false
	succeeded, err := a.src.CountEvents(ctx, domain.EventFilter{Success: &ok})
	if err != nil {
		return nil, fmt.Errorf("failed to count successful redirects: %w", err)
	}
	failures, err := a.src.CountEvents(ctx, domain.EventFilter{Success: &failed})
	if err != nil {
		return nil, fmt.Errorf("failed to count failed redirects: %w", err)
	}

	return &Summary{
		TotalMappings:       active + inactive,
		ActiveMappings:      active,
		InactiveMappings:    inactive,
		TotalRedirects:      succeeded + failures,
		SuccessfulRedirects: succeeded,
		FailedRedirects:     failures,
	}, nil
}

// RedirectCount is the number of successful redirects of qrID.
func (a *Aggregator) RedirectCount(ctx context.Context, qrID string) (int64, error) {
	ok := true
	n, err := a.src.CountEvents(ctx, domain.EventFilter{QrID: qrID, Success: &ok})
	if err != nil {
		return 0, fmt.Errorf("failed to count redirects of %s: %w", qrID, err)
	}
	return n, nil
}

// Top ranks identifiers by successful redirects. n is clamped to 1..MaxTopN.
func (a *Aggregator) Top(ctx context.Context, n int) ([]domain.QrCount, error) {
	n = clamp(n, DefaultTopN, MaxTopN)
	top, err := a.src.TopByEventCount(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to rank qr codes: %w", err)
	}
	if top == nil {
		top = []domain.QrCount{}
	}
	return top, nil
}

// RecentEvents lists the latest attempts for qrID, newest first.
func (a *Aggregator) RecentEvents(ctx context.Context, qrID string, limit int) ([]*domain.RedirectEvent, error) {
	limit = clamp(limit, 20, MaxTopN)
	events, err := a.src.ListEvents(ctx, qrID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events of %s: %w", qrID, err)
	}
	return events, nil
}

func clamp(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
