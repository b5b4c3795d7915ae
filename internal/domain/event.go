package domain

import "time"

// RedirectEvent is an append-only audit record of one resolution attempt.
type RedirectEvent struct {
	ID        int64
	QrID      string
	IPAddress string
	UserAgent string

	// TargetURL is nil when resolution failed.
	TargetURL *string
	Success   bool

	RedirectTime time.Time
}

// EventFilter narrows CountEvents. Zero values mean "any".
type EventFilter struct {
	QrID    string
	Success *bool
	From    time.Time
	To      time.Time
}

// Matches reports whether e passes the filter. From is inclusive, To exclusive.
func (f EventFilter) Matches(e *RedirectEvent) bool {
	if f.QrID != "" && e.QrID != f.QrID {
		return false
	}
	if f.Success != nil && e.Success != *f.Success {
		return false
	}
	if !f.From.IsZero() && e.RedirectTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.RedirectTime.Before(f.To) {
		return false
	}
	return true
}

// QrCount pairs an identifier with a redirect count.
type QrCount struct {
	QrID  string `json:"qrId"`
	Count int64  `json:"count"`
}
