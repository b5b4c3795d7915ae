package domain

import "time"

// Mapping is the persisted association between a public qrId and the URL
// it redirects to.
//
// A Mapping is uniquely identified by its QrID. Rows are never removed:
// "delete" flips IsActive and the identifier stays reserved forever.
type Mapping struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the store-assigned surrogate key used by operator flows.
	ID int64

	// QrID is the short public identifier embedded in the printed code.
	// Example: PROMO-3F9A0C1B
	QrID string

	// ─────────────────────────────
	// Redirect target (mutable)
	// ─────────────────────────────

	// TargetURL is where a scan is redirected to.
	TargetURL string

	// Description is free text shown to operators. Optional.
	Description string

	// ApplicationID is a weak reference to the owning Application. May be nil.
	ApplicationID *int64

	// ─────────────────────────────
	// Provenance
	// ─────────────────────────────

	// CreatedBy records who issued the mapping.
	CreatedBy string

	// CreatedAt is set once at insert time.
	CreatedAt time.Time

	// UpdatedAt is bumped on every mutation.
	UpdatedAt time.Time

	// ─────────────────────────────
	// Liveness
	// ─────────────────────────────

	// IsActive is the soft-delete flag.
	IsActive bool
}

// MappingPatch is a field-level partial update. Nil fields are left untouched.
type MappingPatch struct {
	TargetURL     *string
	Description   *string
	ApplicationID *int64
	IsActive      *bool
}

// Empty reports whether the patch changes nothing.
func (p MappingPatch) Empty() bool {
	return p.TargetURL == nil && p.Description == nil && p.ApplicationID == nil && p.IsActive == nil
}

// Apply copies the patch onto m and bumps UpdatedAt.
func (p MappingPatch) Apply(m *Mapping, at time.Time) {
	if p.TargetURL != nil {
		m.TargetURL = *p.TargetURL
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.ApplicationID != nil {
		id := *p.ApplicationID
		m.ApplicationID = &id
	}
	if p.IsActive != nil {
		m.IsActive = *p.IsActive
	}
	m.UpdatedAt = at
}

// Clone returns a deep copy so callers never share pointers with a store.
func (m *Mapping) Clone() *Mapping {
	if m == nil {
		return nil
	}
	c := *m
	if m.ApplicationID != nil {
		id := *m.ApplicationID
		c.ApplicationID = &id
	}
	return &c
}

// Application is an optional grouping that mappings may point to.
// Its lifecycle is owned outside the redirect engine.
type Application struct {
	ID           int64
	Name         string
	BaseURL      string
	Description  string
	ContactEmail string
	IsActive     bool
	CreatedAt    time.Time
}
