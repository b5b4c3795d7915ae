package domain

import "strings"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Sort fields accepted by Search.
const (
	SortCreatedAt = "createdAt"
	SortUpdatedAt = "updatedAt"
	SortQrID      = "qrId"
)

// SearchQuery drives list and search. Text is matched case-insensitively as a
// substring of qrId or description.
type SearchQuery struct {
	Text            string
	CreatedBy       string
	IncludeInactive bool

	Page int
	Size int

	SortBy   string
	SortDesc bool
}

// Normalize clamps paging and fills the default sort.
func (q SearchQuery) Normalize() SearchQuery {
	q.Text = strings.TrimSpace(q.Text)
	q.CreatedBy = strings.TrimSpace(q.CreatedBy)
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Size <= 0 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	switch q.SortBy {
	case SortCreatedAt, SortUpdatedAt, SortQrID:
	default:
		q.SortBy = SortCreatedAt
		q.SortDesc = true
	}
	return q
}

// Page is one slice of a paginated result.
type Page struct {
	Items       []*Mapping
	Page        int
	Size        int
	Total       int64
	TotalPages  int
	HasNext     bool
	HasPrevious bool
}

// NewPage computes the derived paging fields.
func NewPage(items []*Mapping, page, size int, total int64) *Page {
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	if items == nil {
		items = []*Mapping{}
	}
	return &Page{
		Items:       items,
		Page:        page,
		Size:        size,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page+1 < totalPages,
		HasPrevious: page > 0,
	}
}
