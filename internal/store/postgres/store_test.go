package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
)

var (
	cols = []string{"id", "qr_id", "target_url", "application_id", "description", "created_by", "created_at", "updated_at", "is_active"}
	ts   = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *Store) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mock, New(db)
}

func TestFindActiveByQrID(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`SELECT .+ FROM qr_codes WHERE qr_id = \$1 AND is_active = TRUE`).
		WithArgs("ABCD1234").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(7, "ABCD1234", "https://example.com/a", int64(3), "flyer", "ops", ts, ts, true))

	m, err := s.FindActiveByQrID(context.Background(), "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.ID)
	assert.Equal(t, "https://example.com/a", m.TargetURL)
	require.NotNil(t, m.ApplicationID)
	assert.Equal(t, int64(3), *m.ApplicationID)
	assert.True(t, m.IsActive)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveByQrIDNotFound(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`SELECT .+ FROM qr_codes WHERE qr_id = \$1 AND is_active = TRUE`).
		WithArgs("NOPE0000").
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindActiveByQrID(context.Background(), "NOPE0000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsByQrIDIncludesInactive(t *testing.T) {
	mock, s := setupMockDB(t)

	// No is_active predicate: retired ids stay reserved.
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM qr_codes WHERE qr_id = \$1\)`).
		WithArgs("ABCD1234").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.ExistsByQrID(context.Background(), "ABCD1234")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert(t *testing.T) {
	mock, s := setupMockDB(t)
	m := &domain.Mapping{QrID: "ABCD1234", TargetURL: "https://example.com", CreatedBy: "ops", CreatedAt: ts, UpdatedAt: ts, IsActive: true}

	mock.ExpectQuery(`INSERT INTO qr_codes`).
		WithArgs("ABCD1234", "https://example.com", nil, "", "ops", ts, ts, true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	require.NoError(t, s.Insert(context.Background(), m))
	assert.Equal(t, int64(42), m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUniqueViolation(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO qr_codes`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "qr_codes_qr_id_key"})

	err := s.Insert(context.Background(), &domain.Mapping{QrID: "ABCD1234"})
	assert.ErrorIs(t, err, domain.ErrDuplicateQrID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOtherError(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO qr_codes`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.NotNullViolation})

	err := s.Insert(context.Background(), &domain.Mapping{QrID: "ABCD1234"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDuplicateQrID)
}

func TestUpdateFields(t *testing.T) {
	mock, s := setupMockDB(t)
	url := "https://example.com/b"
	inactive := false

	mock.ExpectQuery(`UPDATE qr_codes SET target_url = \$1, is_active = \$2, updated_at = \$3 WHERE id = \$4 RETURNING`).
		WithArgs(url, false, ts, int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(7, "ABCD1234", url, nil, "", "ops", ts, ts, false))

	m, err := s.UpdateFields(context.Background(), 7, domain.MappingPatch{TargetURL: &url, IsActive: &inactive}, ts)
	require.NoError(t, err)
	assert.Equal(t, url, m.TargetURL)
	assert.False(t, m.IsActive)
	assert.Nil(t, m.ApplicationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFieldsNotFound(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`UPDATE qr_codes SET updated_at = \$1 WHERE id = \$2`).
		WithArgs(ts, int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.UpdateFields(context.Background(), 99, domain.MappingPatch{}, ts)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearch(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM qr_codes WHERE is_active = TRUE AND \(LOWER\(qr_id\) LIKE \$1 OR LOWER\(COALESCE\(description, ''\)\) LIKE \$1\)`).
		WithArgs(`%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT .+ FROM qr_codes WHERE .+ ORDER BY created_at DESC, id DESC LIMIT \$2 OFFSET \$3`).
		WithArgs(`%50\%%`, 2, 2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, "SALE-AAAA0003", "https://example.com", nil, "50% off", "ops", ts, ts, true))

	page, err := s.Search(context.Background(), domain.SearchQuery{Text: "50%", Page: 1, Size: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrevious)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchCreatedByIncludeInactive(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM qr_codes WHERE created_by = \$1$`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY qr_id ASC, id ASC LIMIT \$2 OFFSET \$3`).
		WithArgs("alice", 20, 0).
		WillReturnRows(sqlmock.NewRows(cols))

	page, err := s.Search(context.Background(), domain.SearchQuery{CreatedBy: "alice", IncludeInactive: true, SortBy: domain.SortQrID})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountEvents(t *testing.T) {
	mock, s := setupMockDB(t)
	ok := true

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM qr_redirect_logs WHERE qr_id = \$1 AND success = \$2`).
		WithArgs("ABCD1234", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	n, err := s.CountEvents(context.Background(), domain.EventFilter{QrID: "ABCD1234", Success: &ok})
	require.NoError(t, err)
	assert.EqualValues(t, 12, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopByEventCount(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`SELECT qr_id, COUNT\(\*\) AS hits\s+FROM qr_redirect_logs\s+WHERE success = TRUE`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"qr_id", "hits"}).
			AddRow("AAAA0001", 9).
			AddRow("BBBB0001", 4))

	top, err := s.TopByEventCount(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []domain.QrCount{{QrID: "AAAA0001", Count: 9}, {QrID: "BBBB0001", Count: 4}}, top)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEvent(t *testing.T) {
	mock, s := setupMockDB(t)
	e := &domain.RedirectEvent{QrID: "NOPE0000", IPAddress: "203.0.113.9", UserAgent: "curl", RedirectTime: ts}

	mock.ExpectQuery(`INSERT INTO qr_redirect_logs`).
		WithArgs("NOPE0000", "203.0.113.9", "curl", ts, nil, false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	require.NoError(t, s.AppendEvent(context.Background(), e))
	assert.Equal(t, int64(5), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEventError(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO qr_redirect_logs`).WillReturnError(errors.New("connection reset"))

	err := s.AppendEvent(context.Background(), &domain.RedirectEvent{QrID: "ABCD1234"})
	assert.ErrorContains(t, err, "connection reset")
}

func TestListEvents(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`FROM qr_redirect_logs\s+WHERE qr_id = \$1\s+ORDER BY redirect_time DESC`).
		WithArgs("ABCD1234", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "qr_id", "ip_address", "user_agent", "redirect_time", "target_url", "success"}).
			AddRow(2, "ABCD1234", "198.51.100.1", "ua", ts.Add(time.Minute), "https://example.com", true).
			AddRow(1, "ABCD1234", "198.51.100.1", "ua", ts, nil, false))

	events, err := s.ListEvents(context.Background(), "ABCD1234", 5)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].TargetURL)
	assert.Nil(t, events[1].TargetURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindApplicationByID(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`FROM applications WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "base_url", "description", "contact_email", "is_active", "created_at"}).
			AddRow(3, "marketing", "https://marketing.example.com", "", "", true, ts))

	a, err := s.FindApplicationByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "marketing", a.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertApplicationUpserts(t *testing.T) {
	mock, s := setupMockDB(t)
	a := &domain.Application{Name: "marketing", IsActive: true}

	mock.ExpectQuery(`INSERT INTO applications .+ ON CONFLICT \(name\) DO UPDATE`).
		WithArgs("marketing", "", "", "", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, ts))

	require.NoError(t, s.InsertApplication(context.Background(), a))
	assert.Equal(t, int64(3), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"50%":     `50\%`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range tests {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}
