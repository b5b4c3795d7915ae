// Package postgres implements store.Store on PostgreSQL through database/sql
// and the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/MrSnakeDoc/qrlink/internal/domain"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
	"github.com/MrSnakeDoc/qrlink/internal/utils"
)

const mappingColumns = `id, qr_id, target_url, application_id, COALESCE(description, ''), created_by, created_at, updated_at, is_active`

// Store is safe for concurrent use; *sql.DB pools connections.
type Store struct {
	db *sql.DB
}

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Retry is applied to the initial ping. A zero value pings once.
	Retry utils.Backoff
}

// Open connects to dsn and waits for the database to answer.
func Open(ctx context.Context, dsn string, opts Options, log logger.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.Retry.Total > 0 {
		if _, err := utils.WaitUntilReady(ctx, "postgres", opts.Retry, log, db.PingContext); err != nil {
			_ = db.Close()
			return nil, err
		}
	} else if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for migrations.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

// ─────────────────────────────────────────────────────────────────
// Mappings
// ─────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (*domain.Mapping, error) {
	var (
		m     domain.Mapping
		appID sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.QrID, &m.TargetURL, &appID, &m.Description, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt, &m.IsActive); err != nil {
		return nil, err
	}
	if appID.Valid {
		id := appID.Int64
		m.ApplicationID = &id
	}
	return &m, nil
}

func (s *Store) findOne(ctx context.Context, where string, args ...any) (*domain.Mapping, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mappingColumns+` FROM qr_codes WHERE `+where, args...)
	m, err := scanMapping(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query mapping: %w", err)
	}
	return m, nil
}

func (s *Store) FindActiveByQrID(ctx context.Context, qrID string) (*domain.Mapping, error) {
	return s.findOne(ctx, `qr_id = $1 AND is_active = TRUE`, qrID)
}

func (s *Store) FindByQrID(ctx context.Context, qrID string) (*domain.Mapping, error) {
	return s.findOne(ctx, `qr_id = $1`, qrID)
}

func (s *Store) FindByID(ctx context.Context, id int64) (*domain.Mapping, error) {
	return s.findOne(ctx, `id = $1`, id)
}

func (s *Store) ExistsByQrID(ctx context.Context, qrID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM qr_codes WHERE qr_id = $1)`, qrID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check qr id: %w", err)
	}
	return exists, nil
}

func (s *Store) Insert(ctx context.Context, m *domain.Mapping) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO qr_codes (qr_id, target_url, application_id, description, created_by, created_at, updated_at, is_active)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
		RETURNING id`,
		m.QrID, m.TargetURL, nullableID(m.ApplicationID), m.Description, m.CreatedBy, m.CreatedAt, m.UpdatedAt, m.IsActive,
	).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateQrID, m.QrID)
		}
		return fmt.Errorf("failed to insert mapping: %w", err)
	}
	return nil
}

func (s *Store) UpdateFields(ctx context.Context, id int64, patch domain.MappingPatch, at time.Time) (*domain.Mapping, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}

	if patch.TargetURL != nil {
		add("target_url", *patch.TargetURL)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.ApplicationID != nil {
		add("application_id", *patch.ApplicationID)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	add("updated_at", at)
	args = append(args, id)

	query := `UPDATE qr_codes SET ` + strings.Join(sets, ", ") +
		` WHERE id = $` + strconv.Itoa(len(args)) + ` RETURNING ` + mappingColumns

	m, err := scanMapping(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update mapping: %w", err)
	}
	return m, nil
}

func (s *Store) CountActive(ctx context.Context) (int64, error) {
	return s.CountByStatus(ctx, true)
}

func (s *Store) CountByStatus(ctx context.Context, active bool) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM qr_codes WHERE is_active = $1`, active).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count mappings: %w", err)
	}
	return n, nil
}

var sortColumns = map[string]string{
	domain.SortCreatedAt: "created_at",
	domain.SortUpdatedAt: "updated_at",
	domain.SortQrID:      "qr_id",
}

func (s *Store) Search(ctx context.Context, q domain.SearchQuery) (*domain.Page, error) {
	q = q.Normalize()

	var (
		conds []string
		args  []any
	)
	if !q.IncludeInactive {
		conds = append(conds, "is_active = TRUE")
	}
	if q.CreatedBy != "" {
		args = append(args, q.CreatedBy)
		conds = append(conds, "created_by = $"+strconv.Itoa(len(args)))
	}
	if q.Text != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(q.Text))+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(LOWER(qr_id) LIKE $"+n+" OR LOWER(COALESCE(description, '')) LIKE $"+n+")")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM qr_codes`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}
	args = append(args, q.Size, q.Page*q.Size)
	query := `SELECT ` + mappingColumns + ` FROM qr_codes` + where +
		` ORDER BY ` + sortColumns[q.SortBy] + ` ` + dir + `, id ` + dir +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	items, err := s.queryMappings(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return domain.NewPage(items, q.Page, q.Size, total), nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]*domain.Mapping, error) {
	return s.queryMappings(ctx,
		`SELECT `+mappingColumns+` FROM qr_codes WHERE is_active = TRUE ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

func (s *Store) queryMappings(ctx context.Context, query string, args ...any) ([]*domain.Mapping, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer utils.Close(rows)

	var out []*domain.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mappings: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────────────────────────

func (s *Store) AppendEvent(ctx context.Context, e *domain.RedirectEvent) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO qr_redirect_logs (qr_id, ip_address, user_agent, redirect_time, target_url, success)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		e.QrID, truncate(e.IPAddress, 45), e.UserAgent, e.RedirectTime, nullableString(e.TargetURL), e.Success,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to append redirect event: %w", err)
	}
	return nil
}

func (s *Store) CountEvents(ctx context.Context, f domain.EventFilter) (int64, error) {
	var (
		conds []string
		args  []any
	)
	if f.QrID != "" {
		args = append(args, f.QrID)
		conds = append(conds, "qr_id = $"+strconv.Itoa(len(args)))
	}
	if f.Success != nil {
		args = append(args, *f.Success)
		conds = append(conds, "success = $"+strconv.Itoa(len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		conds = append(conds, "redirect_time >= $"+strconv.Itoa(len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conds = append(conds, "redirect_time < $"+strconv.Itoa(len(args)))
	}
	query := `SELECT COUNT(*) FROM qr_redirect_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count redirect events: %w", err)
	}
	return n, nil
}

func (s *Store) TopByEventCount(ctx context.Context, n int) ([]domain.QrCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT qr_id, COUNT(*) AS hits
		FROM qr_redirect_logs
		WHERE success = TRUE
		GROUP BY qr_id
		ORDER BY hits DESC, qr_id ASC
		LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to rank qr codes: %w", err)
	}
	defer utils.Close(rows)

	out := make([]domain.QrCount, 0, n)
	for rows.Next() {
		var c domain.QrCount
		if err := rows.Scan(&c.QrID, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListEvents(ctx context.Context, qrID string, limit int) ([]*domain.RedirectEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, qr_id, COALESCE(ip_address, ''), COALESCE(user_agent, ''), redirect_time, target_url, success
		FROM qr_redirect_logs
		WHERE qr_id = $1
		ORDER BY redirect_time DESC, id DESC
		LIMIT $2`, qrID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list redirect events: %w", err)
	}
	defer utils.Close(rows)

	var out []*domain.RedirectEvent
	for rows.Next() {
		var (
			e      domain.RedirectEvent
			target sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.QrID, &e.IPAddress, &e.UserAgent, &e.RedirectTime, &target, &e.Success); err != nil {
			return nil, fmt.Errorf("failed to scan redirect event: %w", err)
		}
		if target.Valid {
			t := target.String
			e.TargetURL = &t
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────
// Applications
// ─────────────────────────────────────────────────────────────────

func (s *Store) FindApplicationByID(ctx context.Context, id int64) (*domain.Application, error) {
	var a domain.Application
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(base_url, ''), COALESCE(description, ''), COALESCE(contact_email, ''), is_active, created_at
		FROM applications WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.BaseURL, &a.Description, &a.ContactEmail, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query application: %w", err)
	}
	return &a, nil
}

// InsertApplication upserts by name and sets a.ID.
func (s *Store) InsertApplication(ctx context.Context, a *domain.Application) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO applications (name, base_url, description, contact_email, is_active)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5)
		ON CONFLICT (name) DO UPDATE SET
			base_url = EXCLUDED.base_url,
			description = EXCLUDED.description,
			contact_email = EXCLUDED.contact_email,
			is_active = EXCLUDED.is_active
		RETURNING id, created_at`,
		a.Name, a.BaseURL, a.Description, a.ContactEmail, a.IsActive,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert application %s: %w", a.Name, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
