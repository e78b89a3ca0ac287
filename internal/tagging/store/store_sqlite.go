package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Register the pure-Go sqlite driver.
	_ "modernc.org/sqlite"

	"tagd/internal/tagging/models"
	"tagd/pkg/platform/sentinel"
)

// sqliteSchema mirrors the postgres schema with SQLite types. Timestamps
// are unix seconds; link ids are uuid strings.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tagging_tags (
		slug        TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tagging_links (
		id           TEXT PRIMARY KEY,
		subject_type TEXT NOT NULL,
		subject_id   TEXT NOT NULL,
		tag_slug     TEXT NOT NULL,
		tag_name     TEXT NOT NULL,
		created_at   INTEGER NOT NULL,
		UNIQUE (subject_type, subject_id, tag_slug)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tagging_links_slug ON tagging_links (tag_slug)`,
	`CREATE INDEX IF NOT EXISTS idx_tagging_links_subject ON tagging_links (subject_type, subject_id)`,
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// applies the connection pragmas: WAL keeps readers unblocked during
// writes, the busy timeout rides out short lock contention instead of
// failing with "database is locked".
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`PRAGMA synchronous=NORMAL`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	return db, nil
}

// SQLite implements Store over modernc.org/sqlite, the in-process backend
// for tagctl. Same Querier construction as Postgres.
type SQLite struct {
	q Querier
}

var _ Store = (*SQLite)(nil)

func NewSQLite(q Querier) *SQLite {
	return &SQLite{q: q}
}

// EnsureSchema creates the tagging tables and indexes if absent.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tagging schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) InsertLink(ctx context.Context, link models.Link) (bool, error) {
	query := `
		INSERT OR IGNORE INTO tagging_links (id, subject_type, subject_id, tag_slug, tag_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := s.q.ExecContext(ctx, query,
		link.ID.String(),
		link.Subject.Type,
		link.Subject.ID,
		link.Slug,
		link.Name,
		link.CreatedAt.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("insert link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert link rows affected: %w", err)
	}
	return affected == 1, nil
}

func (s *SQLite) DeleteLinks(ctx context.Context, subject models.SubjectRef, slugs []string) ([]models.Link, error) {
	if slugs != nil && len(slugs) == 0 {
		return nil, nil
	}

	where := `subject_type = ? AND subject_id = ?`
	args := []any{subject.Type, subject.ID}
	if slugs != nil {
		where += ` AND tag_slug IN (` + placeholders(len(slugs)) + `)`
		for _, slug := range slugs {
			args = append(args, slug)
		}
	}

	// Select-then-delete instead of RETURNING keeps both statements
	// trivial; mutations always run inside SQLTx so the pair is atomic.
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, tag_slug, tag_name, created_at FROM tagging_links WHERE `+where+` ORDER BY tag_slug`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("select links for delete: %w", err)
	}
	deleted, err := s.scanLinks(rows, subject)
	if err != nil {
		return nil, err
	}
	if len(deleted) == 0 {
		return nil, nil
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM tagging_links WHERE `+where, args...); err != nil {
		return nil, fmt.Errorf("delete links: %w", err)
	}
	return deleted, nil
}

func (s *SQLite) ListLinks(ctx context.Context, subject models.SubjectRef) ([]models.Link, error) {
	query := `
		SELECT id, tag_slug, tag_name, created_at
		FROM tagging_links
		WHERE subject_type = ? AND subject_id = ?
		ORDER BY tag_slug
	`
	rows, err := s.q.QueryContext(ctx, query, subject.Type, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return s.scanLinks(rows, subject)
}

func (s *SQLite) IncrementTagCount(ctx context.Context, slug, name string, delta int64) error {
	query := `
		INSERT INTO tagging_tags (slug, name, usage_count, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE
		SET name = excluded.name,
		    usage_count = usage_count + excluded.usage_count
	`
	if _, err := s.q.ExecContext(ctx, query, slug, name, delta, time.Now().Unix()); err != nil {
		return fmt.Errorf("increment tag count: %w", err)
	}
	return nil
}

func (s *SQLite) DecrementTagCount(ctx context.Context, slug string, delta int64) error {
	query := `UPDATE tagging_tags SET usage_count = usage_count - ? WHERE slug = ?`
	if _, err := s.q.ExecContext(ctx, query, delta, slug); err != nil {
		return fmt.Errorf("decrement tag count: %w", err)
	}
	return nil
}

func (s *SQLite) GetTag(ctx context.Context, slug string) (*models.Tag, error) {
	query := `SELECT slug, name, usage_count, created_at FROM tagging_tags WHERE slug = ?`
	var (
		t       models.Tag
		created int64
	)
	err := s.q.QueryRowContext(ctx, query, slug).Scan(&t.Slug, &t.Name, &t.UsageCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get tag %q: %w", slug, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	t.CreatedAt = time.Unix(created, 0).UTC()
	return &t, nil
}

func (s *SQLite) ListTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT slug, name, usage_count, created_at FROM tagging_tags ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return s.scanTags(rows)
}

func (s *SQLite) ListExistingTags(ctx context.Context, subjectType string) ([]models.Tag, error) {
	query := `
		SELECT t.slug, t.name, t.usage_count, t.created_at
		FROM tagging_tags t
		WHERE EXISTS (
			SELECT 1 FROM tagging_links l
			WHERE l.tag_slug = t.slug AND l.subject_type = ?
		)
		ORDER BY t.slug
	`
	rows, err := s.q.QueryContext(ctx, query, subjectType)
	if err != nil {
		return nil, fmt.Errorf("list existing tags: %w", err)
	}
	return s.scanTags(rows)
}

func (s *SQLite) DeleteUnusedTags(ctx context.Context) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM tagging_tags WHERE usage_count <= 0`)
	if err != nil {
		return 0, fmt.Errorf("delete unused tags: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete unused tags rows affected: %w", err)
	}
	return deleted, nil
}

func (s *SQLite) SubjectsWithAllTags(ctx context.Context, subjectType string, slugs []string) ([]models.SubjectRef, error) {
	if len(slugs) == 0 {
		rows, err := s.q.QueryContext(ctx,
			`SELECT DISTINCT subject_id FROM tagging_links WHERE subject_type = ? ORDER BY subject_id`,
			subjectType)
		if err != nil {
			return nil, fmt.Errorf("tagged subjects: %w", err)
		}
		return scanSubjects(rows, subjectType)
	}

	query := `
		SELECT subject_id
		FROM tagging_links
		WHERE subject_type = ? AND tag_slug IN (` + placeholders(len(slugs)) + `)
		GROUP BY subject_id
		HAVING COUNT(DISTINCT tag_slug) = ?
		ORDER BY subject_id
	`
	args := make([]any, 0, len(slugs)+2)
	args = append(args, subjectType)
	for _, slug := range slugs {
		args = append(args, slug)
	}
	args = append(args, len(slugs))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("subjects with all tags: %w", err)
	}
	return scanSubjects(rows, subjectType)
}

func (s *SQLite) SubjectsWithAnyTag(ctx context.Context, subjectType string, slugs []string) ([]models.SubjectRef, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT subject_id
		FROM tagging_links
		WHERE subject_type = ? AND tag_slug IN (` + placeholders(len(slugs)) + `)
		ORDER BY subject_id
	`
	args := make([]any, 0, len(slugs)+1)
	args = append(args, subjectType)
	for _, slug := range slugs {
		args = append(args, slug)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("subjects with any tag: %w", err)
	}
	return scanSubjects(rows, subjectType)
}

func (s *SQLite) Ping(ctx context.Context) error {
	var one int
	if err := s.q.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping sqlite: %w", sentinel.ErrUnavailable)
	}
	return nil
}

func (s *SQLite) scanLinks(rows *sql.Rows, subject models.SubjectRef) ([]models.Link, error) {
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		var (
			link    = models.Link{Subject: subject}
			created int64
		)
		if err := rows.Scan(&link.ID, &link.Slug, &link.Name, &created); err != nil {
			return nil, fmt.Errorf("scan link row: %w", err)
		}
		link.CreatedAt = time.Unix(created, 0).UTC()
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate link rows: %w", err)
	}
	return links, nil
}

func (s *SQLite) scanTags(rows *sql.Rows) ([]models.Tag, error) {
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var (
			t       models.Tag
			created int64
		)
		if err := rows.Scan(&t.Slug, &t.Name, &t.UsageCount, &created); err != nil {
			return nil, fmt.Errorf("scan tag row: %w", err)
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag rows: %w", err)
	}
	return tags, nil
}

// placeholders returns n comma-joined "?" markers for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
