package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tagd/internal/tagging/models"
	"tagd/pkg/platform/sentinel"
)

// postgresSchema is applied statement by statement; every statement is
// idempotent so EnsureSchema is safe on every startup.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tagging_tags (
		slug        TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		usage_count BIGINT NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS tagging_links (
		id           UUID PRIMARY KEY,
		subject_type TEXT NOT NULL,
		subject_id   TEXT NOT NULL,
		tag_slug     TEXT NOT NULL,
		tag_name     TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (subject_type, subject_id, tag_slug)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tagging_links_slug ON tagging_links (tag_slug)`,
	`CREATE INDEX IF NOT EXISTS idx_tagging_links_subject ON tagging_links (subject_type, subject_id)`,
}

// Postgres implements Store over lib/pq. Constructed over a Querier, the
// same type serves both direct calls and transaction-bound calls from
// SQLTx.
type Postgres struct {
	q Querier
}

var _ Store = (*Postgres)(nil)

func NewPostgres(q Querier) *Postgres {
	return &Postgres{q: q}
}

// EnsureSchema creates the tagging tables and indexes if absent.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tagging schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) InsertLink(ctx context.Context, link models.Link) (bool, error) {
	query := `
		INSERT INTO tagging_links (id, subject_type, subject_id, tag_slug, tag_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subject_type, subject_id, tag_slug) DO NOTHING
	`
	res, err := s.q.ExecContext(ctx, query,
		link.ID,
		link.Subject.Type,
		link.Subject.ID,
		link.Slug,
		link.Name,
		link.CreatedAt,
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

func (s *Postgres) DeleteLinks(ctx context.Context, subject models.SubjectRef, slugs []string) ([]models.Link, error) {
	if slugs != nil && len(slugs) == 0 {
		return nil, nil
	}

	query := `
		DELETE FROM tagging_links
		WHERE subject_type = $1 AND subject_id = $2
		RETURNING id, tag_slug, tag_name, created_at
	`
	args := []any{subject.Type, subject.ID}
	if slugs != nil {
		query = `
			DELETE FROM tagging_links
			WHERE subject_type = $1 AND subject_id = $2 AND tag_slug = ANY($3)
			RETURNING id, tag_slug, tag_name, created_at
		`
		args = append(args, pq.Array(slugs))
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("delete links: %w", err)
	}
	return scanLinks(rows, subject)
}

func (s *Postgres) ListLinks(ctx context.Context, subject models.SubjectRef) ([]models.Link, error) {
	query := `
		SELECT id, tag_slug, tag_name, created_at
		FROM tagging_links
		WHERE subject_type = $1 AND subject_id = $2
		ORDER BY tag_slug
	`
	rows, err := s.q.QueryContext(ctx, query, subject.Type, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return scanLinks(rows, subject)
}

func (s *Postgres) IncrementTagCount(ctx context.Context, slug, name string, delta int64) error {
	query := `
		INSERT INTO tagging_tags (slug, name, usage_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name,
		    usage_count = tagging_tags.usage_count + EXCLUDED.usage_count
	`
	if _, err := s.q.ExecContext(ctx, query, slug, name, delta); err != nil {
		return fmt.Errorf("increment tag count: %w", err)
	}
	return nil
}

func (s *Postgres) DecrementTagCount(ctx context.Context, slug string, delta int64) error {
	query := `UPDATE tagging_tags SET usage_count = usage_count - $2 WHERE slug = $1`
	if _, err := s.q.ExecContext(ctx, query, slug, delta); err != nil {
		return fmt.Errorf("decrement tag count: %w", err)
	}
	return nil
}

func (s *Postgres) GetTag(ctx context.Context, slug string) (*models.Tag, error) {
	query := `SELECT slug, name, usage_count, created_at FROM tagging_tags WHERE slug = $1`
	var t models.Tag
	err := s.q.QueryRowContext(ctx, query, slug).Scan(&t.Slug, &t.Name, &t.UsageCount, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get tag %q: %w", slug, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return &t, nil
}

func (s *Postgres) ListTags(ctx context.Context) ([]models.Tag, error) {
	query := `SELECT slug, name, usage_count, created_at FROM tagging_tags ORDER BY slug`
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return scanTags(rows)
}

func (s *Postgres) ListExistingTags(ctx context.Context, subjectType string) ([]models.Tag, error) {
	query := `
		SELECT t.slug, t.name, t.usage_count, t.created_at
		FROM tagging_tags t
		WHERE EXISTS (
			SELECT 1 FROM tagging_links l
			WHERE l.tag_slug = t.slug AND l.subject_type = $1
		)
		ORDER BY t.slug
	`
	rows, err := s.q.QueryContext(ctx, query, subjectType)
	if err != nil {
		return nil, fmt.Errorf("list existing tags: %w", err)
	}
	return scanTags(rows)
}

func (s *Postgres) DeleteUnusedTags(ctx context.Context) (int64, error) {
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

func (s *Postgres) SubjectsWithAllTags(ctx context.Context, subjectType string, slugs []string) ([]models.SubjectRef, error) {
	if len(slugs) == 0 {
		return s.taggedSubjects(ctx, subjectType)
	}

	query := `
		SELECT subject_id
		FROM tagging_links
		WHERE subject_type = $1 AND tag_slug = ANY($2)
		GROUP BY subject_id
		HAVING COUNT(DISTINCT tag_slug) = $3
		ORDER BY subject_id
	`
	rows, err := s.q.QueryContext(ctx, query, subjectType, pq.Array(slugs), len(slugs))
	if err != nil {
		return nil, fmt.Errorf("subjects with all tags: %w", err)
	}
	return scanSubjects(rows, subjectType)
}

func (s *Postgres) SubjectsWithAnyTag(ctx context.Context, subjectType string, slugs []string) ([]models.SubjectRef, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT subject_id
		FROM tagging_links
		WHERE subject_type = $1 AND tag_slug = ANY($2)
		ORDER BY subject_id
	`
	rows, err := s.q.QueryContext(ctx, query, subjectType, pq.Array(slugs))
	if err != nil {
		return nil, fmt.Errorf("subjects with any tag: %w", err)
	}
	return scanSubjects(rows, subjectType)
}

func (s *Postgres) taggedSubjects(ctx context.Context, subjectType string) ([]models.SubjectRef, error) {
	query := `
		SELECT DISTINCT subject_id
		FROM tagging_links
		WHERE subject_type = $1
		ORDER BY subject_id
	`
	rows, err := s.q.QueryContext(ctx, query, subjectType)
	if err != nil {
		return nil, fmt.Errorf("tagged subjects: %w", err)
	}
	return scanSubjects(rows, subjectType)
}

func (s *Postgres) Ping(ctx context.Context) error {
	var one int
	if err := s.q.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", sentinel.ErrUnavailable)
	}
	return nil
}
