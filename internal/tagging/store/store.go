// Package store persists subject-tag links and the tag catalog. Three
// implementations share one contract: an in-memory store for unit tests and
// dev mode, PostgreSQL for service deployments, and SQLite for the local
// CLI. The SQL stores are built over a Querier so the same code runs
// standalone or transaction-bound; runners in tx.go provide the atomic
// units the service wraps every mutation in.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"tagd/internal/tagging/models"
)

// Store is the persistence contract the tagging service depends on.
type Store interface {
	// InsertLink writes the link unless the subject already carries the
	// slug; created reports whether a row was written. The unique
	// (subject type, subject id, slug) constraint is the source of truth:
	// a lost race surfaces as created == false, never as an error.
	InsertLink(ctx context.Context, link models.Link) (created bool, err error)
	// DeleteLinks removes the subject's links for the given slugs and
	// returns the deleted rows. nil means every link on the subject; an
	// empty non-nil slice deletes nothing.
	DeleteLinks(ctx context.Context, subject models.SubjectRef, slugs []string) ([]models.Link, error)
	// ListLinks returns the subject's links ordered by slug ascending.
	ListLinks(ctx context.Context, subject models.SubjectRef) ([]models.Link, error)

	// IncrementTagCount upserts the catalog row for slug, moves its
	// display name (last writer wins) and adds delta to its usage count.
	// The update is atomic at the row level, never read-modify-write.
	IncrementTagCount(ctx context.Context, slug, name string, delta int64) error
	// DecrementTagCount subtracts delta from the catalog row's usage
	// count. A missing row is a no-op, not an error. The count is not
	// clamped at zero here; purging rows at or below zero is policy,
	// expressed through DeleteUnusedTags.
	DecrementTagCount(ctx context.Context, slug string, delta int64) error
	// GetTag returns the catalog row, or an error wrapping
	// sentinel.ErrNotFound when the slug is unknown.
	GetTag(ctx context.Context, slug string) (*models.Tag, error)
	// ListTags returns the whole catalog ordered by slug ascending.
	ListTags(ctx context.Context) ([]models.Tag, error)
	// ListExistingTags returns the distinct tags currently linked to
	// subjects of the given type, ordered by slug ascending.
	ListExistingTags(ctx context.Context, subjectType string) ([]models.Tag, error)
	// DeleteUnusedTags removes every catalog row whose usage count is at
	// or below zero and reports how many were removed.
	DeleteUnusedTags(ctx context.Context) (int64, error)

	// SubjectsWithAllTags returns the subjects of the given type linked to
	// every one of the slugs, ordered by subject id. An empty slug set
	// matches every tagged subject of the type (vacuous AND).
	SubjectsWithAllTags(ctx context.Context, subjectType string, slugs []string) ([]models.SubjectRef, error)
	// SubjectsWithAnyTag returns the subjects of the given type linked to
	// at least one of the slugs, ordered by subject id. An empty slug set
	// matches nothing (vacuous OR).
	SubjectsWithAnyTag(ctx context.Context, subjectType string, slugs []string) ([]models.SubjectRef, error)

	// Ping reports store reachability for health checks.
	Ping(ctx context.Context) error
}

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanTags drains rows of (slug, name, usage_count, created_at) columns.
func scanTags(rows *sql.Rows) ([]models.Tag, error) {
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.Slug, &t.Name, &t.UsageCount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag row: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag rows: %w", err)
	}
	return tags, nil
}

// scanLinks drains rows of (id, tag_slug, tag_name, created_at) columns for
// a known subject.
func scanLinks(rows *sql.Rows, subject models.SubjectRef) ([]models.Link, error) {
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		link := models.Link{Subject: subject}
		if err := rows.Scan(&link.ID, &link.Slug, &link.Name, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan link row: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate link rows: %w", err)
	}
	return links, nil
}

// scanSubjects drains rows of a single subject_id column for a known type.
func scanSubjects(rows *sql.Rows, subjectType string) ([]models.SubjectRef, error) {
	defer rows.Close()

	var refs []models.SubjectRef
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subject row: %w", err)
		}
		refs = append(refs, models.SubjectRef{Type: subjectType, ID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subject rows: %w", err)
	}
	return refs, nil
}
