package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagd/internal/tagging/models"
	"tagd/pkg/platform/sentinel"
)

func openTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "tagd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, NewSQLite(db).EnsureSchema(ctx))
	require.NoError(t, NewSQLite(db).EnsureSchema(ctx), "schema setup is idempotent")
	return db
}

func TestSQLiteStore_Links(t *testing.T) {
	ctx := context.Background()
	db := openTestSQLite(t)
	s := NewSQLite(db)
	subject := models.SubjectRef{Type: "post", ID: "1"}

	t.Run("insert then duplicate", func(t *testing.T) {
		created, err := s.InsertLink(ctx, newLink(subject, "go", "Go"))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.InsertLink(ctx, newLink(subject, "go", "Go"))
		require.NoError(t, err)
		assert.False(t, created, "unique constraint absorbs the duplicate")
	})

	t.Run("list is ordered by slug", func(t *testing.T) {
		for _, slug := range []string{"zsh", "ada"} {
			_, err := s.InsertLink(ctx, newLink(subject, slug, slug))
			require.NoError(t, err)
		}

		links, err := s.ListLinks(ctx, subject)
		require.NoError(t, err)
		require.Len(t, links, 3)
		assert.Equal(t, "ada", links[0].Slug)
		assert.Equal(t, "go", links[1].Slug)
		assert.Equal(t, "zsh", links[2].Slug)
	})

	t.Run("delete selected slugs returns victims", func(t *testing.T) {
		deleted, err := s.DeleteLinks(ctx, subject, []string{"ada", "missing"})
		require.NoError(t, err)
		require.Len(t, deleted, 1)
		assert.Equal(t, "ada", deleted[0].Slug)
	})

	t.Run("empty non-nil slugs deletes nothing", func(t *testing.T) {
		deleted, err := s.DeleteLinks(ctx, subject, []string{})
		require.NoError(t, err)
		assert.Empty(t, deleted)
	})

	t.Run("nil slugs deletes everything", func(t *testing.T) {
		deleted, err := s.DeleteLinks(ctx, subject, nil)
		require.NoError(t, err)
		assert.Len(t, deleted, 2)

		links, err := s.ListLinks(ctx, subject)
		require.NoError(t, err)
		assert.Empty(t, links)
	})
}

func TestSQLiteStore_Catalog(t *testing.T) {
	ctx := context.Background()
	s := NewSQLite(openTestSQLite(t))

	require.NoError(t, s.IncrementTagCount(ctx, "go", "Go", 1))
	require.NoError(t, s.IncrementTagCount(ctx, "go", "GO", 2))

	tag, err := s.GetTag(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, int64(3), tag.UsageCount)
	assert.Equal(t, "GO", tag.Name, "display name is last writer wins")
	assert.False(t, tag.CreatedAt.IsZero())

	require.NoError(t, s.DecrementTagCount(ctx, "go", 4))
	tag, err = s.GetTag(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), tag.UsageCount, "counts are not clamped")

	require.NoError(t, s.DecrementTagCount(ctx, "ghost", 1))
	_, err = s.GetTag(ctx, "ghost")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.IncrementTagCount(ctx, "ada", "Ada", 1))
	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "ada", tags[0].Slug)
	assert.Equal(t, "go", tags[1].Slug)

	deleted, err := s.DeleteUnusedTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted, "only the negative-count tag is unused")
}

func TestSQLiteStore_ExistingTags(t *testing.T) {
	ctx := context.Background()
	s := NewSQLite(openTestSQLite(t))

	post := models.SubjectRef{Type: "post", ID: "1"}
	photo := models.SubjectRef{Type: "photo", ID: "1"}

	_, err := s.InsertLink(ctx, newLink(post, "go", "Go"))
	require.NoError(t, err)
	_, err = s.InsertLink(ctx, newLink(photo, "sunset", "Sunset"))
	require.NoError(t, err)
	require.NoError(t, s.IncrementTagCount(ctx, "go", "Go", 1))
	require.NoError(t, s.IncrementTagCount(ctx, "sunset", "Sunset", 1))
	require.NoError(t, s.IncrementTagCount(ctx, "orphan", "Orphan", 1))

	tags, err := s.ListExistingTags(ctx, "post")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "go", tags[0].Slug)
}

func TestSQLiteStore_Queries(t *testing.T) {
	ctx := context.Background()
	s := NewSQLite(openTestSQLite(t))

	s1 := models.SubjectRef{Type: "post", ID: "1"}
	s2 := models.SubjectRef{Type: "post", ID: "2"}
	other := models.SubjectRef{Type: "photo", ID: "9"}

	for _, slug := range []string{"x", "y"} {
		_, err := s.InsertLink(ctx, newLink(s1, slug, slug))
		require.NoError(t, err)
	}
	_, err := s.InsertLink(ctx, newLink(s2, "x", "x"))
	require.NoError(t, err)
	_, err = s.InsertLink(ctx, newLink(other, "x", "x"))
	require.NoError(t, err)

	t.Run("all tags intersects", func(t *testing.T) {
		refs, err := s.SubjectsWithAllTags(ctx, "post", []string{"x", "y"})
		require.NoError(t, err)
		assert.Equal(t, []models.SubjectRef{s1}, refs)
	})

	t.Run("any tag unions", func(t *testing.T) {
		refs, err := s.SubjectsWithAnyTag(ctx, "post", []string{"x", "y"})
		require.NoError(t, err)
		assert.Equal(t, []models.SubjectRef{s1, s2}, refs)
	})

	t.Run("vacuous all returns every tagged subject of type", func(t *testing.T) {
		refs, err := s.SubjectsWithAllTags(ctx, "post", nil)
		require.NoError(t, err)
		assert.Equal(t, []models.SubjectRef{s1, s2}, refs)
	})

	t.Run("vacuous any returns nothing", func(t *testing.T) {
		refs, err := s.SubjectsWithAnyTag(ctx, "post", nil)
		require.NoError(t, err)
		assert.Empty(t, refs)
	})
}

func TestSQLiteTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	db := openTestSQLite(t)
	s := NewSQLite(db)
	tx := NewSQLiteTx(db)
	subject := models.SubjectRef{Type: "post", ID: "1"}

	t.Run("commit persists", func(t *testing.T) {
		err := tx.RunInTx(ctx, subject, func(st Store) error {
			if _, err := st.InsertLink(ctx, newLink(subject, "go", "Go")); err != nil {
				return err
			}
			return st.IncrementTagCount(ctx, "go", "Go", 1)
		})
		require.NoError(t, err)

		links, err := s.ListLinks(ctx, subject)
		require.NoError(t, err)
		assert.Len(t, links, 1)

		tag, err := s.GetTag(ctx, "go")
		require.NoError(t, err)
		assert.Equal(t, int64(1), tag.UsageCount)
	})

	t.Run("error rolls everything back", func(t *testing.T) {
		boom := errors.New("boom")
		err := tx.RunInTx(ctx, subject, func(st Store) error {
			if _, err := st.InsertLink(ctx, newLink(subject, "doomed", "Doomed")); err != nil {
				return err
			}
			if err := st.IncrementTagCount(ctx, "doomed", "Doomed", 1); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		links, err := s.ListLinks(ctx, subject)
		require.NoError(t, err)
		assert.Len(t, links, 1, "rolled-back link must not appear")

		_, err = s.GetTag(ctx, "doomed")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestSQLiteStore_Ping(t *testing.T) {
	ctx := context.Background()
	s := NewSQLite(openTestSQLite(t))
	assert.NoError(t, s.Ping(ctx))
}
