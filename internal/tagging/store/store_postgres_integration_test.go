//go:build integration

package store_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tagd/internal/tagging/models"
	"tagd/internal/tagging/store"
	"tagd/pkg/platform/sentinel"
	"tagd/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	tx       *store.SQLTx
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.tx = store.NewPostgresTx(s.postgres.DB)

	err := s.store.EnsureSchema(context.Background())
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "tagging_tags", "tagging_links")
	s.Require().NoError(err)
}

func testLink(subject models.SubjectRef, slug, name string) models.Link {
	return models.Link{
		ID:        uuid.New(),
		Subject:   subject,
		Slug:      slug,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

// TestUniqueConstraintAbsorbsDuplicates verifies that the unique link
// constraint, not application logic, is the source of idempotency.
func (s *PostgresStoreSuite) TestUniqueConstraintAbsorbsDuplicates() {
	ctx := context.Background()
	subject := models.SubjectRef{Type: "post", ID: "1"}

	created, err := s.store.InsertLink(ctx, testLink(subject, "go", "Go"))
	s.Require().NoError(err)
	s.True(created)

	created, err = s.store.InsertLink(ctx, testLink(subject, "go", "Go"))
	s.Require().NoError(err)
	s.False(created)

	links, err := s.store.ListLinks(ctx, subject)
	s.Require().NoError(err)
	s.Len(links, 1)
}

// TestConcurrentInsertSingleWinner verifies that racing inserts of the same
// link produce exactly one row and one winner.
func (s *PostgresStoreSuite) TestConcurrentInsertSingleWinner() {
	ctx := context.Background()
	subject := models.SubjectRef{Type: "post", ID: "race"}
	const goroutines = 50

	var wg sync.WaitGroup
	var created atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.store.InsertLink(ctx, testLink(subject, "go", "Go"))
			if s.NoError(err) && ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load(), "exactly one racer should create the link")

	links, err := s.store.ListLinks(ctx, subject)
	s.Require().NoError(err)
	s.Len(links, 1)
}

// TestConcurrentAttachConservesCount verifies that the usage count equals
// the number of live links after concurrent attaches of one slug across
// many subjects.
func (s *PostgresStoreSuite) TestConcurrentAttachConservesCount() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			subject := models.SubjectRef{Type: "post", ID: strconv.Itoa(idx)}
			err := s.tx.RunInTx(ctx, subject, func(st store.Store) error {
				created, err := st.InsertLink(ctx, testLink(subject, "busy", "Busy"))
				if err != nil {
					return err
				}
				if !created {
					return nil
				}
				return st.IncrementTagCount(ctx, "busy", "Busy", 1)
			})
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	tag, err := s.store.GetTag(ctx, "busy")
	s.Require().NoError(err)
	s.Equal(int64(goroutines), tag.UsageCount, "usage count should equal live links")

	refs, err := s.store.SubjectsWithAnyTag(ctx, "post", []string{"busy"})
	s.Require().NoError(err)
	s.Len(refs, goroutines)
}

// TestDeleteLinksReturnsVictims verifies RETURNING-based deletion across
// the nil, subset, and empty slug forms.
func (s *PostgresStoreSuite) TestDeleteLinksReturnsVictims() {
	ctx := context.Background()
	subject := models.SubjectRef{Type: "post", ID: "1"}

	for _, slug := range []string{"a", "b", "c"} {
		_, err := s.store.InsertLink(ctx, testLink(subject, slug, slug))
		s.Require().NoError(err)
	}

	deleted, err := s.store.DeleteLinks(ctx, subject, []string{"a", "missing"})
	s.Require().NoError(err)
	s.Len(deleted, 1)
	s.Equal("a", deleted[0].Slug)

	deleted, err = s.store.DeleteLinks(ctx, subject, []string{})
	s.Require().NoError(err)
	s.Empty(deleted)

	deleted, err = s.store.DeleteLinks(ctx, subject, nil)
	s.Require().NoError(err)
	s.Len(deleted, 2)

	links, err := s.store.ListLinks(ctx, subject)
	s.Require().NoError(err)
	s.Empty(links)
}

// TestCatalogUpsert verifies count accumulation and last-writer-wins
// display names through the ON CONFLICT upsert.
func (s *PostgresStoreSuite) TestCatalogUpsert() {
	ctx := context.Background()

	s.Require().NoError(s.store.IncrementTagCount(ctx, "go", "Go", 1))
	s.Require().NoError(s.store.IncrementTagCount(ctx, "go", "GO", 2))

	tag, err := s.store.GetTag(ctx, "go")
	s.Require().NoError(err)
	s.Equal(int64(3), tag.UsageCount)
	s.Equal("GO", tag.Name)

	s.Require().NoError(s.store.DecrementTagCount(ctx, "go", 3))
	s.Require().NoError(s.store.DecrementTagCount(ctx, "ghost", 1))

	deleted, err := s.store.DeleteUnusedTags(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	_, err = s.store.GetTag(ctx, "go")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestSubjectQueries verifies the all/any membership queries including the
// vacuous empty-set policies.
func (s *PostgresStoreSuite) TestSubjectQueries() {
	ctx := context.Background()
	s1 := models.SubjectRef{Type: "post", ID: "1"}
	s2 := models.SubjectRef{Type: "post", ID: "2"}

	for _, slug := range []string{"x", "y"} {
		_, err := s.store.InsertLink(ctx, testLink(s1, slug, slug))
		s.Require().NoError(err)
	}
	_, err := s.store.InsertLink(ctx, testLink(s2, "x", "x"))
	s.Require().NoError(err)

	refs, err := s.store.SubjectsWithAllTags(ctx, "post", []string{"x", "y"})
	s.Require().NoError(err)
	s.Equal([]models.SubjectRef{s1}, refs)

	refs, err = s.store.SubjectsWithAnyTag(ctx, "post", []string{"y"})
	s.Require().NoError(err)
	s.Equal([]models.SubjectRef{s1}, refs)

	refs, err = s.store.SubjectsWithAllTags(ctx, "post", nil)
	s.Require().NoError(err)
	s.Equal([]models.SubjectRef{s1, s2}, refs)

	refs, err = s.store.SubjectsWithAnyTag(ctx, "post", nil)
	s.Require().NoError(err)
	s.Empty(refs)
}

// TestTxRollback verifies that a failing callback leaves no partial state.
func (s *PostgresStoreSuite) TestTxRollback() {
	ctx := context.Background()
	subject := models.SubjectRef{Type: "post", ID: "1"}

	boom := errors.New("boom")
	err := s.tx.RunInTx(ctx, subject, func(st store.Store) error {
		if _, err := st.InsertLink(ctx, testLink(subject, "doomed", "Doomed")); err != nil {
			return err
		}
		if err := st.IncrementTagCount(ctx, "doomed", "Doomed", 1); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	links, err := s.store.ListLinks(ctx, subject)
	s.Require().NoError(err)
	s.Empty(links)

	_, err = s.store.GetTag(ctx, "doomed")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
