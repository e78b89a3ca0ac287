package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagd/internal/tagging/models"
	dErrors "tagd/pkg/domain-errors"
)

func TestShardedTx_SerializesSameSubject(t *testing.T) {
	ctx := context.Background()
	tx := NewShardedTx(NewMemory())
	subject := models.SubjectRef{Type: "post", ID: "1"}

	const goroutines = 100
	const incrementsPerGoroutine = 10

	// Plain int on purpose: only the per-subject lock keeps this exact.
	total := 0

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < incrementsPerGoroutine; j++ {
				err := tx.RunInTx(ctx, subject, func(Store) error {
					total++
					return nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*incrementsPerGoroutine, total,
		"same-subject transactions should run one at a time")
}

func TestShardedTx_PropagatesError(t *testing.T) {
	ctx := context.Background()
	tx := NewShardedTx(NewMemory())
	subject := models.SubjectRef{Type: "post", ID: "1"}

	boom := errors.New("boom")
	err := tx.RunInTx(ctx, subject, func(Store) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestShardedTx_CancelledContext(t *testing.T) {
	tx := NewShardedTx(NewMemory())
	subject := models.SubjectRef{Type: "post", ID: "1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tx.RunInTx(ctx, subject, func(Store) error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestShardedTx_BindsStore(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	tx := NewShardedTx(mem)
	subject := models.SubjectRef{Type: "post", ID: "1"}

	err := tx.RunInTx(ctx, subject, func(st Store) error {
		_, err := st.InsertLink(ctx, newLink(subject, "go", "Go"))
		return err
	})
	require.NoError(t, err)

	links, err := mem.ListLinks(ctx, subject)
	require.NoError(t, err)
	assert.Len(t, links, 1, "writes inside the tx land in the backing store")
}
