package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"tagd/internal/tagging/models"
	dErrors "tagd/pkg/domain-errors"
)

// Runners wrap every tagging mutation in an atomic unit. ShardedTx gives
// the memory store per-subject serialization through sharded mutexes;
// SQLTx gives the SQL stores a real database transaction. Both default a
// timeout onto contexts without a deadline so a stuck store cannot pin a
// subject forever.

const numShards = 128

const defaultTxTimeout = 5 * time.Second

// ShardedTx serializes same-subject mutations with sharded mutexes.
// Instead of a single global lock, subjects are distributed across
// numShards shards by an FNV-1a hash of their key, keeping unrelated
// subjects concurrent.
type ShardedTx struct {
	shards  [numShards]sync.Mutex
	store   Store
	timeout time.Duration
}

func NewShardedTx(store Store) *ShardedTx {
	return &ShardedTx{store: store}
}

func (t *ShardedTx) RunInTx(ctx context.Context, subject models.SubjectRef, fn func(st Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashSubject(subject.Key()) % numShards
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring the lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(t.store)
}

// hashSubject uses FNV-1a for better distribution than simple multiply-add.
func hashSubject(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// SQLTx runs the callback against a transaction-bound store. The subject
// is unused: the database transaction plus the unique link constraint
// already serialize same-subject mutations.
type SQLTx struct {
	db      *sql.DB
	bind    func(Querier) Store
	timeout time.Duration
}

// NewPostgresTx returns a runner binding callbacks to a Postgres store.
func NewPostgresTx(db *sql.DB) *SQLTx {
	return &SQLTx{db: db, bind: func(q Querier) Store { return NewPostgres(q) }}
}

// NewSQLiteTx returns a runner binding callbacks to a SQLite store.
func NewSQLiteTx(db *sql.DB) *SQLTx {
	return &SQLTx{db: db, bind: func(q Querier) Store { return NewSQLite(q) }}
}

func (t *SQLTx) RunInTx(ctx context.Context, _ models.SubjectRef, fn func(st Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tagging tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(t.bind(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tagging tx: %w", err)
	}
	return nil
}
