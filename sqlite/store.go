// Package sqlite provides an embedded implementation of persistence.KeyValue
// on SQLite. Documents are stored as JSON under their key together with a
// CAS version and a lock lease, which gives the adapter's optimistic and
// pessimistic update paths the same semantics they have against Couchbase.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/asaidimu/go-n1ql/core/persistence"
	"github.com/asaidimu/go-n1ql/core/schema"
)

// dbRunner abstracts the common methods of *sql.DB and *sql.Tx.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a persistence.KeyValue backed by one SQLite table.
type Store struct {
	db      *sql.DB
	logger  *zap.Logger
	options *Options
	now     func() time.Time
}

// Ensure Store implements the persistence.KeyValue interface.
var _ persistence.KeyValue = (*Store)(nil)

// NewStore creates a Store on db and makes sure its table exists.
func NewStore(ctx context.Context, db *sql.DB, logger *zap.Logger, options *Options) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultOptions()
	}
	if options.Table == "" {
		return nil, fmt.Errorf("table name cannot be empty")
	}
	s := &Store{db: db, logger: logger, options: options, now: time.Now}
	if err := s.CreateTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens the SQLite database at dsn (":memory:" included) and creates a
// Store on it. SQLite serializes writers, so a single connection is used.
func Open(ctx context.Context, dsn string, logger *zap.Logger, options *Options) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewStore(ctx, db, logger, options)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type record struct {
	value       schema.Document
	cas         uint64
	lockedUntil int64
}

func (s *Store) locked(r *record) bool {
	return r.lockedUntil > s.now().UnixMilli()
}

func (s *Store) read(ctx context.Context, runner dbRunner, op, key string) (*record, error) {
	query := fmt.Sprintf(`SELECT "value", "cas", "locked_until" FROM %s WHERE "key" = ?;`, s.tableName())

	var (
		value string
		r     record
	)
	err := runner.QueryRowContext(ctx, query, key).Scan(&value, &r.cas, &r.lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError(op, key, persistence.ErrKeyNotFound)
	}
	if err != nil {
		return nil, mapError(op, key, err)
	}
	if r.value, err = decodeDocument(value); err != nil {
		return nil, persistence.NewStoreError(op, key, err)
	}
	return &r, nil
}

// nextCas returns a version greater than every version in the table, so a
// key that is removed and inserted again never reuses an old CAS.
func (s *Store) nextCas(ctx context.Context, runner dbRunner) (uint64, error) {
	var cas uint64
	query := fmt.Sprintf(`SELECT COALESCE(MAX("cas"), 0) + 1 FROM %s;`, s.tableName())
	if err := runner.QueryRowContext(ctx, query).Scan(&cas); err != nil {
		return 0, err
	}
	if c := uint64(s.now().UnixNano()); c > cas {
		cas = c
	}
	return cas, nil
}

// withTx runs fn in a transaction, committing when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin", "", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError("commit", "", err)
	}
	return nil
}

// Get reads a document. Locked documents can still be read.
func (s *Store) Get(ctx context.Context, key string) (*persistence.Item, error) {
	r, err := s.read(ctx, s.db, "get", key)
	if err != nil {
		return nil, err
	}
	return &persistence.Item{Key: key, Value: r.value, Cas: r.cas}, nil
}

// GetAndLock reads a document and leases a lock on it for lockTime. The
// returned CAS is the only one Replace accepts until the lease ends.
func (s *Store) GetAndLock(ctx context.Context, key string, lockTime time.Duration) (*persistence.Item, error) {
	var item *persistence.Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := s.read(ctx, tx, "getAndLock", key)
		if err != nil {
			return err
		}
		if s.locked(r) {
			return persistence.NewStoreError("getAndLock", key, persistence.ErrDocumentLocked)
		}
		cas, err := s.nextCas(ctx, tx)
		if err != nil {
			return mapError("getAndLock", key, err)
		}
		until := s.now().Add(lockTime).UnixMilli()
		stmt := fmt.Sprintf(`UPDATE %s SET "cas" = ?, "locked_until" = ? WHERE "key" = ?;`, s.tableName())
		if _, err := tx.ExecContext(ctx, stmt, cas, until, key); err != nil {
			return mapError("getAndLock", key, err)
		}
		item = &persistence.Item{Key: key, Value: r.value, Cas: cas}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Document locked", zap.String("key", key), zap.Duration("lockTime", lockTime))
	return item, nil
}

// Insert stores a new document and fails with ErrKeyExists when the key is
// taken.
func (s *Store) Insert(ctx context.Context, key string, doc schema.Document, _ persistence.WriteOptions) (uint64, error) {
	value, err := encodeDocument(doc)
	if err != nil {
		return 0, persistence.NewStoreError("insert", key, err)
	}
	var cas uint64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if cas, err = s.nextCas(ctx, tx); err != nil {
			return mapError("insert", key, err)
		}
		stmt := fmt.Sprintf(`INSERT INTO %s ("key", "value", "cas", "locked_until") VALUES (?, ?, ?, 0);`, s.tableName())
		_, err := tx.ExecContext(ctx, stmt, key, value, cas)
		return mapError("insert", key, err)
	})
	if err != nil {
		return 0, err
	}
	return cas, nil
}

// Replace overwrites a document if cas matches its current version. A zero
// cas skips the check unless the document is locked. Replacing releases the
// lock.
func (s *Store) Replace(ctx context.Context, key string, doc schema.Document, cas uint64, _ persistence.WriteOptions) (uint64, error) {
	value, err := encodeDocument(doc)
	if err != nil {
		return 0, persistence.NewStoreError("replace", key, err)
	}
	var next uint64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := s.read(ctx, tx, "replace", key)
		if err != nil {
			return err
		}
		if s.locked(r) && cas != r.cas {
			return persistence.NewStoreError("replace", key, persistence.ErrDocumentLocked)
		}
		if cas != 0 && cas != r.cas {
			return persistence.NewStoreError("replace", key, persistence.ErrVersionConflict)
		}
		if next, err = s.nextCas(ctx, tx); err != nil {
			return mapError("replace", key, err)
		}
		stmt := fmt.Sprintf(`UPDATE %s SET "value" = ?, "cas" = ?, "locked_until" = 0 WHERE "key" = ?;`, s.tableName())
		_, err = tx.ExecContext(ctx, stmt, value, next, key)
		return mapError("replace", key, err)
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Remove deletes a document. Locked documents cannot be removed.
func (s *Store) Remove(ctx context.Context, key string, _ persistence.WriteOptions) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := s.read(ctx, tx, "remove", key)
		if err != nil {
			return err
		}
		if s.locked(r) {
			return persistence.NewStoreError("remove", key, persistence.ErrDocumentLocked)
		}
		stmt := fmt.Sprintf(`DELETE FROM %s WHERE "key" = ?;`, s.tableName())
		_, err = tx.ExecContext(ctx, stmt, key)
		return mapError("remove", key, err)
	})
}
