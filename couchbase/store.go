// Package couchbase implements the store collaborators of the persistence
// package on the Couchbase Go SDK: statements run through the cluster's
// query service, key access goes to the bucket's default collection.
package couchbase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/couchbase/gocb/v2"
	"go.uber.org/zap"

	"github.com/asaidimu/go-n1ql/core/persistence"
	"github.com/asaidimu/go-n1ql/core/query"
	"github.com/asaidimu/go-n1ql/core/schema"
)

// DefaultReadyTimeout bounds how long Connect waits for the bucket.
const DefaultReadyTimeout = 10 * time.Second

// Store is a persistence.Querier and persistence.KeyValue on one bucket.
type Store struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	collection *gocb.Collection
	logger     *zap.Logger
}

var (
	_ persistence.Querier  = (*Store)(nil)
	_ persistence.KeyValue = (*Store)(nil)
)

// ConnectionString builds the SDK connection string for cfg. The HTTP
// bootstrap port 8091 is the SDK default and is left out; any other port is
// passed through.
func ConnectionString(cfg persistence.Config) string {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	if cfg.Port == 0 || cfg.Port == 8091 {
		return "couchbase://" + host
	}
	return "couchbase://" + host + ":" + strconv.Itoa(cfg.Port)
}

// authenticator uses the bucket name and password when no user is
// configured, which is how password-protected buckets authenticate.
func authenticator(cfg persistence.Config) gocb.PasswordAuthenticator {
	if cfg.Username == "" {
		return gocb.PasswordAuthenticator{Username: cfg.Bucket, Password: cfg.BucketPassword}
	}
	return gocb.PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
}

// Connect opens the cluster described by cfg and waits for its bucket.
func Connect(cfg persistence.Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	connStr := ConnectionString(cfg)
	cluster, err := gocb.Connect(connStr, gocb.ClusterOptions{Authenticator: authenticator(cfg)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", connStr, err)
	}
	bucket := cluster.Bucket(cfg.Bucket)
	if err := bucket.WaitUntilReady(DefaultReadyTimeout, nil); err != nil {
		cluster.Close(nil)
		return nil, fmt.Errorf("bucket %s is not ready: %w", cfg.Bucket, err)
	}
	logger.Info("Connected to Couchbase", zap.String("connection", connStr), zap.String("bucket", cfg.Bucket))
	return &Store{
		cluster:    cluster,
		bucket:     bucket,
		collection: bucket.DefaultCollection(),
		logger:     logger,
	}, nil
}

// Connection wraps the store in a persistence.Connection ready to register.
func (s *Store) Connection(identity string, cfg persistence.Config, collections schema.Registry) *persistence.Connection {
	return &persistence.Connection{
		Identity:    identity,
		Config:      cfg,
		Querier:     s,
		KV:          s,
		Collections: collections,
		Closer:      s,
	}
}

// Close shuts the cluster connection down.
func (s *Store) Close() error {
	return s.cluster.Close(nil)
}

// ScanConsistency maps a consistency level onto the SDK's scan consistency.
// The SDK has no statement-level option, so level 3 is served with
// request_plus, the stronger guarantee.
func ScanConsistency(level query.ConsistencyLevel) gocb.QueryScanConsistency {
	switch level {
	case query.ConsistencyRequestPlus, query.ConsistencyStatementPlus:
		return gocb.QueryScanConsistencyRequestPlus
	}
	return gocb.QueryScanConsistencyNotBounded
}

// Execute runs a compiled statement and collects its rows.
func (s *Store) Execute(ctx context.Context, stmt query.Statement) ([]schema.Document, error) {
	s.logger.Debug("Executing N1QL", zap.String("statement", stmt.Text), zap.Int("consistency", int(stmt.Consistency)))

	result, err := s.cluster.Query(stmt.Text, &gocb.QueryOptions{
		ScanConsistency: ScanConsistency(stmt.Consistency),
		Context:         ctx,
	})
	if err != nil {
		s.logger.Error("Failed to execute N1QL", zap.Error(err), zap.String("statement", stmt.Text))
		return nil, mapError("query", "", err)
	}
	defer result.Close()

	rows := make([]schema.Document, 0)
	for result.Next() {
		var row schema.Document
		if err := result.Row(&row); err != nil {
			return nil, mapError("query", "", fmt.Errorf("failed to decode row: %w", err))
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, mapError("query", "", err)
	}
	return rows, nil
}

func content(op, key string, res *gocb.GetResult) (*persistence.Item, error) {
	var doc schema.Document
	if err := res.Content(&doc); err != nil {
		return nil, persistence.NewStoreError(op, key, fmt.Errorf("failed to decode document: %w", err))
	}
	return &persistence.Item{Key: key, Value: doc, Cas: uint64(res.Cas())}, nil
}

// Get reads a document by key.
func (s *Store) Get(ctx context.Context, key string) (*persistence.Item, error) {
	res, err := s.collection.Get(key, &gocb.GetOptions{Context: ctx})
	if err != nil {
		return nil, mapError("get", key, err)
	}
	return content("get", key, res)
}

// GetAndLock reads a document and locks it for lockTime.
func (s *Store) GetAndLock(ctx context.Context, key string, lockTime time.Duration) (*persistence.Item, error) {
	res, err := s.collection.GetAndLock(key, lockTime, &gocb.GetAndLockOptions{Context: ctx})
	if err != nil {
		return nil, mapError("getAndLock", key, err)
	}
	return content("getAndLock", key, res)
}

// Insert stores a new document.
func (s *Store) Insert(ctx context.Context, key string, doc schema.Document, opts persistence.WriteOptions) (uint64, error) {
	res, err := s.collection.Insert(key, doc, &gocb.InsertOptions{
		PersistTo:   opts.PersistTo,
		ReplicateTo: opts.ReplicateTo,
		Context:     ctx,
	})
	if err != nil {
		return 0, mapError("insert", key, err)
	}
	return uint64(res.Cas()), nil
}

// Replace overwrites a document if cas is current.
func (s *Store) Replace(ctx context.Context, key string, doc schema.Document, cas uint64, opts persistence.WriteOptions) (uint64, error) {
	res, err := s.collection.Replace(key, doc, &gocb.ReplaceOptions{
		Cas:         gocb.Cas(cas),
		PersistTo:   opts.PersistTo,
		ReplicateTo: opts.ReplicateTo,
		Context:     ctx,
	})
	if err != nil {
		return 0, mapError("replace", key, err)
	}
	return uint64(res.Cas()), nil
}

// Remove deletes a document.
func (s *Store) Remove(ctx context.Context, key string, opts persistence.WriteOptions) error {
	_, err := s.collection.Remove(key, &gocb.RemoveOptions{
		PersistTo:   opts.PersistTo,
		ReplicateTo: opts.ReplicateTo,
		Context:     ctx,
	})
	return mapError("remove", key, err)
}

// mapError translates SDK errors into the store error taxonomy. The SDK
// error stays in the chain for callers needing its details.
func mapError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var sentinel error
	switch {
	case errors.Is(err, gocb.ErrDocumentNotFound):
		sentinel = persistence.ErrKeyNotFound
	case errors.Is(err, gocb.ErrDocumentExists):
		sentinel = persistence.ErrKeyExists
	case errors.Is(err, gocb.ErrCasMismatch):
		sentinel = persistence.ErrVersionConflict
	case errors.Is(err, gocb.ErrDocumentLocked):
		sentinel = persistence.ErrDocumentLocked
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		sentinel = persistence.ErrTransport
	}
	return persistence.NewStoreError(op, key, &sdkError{sentinel: sentinel, cause: err})
}

// sdkError matches both its sentinel and the SDK error it was built from.
type sdkError struct {
	sentinel error
	cause    error
}

func (e *sdkError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *sdkError) Unwrap() []error {
	return []error{e.sentinel, e.cause}
}
