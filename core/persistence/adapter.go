package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/asaidimu/go-n1ql/core/query"
	"github.com/asaidimu/go-n1ql/core/schema"
	"github.com/asaidimu/go-n1ql/n1ql"
)

var errWorkerPanic = errors.New("create worker panicked")

// Adapter dispatches document operations for the collections registered in
// a ConnectionPool. Primary-key lookups go straight to the key-value API;
// everything else is compiled to a statement and executed.
type Adapter struct {
	pool       *ConnectionPool
	factory    query.StatementGeneratorFactory
	normalizer query.ResponseNormalizer
	newID      func() (string, error)
	logger     *zap.Logger

	bus           *events.TypedEventBus[Event]
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger. A nil logger disables logging.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		if logger == nil {
			logger = zap.NewNop()
		}
		a.logger = logger
	}
}

// WithGeneratorFactory replaces the N1QL statement generators.
func WithGeneratorFactory(f query.StatementGeneratorFactory) Option {
	return func(a *Adapter) { a.factory = f }
}

// WithNormalizer replaces the N1QL response normalizer.
func WithNormalizer(n query.ResponseNormalizer) Option {
	return func(a *Adapter) { a.normalizer = n }
}

// WithIDGenerator replaces the generator of new document ids.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(a *Adapter) { a.newID = fn }
}

// NewAdapter creates an Adapter over pool.
func NewAdapter(pool *ConnectionPool, opts ...Option) (*Adapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool cannot be nil")
	}
	bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	a := &Adapter{
		pool:          pool,
		factory:       n1ql.NewFactory(),
		normalizer:    n1ql.Normalizer{},
		newID:         timeBasedID,
		logger:        zap.NewNop(),
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func timeBasedID() (string, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// scope is everything an operation on one collection needs.
type scope struct {
	target
	conn      *Connection
	schema    *schema.SchemaDefinition
	generator query.StatementGenerator
}

func (a *Adapter) resolve(identity, collection string) (*scope, error) {
	conn, err := a.pool.Get(identity)
	if err != nil {
		return nil, err
	}
	sc, err := conn.Collections.Get(collection)
	if err != nil {
		return nil, err
	}
	gen, err := a.factory.CreateGenerator(collection, sc, conn.Config.Bucket)
	if err != nil {
		return nil, err
	}
	return &scope{
		target:    target{connection: identity, collection: collection},
		conn:      conn,
		schema:    sc,
		generator: gen,
	}, nil
}

func (a *Adapter) execute(ctx context.Context, s *scope, stmt query.Statement) ([]schema.Document, error) {
	a.logger.Debug("executing statement",
		zap.String("connection", s.connection),
		zap.String("statement", stmt.Text),
		zap.Int("consistency", int(stmt.Consistency)))
	return s.conn.Querier.Execute(ctx, stmt)
}

// primaryKeyLookup returns the id when the criteria is exactly one equality
// on the primary key with a scalar operand. Arrays, NULL and MISSING take
// the query path.
func primaryKeyLookup(sc *schema.SchemaDefinition, opts *query.Options) (string, bool) {
	if opts == nil {
		return "", false
	}
	cond, ok := opts.Where.SingleCondition()
	if !ok || cond.Operator != query.OperatorEq || !sc.IsPrimaryKey(cond.Field) {
		return "", false
	}
	switch v := cond.Value.(type) {
	case string:
		if v == "" || strings.EqualFold(v, query.Missing) {
			return "", false
		}
		return v, true
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(v), true
	}
	return "", false
}

func (a *Adapter) validate(s *scope, doc schema.Document, loose bool) error {
	if !s.conn.Config.ValidateWrites {
		return nil
	}
	if ok, issues := schema.NewValidator(s.schema).Validate(withoutKey(doc, s.schema.PrimaryKey), loose); !ok {
		return &ValidationError{Collection: s.schema.Name, Issues: issues}
	}
	return nil
}

func withoutKey(doc schema.Document, key string) schema.Document {
	out := copyDocument(doc)
	delete(out, key)
	return out
}

// Find returns the documents of collection matching opts. A lookup by
// primary key reads the document directly and yields an empty result when
// it does not exist.
func (a *Adapter) Find(ctx context.Context, identity, collection string, opts *query.Options) ([]schema.Document, error) {
	s, err := a.resolve(identity, collection)
	if err != nil {
		return nil, err
	}
	eff := s.conn.Config.effectiveOptions(opts)

	result, err := a.withEventEmission(s.target, "find", DocumentReadStart, DocumentReadSuccess, DocumentReadFailed, nil, opts, func() (any, error) {
		if id, ok := primaryKeyLookup(s.schema, eff); ok {
			return a.findByKey(ctx, s, n1ql.DocumentKey(collection, id), eff)
		}
		stmt, err := s.generator.BuildSelect(eff)
		if err != nil {
			return nil, err
		}
		rows, err := a.execute(ctx, s, stmt)
		if err != nil {
			return nil, err
		}
		return a.normalizer.Normalize(rows, collection, eff), nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]schema.Document), nil
}

func (a *Adapter) findByKey(ctx context.Context, s *scope, key string, opts *query.Options) ([]schema.Document, error) {
	item, err := s.conn.KV.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return []schema.Document{}, nil
	}
	if err != nil {
		return nil, err
	}
	pk := s.schema.PrimaryKey
	switch {
	case opts.IDOnly():
		return []schema.Document{{pk: key}}, nil
	case opts.IsSparse():
		sparse := schema.Document{pk: key}
		for _, attr := range opts.Select {
			if v, ok := item.Value[attr]; ok && attr != pk {
				sparse[attr] = v
			}
		}
		return []schema.Document{sparse}, nil
	}
	// Shape the document like a SELECT * row so both paths normalize alike.
	row := schema.Document{s.collection: copyDocument(item.Value), schema.DefaultPrimaryKey: key}
	docs := a.normalizer.Normalize([]schema.Document{row}, s.collection, opts)
	for _, doc := range docs {
		doc[pk] = key
	}
	return docs, nil
}

// returnOptions carries only the return format of opts, for normalizing
// RETURNING rows where projections do not apply.
func returnOptions(opts *query.Options) *query.Options {
	return &query.Options{ReturnFormat: opts.ReturnFormat}
}

// Create inserts a document. Without a caller-supplied id a key of the form
// "collection::<uuid>" is generated; a collision on a generated key is
// retried once with a fresh key.
func (a *Adapter) Create(ctx context.Context, identity, collection string, values schema.Document) (schema.Document, error) {
	s, err := a.resolve(identity, collection)
	if err != nil {
		return nil, err
	}
	result, err := a.withEventEmission(s.target, "create", DocumentCreateStart, DocumentCreateSuccess, DocumentCreateFailed, values, nil, func() (any, error) {
		return a.create(ctx, s, values)
	})
	if err != nil {
		return nil, err
	}
	return result.(schema.Document), nil
}

func (a *Adapter) generateKey(collection string) (string, error) {
	id, err := a.newID()
	if err != nil {
		return "", fmt.Errorf("could not generate document id: %w", err)
	}
	return n1ql.DocumentKey(collection, id), nil
}

func (a *Adapter) create(ctx context.Context, s *scope, values schema.Document) (schema.Document, error) {
	if err := a.validate(s, values, false); err != nil {
		return nil, err
	}
	pk := s.schema.PrimaryKey
	doc := copyDocument(values)

	var key string
	id, supplied := doc[pk]
	if supplied && id != nil && id != "" {
		key = n1ql.DocumentKey(s.collection, fmt.Sprint(id))
	} else {
		supplied = false
		k, err := a.generateKey(s.collection)
		if err != nil {
			return nil, err
		}
		key = k
	}
	doc[pk] = key

	wopts := s.conn.Config.writeOptions()
	_, err := s.conn.KV.Insert(ctx, key, doc, wopts)
	if err != nil && !supplied && errors.Is(err, ErrKeyExists) {
		KeyCollisionsTotal.WithLabelValues(s.connection, s.collection).Inc()
		a.emitEvent(createEvent(DocumentKeyCollision, "create", s.connection, s.collection, nil, nil, nil, nil, nil, time.Time{}).withContext("key", key))
		a.logger.Warn("generated key already exists, retrying", zap.String("key", key))

		if key, err = a.generateKey(s.collection); err != nil {
			return nil, err
		}
		doc[pk] = key
		_, err = s.conn.KV.Insert(ctx, key, doc, wopts)
	}
	if err != nil {
		return nil, err
	}
	if s.conn.Config.DoNotReturn || s.conn.Config.ReturnFormat == query.ReturnIDOnly {
		return schema.Document{pk: key}, nil
	}
	return doc, nil
}

// CreateEach inserts several documents concurrently. Results follow the
// input order; the first failing document (in input order) decides the
// returned error.
func (a *Adapter) CreateEach(ctx context.Context, identity, collection string, values []schema.Document) ([]schema.Document, error) {
	s, err := a.resolve(identity, collection)
	if err != nil {
		return nil, err
	}
	result, err := a.withEventEmission(s.target, "createEach", DocumentCreateStart, DocumentCreateSuccess, DocumentCreateFailed, values, nil, func() (any, error) {
		pool, err := ants.NewPool(s.conn.Config.CreateConcurrency, ants.WithPanicHandler(func(v any) {
			a.logger.Error("create worker panicked", zap.Any("panic", v))
		}))
		if err != nil {
			return nil, fmt.Errorf("could not start create workers: %w", err)
		}
		defer pool.Release()

		docs := make([]schema.Document, len(values))
		errs := make([]error, len(values))
		var wg sync.WaitGroup
		for i, v := range values {
			wg.Add(1)
			task := func() {
				defer wg.Done()
				errs[i] = errWorkerPanic
				if err := ctx.Err(); err != nil {
					errs[i] = err
					return
				}
				docs[i], errs[i] = a.create(ctx, s, v)
			}
			if err := pool.Submit(task); err != nil {
				wg.Done()
				errs[i] = err
			}
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]schema.Document), nil
}

// Update sets values on the documents matching opts. A lookup by primary
// key is a read-modify-write of that document (see UpdateByID); anything
// else runs an UPDATE statement.
func (a *Adapter) Update(ctx context.Context, identity, collection string, opts *query.Options, values schema.Document) ([]schema.Document, error) {
	s, err := a.resolve(identity, collection)
	if err != nil {
		return nil, err
	}
	eff := s.conn.Config.effectiveOptions(opts)

	result, err := a.withEventEmission(s.target, "update", DocumentUpdateStart, DocumentUpdateSuccess, DocumentUpdateFailed, values, opts, func() (any, error) {
		if id, ok := primaryKeyLookup(s.schema, eff); ok {
			doc, err := a.updateByKey(ctx, s, n1ql.DocumentKey(collection, id), values, eff)
			if err != nil || doc == nil {
				return []schema.Document{}, err
			}
			return []schema.Document{doc}, nil
		}
		if err := a.validate(s, values, true); err != nil {
			return nil, err
		}
		stmt, err := s.generator.BuildUpdate(eff, values)
		if err != nil {
			return nil, err
		}
		rows, err := a.execute(ctx, s, stmt)
		if err != nil {
			return nil, err
		}
		return a.normalizer.Normalize(rows, collection, returnOptions(eff)), nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]schema.Document), nil
}

// UpdateByID merges values into the document with the given id. The
// connection's UpdateConcurrency decides between retrying on version
// conflicts and locking the document first. The result is nil when the
// connection is configured not to return documents.
func (a *Adapter) UpdateByID(ctx context.Context, identity, collection, id string, values schema.Document) (schema.Document, error) {
	s, err := a.resolve(identity, collection)
	if err != nil {
		return nil, err
	}
	eff := s.conn.Config.effectiveOptions(nil)
	key := n1ql.DocumentKey(collection, id)

	result, err := a.withEventEmission(s.target, "updateById", DocumentUpdateStart, DocumentUpdateSuccess, DocumentUpdateFailed, values, key, func() (any, error) {
		return a.updateByKey(ctx, s, key, values, eff)
	})
	if err != nil {
		return nil, err
	}
	return result.(schema.Document), nil
}

func (a *Adapter) updateByKey(ctx context.Context, s *scope, key string, values schema.Document, opts *query.Options) (schema.Document, error) {
	if err := a.validate(s, values, true); err != nil {
		return nil, err
	}
	changes := withoutKey(values, s.schema.PrimaryKey)

	var (
		updated schema.Document
		err     error
	)
	if s.conn.Config.UpdateConcurrency == Pessimistic {
		updated, err = a.pessimisticUpdate(ctx, s, key, changes)
	} else {
		updated, err = a.optimisticUpdate(ctx, s, key, changes)
	}
	if err != nil {
		return nil, err
	}
	if opts.DoNotReturn {
		return nil, nil
	}
	if opts.IDOnly() {
		return schema.Document{s.schema.PrimaryKey: key}, nil
	}
	updated[s.schema.PrimaryKey] = key
	return updated, nil
}

// optimisticUpdate re-reads and retries the replace on every version
// conflict, making at most 1 + MaxOptimisticRetries attempts.
func (a *Adapter) optimisticUpdate(ctx context.Context, s *scope, key string, changes schema.Document) (schema.Document, error) {
	attempts := 1 + s.conn.Config.MaxOptimisticRetries
	wopts := s.conn.Config.writeOptions()

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var item *Item
		if item, err = s.conn.KV.Get(ctx, key); err != nil {
			return nil, err
		}
		doc := merge(item.Value, changes)
		if _, err = s.conn.KV.Replace(ctx, key, doc, item.Cas, wopts); err == nil {
			return doc, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		if attempt < attempts {
			UpdateRetriesTotal.WithLabelValues(s.connection, s.collection).Inc()
			a.emitEvent(createEvent(DocumentUpdateConflict, "updateById", s.connection, s.collection, nil, nil, nil, nil, nil, time.Time{}).
				withContext("key", key).withContext("attempt", attempt))
			a.logger.Warn("version conflict, retrying update",
				zap.String("key", key),
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", attempts))
		}
	}
	return nil, err
}

// pessimisticUpdate locks the document, then replaces it, which releases
// the lock. Lock failures are returned as they are.
func (a *Adapter) pessimisticUpdate(ctx context.Context, s *scope, key string, changes schema.Document) (schema.Document, error) {
	item, err := s.conn.KV.GetAndLock(ctx, key, s.conn.Config.LockTime)
	if err != nil {
		return nil, err
	}
	doc := merge(item.Value, changes)
	if _, err := s.conn.KV.Replace(ctx, key, doc, item.Cas, s.conn.Config.writeOptions()); err != nil {
		return nil, err
	}
	return doc, nil
}

// Destroy removes the documents matching opts and returns them unless
// DoNotReturn is set. Without criteria the whole collection is dropped.
func (a *Adapter) Destroy(ctx context.Context, identity, collection string, opts *query.Options) ([]schema.Document, error) {
	if opts == nil || opts.Where.IsEmpty() {
		if err := a.Drop(ctx, identity, collection); err != nil {
			return nil, err
		}
		return []schema.Document{}, nil
	}
	s, err := a.resolve(identity, collection)
	if err != nil {
		return nil, err
	}
	eff := s.conn.Config.effectiveOptions(opts)

	result, err := a.withEventEmission(s.target, "destroy", DocumentDeleteStart, DocumentDeleteSuccess, DocumentDeleteFailed, nil, opts, func() (any, error) {
		if id, ok := primaryKeyLookup(s.schema, eff); ok {
			key := n1ql.DocumentKey(collection, id)
			docs := []schema.Document{}
			if !eff.DoNotReturn {
				found, err := a.findByKey(ctx, s, key, returnOptions(eff))
				if err != nil {
					return nil, err
				}
				docs = found
			}
			if err := s.conn.KV.Remove(ctx, key, s.conn.Config.writeOptions()); err != nil {
				return nil, err
			}
			return docs, nil
		}
		stmt, err := s.generator.BuildDelete(eff)
		if err != nil {
			return nil, err
		}
		rows, err := a.execute(ctx, s, stmt)
		if err != nil {
			return nil, err
		}
		return a.normalizer.Normalize(rows, collection, returnOptions(eff)), nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]schema.Document), nil
}

// Drop deletes every document of the collection.
func (a *Adapter) Drop(ctx context.Context, identity, collection string) error {
	s, err := a.resolve(identity, collection)
	if err != nil {
		return err
	}
	eff := s.conn.Config.effectiveOptions(&query.Options{DoNotReturn: true})

	_, err = a.withEventEmission(s.target, "drop", CollectionDropStart, CollectionDropSuccess, CollectionDropFailed, nil, nil, func() (any, error) {
		stmt, err := s.generator.BuildDelete(eff)
		if err != nil {
			return nil, err
		}
		_, err = a.execute(ctx, s, stmt)
		return nil, err
	})
	return err
}

// Query runs a raw statement on the connection and returns the rows as the
// store produced them. A zero consistency uses the connection's level.
func (a *Adapter) Query(ctx context.Context, identity, statement string, consistency query.ConsistencyLevel) ([]schema.Document, error) {
	conn, err := a.pool.Get(identity)
	if err != nil {
		return nil, err
	}
	if consistency == 0 {
		consistency = conn.Config.Consistency
	}
	if !consistency.IsValid() {
		return nil, schema.NewConfigurationError(schema.CodeInvalidOptions, "consistency", "unknown consistency level %d", consistency)
	}
	stmt := query.Statement{Text: statement, Consistency: consistency}
	s := &scope{target: target{connection: identity}, conn: conn}

	result, err := a.withEventEmission(s.target, "query", QueryStart, QuerySuccess, QueryFailed, nil, statement, func() (any, error) {
		return a.execute(ctx, s, stmt)
	})
	if err != nil {
		return nil, err
	}
	return result.([]schema.Document), nil
}
