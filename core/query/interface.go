package query

import (
	"github.com/asaidimu/go-n1ql/core/schema"
)

// StatementGeneratorFactory creates StatementGenerator instances bound to one
// collection of one store namespace.
type StatementGeneratorFactory interface {
	// CreateGenerator creates a new StatementGenerator for a collection. The
	// schema may be nil, in which case attribute names are used unresolved.
	CreateGenerator(collection string, schema *schema.SchemaDefinition, namespace string) (StatementGenerator, error)
}

// StatementGenerator translates Options into statements of a concrete query
// dialect. Implementations are pure: they hold no mutable state and may be
// shared between goroutines.
type StatementGenerator interface {
	// BuildSelect compiles a SELECT statement, including projection,
	// aggregates, grouping, ordering and pagination.
	BuildSelect(opts *Options) (Statement, error)

	// BuildUpdate compiles an UPDATE statement setting values on every
	// document matched by opts.Where.
	BuildUpdate(opts *Options, values map[string]any) (Statement, error)

	// BuildDelete compiles a DELETE statement for every document matched by
	// opts.Where.
	BuildDelete(opts *Options) (Statement, error)
}

// ResponseNormalizer reshapes raw rows returned by the store into records.
type ResponseNormalizer interface {
	Normalize(rows []schema.Document, collection string, opts *Options) []schema.Document
}
