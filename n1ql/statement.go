// Package n1ql compiles query options into N1QL statements for documents of
// one collection (document type) sharing a Couchbase bucket, and reshapes the
// rows N1QL returns into flat records.
package n1ql

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/asaidimu/go-n1ql/core/query"
	"github.com/asaidimu/go-n1ql/core/schema"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Factory implements query.StatementGeneratorFactory for N1QL.
type Factory struct{}

// NewFactory creates a new instance of Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// CreateGenerator creates a Generator for the given collection.
func (f *Factory) CreateGenerator(collection string, sc *schema.SchemaDefinition, namespace string) (query.StatementGenerator, error) {
	return NewGenerator(collection, sc, namespace)
}

// Generator builds SELECT, UPDATE and DELETE statements against the
// documents of one collection stored in a bucket (the namespace). Every
// statement built from options is restricted to keys prefixed
// "collection::".
type Generator struct {
	collection string
	namespace  string
	schema     *schema.SchemaDefinition
}

// NewGenerator creates a statement generator. The schema may be nil, in
// which case attribute names are used unresolved.
func NewGenerator(collection string, sc *schema.SchemaDefinition, namespace string) (*Generator, error) {
	if !identifierPattern.MatchString(collection) {
		return nil, schema.NewConfigurationError(schema.CodeInvalidSchema, collection, "invalid collection name '%s'", collection)
	}
	if namespace == "" {
		return nil, schema.NewConfigurationError(schema.CodeInvalidOptions, "namespace", "namespace cannot be empty")
	}
	return &Generator{collection: collection, namespace: namespace, schema: sc}, nil
}

// keyspace renders the namespace, escaping segments that are not plain
// identifiers (e.g. "travel-sample").
func (g *Generator) keyspace() string {
	segments := strings.Split(g.namespace, ".")
	for i, s := range segments {
		if !identifierPattern.MatchString(s) {
			segments[i] = Escape(s)
		}
	}
	return strings.Join(segments, ".")
}

func (g *Generator) compiler(opts *query.Options) *Compiler {
	return NewCompiler(g.collection, g.schema, opts != nil && opts.CaseSensitive)
}

func consistencyOf(opts *query.Options) query.ConsistencyLevel {
	if opts == nil {
		return 0
	}
	return opts.Consistency
}

// BuildSelect compiles a SELECT statement. Nil options select every
// document of the bucket under the collection alias without any filter.
func (g *Generator) BuildSelect(opts *query.Options) (query.Statement, error) {
	if opts == nil {
		return query.Statement{Text: "SELECT *, " + metaID(g.collection) + " FROM " + g.keyspace() + " " + g.collection}, nil
	}
	if err := opts.Validate(); err != nil {
		return query.Statement{}, err
	}
	c := g.compiler(opts)

	fields, err := g.projection(c, opts)
	if err != nil {
		return query.Statement{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(fields, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(g.keyspace())
	sb.WriteString(" ")
	sb.WriteString(g.collection)

	where, err := c.Where(opts.Where)
	if err != nil {
		return query.Statement{}, err
	}
	sb.WriteString(where)

	if len(opts.GroupBy) > 0 {
		groups := make([]string, 0, len(opts.GroupBy))
		for _, attr := range opts.GroupBy {
			p, err := c.Path(attr)
			if err != nil {
				return query.Statement{}, err
			}
			groups = append(groups, p)
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groups, ", "))
	}

	switch {
	case len(opts.Sort) > 0:
		orders := make([]string, 0, len(opts.Sort))
		for _, s := range opts.Sort {
			p, err := c.Path(s.Field)
			if err != nil {
				return query.Statement{}, err
			}
			orders = append(orders, p+" "+string(s.Direction))
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orders, ", "))
	case opts.StableOrder && len(opts.GroupBy) == 0 && opts.Aggregates.Count() == 0:
		sb.WriteString(" ORDER BY " + metaID(g.collection) + " ASC")
	}

	if opts.Limit != nil {
		sb.WriteString(" LIMIT " + strconv.Itoa(*opts.Limit))
	}
	if opts.Skip != nil {
		sb.WriteString(" OFFSET " + strconv.Itoa(*opts.Skip))
	}
	return query.Statement{Text: sb.String(), Consistency: opts.Consistency}, nil
}

// projection builds the SELECT list. Aggregating statements project the
// grouping attributes and the aggregates only, since N1QL rejects
// non-aggregated document fields next to aggregates.
func (g *Generator) projection(c *Compiler, opts *query.Options) ([]string, error) {
	var fields []string
	if opts.Aggregates.Count() > 0 {
		for _, attr := range opts.GroupBy {
			p, err := c.Path(attr)
			if err != nil {
				return nil, err
			}
			fields = append(fields, p+" AS "+Escape(attr))
		}
		for _, fn := range query.AggregationOrder {
			for _, attr := range opts.Aggregates[fn] {
				p, err := c.Path(attr)
				if err != nil {
					return nil, err
				}
				fields = append(fields, fmt.Sprintf("%s(%s) AS %s", fn, p, Escape(attr)))
			}
		}
		return fields, nil
	}
	if opts.IDOnly() {
		return []string{g.keyProjection()}, nil
	}
	if len(opts.Select) == 0 {
		return []string{"*", metaID(g.collection)}, nil
	}
	for _, attr := range opts.Select {
		if g.schema.IsPrimaryKey(attr) {
			continue
		}
		p, err := c.Path(attr)
		if err != nil {
			return nil, err
		}
		fields = append(fields, p)
	}
	return append(fields, metaID(g.collection)), nil
}

// BuildUpdate compiles an UPDATE statement that sets values on every
// document matched by opts.Where. The primary key cannot be assigned.
func (g *Generator) BuildUpdate(opts *query.Options, values map[string]any) (query.Statement, error) {
	if err := opts.Validate(); err != nil {
		return query.Statement{}, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if g.schema.IsPrimaryKey(k) {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return query.Statement{}, schema.NewConfigurationError(schema.CodeInvalidValue, "", "update requires at least one value to set")
	}
	sort.Strings(keys)

	assignments := make([]string, 0, len(keys))
	for _, k := range keys {
		var field *schema.FieldDefinition
		if g.schema != nil {
			f, nested, err := g.schema.Resolve(k)
			if err != nil {
				return query.Statement{}, err
			}
			if !nested {
				field = f
			}
		}
		literal, err := PrepareAssignment(values[k], field)
		if err != nil {
			return query.Statement{}, err
		}
		assignments = append(assignments, escapePath(k)+" = "+literal)
	}

	where, err := g.compiler(opts).Where(whereOf(opts))
	if err != nil {
		return query.Statement{}, err
	}
	text := "UPDATE " + g.keyspace() + " " + g.collection + " SET " + strings.Join(assignments, ", ") + where + g.returning(opts)
	return query.Statement{Text: text, Consistency: consistencyOf(opts)}, nil
}

// BuildDelete compiles a DELETE statement for every document matched by
// opts.Where. With no criteria every document of the collection is removed.
func (g *Generator) BuildDelete(opts *query.Options) (query.Statement, error) {
	if err := opts.Validate(); err != nil {
		return query.Statement{}, err
	}
	where, err := g.compiler(opts).Where(whereOf(opts))
	if err != nil {
		return query.Statement{}, err
	}
	text := "DELETE FROM " + g.keyspace() + " " + g.collection + where + g.returning(opts)
	return query.Statement{Text: text, Consistency: consistencyOf(opts)}, nil
}

func (g *Generator) returning(opts *query.Options) string {
	if opts != nil && opts.DoNotReturn {
		return ""
	}
	if opts.IDOnly() {
		return " RETURNING " + g.keyProjection()
	}
	return " RETURNING " + g.collection + ", " + metaID(g.collection)
}

// keyProjection names the document id after the primary key, so id-only
// records have the shape {primaryKey: key}.
func (g *Generator) keyProjection() string {
	pk := schema.DefaultPrimaryKey
	if g.schema != nil && g.schema.PrimaryKey != "" {
		pk = g.schema.PrimaryKey
	}
	return metaID(g.collection) + " AS " + Escape(pk)
}

func whereOf(opts *query.Options) query.Criteria {
	if opts == nil {
		return nil
	}
	return opts.Where
}

func escapePath(path string) string {
	segments := strings.Split(path, ".")
	for i, s := range segments {
		segments[i] = Escape(s)
	}
	return strings.Join(segments, ".")
}

// BuildSelect returns the unfiltered select of a collection stored in
// namespace: SELECT *, META(collection).id FROM namespace collection.
func BuildSelect(collection, namespace string) (string, error) {
	g, err := NewGenerator(collection, nil, namespace)
	if err != nil {
		return "", err
	}
	stmt, err := g.BuildSelect(nil)
	return stmt.Text, err
}

// Where compiles criteria into a WHERE clause without schema information.
// A non-empty collection adds the document type restriction.
func Where(criteria query.Criteria, collection string) (string, error) {
	return NewCompiler(collection, nil, false).Where(criteria)
}
