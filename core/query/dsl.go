// Package query defines the dialect-independent description of an operation:
// the criteria tree, the query options and the compiled statement handed to
// the store.
package query

import (
	"github.com/asaidimu/go-n1ql/core/schema"
)

// ComparisonOperator defines the set of operators that can be used in a condition.
type ComparisonOperator string

// Supported comparison operators. Symbolic and named spellings are both accepted.
const (
	OperatorEq                 ComparisonOperator = "="
	OperatorLessThan           ComparisonOperator = "<"
	OperatorLessThanName       ComparisonOperator = "lessThan"
	OperatorLessOrEqual        ComparisonOperator = "<="
	OperatorLessOrEqualName    ComparisonOperator = "lessThanOrEqual"
	OperatorGreaterThan        ComparisonOperator = ">"
	OperatorGreaterThanName    ComparisonOperator = "greaterThan"
	OperatorGreaterOrEqual     ComparisonOperator = ">="
	OperatorGreaterOrEqualName ComparisonOperator = "greaterThanOrEqual"
	OperatorNot                ComparisonOperator = "!"
	OperatorNotName            ComparisonOperator = "not"
	OperatorLike               ComparisonOperator = "like"
	OperatorContains           ComparisonOperator = "contains"
	OperatorStartsWith         ComparisonOperator = "startsWith"
	OperatorEndsWith           ComparisonOperator = "endsWith"
	OperatorIn                 ComparisonOperator = "IN"
)

var knownOperators = map[ComparisonOperator]struct{}{
	OperatorEq: {}, OperatorLessThan: {}, OperatorLessThanName: {}, OperatorLessOrEqual: {},
	OperatorLessOrEqualName: {}, OperatorGreaterThan: {}, OperatorGreaterThanName: {},
	OperatorGreaterOrEqual: {}, OperatorGreaterOrEqualName: {}, OperatorNot: {}, OperatorNotName: {},
	OperatorLike: {}, OperatorContains: {}, OperatorStartsWith: {}, OperatorEndsWith: {}, OperatorIn: {},
}

// IsKnown reports whether the operator is one the compiler understands.
func (c ComparisonOperator) IsKnown() bool {
	_, ok := knownOperators[c]
	return ok
}

// Missing is the sentinel value (matched case-insensitively) used to test
// whether an attribute exists at all.
const Missing = "MISSING"

// Raw is a value emitted verbatim into the statement, without quoting or
// escaping. Never build a Raw from untrusted input.
type Raw string

// Condition is a leaf of the criteria tree.
type Condition struct {
	Field    string             `json:"field"`
	Operator ComparisonOperator `json:"operator"`
	Value    any                `json:"value"`
}

// Clause is either a single condition or a group of OR-ed alternatives.
// Sibling clauses are AND-ed.
type Clause struct {
	Condition *Condition `json:",omitempty"`
	Or        []Criteria `json:",omitempty"`
}

// Criteria is an ordered conjunction of clauses.
type Criteria []Clause

// IsEmpty reports whether the criteria has no clauses.
func (c Criteria) IsEmpty() bool {
	return len(c) == 0
}

// SingleCondition returns the only condition when the criteria is exactly one leaf.
func (c Criteria) SingleCondition() (*Condition, bool) {
	if len(c) != 1 || c[0].Condition == nil {
		return nil, false
	}
	return c[0].Condition, true
}

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "ASC"
	SortDirectionDesc SortDirection = "DESC"
)

// SortConfiguration defines the sorting order for a specific field.
type SortConfiguration struct {
	Field     string
	Direction SortDirection
}

// AggregationType specifies the type of aggregation to be performed.
type AggregationType string

// Supported aggregation types.
const (
	AggregationTypeArrayAgg AggregationType = "array_agg"
	AggregationTypeAvg      AggregationType = "avg"
	AggregationTypeCount    AggregationType = "count"
	AggregationTypeMax      AggregationType = "max"
	AggregationTypeMin      AggregationType = "min"
	AggregationTypeSum      AggregationType = "sum"
)

// AggregationOrder is the fixed order in which aggregate clauses are emitted.
var AggregationOrder = []AggregationType{
	AggregationTypeArrayAgg,
	AggregationTypeAvg,
	AggregationTypeCount,
	AggregationTypeMax,
	AggregationTypeMin,
	AggregationTypeSum,
}

// Aggregates maps an aggregate function to the attributes it is applied to.
type Aggregates map[AggregationType][]string

// Count returns the number of declared function/attribute pairs.
func (a Aggregates) Count() int {
	n := 0
	for _, t := range AggregationOrder {
		n += len(a[t])
	}
	return n
}

// ReturnFormat selects how much of a document an operation hands back.
type ReturnFormat string

const (
	ReturnFull   ReturnFormat = "full"
	ReturnIDOnly ReturnFormat = "idOnly"
)

// ConsistencyLevel states how strongly a query must reflect recent writes.
// It is passed through opaquely to the store.
type ConsistencyLevel int

const (
	ConsistencyNotBounded    ConsistencyLevel = 1 // default
	ConsistencyRequestPlus   ConsistencyLevel = 2 // strong consistency for the request
	ConsistencyStatementPlus ConsistencyLevel = 3 // strong consistency for the statement
)

// IsValid reports whether l is one of the three defined levels.
func (l ConsistencyLevel) IsValid() bool {
	return l >= ConsistencyNotBounded && l <= ConsistencyStatementPlus
}

// Options describes everything about an operation except the collection it
// targets. The zero value selects every document of the collection.
type Options struct {
	Where      Criteria
	Select     []string
	Sort       []SortConfiguration
	Limit      *int
	Skip       *int
	GroupBy    []string
	Aggregates Aggregates
	// CaseSensitive disables lower-casing of string comparisons.
	CaseSensitive bool
	// ReturnFormat idOnly reduces every returned record to its key.
	ReturnFormat ReturnFormat
	// StableOrder orders by document id when no sort is given, since the
	// store provides no implicit order.
	StableOrder bool
	// DoNotReturn drops the RETURNING clause of updates and deletes.
	DoNotReturn bool
	// Consistency defaults to the connection's level when zero.
	Consistency ConsistencyLevel
}

// IsSparse reports whether the options project a subset of fields.
func (o *Options) IsSparse() bool {
	return o != nil && len(o.Select) > 0
}

// IDOnly reports whether returned records are reduced to their key.
func (o *Options) IDOnly() bool {
	return o != nil && o.ReturnFormat == ReturnIDOnly
}

// Validate checks the options once at the boundary. groupBy without an
// aggregate function is a configuration error.
func (o *Options) Validate() error {
	if o == nil {
		return nil
	}
	if len(o.GroupBy) > 0 && o.Aggregates.Count() == 0 {
		return schema.NewConfigurationError(schema.CodeMissingAggregate, o.GroupBy[0],
			"you have to use an aggregate function if using groupBy clause")
	}
	for t := range o.Aggregates {
		if !isAggregationType(t) {
			return schema.NewConfigurationError(schema.CodeInvalidOptions, string(t), "unknown aggregate function '%s'", t)
		}
	}
	if o.Limit != nil && *o.Limit < 0 {
		return schema.NewConfigurationError(schema.CodeInvalidOptions, "limit", "limit cannot be negative")
	}
	if o.Skip != nil && *o.Skip < 0 {
		return schema.NewConfigurationError(schema.CodeInvalidOptions, "skip", "skip cannot be negative")
	}
	for _, s := range o.Sort {
		if s.Direction != SortDirectionAsc && s.Direction != SortDirectionDesc {
			return schema.NewConfigurationError(schema.CodeInvalidOptions, s.Field, "unknown sort direction '%s'", s.Direction)
		}
	}
	if o.Consistency != 0 && !o.Consistency.IsValid() {
		return schema.NewConfigurationError(schema.CodeInvalidOptions, "consistency", "unknown consistency level %d", o.Consistency)
	}
	switch o.ReturnFormat {
	case "", ReturnFull, ReturnIDOnly:
	default:
		return schema.NewConfigurationError(schema.CodeInvalidOptions, "returnFormat", "unknown return format '%s'", o.ReturnFormat)
	}
	if o.IDOnly() && o.Aggregates.Count() > 0 {
		return schema.NewConfigurationError(schema.CodeInvalidOptions, "returnFormat", "idOnly cannot be combined with aggregates")
	}
	return nil
}

func isAggregationType(t AggregationType) bool {
	for _, known := range AggregationOrder {
		if t == known {
			return true
		}
	}
	return false
}

// Statement is a compiled query: immutable text plus the consistency it must
// run with.
type Statement struct {
	Text        string
	Consistency ConsistencyLevel
}

// String implements fmt.Stringer.
func (s Statement) String() string {
	return s.Text
}
