package query

// CriteriaBuilder provides a fluent API for building a Criteria tree.
//
//	c := NewCriteria().
//		Where("name").Eq("Tomas").
//		Or(
//			NewCriteria().Where("age").Gt(30).Build(),
//			NewCriteria().Where("city").StartsWith("Bo").Build(),
//		).
//		Build()
type CriteriaBuilder struct {
	clauses Criteria
}

// NewCriteria creates a new, empty criteria builder.
func NewCriteria() *CriteriaBuilder {
	return &CriteriaBuilder{}
}

// Build returns the constructed criteria.
func (cb *CriteriaBuilder) Build() Criteria {
	out := make(Criteria, len(cb.clauses))
	copy(out, cb.clauses)
	return out
}

// Where begins a condition on a field.
func (cb *CriteriaBuilder) Where(field string) *ConditionBuilder {
	return &ConditionBuilder{parent: cb, field: field}
}

// Or adds a group of alternatives; each alternative is itself a conjunction.
func (cb *CriteriaBuilder) Or(alternatives ...Criteria) *CriteriaBuilder {
	cb.clauses = append(cb.clauses, Clause{Or: alternatives})
	return cb
}

// ConditionBuilder is used to build a single condition (e.g., field = value).
type ConditionBuilder struct {
	parent *CriteriaBuilder
	field  string
}

// Eq adds an equality condition. A nil value tests for NULL.
func (b *ConditionBuilder) Eq(value any) *CriteriaBuilder {
	return b.add(OperatorEq, value)
}

// Not adds a negated condition: <>, IS NOT NULL or NOT IN depending on value.
func (b *ConditionBuilder) Not(value any) *CriteriaBuilder {
	return b.add(OperatorNot, value)
}

// Lt adds a less-than condition.
func (b *ConditionBuilder) Lt(value any) *CriteriaBuilder {
	return b.add(OperatorLessThan, value)
}

// Lte adds a less-than-or-equal condition.
func (b *ConditionBuilder) Lte(value any) *CriteriaBuilder {
	return b.add(OperatorLessOrEqual, value)
}

// Gt adds a greater-than condition.
func (b *ConditionBuilder) Gt(value any) *CriteriaBuilder {
	return b.add(OperatorGreaterThan, value)
}

// Gte adds a greater-than-or-equal condition.
func (b *ConditionBuilder) Gte(value any) *CriteriaBuilder {
	return b.add(OperatorGreaterOrEqual, value)
}

// In adds a set-membership condition.
func (b *ConditionBuilder) In(values ...any) *CriteriaBuilder {
	return b.add(OperatorIn, values)
}

// NotIn adds a negated set-membership condition.
func (b *ConditionBuilder) NotIn(values ...any) *CriteriaBuilder {
	return b.add(OperatorNot, values)
}

// Like adds a LIKE condition; the caller supplies the wildcards.
func (b *ConditionBuilder) Like(pattern string) *CriteriaBuilder {
	return b.add(OperatorLike, pattern)
}

// Contains adds a substring condition.
func (b *ConditionBuilder) Contains(value string) *CriteriaBuilder {
	return b.add(OperatorContains, value)
}

// StartsWith adds a prefix condition.
func (b *ConditionBuilder) StartsWith(value string) *CriteriaBuilder {
	return b.add(OperatorStartsWith, value)
}

// EndsWith adds a suffix condition.
func (b *ConditionBuilder) EndsWith(value string) *CriteriaBuilder {
	return b.add(OperatorEndsWith, value)
}

// IsMissing tests that the attribute is absent from the document.
func (b *ConditionBuilder) IsMissing() *CriteriaBuilder {
	return b.add(OperatorEq, Missing)
}

// IsNotMissing tests that the attribute is present in the document.
func (b *ConditionBuilder) IsNotMissing() *CriteriaBuilder {
	return b.add(OperatorNot, Missing)
}

// Custom adds a condition with an arbitrary operator. Unknown operators are
// rejected when the criteria is compiled.
func (b *ConditionBuilder) Custom(operator ComparisonOperator, value any) *CriteriaBuilder {
	return b.add(operator, value)
}

func (b *ConditionBuilder) add(operator ComparisonOperator, value any) *CriteriaBuilder {
	b.parent.clauses = append(b.parent.clauses, Clause{
		Condition: &Condition{Field: b.field, Operator: operator, Value: value},
	})
	return b.parent
}

// QueryBuilder provides a fluent and intuitive API for building Options.
type QueryBuilder struct {
	options Options
}

// NewQueryBuilder creates a new, empty query builder instance.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Build returns the constructed Options.
func (qb *QueryBuilder) Build() Options {
	return qb.options
}

// Clone creates a copy of the builder whose slices and maps are not shared
// with the original.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	o := qb.options
	o.Where = append(Criteria(nil), o.Where...)
	o.Select = append([]string(nil), o.Select...)
	o.Sort = append([]SortConfiguration(nil), o.Sort...)
	o.GroupBy = append([]string(nil), o.GroupBy...)
	if o.Limit != nil {
		o.Limit = IntPtr(*o.Limit)
	}
	if o.Skip != nil {
		o.Skip = IntPtr(*o.Skip)
	}
	if o.Aggregates != nil {
		aggs := make(Aggregates, len(o.Aggregates))
		for k, v := range o.Aggregates {
			aggs[k] = append([]string(nil), v...)
		}
		o.Aggregates = aggs
	}
	return &QueryBuilder{options: o}
}

// Reset clears all configurations from the query builder.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	qb.options = Options{}
	return qb
}

// Filter appends the clauses of c to the WHERE criteria.
func (qb *QueryBuilder) Filter(c Criteria) *QueryBuilder {
	qb.options.Where = append(qb.options.Where, c...)
	return qb
}

// Select restricts the result to the given fields (sparse projection).
func (qb *QueryBuilder) Select(fields ...string) *QueryBuilder {
	qb.options.Select = append(qb.options.Select, fields...)
	return qb
}

// OrderByAsc adds an ascending sort on field.
func (qb *QueryBuilder) OrderByAsc(field string) *QueryBuilder {
	qb.options.Sort = append(qb.options.Sort, SortConfiguration{Field: field, Direction: SortDirectionAsc})
	return qb
}

// OrderByDesc adds a descending sort on field.
func (qb *QueryBuilder) OrderByDesc(field string) *QueryBuilder {
	qb.options.Sort = append(qb.options.Sort, SortConfiguration{Field: field, Direction: SortDirectionDesc})
	return qb
}

// Limit sets the maximum number of rows.
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	qb.options.Limit = IntPtr(limit)
	return qb
}

// Skip sets the number of rows to skip.
func (qb *QueryBuilder) Skip(skip int) *QueryBuilder {
	qb.options.Skip = IntPtr(skip)
	return qb
}

// GroupBy adds grouping attributes. At least one aggregate is required.
func (qb *QueryBuilder) GroupBy(fields ...string) *QueryBuilder {
	qb.options.GroupBy = append(qb.options.GroupBy, fields...)
	return qb
}

// Aggregate applies an aggregate function to the given fields.
func (qb *QueryBuilder) Aggregate(fn AggregationType, fields ...string) *QueryBuilder {
	if qb.options.Aggregates == nil {
		qb.options.Aggregates = make(Aggregates)
	}
	qb.options.Aggregates[fn] = append(qb.options.Aggregates[fn], fields...)
	return qb
}

// CaseSensitive turns off lower-casing of string comparisons.
func (qb *QueryBuilder) CaseSensitive() *QueryBuilder {
	qb.options.CaseSensitive = true
	return qb
}

// StableOrder orders by document id when no explicit sort is set.
func (qb *QueryBuilder) StableOrder() *QueryBuilder {
	qb.options.StableOrder = true
	return qb
}

// DoNotReturn drops RETURNING clauses from updates and deletes.
func (qb *QueryBuilder) DoNotReturn() *QueryBuilder {
	qb.options.DoNotReturn = true
	return qb
}

// Consistency sets the scan consistency for the statement.
func (qb *QueryBuilder) Consistency(level ConsistencyLevel) *QueryBuilder {
	qb.options.Consistency = level
	return qb
}
