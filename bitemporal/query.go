package bitemporal

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

/***** Term *****/

type TermKind int

const (
	invalidTerm TermKind = iota
	SymbolTerm
	IdentifierTerm
	ConstantTerm
)

// Term is one position of a where clause: a Symbol, an entity Identifier, or a scalar constant.
type Term struct {
	kind   TermKind
	symbol Symbol
	id     Identifier
	value  any
	reason string
}

// Var makes a Symbol term.
func Var(symbol Symbol) Term {
	if symbol.IsZero() {
		return Term{reason: "zero symbol"}
	}

	return Term{kind: SymbolTerm, symbol: symbol}
}

// Ref makes an Identifier term.
func Ref(id Identifier) Term {
	if id.IsZero() {
		return Term{reason: "zero identifier"}
	}

	return Term{kind: IdentifierTerm, id: id}
}

// Const makes a constant term from a string, bool, integer or finite float.
// An Identifier is turned into a Ref, any other type yields a term that fails Finalize.
func Const(value any) Term {
	switch v := value.(type) {
	case Identifier:
		return Ref(v)
	case Symbol:
		return Var(v)
	case string, bool:
		return Term{kind: ConstantTerm, value: v}
	case float64:
		return floatConst(v)
	case float32:
		return floatConst(float64(v))
	case int:
		return Term{kind: ConstantTerm, value: int64(v)}
	case int8:
		return Term{kind: ConstantTerm, value: int64(v)}
	case int16:
		return Term{kind: ConstantTerm, value: int64(v)}
	case int32:
		return Term{kind: ConstantTerm, value: int64(v)}
	case int64:
		return Term{kind: ConstantTerm, value: v}
	case uint8:
		return Term{kind: ConstantTerm, value: int64(v)}
	case uint16:
		return Term{kind: ConstantTerm, value: int64(v)}
	case uint32:
		return Term{kind: ConstantTerm, value: int64(v)}
	case uint:
		if uint64(v) > math.MaxInt64 {
			return Term{reason: "unsigned constant overflows int64"}
		}
		return Term{kind: ConstantTerm, value: int64(v)}
	case uint64:
		if v > math.MaxInt64 {
			return Term{reason: "unsigned constant overflows int64"}
		}
		return Term{kind: ConstantTerm, value: int64(v)}
	default:
		return Term{reason: fmt.Sprintf("unsupported constant type %T", value)}
	}
}

// floatConst rejects NaN and the infinities, JSON has no representation for them.
func floatConst(f float64) Term {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Term{reason: fmt.Sprintf("non-finite constant %v", f)}
	}

	return Term{kind: ConstantTerm, value: f}
}

func (t Term) Kind() TermKind {
	return t.kind
}

func (t Term) Symbol() (Symbol, bool) {
	return t.symbol, t.kind == SymbolTerm
}

func (t Term) Identifier() (Identifier, bool) {
	return t.id, t.kind == IdentifierTerm
}

// Value returns the constant of a ConstantTerm or the Identifier of an IdentifierTerm.
func (t Term) Value() (any, bool) {
	switch t.kind {
	case ConstantTerm:
		return t.value, true
	case IdentifierTerm:
		return t.id, true
	default:
		return nil, false
	}
}

/***** Clause *****/

// Clause is a triple pattern [entity attribute value] matched against the current documents of a view.
type Clause struct {
	entity    Term
	attribute string
	value     Term
}

// Triple builds a Clause. The entity position must be a Var or a Ref, which Finalize checks.
func Triple(entity Term, attribute string, value Term) Clause {
	return Clause{entity: entity, attribute: attribute, value: value}
}

func (c Clause) Entity() Term {
	return c.entity
}

func (c Clause) Attribute() string {
	return c.attribute
}

func (c Clause) Value() Term {
	return c.value
}

/***** OrderClause *****/

type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

type OrderClause struct {
	symbol    Symbol
	direction SortDirection
}

func (o OrderClause) Symbol() Symbol {
	return o.symbol
}

func (o OrderClause) Direction() SortDirection {
	return o.direction
}

/***** Query *****/

// Query is an immutable declarative query: an ordered find projection over a set of where clauses,
// optionally ordered and paginated.
//
// It must be constructed with BuildQuery or ParseSerializedQuery, both of which validate it.
type Query struct {
	find     []Symbol
	where    []Clause
	orderBy  []OrderClause
	limit    int
	hasLimit bool
	offset   int
}

// OutputSymbols returns the find projection in declaration order. Every row of the result has exactly this arity.
func (q Query) OutputSymbols() []Symbol {
	return slices.Clone(q.find)
}

func (q Query) Where() []Clause {
	return slices.Clone(q.where)
}

func (q Query) OrderBy() []OrderClause {
	return slices.Clone(q.orderBy)
}

// Limit returns the row limit, ok is false when the query is unlimited.
func (q Query) Limit() (limit int, ok bool) {
	return q.limit, q.hasLimit
}

func (q Query) Offset() int {
	return q.offset
}

func (q Query) validate() error {
	if len(q.find) == 0 {
		return errors.Join(ErrMalformedQuery, errors.New("find must name at least one symbol"))
	}

	if len(q.where) == 0 {
		return errors.Join(ErrMalformedQuery, errors.New("where must contain at least one clause"))
	}

	bound := make(map[Symbol]bool)
	for i, clause := range q.where {
		if err := validateClause(clause); err != nil {
			return errors.Join(err, fmt.Errorf("in where clause %d", i))
		}

		for _, term := range []Term{clause.entity, clause.value} {
			if s, ok := term.Symbol(); ok {
				bound[s] = true
			}
		}
	}

	seen := make(map[Symbol]bool, len(q.find))
	for _, s := range q.find {
		if s.IsZero() {
			return errors.Join(ErrMalformedQuery, errors.New("find contains a zero symbol"))
		}

		if seen[s] {
			return errors.Join(ErrMalformedQuery, errors.New("duplicate find symbol "+s.Name()))
		}
		seen[s] = true

		if !bound[s] {
			return errors.Join(ErrUnboundSymbol, errors.New(s.Name()))
		}
	}

	for _, o := range q.orderBy {
		if !seen[o.symbol] {
			return errors.Join(ErrMalformedQuery, errors.New("order-by symbol must be in find: "+o.symbol.Name()))
		}

		if o.direction != Ascending && o.direction != Descending {
			return errors.Join(ErrMalformedQuery, errors.New("unknown sort direction "+string(o.direction)))
		}
	}

	if q.limit < 0 || q.offset < 0 {
		return errors.Join(ErrMalformedQuery, errors.New("limit and offset must not be negative"))
	}

	return nil
}

func validateClause(clause Clause) error {
	if clause.attribute == "" {
		return errors.Join(ErrMalformedQuery, errors.New("attribute must not be empty"))
	}

	for _, term := range []Term{clause.entity, clause.value} {
		if term.kind == invalidTerm {
			return errors.Join(ErrMalformedQuery, errors.New("invalid term: "+term.reason))
		}
	}

	if clause.entity.kind == ConstantTerm {
		return errors.Join(ErrMalformedQuery, errors.New("entity position must be a symbol or an identifier"))
	}

	return nil
}

/***** QueryBuilder *****/

// QueryBuilder builds a Query step by step, only offering the steps that make sense at each stage:
//
//	BuildQuery().
//		Find(e, name).
//		Where(Triple(Var(e), "name", Var(name))).
//		OrderBy(name, Ascending).
//		Limit(10).
//		Finalize()
type QueryBuilder interface {
	// Find declares the output symbols in the order the result tuples bind them.
	Find(symbol Symbol, symbols ...Symbol) QueryBuilderLackingClauses
}

type QueryBuilderLackingClauses interface {
	// Where adds one or multiple clauses which all must match.
	Where(clause Clause, clauses ...Clause) CompletedQueryBuilder
}

type CompletedQueryBuilder interface {
	// Where adds more clauses.
	Where(clause Clause, clauses ...Clause) CompletedQueryBuilder

	// OrderBy adds a sort key. Keys apply in the order they were added.
	OrderBy(symbol Symbol, direction SortDirection) CompletedQueryBuilder

	Limit(limit int) CompletedQueryBuilder

	Offset(offset int) CompletedQueryBuilder

	// Finalize validates and returns the Query.
	Finalize() (Query, error)
}

// queryBuilder implements all the interfaces of QueryBuilder
type queryBuilder struct {
	query Query
}

func BuildQuery() QueryBuilder {
	return queryBuilder{}
}

func (qb queryBuilder) Find(symbol Symbol, symbols ...Symbol) QueryBuilderLackingClauses {
	qb.query.find = append([]Symbol{symbol}, symbols...)

	return qb
}

func (qb queryBuilder) Where(clause Clause, clauses ...Clause) CompletedQueryBuilder {
	where := slices.Clone(qb.query.where)
	where = append(where, clause)
	qb.query.where = append(where, clauses...)

	return qb
}

func (qb queryBuilder) OrderBy(symbol Symbol, direction SortDirection) CompletedQueryBuilder {
	orderBy := slices.Clone(qb.query.orderBy)
	qb.query.orderBy = append(orderBy, OrderClause{symbol: symbol, direction: direction})

	return qb
}

func (qb queryBuilder) Limit(limit int) CompletedQueryBuilder {
	qb.query.limit = limit
	qb.query.hasLimit = true

	return qb
}

func (qb queryBuilder) Offset(offset int) CompletedQueryBuilder {
	qb.query.offset = offset

	return qb
}

func (qb queryBuilder) Finalize() (Query, error) {
	if err := qb.query.validate(); err != nil {
		return Query{}, err
	}

	return qb.query, nil
}
