package bitemporal

import (
	"errors"
	"fmt"
)

const (
	termKeyVar   = "var"
	termKeyConst = "const"
)

type serializedQuery struct {
	Find    []string            `json:"find"`
	Where   []serializedClause  `json:"where"`
	OrderBy []serializedOrderBy `json:"order-by,omitempty"`
	Limit   *int                `json:"limit,omitempty"`
	Offset  int                 `json:"offset,omitempty"`
}

type serializedClause struct {
	E map[string]any `json:"e"`
	A string         `json:"a"`
	V map[string]any `json:"v"`
}

type serializedOrderBy struct {
	Var string        `json:"var"`
	Dir SortDirection `json:"dir"`
}

// ToSerializedForm returns the engine representation of the query, a JSON document like:
//
//	{"find":["?e","?name"],"where":[{"e":{"var":"?e"},"a":"name","v":{"var":"?name"}}],"limit":10}
//
// The output only depends on the query, so repeated calls return identical strings.
func (q Query) ToSerializedForm() string {
	sq := serializedQuery{
		Find:   make([]string, len(q.find)),
		Where:  make([]serializedClause, len(q.where)),
		Offset: q.offset,
	}

	for i, s := range q.find {
		sq.Find[i] = s.Name()
	}

	for i, clause := range q.where {
		sq.Where[i] = serializedClause{
			E: serializeTerm(clause.entity),
			A: clause.attribute,
			V: serializeTerm(clause.value),
		}
	}

	for _, o := range q.orderBy {
		sq.OrderBy = append(sq.OrderBy, serializedOrderBy{Var: o.symbol.Name(), Dir: o.direction})
	}

	if q.hasLimit {
		limit := q.limit
		sq.Limit = &limit
	}

	// A validated query only holds JSON-encodable scalars, so this cannot fail.
	serialized, err := jsonAPI.MarshalToString(sq)
	if err != nil {
		panic(fmt.Sprintf("serializing a validated query failed: %v", err))
	}

	return serialized
}

func serializeTerm(t Term) map[string]any {
	switch t.kind {
	case SymbolTerm:
		return map[string]any{termKeyVar: t.symbol.Name()}
	case IdentifierTerm:
		return map[string]any{IDReferenceKey: t.id.Canonical()}
	default:
		return map[string]any{termKeyConst: t.value}
	}
}

// ParseSerializedQuery is the inverse of ToSerializedForm, engines use it to read the queries they receive.
// The parsed query is validated like a built one. Every failure is an ErrMalformedQuery.
func ParseSerializedQuery(serialized string) (Query, error) {
	var sq serializedQuery
	if err := jsonAPI.UnmarshalFromString(serialized, &sq); err != nil {
		return Query{}, errors.Join(ErrMalformedQuery, err)
	}

	q := Query{offset: sq.Offset}

	for _, name := range sq.Find {
		s, err := BuildSymbol(name)
		if err != nil {
			return Query{}, errors.Join(ErrMalformedQuery, err)
		}

		q.find = append(q.find, s)
	}

	for _, sc := range sq.Where {
		entity, err := parseTerm(sc.E)
		if err != nil {
			return Query{}, err
		}

		value, err := parseTerm(sc.V)
		if err != nil {
			return Query{}, err
		}

		q.where = append(q.where, Triple(entity, sc.A, value))
	}

	for _, so := range sq.OrderBy {
		s, err := BuildSymbol(so.Var)
		if err != nil {
			return Query{}, errors.Join(ErrMalformedQuery, err)
		}

		q.orderBy = append(q.orderBy, OrderClause{symbol: s, direction: so.Dir})
	}

	if sq.Limit != nil {
		q.limit = *sq.Limit
		q.hasLimit = true
	}

	if err := q.validate(); err != nil {
		return Query{}, err
	}

	return q, nil
}

func parseTerm(raw map[string]any) (Term, error) {
	if len(raw) != 1 {
		return Term{}, errors.Join(ErrMalformedQuery, errors.New("a term must have exactly one key"))
	}

	for key, v := range raw {
		switch key {
		case termKeyVar:
			name, ok := v.(string)
			if !ok {
				return Term{}, errors.Join(ErrMalformedQuery, errors.New("var must be a string"))
			}

			s, err := BuildSymbol(name)
			if err != nil {
				return Term{}, errors.Join(ErrMalformedQuery, err)
			}

			return Var(s), nil

		case IDReferenceKey:
			canonical, ok := v.(string)
			if !ok {
				return Term{}, errors.Join(ErrMalformedQuery, errors.New("@id must be a string"))
			}

			id, err := ParseIdentifier(canonical)
			if err != nil {
				return Term{}, errors.Join(ErrMalformedQuery, err)
			}

			return Ref(id), nil

		case termKeyConst:
			return Const(NormalizeValue(v)), nil
		}
	}

	return Term{}, errors.Join(ErrMalformedQuery, errors.New("unknown term key"))
}
