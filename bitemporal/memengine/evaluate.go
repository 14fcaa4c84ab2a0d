package memengine

import (
	"cmp"
	"context"
	"reflect"
	"slices"
	"strings"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

type binding map[bitemporal.Symbol]any

func (b binding) with(symbol bitemporal.Symbol, value any) binding {
	extended := make(binding, len(b)+1)
	for k, v := range b {
		extended[k] = v
	}
	extended[symbol] = value

	return extended
}

// evaluate joins the where clauses of query over the view's current documents,
// then projects, deduplicates, orders and paginates the result.
func evaluate(ctx context.Context, v *view, query bitemporal.Query) ([][]any, error) {
	bindings := []binding{{}}

	for _, clause := range query.Where() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next []binding
		for _, b := range bindings {
			for _, candidate := range v.candidates(clause, b) {
				value, ok := candidate.attributes[clause.Attribute()]
				if !ok {
					continue
				}

				extended, ok := unify(b, clause.Entity(), candidate.id)
				if !ok {
					continue
				}

				extended, ok = unify(extended, clause.Value(), value)
				if !ok {
					continue
				}

				next = append(next, extended)
			}
		}

		bindings = next
		if len(bindings) == 0 {
			break
		}
	}

	rows := project(bindings, query.OutputSymbols())
	sortRows(rows, query)

	return paginate(rows, query), nil
}

// candidates narrows the documents a clause can match to a single one when its entity position is already known.
func (v *view) candidates(clause bitemporal.Clause, b binding) []version {
	entity := clause.Entity()

	if id, ok := entity.Identifier(); ok {
		return v.single(id)
	}

	if symbol, ok := entity.Symbol(); ok {
		if bound, isBound := b[symbol]; isBound {
			id, isID := bound.(bitemporal.Identifier)
			if !isID {
				return nil
			}

			return v.single(id)
		}
	}

	return v.ordered
}

func (v *view) single(id bitemporal.Identifier) []version {
	if found, ok := v.current[id]; ok {
		return []version{found}
	}

	return nil
}

func unify(b binding, term bitemporal.Term, value any) (binding, bool) {
	if symbol, ok := term.Symbol(); ok {
		if bound, isBound := b[symbol]; isBound {
			return b, valuesEqual(bound, value)
		}

		return b.with(symbol, value), true
	}

	expected, _ := term.Value()

	return b, valuesEqual(expected, value)
}

func project(bindings []binding, symbols []bitemporal.Symbol) [][]any {
	rows := make([][]any, 0, len(bindings))
	seen := make(map[string]bool, len(bindings))

	for _, b := range bindings {
		row := make([]any, len(symbols))
		for i, s := range symbols {
			row[i] = b[s]
		}

		key, err := bitemporal.EncodeValue(row)
		if err == nil {
			if seen[string(key)] {
				continue
			}
			seen[string(key)] = true
		}

		rows = append(rows, row)
	}

	return rows
}

func sortRows(rows [][]any, query bitemporal.Query) {
	orderBy := query.OrderBy()
	if len(orderBy) == 0 {
		return
	}

	positions := make(map[bitemporal.Symbol]int)
	for i, s := range query.OutputSymbols() {
		positions[s] = i
	}

	slices.SortStableFunc(rows, func(a, b []any) int {
		for _, o := range orderBy {
			pos := positions[o.Symbol()]

			c := compareValues(a[pos], b[pos])
			if o.Direction() == bitemporal.Descending {
				c = -c
			}

			if c != 0 {
				return c
			}
		}

		return 0
	})
}

func paginate(rows [][]any, query bitemporal.Query) [][]any {
	offset := min(query.Offset(), len(rows))
	rows = rows[offset:]

	if limit, ok := query.Limit(); ok && limit < len(rows) {
		rows = rows[:limit]
	}

	return rows
}

// valuesEqual compares numbers by value regardless of their Go type, everything else structurally.
func valuesEqual(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		fb, isNumber := asFloat(b)
		return isNumber && fa == fb
	}

	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// typeRank orders values of different types the way PostgreSQL orders jsonb:
// null, strings, numbers, booleans, lists, then identifiers and other objects.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 1
	case int64, float64:
		return 2
	case bool:
		return 3
	case []any:
		return 4
	default:
		return 5
	}
}

func compareValues(a, b any) int {
	if c := cmp.Compare(typeRank(a), typeRank(b)); c != 0 {
		return c
	}

	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case int64, float64:
		fa, _ := asFloat(a)
		fb, _ := asFloat(b)
		return cmp.Compare(fa, fb)
	case string:
		return strings.Compare(av, b.(string))
	case bitemporal.Identifier:
		bv, isID := b.(bitemporal.Identifier)
		if !isID {
			return -1
		}

		return strings.Compare(av.Canonical(), bv.Canonical())
	case nil:
		return 0
	default:
		if _, isID := b.(bitemporal.Identifier); isID {
			return 1
		}

		ea, _ := bitemporal.EncodeValue(a)
		eb, _ := bitemporal.EncodeValue(b)
		return strings.Compare(string(ea), string(eb))
	}
}
