package bitemporal

import (
	"errors"
	"fmt"
	"slices"
)

// ResultTuples is an alias type for a slice of ResultTuple
type ResultTuples = []ResultTuple

// ResultTuple is one result row bound to the find symbols of its Query, in the Query's order.
type ResultTuple struct {
	symbols []Symbol
	values  []any
}

// BuildResultTuple pairs symbols and row positionally: the first symbol with the first value, and so on.
//
// Returns ErrTupleArityMismatch if the lengths differ, the row is never truncated or padded.
func BuildResultTuple(symbols []Symbol, row []any) (ResultTuple, error) {
	if len(symbols) != len(row) {
		return ResultTuple{}, errors.Join(
			ErrTupleArityMismatch,
			fmt.Errorf("expected %d values, got %d", len(symbols), len(row)),
		)
	}

	return ResultTuple{
		symbols: slices.Clone(symbols),
		values:  slices.Clone(row),
	}, nil
}

func (rt ResultTuple) Symbols() []Symbol {
	return slices.Clone(rt.symbols)
}

func (rt ResultTuple) Values() []any {
	return slices.Clone(rt.values)
}

func (rt ResultTuple) Len() int {
	return len(rt.symbols)
}

// Get returns the value bound to symbol, ok is false if the symbol is not part of the tuple.
func (rt ResultTuple) Get(symbol Symbol) (value any, ok bool) {
	idx := slices.Index(rt.symbols, symbol)
	if idx < 0 {
		return nil, false
	}

	return rt.values[idx], true
}

// ToMap returns the bindings keyed by symbol name. The order is only kept by Symbols and Values.
func (rt ResultTuple) ToMap() map[string]any {
	m := make(map[string]any, len(rt.symbols))
	for i, s := range rt.symbols {
		m[s.Name()] = rt.values[i]
	}

	return m
}
