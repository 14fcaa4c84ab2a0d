package bitemporal

// Resolution is the outcome of resolving an entity at a Snapshot's coordinates.
// It has exactly two variants, built with Found and NotFound. The zero value is NotFound.
//
// NotFound is a normal result, not an error: callers must not infer non-existence from an error.
type Resolution[T any] struct {
	value T
	found bool
}

func Found[T any](value T) Resolution[T] {
	return Resolution[T]{value: value, found: true}
}

func NotFound[T any]() Resolution[T] {
	return Resolution[T]{}
}

func (r Resolution[T]) IsFound() bool {
	return r.found
}

// Get returns the value and true for Found, the zero value and false for NotFound.
func (r Resolution[T]) Get() (T, bool) {
	return r.value, r.found
}

// OrElse returns the value for Found and fallback for NotFound.
func (r Resolution[T]) OrElse(fallback T) T {
	if !r.found {
		return fallback
	}

	return r.value
}
