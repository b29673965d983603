package components

import "github.com/mlange-42/ark/ecs"

// Opt is an optional value: either Some(v) or None.
// The zero value is None.
type Opt[T any] struct {
	value T
	ok    bool
}

// Some wraps a present value.
func Some[T any](v T) Opt[T] { return Opt[T]{value: v, ok: true} }

// None returns an absent value.
func None[T any]() Opt[T] { return Opt[T]{} }

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) { return o.value, o.ok }

// IsSome reports whether a value is present.
func (o Opt[T]) IsSome() bool { return o.ok }

// Or returns the value if present, otherwise fallback.
func (o Opt[T]) Or(fallback T) T {
	if o.ok {
		return o.value
	}
	return fallback
}

// Ref is an optional entity reference.
type Ref = Opt[ecs.Entity]
