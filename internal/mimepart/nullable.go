package mimepart

import (
	"bytes"
	"encoding/json"
)

type nullState uint8

const (
	stateAbsent nullState = iota
	stateNull
	stateValue
)

// Nullable is an optional value that remembers whether it was missing
// altogether or explicitly null. The zero value is absent.
//
// Used with the `omitzero` JSON option, absent fields are not written and
// null fields are written as null, so a decoded document round-trips.
type Nullable[T any] struct {
	value T
	state nullState
}

// Value returns a Nullable holding v.
func Value[T any](v T) Nullable[T] {
	return Nullable[T]{value: v, state: stateValue}
}

// Null returns an explicitly null Nullable.
func Null[T any]() Nullable[T] {
	return Nullable[T]{state: stateNull}
}

// Get returns the value and whether one is set.
func (n Nullable[T]) Get() (T, bool) {
	return n.value, n.state == stateValue
}

// Ptr returns a copy of the value, or nil when absent or null.
func (n Nullable[T]) Ptr() *T {
	if n.state != stateValue {
		return nil
	}
	v := n.value
	return &v
}

// IsNull reports whether the value was explicitly null.
func (n Nullable[T]) IsNull() bool {
	return n.state == stateNull
}

// IsZero reports whether the value is absent.
func (n Nullable[T]) IsZero() bool {
	return n.state == stateAbsent
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.state != stateValue {
		return []byte("null"), nil
	}
	return json.Marshal(n.value)
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = Null[T]()
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Value(v)
	return nil
}

func fromPtr[T any](v *T) Nullable[T] {
	if v == nil {
		return Null[T]()
	}
	return Value(*v)
}
