// Package idgen wraps UUID generation so that identifiers and correlation
// tokens can be stubbed in tests. Callers must treat the returned values as
// opaque strings.
package idgen

import "github.com/google/uuid"

// NewFunc produces a new globally unique identifier. Tests replace it to make
// ids predictable.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier as string.
func New() string { return NewFunc() }
