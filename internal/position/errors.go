package position

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned when a target position falls outside 0..len(items)-1.
	ErrOutOfBounds = errors.New("position out of bounds")
	// ErrItemNotFound is returned when the moved or deleted item is not part of the scope.
	ErrItemNotFound = errors.New("item not found in scope")
	// ErrNotContiguous reports a scope whose positions are not exactly 0..n-1.
	ErrNotContiguous = errors.New("positions are not contiguous")
)

// Scope names used in capacity errors and metrics labels.
const (
	ScopeSection   = "section"
	ScopeComponent = "component"
)

// LimitError is returned by CheckCapacity when a scope already holds its maximum.
type LimitError struct {
	Scope string
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit of %d reached", e.Scope, e.Limit)
}

// BoundsError carries the accepted range for a rejected reorder target.
type BoundsError struct {
	Target int
	Max    int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("position %d outside 0..%d", e.Target, e.Max)
}

func (e *BoundsError) Unwrap() error {
	return ErrOutOfBounds
}
