package app

import (
	"errors"
	"fmt"
	"net/http"

	"hackerfolio/api/internal/component"
	"hackerfolio/api/internal/position"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func invalidField(field, message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", field+" "+message,
		[]component.FieldError{{Field: field, Message: message}})
}

func limitReached(err *position.LimitError) *DomainError {
	return domainError(http.StatusConflict, "LIMIT_REACHED",
		fmt.Sprintf("At most %d %ss allowed", err.Limit, err.Scope),
		map[string]any{"scope": err.Scope, "limit": err.Limit})
}

// reorderError translates position.Reorder failures. An id missing from a
// scope it was just read from means a concurrent delete won the lock first.
func reorderError(err error) error {
	var bounds *position.BoundsError
	if errors.As(err, &bounds) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("position must be between 0 and %d", bounds.Max),
			map[string]any{"position": bounds.Target, "min": 0, "max": bounds.Max})
	}
	if errors.Is(err, position.ErrItemNotFound) {
		return notFound()
	}
	return err
}
