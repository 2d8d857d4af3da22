package booking

import (
	"errors"
	"strings"
)

var (
	ErrShapeInvalid           = errors.New("invalid booking request")
	ErrCapacityExceeded       = errors.New("guest count exceeds hall capacity")
	ErrDateUnavailable        = errors.New("date is not available")
	ErrUnauthorized           = errors.New("not authorized")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("hall already booked on this date")
	ErrPersistenceUnavailable = errors.New("booking storage unavailable")
)

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ShapeError lists every malformed field of a single intake attempt.
type ShapeError struct {
	Fields []FieldError
}

func (e *ShapeError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

func (e *ShapeError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return ErrShapeInvalid.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeInvalid
}

// Reason returns a short machine-readable label for err, used for metrics
// and API error codes.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrShapeInvalid):
		return "shape_invalid"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrDateUnavailable):
		return "date_unavailable"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPersistenceUnavailable):
		return "persistence_unavailable"
	default:
		return "internal"
	}
}
