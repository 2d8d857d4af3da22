package api

import (
	"errors"
	"net/http"

	"hallbook/internal/booking"
	"hallbook/internal/service"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorBody struct {
	Error  string               `json:"error"`
	Code   string               `json:"code"`
	Fields []booking.FieldError `json:"fields,omitempty"`
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, booking.ErrShapeInvalid):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrDateUnavailable), errors.Is(err, booking.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, booking.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, booking.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, booking.ErrShapeInvalid):
		return codes.InvalidArgument
	case errors.Is(err, booking.ErrCapacityExceeded):
		return codes.FailedPrecondition
	case errors.Is(err, booking.ErrDateUnavailable), errors.Is(err, booking.ErrConflict):
		return codes.AlreadyExists
	case errors.Is(err, booking.ErrUnauthorized):
		return codes.PermissionDenied
	case errors.Is(err, booking.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, service.ErrRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, booking.ErrPersistenceUnavailable):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func grpcError(err error) error {
	code := grpcCode(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

func newErrorBody(err error) errorBody {
	code := booking.Reason(err)
	if errors.Is(err, service.ErrRateLimited) {
		code = "rate_limited"
	}
	body := errorBody{Error: err.Error(), Code: code}

	var shape *booking.ShapeError
	if errors.As(err, &shape) {
		body.Fields = shape.Fields
	}
	if httpStatus(err) == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	return body
}
