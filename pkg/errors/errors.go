package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyInput           = errors.New("no keyword candidates in text")
	ErrMissingReferenceItem = errors.New("reference item not found")
	ErrNoPrimaryCategory    = errors.New("reference item has no category")
	ErrItemNotFound         = errors.New("item not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInternal             = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrMissingReferenceItem), errors.Is(err, ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoPrimaryCategory), errors.Is(err, ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
