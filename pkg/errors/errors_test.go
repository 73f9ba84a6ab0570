package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing reference", fmt.Errorf("item 4: %w", ErrMissingReferenceItem), http.StatusNotFound},
		{"item not found", ErrItemNotFound, http.StatusNotFound},
		{"no category", fmt.Errorf("item 4: %w", ErrNoPrimaryCategory), http.StatusUnprocessableEntity},
		{"empty input", fmt.Errorf("item 4: %w", ErrEmptyInput), http.StatusUnprocessableEntity},
		{"invalid", fmt.Errorf("bad: %w", ErrInvalidInput), http.StatusBadRequest},
		{"app error", New(ErrInvalidInput, http.StatusConflict, "x"), http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("parsing: %w", Newf(ErrInvalidInput, http.StatusBadRequest, "p %q", "x"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("AppError must unwrap to its sentinel")
	}
}
