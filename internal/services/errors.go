package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrValidation marks malformed requests rejected before any resolution work.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks references to entities that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks idempotency-key collisions and exhausted revision races.
	ErrConflict = errors.New("conflict")
	// ErrPolicy marks media resolution failures caused by the cross-project policy.
	ErrPolicy = errors.New("policy violation")
	// ErrTimeout marks deadline expiry talking to an external collaborator.
	ErrTimeout = errors.New("timeout")
	// ErrOracle marks non-timeout decision oracle failures.
	ErrOracle = errors.New("oracle error")
	// ErrTransient marks failures that are safe to retry as-is.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the failure may succeed on a plain retry of the
// same submission. Conflicts and validation failures require caller action.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrTransient):
		return true
	default:
		return false
	}
}

// HTTPStatus maps a classified error to the response status the API surface
// should report. Unclassified errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrPolicy):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrOracle):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
