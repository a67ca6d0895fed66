package httpx

import (
	"errors"
	"net/http"

	"github.com/samudra-erp/samudra-erp/internal/shared"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Sentinel errors shared across handler layers.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict marks transient contention (a lock that could not be
	// acquired); the response carries a Retry-After hint.
	ErrConflict = errors.New("transient conflict")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Business-rule rejections carry the rule name so clients can react to the
// specific guard that fired.
func RespondError(w http.ResponseWriter, err error) {
	var guardErr *workflow.GuardError
	var validationErr *shared.ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrConflict):
		w.Header().Set("Retry-After", "1")
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, workflow.ErrIllegalTransition):
		Problem(w, http.StatusConflict, "Illegal Transition", err.Error())
	case errors.Is(err, workflow.ErrPermissionDenied), errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.As(err, &guardErr):
		ProblemRule(w, http.StatusUnprocessableEntity, "Transition Blocked", guardErr.Reason, guardErr.Guard)
	case errors.As(err, &validationErr):
		ProblemRule(w, http.StatusUnprocessableEntity, "Business Rule Violated", validationErr.Message, validationErr.Rule)
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
