package httpx

import (
	"errors"
	"net/http"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// Sentinel errors owned by the HTTP layer.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrDuplicate    = errors.New("duplicate entry")
)

// RetryAfterSeconds is advertised when the backing stores are unavailable.
const RetryAfterSeconds = "5"

// Detailer is implemented by errors that carry structured fields for the client,
// such as the current state of a resource a transition was refused on.
type Detailer interface {
	ProblemDetails() map[string]string
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var details map[string]string
	var d Detailer
	if errors.As(err, &d) {
		details = d.ProblemDetails()
	}
	switch {
	case errors.Is(err, shared.ErrNotFound):
		ProblemWithDetails(w, http.StatusNotFound, "Not Found", "resource not found", nil)
	case errors.Is(err, shared.ErrValidation):
		ProblemWithDetails(w, http.StatusBadRequest, "Validation Failed", err.Error(), details)
	case errors.Is(err, ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		ProblemWithDetails(w, http.StatusUnauthorized, "Unauthorized", err.Error(), nil)
	case errors.Is(err, shared.ErrInsufficientRole), errors.Is(err, shared.ErrNotOwner):
		ProblemWithDetails(w, http.StatusForbidden, "Forbidden", err.Error(), details)
	case errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		ProblemWithDetails(w, http.StatusForbidden, "Forbidden", err.Error(), nil)
	case errors.Is(err, shared.ErrInvalidTransition),
		errors.Is(err, shared.ErrOutOfOrderApproval),
		errors.Is(err, shared.ErrStaleState),
		errors.Is(err, ErrDuplicate):
		ProblemWithDetails(w, http.StatusConflict, "Conflict", err.Error(), details)
	case errors.Is(err, shared.ErrStorageUnavailable):
		w.Header().Set("Retry-After", RetryAfterSeconds)
		ProblemWithDetails(w, http.StatusServiceUnavailable, "Service Unavailable", shared.UserSafeMessage(err), nil)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// StatusFor returns the status RespondError would use for err.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrInsufficientRole), errors.Is(err, shared.ErrNotOwner),
		errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrInvalidTransition), errors.Is(err, shared.ErrOutOfOrderApproval),
		errors.Is(err, shared.ErrStaleState), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, shared.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
