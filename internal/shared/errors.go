package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")

	// ErrInsufficientRole means the actor's role lacks the capability an action needs.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrNotOwner means the resource lies outside the actor's scope.
	ErrNotOwner = errors.New("not owner")
	// ErrInvalidTransition means no transition row exists for the current state and event.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrOutOfOrderApproval means a final approval was attempted before the museum level approved.
	ErrOutOfOrderApproval = errors.New("out of order approval")
	// ErrStaleState means the resource changed between read and conditional write.
	ErrStaleState = errors.New("stale state")
	// ErrStorageUnavailable wraps failures of the backing stores; callers may retry with backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
)

// IsDomainError reports whether err belongs to the workflow taxonomy rather than infrastructure.
func IsDomainError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInsufficientRole),
		errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrOutOfOrderApproval),
		errors.Is(err, ErrStaleState),
		errors.Is(err, ErrValidation):
		return true
	}
	return false
}

// UserSafeMessage returns a message suitable for API clients.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsDomainError(err) {
		return err.Error()
	}
	if errors.Is(err, ErrStorageUnavailable) {
		return "storage temporarily unavailable, retry later"
	}
	return "internal error"
}
