package auth

import (
	"fmt"

	"github.com/jrsteele09/go-hr-console/apiclient"
)

// AuthError is a login, verification or refresh rejected by the backend, or one that could not
// reach it. Message is safe to show to the user.
type AuthError struct {
	Op      string // Login, VerifyOTP, SilentRefresh
	Status  int    // HTTP status, 0 when the backend was not reached
	Message string
	Reason  error // sentinel from internal/errors, may be nil
	Err     error // underlying failure, usually an *apiclient.Error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[auth.%s] %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("[auth.%s] %s", e.Op, e.Message)
}

func (e *AuthError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Transient reports whether the backend never answered, in which case no state was changed.
func (e *AuthError) Transient() bool {
	return apiclient.IsTransient(e.Err)
}

func newAuthError(op string, err error, reason error, fallback string) *AuthError {
	ae := &AuthError{
		Op:      op,
		Message: apiclient.Message(err, fallback),
		Reason:  reason,
		Err:     err,
	}
	if apiErr, ok := apiclient.AsError(err); ok {
		ae.Status = apiErr.Status
		if apiErr.Transient() {
			ae.Reason = nil
		}
	}
	return ae
}
