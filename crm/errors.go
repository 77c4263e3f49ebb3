// ABOUTME: Error taxonomy for CRM adapter calls
// ABOUTME: Distinguishes validation, auth, not-found, and transient network failures
package crm

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider call outcomes.
var (
	// ErrAuthExpired means the access token was rejected and one in-adapter
	// refresh also failed. The orchestrator's retry counter governs any
	// further attempts.
	ErrAuthExpired = errors.New("crm: authentication expired")

	// ErrRemoteNotFound means the remote record is gone. Not an error on
	// the pull path; the push path falls back to find-or-create.
	ErrRemoteNotFound = errors.New("crm: remote record not found")
)

// ValidationError reports a required mapped field missing from the local
// contact. It fails a push before any network call, and retrying cannot
// change the outcome.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("crm: required field %q is missing", e.Field)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsFatal reports whether err cannot be fixed by retrying the same input.
func IsFatal(err error) bool {
	return IsValidation(err)
}

// apiError is a non-2xx provider response that is none of the sentinel
// conditions. Treated as transient by the queue.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("crm: provider returned %d: %s", e.status, e.body)
}
