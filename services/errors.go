package services

import (
	"errors"
	"fmt"
)

// Typed errors for the intake and auth flows. Every failed remote call is
// converted into exactly one of these; none of them triggers an automatic
// retry within the same attempt.

// ValidationError reports a local precondition failure. No remote call has
// been made when one of these is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// AuthError reports a credential rejection or identity-service failure.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// UnsupportedTypeError reports a file whose MIME type is outside the
// accepted set. No RFP row exists when this is returned.
type UnsupportedTypeError struct {
	FileType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q: only PDF, DOCX and plain text are accepted", e.FileType)
}

// StoreError wraps a record-store insert/update/read failure, carrying the
// store's own message.
type StoreError struct {
	Op      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ProcessingError wraps a content-extraction failure. The RFP row exists but
// remains in the content-less sub-state; the reconciler may retry it.
type ProcessingError struct {
	RfpID string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing rfp %s failed: %v", e.RfpID, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

var (
	// ErrMissingCredential: the OpenAI key presence flag is false, so the
	// platform cannot process RFPs. Checked before any row insert.
	ErrMissingCredential = errors.New("openai api key required: add your key in settings before uploading")

	// ErrUnauthenticated: no active session at submit time.
	ErrUnauthenticated = errors.New("sign in to upload and process rfps")

	// ErrProcessingTimeout: an extraction attempt exceeded its deadline.
	ErrProcessingTimeout = errors.New("content extraction timed out")

	// ErrSubmissionInFlight: a second submit arrived while one submission
	// was still between Submitting and Done.
	ErrSubmissionInFlight = errors.New("an upload is already being processed")

	// ErrFileTooLarge: upload exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("file exceeds the maximum upload size")

	// ErrEmailTaken: registration attempted with an email that already has
	// an account.
	ErrEmailTaken = errors.New("an account with this email already exists")
)
