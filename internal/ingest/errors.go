package ingest

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ingestion pipeline. Handlers map these to HTTP
// status codes; everything else is an internal error.
var (
	// ErrNoFile means the request carried no file part.
	ErrNoFile = errors.New("no audio file provided")
	// ErrEmptyFile means the file part was present but had zero bytes.
	ErrEmptyFile = errors.New("uploaded file is empty")
	// ErrTooLarge means the upload exceeded the configured size cap.
	ErrTooLarge = errors.New("uploaded file exceeds size limit")
	// ErrUnsupportedType means the declared content type is not audio.
	ErrUnsupportedType = errors.New("unsupported content type")
)

// ValidationError wraps a sentinel with the offending detail so responses
// can tell the uploader what to fix.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is an upload validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
