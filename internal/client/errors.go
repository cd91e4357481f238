// Package client is the Go consumer of the audio API: it discovers a
// reachable server on the local network and talks to it with a retry-once
// policy on transport failures.
package client

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnavailable  = errors.New("vocalis: no reachable server")
	ErrUnauthorized = errors.New("vocalis: unauthorized")
	ErrNotFound     = errors.New("vocalis: resource not found")
	ErrRemote       = errors.New("vocalis: server error")
	ErrBadResponse  = errors.New("vocalis: malformed response")
	ErrRejected     = errors.New("vocalis: request rejected")
)

// APIError wraps a sentinel with the operation and HTTP context.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("client: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Sentinel }
