// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrExpired is matched by every TimeoutError, whether the local deadline passed
// or the server reported the code as expired.
var ErrExpired = errors.New("device code expired")

// InvalidRegionError is returned when a --server value is not one of the known regions.
type InvalidRegionError struct {
	Region string
	Valid  []string
}

func (e *InvalidRegionError) Error() string {
	return fmt.Sprintf("invalid server region %q: valid regions are %s", e.Region, strings.Join(e.Valid, ", "))
}

// RequestError is returned when the device code request fails, either at the
// transport level (Err set) or with a non-success response (StatusCode set).
type RequestError struct {
	Endpoint   string
	StatusCode int
	Code       string // OAuth error code from the response body, if any
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
	case e.Code != "":
		return fmt.Sprintf("request to %s rejected: %s", e.Endpoint, e.Code)
	default:
		return fmt.Sprintf("request to %s returned HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// TransportError is returned when a token poll cannot reach the server.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("polling %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means the server answered successfully but the body is not
// what the device flow expects.
type ProtocolError struct {
	Field  string
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed server response: %s", e.Reason)
	}
	return fmt.Sprintf("malformed server response: %s %s", e.Field, e.Reason)
}

// PollError is returned when the token endpoint answers with a status other
// than 200 or 400. Polling stops immediately.
type PollError struct {
	StatusCode int
	Body       string
}

func (e *PollError) Error() string {
	return fmt.Sprintf("error polling for token: HTTP %d: %s", e.StatusCode, e.Body)
}

// TimeoutError is returned when the device code expires before the operator
// completes authorization.
type TimeoutError struct {
	ExpiresIn time.Duration
}

func (e *TimeoutError) Error() string {
	if e.ExpiresIn <= 0 {
		return "authentication timed out: device code expired, please try again"
	}
	return fmt.Sprintf("authentication timed out after %s, please try again", e.ExpiresIn)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrExpired }

// DeniedError is returned when the operator rejects the authorization request.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}
