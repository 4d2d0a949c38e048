package celcat

import (
	"errors"
	"fmt"
	"net/http"
)

// FetchError reports a failed backend call: transport error, timeout or a
// non-2xx status.
type FetchError struct {
	Op         string // "calendar" or "resources"
	Start, End string // requested range, empty for resource listings
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	msg := "celcat " + e.Op + " fetch"
	if e.Start != "" || e.End != "" {
		msg += fmt.Sprintf(" [%s, %s]", e.Start, e.End)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// temporary reports whether retrying the same request may succeed.
func (e *FetchError) temporary() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// DecodeError reports a response body that is not valid JSON.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return "celcat " + e.Op + " decode: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsFetchError reports whether err wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
