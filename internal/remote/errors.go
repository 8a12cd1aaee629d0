package remote

import (
	"errors"
	"fmt"
)

// ErrRateLimited marks a request rejected by the remote API's rate
// limiting (HTTP 429 or 503). The caller decides whether to retry.
var ErrRateLimited = errors.New("rate limited by remote API")

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("remote client closed")

// APIError is a non-success response from the remote API.
type APIError struct {
	Status int
	Reason string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("api error: status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("api error: status %d", e.Status)
}
