package resilience

import (
	"context"
	"errors"
)

// statusCoder is implemented by errors that carry an upstream HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// Trips reports whether err means the collaborator itself is unhealthy.
// Caller cancellation never counts. Errors carrying an HTTP status count only
// for server-side statuses; any other error counts.
func Trips(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() > 0 {
		return ServerFault(sc.HTTPStatus())
	}
	return true
}

// ServerFault reports whether an HTTP status points at the remote side:
// request timeouts, rate limiting and 5xx.
func ServerFault(status int) bool {
	switch {
	case status == 408, status == 429:
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		return false
	}
}
