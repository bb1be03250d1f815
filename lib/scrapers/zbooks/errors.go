package zbooks

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// StatusError reports a non-2xx response from the invoices app.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response status %d", e.Code)
}

// Transient reports whether the status is worth retrying:
// rate-limiting and server-side failures are, everything else in the
// 4xx range is taken at its word.
func (e *StatusError) Transient() bool {
	return e.Code == 429 || e.Code >= 500
}

// IsTransient classifies scrape failures for the retry executor.
// Timeouts and transport-level failures count as transient alongside
// retryable statuses, malformed pages and other 4xx do not.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
