package client

import (
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
)

// retryTransport retries transient connection-level errors immediately,
// without backoff. HTTP-level failures (any status code) are never retried
// here; that is the caller's decision.
type retryTransport struct {
	base       http.RoundTripper
	transport  *http.Transport // for CloseIdleConnections; nil if base is not *http.Transport
	maxRetries int
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; attempt <= t.maxRetries; {
		resp, err := t.doRequest(req, attempt)
		if err == nil {
			return resp, nil
		}

		// Expired connections don't count as retries - just dial a new one.
		if errors.Is(err, errConnExpired) {
			continue
		}

		if !isRetryableError(err) {
			return nil, err
		}
		attempt++
	}

	// Retries exhausted - the pool may be full of dead connections.
	// Flush idle connections and make one final attempt.
	if t.transport != nil {
		t.transport.CloseIdleConnections()
	}

	return t.doRequest(req, t.maxRetries+1)
}

func (t *retryTransport) doRequest(req *http.Request, attempt int) (*http.Response, error) {
	reqToSend := req

	// Clone the request for retries: the body may have been consumed.
	if attempt > 0 {
		reqToSend = req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			reqToSend.Body = body
		}
	}

	return t.base.RoundTrip(reqToSend)
}

func isRetryableError(err error) bool {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed):
		return true
	}
	return false
}
