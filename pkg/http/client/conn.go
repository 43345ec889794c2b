package client

import (
	"errors"
	"net"
	"time"
)

// errConnExpired is returned when a connection exceeds its max lifetime.
// retryTransport handles it specially - it does not count as a retry attempt.
var errConnExpired = errors.New("connection expired")

// timedConn wraps net.Conn to track creation time and enforce max lifetime.
// After expiry the connection reports itself closed on the next read/write,
// forcing http.Transport to dial a fresh connection (with fresh DNS lookup).
type timedConn struct {
	net.Conn
	createdAt   time.Time
	maxLifetime time.Duration
}

func (c *timedConn) expired() bool {
	return time.Since(c.createdAt) > c.maxLifetime
}

func (c *timedConn) Read(b []byte) (n int, err error) {
	if c.expired() {
		_ = c.Close() //nolint:errcheck // best effort cleanup on expiry
		return 0, errConnExpired
	}
	return c.Conn.Read(b)
}

func (c *timedConn) Write(b []byte) (n int, err error) {
	if c.expired() {
		_ = c.Close() //nolint:errcheck // best effort cleanup on expiry
		return 0, errConnExpired
	}
	return c.Conn.Write(b)
}
