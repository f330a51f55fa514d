package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker probes a Connect worker by opening a TCP connection. It is used
// when the REST root is not reachable anonymously.
type TCPChecker struct {
	// Address is the TCP address to connect to (e.g., "connect:8083")
	Address string

	// Timeout is the connection timeout (default: 5 seconds)
	Timeout time.Duration
}

// NewTCPChecker creates a new TCP probe
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// Check dials the address once
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("connection to %s failed: %v", t.Address, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	_ = conn.Close()

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("%s accepting connections", t.Address),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the probe type
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
