package worker

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Connectivity reports whether work that requires the network may run
type Connectivity interface {
	Online(ctx context.Context) bool
}

// ConnectivityFunc adapts a function to Connectivity
type ConnectivityFunc func(ctx context.Context) bool

func (f ConnectivityFunc) Online(ctx context.Context) bool {
	return f(ctx)
}

// DialChecker considers the network available when a TCP connection to the
// backend can be opened
type DialChecker struct {
	Address string
	Timeout time.Duration
}

// NewDialChecker builds a checker for the host of baseURL
func NewDialChecker(baseURL string, timeout time.Duration) (*DialChecker, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid base url: %q", baseURL)
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DialChecker{Address: net.JoinHostPort(u.Hostname(), port), Timeout: timeout}, nil
}

// Online dials the backend and closes the connection straight away
func (d *DialChecker) Online(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
