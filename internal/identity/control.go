package identity

import (
	"context"
	"fmt"
	"net"
	"net/textproto"
	"time"
)

// TorControl speaks the Tor control protocol over TCP, enough to
// authenticate and request NEWNYM.
type TorControl struct {
	addr     string
	password string
	timeout  time.Duration
}

// NewTorControl returns a control channel for the given control port
// address. password may be empty when the port is unauthenticated.
func NewTorControl(addr, password string, timeout time.Duration) *TorControl {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TorControl{addr: addr, password: password, timeout: timeout}
}

// Signal connects, authenticates, and issues SIGNAL NEWNYM. Each call uses
// a fresh connection; the control port treats them as independent sessions.
func (c *TorControl) Signal(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial control port: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	tp := textproto.NewConn(conn)
	if err := tp.PrintfLine("AUTHENTICATE %q", c.password); err != nil {
		return fmt.Errorf("send authenticate: %w", err)
	}
	if _, _, err := tp.ReadResponse(250); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := tp.PrintfLine("SIGNAL NEWNYM"); err != nil {
		return fmt.Errorf("send newnym: %w", err)
	}
	if _, _, err := tp.ReadResponse(250); err != nil {
		return fmt.Errorf("newnym: %w", err)
	}
	// Best effort; the deferred close tears the session down regardless.
	_ = tp.PrintfLine("QUIT")
	return nil
}
