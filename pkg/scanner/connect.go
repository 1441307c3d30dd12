package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/portsweep/portsweep/pkg/target"
)

// connectFunc attempts a TCP connection to (host, port) and classifies
// the outcome. Split out so tests can substitute a fake network.
type connectFunc func(ctx context.Context, host string, port int, timeout time.Duration) (target.PortStatus, error)

// connectProbe dials (host, port) with the given timeout. An accepted
// connection means open and is closed immediately without exchanging
// data; an active refusal means closed; a timeout means filtered. Any
// other dial error is unanticipated and returned to abort the scan.
func connectProbe(ctx context.Context, host string, port int, timeout time.Duration) (target.PortStatus, error) {
	dialer := &net.Dialer{Timeout: timeout}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err == nil {
		conn.Close()
		return target.PortOpen, nil
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return target.PortClosed, nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return target.PortFiltered, nil
	}

	return target.PortUnknown, fmt.Errorf("connect probe %s tcp/%d: %w", host, port, err)
}
