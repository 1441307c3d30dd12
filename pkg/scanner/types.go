package scanner

import (
	"context"
	"io"
	"time"

	"github.com/portsweep/portsweep/pkg/config"
	"github.com/portsweep/portsweep/pkg/icmp"
)

// Config contains sweep configuration
type Config struct {
	// Workers is the size of the worker pool shared by all probe phases.
	// At most this many probes are in flight at once.
	Workers int

	// ConnectTimeout bounds each TCP connect attempt.
	ConnectTimeout time.Duration

	// ProbeTimeout bounds each reverse-DNS lookup. The ICMP echo timeout
	// is owned by the pinger.
	ProbeTimeout time.Duration

	// Progress receives the immediate per-result notification lines.
	// Defaults to stdout. Ordering follows probe completion, not
	// submission, and is nondeterministic.
	Progress io.Writer
}

// DefaultConfig returns the sweep configuration from the process
// environment: a 32-worker pool and 2s probe timeouts
func DefaultConfig() Config {
	sweep := config.Sweep
	return Config{
		Workers:        sweep.Workers,
		ConnectTimeout: sweep.ConnectTimeout,
		ProbeTimeout:   sweep.ProbeTimeout,
	}
}

// HostPinger determines host reachability with a single echo probe.
type HostPinger interface {
	Ping(ctx context.Context, host string) (*icmp.Result, error)
}

// AddrResolver performs reverse (address to hostname) lookups.
type AddrResolver interface {
	LookupAddr(ctx context.Context, addr string) (string, error)
}
