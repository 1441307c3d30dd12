package icmp

import "time"

// Result is the outcome of one echo probe.
type Result struct {
	IP        string
	Reachable bool
	RTT       time.Duration
	IsIPv6    bool
}

// Config contains echo probe configuration
type Config struct {
	Timeout     time.Duration // Timeout per echo attempt
	PayloadSize int           // Echo payload size in bytes
	Privileged  bool          // Use privileged raw sockets (requires root)
}

// DefaultConfig returns the default echo configuration: unprivileged
// datagram sockets and a 2s timeout matching the connect probe.
func DefaultConfig() Config {
	return Config{
		Timeout:     2 * time.Second,
		PayloadSize: 56,
		Privileged:  false,
	}
}

// echoResponse represents an internal echo reply
type echoResponse struct {
	ip  string
	rtt time.Duration
	seq int
}

// pendingEcho tracks an outstanding echo request
type pendingEcho struct {
	ip       string
	sentAt   time.Time
	seq      int
	respChan chan echoResponse
}
