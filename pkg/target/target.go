// Package target models a host under scan and its probed ports.
//
// A Target is created once per resolved host before probing, mutated in
// place by the probe phases, and read-only during reporting. Each Target
// owns its TargetPorts exclusively; no probe ever touches another
// target's state, so entity state needs no locking.
package target

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/portsweep/portsweep/pkg/services"
)

// Extra spaces appended to the widest field when aligning report columns.
const colPadding = 2

// HostStatus is the reachability state of a Target.
type HostStatus int

const (
	HostUnknown HostStatus = iota
	HostUp
	HostDown
)

func (s HostStatus) String() string {
	switch s {
	case HostUp:
		return "up"
	case HostDown:
		return "down"
	default:
		return "unknown"
	}
}

// PortStatus is the connect-probe outcome for a TargetPort.
type PortStatus int

const (
	PortUnknown PortStatus = iota
	PortOpen
	PortClosed
	PortFiltered
)

func (s PortStatus) String() string {
	switch s {
	case PortOpen:
		return "open"
	case PortClosed:
		return "closed"
	case PortFiltered:
		return "filtered"
	default:
		return "unknown"
	}
}

// Target is one resolved host under scan.
type Target struct {
	// Host is the network address, immutable once constructed.
	Host string

	// Hostname is set at construction when the user gave a hostname
	// specifier, or by the reverse-DNS phase. Empty when unresolved.
	Hostname string

	// Status is HostUnknown until the reachability phase runs, then
	// terminal for the scan.
	Status HostStatus

	// Ports holds one entry per requested port, in the caller-specified
	// order. Reporting always uses this order, never the probe order.
	Ports []*TargetPort
}

// TargetPort is one (host, port) pair under scan.
type TargetPort struct {
	Host   string
	Port   int
	Status PortStatus
}

// New creates a Target for host with one TargetPort per requested port.
// hostname may be empty.
func New(host string, ports []int, hostname string) *Target {
	t := &Target{
		Host:     host,
		Hostname: hostname,
		Ports:    make([]*TargetPort, 0, len(ports)),
	}
	for _, port := range ports {
		t.Ports = append(t.Ports, &TargetPort{Host: host, Port: port})
	}
	return t
}

// ShuffledPorts returns the target's ports in a fresh random order.
// Submitting probes in shuffled order avoids biasing results toward
// numerically-clustered ports on rate-limiting hosts.
func (t *Target) ShuffledPorts() []*TargetPort {
	shuffled := make([]*TargetPort, len(t.Ports))
	copy(shuffled, t.Ports)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// NotablePorts returns the open ports in original request order. A down
// host has no notable ports.
func (t *Target) NotablePorts() []*TargetPort {
	if t.Status == HostDown {
		return nil
	}
	var notable []*TargetPort
	for _, tp := range t.Ports {
		if tp.Status == PortOpen {
			notable = append(notable, tp)
		}
	}
	return notable
}

// Report renders the per-host result block: a header naming the host, the
// up/down line, and an aligned table of open ports. Closed and filtered
// ports are summarized, never enumerated.
func (t *Target) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Host report for %s", t.Host)
	if t.Hostname != "" {
		fmt.Fprintf(&b, " (%s)", t.Hostname)
	}
	fmt.Fprintf(&b, "\nHost is %s\n", t.Status)

	notable := t.NotablePorts()
	if len(notable) == 0 {
		b.WriteString("All ports filtered or closed")
		return b.String()
	}

	rows := [][3]string{{"port", "service", "status"}}
	for _, tp := range notable {
		rows = append(rows, tp.reportRow())
	}

	width := 0
	for _, row := range rows {
		for _, field := range row {
			width = max(width, len(field))
		}
	}
	width += colPadding

	for _, row := range rows {
		for _, field := range row {
			fmt.Fprintf(&b, "%-*s", width, field)
		}
		b.WriteByte('\n')
	}
	b.WriteString("All other ports filtered or closed")

	return b.String()
}

// reportRow is the port/service/status triple for one open port.
func (tp *TargetPort) reportRow() [3]string {
	return [3]string{
		fmt.Sprintf("tcp/%d", tp.Port),
		services.Name(tp.Port),
		tp.Status.String(),
	}
}
