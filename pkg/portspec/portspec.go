// Package portspec parses textual TCP port specifications into the
// ordered set of ports to probe.
//
// A specification is a comma-separated list of terms. A term is a single
// port ("22"), an inclusive range ("8000-8888"), an open-ended range
// ("1024-" or "-1024"), or the lone token "-" selecting every port.
package portspec

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Valid TCP port numbers. Port 0 is never a scan target.
const (
	MinPort = 1
	MaxPort = 65535
)

// Top TCP ports by observed open frequency, derived from the nmap-services
// frequency data. Consumed in asset order, deliberately unsorted.
//
//go:embed assets/common_ports.json
var commonPortsJSON []byte

var commonPorts []int

func init() {
	if err := json.Unmarshal(commonPortsJSON, &commonPorts); err != nil {
		panic(fmt.Sprintf("portspec: corrupt embedded port asset: %v", err))
	}
}

// CommonPorts returns the built-in default port list used when no
// specification is given. The caller must not modify the returned slice.
func CommonPorts() []int {
	return commonPorts
}

// Parse resolves a port specification to an ascending, deduplicated port
// list. An empty specification selects the built-in common-port list,
// which keeps its asset order.
func Parse(spec string) ([]int, error) {
	if spec == "" {
		return CommonPorts(), nil
	}

	// Presence table indexed by port number. Overlapping terms collapse
	// naturally and the final walk yields ascending order.
	var wanted [MaxPort + 1]bool

	for _, term := range strings.Split(spec, ",") {
		if term == "-" {
			// Select-all token: everything after it is ignored.
			for port := MinPort; port <= MaxPort; port++ {
				wanted[port] = true
			}
			break
		}

		lo, hi, err := parseTerm(term)
		if err != nil {
			return nil, err
		}
		for port := lo; port <= hi; port++ {
			wanted[port] = true
		}
	}

	var ports []int
	for port := MinPort; port <= MaxPort; port++ {
		if wanted[port] {
			ports = append(ports, port)
		}
	}
	return ports, nil
}

// parseTerm resolves one comma-separated term to an inclusive port range.
// A single port N is the degenerate range N-N.
func parseTerm(term string) (lo, hi int, err error) {
	lhs, rhs := term, term
	if before, after, isRange := strings.Cut(term, "-"); isRange {
		lhs, rhs = before, after
		if lhs == "" {
			lhs = strconv.Itoa(MinPort)
		}
		if rhs == "" {
			rhs = strconv.Itoa(MaxPort)
		}
	}

	lo, err = parsePort(lhs, term)
	if err != nil {
		return 0, 0, err
	}
	hi, err = parsePort(rhs, term)
	if err != nil {
		return 0, 0, err
	}

	if lo > hi {
		return 0, 0, fmt.Errorf("invalid range: %d-%d", lo, hi)
	}
	return lo, hi, nil
}

func parsePort(s, term string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("malformed port term %q", term)
	}
	if port < MinPort || port > MaxPort {
		return 0, fmt.Errorf("invalid port: %d", port)
	}
	return port, nil
}
