// Package input resolves network and host specifiers into scan targets.
package input

import (
	"fmt"
	"net"

	"github.com/portsweep/portsweep/pkg/target"
)

// Seam for tests; resolves a hostname to its addresses.
var lookupHost = net.LookupHost

// Targets resolves each specifier (CIDR network, single IP, or DNS
// hostname) into Targets carrying the given ports, concatenated in
// specifier order.
//
// Overlapping specifiers are not deduplicated: a host named by two
// specifiers is scanned and reported once per occurrence. This is a
// deliberate design choice, not an oversight.
//
// Any unparsable or unresolvable specifier fails the whole resolution,
// so probing never starts on partial input.
func Targets(specs []string, ports []int) ([]*target.Target, error) {
	var targets []*target.Target

	for _, spec := range specs {
		hosts, hostname, err := resolveSpecifier(spec)
		if err != nil {
			return nil, err
		}
		for _, host := range hosts {
			targets = append(targets, target.New(host, ports, hostname))
		}
	}

	return targets, nil
}

// resolveSpecifier expands one specifier to its usable host addresses.
// For hostname specifiers the original name is returned so the Target
// keeps it and the reverse-DNS phase can skip the host.
func resolveSpecifier(spec string) (hosts []string, hostname string, err error) {
	ipnet, err := parseNetwork(spec)
	if err != nil {
		// Not an address or network: treat as a hostname resolving to a
		// single-host network.
		addrs, lerr := lookupHost(spec)
		if lerr != nil {
			return nil, "", fmt.Errorf("cannot resolve specifier %q: %w", spec, lerr)
		}
		if len(addrs) == 0 {
			return nil, "", fmt.Errorf("cannot resolve specifier %q: no addresses", spec)
		}
		// No preference between address families: take the first result.
		ip := net.ParseIP(addrs[0])
		if ip == nil {
			return nil, "", fmt.Errorf("cannot resolve specifier %q: bad address %q", spec, addrs[0])
		}
		return []string{ip.String()}, spec, nil
	}

	return expandHosts(ipnet), "", nil
}

// parseNetwork parses a CIDR network or a single address (as a full-length
// prefix). It fails when spec is neither.
func parseNetwork(spec string) (*net.IPNet, error) {
	if ip := net.ParseIP(spec); ip != nil {
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
	}

	_, ipnet, err := net.ParseCIDR(spec)
	if err != nil {
		return nil, err
	}
	return ipnet, nil
}

// expandHosts lists a network's usable host addresses in order. IPv4
// networks with a host range exclude the network and broadcast
// addresses; IPv6 has no broadcast, so only the subnet-router anycast
// (first) address is excluded. Point-to-point (/31, /127) and
// single-address (/32, /128) prefixes yield every member address.
func expandHosts(ipnet *net.IPNet) []string {
	ones, bits := ipnet.Mask.Size()
	hostBits := bits - ones

	var hosts []string
	first := hostBits >= 2
	for ip := cloneIP(ipnet.IP.Mask(ipnet.Mask)); ipnet.Contains(ip); incrementIP(ip) {
		if first {
			// Skip the network address.
			first = false
			continue
		}
		hosts = append(hosts, ip.String())
	}

	if hostBits >= 2 && ipnet.IP.To4() != nil && len(hosts) > 0 {
		// Drop the broadcast address.
		hosts = hosts[:len(hosts)-1]
	}
	return hosts
}

func cloneIP(ip net.IP) net.IP {
	dup := make(net.IP, len(ip))
	copy(dup, ip)
	return dup
}

// incrementIP increments an IP address by one, in place.
func incrementIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] > 0 {
			break
		}
	}
}
