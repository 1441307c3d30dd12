// Package rdns performs reverse-DNS (PTR) lookups against the system's
// configured nameservers.
package rdns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const resolvConfPath = "/etc/resolv.conf"

// Config contains reverse-lookup configuration
type Config struct {
	Timeout    time.Duration // Timeout per query, per nameserver
	ResolvConf string        // Resolver config path (default /etc/resolv.conf)
}

// DefaultConfig returns the default reverse-lookup configuration: the
// system resolver config and a 2s timeout matching the connect probe.
func DefaultConfig() Config {
	return Config{
		Timeout:    2 * time.Second,
		ResolvConf: resolvConfPath,
	}
}

// Resolver performs PTR lookups against a fixed nameserver list.
type Resolver struct {
	config  Config
	servers []string
}

// NewResolver creates a resolver from the system resolver configuration.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.ResolvConf == "" {
		cfg.ResolvConf = resolvConfPath
	}

	cc, err := dns.ClientConfigFromFile(cfg.ResolvConf)
	if err != nil {
		return nil, fmt.Errorf("failed to read resolver config: %w", err)
	}
	if len(cc.Servers) == 0 {
		return nil, fmt.Errorf("no nameservers in %s", cfg.ResolvConf)
	}

	servers := make([]string, 0, len(cc.Servers))
	for _, server := range cc.Servers {
		servers = append(servers, net.JoinHostPort(server, cc.Port))
	}

	return &Resolver{config: cfg, servers: servers}, nil
}

// LookupAddr performs a reverse lookup for addr and returns the first PTR
// name without its trailing dot. Every failure path returns an error;
// callers treat a miss as "no hostname", never as fatal.
func (r *Resolver) LookupAddr(ctx context.Context, addr string) (string, error) {
	rev, err := dns.ReverseAddr(addr)
	if err != nil {
		return "", fmt.Errorf("bad address %q: %w", addr, err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(rev, dns.TypePTR)
	msg.RecursionDesired = true

	client := &dns.Client{
		Net:     "udp",
		Timeout: r.config.Timeout,
	}

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = fmt.Errorf("PTR query to %s failed: %w", server, err)
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("PTR query to %s: %s", server, dns.RcodeToString[resp.Rcode])
			continue
		}
		if name := firstPTR(resp); name != "" {
			return name, nil
		}
		lastErr = fmt.Errorf("no PTR record for %s", addr)
	}

	return "", lastErr
}

// firstPTR extracts the first PTR target from a response, trimming the
// trailing dot
func firstPTR(msg *dns.Msg) string {
	for _, rr := range msg.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ""
}
