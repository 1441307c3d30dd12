// Package scanner orchestrates the three-phase probe sweep: reverse-DNS,
// ICMP reachability, and TCP connect.
//
// All phases share one fixed-size worker pool. Each phase submits every
// eligible probe and drains the pool before the next phase starts, a
// strict barrier rather than a pipeline. Progress lines surface in probe
// completion order; the final report built from the targets afterwards
// is fully deterministic.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/portsweep/portsweep/pkg/target"
)

// Sweeper runs one bounded sweep over a set of targets.
type Sweeper struct {
	config   Config
	pinger   HostPinger
	resolver AddrResolver // nil disables the reverse-DNS phase
	connect  connectFunc

	progressMu sync.Mutex
}

// New creates a sweeper. resolver may be nil, in which case targets keep
// whatever hostname they were constructed with.
func New(cfg Config, pinger HostPinger, resolver AddrResolver) *Sweeper {
	if cfg.Workers <= 0 {
		cfg.Workers = 32
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	if cfg.Progress == nil {
		cfg.Progress = os.Stdout
	}

	return &Sweeper{
		config:   cfg,
		pinger:   pinger,
		resolver: resolver,
		connect:  connectProbe,
	}
}

// Run executes the sweep. Targets are mutated in place; each probe has
// exclusive write access to exactly one Target or TargetPort, so entity
// state needs no locking. Anticipated probe failures fold into entity
// status and never abort siblings; only unanticipated connect errors
// surface, after the phase has drained.
func (s *Sweeper) Run(ctx context.Context, targets []*target.Target) error {
	workers := newPool(s.config.Workers)
	defer workers.close()

	s.runReverseDNSPhase(ctx, workers, targets)
	s.runPingPhase(ctx, workers, targets)
	return s.runConnectPhase(ctx, workers, targets)
}

// runReverseDNSPhase fills in hostnames for targets that lack one. A
// lookup miss leaves the hostname unset and is not an error.
func (s *Sweeper) runReverseDNSPhase(ctx context.Context, workers *pool, targets []*target.Target) {
	if s.resolver == nil {
		return
	}

	for _, tgt := range targets {
		if tgt.Hostname != "" {
			continue
		}
		tgt := tgt
		workers.submit(func() {
			lookupCtx, cancel := context.WithTimeout(ctx, s.config.ProbeTimeout)
			defer cancel()

			hostname, err := s.resolver.LookupAddr(lookupCtx, tgt.Host)
			if err == nil {
				tgt.Hostname = hostname
			}
			slog.Debug("rdns probe complete", "host", tgt.Host, "hostname", tgt.Hostname)
		})
	}
	workers.wait()
}

// runPingPhase determines reachability for every target with one echo
// probe. Any failure path means down.
func (s *Sweeper) runPingPhase(ctx context.Context, workers *pool, targets []*target.Target) {
	for _, tgt := range targets {
		tgt := tgt
		workers.submit(func() {
			res, err := s.pinger.Ping(ctx, tgt.Host)
			if err == nil && res.Reachable {
				tgt.Status = target.HostUp
			} else {
				tgt.Status = target.HostDown
			}
			slog.Debug("target ping probe complete", "host", tgt.Host, "status", tgt.Status)

			if tgt.Status == target.HostUp {
				s.progressf("Host %s is up\n", tgt.Host)
			}
		})
	}
	workers.wait()
}

// runConnectPhase probes every port of every up target. Ports are
// submitted in a fresh per-target shuffle so probing does not cluster
// on numerically adjacent ports; reporting still uses the original
// order.
func (s *Sweeper) runConnectPhase(ctx context.Context, workers *pool, targets []*target.Target) error {
	var errMu sync.Mutex
	var errs []error

	for _, tgt := range targets {
		if tgt.Status == target.HostDown {
			continue
		}
		for _, tp := range tgt.ShuffledPorts() {
			tp := tp
			workers.submit(func() {
				status, err := s.connect(ctx, tp.Host, tp.Port, s.config.ConnectTimeout)
				if err != nil {
					errMu.Lock()
					errs = append(errs, err)
					errMu.Unlock()
					return
				}

				tp.Status = status
				slog.Debug("target port connect probe complete",
					"host", tp.Host, "port", tp.Port, "status", tp.Status)

				if status == target.PortOpen {
					s.progressf("Discovered open port tcp/%d on %s\n", tp.Port, tp.Host)
				}
			})
		}
	}
	workers.wait()

	return errors.Join(errs...)
}

// progressf emits one progress line. Serialized so concurrent completions
// do not interleave mid-line.
func (s *Sweeper) progressf(format string, args ...any) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	fmt.Fprintf(s.config.Progress, format, args...)
}
