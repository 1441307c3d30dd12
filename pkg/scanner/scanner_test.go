package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portsweep/portsweep/pkg/icmp"
	"github.com/portsweep/portsweep/pkg/target"
)

// eventLog records probe invocations across goroutines so tests can
// check phase ordering.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakePinger struct {
	log   *eventLog
	alive map[string]bool
}

func (f *fakePinger) Ping(_ context.Context, host string) (*icmp.Result, error) {
	if f.log != nil {
		f.log.add("ping:" + host)
	}
	return &icmp.Result{IP: host, Reachable: f.alive[host]}, nil
}

type fakeResolver struct {
	log   *eventLog
	names map[string]string
}

func (f *fakeResolver) LookupAddr(_ context.Context, addr string) (string, error) {
	if f.log != nil {
		f.log.add("rdns:" + addr)
	}
	if name, ok := f.names[addr]; ok {
		return name, nil
	}
	return "", errors.New("no PTR record")
}

// fakeConnect returns a connectFunc backed by a host:port status table.
// Ports missing from the table count as filtered.
func fakeConnect(log *eventLog, open, closed map[string]bool) connectFunc {
	return func(_ context.Context, host string, port int, _ time.Duration) (target.PortStatus, error) {
		key := fmt.Sprintf("%s:%d", host, port)
		if log != nil {
			log.add("connect:" + key)
		}
		switch {
		case open[key]:
			return target.PortOpen, nil
		case closed[key]:
			return target.PortClosed, nil
		default:
			return target.PortFiltered, nil
		}
	}
}

func newTestSweeper(progress *bytes.Buffer, pinger HostPinger, resolver AddrResolver) *Sweeper {
	return New(Config{Workers: 4, Progress: progress}, pinger, resolver)
}

func TestNewDefaults(t *testing.T) {
	s := New(Config{}, &fakePinger{}, nil)

	assert.Equal(t, 32, s.config.Workers)
	assert.Equal(t, 2*time.Second, s.config.ConnectTimeout)
	assert.Equal(t, 2*time.Second, s.config.ProbeTimeout)
	assert.NotNil(t, s.config.Progress)
}

func TestRunUpHost(t *testing.T) {
	var progress bytes.Buffer
	tgt := target.New("192.0.2.1", []int{22, 80}, "")

	s := newTestSweeper(&progress, &fakePinger{alive: map[string]bool{"192.0.2.1": true}}, nil)
	s.connect = fakeConnect(nil,
		map[string]bool{"192.0.2.1:80": true},
		map[string]bool{"192.0.2.1:22": true})

	require.NoError(t, s.Run(context.Background(), []*target.Target{tgt}))

	assert.Equal(t, target.HostUp, tgt.Status)
	assert.Equal(t, target.PortClosed, tgt.Ports[0].Status)
	assert.Equal(t, target.PortOpen, tgt.Ports[1].Status)

	assert.Contains(t, progress.String(), "Host 192.0.2.1 is up\n")
	assert.Contains(t, progress.String(), "Discovered open port tcp/80 on 192.0.2.1\n")
	assert.NotContains(t, progress.String(), "tcp/22")
}

func TestRunDownHostsSkipConnectPhase(t *testing.T) {
	var progress bytes.Buffer
	targets := []*target.Target{
		target.New("203.0.113.1", []int{80}, ""),
		target.New("203.0.113.2", []int{80}, ""),
	}

	connectLog := &eventLog{}
	s := newTestSweeper(&progress, &fakePinger{alive: map[string]bool{}}, nil)
	s.connect = fakeConnect(connectLog, nil, nil)

	require.NoError(t, s.Run(context.Background(), targets))

	for _, tgt := range targets {
		assert.Equal(t, target.HostDown, tgt.Status)
		assert.Equal(t, target.PortUnknown, tgt.Ports[0].Status)
		assert.Equal(t, "Host report for "+tgt.Host+"\nHost is down\nAll ports filtered or closed", tgt.Report())
	}
	assert.Empty(t, connectLog.all(), "down hosts must not be connect-probed")
	assert.Empty(t, progress.String(), "no progress lines for down hosts")
}

func TestRunPhaseBarriers(t *testing.T) {
	log := &eventLog{}
	targets := []*target.Target{
		target.New("192.0.2.1", []int{22, 80, 443}, ""),
		target.New("192.0.2.2", []int{22, 80, 443}, ""),
		target.New("192.0.2.3", []int{22, 80, 443}, ""),
	}

	alive := map[string]bool{"192.0.2.1": true, "192.0.2.2": true, "192.0.2.3": true}
	s := newTestSweeper(&bytes.Buffer{}, &fakePinger{log: log, alive: alive}, &fakeResolver{log: log})
	s.connect = fakeConnect(log, nil, nil)

	require.NoError(t, s.Run(context.Background(), targets))

	events := log.all()
	require.Len(t, events, 3+3+9)

	phaseOf := func(event string) int {
		switch {
		case strings.HasPrefix(event, "rdns:"):
			return 1
		case strings.HasPrefix(event, "ping:"):
			return 2
		default:
			return 3
		}
	}
	for i := 1; i < len(events); i++ {
		assert.LessOrEqual(t, phaseOf(events[i-1]), phaseOf(events[i]),
			"probe %q ran after %q across a phase barrier", events[i-1], events[i])
	}
}

func TestRunReverseDNS(t *testing.T) {
	log := &eventLog{}
	named := target.New("192.0.2.1", []int{80}, "given.example.com")
	resolved := target.New("192.0.2.2", []int{80}, "")
	missed := target.New("192.0.2.3", []int{80}, "")

	resolver := &fakeResolver{log: log, names: map[string]string{"192.0.2.2": "found.example.com"}}
	s := newTestSweeper(&bytes.Buffer{}, &fakePinger{alive: map[string]bool{}}, resolver)
	s.connect = fakeConnect(nil, nil, nil)

	require.NoError(t, s.Run(context.Background(), []*target.Target{named, resolved, missed}))

	// A target constructed with a hostname is never probed again.
	assert.NotContains(t, log.all(), "rdns:192.0.2.1")
	assert.Equal(t, "given.example.com", named.Hostname)

	assert.Equal(t, "found.example.com", resolved.Hostname)

	// A lookup miss is not an error, it just leaves the hostname unset.
	assert.Empty(t, missed.Hostname)
}

func TestRunNilResolver(t *testing.T) {
	tgt := target.New("192.0.2.1", []int{80}, "")

	s := newTestSweeper(&bytes.Buffer{}, &fakePinger{alive: map[string]bool{}}, nil)
	s.connect = fakeConnect(nil, nil, nil)

	require.NoError(t, s.Run(context.Background(), []*target.Target{tgt}))
	assert.Empty(t, tgt.Hostname)
	assert.Equal(t, target.HostDown, tgt.Status)
}

func TestRunUnexpectedConnectErrorAborts(t *testing.T) {
	tgt := target.New("192.0.2.1", []int{80}, "")

	s := newTestSweeper(&bytes.Buffer{}, &fakePinger{alive: map[string]bool{"192.0.2.1": true}}, nil)
	s.connect = func(context.Context, string, int, time.Duration) (target.PortStatus, error) {
		return target.PortUnknown, errors.New("no route to host")
	}

	err := s.Run(context.Background(), []*target.Target{tgt})
	assert.ErrorContains(t, err, "no route to host")
	assert.Equal(t, target.PortUnknown, tgt.Ports[0].Status)
}

func TestRunIsIdempotent(t *testing.T) {
	tgt := target.New("192.0.2.1", []int{22, 80}, "")

	s := newTestSweeper(&bytes.Buffer{}, &fakePinger{alive: map[string]bool{"192.0.2.1": true}}, nil)
	s.connect = fakeConnect(nil,
		map[string]bool{"192.0.2.1:80": true},
		map[string]bool{"192.0.2.1:22": true})

	require.NoError(t, s.Run(context.Background(), []*target.Target{tgt}))
	first := tgt.Report()

	require.NoError(t, s.Run(context.Background(), []*target.Target{tgt}))
	assert.Equal(t, first, tgt.Report())
}

func TestRunManyPortsReportOrdered(t *testing.T) {
	// Enough ports that the shuffled probe order almost surely differs
	// from the request order; the report must not care.
	ports := make([]int, 64)
	for i := range ports {
		ports[i] = 8000 + i
	}
	tgt := target.New("192.0.2.1", ports, "")

	open := make(map[string]bool, len(ports))
	for _, port := range ports {
		open[fmt.Sprintf("192.0.2.1:%d", port)] = true
	}

	s := newTestSweeper(&bytes.Buffer{}, &fakePinger{alive: map[string]bool{"192.0.2.1": true}}, nil)
	s.connect = fakeConnect(nil, open, nil)

	require.NoError(t, s.Run(context.Background(), []*target.Target{tgt}))

	report := tgt.Report()
	prev := -1
	for _, port := range ports {
		idx := strings.Index(report, fmt.Sprintf("tcp/%d ", port))
		require.Greater(t, idx, prev, "port tcp/%d out of order in report", port)
		prev = idx
	}
}

func TestConnectProbeOpenAndClosed(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)

	status, err := connectProbe(context.Background(), "127.0.0.1", addr.Port, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, target.PortOpen, status)

	// Closing the listener frees the port; a fresh dial is refused.
	listener.Close()
	status, err = connectProbe(context.Background(), "127.0.0.1", addr.Port, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, target.PortClosed, status)
}
