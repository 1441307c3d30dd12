// Package icmp sends single ICMP echo probes to determine host
// reachability. It supports both privileged raw sockets and unprivileged
// datagram sockets; the unprivileged mode is the default so the tool runs
// without root, and any failure to obtain a reply is simply "not alive".
package icmp

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP   = 1
	protocolICMPv6 = 58
)

// Pinger performs concurrent single-shot ICMP echo probes over a shared
// pair of listener sockets.
type Pinger struct {
	config  Config
	id      int // ICMP identifier (process-unique)
	seqNum  atomic.Uint32
	mu      sync.Mutex
	pending map[string]*pendingEcho // key: "ip:seq"
	conn4   *icmp.PacketConn
	conn6   *icmp.PacketConn
	closed  atomic.Bool
}

// NewPinger creates a new pinger
func NewPinger(cfg Config) *Pinger {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.PayloadSize == 0 {
		cfg.PayloadSize = 56
	}

	return &Pinger{
		config:  cfg,
		id:      int(time.Now().UnixNano() & 0xffff),
		pending: make(map[string]*pendingEcho),
	}
}

// Start initializes the ICMP listener sockets
func (p *Pinger) Start() error {
	var err error

	// IPv4 listener
	network4 := "ip4:icmp"
	if !p.config.Privileged {
		network4 = "udp4"
	}
	p.conn4, err = icmp.ListenPacket(network4, "0.0.0.0")
	if err != nil {
		return fmt.Errorf("failed to listen on IPv4: %w", err)
	}

	// IPv6 listener
	network6 := "ip6:ipv6-icmp"
	if !p.config.Privileged {
		network6 = "udp6"
	}
	p.conn6, err = icmp.ListenPacket(network6, "::")
	if err != nil {
		// IPv6 may not be available, continue with IPv4 only
		p.conn6 = nil
	}

	// Start receiver goroutines
	go p.receiveLoop(p.conn4, false)
	if p.conn6 != nil {
		go p.receiveLoop(p.conn6, true)
	}

	return nil
}

// Stop closes the pinger and releases resources
func (p *Pinger) Stop() {
	if p.closed.Swap(true) {
		return
	}
	if p.conn4 != nil {
		p.conn4.Close()
	}
	if p.conn6 != nil {
		p.conn6.Close()
	}
}

// Ping sends one echo request and waits for the reply. A timeout or send
// failure yields an unreachable Result, not an error; errors are reserved
// for unusable input or a stopped pinger.
func (p *Pinger) Ping(ctx context.Context, ip string) (*Result, error) {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ip)
	}

	isIPv6 := parsedIP.To4() == nil
	result := &Result{
		IP:     ip,
		IsIPv6: isIPv6,
	}

	rtt, err := p.sendEcho(ctx, ip, isIPv6)
	if err != nil {
		return result, nil
	}

	result.Reachable = true
	result.RTT = rtt
	return result, nil
}

// sendEcho sends a single echo request and waits for the matching reply
func (p *Pinger) sendEcho(ctx context.Context, ip string, isIPv6 bool) (time.Duration, error) {
	seq := int(p.seqNum.Add(1) & 0xffff)
	respChan := make(chan echoResponse, 1)

	// Register pending echo
	key := fmt.Sprintf("%s:%d", ip, seq)
	p.mu.Lock()
	p.pending[key] = &pendingEcho{
		ip:       ip,
		sentAt:   time.Now(),
		seq:      seq,
		respChan: respChan,
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, key)
		p.mu.Unlock()
	}()

	// Build the echo request
	var msgType icmp.Type
	var proto int
	if isIPv6 {
		msgType = ipv6.ICMPTypeEchoRequest
		proto = protocolICMPv6
	} else {
		msgType = ipv4.ICMPTypeEcho
		proto = protocolICMP
	}

	payload := make([]byte, p.config.PayloadSize)
	binary.BigEndian.PutUint64(payload, uint64(time.Now().UnixNano()))

	msg := &icmp.Message{
		Type: msgType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  seq,
			Data: payload,
		},
	}

	msgBytes, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal ICMP message: %w", err)
	}

	conn := p.conn4
	if isIPv6 {
		conn = p.conn6
	}
	if conn == nil {
		return 0, fmt.Errorf("no listener for %s", ip)
	}

	var dst net.Addr
	if p.config.Privileged {
		dst = &net.IPAddr{IP: net.ParseIP(ip)}
	} else {
		dst = &net.UDPAddr{IP: net.ParseIP(ip), Port: proto}
	}

	if _, err = conn.WriteTo(msgBytes, dst); err != nil {
		return 0, fmt.Errorf("failed to send ICMP: %w", err)
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case resp := <-respChan:
		return resp.rtt, nil
	case <-time.After(p.config.Timeout):
		return 0, fmt.Errorf("timeout waiting for reply from %s", ip)
	}
}

// receiveLoop continuously receives echo replies and routes them to the
// matching pending request
func (p *Pinger) receiveLoop(conn *icmp.PacketConn, isIPv6 bool) {
	buf := make([]byte, 1500)

	proto := protocolICMP
	if isIPv6 {
		proto = protocolICMPv6
	}

	for !p.closed.Load() {
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if p.closed.Load() {
				return
			}
			continue
		}

		recvTime := time.Now()

		msg, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}

		var isReply bool
		if isIPv6 {
			isReply = msg.Type == ipv6.ICMPTypeEchoReply
		} else {
			isReply = msg.Type == ipv4.ICMPTypeEchoReply
		}
		if !isReply {
			continue
		}

		// Unprivileged datagram sockets rewrite the echo ID to the socket
		// cookie, so the ID only identifies us on raw sockets.
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok || (p.config.Privileged && echo.ID != p.id) {
			continue
		}

		var peerIP string
		switch addr := peer.(type) {
		case *net.IPAddr:
			peerIP = addr.IP.String()
		case *net.UDPAddr:
			peerIP = addr.IP.String()
		default:
			continue
		}

		key := fmt.Sprintf("%s:%d", peerIP, echo.Seq)
		p.mu.Lock()
		pending, ok := p.pending[key]
		p.mu.Unlock()

		if ok && pending.respChan != nil {
			select {
			case pending.respChan <- echoResponse{
				ip:  peerIP,
				rtt: recvTime.Sub(pending.sentAt),
				seq: echo.Seq,
			}:
			default:
			}
		}
	}
}
