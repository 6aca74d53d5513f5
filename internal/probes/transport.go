package probes

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/user/netrecon/internal/scanerr"
	"github.com/user/netrecon/internal/util"
)

// ProbeKind selects the packet a transport emits.
type ProbeKind int

const (
	ProbeTCPConnect ProbeKind = iota
	ProbeTCPSyn
	ProbeUDP
	ProbeICMPEcho
	ProbeARP
	// ProbeUDPTrace is a TTL-limited UDP datagram whose ICMP error is the reply.
	ProbeUDPTrace
)

func (k ProbeKind) String() string {
	switch k {
	case ProbeTCPConnect:
		return "tcp-connect"
	case ProbeTCPSyn:
		return "tcp-syn"
	case ProbeUDP:
		return "udp"
	case ProbeICMPEcho:
		return "icmp-echo"
	case ProbeARP:
		return "arp"
	case ProbeUDPTrace:
		return "udp-trace"
	}
	return fmt.Sprintf("probe(%d)", int(k))
}

// ProbeSpec describes a single probe.
type ProbeSpec struct {
	Kind ProbeKind
	Port int
	// TTL limits the IP time-to-live of the probe. Zero leaves the default.
	TTL int
	Seq int
	// Payload is written after connecting (TCP) or sent as the datagram (UDP).
	Payload []byte
	// ReadBanner makes a TCP connect probe wait for data after connecting.
	ReadBanner bool
}

// Status is the coarse outcome of a probe.
type Status int

const (
	StatusResponded Status = iota
	StatusTimedOut
	StatusUnreachable
)

func (s Status) String() string {
	switch s {
	case StatusResponded:
		return "responded"
	case StatusTimedOut:
		return "timed out"
	case StatusUnreachable:
		return "unreachable"
	}
	return "unknown"
}

// Reply identifies what kind of answer came back.
type Reply int

const (
	ReplyNone Reply = iota
	// ReplyConnected is a completed TCP handshake.
	ReplyConnected
	ReplySynAck
	// ReplyReset is a TCP RST or a refused connection.
	ReplyReset
	ReplyEchoReply
	ReplyTimeExceeded
	ReplyPortUnreachable
	// ReplyData is a UDP datagram from the target.
	ReplyData
	ReplyARP
)

// Outcome is the result of one send-and-await exchange.
type Outcome struct {
	Status Status
	Reply  Reply
	RTT    time.Duration
	// TTL is the IP TTL of the reply, or zero when unknown.
	TTL     int
	From    net.IP
	MAC     net.HardwareAddr
	Payload []byte
	Reason  string
}

// Responded reports whether the target (or a hop) answered.
func (o Outcome) Responded() bool {
	return o.Status == StatusResponded
}

// Transport sends one probe and waits for the matching answer. It never
// retries. The error is reserved for conditions that must abort the scan,
// such as missing privileges for raw sockets; network conditions are
// reported in the Outcome.
type Transport interface {
	SendAndAwait(ctx context.Context, target net.IP, spec ProbeSpec, timeout time.Duration) (Outcome, error)
}

// NetTransport is the Transport backed by real sockets.
type NetTransport struct {
	// DatagramICMP forces unprivileged ICMP echo sockets.
	DatagramICMP bool

	icmpOnce sync.Once
	icmpNet  string
	icmpErr  error

	ident atomic.Uint32
}

// NewNetTransport returns a socket-backed transport.
func NewNetTransport() *NetTransport {
	t := &NetTransport{}
	t.ident.Store(uint32(os.Getpid() & 0xffff))
	return t
}

// nextID hands out ICMP identifiers and source ports so concurrent probes
// can tell their replies apart.
func (t *NetTransport) nextID() uint16 {
	return uint16(t.ident.Add(1))
}

// SendAndAwait implements Transport.
func (t *NetTransport) SendAndAwait(ctx context.Context, target net.IP, spec ProbeSpec, timeout time.Duration) (Outcome, error) {
	if target.To4() == nil {
		return Outcome{}, scanerr.InvalidTarget(target.String(), errors.New("not an IPv4 address"))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		out Outcome
		err error
	)
	switch spec.Kind {
	case ProbeTCPConnect:
		out = t.connect(ctx, target, spec)
	case ProbeUDP:
		out = t.udp(ctx, target, spec)
	case ProbeTCPSyn:
		out, err = t.syn(ctx, target, spec)
	case ProbeICMPEcho:
		out, err = t.echo(ctx, target, spec)
	case ProbeUDPTrace:
		out, err = t.udpTrace(ctx, target, spec)
	case ProbeARP:
		out, err = t.arp(ctx, target)
	default:
		return Outcome{}, fmt.Errorf("unknown probe kind %d", spec.Kind)
	}
	if err != nil {
		return Outcome{}, err
	}
	util.Debug("%s %s:%d -> %s (%s)", spec.Kind, target, spec.Port, out.Status, out.RTT)
	return out, nil
}

func timedOut(reason string) Outcome {
	return Outcome{Status: StatusTimedOut, Reason: reason}
}

func unreachable(reason string) Outcome {
	return Outcome{Status: StatusUnreachable, Reason: reason}
}

// classifyDialError folds a socket error into an Outcome.
func classifyDialError(err error, rtt time.Duration) Outcome {
	var ne net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return Outcome{Status: StatusResponded, Reply: ReplyReset, RTT: rtt}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return timedOut("no response")
	}
	return unreachable(err.Error())
}

func isPermission(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES)
}

// localAddrFor returns the source address the kernel would use for dst.
func localAddrFor(dst net.IP) (net.IP, error) {
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: dst, Port: 9})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.To4(), nil
}
