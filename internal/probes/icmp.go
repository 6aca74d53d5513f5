package probes

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/user/netrecon/internal/scanerr"
	"github.com/user/netrecon/internal/util"
)

const (
	protocolICMP = 1
	protocolUDP  = 17
	readBufSize  = 1500
)

// EchoSize is the ICMP size of an echo probe: an 8 byte header and 56 bytes of data.
const EchoSize = 64

var (
	echoPayload    = bytes.Repeat([]byte("netrecon"), 7)
	errRawRequired = errors.New("time-exceeded replies need a raw ICMP socket")
)

// icmpNetwork picks the ICMP socket flavour once per transport: a raw socket
// when permitted, otherwise an unprivileged datagram socket.
func (t *NetTransport) icmpNetwork() (string, error) {
	t.icmpOnce.Do(func() {
		if !t.DatagramICMP {
			c, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
			if err == nil {
				c.Close()
				t.icmpNet = "ip4:icmp"
				return
			}
			if !isPermission(err) {
				t.icmpErr = err
				return
			}
			util.Debug("raw ICMP socket denied, falling back to datagram ICMP: %v", err)
		}
		c, err := icmp.ListenPacket("udp4", "0.0.0.0")
		if err != nil {
			t.icmpErr = scanerr.Privilege("ICMP socket", err)
			return
		}
		c.Close()
		t.icmpNet = "udp4"
	})
	return t.icmpNet, t.icmpErr
}

func (t *NetTransport) rawICMP() (*icmp.PacketConn, error) {
	network, err := t.icmpNetwork()
	if err != nil {
		return nil, err
	}
	if network != "ip4:icmp" {
		return nil, scanerr.Privilege("TTL-limited probe", errRawRequired)
	}
	conn, err := icmp.ListenPacket(network, "0.0.0.0")
	if err != nil {
		if isPermission(err) {
			return nil, scanerr.Privilege("raw ICMP socket", err)
		}
		return nil, err
	}
	return conn, nil
}

// echo sends one ICMP echo request, optionally TTL-limited, and waits for
// the echo reply or a time-exceeded error quoting it.
func (t *NetTransport) echo(ctx context.Context, target net.IP, spec ProbeSpec) (Outcome, error) {
	var (
		conn *icmp.PacketConn
		err  error
		raw  = true
	)
	if spec.TTL > 0 {
		conn, err = t.rawICMP()
	} else {
		var network string
		network, err = t.icmpNetwork()
		if err == nil {
			raw = network == "ip4:icmp"
			conn, err = icmp.ListenPacket(network, "0.0.0.0")
			if err != nil && isPermission(err) {
				err = scanerr.Privilege("ICMP socket", err)
			}
		}
	}
	if err != nil {
		if scanerr.IsPrivilege(err) {
			return Outcome{}, err
		}
		return unreachable(err.Error()), nil
	}
	defer conn.Close()

	pc := conn.IPv4PacketConn()
	_ = pc.SetControlMessage(ipv4.FlagTTL, true)
	if spec.TTL > 0 {
		if err := pc.SetTTL(spec.TTL); err != nil {
			return unreachable(err.Error()), nil
		}
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	id := int(t.nextID())
	seq := spec.Seq & 0xffff
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: echoPayload},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return Outcome{}, err
	}
	var dst net.Addr = &net.IPAddr{IP: target}
	if !raw {
		dst = &net.UDPAddr{IP: target}
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, dst); err != nil {
		if isPermission(err) {
			return Outcome{}, scanerr.Privilege("ICMP send", err)
		}
		return unreachable(err.Error()), nil
	}

	buf := make([]byte, readBufSize)
	for {
		n, cm, peer, err := pc.ReadFrom(buf)
		if err != nil {
			return classifyReadError(err), nil
		}
		rtt := time.Since(start)
		rm, err := icmp.ParseMessage(protocolICMP, buf[:n])
		if err != nil {
			continue
		}
		from := addrIP(peer)
		ttl := 0
		if cm != nil {
			ttl = cm.TTL
		}

		switch body := rm.Body.(type) {
		case *icmp.Echo:
			// Datagram sockets rewrite the identifier, so only raw sockets check it.
			if rm.Type != ipv4.ICMPTypeEchoReply || body.Seq != seq || (raw && body.ID != id) {
				continue
			}
			if !from.Equal(target) {
				continue
			}
			return Outcome{Status: StatusResponded, Reply: ReplyEchoReply, RTT: rtt, TTL: ttl, From: from}, nil
		case *icmp.TimeExceeded:
			if quotesEcho(body.Data, target, id, seq) {
				return Outcome{Status: StatusResponded, Reply: ReplyTimeExceeded, RTT: rtt, TTL: ttl, From: from}, nil
			}
		case *icmp.DstUnreach:
			if quotesEcho(body.Data, target, id, seq) {
				return Outcome{Status: StatusUnreachable, RTT: rtt, From: from, Reason: "destination unreachable"}, nil
			}
		}
	}
}

// udpTrace sends a TTL-limited UDP datagram and listens on a raw ICMP socket
// for the time-exceeded or port-unreachable error it provokes.
func (t *NetTransport) udpTrace(ctx context.Context, target net.IP, spec ProbeSpec) (Outcome, error) {
	listener, err := t.rawICMP()
	if err != nil {
		if scanerr.IsPrivilege(err) {
			return Outcome{}, err
		}
		return unreachable(err.Error()), nil
	}
	defer listener.Close()
	pc := listener.IPv4PacketConn()
	_ = pc.SetControlMessage(ipv4.FlagTTL, true)

	d := net.Dialer{Control: setTTL(spec.TTL)}
	conn, err := d.DialContext(ctx, "udp4", (&net.UDPAddr{IP: target, Port: spec.Port}).String())
	if err != nil {
		return unreachable(err.Error()), nil
	}
	defer conn.Close()
	srcPort := conn.LocalAddr().(*net.UDPAddr).Port

	if dl, ok := ctx.Deadline(); ok {
		_ = listener.SetDeadline(dl)
	}
	start := time.Now()
	if _, err := conn.Write(echoPayload); err != nil {
		return unreachable(err.Error()), nil
	}

	buf := make([]byte, readBufSize)
	for {
		n, cm, peer, err := pc.ReadFrom(buf)
		if err != nil {
			return classifyReadError(err), nil
		}
		rtt := time.Since(start)
		rm, err := icmp.ParseMessage(protocolICMP, buf[:n])
		if err != nil {
			continue
		}
		ttl := 0
		if cm != nil {
			ttl = cm.TTL
		}
		var quoted []byte
		reply := ReplyTimeExceeded
		switch body := rm.Body.(type) {
		case *icmp.TimeExceeded:
			quoted = body.Data
		case *icmp.DstUnreach:
			quoted = body.Data
			reply = ReplyPortUnreachable
		default:
			continue
		}
		if !quotesUDP(quoted, target, srcPort, spec.Port) {
			continue
		}
		return Outcome{Status: StatusResponded, Reply: reply, RTT: rtt, TTL: ttl, From: addrIP(peer)}, nil
	}
}

// quotesEcho reports whether an ICMP error payload quotes our echo request.
func quotesEcho(data []byte, dst net.IP, id, seq int) bool {
	inner, ok := quotedPayload(data, dst, protocolICMP)
	if !ok || len(inner) < 8 {
		return false
	}
	if inner[0] != byte(ipv4.ICMPTypeEcho) {
		return false
	}
	return int(binary.BigEndian.Uint16(inner[4:6])) == id &&
		int(binary.BigEndian.Uint16(inner[6:8])) == seq
}

// quotesUDP reports whether an ICMP error payload quotes our UDP datagram.
func quotesUDP(data []byte, dst net.IP, srcPort, dstPort int) bool {
	inner, ok := quotedPayload(data, dst, protocolUDP)
	if !ok || len(inner) < 4 {
		return false
	}
	return int(binary.BigEndian.Uint16(inner[0:2])) == srcPort &&
		int(binary.BigEndian.Uint16(inner[2:4])) == dstPort
}

func quotedPayload(data []byte, dst net.IP, proto int) ([]byte, bool) {
	h, err := icmp.ParseIPv4Header(data)
	if err != nil || h.Protocol != proto || !h.Dst.Equal(dst) || len(data) < h.Len {
		return nil, false
	}
	return data[h.Len:], true
}

func classifyReadError(err error) Outcome {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return timedOut("no response")
	}
	return unreachable(err.Error())
}

func addrIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.IPAddr:
		return v.IP
	case *net.UDPAddr:
		return v.IP
	}
	return nil
}
