package probes

import (
	"context"
	"math/rand/v2"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/ipv4"

	"github.com/user/netrecon/internal/scanerr"
)

const (
	synPortBase  = 40000
	synPortRange = 20000
	synTTL       = 64
)

// syn sends a bare TCP SYN over a raw IPv4 socket and classifies the answer.
// The kernel answers the SYN-ACK with a RST on our behalf, so no connection
// is ever established.
func (t *NetTransport) syn(ctx context.Context, target net.IP, spec ProbeSpec) (Outcome, error) {
	src, err := localAddrFor(target)
	if err != nil {
		return unreachable(err.Error()), nil
	}
	pconn, err := net.ListenPacket("ip4:tcp", src.String())
	if err != nil {
		if isPermission(err) {
			return Outcome{}, scanerr.Privilege("SYN scan raw socket", err)
		}
		return unreachable(err.Error()), nil
	}
	defer pconn.Close()
	rc, err := ipv4.NewRawConn(pconn)
	if err != nil {
		return Outcome{}, scanerr.Privilege("SYN scan raw socket", err)
	}

	id := t.nextID()
	srcPort := layers.TCPPort(synPortBase + int(id)%synPortRange)
	dstPort := layers.TCPPort(spec.Port)
	seq := rand.Uint32()
	seg, err := buildSYN(src, target, srcPort, dstPort, seq)
	if err != nil {
		return Outcome{}, err
	}
	hdr := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + len(seg),
		ID:       int(id),
		TTL:      synTTL,
		Protocol: int(layers.IPProtocolTCP),
		Src:      src,
		Dst:      target,
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = rc.SetDeadline(dl)
	}
	start := time.Now()
	if err := rc.WriteTo(hdr, seg, nil); err != nil {
		if isPermission(err) {
			return Outcome{}, scanerr.Privilege("SYN scan send", err)
		}
		return unreachable(err.Error()), nil
	}

	buf := make([]byte, readBufSize)
	for {
		h, p, _, err := rc.ReadFrom(buf)
		if err != nil {
			return classifyReadError(err), nil
		}
		if h == nil || !h.Src.Equal(target) {
			continue
		}
		reply, ok := classifySegment(p, srcPort, dstPort, seq)
		if !ok {
			continue
		}
		return Outcome{
			Status: StatusResponded,
			Reply:  reply,
			RTT:    time.Since(start),
			TTL:    h.TTL,
			From:   h.Src,
		}, nil
	}
}

func buildSYN(src, dst net.IP, srcPort, dstPort layers.TCPPort, seq uint32) ([]byte, error) {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      synTTL,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    src,
		DstIP:    dst,
	}
	tcp := &layers.TCP{
		SrcPort: srcPort,
		DstPort: dstPort,
		Seq:     seq,
		SYN:     true,
		Window:  1024,
		Options: []layers.TCPOption{{
			OptionType:   layers.TCPOptionKindMSS,
			OptionLength: 4,
			OptionData:   []byte{0x05, 0xb4},
		}},
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, tcp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// classifySegment decodes a TCP segment and reports whether it answers our
// SYN, and how.
func classifySegment(data []byte, srcPort, dstPort layers.TCPPort, seq uint32) (Reply, bool) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeTCP, gopacket.NoCopy)
	l, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok || l.SrcPort != dstPort || l.DstPort != srcPort {
		return ReplyNone, false
	}
	if l.ACK && l.Ack != seq+1 {
		return ReplyNone, false
	}
	switch {
	case l.SYN && l.ACK:
		return ReplySynAck, true
	case l.RST:
		return ReplyReset, true
	}
	return ReplyNone, false
}
