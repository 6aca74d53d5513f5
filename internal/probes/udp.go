package probes

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

// udp sends one datagram over a connected socket. The kernel surfaces an ICMP
// port unreachable for a connected socket as ECONNREFUSED on the next read.
func (t *NetTransport) udp(ctx context.Context, target net.IP, spec ProbeSpec) Outcome {
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: target, Port: spec.Port})
	if err != nil {
		return unreachable(err.Error())
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	payload := spec.Payload
	if payload == nil {
		payload = []byte{}
	}
	start := time.Now()
	if _, err := conn.Write(payload); err != nil {
		return classifyUDPError(err, time.Since(start))
	}

	buf := make([]byte, maxBanner)
	n, err := conn.Read(buf)
	rtt := time.Since(start)
	if err != nil {
		return classifyUDPError(err, rtt)
	}
	return Outcome{
		Status:  StatusResponded,
		Reply:   ReplyData,
		RTT:     rtt,
		From:    target,
		Payload: buf[:n],
	}
}

func classifyUDPError(err error, rtt time.Duration) Outcome {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Outcome{Status: StatusResponded, Reply: ReplyPortUnreachable, RTT: rtt}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return timedOut("no response")
	}
	return unreachable(err.Error())
}
