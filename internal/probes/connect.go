package probes

import (
	"context"
	"net"
	"strconv"
	"time"
)

const maxBanner = 2048

// connect performs a full TCP handshake and optionally reads a banner.
func (t *NetTransport) connect(ctx context.Context, target net.IP, spec ProbeSpec) Outcome {
	addr := net.JoinHostPort(target.String(), strconv.Itoa(spec.Port))
	var d net.Dialer
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp4", addr)
	rtt := time.Since(start)
	if err != nil {
		return classifyDialError(err, rtt)
	}
	defer conn.Close()

	out := Outcome{Status: StatusResponded, Reply: ReplyConnected, RTT: rtt, From: target}
	if len(spec.Payload) == 0 && !spec.ReadBanner {
		return out
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if len(spec.Payload) > 0 {
		if _, err := conn.Write(spec.Payload); err != nil {
			return out
		}
	}
	out.Payload = readBanner(conn)
	return out
}

// readBanner returns the first chunk the peer sends before the deadline.
func readBanner(conn net.Conn) []byte {
	buf := make([]byte, maxBanner)
	n, _ := conn.Read(buf)
	if n == 0 {
		return nil
	}
	return buf[:n]
}
