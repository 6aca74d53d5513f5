//go:build linux

package probes

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/user/netrecon/internal/scanerr"
)

// arp broadcasts a who-has request on the link holding target through an
// AF_PACKET socket and waits for the matching reply.
func (t *NetTransport) arp(ctx context.Context, target net.IP) (Outcome, error) {
	ifi, src, err := interfaceFor(target)
	if err != nil {
		return unreachable(err.Error()), nil
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ARP)))
	if err != nil {
		if isPermission(err) {
			return Outcome{}, scanerr.Privilege("ARP socket", err)
		}
		return unreachable(err.Error()), nil
	}
	defer unix.Close(fd)

	sll := &unix.SockaddrLinklayer{Protocol: htons(unix.ETH_P_ARP), Ifindex: ifi.Index}
	if err := unix.Bind(fd, sll); err != nil {
		return unreachable(err.Error()), nil
	}

	frame, err := buildARPRequest(ifi.HardwareAddr, src, target)
	if err != nil {
		return Outcome{}, err
	}
	dst := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ARP),
		Ifindex:  ifi.Index,
		Halen:    6,
	}
	copy(dst.Addr[:], broadcastMAC)

	start := time.Now()
	if err := unix.Sendto(fd, frame, 0, dst); err != nil {
		if isPermission(err) {
			return Outcome{}, scanerr.Privilege("ARP send", err)
		}
		return unreachable(err.Error()), nil
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = start.Add(time.Second)
	}
	buf := make([]byte, readBufSize)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return timedOut("no ARP reply"), nil
		}
		tv := unix.NsecToTimeval(remaining.Nanoseconds())
		if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			return unreachable(err.Error()), nil
		}
		n, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return unreachable(err.Error()), nil
		}
		if mac, ok := parseARPReply(buf[:n], target); ok {
			return Outcome{
				Status: StatusResponded,
				Reply:  ReplyARP,
				RTT:    time.Since(start),
				From:   target,
				MAC:    mac,
			}, nil
		}
	}
}

func htons(n uint16) uint16 { return (n << 8) | (n >> 8) }
