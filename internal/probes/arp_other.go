//go:build !linux

package probes

import (
	"context"
	"net"

	"github.com/user/netrecon/internal/scanerr"
)

// arp is only implemented on Linux. Host discovery falls back to ICMP.
func (t *NetTransport) arp(ctx context.Context, target net.IP) (Outcome, error) {
	return Outcome{}, scanerr.ErrUnsupported
}
