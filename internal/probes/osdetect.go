package probes

import (
	"context"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/user/netrecon/internal/model"
)

// GuessOS maps an observed reply TTL to an OS family. The guess is left
// empty when no fingerprint lies within delta hops above the observation.
func (e *Engine) GuessOS(ttl, delta int) string {
	family, _ := e.db.TTL.Match(ttl, delta)
	return family
}

// observeTTL returns known when set, otherwise the TTL of a dedicated echo.
// A host that does not answer yields zero.
func (e *Engine) observeTTL(ctx context.Context, cfg model.ScanConfig, ip net.IP, known int) (int, error) {
	if known > 0 {
		return known, nil
	}
	out, err := e.transport.SendAndAwait(ctx, ip, ProbeSpec{Kind: ProbeICMPEcho}, cfg.Timeout)
	if err != nil {
		return 0, err
	}
	if out.Reply != ReplyEchoReply {
		return 0, nil
	}
	return out.TTL, nil
}

// fingerprintTargets fills the OS guess of every port-scanned host. Each
// task owns one host entry.
func (e *Engine) fingerprintTargets(ctx context.Context, cfg model.ScanConfig, targets []Target, lim *Limiter, hosts []model.HostPorts, ttls []int) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range hosts {
		if err := lim.Acquire(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer lim.Release()
			ttl, err := e.observeTTL(gctx, cfg, targets[i].IP, ttls[i])
			if err != nil {
				return err
			}
			hosts[i].TTL = ttl
			hosts[i].OS = e.GuessOS(ttl, cfg.TTLDelta)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
