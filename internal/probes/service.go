package probes

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/sigdb"
)

const maxBannerDisplay = 200

// detectServices identifies the service behind every open port. Each task
// owns exactly one port entry, so entries are updated without locking.
func (e *Engine) detectServices(ctx context.Context, cfg model.ScanConfig, targets []Target, lim *Limiter, hosts []model.HostPorts, payloads map[[2]int][]byte) error {
	g, gctx := errgroup.WithContext(ctx)
feed:
	for hi := range hosts {
		for pi := range hosts[hi].Ports {
			entry := &hosts[hi].Ports[pi]
			if entry.State != model.StateOpen {
				continue
			}
			if entry.Protocol == model.ProtocolUDP {
				applyMatch(e.db.Services, entry, payloads[[2]int{hi, entry.Port}])
				continue
			}
			if err := lim.Acquire(gctx); err != nil {
				break feed
			}
			ip := targets[hi].IP
			g.Go(func() error {
				defer lim.Release()
				banner, err := e.grabBanner(gctx, entry.Port, func(spec ProbeSpec) (Outcome, error) {
					return e.transport.SendAndAwait(gctx, ip, spec, cfg.Timeout)
				})
				if err != nil {
					return err
				}
				applyMatch(e.db.Services, entry, banner)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// grabBanner walks the probes for port until one elicits a response that a
// banner signature recognises. It returns the best response seen.
func (e *Engine) grabBanner(ctx context.Context, port int, send func(ProbeSpec) (Outcome, error)) ([]byte, error) {
	var first []byte
	for _, p := range e.db.Services.ProbesFor(port) {
		if ctx.Err() != nil {
			break
		}
		spec := ProbeSpec{Kind: ProbeTCPConnect, Port: port, ReadBanner: true}
		if p.Payload != "" {
			spec.Payload = []byte(p.Payload)
		}
		out, err := send(spec)
		if err != nil {
			return nil, err
		}
		if len(out.Payload) == 0 {
			continue
		}
		if first == nil {
			first = out.Payload
		}
		if m, ok := e.db.Services.Match(port, string(out.Payload)); ok && m.Source != "port" {
			return out.Payload, nil
		}
	}
	return first, nil
}

// applyMatch fills service, version and banner of entry. A port without any
// match keeps an empty service name.
func applyMatch(sigs *sigdb.ServiceSignatures, entry *model.PortEntry, banner []byte) {
	m, ok := sigs.Match(entry.Port, string(banner))
	if ok {
		entry.Service = m.Service
		entry.Version = m.Version
	}
	entry.Banner = cleanBanner(banner)
}

// cleanBanner keeps the printable part of a banner's first line.
func cleanBanner(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	s := string(b)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.Map(func(r rune) rune {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if len(s) > maxBannerDisplay {
		s = s[:maxBannerDisplay]
	}
	return s
}
