package probes

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/scanerr"
	"github.com/user/netrecon/internal/util"
)

// hostUpdate changes the record of one host, keyed by IP.
type hostUpdate struct {
	ip    net.IP
	apply func(h *model.Host)
}

// hostTable holds discovered hosts keyed by IP. It is only mutated by the
// aggregator goroutine started in collect.
type hostTable struct {
	hosts map[string]*model.Host
	ips   map[string]net.IP
}

func newHostTable() *hostTable {
	return &hostTable{
		hosts: make(map[string]*model.Host),
		ips:   make(map[string]net.IP),
	}
}

func (t *hostTable) upsert(ip net.IP) *model.Host {
	key := ip.String()
	if h, ok := t.hosts[key]; ok {
		return h
	}
	h := &model.Host{IP: key}
	t.hosts[key] = h
	t.ips[key] = ip
	return h
}

// collect runs produce while a single goroutine applies its updates.
func (t *hostTable) collect(produce func(send func(hostUpdate)) error) error {
	ch := make(chan hostUpdate, eventBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range ch {
			u.apply(t.upsert(u.ip))
		}
	}()
	err := produce(func(u hostUpdate) { ch <- u })
	close(ch)
	<-done
	return err
}

// addrs returns the discovered addresses in ascending order.
func (t *hostTable) addrs() []net.IP {
	out := make([]net.IP, 0, len(t.ips))
	for _, ip := range t.ips {
		out = append(out, ip)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].To4(), out[j].To4()) < 0
	})
	return out
}

func (t *hostTable) list() []model.Host {
	addrs := t.addrs()
	out := make([]model.Host, 0, len(addrs))
	for _, ip := range addrs {
		out = append(out, *t.hosts[ip.String()])
	}
	return out
}

// HostScan discovers live hosts in the configured ranges and enriches each
// one with vendor, hostname and, optionally, an OS guess.
func (e *Engine) HostScan(ctx context.Context, cfg model.ScanConfig, rep *Reporter) (*model.HostScanResult, error) {
	if err := cfg.ValidateHostScan(); err != nil {
		return nil, err
	}
	targets, err := ExpandTargets(ctx, cfg.Targets, e.resolver)
	if err != nil {
		return nil, err
	}

	result := &model.HostScanResult{
		RunInfo:   model.NewRunInfo(model.KindHostScan),
		Technique: cfg.Technique,
		Targets:   cfg.Targets,
	}
	lim := NewLimiter(cfg.Concurrency, cfg.Rate)
	table := newHostTable()

	util.Info("host scan: %d addresses (%s)", len(targets), cfg.Technique)
	rep.Start(PhaseHostScan)
	err = table.collect(func(send func(hostUpdate)) error {
		return e.sweep(ctx, cfg, targets, lim, send)
	})
	rep.End(PhaseHostScan)
	if err != nil {
		return nil, err
	}

	addrs := table.addrs()
	rep.Start(PhaseLookup)
	err = table.collect(func(send func(hostUpdate)) error {
		return e.lookupHosts(ctx, cfg, addrs, lim, send)
	})
	rep.End(PhaseLookup)
	if err != nil {
		return nil, err
	}

	if cfg.OSDetection {
		rep.Start(PhaseOSDetection)
		known := make(map[string]int, len(table.hosts))
		for k, h := range table.hosts {
			known[k] = h.TTL
		}
		err = table.collect(func(send func(hostUpdate)) error {
			return e.fingerprintHosts(ctx, cfg, addrs, known, lim, send)
		})
		rep.End(PhaseOSDetection)
		if err != nil {
			return nil, err
		}
	}

	result.Hosts = table.list()
	result.Finish()
	return result, nil
}

// sweep probes every address once. Only responsive addresses are sent to
// the aggregator.
func (e *Engine) sweep(ctx context.Context, cfg model.ScanConfig, targets []Target, lim *Limiter, send func(hostUpdate)) error {
	names := make(map[string]string)
	for _, t := range targets {
		if t.Name != "" {
			names[t.IP.String()] = t.Name
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		if err := lim.Acquire(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer lim.Release()
			out, err := e.discover(gctx, cfg, t.IP)
			if err != nil {
				return err
			}
			if out.Reply != ReplyARP && out.Reply != ReplyEchoReply {
				return nil
			}
			name := names[t.IP.String()]
			send(hostUpdate{ip: t.IP, apply: func(h *model.Host) {
				if len(out.MAC) > 0 {
					h.MAC = out.MAC.String()
				}
				if out.TTL > 0 {
					h.TTL = out.TTL
				}
				if h.RTTMs == 0 {
					h.RTTMs = model.DurationMs(out.RTT)
				}
				if h.Hostname == "" {
					h.Hostname = name
				}
			}})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// discover issues an ARP request for on-link targets when ARP sweeping and
// an ICMP echo otherwise.
func (e *Engine) discover(ctx context.Context, cfg model.ScanConfig, ip net.IP) (Outcome, error) {
	if cfg.Technique == model.TechniqueARPSweep {
		out, err := e.transport.SendAndAwait(ctx, ip, ProbeSpec{Kind: ProbeARP}, cfg.Timeout)
		switch {
		case errors.Is(err, scanerr.ErrUnsupported):
			util.Debug("arp unsupported, using ICMP for %s", ip)
		case err != nil:
			return Outcome{}, err
		case out.Status == StatusUnreachable && out.Reason == ReasonNotOnLink:
			util.Debug("%s is off-link, using ICMP", ip)
		default:
			return out, nil
		}
	}
	return e.transport.SendAndAwait(ctx, ip, ProbeSpec{Kind: ProbeICMPEcho}, cfg.Timeout)
}

// lookupHosts resolves vendor and reverse name of each discovered host.
// Failures leave the fields empty.
func (e *Engine) lookupHosts(ctx context.Context, cfg model.ScanConfig, addrs []net.IP, lim *Limiter, send func(hostUpdate)) error {
	for _, ip := range addrs {
		send(hostUpdate{ip: ip, apply: func(h *model.Host) {
			if h.MAC == "" {
				return
			}
			if mac, err := net.ParseMAC(h.MAC); err == nil {
				h.Vendor, _ = e.db.OUI.Vendor(mac)
			}
		}})
	}
	if !cfg.ReverseLookup {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ip := range addrs {
		if err := lim.Acquire(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer lim.Release()
			name := e.reverseLookup(gctx, ip)
			if name == "" {
				return nil
			}
			send(hostUpdate{ip: ip, apply: func(h *model.Host) {
				if h.Hostname == "" {
					h.Hostname = name
				}
			}})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// fingerprintHosts guesses the OS of each discovered host from the TTL seen
// during discovery, or from a dedicated echo when ARP found the host.
func (e *Engine) fingerprintHosts(ctx context.Context, cfg model.ScanConfig, addrs []net.IP, known map[string]int, lim *Limiter, send func(hostUpdate)) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, ip := range addrs {
		if err := lim.Acquire(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer lim.Release()
			ttl, err := e.observeTTL(gctx, cfg, ip, known[ip.String()])
			if err != nil {
				return err
			}
			guess := e.GuessOS(ttl, cfg.TTLDelta)
			send(hostUpdate{ip: ip, apply: func(h *model.Host) {
				if ttl > 0 {
					h.TTL = ttl
				}
				h.OS = guess
			}})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
