package probes

import (
	"context"
	"sort"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/util"
)

// udpPayloads are sent to well-known UDP ports to provoke an answer; other
// ports get an empty datagram.
var udpPayloads = map[int][]byte{
	53:  dnsProbe(),
	123: append([]byte{0x1b}, make([]byte, 47)...),
}

func dnsProbe() []byte {
	m := new(dns.Msg)
	m.SetQuestion(".", dns.TypeNS)
	b, err := m.Pack()
	if err != nil {
		return nil
	}
	return b
}

// portOutcome is one classified (target, port) pair handed to the aggregator.
type portOutcome struct {
	host  int
	entry model.PortEntry
	ttl   int
	data  []byte
}

// PortScan probes every configured port on every target and classifies it.
// The result has exactly one entry per (target, port), sorted by port.
func (e *Engine) PortScan(ctx context.Context, cfg model.ScanConfig, rep *Reporter) (*model.PortScanResult, error) {
	if err := cfg.ValidatePortScan(); err != nil {
		return nil, err
	}
	targets, err := ExpandTargets(ctx, cfg.Targets, e.resolver)
	if err != nil {
		return nil, err
	}

	result := &model.PortScanResult{
		RunInfo:   model.NewRunInfo(model.KindPortScan),
		Technique: cfg.Technique,
		Targets:   cfg.Targets,
		Hosts:     make([]model.HostPorts, len(targets)),
	}
	for i, t := range targets {
		result.Hosts[i] = model.HostPorts{IP: t.IP.String(), Hostname: t.Name}
	}
	lim := NewLimiter(cfg.Concurrency, cfg.Rate)

	util.Info("port scan: %d targets x %d ports (%s)", len(targets), len(cfg.Ports), cfg.Technique)
	rep.Start(PhasePortScan)
	ttls, payloads, err := e.scanPorts(ctx, cfg, targets, lim, result.Hosts)
	if err == nil && cfg.ReverseLookup {
		err = e.lookupTargets(ctx, targets, lim, result.Hosts)
	}
	rep.End(PhasePortScan)
	if err != nil {
		return nil, err
	}

	if cfg.ServiceDetection {
		rep.Start(PhaseServiceDetection)
		err = e.detectServices(ctx, cfg, targets, lim, result.Hosts, payloads)
		rep.End(PhaseServiceDetection)
		if err != nil {
			return nil, err
		}
	}

	if cfg.OSDetection {
		rep.Start(PhaseOSDetection)
		err = e.fingerprintTargets(ctx, cfg, targets, lim, result.Hosts, ttls)
		rep.End(PhaseOSDetection)
		if err != nil {
			return nil, err
		}
	}

	result.Finish()
	return result, nil
}

// lookupTargets fills the hostname of targets given as addresses. Each task
// writes only its own host entry.
func (e *Engine) lookupTargets(ctx context.Context, targets []Target, lim *Limiter, hosts []model.HostPorts) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		if t.Name != "" {
			continue
		}
		if err := lim.Acquire(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer lim.Release()
			hosts[i].Hostname = e.reverseLookup(gctx, t.IP)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// scanPorts runs the probe pass. Probe tasks never touch the port tables;
// a single aggregator goroutine owns them and appends outcomes as they
// arrive. It returns the first reply TTL seen per host and any UDP payloads.
func (e *Engine) scanPorts(ctx context.Context, cfg model.ScanConfig, targets []Target, lim *Limiter, hosts []model.HostPorts) ([]int, map[[2]int][]byte, error) {
	ttls := make([]int, len(targets))
	payloads := make(map[[2]int][]byte)
	outcomes := make(chan portOutcome, lim.Capacity())
	done := make(chan struct{})

	go func() {
		defer close(done)
		for o := range outcomes {
			hosts[o.host].Ports = append(hosts[o.host].Ports, o.entry)
			if ttls[o.host] == 0 && o.ttl > 0 {
				ttls[o.host] = o.ttl
			}
			if len(o.data) > 0 {
				payloads[[2]int{o.host, o.entry.Port}] = o.data
			}
		}
	}()

	kind, proto := probeKindFor(cfg.Technique)
	g, gctx := errgroup.WithContext(ctx)
feed:
	for hi, t := range targets {
		for _, port := range cfg.Ports {
			if err := lim.Acquire(gctx); err != nil {
				break feed
			}
			g.Go(func() error {
				defer lim.Release()
				spec := ProbeSpec{Kind: kind, Port: port}
				if kind == ProbeUDP {
					spec.Payload = udpPayloads[port]
				}
				out, err := e.transport.SendAndAwait(gctx, t.IP, spec, cfg.Timeout)
				if err != nil {
					return err
				}
				o := portOutcome{
					host: hi,
					entry: model.PortEntry{
						Port:     port,
						Protocol: proto,
						State:    ClassifyPort(cfg.Technique, out),
					},
					ttl: out.TTL,
				}
				if out.Responded() {
					o.entry.RTTMs = model.DurationMs(out.RTT)
				}
				if out.Reply == ReplyData {
					o.data = out.Payload
				}
				outcomes <- o
				return nil
			})
		}
	}
	err := g.Wait()
	close(outcomes)
	<-done
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, nil, err
	}

	for i := range hosts {
		sort.Slice(hosts[i].Ports, func(a, b int) bool {
			return hosts[i].Ports[a].Port < hosts[i].Ports[b].Port
		})
	}
	return ttls, payloads, nil
}

func probeKindFor(t model.Technique) (ProbeKind, model.Protocol) {
	switch t {
	case model.TechniqueSYN:
		return ProbeTCPSyn, model.ProtocolTCP
	case model.TechniqueUDP:
		return ProbeUDP, model.ProtocolUDP
	}
	return ProbeTCPConnect, model.ProtocolTCP
}

// ClassifyPort maps a probe outcome to a port state.
//
//	connect: handshake -> open, refused -> closed, silence -> filtered
//	syn:     SYN-ACK -> open, RST -> closed, silence -> filtered
//	udp:     datagram -> open, port unreachable -> closed,
//	         silence -> open|filtered, other unreachable -> filtered
func ClassifyPort(t model.Technique, out Outcome) model.PortState {
	if t == model.TechniqueUDP {
		switch {
		case out.Reply == ReplyData:
			return model.StateOpen
		case out.Reply == ReplyPortUnreachable:
			return model.StateClosed
		case out.Status == StatusTimedOut:
			return model.StateOpenFiltered
		}
		return model.StateFiltered
	}
	switch out.Reply {
	case ReplyConnected, ReplySynAck:
		return model.StateOpen
	case ReplyReset:
		return model.StateClosed
	}
	return model.StateFiltered
}
