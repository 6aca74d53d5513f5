package probes

import (
	"context"
	"fmt"
	"net"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/util"
)

// tracePortBase is the first destination port of UDP trace probes.
const tracePortBase = 33434

// Trace probes the path to a single target with increasing TTL, one hop at a
// time, until the target answers or MaxHops is reached. An unreachable error
// from the target itself also ends the trace. Reaching the hop cap is not an
// error.
func (e *Engine) Trace(ctx context.Context, cfg model.ScanConfig, rep *Reporter) (*model.TraceResult, error) {
	if err := cfg.ValidateTrace(); err != nil {
		return nil, err
	}
	targets, err := ExpandTargets(ctx, cfg.Targets[:1], e.resolver)
	if err != nil {
		return nil, err
	}
	t := targets[0]

	result := &model.TraceResult{
		RunInfo:  model.NewRunInfo(model.KindTrace),
		Target:   cfg.Targets[0],
		IP:       t.IP.String(),
		Protocol: cfg.TraceProtocol,
		MaxHops:  cfg.MaxHops,
		Hops:     make([]model.TraceHop, 0, cfg.MaxHops),
	}
	rep.Linef("traceroute to %s (%s), %d hops max", result.Target, result.IP, cfg.MaxHops)

	for ttl := 1; ttl <= cfg.MaxHops; ttl++ {
		out, err := e.transport.SendAndAwait(ctx, t.IP, traceSpec(cfg, ttl), cfg.Timeout)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// A router answering with an unreachable error still names the hop.
		hop := model.TraceHop{HopNum: ttl, Lost: true}
		if out.From != nil {
			hop.Lost = false
			hop.IP = out.From.String()
			hop.LatencyMs = model.DurationMs(out.RTT)
			if cfg.ReverseLookup {
				hop.Hostname = e.reverseLookup(ctx, out.From)
			}
		}
		result.Hops = append(result.Hops, hop)
		rep.Linef("%s", FormatHop(hop))

		if reachedTarget(out, t.IP) {
			result.Reached = true
			break
		}
		if out.Status == StatusUnreachable && out.From.Equal(t.IP) {
			break
		}
	}

	util.Info("trace %s: %d hops, reached=%v", result.IP, len(result.Hops), result.Reached)
	result.Finish()
	return result, nil
}

func traceSpec(cfg model.ScanConfig, ttl int) ProbeSpec {
	if cfg.TraceProtocol == "udp" {
		return ProbeSpec{Kind: ProbeUDPTrace, Port: tracePortBase + ttl - 1, TTL: ttl}
	}
	return ProbeSpec{Kind: ProbeICMPEcho, TTL: ttl, Seq: ttl}
}

// reachedTarget reports whether out is the final answer from the target
// itself: an echo reply, or port unreachable for UDP probes.
func reachedTarget(out Outcome, target net.IP) bool {
	if !out.Responded() || !out.From.Equal(target) {
		return false
	}
	return out.Reply == ReplyEchoReply || out.Reply == ReplyPortUnreachable
}

// FormatHop renders a hop the way traceroute prints it.
func FormatHop(h model.TraceHop) string {
	if h.Lost {
		return fmt.Sprintf("%2d  *", h.HopNum)
	}
	if h.Hostname != "" {
		return fmt.Sprintf("%2d  %s (%s)  %.3f ms", h.HopNum, h.Hostname, h.IP, h.LatencyMs)
	}
	return fmt.Sprintf("%2d  %s  %.3f ms", h.HopNum, h.IP, h.LatencyMs)
}
