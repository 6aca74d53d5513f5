package probes

import (
	"context"
	"net"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/util"
)

// Ping sends PingCount probes to a single target, one at a time, spaced by
// PingInterval. Every probe is reported as a progress line when it completes.
func (e *Engine) Ping(ctx context.Context, cfg model.ScanConfig, rep *Reporter) (*model.PingStat, error) {
	if err := cfg.ValidatePing(); err != nil {
		return nil, err
	}
	targets, err := ExpandTargets(ctx, cfg.Targets[:1], e.resolver)
	if err != nil {
		return nil, err
	}
	t := targets[0]

	stat := &model.PingStat{
		RunInfo:  model.NewRunInfo(model.KindPing),
		Target:   cfg.Targets[0],
		IP:       t.IP.String(),
		Protocol: cfg.PingProtocol,
		Replies:  make([]model.PingReply, 0, cfg.PingCount),
	}
	if cfg.PingProtocol == "tcp" {
		rep.Linef("PING %s (%s) port %d over TCP", stat.Target, stat.IP, cfg.PingPort)
	} else {
		rep.Linef("PING %s (%s): %d data bytes", stat.Target, stat.IP, EchoSize-8)
	}

	var rtts []float64
	start := time.Now()
	for seq := 0; seq < cfg.PingCount; seq++ {
		// Sends stay on the start+seq*interval grid however long a probe waited.
		if seq > 0 && cfg.PingInterval > 0 {
			due := start.Add(time.Duration(seq) * cfg.PingInterval)
			if err := sleepCtx(ctx, time.Until(due)); err != nil {
				return nil, err
			}
		}
		reply, err := e.pingOnce(ctx, cfg, t.IP, seq)
		if err != nil {
			return nil, err
		}
		stat.Replies = append(stat.Replies, reply)
		if reply.Lost {
			rep.Linef("Request timeout for seq %d", seq)
			continue
		}
		rtts = append(rtts, reply.RTTMs)
		if cfg.PingProtocol == "tcp" {
			rep.Linef("Connected to %s:%d: seq=%d time=%.3f ms", stat.IP, cfg.PingPort, seq, reply.RTTMs)
		} else {
			rep.Linef("%d bytes from %s: seq=%d ttl=%d time=%.3f ms", EchoSize, stat.IP, seq, reply.TTL, reply.RTTMs)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summarize(stat, rtts)
	rep.Linef("--- %s ping statistics ---", stat.Target)
	rep.Linef("%d packets transmitted, %d packets received, %.1f%% packet loss",
		stat.Sent, stat.Received, stat.LossPercent)
	if stat.Received > 0 {
		rep.Linef("round-trip min/avg/max/stddev = %.3f/%.3f/%.3f/%.3f ms",
			stat.MinMs, stat.AvgMs, stat.MaxMs, stat.StdDevMs)
	}
	stat.Finish()
	return stat, nil
}

// pingOnce issues one echo (or TCP connect) probe. A refused TCP connection
// still proves the host is up.
func (e *Engine) pingOnce(ctx context.Context, cfg model.ScanConfig, ip net.IP, seq int) (model.PingReply, error) {
	spec := ProbeSpec{Kind: ProbeICMPEcho, Seq: seq}
	if cfg.PingProtocol == "tcp" {
		spec = ProbeSpec{Kind: ProbeTCPConnect, Port: cfg.PingPort}
	}
	out, err := e.transport.SendAndAwait(ctx, ip, spec, cfg.Timeout)
	if err != nil {
		return model.PingReply{}, err
	}

	reply := model.PingReply{Seq: seq, Lost: true}
	switch out.Reply {
	case ReplyEchoReply, ReplyConnected, ReplyReset:
		reply.Lost = false
		reply.RTTMs = model.DurationMs(out.RTT)
		reply.TTL = out.TTL
	default:
		util.Debug("ping %s seq=%d: %s %s", ip, seq, out.Status, out.Reason)
	}
	return reply, nil
}

// summarize fills the aggregate fields. Loss is counted against every probe
// sent, the latency figures only over the probes that were answered.
func summarize(stat *model.PingStat, rtts []float64) {
	stat.Sent = len(stat.Replies)
	stat.Received = len(rtts)
	if stat.Sent > 0 {
		stat.LossPercent = 100 * float64(stat.Sent-stat.Received) / float64(stat.Sent)
	}
	if len(rtts) == 0 {
		return
	}
	data := stats.Float64Data(rtts)
	stat.MinMs, _ = data.Min()
	stat.MaxMs, _ = data.Max()
	stat.AvgMs, _ = data.Mean()
	stat.StdDevMs, _ = data.StandardDeviation()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
