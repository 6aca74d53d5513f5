package probes

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/netrecon/internal/model"
)

// scriptedTransport answers probes through a handler and records them.
type scriptedTransport struct {
	handle func(target net.IP, spec ProbeSpec) (Outcome, error)
	delay  time.Duration

	mu    sync.Mutex
	calls []ProbeSpec

	inFlight atomic.Int64
	peak     atomic.Int64
}

func (s *scriptedTransport) SendAndAwait(ctx context.Context, target net.IP, spec ProbeSpec, timeout time.Duration) (Outcome, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, spec)
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.handle(target, spec)
}

func (s *scriptedTransport) callsOf(kind ProbeKind) []ProbeSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ProbeSpec
	for _, c := range s.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func responded(reply Reply, from net.IP) Outcome {
	return Outcome{Status: StatusResponded, Reply: reply, From: from, RTT: 2 * time.Millisecond}
}

// mapResolver resolves from fixed tables.
type mapResolver struct {
	hosts   map[string][]net.IP
	cnames  map[string]string
	ptr     map[string]string
	records []model.DNSRecord
}

func (m *mapResolver) Resolve(_ context.Context, name string) (Answer, error) {
	ips, ok := m.hosts[name]
	if !ok {
		return Answer{}, ErrNoRecord
	}
	return Answer{Addresses: ips, CNAME: m.cnames[name]}, nil
}

func (m *mapResolver) LookupAddr(_ context.Context, ip net.IP) (string, error) {
	if name, ok := m.ptr[ip.String()]; ok {
		return name, nil
	}
	return "", ErrNoRecord
}

func (m *mapResolver) Records(_ context.Context, _ string) ([]model.DNSRecord, error) {
	return m.records, nil
}

// collect drains a reporter channel while run executes.
func collect[T any](t func(ctx context.Context, r *Reporter) (T, error)) (T, []Event, error) {
	job := Spawn(context.Background(), t)
	var events []Event
	for ev := range job.Events() {
		events = append(events, ev)
	}
	res, err := job.Wait()
	return res, events, err
}

func tags(events []Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Kind != EventLine {
			out = append(out, ev.String())
		}
	}
	return out
}

func lines(events []Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Kind == EventLine {
			out = append(out, ev.Line)
		}
	}
	return out
}
