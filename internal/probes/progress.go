package probes

import (
	"context"
	"fmt"
	"strings"
)

// Phase names a bracketed stage of a scan.
type Phase int

const (
	PhasePortScan Phase = iota
	PhaseServiceDetection
	PhaseOSDetection
	PhaseHostScan
	PhaseLookup
	PhaseDomainScan
)

var phaseNames = [...]string{
	PhasePortScan:         "PORTSCAN",
	PhaseServiceDetection: "SERVICEDETECTION",
	PhaseOSDetection:      "OSDETECTION",
	PhaseHostScan:         "HOSTSCAN",
	PhaseLookup:           "LOOKUP",
	PhaseDomainScan:       "DOMAINSCAN",
}

func (p Phase) String() string {
	if int(p) < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("PHASE(%d)", int(p))
	}
	return phaseNames[p]
}

// Title is a human-readable label for spinners.
func (p Phase) Title() string {
	switch p {
	case PhasePortScan:
		return "Scanning ports"
	case PhaseServiceDetection:
		return "Detecting services"
	case PhaseOSDetection:
		return "Detecting OS"
	case PhaseHostScan:
		return "Discovering hosts"
	case PhaseLookup:
		return "Looking up hosts"
	case PhaseDomainScan:
		return "Scanning domain"
	}
	return p.String()
}

// EventKind distinguishes lifecycle markers from free-text lines.
type EventKind int

const (
	EventStart EventKind = iota
	EventEnd
	EventLine
)

// Event is one message on the progress channel.
type Event struct {
	Kind  EventKind
	Phase Phase
	Line  string
}

// String renders the event in its wire form: START_<PHASE>, END_<PHASE> or
// the line itself.
func (e Event) String() string {
	switch e.Kind {
	case EventStart:
		return "START_" + e.Phase.String()
	case EventEnd:
		return "END_" + e.Phase.String()
	}
	return e.Line
}

// parseEvent is the inverse of Event.String. Unknown tags are lines.
func parseEvent(s string) Event {
	for _, pfx := range []struct {
		tag  string
		kind EventKind
	}{{"START_", EventStart}, {"END_", EventEnd}} {
		if !strings.HasPrefix(s, pfx.tag) {
			continue
		}
		name := strings.TrimPrefix(s, pfx.tag)
		for i, n := range phaseNames {
			if n == name {
				return Event{Kind: pfx.kind, Phase: Phase(i)}
			}
		}
	}
	return Event{Kind: EventLine, Line: s}
}

// Reporter is the sending half of a progress channel. A nil Reporter
// discards everything.
type Reporter struct {
	ch chan<- Event
}

// NewReporter wraps ch.
func NewReporter(ch chan<- Event) *Reporter {
	return &Reporter{ch: ch}
}

func (r *Reporter) send(e Event) {
	if r == nil || r.ch == nil {
		return
	}
	r.ch <- e
}

// Start emits START_<phase>.
func (r *Reporter) Start(p Phase) { r.send(Event{Kind: EventStart, Phase: p}) }

// End emits END_<phase>.
func (r *Reporter) End(p Phase) { r.send(Event{Kind: EventEnd, Phase: p}) }

// Linef emits a free-text line.
func (r *Reporter) Linef(format string, args ...any) {
	r.send(Event{Kind: EventLine, Line: fmt.Sprintf(format, args...)})
}

// Job is a scan running on its own goroutine. The caller drains Events until
// it is closed and then collects the terminal value with Wait.
type Job[T any] struct {
	events chan Event
	done   chan struct{}
	result T
	err    error
}

const eventBuffer = 64

// Spawn starts run on a new goroutine.
func Spawn[T any](ctx context.Context, run func(ctx context.Context, r *Reporter) (T, error)) *Job[T] {
	j := &Job[T]{
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(j.done)
		defer close(j.events)
		j.result, j.err = run(ctx, NewReporter(j.events))
	}()
	return j
}

// Events returns the progress stream. It is closed when the run ends.
func (j *Job[T]) Events() <-chan Event {
	return j.events
}

// Wait blocks until the run ends and returns its result. Events that were
// not consumed are discarded.
func (j *Job[T]) Wait() (T, error) {
	go func() {
		for range j.events {
		}
	}()
	<-j.done
	return j.result, j.err
}
