package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is implemented by the terminal value of every scan kind.
type Result interface {
	Info() *RunInfo
	// Subject names what was scanned: a target, a range list or a domain.
	Subject() string
	// Summary is a one-line outcome used in run listings.
	Summary() string
}

// Info returns the run metadata.
func (r *RunInfo) Info() *RunInfo { return r }

func (r *PortScanResult) Subject() string { return strings.Join(r.Targets, ",") }

func (r *PortScanResult) Summary() string {
	open := 0
	for i := range r.Hosts {
		open += len(r.Hosts[i].OpenPorts())
	}
	return fmt.Sprintf("%d hosts, %d open ports", len(r.Hosts), open)
}

func (r *HostScanResult) Subject() string { return strings.Join(r.Targets, ",") }

func (r *HostScanResult) Summary() string {
	return fmt.Sprintf("%d hosts up", len(r.Hosts))
}

func (r *PingStat) Subject() string { return r.Target }

func (r *PingStat) Summary() string {
	return fmt.Sprintf("%d/%d received, %.1f%% loss", r.Received, r.Sent, r.LossPercent)
}

func (r *TraceResult) Subject() string { return r.Target }

func (r *TraceResult) Summary() string {
	if r.Reached {
		return fmt.Sprintf("%d hops, reached", len(r.Hops))
	}
	return fmt.Sprintf("%d hops, not reached", len(r.Hops))
}

func (r *DomainScanResult) Subject() string { return r.Domain }

func (r *DomainScanResult) Summary() string {
	return fmt.Sprintf("%d/%d names resolved", r.ResolvedCount(), len(r.Entries))
}

// NewResult returns an empty result value for kind.
func NewResult(kind ScanKind) (Result, error) {
	switch kind {
	case KindPortScan:
		return &PortScanResult{}, nil
	case KindHostScan:
		return &HostScanResult{}, nil
	case KindPing:
		return &PingStat{}, nil
	case KindTrace:
		return &TraceResult{}, nil
	case KindDomainScan:
		return &DomainScanResult{}, nil
	}
	return nil, fmt.Errorf("unknown scan kind %q", kind)
}

// DecodeResult parses the JSON projection of a result of the given kind.
func DecodeResult(kind ScanKind, data []byte) (Result, error) {
	res, err := NewResult(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", kind, err)
	}
	return res, nil
}
