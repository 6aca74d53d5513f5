// Package model defines core data structures for netrecon.
package model

import (
	"time"

	"github.com/google/uuid"
)

// ScanKind identifies the kind of run a result belongs to.
type ScanKind string

const (
	KindPortScan   ScanKind = "portscan"
	KindHostScan   ScanKind = "hostscan"
	KindPing       ScanKind = "ping"
	KindTrace      ScanKind = "traceroute"
	KindDomainScan ScanKind = "domainscan"
)

// Protocol is the transport protocol a port entry was probed over.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// PortState is the classification of a probed port.
type PortState string

const (
	StateOpen     PortState = "open"
	StateClosed   PortState = "closed"
	StateFiltered PortState = "filtered"
	// StateOpenFiltered is only produced by UDP probes that got no reply.
	StateOpenFiltered PortState = "open|filtered"
)

// RunInfo identifies a single engine run in every serialized result.
type RunInfo struct {
	ProbeID   string    `json:"probe_id"`
	Kind      ScanKind  `json:"kind"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMs float64   `json:"elapsed_ms"`
}

// NewRunInfo stamps a fresh probe id and start time.
func NewRunInfo(kind ScanKind) RunInfo {
	return RunInfo{
		ProbeID:   NewProbeID(),
		Kind:      kind,
		StartedAt: time.Now(),
	}
}

// Finish records the elapsed time since StartedAt.
func (r *RunInfo) Finish() {
	r.ElapsedMs = DurationMs(time.Since(r.StartedAt))
}

// NewProbeID returns a new random run identifier.
func NewProbeID() string {
	return uuid.NewString()
}

// DurationMs converts a duration to fractional milliseconds.
func DurationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// PortEntry is the classification of one (port, protocol) pair.
type PortEntry struct {
	Port     int       `json:"port"`
	Protocol Protocol  `json:"protocol"`
	State    PortState `json:"state"`
	Service  string    `json:"service,omitempty"`
	Version  string    `json:"version,omitempty"`
	Banner   string    `json:"banner,omitempty"`
	RTTMs    float64   `json:"rtt_ms,omitempty"`
}

// HostPorts holds the port table for one scanned target.
type HostPorts struct {
	IP       string      `json:"ip"`
	Hostname string      `json:"hostname,omitempty"`
	OS       string      `json:"os,omitempty"`
	TTL      int         `json:"ttl,omitempty"`
	Ports    []PortEntry `json:"ports"`
}

// OpenPorts returns the entries classified open.
func (h *HostPorts) OpenPorts() []PortEntry {
	var open []PortEntry
	for _, p := range h.Ports {
		if p.State == StateOpen {
			open = append(open, p)
		}
	}
	return open
}

// PortScanResult is the terminal value of a port scan.
type PortScanResult struct {
	RunInfo
	Technique Technique   `json:"technique"`
	Targets   []string    `json:"targets"`
	Hosts     []HostPorts `json:"hosts"`
}

// Host is a discovered host. IP is its identity key.
type Host struct {
	IP       string  `json:"ip"`
	MAC      string  `json:"mac,omitempty"`
	Vendor   string  `json:"vendor,omitempty"`
	Hostname string  `json:"hostname,omitempty"`
	OS       string  `json:"os,omitempty"`
	TTL      int     `json:"ttl,omitempty"`
	RTTMs    float64 `json:"rtt_ms,omitempty"`
}

// HostScanResult is the terminal value of a host discovery run.
type HostScanResult struct {
	RunInfo
	Technique Technique `json:"technique"`
	Targets   []string  `json:"targets"`
	Hosts     []Host    `json:"hosts"`
}

// PingReply is the outcome of a single echo probe.
type PingReply struct {
	Seq   int     `json:"seq"`
	Lost  bool    `json:"lost"`
	RTTMs float64 `json:"rtt_ms,omitempty"`
	TTL   int     `json:"ttl,omitempty"`
}

// PingStat is the terminal value of a ping run.
type PingStat struct {
	RunInfo
	Target      string      `json:"target"`
	IP          string      `json:"ip"`
	Protocol    string      `json:"protocol"`
	Replies     []PingReply `json:"replies"`
	Sent        int         `json:"sent"`
	Received    int         `json:"received"`
	LossPercent float64     `json:"loss_percent"`
	MinMs       float64     `json:"min_ms"`
	MaxMs       float64     `json:"max_ms"`
	AvgMs       float64     `json:"avg_ms"`
	StdDevMs    float64     `json:"stddev_ms"`
}

// TraceHop represents a single hop in a traceroute.
type TraceHop struct {
	HopNum    int     `json:"hop"`
	IP        string  `json:"ip,omitempty"`
	Hostname  string  `json:"hostname,omitempty"`
	LatencyMs float64 `json:"rtt_ms,omitempty"`
	Lost      bool    `json:"lost"`
}

// TraceResult represents a complete traceroute result.
type TraceResult struct {
	RunInfo
	Target   string     `json:"target"`
	IP       string     `json:"ip"`
	Protocol string     `json:"protocol"`
	MaxHops  int        `json:"max_hops"`
	Reached  bool       `json:"reached"`
	Hops     []TraceHop `json:"hops"`
}

// DomainEntry is one queried name. Unresolved names keep Resolved=false.
type DomainEntry struct {
	Name      string   `json:"name"`
	Resolved  bool     `json:"resolved"`
	Addresses []string `json:"addresses,omitempty"`
	CNAME     string   `json:"cname,omitempty"`
}

// DNSRecord is a single resource record of the base domain.
type DNSRecord struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
	TTL   uint32 `json:"ttl"`
}

// DomainScanResult is the terminal value of a domain scan.
type DomainScanResult struct {
	RunInfo
	Domain  string        `json:"domain"`
	Entries []DomainEntry `json:"entries"`
	Records []DNSRecord   `json:"records,omitempty"`
}

// ResolvedCount returns how many entries resolved.
func (r *DomainScanResult) ResolvedCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Resolved {
			n++
		}
	}
	return n
}
