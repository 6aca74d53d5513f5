package model

import (
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/user/netrecon/internal/scanerr"
)

// Technique selects how targets are probed.
type Technique string

const (
	TechniqueConnect   Technique = "connect"
	TechniqueSYN       Technique = "syn"
	TechniqueUDP       Technique = "udp"
	TechniqueARPSweep  Technique = "arp-sweep"
	TechniqueICMPSweep Technique = "icmp-sweep"
)

const (
	maxPort   = 65535
	maxTTL    = 255
	maxPrefix = 16 // refuse sweeps larger than a /16
)

// ScanConfig is the configuration of a single run. It is immutable once the
// run starts and shared read-only by every probe task.
type ScanConfig struct {
	// Targets holds single addresses, CIDR ranges or hostnames.
	Targets []string
	Ports   []int

	Technique   Technique
	Timeout     time.Duration
	Concurrency int
	// Rate caps probes per second across the run. Zero disables pacing.
	Rate int

	ServiceDetection bool
	OSDetection      bool
	// TTLDelta bounds how far an observed TTL may sit below a canonical one.
	TTLDelta int
	// ReverseLookup enables PTR resolution of discovered hosts and hops.
	ReverseLookup bool

	PingCount    int
	PingInterval time.Duration
	// PingProtocol is "icmp" or "tcp".
	PingProtocol string
	PingPort     int

	MaxHops int
	// TraceProtocol is "icmp" or "udp".
	TraceProtocol string

	Domain        string
	Subdomains    []string
	DNSServer     string
	WithRecordSet bool
}

// DefaultScanConfig returns a configuration with conservative defaults.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Technique:     TechniqueConnect,
		Timeout:       2 * time.Second,
		Concurrency:   100,
		ReverseLookup: true,
		TTLDelta:      32,
		PingCount:     4,
		PingInterval:  time.Second,
		PingProtocol:  "icmp",
		PingPort:      80,
		MaxHops:       30,
		TraceProtocol: "icmp",
	}
}

// Validate dispatches to the checks of the given scan kind.
func (c *ScanConfig) Validate(kind ScanKind) error {
	switch kind {
	case KindPortScan:
		return c.ValidatePortScan()
	case KindHostScan:
		return c.ValidateHostScan()
	case KindPing:
		return c.ValidatePing()
	case KindTrace:
		return c.ValidateTrace()
	case KindDomainScan:
		return c.ValidateDomainScan()
	}
	return scanerr.Config("unknown scan kind %q", kind)
}

func (c *ScanConfig) validateCommon() error {
	if c.Timeout <= 0 {
		return scanerr.Config("timeout must be positive, got %s", c.Timeout)
	}
	if c.Concurrency <= 0 {
		return scanerr.Config("concurrency limit must be positive, got %d", c.Concurrency)
	}
	if c.Rate < 0 {
		return scanerr.Config("rate must not be negative, got %d", c.Rate)
	}
	if c.TTLDelta < 0 || c.TTLDelta > maxTTL {
		return scanerr.Config("ttl delta must be in 0..%d, got %d", maxTTL, c.TTLDelta)
	}
	return nil
}

func (c *ScanConfig) validateTargets(allowRanges bool) error {
	if len(c.Targets) == 0 {
		return scanerr.Config("no targets given")
	}
	for _, t := range c.Targets {
		if err := ValidateTarget(t, allowRanges); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePortScan checks the fields used by a port scan.
func (c *ScanConfig) ValidatePortScan() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if err := c.validateTargets(true); err != nil {
		return err
	}
	if len(c.Ports) == 0 {
		return scanerr.Config("empty port list")
	}
	for _, p := range c.Ports {
		if p < 1 || p > maxPort {
			return scanerr.Config("port %d out of range 1..%d", p, maxPort)
		}
	}
	switch c.Technique {
	case TechniqueConnect, TechniqueSYN, TechniqueUDP:
	default:
		return scanerr.Config("technique %q is not a port scan technique", c.Technique)
	}
	return nil
}

// ValidateHostScan checks the fields used by host discovery.
func (c *ScanConfig) ValidateHostScan() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if err := c.validateTargets(true); err != nil {
		return err
	}
	switch c.Technique {
	case TechniqueARPSweep, TechniqueICMPSweep:
	default:
		return scanerr.Config("technique %q is not a sweep technique", c.Technique)
	}
	return nil
}

// ValidatePing checks the fields used by the pinger.
func (c *ScanConfig) ValidatePing() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if err := c.validateTargets(false); err != nil {
		return err
	}
	if c.PingCount < 1 {
		return scanerr.Config("ping count must be at least 1, got %d", c.PingCount)
	}
	if c.PingInterval < 0 {
		return scanerr.Config("ping interval must not be negative")
	}
	switch c.PingProtocol {
	case "icmp":
	case "tcp":
		if c.PingPort < 1 || c.PingPort > maxPort {
			return scanerr.Config("ping port %d out of range", c.PingPort)
		}
	default:
		return scanerr.Config("unknown ping protocol %q", c.PingProtocol)
	}
	return nil
}

// ValidateTrace checks the fields used by the tracer.
func (c *ScanConfig) ValidateTrace() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if err := c.validateTargets(false); err != nil {
		return err
	}
	if c.MaxHops < 1 || c.MaxHops > maxTTL {
		return scanerr.Config("max hops must be in 1..%d, got %d", maxTTL, c.MaxHops)
	}
	switch c.TraceProtocol {
	case "icmp", "udp":
	default:
		return scanerr.Config("unknown trace protocol %q", c.TraceProtocol)
	}
	return nil
}

// ValidateDomainScan checks the fields used by the domain scanner.
func (c *ScanConfig) ValidateDomainScan() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.Domain == "" {
		return scanerr.Config("no domain given")
	}
	if _, ok := dns.IsDomainName(c.Domain); !ok {
		return scanerr.InvalidTarget(c.Domain, nil)
	}
	if len(c.Subdomains) == 0 && !c.WithRecordSet {
		return scanerr.Config("no subdomain candidates given")
	}
	if c.DNSServer != "" {
		if _, _, err := net.SplitHostPort(c.DNSServer); err != nil {
			return scanerr.Config("dns server must be host:port, got %q", c.DNSServer)
		}
	}
	return nil
}

// ValidateTarget checks the syntax of a target spec without resolving it.
func ValidateTarget(target string, allowRanges bool) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return scanerr.InvalidTarget(target, nil)
	}
	if strings.Contains(target, "/") {
		if !allowRanges {
			return scanerr.Config("target %q: ranges are not accepted here", target)
		}
		_, ipnet, err := net.ParseCIDR(target)
		if err != nil {
			return scanerr.InvalidTarget(target, err)
		}
		if ipnet.IP.To4() == nil {
			return scanerr.InvalidTarget(target, errIPv6)
		}
		ones, bits := ipnet.Mask.Size()
		if bits-ones > maxPrefix {
			return scanerr.Config("target %q: range larger than /%d", target, bits-maxPrefix)
		}
		return nil
	}
	if ip := net.ParseIP(target); ip != nil {
		if ip.To4() == nil {
			return scanerr.InvalidTarget(target, errIPv6)
		}
		return nil
	}
	if _, ok := dns.IsDomainName(target); !ok || strings.ContainsAny(target, " :") {
		return scanerr.InvalidTarget(target, nil)
	}
	return nil
}

type ipv6Error struct{}

func (ipv6Error) Error() string { return "IPv6 targets are not supported" }

var errIPv6 error = ipv6Error{}

// ParsePortSpec parses "22", "22,80,443", "1-1024" and mixed forms into a
// sorted, deduplicated list.
func ParsePortSpec(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, scanerr.Config("empty port spec")
	}
	seen := make(map[int]struct{})
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, scanerr.Config("empty token in port spec %q", spec)
		}
		lo, hi := tok, tok
		if i := strings.Index(tok, "-"); i >= 0 {
			lo, hi = strings.TrimSpace(tok[:i]), strings.TrimSpace(tok[i+1:])
		}
		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, scanerr.Config("bad port %q", lo)
		}
		end, err := strconv.Atoi(hi)
		if err != nil {
			return nil, scanerr.Config("bad port %q", hi)
		}
		if start < 1 || end > maxPort || start > end {
			return nil, scanerr.Config("bad port range %q", tok)
		}
		for p := start; p <= end; p++ {
			seen[p] = struct{}{}
		}
	}
	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

var topPorts = []int{
	21, 22, 23, 25, 53, 80, 110, 111, 135, 139,
	143, 443, 445, 993, 995, 1723, 3306, 3389, 5432, 5900,
	8080, 8443, 8888, 27017, 6379, 11211, 1433, 1521, 5984, 9200,
	2181, 9092, 6443, 10250, 2379, 4443, 7443, 8000, 8001, 8002,
	9000, 9001, 9090, 9091, 9443, 10000, 10443, 15672, 27018, 27019,
}

// TopPorts returns the n most common ports.
func TopPorts(n int) []int {
	if n <= 0 || n > len(topPorts) {
		n = len(topPorts)
	}
	out := make([]int, n)
	copy(out, topPorts[:n])
	return out
}
