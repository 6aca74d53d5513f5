package sigdb

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"
)

const matchTimeout = 100 * time.Millisecond

// ServiceProbe is a payload written to an open port to elicit a banner.
type ServiceProbe struct {
	Name     string `yaml:"name"`
	Protocol string `yaml:"protocol"`
	Payload  string `yaml:"payload"`
	Ports    []int  `yaml:"ports"`
	Rarity   int    `yaml:"rarity"`
}

// Generic reports whether the probe applies to every port.
func (p ServiceProbe) Generic() bool {
	return len(p.Ports) == 0
}

type serviceMatch struct {
	Service string `yaml:"service"`
	Pattern string `yaml:"pattern"`
	Flags   string `yaml:"flags"`
	Version string `yaml:"version"`
	Soft    bool   `yaml:"soft"`

	re *regexp2.Regexp
}

// ServiceMatch is the outcome of a signature lookup.
type ServiceMatch struct {
	Service string
	Version string
	// Source is "banner", "soft" or "port".
	Source string
}

// ServiceSignatures holds probes, banner patterns and the port fallback table.
type ServiceSignatures struct {
	probes    []ServiceProbe
	portProbe map[int][]int
	hard      []*serviceMatch
	soft      []*serviceMatch
	ports     map[int]string
}

// ParseServiceSignatures decodes and compiles the YAML signature file.
func ParseServiceSignatures(data []byte) (*ServiceSignatures, error) {
	var doc struct {
		Probes  []ServiceProbe  `yaml:"probes"`
		Matches []*serviceMatch `yaml:"matches"`
		Ports   map[int]string  `yaml:"ports"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode service signatures: %w", err)
	}

	s := &ServiceSignatures{
		portProbe: make(map[int][]int),
		ports:     doc.Ports,
	}
	if s.ports == nil {
		s.ports = make(map[int]string)
	}

	s.probes = doc.Probes
	sort.SliceStable(s.probes, func(i, j int) bool {
		return s.probes[i].Rarity < s.probes[j].Rarity
	})
	for i, p := range s.probes {
		for _, port := range p.Ports {
			s.portProbe[port] = append(s.portProbe[port], i)
		}
	}

	for _, m := range doc.Matches {
		re, err := compilePattern(m.Pattern, m.Flags)
		if err != nil {
			return nil, fmt.Errorf("service %s: pattern %q: %w", m.Service, m.Pattern, err)
		}
		m.re = re
		if m.Soft {
			s.soft = append(s.soft, m)
		} else {
			s.hard = append(s.hard, m)
		}
	}
	return s, nil
}

func compilePattern(pattern, flags string) (*regexp2.Regexp, error) {
	var opts regexp2.RegexOptions
	if strings.Contains(flags, "i") {
		opts |= regexp2.IgnoreCase
	}
	if strings.Contains(flags, "s") {
		opts |= regexp2.Singleline
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	return re, nil
}

// ProbesFor returns the probes to try against a TCP port: port-specific ones
// first, then generic ones, each group ordered by rarity.
func (s *ServiceSignatures) ProbesFor(port int) []ServiceProbe {
	var out []ServiceProbe
	for _, i := range s.portProbe[port] {
		out = append(out, s.probes[i])
	}
	for _, p := range s.probes {
		if p.Generic() && p.Protocol == "tcp" {
			out = append(out, p)
		}
	}
	return out
}

// portName returns the conventional service name of a port.
func (s *ServiceSignatures) portName(port int) (string, bool) {
	name, ok := s.ports[port]
	return name, ok
}

// Match identifies the service behind banner. A hard banner signature beats a
// soft one, which beats the port number fallback. An empty banner on an
// unknown port yields no match.
func (s *ServiceSignatures) Match(port int, banner string) (ServiceMatch, bool) {
	if banner != "" {
		if m, ok := matchAny(s.hard, banner); ok {
			m.Source = "banner"
			return m, true
		}
		if m, ok := matchAny(s.soft, banner); ok {
			m.Source = "soft"
			return m, true
		}
	}
	if name, ok := s.portName(port); ok {
		return ServiceMatch{Service: name, Source: "port"}, true
	}
	return ServiceMatch{}, false
}

func matchAny(matches []*serviceMatch, banner string) (ServiceMatch, bool) {
	runes := bytesToRunes(banner)
	for _, m := range matches {
		found, err := m.re.FindRunesMatch(runes)
		if err != nil || found == nil {
			continue
		}
		return ServiceMatch{
			Service: m.Service,
			Version: expandVersion(m.Version, found),
		}, true
	}
	return ServiceMatch{}, false
}

func expandVersion(template string, m *regexp2.Match) string {
	if template == "" {
		return ""
	}
	groups := m.Groups()
	out := template
	for i := len(groups) - 1; i >= 1; i-- {
		out = strings.ReplaceAll(out, fmt.Sprintf("$%d", i), groups[i].String())
	}
	return strings.TrimSpace(out)
}

// bytesToRunes maps each byte to the rune of the same value so binary banners
// can be matched with \xNN escapes.
func bytesToRunes(s string) []rune {
	out := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = rune(s[i])
	}
	return out
}
