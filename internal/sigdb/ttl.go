package sigdb

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// TTLFingerprint is one canonical initial TTL and the OS family using it.
type TTLFingerprint struct {
	TTL int    `yaml:"ttl"`
	OS  string `yaml:"os"`
}

// TTLTable is an ordered set of TTL fingerprints.
type TTLTable struct {
	entries []TTLFingerprint
}

// ParseTTLTable decodes the YAML fingerprint list.
func ParseTTLTable(data []byte) (*TTLTable, error) {
	var doc struct {
		Fingerprints []TTLFingerprint `yaml:"fingerprints"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode ttl table: %w", err)
	}
	for _, e := range doc.Fingerprints {
		if e.TTL < 1 || e.TTL > 255 || e.OS == "" {
			return nil, fmt.Errorf("bad ttl fingerprint %d/%q", e.TTL, e.OS)
		}
	}
	return &TTLTable{entries: doc.Fingerprints}, nil
}

// Match returns the OS family whose canonical TTL is the nearest value at or
// above observed, provided the gap is at most delta hops. Entries sharing the
// winning TTL resolve to the one listed first.
func (t *TTLTable) Match(observed, delta int) (string, bool) {
	if t == nil || observed < 1 || observed > 255 {
		return "", false
	}
	best := -1
	for i, e := range t.entries {
		if e.TTL < observed || e.TTL-observed > delta {
			continue
		}
		if best < 0 || e.TTL < t.entries[best].TTL {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return t.entries[best].OS, true
}
