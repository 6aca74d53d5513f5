// Package sigdb holds the read-only signature databases used by the scan
// engine: MAC vendor prefixes, TTL fingerprints and service signatures.
//
// A DB is built once per process and shared by every probe of a run. Nothing
// in this package mutates a DB after it is returned.
package sigdb

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"
)

//go:embed data/oui.txt data/os_ttl.yaml data/services.yaml data/subdomains.txt
var dataFS embed.FS

// DB bundles the signature databases.
type DB struct {
	OUI        *OuiMap
	TTL        *TTLTable
	Services   *ServiceSignatures
	Subdomains []string
}

// Options selects external files that replace the embedded data.
type Options struct {
	// OUIFile is an IEEE oui.txt listing.
	OUIFile string
}

// Load builds a DB from the embedded data and the given overrides.
func Load(opts Options) (*DB, error) {
	ouiData, err := readData("data/oui.txt", opts.OUIFile)
	if err != nil {
		return nil, err
	}
	oui, err := ParseOUI(bytes.NewReader(ouiData))
	if err != nil {
		return nil, fmt.Errorf("parse oui database: %w", err)
	}

	ttlData, err := dataFS.ReadFile("data/os_ttl.yaml")
	if err != nil {
		return nil, err
	}
	ttl, err := ParseTTLTable(ttlData)
	if err != nil {
		return nil, err
	}

	svcData, err := dataFS.ReadFile("data/services.yaml")
	if err != nil {
		return nil, err
	}
	svc, err := ParseServiceSignatures(svcData)
	if err != nil {
		return nil, err
	}

	words, err := dataFS.ReadFile("data/subdomains.txt")
	if err != nil {
		return nil, err
	}

	return &DB{
		OUI:        oui,
		TTL:        ttl,
		Services:   svc,
		Subdomains: ParseWordlist(words),
	}, nil
}

func readData(embedded, override string) ([]byte, error) {
	if override != "" {
		data, err := os.ReadFile(override)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", override, err)
		}
		return data, nil
	}
	return dataFS.ReadFile(embedded)
}

var (
	defaultOnce sync.Once
	defaultDB   *DB
	defaultErr  error
)

// Default returns the process-wide DB built from the embedded data. It is
// loaded on first use.
func Default() (*DB, error) {
	defaultOnce.Do(func() {
		defaultDB, defaultErr = Load(Options{})
	})
	return defaultDB, defaultErr
}

// ParseWordlist returns the non-empty, non-comment lines of data.
func ParseWordlist(data []byte) []string {
	var words []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		w := strings.ToLower(strings.TrimSpace(sc.Text()))
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words
}

// ReadWordlist loads a subdomain wordlist from disk.
func ReadWordlist(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wordlist: %w", err)
	}
	return ParseWordlist(data), nil
}
