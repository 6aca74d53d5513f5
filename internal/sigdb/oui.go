package sigdb

import (
	"bufio"
	"io"
	"net"
	"strings"
)

// Assignment block sizes in hex digits: MA-S (36 bit), MA-M (28 bit), MA-L (24 bit).
var ouiPrefixLens = []int{9, 7, 6}

// OuiMap maps MAC address prefixes to vendor names.
type OuiMap struct {
	vendors map[string]string
}

// ParseOUI reads an IEEE registry listing. Lines of the form
// "00-00-0C   (hex)		Cisco Systems, Inc" or "00000C     (base 16)		Cisco"
// are accepted; everything else is ignored.
func ParseOUI(r io.Reader) (*OuiMap, error) {
	m := &OuiMap{vendors: make(map[string]string)}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		var sep string
		switch {
		case strings.Contains(line, "(hex)"):
			sep = "(hex)"
		case strings.Contains(line, "(base 16)"):
			sep = "(base 16)"
		default:
			continue
		}
		parts := strings.SplitN(line, sep, 2)
		prefix := normalizeHex(parts[0])
		vendor := strings.TrimSpace(parts[1])
		if vendor == "" || !validPrefixLen(len(prefix)) {
			continue
		}
		if _, ok := m.vendors[prefix]; !ok {
			m.vendors[prefix] = vendor
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Len returns the number of known prefixes.
func (m *OuiMap) Len() int {
	return len(m.vendors)
}

// Vendor returns the vendor of the longest registered prefix of mac.
func (m *OuiMap) Vendor(mac net.HardwareAddr) (string, bool) {
	if m == nil || len(mac) < 3 {
		return "", false
	}
	hex := normalizeHex(mac.String())
	for _, n := range ouiPrefixLens {
		if len(hex) < n {
			continue
		}
		if v, ok := m.vendors[hex[:n]]; ok {
			return v, true
		}
	}
	return "", false
}

func validPrefixLen(n int) bool {
	for _, l := range ouiPrefixLens {
		if n == l {
			return true
		}
	}
	return false
}

func normalizeHex(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			b.WriteRune(r)
		case r >= 'a' && r <= 'f':
			b.WriteRune(r - 'a' + 'A')
		case r == '-' || r == ':' || r == '.':
		default:
			return ""
		}
	}
	return b.String()
}
