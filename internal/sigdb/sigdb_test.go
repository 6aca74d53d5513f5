package sigdb

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}

func TestDefaultLoads(t *testing.T) {
	db, err := Default()
	require.NoError(t, err)
	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, db, again)

	assert.Greater(t, db.OUI.Len(), 10)
	assert.NotEmpty(t, db.TTL.entries)
	assert.Contains(t, db.Subdomains, "www")
	assert.Contains(t, db.Subdomains, "mail")
}

func TestOUIVendor(t *testing.T) {
	db, err := Default()
	require.NoError(t, err)

	v, ok := db.OUI.Vendor(mustMAC(t, "00:50:56:aa:bb:cc"))
	assert.True(t, ok)
	assert.Equal(t, "VMware, Inc.", v)

	v, ok = db.OUI.Vendor(mustMAC(t, "b8:27:eb:01:02:03"))
	assert.True(t, ok)
	assert.Equal(t, "Raspberry Pi Foundation", v)

	_, ok = db.OUI.Vendor(mustMAC(t, "02:00:00:00:00:01"))
	assert.False(t, ok)

	_, ok = db.OUI.Vendor(nil)
	assert.False(t, ok)
}

func TestOUILongestPrefix(t *testing.T) {
	listing := strings.Join([]string{
		"70-B3-D5   (hex)\t\tIEEE Registration Authority",
		"70B3D5F2F     (base 16)\t\tSmall Block Vendor",
		"70B3D51       (base 16)\t\tMedium Block Vendor",
		"garbage line",
	}, "\n")
	m, err := ParseOUI(strings.NewReader(listing))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())

	v, _ := m.Vendor(mustMAC(t, "70:b3:d5:f2:f0:01"))
	assert.Equal(t, "Small Block Vendor", v)
	v, _ = m.Vendor(mustMAC(t, "70:b3:d5:10:00:01"))
	assert.Equal(t, "Medium Block Vendor", v)
	v, _ = m.Vendor(mustMAC(t, "70:b3:d5:80:00:01"))
	assert.Equal(t, "IEEE Registration Authority", v)
}

func TestLoadWithOUIFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oui.txt")
	require.NoError(t, os.WriteFile(path, []byte("AA-BB-CC   (hex)\t\tTest Vendor\n"), 0o644))

	db, err := Load(Options{OUIFile: path})
	require.NoError(t, err)
	assert.Equal(t, 1, db.OUI.Len())
	v, ok := db.OUI.Vendor(mustMAC(t, "aa:bb:cc:00:00:00"))
	assert.True(t, ok)
	assert.Equal(t, "Test Vendor", v)

	_, err = Load(Options{OUIFile: filepath.Join(t.TempDir(), "missing.txt")})
	assert.Error(t, err)
}

func TestTTLMatch(t *testing.T) {
	db, err := Default()
	require.NoError(t, err)

	tests := []struct {
		observed int
		delta    int
		want     string
		ok       bool
	}{
		{64, 32, "Linux/Unix", true},
		{57, 32, "Linux/Unix", true},
		{33, 32, "Linux/Unix", true},
		{32, 32, "Windows 9x/embedded", true},
		{128, 32, "Windows", true},
		{113, 32, "Windows", true},
		{90, 32, "", false},
		{250, 32, "Network device (Cisco IOS/Solaris)", true},
		{200, 32, "", false},
		{57, 4, "", false},
		{0, 32, "", false},
		{300, 32, "", false},
	}
	for _, tt := range tests {
		got, ok := db.TTL.Match(tt.observed, tt.delta)
		assert.Equal(t, tt.ok, ok, "ttl %d", tt.observed)
		assert.Equal(t, tt.want, got, "ttl %d", tt.observed)
	}
}

func TestTTLMatchDeterministic(t *testing.T) {
	db, err := Default()
	require.NoError(t, err)
	for observed := 0; observed <= 256; observed++ {
		first, firstOK := db.TTL.Match(observed, 32)
		for i := 0; i < 3; i++ {
			got, ok := db.TTL.Match(observed, 32)
			assert.Equal(t, first, got)
			assert.Equal(t, firstOK, ok)
		}
	}
}

func TestParseTTLTableRejectsBadEntries(t *testing.T) {
	_, err := ParseTTLTable([]byte("fingerprints:\n  - ttl: 0\n    os: x\n"))
	assert.Error(t, err)
	_, err = ParseTTLTable([]byte("fingerprints: [oops"))
	assert.Error(t, err)
}

func TestServiceMatch(t *testing.T) {
	db, err := Default()
	require.NoError(t, err)
	svc := db.Services

	tests := []struct {
		name    string
		port    int
		banner  string
		service string
		version string
		source  string
		ok      bool
	}{
		{"ssh banner", 2222, "SSH-2.0-OpenSSH_9.6p1 Ubuntu-3\r\n", "ssh", "OpenSSH_9.6p1 Ubuntu-3", "banner", true},
		{"http with server", 8081, "HTTP/1.1 200 OK\r\nDate: x\r\nServer: nginx/1.25.3\r\n\r\n", "http", "nginx/1.25.3", "banner", true},
		{"http without server", 8081, "HTTP/1.0 404 Not Found\r\n\r\n", "http", "", "banner", true},
		{"banner beats port", 80, "SSH-2.0-dropbear\r\n", "ssh", "dropbear", "banner", true},
		{"smtp greeting", 25, "220 mail.example.com ESMTP Postfix\r\n", "smtp", "", "banner", true},
		{"ftp greeting", 21, "220 (vsFTPd 3.0.5)\r\n", "ftp", "", "banner", true},
		{"mysql handshake", 3307, "J\x00\x00\x00\x0a8.0.36\x00abc", "mysql", "8.0.36", "banner", true},
		{"telnet negotiation", 2323, "\xff\xfd\x18\xff\xfd\x20", "telnet", "", "banner", true},
		{"soft html", 9999, "<HTML><body>hi</body>", "http", "", "soft", true},
		{"port fallback no banner", 80, "", "http", "", "port", true},
		{"port fallback unmatched banner", 6379, "garbage", "redis", "", "port", true},
		{"fully unmatched", 40000, "garbage", "", "", "", false},
		{"no banner unknown port", 40000, "", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := svc.Match(tt.port, tt.banner)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.service, m.Service)
			assert.Equal(t, tt.version, m.Version)
			assert.Equal(t, tt.source, m.Source)
		})
	}
}

func TestProbesFor(t *testing.T) {
	db, err := Default()
	require.NoError(t, err)

	probes := db.Services.ProbesFor(80)
	require.Len(t, probes, 2)
	assert.Equal(t, "GetRequest", probes[0].Name)
	assert.Equal(t, "GET / HTTP/1.0\r\n\r\n", probes[0].Payload)
	assert.Equal(t, "NULL", probes[1].Name)

	probes = db.Services.ProbesFor(22)
	require.Len(t, probes, 1)
	assert.True(t, probes[0].Generic())

	name, ok := db.Services.portName(443)
	assert.True(t, ok)
	assert.Equal(t, "https", name)
}

func TestParseWordlist(t *testing.T) {
	words := ParseWordlist([]byte("www\n# comment\n\nMail\nwww\n  api  \n"))
	assert.Equal(t, []string{"www", "mail", "api"}, words)
}
