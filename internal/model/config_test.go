package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netrecon/internal/scanerr"
)

func TestParsePortSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []int
		wantErr bool
	}{
		{name: "single", spec: "80", want: []int{80}},
		{name: "list", spec: "443,22,80", want: []int{22, 80, 443}},
		{name: "range", spec: "20-23", want: []int{20, 21, 22, 23}},
		{name: "mixed with duplicates", spec: "22, 20-23,80", want: []int{20, 21, 22, 23, 80}},
		{name: "empty", spec: "", wantErr: true},
		{name: "empty token", spec: "22,,80", wantErr: true},
		{name: "zero", spec: "0", wantErr: true},
		{name: "too large", spec: "65536", wantErr: true},
		{name: "reversed range", spec: "100-10", wantErr: true},
		{name: "not a number", spec: "http", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePortSpec(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, scanerr.IsConfig(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		target      string
		allowRanges bool
		ok          bool
	}{
		{"192.168.1.10", false, true},
		{"192.168.1.0/24", true, true},
		{"192.168.1.0/24", false, false},
		{"10.0.0.0/8", true, false},
		{"10.0.0.0/33", true, false},
		{"example.com", false, true},
		{"::1", false, false},
		{"", false, false},
		{"bad host:name", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			err := ValidateTarget(tt.target, tt.allowRanges)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, scanerr.IsConfig(err), "got %v", err)
			}
		})
	}
}

func TestValidatePortScan(t *testing.T) {
	base := DefaultScanConfig()
	base.Targets = []string{"127.0.0.1"}
	base.Ports = []int{22, 80}

	ok := base
	assert.NoError(t, ok.Validate(KindPortScan))

	noPorts := base
	noPorts.Ports = nil
	assert.True(t, scanerr.IsConfig(noPorts.Validate(KindPortScan)))

	zeroConc := base
	zeroConc.Concurrency = 0
	assert.True(t, scanerr.IsConfig(zeroConc.Validate(KindPortScan)))

	sweep := base
	sweep.Technique = TechniqueARPSweep
	assert.True(t, scanerr.IsConfig(sweep.Validate(KindPortScan)))

	badTarget := base
	badTarget.Targets = []string{"300.1.1.1/24"}
	assert.Equal(t, scanerr.CodeTargetInvalid, scanerr.CodeOf(badTarget.Validate(KindPortScan)))
}

func TestValidatePingAndTrace(t *testing.T) {
	cfg := DefaultScanConfig()
	cfg.Targets = []string{"example.com"}
	require.NoError(t, cfg.Validate(KindPing))
	require.NoError(t, cfg.Validate(KindTrace))

	cfg.PingCount = 0
	assert.Error(t, cfg.Validate(KindPing))

	cfg = DefaultScanConfig()
	cfg.Targets = []string{"example.com"}
	cfg.PingProtocol = "tcp"
	cfg.PingPort = 0
	assert.Error(t, cfg.Validate(KindPing))

	cfg = DefaultScanConfig()
	cfg.Targets = []string{"example.com"}
	cfg.MaxHops = 0
	assert.Error(t, cfg.Validate(KindTrace))

	cfg.MaxHops = 10
	cfg.TraceProtocol = "tcp"
	assert.Error(t, cfg.Validate(KindTrace))

	cfg = DefaultScanConfig()
	cfg.Targets = []string{"10.0.0.0/24"}
	assert.Error(t, cfg.Validate(KindPing))
}

func TestValidateDomainScan(t *testing.T) {
	cfg := DefaultScanConfig()
	cfg.Domain = "example.com"
	cfg.Subdomains = []string{"www"}
	assert.NoError(t, cfg.Validate(KindDomainScan))

	cfg.DNSServer = "8.8.8.8"
	assert.Error(t, cfg.Validate(KindDomainScan))

	cfg.DNSServer = "8.8.8.8:53"
	cfg.Domain = ""
	assert.Error(t, cfg.Validate(KindDomainScan))

	cfg.Domain = "example.com"
	cfg.Subdomains = nil
	assert.Error(t, cfg.Validate(KindDomainScan))
	cfg.WithRecordSet = true
	assert.NoError(t, cfg.Validate(KindDomainScan))
}

func TestTopPorts(t *testing.T) {
	assert.Equal(t, []int{21, 22, 23}, TopPorts(3))
	assert.Len(t, TopPorts(0), 50)
	assert.Len(t, TopPorts(1000), 50)
}

func TestRunInfo(t *testing.T) {
	r := NewRunInfo(KindPing)
	assert.NotEmpty(t, r.ProbeID)
	assert.NotEqual(t, r.ProbeID, NewRunInfo(KindPing).ProbeID)
	time.Sleep(time.Millisecond)
	r.Finish()
	assert.Greater(t, r.ElapsedMs, 0.0)
	assert.Equal(t, 1.5, DurationMs(1500*time.Microsecond))
}
