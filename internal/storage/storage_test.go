package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netrecon/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Initialize(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func portScan(start time.Time, openPorts ...int) *model.PortScanResult {
	r := &model.PortScanResult{
		RunInfo:   model.NewRunInfo(model.KindPortScan),
		Technique: model.TechniqueConnect,
		Targets:   []string{"10.0.0.5"},
	}
	r.StartedAt = start
	hp := model.HostPorts{IP: "10.0.0.5", OS: "Linux/Unix", TTL: 57}
	for _, p := range openPorts {
		hp.Ports = append(hp.Ports, model.PortEntry{Port: p, Protocol: model.ProtocolTCP, State: model.StateOpen, Service: "http"})
	}
	hp.Ports = append(hp.Ports, model.PortEntry{Port: 9999, Protocol: model.ProtocolTCP, State: model.StateClosed})
	r.Hosts = []model.HostPorts{hp}
	return r
}

func TestInitializeCreatesFile(t *testing.T) {
	dir := t.TempDir()
	db, err := Initialize(dir)
	require.NoError(t, err)
	defer db.Close()
	assert.FileExists(t, filepath.Join(dir, FileName))

	// Opening twice keeps the schema.
	again, err := Initialize(dir)
	require.NoError(t, err)
	again.Close()
}

func TestRunRoundTrip(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunStorage(db)

	res := portScan(time.Now().Add(-time.Minute), 80, 443)
	res.ElapsedMs = 12.5
	id, err := runs.Save(res)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := runs.Get(res.ProbeID)
	require.NoError(t, err)
	assert.Equal(t, model.KindPortScan, got.Kind)
	assert.Equal(t, "10.0.0.5", got.Subject)
	assert.Equal(t, "1 hosts, 2 open ports", got.Summary)
	assert.InDelta(t, 12.5, got.ElapsedMs, 1e-9)

	decoded, err := got.Decode()
	require.NoError(t, err)
	ps, ok := decoded.(*model.PortScanResult)
	require.True(t, ok)
	assert.Equal(t, res.Hosts, ps.Hosts)

	byPrefix, err := runs.Get(res.ProbeID[:8])
	require.NoError(t, err)
	assert.Equal(t, got.ID, byPrefix.ID)

	_, err = runs.Get("does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndPrevious(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunStorage(db)
	base := time.Now().Add(-time.Hour)

	first := portScan(base, 22)
	second := portScan(base.Add(time.Minute), 22, 80)
	ping := &model.PingStat{RunInfo: model.NewRunInfo(model.KindPing), Target: "10.0.0.5", Sent: 4, Received: 3, LossPercent: 25}
	ping.StartedAt = base.Add(2 * time.Minute)

	for _, r := range []model.Result{first, second, ping} {
		_, err := runs.Save(r)
		require.NoError(t, err)
	}

	all, err := runs.List("", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ping.ProbeID, all[0].ProbeID)
	assert.Equal(t, "3/4 received, 25.0% loss", all[0].Summary)

	scans, err := runs.List(model.KindPortScan, 10)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, second.ProbeID, scans[0].ProbeID)

	prev, err := runs.Previous(&scans[0])
	require.NoError(t, err)
	assert.Equal(t, first.ProbeID, prev.ProbeID)

	_, err = runs.Previous(&scans[1])
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := runs.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestScanStorage(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunStorage(db)
	scans := NewScanStorage(db)

	_, err := runs.Save(portScan(time.Now().Add(-time.Minute), 22))
	require.NoError(t, err)
	_, err = runs.Save(portScan(time.Now(), 22, 80))
	require.NoError(t, err)

	hostScan := &model.HostScanResult{
		RunInfo: model.NewRunInfo(model.KindHostScan),
		Targets: []string{"10.0.0.0/24"},
		Hosts: []model.Host{
			{IP: "10.0.0.1", MAC: "00:50:56:aa:bb:cc", Vendor: "VMware, Inc."},
			{IP: "10.0.0.5"},
		},
	}
	_, err = runs.Save(hostScan)
	require.NoError(t, err)

	hosts, err := scans.CountHosts()
	require.NoError(t, err)
	assert.Equal(t, 2, hosts)

	open, err := scans.CountOpenPorts()
	require.NoError(t, err)
	assert.Equal(t, 2, open)

	sightings, err := scans.GetOpenPorts("10.0.0.5")
	require.NoError(t, err)
	require.Len(t, sightings, 3)
	assert.Equal(t, 22, sightings[0].Port)
	assert.Equal(t, 80, sightings[1].Port)
	assert.Equal(t, "http", sightings[0].Service)
}

func TestTraceStorage(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunStorage(db)
	traces := NewTraceStorage(db)

	tr := &model.TraceResult{
		RunInfo: model.NewRunInfo(model.KindTrace),
		Target:  "example.com",
		IP:      "93.184.216.34",
		MaxHops: 30,
		Reached: true,
		Hops: []model.TraceHop{
			{HopNum: 1, IP: "192.168.1.1", Hostname: "gw.lan", LatencyMs: 1.2},
			{HopNum: 2, Lost: true},
			{HopNum: 3, IP: "93.184.216.34", LatencyMs: 20.5},
		},
	}
	_, err := runs.Save(tr)
	require.NoError(t, err)

	hops, err := traces.GetHops(tr.ProbeID)
	require.NoError(t, err)
	assert.Equal(t, tr.Hops, hops)

	targets, err := traces.GetTargets()
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, targets)
}
