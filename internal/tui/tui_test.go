package tui

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/probes"
	"github.com/user/netrecon/internal/storage"
)

func TestProgressModelTracksPhases(t *testing.T) {
	events := make(chan probes.Event)
	m := newProgressModel(events, "Starting")
	assert.Equal(t, "Starting", m.label())

	step := func(e probes.Event) {
		next, _ := m.Update(eventMsg(e))
		m = next.(progressModel)
	}

	step(probes.Event{Kind: probes.EventStart, Phase: probes.PhasePortScan})
	assert.Equal(t, "Scanning ports", m.label())

	step(probes.Event{Kind: probes.EventStart, Phase: probes.PhaseServiceDetection})
	assert.Equal(t, "Detecting services", m.label())

	step(probes.Event{Kind: probes.EventEnd, Phase: probes.PhaseServiceDetection})
	assert.Equal(t, "Scanning ports", m.label())

	for i := 0; i < recentLines+2; i++ {
		step(probes.Event{Kind: probes.EventLine, Line: "line"})
	}
	assert.Len(t, m.lines, recentLines)
	assert.Contains(t, m.View(), "Scanning ports...")

	next, cmd := m.Update(streamClosedMsg{})
	m = next.(progressModel)
	assert.True(t, m.done)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestWaitForEventReportsClose(t *testing.T) {
	events := make(chan probes.Event, 1)
	events <- probes.Event{Kind: probes.EventLine, Line: "hello"}
	close(events)

	msg := waitForEvent(events)()
	assert.Equal(t, eventMsg(probes.Event{Kind: probes.EventLine, Line: "hello"}), msg)
	assert.Equal(t, streamClosedMsg{}, waitForEvent(events)())
}

func TestDashboardData(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), storage.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	scan := &model.PortScanResult{
		RunInfo:   model.NewRunInfo(model.KindPortScan),
		Technique: model.TechniqueConnect,
		Targets:   []string{"10.0.0.5"},
		Hosts: []model.HostPorts{{
			IP:    "10.0.0.5",
			Ports: []model.PortEntry{{Port: 22, Protocol: model.ProtocolTCP, State: model.StateOpen}},
		}},
	}
	trace := &model.TraceResult{
		RunInfo: model.NewRunInfo(model.KindTrace),
		Target:  "example.com",
		Reached: true,
		Hops:    []model.TraceHop{{HopNum: 1, IP: "93.184.216.34", LatencyMs: 4}},
	}
	runs := storage.NewRunStorage(db)
	for _, r := range []model.Result{scan, trace} {
		_, err := runs.Save(r)
		require.NoError(t, err)
	}

	data, err := FetchDashboardData(db)
	require.NoError(t, err)
	assert.Equal(t, 2, data.RunCount)
	assert.Equal(t, 1, data.HostCount)
	assert.Equal(t, 1, data.OpenPortCount)
	assert.Equal(t, 1, data.RunsByKind[model.KindTrace])
	assert.Equal(t, []string{"example.com"}, data.TraceTargets)
	require.Len(t, data.Recent, 2)

	view := NewDashboard(data, 100, 40).View()
	assert.Contains(t, view, "Recent runs")
	assert.Contains(t, view, "1 hosts, 1 open ports")
	assert.Contains(t, view, "example.com")
}

func TestDashboardEmpty(t *testing.T) {
	view := NewDashboard(&DashboardData{}, 80, 24).View()
	assert.Contains(t, view, "No runs recorded yet")
	assert.NotContains(t, view, "Traced targets")
}
