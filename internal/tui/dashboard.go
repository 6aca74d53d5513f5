package tui

import (
	"fmt"
	"strings"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/storage"
)

const maxRecentRuns = 10

var dashboardKinds = []model.ScanKind{
	model.KindPortScan,
	model.KindHostScan,
	model.KindPing,
	model.KindTrace,
	model.KindDomainScan,
}

// DashboardData holds data for the dashboard view.
type DashboardData struct {
	RunCount      int
	HostCount     int
	OpenPortCount int
	RunsByKind    map[model.ScanKind]int
	Recent        []RunInfo
	TraceTargets  []string
}

// RunInfo is one stored run as listed on the dashboard.
type RunInfo struct {
	ProbeID string
	Kind    model.ScanKind
	Subject string
	Summary string
	Started string
}

// FetchDashboardData gathers the history statistics shown on the dashboard.
func FetchDashboardData(db *storage.DB) (*DashboardData, error) {
	data := &DashboardData{}
	runs := storage.NewRunStorage(db)

	var err error
	if data.RunCount, err = runs.Count(); err != nil {
		return nil, err
	}
	if data.RunsByKind, err = runs.CountByKind(); err != nil {
		return nil, err
	}

	recent, err := runs.List("", maxRecentRuns)
	if err != nil {
		return nil, err
	}
	for _, r := range recent {
		data.Recent = append(data.Recent, RunInfo{
			ProbeID: r.ProbeID,
			Kind:    r.Kind,
			Subject: r.Subject,
			Summary: r.Summary,
			Started: r.StartedAt.Local().Format("01-02 15:04:05"),
		})
	}

	scans := storage.NewScanStorage(db)
	if data.HostCount, err = scans.CountHosts(); err != nil {
		return nil, err
	}
	if data.OpenPortCount, err = scans.CountOpenPorts(); err != nil {
		return nil, err
	}

	if data.TraceTargets, err = storage.NewTraceStorage(db).GetTargets(); err != nil {
		return nil, err
	}
	return data, nil
}

// Dashboard is the history dashboard view.
type Dashboard struct {
	data   *DashboardData
	width  int
	height int
}

// NewDashboard creates a new dashboard.
func NewDashboard(data *DashboardData, width, height int) *Dashboard {
	return &Dashboard{
		data:   data,
		width:  width,
		height: height,
	}
}

// SetSize updates the dashboard size.
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	var sb strings.Builder

	sb.WriteString(HeaderStyle.Width(d.width).Render("netrecon history"))
	sb.WriteString("\n\n")

	sb.WriteString(d.renderStatsSection())
	sb.WriteString("\n")
	sb.WriteString(d.renderRecentSection())
	sb.WriteString("\n")
	if len(d.data.TraceTargets) > 0 {
		sb.WriteString(d.renderTracesSection())
		sb.WriteString("\n")
	}

	sb.WriteString(HelpStyle.Render("Press 'r' to refresh • 'q' to quit"))
	return sb.String()
}

func (d *Dashboard) sectionWidth() int {
	w := d.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

func (d *Dashboard) renderStatsSection() string {
	lines := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Runs:"), ValueStyle.Render(fmt.Sprintf("%d", d.data.RunCount))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Hosts seen:"), ValueStyle.Render(fmt.Sprintf("%d", d.data.HostCount))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Open ports:"), ValueStyle.Render(fmt.Sprintf("%d", d.data.OpenPortCount))),
		"",
	}
	for _, k := range dashboardKinds {
		n := d.data.RunsByKind[k]
		lines = append(lines, fmt.Sprintf("%s %s %d", LabelStyle.Render(string(k)), RenderBar(n, d.data.RunCount, 20), n))
	}

	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Statistics") + "\n" + strings.Join(lines, "\n"))
}

func (d *Dashboard) renderRecentSection() string {
	title := SectionTitleStyle.Render("Recent runs")
	if len(d.data.Recent) == 0 {
		return SectionStyle.Width(d.sectionWidth()).Render(
			title + "\n" + DimStyle.Render("No runs recorded yet"))
	}

	rows := []string{
		fmt.Sprintf("%-8s %-14s %-11s %-24s %s", "ID", "Started", "Kind", "Subject", "Summary"),
		strings.Repeat("─", 80),
	}
	for _, r := range d.data.Recent {
		subject := r.Subject
		if len(subject) > 24 {
			subject = subject[:21] + "..."
		}
		rows = append(rows, fmt.Sprintf("%-8s %-14s %-11s %-24s %s",
			r.ProbeID[:min(8, len(r.ProbeID))], r.Started, r.Kind, subject, r.Summary))
	}

	return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + strings.Join(rows, "\n"))
}

func (d *Dashboard) renderTracesSection() string {
	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Traced targets") + "\n" + strings.Join(d.data.TraceTargets, "\n"))
}
