package report

import (
	"fmt"
	"strings"

	"github.com/user/netrecon/internal/model"
)

// Markdown renders res as a markdown document.
func Markdown(res model.Result) string {
	var sb strings.Builder
	info := res.Info()

	fmt.Fprintf(&sb, "# %s: %s\n\n", kindTitle(info.Kind), res.Subject())
	fmt.Fprintf(&sb, "- Probe: `%s`\n", info.ProbeID)
	fmt.Fprintf(&sb, "- Started: %s\n", info.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "- Elapsed: %.1f ms\n", info.ElapsedMs)
	fmt.Fprintf(&sb, "- Summary: %s\n\n", res.Summary())

	switch r := res.(type) {
	case *model.PortScanResult:
		mdPortScan(&sb, r)
	case *model.HostScanResult:
		mdHostScan(&sb, r)
	case *model.PingStat:
		mdPing(&sb, r)
	case *model.TraceResult:
		mdTrace(&sb, r)
	case *model.DomainScanResult:
		mdDomainScan(&sb, r)
	}
	return sb.String()
}

func kindTitle(k model.ScanKind) string {
	switch k {
	case model.KindPortScan:
		return "Port scan"
	case model.KindHostScan:
		return "Host scan"
	case model.KindPing:
		return "Ping"
	case model.KindTrace:
		return "Traceroute"
	case model.KindDomainScan:
		return "Domain scan"
	}
	return string(k)
}

func row(sb *strings.Builder, cells ...string) {
	for i, c := range cells {
		cells[i] = strings.ReplaceAll(c, "|", "\\|")
	}
	fmt.Fprintf(sb, "| %s |\n", strings.Join(cells, " | "))
}

func header(sb *strings.Builder, cols ...string) {
	row(sb, cols...)
	sep := make([]string, len(cols))
	for i := range sep {
		sep[i] = "---"
	}
	fmt.Fprintf(sb, "|%s|\n", strings.Join(sep, "|"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func mdPortScan(sb *strings.Builder, r *model.PortScanResult) {
	for _, h := range r.Hosts {
		fmt.Fprintf(sb, "## %s\n\n", h.IP)
		if h.Hostname != "" {
			fmt.Fprintf(sb, "Hostname: %s\n\n", h.Hostname)
		}
		if h.OS != "" {
			fmt.Fprintf(sb, "OS guess: %s (ttl %d)\n\n", h.OS, h.TTL)
		}
		header(sb, "Port", "State", "Service", "Version")
		for _, p := range h.Ports {
			row(sb, fmt.Sprintf("%d/%s", p.Port, p.Protocol), string(p.State), orDash(p.Service), orDash(p.Version))
		}
		sb.WriteString("\n")
	}
}

func mdHostScan(sb *strings.Builder, r *model.HostScanResult) {
	header(sb, "IP", "MAC", "Vendor", "Hostname", "OS")
	for _, h := range r.Hosts {
		row(sb, h.IP, orDash(h.MAC), orDash(h.Vendor), orDash(h.Hostname), orDash(h.OS))
	}
	sb.WriteString("\n")
}

func mdPing(sb *strings.Builder, r *model.PingStat) {
	header(sb, "Seq", "Result", "TTL")
	for _, p := range r.Replies {
		if p.Lost {
			row(sb, fmt.Sprintf("%d", p.Seq), "timeout", "-")
			continue
		}
		row(sb, fmt.Sprintf("%d", p.Seq), fmt.Sprintf("%.3f ms", p.RTTMs), fmt.Sprintf("%d", p.TTL))
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Loss %.1f%%, min/avg/max/stddev %.3f/%.3f/%.3f/%.3f ms\n",
		r.LossPercent, r.MinMs, r.AvgMs, r.MaxMs, r.StdDevMs)
}

func mdTrace(sb *strings.Builder, r *model.TraceResult) {
	header(sb, "Hop", "Address", "Hostname", "RTT")
	for _, h := range r.Hops {
		if h.Lost {
			row(sb, fmt.Sprintf("%d", h.HopNum), "*", "-", "-")
			continue
		}
		row(sb, fmt.Sprintf("%d", h.HopNum), h.IP, orDash(h.Hostname), fmt.Sprintf("%.1f ms", h.LatencyMs))
	}
	sb.WriteString("\n## Path\n\n")
	sb.WriteString(GenerateMermaidDiagram(r))
}

func mdDomainScan(sb *strings.Builder, r *model.DomainScanResult) {
	header(sb, "Name", "Addresses", "CNAME")
	for _, e := range r.Entries {
		addrs := "-"
		if e.Resolved {
			addrs = strings.Join(e.Addresses, ", ")
		}
		row(sb, e.Name, addrs, orDash(e.CNAME))
	}
	if len(r.Records) > 0 {
		sb.WriteString("\n## Records\n\n")
		header(sb, "Type", "Name", "TTL", "Value")
		for _, rec := range r.Records {
			row(sb, rec.Type, rec.Name, fmt.Sprintf("%d", rec.TTL), rec.Value)
		}
	}
	sb.WriteString("\n")
}
