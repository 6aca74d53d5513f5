// Package report renders scan results for people: plain terminal text and
// markdown with Mermaid diagrams.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/user/netrecon/internal/model"
)

// Format selects how a result is rendered.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// Render writes res to w in the given format.
func Render(w io.Writer, res model.Result, format Format) error {
	var out string
	if format == FormatMarkdown {
		out = Markdown(res)
	} else {
		out = Text(res)
	}
	_, err := io.WriteString(w, out)
	return err
}

// Text renders res for a terminal.
func Text(res model.Result) string {
	var sb strings.Builder
	switch r := res.(type) {
	case *model.PortScanResult:
		textPortScan(&sb, r)
	case *model.HostScanResult:
		textHostScan(&sb, r)
	case *model.PingStat:
		textPing(&sb, r)
	case *model.TraceResult:
		textTrace(&sb, r)
	case *model.DomainScanResult:
		textDomainScan(&sb, r)
	}
	info := res.Info()
	fmt.Fprintf(&sb, "\n%s\n", dimStyle.Render(fmt.Sprintf("%s · probe %s · %.1f ms",
		res.Summary(), info.ProbeID, info.ElapsedMs)))
	return sb.String()
}

func heading(sb *strings.Builder, title string) {
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n")
}

func field(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "  %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func textPortScan(sb *strings.Builder, r *model.PortScanResult) {
	heading(sb, fmt.Sprintf("Port scan (%s)", r.Technique))
	for _, h := range r.Hosts {
		sb.WriteString("\n")
		name := h.IP
		if h.Hostname != "" {
			name = fmt.Sprintf("%s (%s)", h.Hostname, h.IP)
		}
		heading(sb, "Host "+name)
		if h.OS != "" {
			field(sb, "OS", fmt.Sprintf("%s (ttl %d)", h.OS, h.TTL))
		}
		fmt.Fprintf(sb, "  %s\n", labelStyle.Render(fmt.Sprintf("%-10s %-14s %-12s %s", "PORT", "STATE", "SERVICE", "VERSION")))
		for _, p := range h.Ports {
			port := fmt.Sprintf("%d/%s", p.Port, p.Protocol)
			state := stateStyle(p.State).Render(fmt.Sprintf("%-14s", p.State))
			line := fmt.Sprintf("  %-10s %s %-12s %s", port, state, p.Service, p.Version)
			sb.WriteString(strings.TrimRight(line, " "))
			sb.WriteString("\n")
			if p.Banner != "" && p.Version == "" {
				fmt.Fprintf(sb, "             %s\n", dimStyle.Render(p.Banner))
			}
		}
	}
}

func textHostScan(sb *strings.Builder, r *model.HostScanResult) {
	heading(sb, fmt.Sprintf("Host scan (%s) %s", r.Technique, strings.Join(r.Targets, ", ")))
	if len(r.Hosts) == 0 {
		sb.WriteString(dimStyle.Render("  no hosts responded"))
		sb.WriteString("\n")
		return
	}
	fmt.Fprintf(sb, "  %s\n", labelStyle.Render(fmt.Sprintf("%-16s %-18s %-24s %-28s %s", "IP", "MAC", "VENDOR", "HOSTNAME", "OS")))
	for _, h := range r.Hosts {
		line := fmt.Sprintf("  %-16s %-18s %-24s %-28s %s", h.IP, h.MAC, truncate(h.Vendor, 24), truncate(h.Hostname, 28), h.OS)
		sb.WriteString(strings.TrimRight(line, " "))
		sb.WriteString("\n")
	}
}

func textPing(sb *strings.Builder, r *model.PingStat) {
	heading(sb, fmt.Sprintf("Ping %s (%s) over %s", r.Target, r.IP, r.Protocol))
	field(sb, "Sent", fmt.Sprintf("%d", r.Sent))
	field(sb, "Received", fmt.Sprintf("%d", r.Received))
	field(sb, "Loss", fmt.Sprintf("%.1f%%", r.LossPercent))
	if r.Received > 0 {
		field(sb, "RTT", fmt.Sprintf("min %.3f / avg %.3f / max %.3f / stddev %.3f ms",
			r.MinMs, r.AvgMs, r.MaxMs, r.StdDevMs))
	}
}

func textTrace(sb *strings.Builder, r *model.TraceResult) {
	heading(sb, fmt.Sprintf("Traceroute to %s (%s) over %s", r.Target, r.IP, r.Protocol))
	for _, h := range r.Hops {
		if h.Lost {
			fmt.Fprintf(sb, "  %2d  %s\n", h.HopNum, dimStyle.Render("*"))
			continue
		}
		name := h.IP
		if h.Hostname != "" {
			name = fmt.Sprintf("%s (%s)", h.Hostname, h.IP)
		}
		fmt.Fprintf(sb, "  %2d  %s  %s\n", h.HopNum, valueStyle.Render(name), labelStyle.Render(fmt.Sprintf("%.3f ms", h.LatencyMs)))
	}
	if !r.Reached {
		fmt.Fprintf(sb, "  %s\n", filteredStyle.Render(fmt.Sprintf("target not reached within %d hops", r.MaxHops)))
	}
}

func textDomainScan(sb *strings.Builder, r *model.DomainScanResult) {
	heading(sb, "Domain scan "+r.Domain)
	for _, e := range r.Entries {
		if !e.Resolved {
			fmt.Fprintf(sb, "  %-40s %s\n", e.Name, dimStyle.Render("no record"))
			continue
		}
		value := strings.Join(e.Addresses, ", ")
		if e.CNAME != "" {
			value = fmt.Sprintf("%s -> %s", e.CNAME, value)
		}
		fmt.Fprintf(sb, "  %-40s %s\n", e.Name, valueStyle.Render(value))
	}
	if len(r.Records) > 0 {
		sb.WriteString("\n")
		heading(sb, "Records")
		for _, rec := range r.Records {
			fmt.Fprintf(sb, "  %-6s %-30s %6d  %s\n", rec.Type, rec.Name, rec.TTL, rec.Value)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
