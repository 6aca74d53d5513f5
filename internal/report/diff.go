package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/user/netrecon/internal/model"
)

// TraceChange represents a traceroute path change between two runs.
type TraceChange struct {
	Target  string
	OldHops []string
	NewHops []string
	Added   []string
	Removed []string
}

// PortChange represents a port state change between two runs.
type PortChange struct {
	Host     string
	Port     int
	Protocol model.Protocol
	OldState model.PortState
	NewState model.PortState
}

// DiffTraces compares the responding hop addresses of two traces. It returns
// nil when the paths are identical.
func DiffTraces(prev, curr *model.TraceResult) *TraceChange {
	prevHops := getHopIPs(prev.Hops)
	currHops := getHopIPs(curr.Hops)
	if equalHops(prevHops, currHops) {
		return nil
	}
	added, removed := diffHops(prevHops, currHops)
	return &TraceChange{
		Target:  curr.Target,
		OldHops: prevHops,
		NewHops: currHops,
		Added:   added,
		Removed: removed,
	}
}

// DiffPortScans lists every (host, port) whose state differs between two
// port scans. A port missing from one side counts as unscanned ("").
func DiffPortScans(prev, curr *model.PortScanResult) []PortChange {
	type key struct {
		host  string
		port  int
		proto model.Protocol
	}
	states := make(map[key][2]model.PortState)
	collect := func(r *model.PortScanResult, side int) {
		for _, h := range r.Hosts {
			for _, p := range h.Ports {
				k := key{h.IP, p.Port, p.Protocol}
				s := states[k]
				s[side] = p.State
				states[k] = s
			}
		}
	}
	collect(prev, 0)
	collect(curr, 1)

	var changes []PortChange
	for k, s := range states {
		if s[0] == s[1] {
			continue
		}
		changes = append(changes, PortChange{
			Host: k.host, Port: k.port, Protocol: k.proto,
			OldState: s[0], NewState: s[1],
		})
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Host != changes[j].Host {
			return changes[i].Host < changes[j].Host
		}
		return changes[i].Port < changes[j].Port
	})
	return changes
}

// Compare describes what changed between two runs of the same kind and
// subject. Kinds without a comparison yield "".
func Compare(prev, curr model.Result, format Format) string {
	var sb strings.Builder
	switch c := curr.(type) {
	case *model.TraceResult:
		p, ok := prev.(*model.TraceResult)
		if !ok {
			return ""
		}
		change := DiffTraces(p, c)
		if change == nil {
			return "Path unchanged since " + p.ProbeID + "\n"
		}
		fmt.Fprintf(&sb, "Path changed since %s\n", p.ProbeID)
		fmt.Fprintf(&sb, "  added:   %s\n", orDash(strings.Join(change.Added, ", ")))
		fmt.Fprintf(&sb, "  removed: %s\n", orDash(strings.Join(change.Removed, ", ")))
		if format == FormatMarkdown {
			sb.WriteString("\n")
			sb.WriteString(GenerateTraceComparison(p, c))
		}
	case *model.PortScanResult:
		p, ok := prev.(*model.PortScanResult)
		if !ok {
			return ""
		}
		changes := DiffPortScans(p, c)
		if len(changes) == 0 {
			return "Ports unchanged since " + p.ProbeID + "\n"
		}
		fmt.Fprintf(&sb, "Port changes since %s\n", p.ProbeID)
		for _, ch := range changes {
			fmt.Fprintf(&sb, "  %s %d/%s: %s -> %s\n", ch.Host, ch.Port, ch.Protocol,
				orDash(string(ch.OldState)), orDash(string(ch.NewState)))
		}
	}
	return sb.String()
}

func getHopIPs(hops []model.TraceHop) []string {
	ips := make([]string, 0, len(hops))
	for _, hop := range hops {
		if !hop.Lost && hop.IP != "" {
			ips = append(ips, hop.IP)
		}
	}
	return ips
}

func equalHops(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func diffHops(old, new []string) (added, removed []string) {
	oldSet := make(map[string]bool)
	newSet := make(map[string]bool)

	for _, h := range old {
		oldSet[h] = true
	}
	for _, h := range new {
		newSet[h] = true
	}

	for _, h := range new {
		if !oldSet[h] {
			added = append(added, h)
		}
	}
	for _, h := range old {
		if !newSet[h] {
			removed = append(removed, h)
		}
	}

	return
}
