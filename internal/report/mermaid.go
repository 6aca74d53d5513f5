package report

import (
	"fmt"
	"strings"

	"github.com/user/netrecon/internal/model"
)

// GenerateMermaidDiagram creates a Mermaid flowchart of a trace path. A
// trace that never reached its target ends in a dashed edge to it.
func GenerateMermaidDiagram(trace *model.TraceResult) string {
	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart LR\n")
	sb.WriteString("    Source[This host]:::source\n")

	prevNode := "Source"
	for i, hop := range trace.Hops {
		nodeID := fmt.Sprintf("H%d", hop.HopNum)
		last := i == len(trace.Hops)-1
		switch {
		case hop.Lost:
			fmt.Fprintf(&sb, "    %s[Hop %d\\n* * *]:::lost\n", nodeID, hop.HopNum)
		case last && trace.Reached:
			fmt.Fprintf(&sb, "    %s[%s\\n%s\\n%.1fms]:::target\n", nodeID, trace.Target, hop.IP, hop.LatencyMs)
		default:
			ip := hop.IP
			if hop.Hostname != "" && hop.Hostname != hop.IP {
				ip = fmt.Sprintf("%s\\n%s", shortenHostname(hop.Hostname), hop.IP)
			}
			fmt.Fprintf(&sb, "    %s[Hop %d\\n%s\\n%.1fms]\n", nodeID, hop.HopNum, ip, hop.LatencyMs)
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", prevNode, nodeID)
		prevNode = nodeID
	}

	if !trace.Reached {
		fmt.Fprintf(&sb, "    Target[%s\\n%s]:::target\n", trace.Target, trace.IP)
		fmt.Fprintf(&sb, "    %s -.-> Target\n", prevNode)
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef source fill:#90EE90\n")
	sb.WriteString("    classDef target fill:#87CEEB\n")
	sb.WriteString("    classDef lost fill:#FFB6C1,stroke:#FF0000\n")
	sb.WriteString("```\n")

	return sb.String()
}

// GenerateTraceComparison creates a Mermaid diagram of two traces to the same
// target. Hops absent from the older path are highlighted.
func GenerateTraceComparison(oldTrace, newTrace *model.TraceResult) string {
	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart TB\n")
	writePath(&sb, "Before", "O", oldTrace, nil)
	writePath(&sb, "After", "N", newTrace, oldTrace.Hops)
	sb.WriteString("    classDef new fill:#90EE90,stroke:#228B22\n")
	sb.WriteString("```\n")

	return sb.String()
}

func writePath(sb *strings.Builder, title, prefix string, trace *model.TraceResult, baseline []model.TraceHop) {
	fmt.Fprintf(sb, "    subgraph %s\n", title)
	sb.WriteString("    direction LR\n")
	prevNode := prefix + "Src"
	fmt.Fprintf(sb, "    %s((Start))\n", prevNode)
	for _, hop := range trace.Hops {
		nodeID := fmt.Sprintf("%s%d", prefix, hop.HopNum)
		switch {
		case hop.Lost:
			fmt.Fprintf(sb, "    %s[*]\n", nodeID)
		case baseline != nil && !containsHop(baseline, hop.IP):
			fmt.Fprintf(sb, "    %s[%s]:::new\n", nodeID, hop.IP)
		default:
			fmt.Fprintf(sb, "    %s[%s]\n", nodeID, hop.IP)
		}
		fmt.Fprintf(sb, "    %s --> %s\n", prevNode, nodeID)
		prevNode = nodeID
	}
	sb.WriteString("    end\n\n")
}

func shortenHostname(hostname string) string {
	if len(hostname) > 20 {
		parts := strings.Split(hostname, ".")
		if len(parts) > 2 {
			return parts[0] + "..."
		}
		return hostname[:17] + "..."
	}
	return hostname
}

func containsHop(hops []model.TraceHop, ip string) bool {
	for _, hop := range hops {
		if !hop.Lost && hop.IP == ip {
			return true
		}
	}
	return false
}
