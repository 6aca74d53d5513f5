package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/probes"
)

var (
	portSpec      string
	portTop       int
	portTechnique string
	portService   bool
	portOS        bool
	portNoLookup  bool

	hostTechnique string
	hostOS        bool
	hostNoLookup  bool
)

var portCmd = &cobra.Command{
	Use:   "port <target>...",
	Short: "Scan TCP or UDP ports",
	Long: `Scan ports on one or more targets. Targets may be addresses, CIDR
ranges or hostnames.

Examples:
  netrecon port 192.168.1.10 --ports 22,80,443
  netrecon port 10.0.0.0/28 --top 20 --service --os
  netrecon port scanme.example.org --technique syn --ports 1-1024
  netrecon port 192.168.1.1 --technique udp --ports 53,123,161`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPort,
}

var hostCmd = &cobra.Command{
	Use:   "host <range>...",
	Short: "Discover live hosts",
	Long: `Discover live hosts with an ARP sweep (local links) or an ICMP echo
sweep. ARP falls back to ICMP for targets that are not on a local link.

Examples:
  netrecon host 192.168.1.0/24
  netrecon host 10.0.0.0/24 --technique icmp-sweep --os`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHost,
}

func init() {
	portCmd.Flags().StringVarP(&portSpec, "ports", "p", "",
		"ports to scan, e.g. 22,80,8000-8100")
	portCmd.Flags().IntVar(&portTop, "top", 0,
		"scan the N most common ports (used when --ports is empty)")
	portCmd.Flags().StringVarP(&portTechnique, "technique", "t", string(model.TechniqueConnect),
		"scan technique (connect, syn, udp)")
	portCmd.Flags().BoolVar(&portService, "service", false, "detect services on open ports")
	portCmd.Flags().BoolVar(&portOS, "os", false, "guess the operating system from reply TTLs")
	portCmd.Flags().BoolVar(&portNoLookup, "no-lookup", false, "skip reverse DNS of targets")

	hostCmd.Flags().StringVarP(&hostTechnique, "technique", "t", string(model.TechniqueARPSweep),
		"sweep technique (arp-sweep, icmp-sweep)")
	hostCmd.Flags().BoolVar(&hostOS, "os", false, "guess the operating system from reply TTLs")
	hostCmd.Flags().BoolVar(&hostNoLookup, "no-lookup", false, "skip reverse DNS of discovered hosts")
}

// selectPorts resolves --ports and --top into a port list.
func selectPorts() ([]int, error) {
	if portSpec != "" {
		return model.ParsePortSpec(portSpec)
	}
	return model.TopPorts(portTop), nil
}

func runPort(cmd *cobra.Command, args []string) error {
	ports, err := selectPorts()
	if err != nil {
		return err
	}
	engine, _, err := newEngine("")
	if err != nil {
		return err
	}

	sc := baseScanConfig()
	sc.Targets = args
	sc.Ports = ports
	sc.Technique = model.Technique(portTechnique)
	sc.ServiceDetection = portService
	sc.OSDetection = portOS
	sc.ReverseLookup = !portNoLookup

	title := fmt.Sprintf("Scanning %d ports", len(ports))
	return execute(cmd, title, progressSpinner, func(ctx context.Context, rep *probes.Reporter) (*model.PortScanResult, error) {
		return engine.PortScan(ctx, sc, rep)
	})
}

func runHost(cmd *cobra.Command, args []string) error {
	engine, _, err := newEngine("")
	if err != nil {
		return err
	}

	sc := baseScanConfig()
	sc.Targets = args
	sc.Technique = model.Technique(hostTechnique)
	sc.OSDetection = hostOS
	sc.ReverseLookup = !hostNoLookup

	return execute(cmd, "Discovering hosts", progressSpinner, func(ctx context.Context, rep *probes.Reporter) (*model.HostScanResult, error) {
		return engine.HostScan(ctx, sc, rep)
	})
}
