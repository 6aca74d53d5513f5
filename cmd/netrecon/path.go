package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/probes"
)

var (
	pingCount    int
	pingInterval string
	pingProtocol string
	pingPort     int

	traceMaxHops  int
	traceProtocol string
	traceNoLookup bool
)

var pingCmd = &cobra.Command{
	Use:   "ping <target>",
	Short: "Measure reachability and round-trip times",
	Long: `Send echo probes to a target and report loss and round-trip statistics.
With --protocol tcp each probe is a TCP connect to --port instead.

Examples:
  netrecon ping 1.1.1.1
  netrecon ping example.com --count 10 --interval 200ms
  netrecon ping example.com --protocol tcp --port 443`,
	Args: cobra.ExactArgs(1),
	RunE: runPing,
}

var traceCmd = &cobra.Command{
	Use:   "trace <target>",
	Short: "Trace the path to a target",
	Long: `Discover the routers between this host and a target with TTL-limited
probes.

Examples:
  netrecon trace example.com
  netrecon trace 8.8.8.8 --protocol udp --max-hops 20
  netrecon trace example.com --format markdown > path.md`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 0, "number of probes (default from config)")
	pingCmd.Flags().StringVarP(&pingInterval, "interval", "i", "", "wait between probes (default from config)")
	pingCmd.Flags().StringVar(&pingProtocol, "protocol", "icmp", "probe protocol (icmp, tcp)")
	pingCmd.Flags().IntVar(&pingPort, "port", 80, "destination port for tcp probes")

	traceCmd.Flags().IntVarP(&traceMaxHops, "max-hops", "m", 0, "maximum hops (default from config)")
	traceCmd.Flags().StringVar(&traceProtocol, "protocol", "icmp", "probe protocol (icmp, udp)")
	traceCmd.Flags().BoolVar(&traceNoLookup, "no-lookup", false, "skip reverse DNS of hops")
}

func runPing(cmd *cobra.Command, args []string) error {
	engine, _, err := newEngine("")
	if err != nil {
		return err
	}

	sc := baseScanConfig()
	sc.Targets = args
	sc.PingCount = intFlag(cmd, "count", sc.PingCount)
	if pingInterval != "" {
		if sc.PingInterval, err = parseDuration(pingInterval); err != nil {
			return err
		}
	}
	sc.PingProtocol = pingProtocol
	sc.PingPort = pingPort

	return execute(cmd, "Pinging", progressLines, func(ctx context.Context, rep *probes.Reporter) (*model.PingStat, error) {
		return engine.Ping(ctx, sc, rep)
	})
}

func runTrace(cmd *cobra.Command, args []string) error {
	engine, _, err := newEngine("")
	if err != nil {
		return err
	}

	sc := baseScanConfig()
	sc.Targets = args
	sc.MaxHops = intFlag(cmd, "max-hops", sc.MaxHops)
	sc.TraceProtocol = traceProtocol
	sc.ReverseLookup = !traceNoLookup

	return execute(cmd, "Tracing", progressLines, func(ctx context.Context, rep *probes.Reporter) (*model.TraceResult, error) {
		return engine.Trace(ctx, sc, rep)
	})
}
