package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/probes"
	"github.com/user/netrecon/internal/report"
	"github.com/user/netrecon/internal/storage"
)

var (
	historyKind  string
	historyLimit int
	historySince string
	historyDiff  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long: `List the runs recorded in the history database, newest first.

Examples:
  netrecon history
  netrecon history --kind traceroute --since 7d
  netrecon history show 3f2a --diff
  netrecon history ports 192.168.1.10`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <probe-id>",
	Short: "Re-render a recorded run",
	Long: `Render a recorded run again. A unique prefix of the probe id is enough.
With --diff the run is compared with the previous run of the same kind and
subject.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryShow,
}

var historyHopsCmd = &cobra.Command{
	Use:   "hops <probe-id>",
	Short: "Print the hops of a recorded trace",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryHops,
}

var historyPortsCmd = &cobra.Command{
	Use:   "ports <ip>",
	Short: "List every open port recorded for a host",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryPorts,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history totals",
	Args:  cobra.NoArgs,
	RunE:  runHistoryStats,
}

func init() {
	historyCmd.Flags().StringVar(&historyKind, "kind", "",
		"only list runs of this kind (portscan, hostscan, ping, traceroute, domainscan)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to list")
	historyCmd.Flags().StringVar(&historySince, "since", "",
		"only list runs started within this period (e.g. 1h, 7d, 2w)")
	historyShowCmd.Flags().BoolVar(&historyDiff, "diff", false,
		"compare with the previous run of the same kind and subject")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyHopsCmd)
	historyCmd.AddCommand(historyPortsCmd)
	historyCmd.AddCommand(historyStatsCmd)
}

// withHistory opens the history database for the duration of fn.
func withHistory(fn func(db *storage.DB) error) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	var since time.Time
	if historySince != "" {
		d, err := parseDuration(historySince)
		if err != nil {
			return err
		}
		since = time.Now().Add(-d)
	}

	return withHistory(func(db *storage.DB) error {
		runs, err := storage.NewRunStorage(db).List(model.ScanKind(historyKind), historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		header := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
		fmt.Fprintln(out, header.Render(fmt.Sprintf("%-10s %-19s %-11s %-28s %s", "ID", "STARTED", "KIND", "SUBJECT", "SUMMARY")))
		shown := 0
		for _, r := range runs {
			if r.StartedAt.Before(since) {
				continue
			}
			fmt.Fprintf(out, "%-10s %-19s %-11s %-28s %s\n",
				shortID(r.ProbeID), r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Kind, clip(r.Subject, 28), r.Summary)
			shown++
		}
		if shown == 0 {
			fmt.Fprintln(out, "No runs recorded")
		}
		return nil
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(reportFormat)
	if err != nil {
		return err
	}

	return withHistory(func(db *storage.DB) error {
		runs := storage.NewRunStorage(db)
		run, err := runs.Get(args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no run matches %q", args[0])
		}
		if err != nil {
			return err
		}
		res, err := run.Decode()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			printJSON(out, res)
		} else if err := report.Render(out, res, format); err != nil {
			return err
		}
		if saveFile != "" {
			saveResult(out, res, saveFile)
		}

		if !historyDiff {
			return nil
		}
		prev, err := runs.Previous(run)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintln(out, "\nNo earlier run of this kind and subject")
			return nil
		}
		if err != nil {
			return err
		}
		prevRes, err := prev.Decode()
		if err != nil {
			return err
		}
		if diff := report.Compare(prevRes, res, format); diff != "" {
			fmt.Fprintln(out)
			fmt.Fprint(out, diff)
		} else {
			fmt.Fprintf(out, "\nNo comparison available for %s runs\n", run.Kind)
		}
		return nil
	})
}

func runHistoryHops(cmd *cobra.Command, args []string) error {
	return withHistory(func(db *storage.DB) error {
		run, err := storage.NewRunStorage(db).Get(args[0])
		if err != nil {
			return err
		}
		if run.Kind != model.KindTrace {
			return fmt.Errorf("run %s is a %s, not a traceroute", shortID(run.ProbeID), run.Kind)
		}
		hops, err := storage.NewTraceStorage(db).GetHops(run.ProbeID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "traceroute to %s (%s)\n", run.Subject, run.StartedAt.Local().Format("2006-01-02 15:04:05"))
		for _, h := range hops {
			fmt.Fprintln(out, probes.FormatHop(h))
		}
		return nil
	})
}

func runHistoryPorts(cmd *cobra.Command, args []string) error {
	return withHistory(func(db *storage.DB) error {
		sightings, err := storage.NewScanStorage(db).GetOpenPorts(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(sightings) == 0 {
			fmt.Fprintf(out, "No open ports recorded for %s\n", args[0])
			return nil
		}
		for _, s := range sightings {
			fmt.Fprintf(out, "%-10s %5d/%-3s %-12s %s\n", shortID(s.ProbeID), s.Port, s.Proto, s.Service, s.Version)
		}
		return nil
	})
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Width(16)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86"))

	return withHistory(func(db *storage.DB) error {
		runs := storage.NewRunStorage(db)
		scans := storage.NewScanStorage(db)

		total, err := runs.Count()
		if err != nil {
			return err
		}
		byKind, err := runs.CountByKind()
		if err != nil {
			return err
		}
		hosts, err := scans.CountHosts()
		if err != nil {
			return err
		}
		ports, err := scans.CountOpenPorts()
		if err != nil {
			return err
		}
		targets, err := storage.NewTraceStorage(db).GetTargets()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		line := func(label string, value any) {
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render(label), valueStyle.Render(fmt.Sprint(value)))
		}
		fmt.Fprintln(out, titleStyle.Render("netrecon history"))
		line("Runs:", total)
		for _, k := range []model.ScanKind{model.KindPortScan, model.KindHostScan, model.KindPing, model.KindTrace, model.KindDomainScan} {
			line("  "+string(k)+":", byKind[k])
		}
		line("Hosts seen:", hosts)
		line("Open ports:", ports)
		line("Traced targets:", len(targets))
		return nil
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
