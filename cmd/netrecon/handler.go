package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/probes"
	"github.com/user/netrecon/internal/report"
	"github.com/user/netrecon/internal/sigdb"
	"github.com/user/netrecon/internal/storage"
	"github.com/user/netrecon/internal/tui"
	"github.com/user/netrecon/internal/util"
)

const serializeError = "Serialize Error"

// progressMode selects how a run's progress events are shown.
type progressMode int

const (
	// progressSpinner drives a spinner from the phase markers.
	progressSpinner progressMode = iota
	// progressLines prints every free-text line as it arrives.
	progressLines
)

// newEngine wires the socket transport, the DNS resolver and the signature
// databases. dnsServer overrides the configured resolver when set.
func newEngine(dnsServer string) (*probes.Engine, *sigdb.DB, error) {
	db, err := sigdb.Load(sigdb.Options{OUIFile: cfg.OUIFile})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load signature data: %w", err)
	}
	if dnsServer == "" {
		dnsServer = cfg.DNSServer
	}
	resolver := probes.NewDNSResolver(dnsServer, cfg.Timeout)
	util.Debug("DNS queries go to %s", resolver.Server())
	return probes.NewEngine(probes.NewNetTransport(), resolver, db), db, nil
}

// baseScanConfig applies the loaded configuration to the engine defaults.
func baseScanConfig() model.ScanConfig {
	sc := model.DefaultScanConfig()
	sc.Timeout = cfg.Timeout
	sc.Concurrency = cfg.Concurrency
	sc.Rate = cfg.Rate
	sc.TTLDelta = cfg.TTLDelta
	sc.PingCount = cfg.PingCount
	sc.PingInterval = cfg.PingInterval
	sc.MaxHops = cfg.MaxHops
	sc.DNSServer = cfg.DNSServer
	return sc
}

// execute runs one scan on its own goroutine, shows its progress, then
// prints, saves and records the result.
func execute[T model.Result](cmd *cobra.Command, title string, mode progressMode,
	run func(ctx context.Context, rep *probes.Reporter) (T, error)) error {
	format, err := report.ParseFormat(reportFormat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	job := probes.Spawn(ctx, run)
	printedLines := false
	switch {
	case jsonOutput:
	case mode == progressLines:
		for e := range job.Events() {
			if e.Kind == probes.EventLine {
				fmt.Fprintln(out, e.Line)
			}
		}
		printedLines = true
	case isTerminal(out):
		interrupted, err := tui.NewProgress(job.Events(), title).Run()
		if err != nil {
			util.Warn("progress display failed: %v", err)
		}
		if interrupted {
			cancel()
		}
	}

	res, err := job.Wait()
	if err != nil {
		return err
	}

	if saveFile != "" {
		saveResult(out, res, saveFile)
	}
	switch {
	case jsonOutput:
		printJSON(out, res)
	case printedLines && format == report.FormatText:
	default:
		if err := report.Render(out, res, format); err != nil {
			return err
		}
	}
	recordRun(res)
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printJSON(w io.Writer, res model.Result) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		util.Error("failed to serialize result: %v", err)
		fmt.Fprintln(w, serializeError)
		return
	}
	fmt.Fprintln(w, string(data))
}

func saveResult(w io.Writer, res model.Result, path string) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		util.Error("failed to serialize result: %v", err)
		fmt.Fprintln(w, serializeError)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Fprintf(w, "Failed to save probe result: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Probe result saved to: %s\n", path)
}

// recordRun stores res in the run history. Failures only warn: the scan
// itself already succeeded.
func recordRun(res model.Result) {
	if noHistory || !cfg.SaveHistory {
		return
	}
	db, err := openHistory()
	if err != nil {
		util.Warn("run history unavailable: %v", err)
		return
	}
	defer db.Close()

	if _, err := storage.NewRunStorage(db).Save(res); err != nil {
		util.Warn("failed to record run %s: %v", res.Info().ProbeID, err)
		return
	}
	util.Debug("recorded run %s", res.Info().ProbeID)
}

func openHistory() (*storage.DB, error) {
	if err := util.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}
