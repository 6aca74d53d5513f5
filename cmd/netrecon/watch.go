package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/probes"
	"github.com/user/netrecon/internal/report"
	"github.com/user/netrecon/internal/schedule"
)

var (
	watchMode  string
	watchEvery time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <target>...",
	Short: "Repeat a scan and report what changed",
	Long: `Run a traceroute, ping or port scan at a fixed interval until
interrupted. Every run is recorded in the history and compared with the
previous run of the same target. Send SIGHUP to run every scan immediately.

Examples:
  netrecon watch example.com --every 5m
  netrecon watch 192.168.1.10 --mode port --ports 22,80,443 --every 1m
  netrecon watch 1.1.1.1 8.8.8.8 --mode ping --every 30s`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchMode, "mode", "trace", "scan to repeat (trace, ping, port)")
	watchCmd.Flags().DurationVar(&watchEvery, "every", 5*time.Minute, "interval between runs")
	watchCmd.Flags().StringVarP(&portSpec, "ports", "p", "", "ports for --mode port")
	watchCmd.Flags().IntVar(&portTop, "top", 0, "scan the N most common ports for --mode port")
}

// watcher repeats one scan and prints each result against the previous one.
type watcher struct {
	mu   *sync.Mutex
	out  io.Writer
	scan func(ctx context.Context) (model.Result, error)
	prev model.Result
}

func (w *watcher) run(ctx context.Context) error {
	res, err := w.scan(ctx)
	if err != nil {
		return err
	}
	recordRun(res)

	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "[%s] %s %s: %s\n", time.Now().Format("15:04:05"),
		res.Info().Kind, res.Subject(), res.Summary())
	if w.prev != nil {
		fmt.Fprint(w.out, report.Compare(w.prev, res, report.FormatText))
	}
	w.prev = res
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchEvery <= 0 {
		return fmt.Errorf("--every must be positive")
	}
	engine, _, err := newEngine("")
	if err != nil {
		return err
	}

	sc := baseScanConfig()
	var groups [][]string
	switch watchMode {
	case "trace", "ping":
		for _, t := range args {
			groups = append(groups, []string{t})
		}
	case "port":
		if sc.Ports, err = selectPorts(); err != nil {
			return err
		}
		groups = [][]string{args}
	default:
		return fmt.Errorf("unknown watch mode %q", watchMode)
	}

	// Fail fast on bad input instead of once per interval.
	for _, targets := range groups {
		check := sc
		check.Targets = targets
		if err := check.Validate(watchKind(watchMode)); err != nil {
			return err
		}
	}

	mu := &sync.Mutex{}
	sched := schedule.NewScheduler(time.Second)
	for _, targets := range groups {
		runCfg := sc
		runCfg.Targets = targets
		w := &watcher{mu: mu, out: cmd.OutOrStdout(), scan: watchScan(engine, watchMode, runCfg)}
		sched.AddJob(&schedule.Job{
			Name:     fmt.Sprintf("%s %v", watchMode, targets),
			Interval: watchEvery,
			Run:      w.run,
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go rerunOn(ctx, sched, hup)
	sched.Run(ctx)

	for _, st := range sched.Statuses() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d runs, %d failed\n", st.Name, st.Runs, st.ErrorCount)
	}
	return nil
}

// rerunOn makes every job due whenever sig fires, until ctx ends.
func rerunOn(ctx context.Context, sched *schedule.Scheduler, sig <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			for _, st := range sched.Statuses() {
				sched.Trigger(st.Name)
			}
		}
	}
}

func watchKind(mode string) model.ScanKind {
	switch mode {
	case "ping":
		return model.KindPing
	case "port":
		return model.KindPortScan
	}
	return model.KindTrace
}

func watchScan(engine *probes.Engine, mode string, sc model.ScanConfig) func(ctx context.Context) (model.Result, error) {
	return func(ctx context.Context) (model.Result, error) {
		switch mode {
		case "ping":
			return engine.Ping(ctx, sc, nil)
		case "port":
			return engine.PortScan(ctx, sc, nil)
		}
		return engine.Trace(ctx, sc, nil)
	}
}
