package main

import (
	"github.com/spf13/cobra"

	"github.com/user/netrecon/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the history dashboard",
	Long: `Launch an interactive terminal dashboard over the run history.

The dashboard shows:
- Run, host and open port totals
- Runs per scan kind
- The most recent runs
- Traced targets

Press 'r' to refresh, 'q' to quit.`,
	RunE: runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	return tui.NewApp(db).Run()
}
