package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/netrecon/internal/util"
)

const version = "1.0.0"

var (
	cfgFile string
	cfg     *util.Config

	jsonOutput   bool
	saveFile     string
	noHistory    bool
	reportFormat string
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "netrecon",
	Short: "Network reconnaissance tool",
	Long: `netrecon probes networks and reports what it finds:
- TCP/UDP port scans with service and OS detection
- LAN host discovery via ARP or ICMP sweeps
- ICMP or TCP ping statistics
- ICMP or UDP traceroute with Mermaid path diagrams
- DNS subdomain enumeration

Results print as text, markdown or JSON and are kept in a local run history.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := util.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.netrecon/config.yaml)")
	flags.String("log-level", defaults.LogLevel,
		"log level (debug, info, warn, error)")
	flags.Duration("timeout", defaults.Timeout, "per-probe timeout")
	flags.Int("concurrency", defaults.Concurrency, "maximum probes in flight")
	flags.Int("rate", defaults.Rate, "maximum probes per second (0 = unlimited)")
	flags.BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	flags.StringVar(&saveFile, "save", "", "save the JSON result to this file")
	flags.BoolVar(&noHistory, "no-history", false, "do not record the run in the history database")
	flags.StringVar(&reportFormat, "format", "text", "report format (text, markdown)")

	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("timeout", flags.Lookup("timeout"))
	viper.BindPFlag("concurrency", flags.Lookup("concurrency"))
	viper.BindPFlag("rate", flags.Lookup("rate"))

	rootCmd.AddCommand(portCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(domainCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.AddCommand(completionCmd)
}

func initConfig() {
	var err error
	cfg, err = util.LoadConfig(viper.GetViper(), cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel, cfg.LogFile)
	util.WithFields(map[string]interface{}{
		"data_dir":    cfg.DataDir,
		"timeout":     cfg.Timeout.String(),
		"concurrency": cfg.Concurrency,
	}).Debug("configuration loaded")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("netrecon version %s\n", version)
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for netrecon.

To load completions:

Bash:
  $ source <(netrecon completion bash)

Zsh:
  $ source <(netrecon completion zsh)

Fish:
  $ netrecon completion fish | source

PowerShell:
  PS> netrecon completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}
