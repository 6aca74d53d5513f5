package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/probes"
	"github.com/user/netrecon/internal/sigdb"
)

var (
	domainWordlist   string
	domainSubdomains []string
	domainRecords    bool
	domainDNSServer  string
)

var domainCmd = &cobra.Command{
	Use:   "domain <domain>",
	Short: "Enumerate subdomains",
	Long: `Resolve candidate subdomains of a domain. Candidates come from
--subdomains, a --wordlist file, or the built-in wordlist. Use "@" in
--subdomains for the domain itself.

Examples:
  netrecon domain example.com
  netrecon domain example.com --subdomains www,mail,@ --records
  netrecon domain example.com --wordlist ./words.txt --dns-server 1.1.1.1:53`,
	Args: cobra.ExactArgs(1),
	RunE: runDomain,
}

func init() {
	domainCmd.Flags().StringVarP(&domainWordlist, "wordlist", "w", "",
		"file with one subdomain label per line")
	domainCmd.Flags().StringSliceVarP(&domainSubdomains, "subdomains", "s", nil,
		"comma-separated subdomain labels")
	domainCmd.Flags().BoolVar(&domainRecords, "records", false,
		"also collect the A, AAAA, CNAME, MX, NS, TXT and SOA records of the domain")
	domainCmd.Flags().StringVar(&domainDNSServer, "dns-server", "",
		"resolver as host:port (default from config or the system)")
}

// candidateLabels picks the subdomain source: explicit labels, then a
// wordlist file, then the built-in list.
func candidateLabels(db *sigdb.DB) ([]string, error) {
	if len(domainSubdomains) > 0 {
		return domainSubdomains, nil
	}
	path := domainWordlist
	if path == "" {
		path = cfg.Wordlist
	}
	if path != "" {
		return sigdb.ReadWordlist(path)
	}
	return db.Subdomains, nil
}

func runDomain(cmd *cobra.Command, args []string) error {
	engine, db, err := newEngine(domainDNSServer)
	if err != nil {
		return err
	}
	labels, err := candidateLabels(db)
	if err != nil {
		return err
	}

	sc := baseScanConfig()
	sc.Domain = args[0]
	sc.Subdomains = labels
	sc.WithRecordSet = domainRecords
	if domainDNSServer != "" {
		sc.DNSServer = domainDNSServer
	}

	return execute(cmd, "Scanning domain", progressSpinner, func(ctx context.Context, rep *probes.Reporter) (*model.DomainScanResult, error) {
		return engine.DomainScan(ctx, sc, rep)
	})
}
