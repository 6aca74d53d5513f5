package probes

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/util"
)

// Candidates joins every subdomain label with domain, preserving order and
// dropping duplicates. A label equal to "@" stands for the domain itself.
func Candidates(domain string, subdomains []string) []string {
	domain = strings.Trim(strings.ToLower(domain), ".")
	out := make([]string, 0, len(subdomains))
	seen := make(map[string]struct{}, len(subdomains))
	for _, sub := range subdomains {
		sub = strings.Trim(strings.ToLower(strings.TrimSpace(sub)), ".")
		if sub == "" {
			continue
		}
		name := sub + "." + domain
		if sub == "@" {
			name = domain
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// DomainScan resolves every candidate name concurrently. Unresolved names
// stay in the result with Resolved unset. With WithRecordSet the record set
// of the base domain is collected as well.
func (e *Engine) DomainScan(ctx context.Context, cfg model.ScanConfig, rep *Reporter) (*model.DomainScanResult, error) {
	if err := cfg.ValidateDomainScan(); err != nil {
		return nil, err
	}

	names := Candidates(cfg.Domain, cfg.Subdomains)
	result := &model.DomainScanResult{
		RunInfo: model.NewRunInfo(model.KindDomainScan),
		Domain:  strings.Trim(strings.ToLower(cfg.Domain), "."),
		Entries: make([]model.DomainEntry, len(names)),
	}
	for i, n := range names {
		result.Entries[i] = model.DomainEntry{Name: n}
	}
	lim := NewLimiter(cfg.Concurrency, cfg.Rate)

	util.Info("domain scan: %s, %d candidates", result.Domain, len(names))
	rep.Start(PhaseDomainScan)
	err := e.resolveAll(ctx, lim, result.Entries)
	if err == nil && cfg.WithRecordSet {
		result.Records, err = e.resolver.Records(ctx, result.Domain)
		if err != nil {
			util.Warn("record set of %s: %v", result.Domain, err)
			err = ctx.Err()
		}
	}
	rep.End(PhaseDomainScan)
	if err != nil {
		return nil, err
	}

	result.Finish()
	return result, nil
}

// resolveAll resolves each entry in place. Every task owns one entry.
func (e *Engine) resolveAll(ctx context.Context, lim *Limiter, entries []model.DomainEntry) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range entries {
		if err := lim.Acquire(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer lim.Release()
			entry := &entries[i]
			ans, err := e.resolver.Resolve(gctx, entry.Name)
			if err != nil {
				if !errors.Is(err, ErrNoRecord) {
					util.Debug("resolve %s: %v", entry.Name, err)
				}
				return nil
			}
			entry.Resolved = len(ans.Addresses) > 0
			entry.CNAME = ans.CNAME
			for _, ip := range ans.Addresses {
				entry.Addresses = append(entry.Addresses, ip.String())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
