// Package probes implements the scan engine: probe transports, the
// concurrency limiter and the scanners built on them.
//
// Every scanner owns its run until completion and returns one aggregate
// result. Per-probe failures become result data; only configuration and
// privilege errors are returned.
package probes

import (
	"context"
	"net"
	"time"

	"github.com/user/netrecon/internal/sigdb"
)

// lookupTimeout bounds a single reverse lookup.
const lookupTimeout = 2 * time.Second

// Engine runs scans over a Transport and a Resolver with shared, read-only
// signature data.
type Engine struct {
	transport Transport
	resolver  Resolver
	db        *sigdb.DB
}

// NewEngine creates an engine. db must not be modified while scans run.
func NewEngine(t Transport, r Resolver, db *sigdb.DB) *Engine {
	return &Engine{transport: t, resolver: r, db: db}
}

// reverseLookup returns the PTR name of ip or "" if it has none.
func (e *Engine) reverseLookup(ctx context.Context, ip net.IP) string {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	name, err := e.resolver.LookupAddr(ctx, ip)
	if err != nil {
		return ""
	}
	return name
}
