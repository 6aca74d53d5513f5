package storage

import (
	"database/sql"
	"fmt"

	"github.com/user/netrecon/internal/model"
)

// TraceStorage queries hops recorded by traceroute runs.
type TraceStorage struct {
	db *DB
}

// NewTraceStorage creates a new trace storage handler.
func NewTraceStorage(db *DB) *TraceStorage {
	return &TraceStorage{db: db}
}

func saveHops(tx *sql.Tx, runID int64, hops []model.TraceHop) error {
	stmt, err := tx.Prepare(
		`INSERT INTO trace_hops (run_id, hop_num, ip, hostname, latency_ms, lost)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare hop statement: %w", err)
	}
	defer stmt.Close()

	for _, hop := range hops {
		lost := 0
		if hop.Lost {
			lost = 1
		}
		if _, err := stmt.Exec(runID, hop.HopNum, hop.IP, hop.Hostname, hop.LatencyMs, lost); err != nil {
			return fmt.Errorf("failed to insert hop %d: %w", hop.HopNum, err)
		}
	}
	return nil
}

// GetHops returns the hops of the trace run with the given probe id.
func (s *TraceStorage) GetHops(probeID string) ([]model.TraceHop, error) {
	query := `SELECT t.hop_num, t.ip, t.hostname, t.latency_ms, t.lost
			  FROM trace_hops t JOIN runs r ON r.id = t.run_id
			  WHERE r.probe_id = ? ORDER BY t.hop_num`

	rows, err := s.db.Query(query, probeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hops: %w", err)
	}
	defer rows.Close()

	var hops []model.TraceHop
	for rows.Next() {
		var (
			hop          model.TraceHop
			ip, hostname sql.NullString
			latency      sql.NullFloat64
			lost         int
		)
		if err := rows.Scan(&hop.HopNum, &ip, &hostname, &latency, &lost); err != nil {
			return nil, fmt.Errorf("failed to scan hop: %w", err)
		}
		hop.IP = ip.String
		hop.Hostname = hostname.String
		hop.LatencyMs = latency.Float64
		hop.Lost = lost == 1
		hops = append(hops, hop)
	}
	return hops, rows.Err()
}

// GetTargets returns the distinct traced targets.
func (s *TraceStorage) GetTargets() ([]string, error) {
	rows, err := s.db.Query(
		"SELECT DISTINCT subject FROM runs WHERE kind = ? ORDER BY subject",
		string(model.KindTrace))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}
