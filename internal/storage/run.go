package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/user/netrecon/internal/model"
)

// ErrNotFound is returned when no stored run matches a lookup.
var ErrNotFound = errors.New("run not found")

// Run is one stored scan run. Result holds its JSON projection.
type Run struct {
	ID        int64
	ProbeID   string
	Kind      model.ScanKind
	Subject   string
	Summary   string
	StartedAt time.Time
	ElapsedMs float64
	Result    []byte
}

// Decode parses the stored result.
func (r *Run) Decode() (model.Result, error) {
	return model.DecodeResult(r.Kind, r.Result)
}

// RunStorage handles run history persistence.
type RunStorage struct {
	db *DB
}

// NewRunStorage creates a new run storage handler.
func NewRunStorage(db *DB) *RunStorage {
	return &RunStorage{db: db}
}

// Save stores a finished run together with its hosts, ports and hops.
func (s *RunStorage) Save(res model.Result) (int64, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return 0, fmt.Errorf("failed to encode result: %w", err)
	}
	info := res.Info()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO runs (probe_id, kind, subject, summary, started_at, elapsed_ms, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		info.ProbeID, string(info.Kind), res.Subject(), res.Summary(),
		info.StartedAt.UTC(), info.ElapsedMs, string(data))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	switch r := res.(type) {
	case *model.PortScanResult:
		err = savePortScan(tx, runID, r)
	case *model.HostScanResult:
		err = saveHosts(tx, runID, r.Hosts)
	case *model.TraceResult:
		err = saveHops(tx, runID, r.Hops)
	}
	if err != nil {
		return 0, err
	}

	return runID, tx.Commit()
}

const runColumns = `id, probe_id, kind, subject, summary, started_at, elapsed_ms, result`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		r       Run
		kind    string
		summary sql.NullString
		result  string
	)
	if err := row.Scan(&r.ID, &r.ProbeID, &kind, &r.Subject, &summary, &r.StartedAt, &r.ElapsedMs, &result); err != nil {
		return nil, err
	}
	r.Kind = model.ScanKind(kind)
	r.Summary = summary.String
	r.Result = []byte(result)
	return &r, nil
}

// Get returns the run whose probe id equals or starts with probeID. An
// ambiguous prefix is an error.
func (s *RunStorage) Get(probeID string) (*Run, error) {
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs WHERE probe_id = ? OR probe_id LIKE ? || '%'
		 ORDER BY probe_id = ? DESC LIMIT 2`,
		probeID, probeID, probeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(runs) == 0:
		return nil, ErrNotFound
	case runs[0].ProbeID == probeID || len(runs) == 1:
		return runs[0], nil
	}
	return nil, fmt.Errorf("probe id prefix %q is ambiguous", probeID)
}

// List returns the most recent runs, newest first. An empty kind lists all
// kinds.
func (s *RunStorage) List(kind model.ScanKind, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Previous returns the latest run of the same kind and subject that started
// before run.
func (s *RunStorage) Previous(run *Run) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT `+runColumns+` FROM runs
		 WHERE kind = ? AND subject = ? AND (started_at < ? OR (started_at = ? AND id < ?))
		 ORDER BY started_at DESC, id DESC LIMIT 1`,
		string(run.Kind), run.Subject, run.StartedAt, run.StartedAt, run.ID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get previous run: %w", err)
	}
	return r, nil
}

// Count returns the number of stored runs.
func (s *RunStorage) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}

// CountByKind returns the number of stored runs per scan kind.
func (s *RunStorage) CountByKind() (map[model.ScanKind]int, error) {
	rows, err := s.db.Query("SELECT kind, COUNT(*) FROM runs GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ScanKind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[model.ScanKind(kind)] = n
	}
	return counts, rows.Err()
}
