package storage

import (
	"database/sql"
	"fmt"

	"github.com/user/netrecon/internal/model"
)

// ScanStorage queries hosts and ports recorded by port and host scans.
type ScanStorage struct {
	db *DB
}

// NewScanStorage creates a new scan storage handler.
func NewScanStorage(db *DB) *ScanStorage {
	return &ScanStorage{db: db}
}

func insertHost(tx *sql.Tx, runID int64, h model.Host) (int64, error) {
	result, err := tx.Exec(
		`INSERT INTO scan_hosts (run_id, ip, hostname, mac, vendor, os, ttl, rtt_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, h.IP, h.Hostname, h.MAC, h.Vendor, h.OS, h.TTL, h.RTTMs)
	if err != nil {
		return 0, fmt.Errorf("failed to save host %s: %w", h.IP, err)
	}
	return result.LastInsertId()
}

func saveHosts(tx *sql.Tx, runID int64, hosts []model.Host) error {
	for _, h := range hosts {
		if _, err := insertHost(tx, runID, h); err != nil {
			return err
		}
	}
	return nil
}

func savePortScan(tx *sql.Tx, runID int64, r *model.PortScanResult) error {
	stmt, err := tx.Prepare(
		`INSERT INTO scan_ports (host_id, port, protocol, state, service, version, banner)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare port statement: %w", err)
	}
	defer stmt.Close()

	for _, hp := range r.Hosts {
		hostID, err := insertHost(tx, runID, model.Host{
			IP: hp.IP, Hostname: hp.Hostname, OS: hp.OS, TTL: hp.TTL,
		})
		if err != nil {
			return err
		}
		for _, p := range hp.Ports {
			if _, err := stmt.Exec(hostID, p.Port, string(p.Protocol), string(p.State), p.Service, p.Version, p.Banner); err != nil {
				return fmt.Errorf("failed to save port %d/%s: %w", p.Port, p.Protocol, err)
			}
		}
	}
	return nil
}

// PortSighting is one open port seen on a host in a stored run.
type PortSighting struct {
	ProbeID string
	IP      string
	Port    int
	Proto   model.Protocol
	Service string
	Version string
}

// GetOpenPorts returns every open port recorded for ip, newest run first.
func (s *ScanStorage) GetOpenPorts(ip string) ([]PortSighting, error) {
	query := `SELECT r.probe_id, h.ip, p.port, p.protocol, p.service, p.version
			  FROM scan_ports p
			  JOIN scan_hosts h ON h.id = p.host_id
			  JOIN runs r ON r.id = h.run_id
			  WHERE h.ip = ? AND p.state = 'open'
			  ORDER BY r.started_at DESC, p.port`

	rows, err := s.db.Query(query, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to query ports: %w", err)
	}
	defer rows.Close()

	var out []PortSighting
	for rows.Next() {
		var (
			ps               PortSighting
			proto            string
			service, version sql.NullString
		)
		if err := rows.Scan(&ps.ProbeID, &ps.IP, &ps.Port, &proto, &service, &version); err != nil {
			return nil, fmt.Errorf("failed to scan port: %w", err)
		}
		ps.Proto = model.Protocol(proto)
		ps.Service = service.String
		ps.Version = version.String
		out = append(out, ps)
	}
	return out, rows.Err()
}

// CountHosts returns the number of distinct host addresses ever recorded.
func (s *ScanStorage) CountHosts() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(DISTINCT ip) FROM scan_hosts").Scan(&count)
	return count, err
}

// CountOpenPorts returns the number of distinct open (ip, port, protocol)
// triples ever recorded.
func (s *ScanStorage) CountOpenPorts() (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM (
			SELECT DISTINCT h.ip, p.port, p.protocol
			FROM scan_ports p JOIN scan_hosts h ON h.id = p.host_id
			WHERE p.state = 'open')`).Scan(&count)
	return count, err
}
