// Package store persists frame audit records and client lifecycle
// events to MariaDB and resolves DMR IDs to callsigns.
//
// The store is a best-effort collaborator: callers treat every error
// as non-fatal and the relay path never blocks on it beyond the
// driver-level timeouts baked into the DSN.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/radiogrid/dmrelay/internal/logging"
	"github.com/radiogrid/dmrelay/internal/protocol"
	"github.com/radiogrid/dmrelay/internal/registry"
)

// ErrNotFound is returned by LookupCallsign when no record exists for
// the requested DMR ID.
var ErrNotFound = errors.New("not found")

// Store records relay activity and resolves client identities.
type Store interface {
	registry.EventSink

	// LogFrame records one relayed frame.
	LogFrame(f *protocol.Frame, from *net.UDPAddr) error

	// Close releases the underlying connections.
	Close() error
}

// DB is the MariaDB-backed store.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to MariaDB, verifies the connection and creates the
// schema if missing. The dsn should carry driver-level timeouts so a
// slow database cannot stall callers indefinitely.
func Open(dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &DB{
		db:     db,
		logger: logger.With(slog.String(logging.KeyComponent, "store")),
	}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	s.logger.Info("database connected")

	return s, nil
}

func (s *DB) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dmr_clients (
			id INT AUTO_INCREMENT PRIMARY KEY,
			ip_address VARCHAR(45) NOT NULL,
			port INT NOT NULL,
			dmr_id INT UNSIGNED NOT NULL DEFAULT 0,
			callsign VARCHAR(9) NOT NULL DEFAULT '',
			first_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			UNIQUE KEY endpoint (ip_address, port)
		)`,
		`CREATE TABLE IF NOT EXISTS dmr_frames (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			frame_type TINYINT UNSIGNED NOT NULL,
			slot TINYINT UNSIGNED NOT NULL,
			src_id INT UNSIGNED NOT NULL,
			dst_id INT UNSIGNED NOT NULL,
			payload_len INT NOT NULL,
			from_ip VARCHAR(45) NOT NULL,
			from_port INT NOT NULL,
			received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS dmr_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			ip_address VARCHAR(45) NOT NULL,
			port INT NOT NULL,
			dmr_id INT UNSIGNED NOT NULL,
			callsign VARCHAR(9) NOT NULL DEFAULT '',
			event VARCHAR(16) NOT NULL,
			occurred_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LogFrame records an audit row for one relayed frame.
func (s *DB) LogFrame(f *protocol.Frame, from *net.UDPAddr) error {
	_, err := s.db.Exec(
		`INSERT INTO dmr_frames
			(frame_type, slot, src_id, dst_id, payload_len, from_ip, from_port)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.Type, f.Slot, f.SrcID, f.DstID, len(f.Payload),
		from.IP.String(), from.Port,
	)
	if err != nil {
		return fmt.Errorf("log frame: %w", err)
	}
	return nil
}

// LogClientEvent records a lifecycle event and keeps the dmr_clients
// roster in step: connect marks the endpoint active, disconnect and
// timeout mark it inactive.
func (s *DB) LogClientEvent(c *registry.Client, event string) error {
	ip := c.Addr.IP.String()
	port := c.Addr.Port

	_, err := s.db.Exec(
		`INSERT INTO dmr_events (ip_address, port, dmr_id, callsign, event)
		 VALUES (?, ?, ?, ?, ?)`,
		ip, port, c.DMRID, c.Callsign, event,
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}

	switch event {
	case registry.EventConnect:
		_, err = s.db.Exec(
			`INSERT INTO dmr_clients (ip_address, port, dmr_id, callsign, active)
			 VALUES (?, ?, ?, ?, TRUE)
			 ON DUPLICATE KEY UPDATE
				dmr_id = VALUES(dmr_id),
				callsign = VALUES(callsign),
				active = TRUE,
				last_seen = CURRENT_TIMESTAMP`,
			ip, port, c.DMRID, c.Callsign,
		)
	default:
		_, err = s.db.Exec(
			`UPDATE dmr_clients SET active = FALSE
			 WHERE ip_address = ? AND port = ?`,
			ip, port,
		)
	}
	if err != nil {
		return fmt.Errorf("update client roster: %w", err)
	}
	return nil
}

// LookupCallsign resolves the most recently seen callsign for a DMR ID.
func (s *DB) LookupCallsign(dmrID uint32) (string, error) {
	var callsign string
	err := s.db.QueryRow(
		`SELECT callsign FROM dmr_clients
		 WHERE dmr_id = ? AND callsign <> ''
		 ORDER BY last_seen DESC LIMIT 1`,
		dmrID,
	).Scan(&callsign)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup callsign: %w", err)
	}
	return callsign, nil
}

// Close closes the database handle.
func (s *DB) Close() error {
	return s.db.Close()
}
