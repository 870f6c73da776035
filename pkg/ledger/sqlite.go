package ledger

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Busy-retry bounds for contended writes. Batched commits from concurrent
// workers are expected to collide occasionally; writers back off and retry
// for up to retryWindow before surfacing the error.
const (
	retryWindow     = 5 * time.Second
	retryBaseDelay  = 10 * time.Millisecond
	retryMaxDelay   = 500 * time.Millisecond
	busyTimeoutMill = 5000
)

// SQLiteStore implements Store backed by a single SQLite file in WAL mode.
// Each holder opens its own store: workers and the orchestrator never share
// a handle, coordination happens through SQLite's transactional isolation.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open opens (and if necessary creates and migrates) the ledger at path
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)",
		url.PathEscape(path), busyTimeoutMill,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// One connection per holder; concurrency comes from multiple holders,
	// not from pooling inside one.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mail_status (
			mail_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			domain TEXT NOT NULL,
			is_completed INTEGER NOT NULL,
			is_success INTEGER NOT NULL,
			received_time TEXT NOT NULL,
			error_message TEXT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_domain_stats ON mail_status (domain, is_completed, is_success)`,
		`CREATE INDEX IF NOT EXISTS idx_user_stats ON mail_status (user_id, is_completed, is_success)`,
		`CREATE INDEX IF NOT EXISTS idx_time_progress ON mail_status (received_time, is_completed)`,
	}
	for _, stmt := range stmts {
		if err := s.withRetry(func() error {
			_, err := s.db.Exec(stmt)
			return err
		}); err != nil {
			return fmt.Errorf("failed to migrate ledger schema: %w", err)
		}
	}
	return nil
}

const upsertSQL = `
	INSERT INTO mail_status (mail_id, user_id, domain, is_completed, is_success, received_time, error_message)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(mail_id) DO UPDATE SET
		user_id = excluded.user_id,
		domain = excluded.domain,
		is_completed = excluded.is_completed,
		is_success = excluded.is_success,
		received_time = excluded.received_time,
		error_message = excluded.error_message`

// UpsertPending records rows as in-flight in one transaction
func (s *SQLiteStore) UpsertPending(rows ...Row) error {
	return s.upsertAll(rows, false, false, nil)
}

// MarkSuccess finalizes rows as completed successfully in one transaction
func (s *SQLiteStore) MarkSuccess(rows ...Row) error {
	return s.upsertAll(rows, true, true, nil)
}

// MarkFailure finalizes rows as completed with their error messages in one
// transaction
func (s *SQLiteStore) MarkFailure(rows ...FailureRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, r := range rows {
			msg := sql.NullString{String: r.ErrorMessage, Valid: r.ErrorMessage != ""}
			if _, err := tx.Exec(upsertSQL, r.MailID, r.UserID, r.Domain, 1, 0, r.ReceivedTime, msg); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *SQLiteStore) upsertAll(rows []Row, completed, success bool, errMsg *string) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		msg := sql.NullString{}
		if errMsg != nil {
			msg = sql.NullString{String: *errMsg, Valid: true}
		}
		for _, r := range rows {
			if _, err := tx.Exec(upsertSQL, r.MailID, r.UserID, r.Domain,
				boolToInt(completed), boolToInt(success), r.ReceivedTime, msg); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// DomainStats returns completion counters for one domain
func (s *SQLiteStore) DomainStats(domain string) (*Stats, error) {
	return s.groupedStats(
		`SELECT is_completed, is_success, COUNT(*) FROM mail_status WHERE domain = ? GROUP BY is_completed, is_success`,
		domain,
	)
}

// UserStats returns completion counters for one user
func (s *SQLiteStore) UserStats(userID string) (*Stats, error) {
	return s.groupedStats(
		`SELECT is_completed, is_success, COUNT(*) FROM mail_status WHERE user_id = ? GROUP BY is_completed, is_success`,
		userID,
	)
}

func (s *SQLiteStore) groupedStats(query string, arg string) (*Stats, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var completed, success, count int
		if err := rows.Scan(&completed, &success, &count); err != nil {
			return nil, fmt.Errorf("failed to scan ledger stats: %w", err)
		}
		switch {
		case completed == 1 && success == 1:
			stats.CompletedSuccess += count
		case completed == 1:
			stats.CompletedFailure += count
		default:
			stats.Pending += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.Total = stats.CompletedSuccess + stats.CompletedFailure + stats.Pending
	return stats, nil
}

// LastCompletedTime returns the max received_time among completed rows
func (s *SQLiteStore) LastCompletedTime() (string, error) {
	var ts sql.NullString
	err := s.db.QueryRow(
		`SELECT MAX(received_time) FROM mail_status WHERE is_completed = 1`,
	).Scan(&ts)
	if err != nil {
		return "", fmt.Errorf("failed to query last completed time: %w", err)
	}
	if !ts.Valid {
		return "", nil
	}
	return ts.String, nil
}

// withRetry runs fn, retrying transient busy errors with capped backoff
// until retryWindow elapses
func (s *SQLiteStore) withRetry(fn func() error) error {
	deadline := time.Now().Add(retryWindow)
	delay := retryBaseDelay
	for {
		err := fn()
		if err == nil || !isBusy(err) || time.Now().After(deadline) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
