// Package db provides the SQLite journal for crosslist.
//
// The journal is an audit trail of scanned sold mails and detected sales.
// Nothing reads it back during a run; deduplication stays with the mailbox
// label and the tracking sheet.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/daviddao/crosslist/internal/types"
	_ "modernc.org/sqlite"
)

// FileName is the journal's file name inside the app directory.
const FileName = "journal.db"

// DB wraps a SQLite connection for journal operations.
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open opens (or creates) a journal database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath, now: time.Now}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Now returns the current time as an ISO 8601 string.
func (d *DB) Now() string {
	return d.now().UTC().Format(time.RFC3339)
}

// RecordMail records one scanned sold mail. itemID is empty when the mail
// carried no recognisable item ID.
func (d *DB) RecordMail(runID, platformCode, mailID, itemID string) error {
	return d.insert(&types.JournalEntry{
		RunID:    runID,
		Kind:     types.KindMailScanned,
		Platform: platformCode,
		MailID:   mailID,
		ItemID:   itemID,
	})
}

// RecordSale records a sale matched to a tracking row.
func (d *DB) RecordSale(runID string, sale types.Sale) error {
	return d.insert(&types.JournalEntry{
		RunID:      runID,
		Kind:       types.KindSold,
		Platform:   sale.Platform,
		ItemID:     sale.ItemID,
		TrackingID: sale.TrackingID,
	})
}

func (d *DB) insert(e *types.JournalEntry) error {
	_, err := d.conn.Exec(`
		INSERT INTO journal (run_id, kind, platform, mail_id, item_id, tracking_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Kind, e.Platform, nullStr(e.MailID), nullStr(e.ItemID), nullStr(e.TrackingID), d.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert %s entry: %w", e.Kind, err)
	}
	return nil
}

// List returns the newest entries first, optionally filtered by kind and
// platform. limit <= 0 means no limit.
func (d *DB) List(kind, platformCode string, limit int) ([]*types.JournalEntry, error) {
	query := "SELECT id, run_id, kind, platform, mail_id, item_id, tracking_id, created_at FROM journal"

	var conditions []string
	var args []any

	if kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, kind)
	}
	if platformCode != "" {
		conditions = append(conditions, "platform = ?")
		args = append(args, platformCode)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*types.JournalEntry
	for rows.Next() {
		e := &types.JournalEntry{}
		var mailID, itemID, trackingID sql.NullString
		if err := rows.Scan(
			&e.ID, &e.RunID, &e.Kind, &e.Platform, &mailID, &itemID, &trackingID, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.MailID = mailID.String
		e.ItemID = itemID.String
		e.TrackingID = trackingID.String
		result = append(result, e)
	}
	return result, rows.Err()
}

// CountByKind returns the number of entries per kind.
func (d *DB) CountByKind() (map[string]int, error) {
	rows, err := d.conn.Query("SELECT kind, COUNT(*) FROM journal GROUP BY kind")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
