package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection with orchestration-specific
// operations.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultDBPath returns the path to the default hive database.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "hive", "hive.db")
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Records},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Records = `
CREATE TABLE IF NOT EXISTS records (
	partition TEXT NOT NULL,
	key TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '',
	value TEXT NOT NULL,
	stored_at DATETIME NOT NULL,
	PRIMARY KEY (partition, key)
);

CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);
`

// Store persists value as JSON under (opts.Partition, key), replacing any
// earlier value.
func (db *DB) Store(ctx context.Context, key string, value any, opts StoreOptions) error {
	if key == "" {
		return fmt.Errorf("store: key must not be empty")
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %s: %w", key, err)
	}

	partition := opts.Partition
	if partition == "" {
		partition = "default"
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO records (partition, key, type, tags, value, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(partition, key) DO UPDATE SET
			type = excluded.type,
			tags = excluded.tags,
			value = excluded.value,
			stored_at = excluded.stored_at
	`, partition, key, opts.Type, strings.Join(opts.Tags, ","), string(encoded), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("store %s/%s: %w", partition, key, err)
	}

	return nil
}

// Record is a stored entity as read back from the database.
type Record struct {
	Partition string
	Key       string
	Type      string
	Tags      []string
	Value     []byte
	StoredAt  time.Time
}

// Get reads a single record's raw value. Returns sql.ErrNoRows if absent.
// This read side is used by the CLI status command only; the core reads
// from its own in-memory caches.
func (db *DB) Get(ctx context.Context, partition, key string) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var value string
	row := db.conn.QueryRowContext(ctx, `
		SELECT value FROM records WHERE partition = ? AND key = ?
	`, partition, key)
	if err := row.Scan(&value); err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// List returns every record in a partition, most recently stored first.
func (db *DB) List(ctx context.Context, partition string) ([]Record, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT partition, key, type, tags, value, stored_at
		FROM records WHERE partition = ?
		ORDER BY stored_at DESC
	`, partition)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", partition, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var tags, value, storedAt string
		if err := rows.Scan(&r.Partition, &r.Key, &r.Type, &tags, &value, &storedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if tags != "" {
			r.Tags = strings.Split(tags, ",")
		}
		r.Value = []byte(value)
		if t, err := parseTime(storedAt); err == nil {
			r.StoredAt = t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountByPartition returns the number of records per partition.
func (db *DB) CountByPartition(ctx context.Context) (map[string]int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT partition, COUNT(*) FROM records GROUP BY partition
	`)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var partition string
		var n int
		if err := rows.Scan(&partition, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[partition] = n
	}
	return counts, rows.Err()
}

// PurgeOlderThan deletes records in a partition stored before the cutoff.
// Returns the number of records deleted.
func (db *DB) PurgeOlderThan(ctx context.Context, partition string, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.ExecContext(ctx, `
		DELETE FROM records WHERE partition = ? AND stored_at < ?
	`, partition, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", partition, err)
	}
	return result.RowsAffected()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
