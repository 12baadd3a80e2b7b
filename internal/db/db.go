package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tphummel/lab_inventory/internal/models"
	_ "modernc.org/sqlite"
)

// ErrDuplicate is returned when an insert or update would violate a
// uniqueness constraint (item name within a kind, username, email).
var ErrDuplicate = errors.New("duplicate record")

// DB wraps a SQLite connection.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at path, enables WAL mode, and runs migrations.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// :memory: databases are per-connection.
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			id           TEXT PRIMARY KEY,
			kind         TEXT NOT NULL,
			reference_id TEXT NOT NULL DEFAULT '',
			name_key     TEXT NOT NULL,
			fields       TEXT NOT NULL DEFAULT '{}',
			created_at   DATETIME NOT NULL,
			updated_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_items_kind_name ON items(kind, name_key);

		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id                 TEXT PRIMARY KEY,
			user_id            TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			access_digest      TEXT NOT NULL UNIQUE,
			refresh_digest     TEXT NOT NULL UNIQUE,
			access_expires_at  DATETIME NOT NULL,
			refresh_expires_at DATETIME NOT NULL,
			created_at         DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	`)
	return err
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping() error {
	return d.conn.Ping()
}

func nameKey(k models.Kind, it *models.Item) string {
	return strings.ToLower(strings.TrimSpace(it.Get(k.NameField)))
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create inserts a new item of kind k. Returns ErrDuplicate if another item of
// the same kind already has the same name (case-insensitive).
func (d *DB) Create(k models.Kind, it *models.Item) error {
	fields, err := json.Marshal(it.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	_, err = d.conn.Exec(`
		INSERT INTO items (id, kind, reference_id, name_key, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		it.ID, k.Slug, it.ReferenceID, nameKey(k, it), string(fields),
		it.CreatedAt.UTC().Format(time.RFC3339),
		it.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID returns the item of kind k with the given ID, or sql.ErrNoRows if not found.
func (d *DB) GetByID(k models.Kind, id string) (*models.Item, error) {
	row := d.conn.QueryRow(`
		SELECT id, reference_id, fields, created_at, updated_at
		FROM items WHERE kind = ? AND id = ?`, k.Slug, id)
	return scanItem(row)
}

// List returns all items of kind k ordered by creation time.
func (d *DB) List(k models.Kind) ([]*models.Item, error) {
	rows, err := d.conn.Query(`
		SELECT id, reference_id, fields, created_at, updated_at
		FROM items WHERE kind = ? ORDER BY created_at, id`, k.Slug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Update replaces the fields of the item with it.ID.
// Returns sql.ErrNoRows if no such item exists, ErrDuplicate on a name clash.
func (d *DB) Update(k models.Kind, it *models.Item) error {
	fields, err := json.Marshal(it.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	res, err := d.conn.Exec(`
		UPDATE items
		SET name_key=?, fields=?, updated_at=?
		WHERE kind=? AND id=?`,
		nameKey(k, it), string(fields),
		it.UpdatedAt.UTC().Format(time.RFC3339),
		k.Slug, it.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the item of kind k with the given ID.
// Returns sql.ErrNoRows if no such item exists.
func (d *DB) Delete(k models.Kind, id string) error {
	res, err := d.conn.Exec(`DELETE FROM items WHERE kind = ? AND id = ?`, k.Slug, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByKind returns the number of stored items per kind slug.
func (d *DB) CountByKind() (map[string]int, error) {
	rows, err := d.conn.Query(`SELECT kind, COUNT(*) FROM items GROUP BY kind`)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*models.Item, error) {
	var it models.Item
	var fields, createdAt, updatedAt string
	if err := s.Scan(&it.ID, &it.ReferenceID, &fields, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &it.Fields); err != nil {
		return nil, fmt.Errorf("decode fields for %q: %w", it.ID, err)
	}
	var err error
	it.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	it.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	return &it, nil
}
