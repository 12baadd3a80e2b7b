package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tphummel/lab_inventory/internal/models"
)

// CreateUser inserts a new user. Returns ErrDuplicate when the username or
// email is taken.
func (d *DB) CreateUser(u *models.User) error {
	_, err := d.conn.Exec(`
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash,
		u.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetUserByUsername returns the user with the given username, or sql.ErrNoRows.
func (d *DB) GetUserByUsername(username string) (*models.User, error) {
	return scanUser(d.conn.QueryRow(`
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE username = ?`, username))
}

// GetUserByID returns the user with the given ID, or sql.ErrNoRows.
func (d *DB) GetUserByID(id string) (*models.User, error) {
	return scanUser(d.conn.QueryRow(`
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE id = ?`, id))
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt); err != nil {
		return nil, err
	}
	var err error
	u.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &u, nil
}

// CreateSession stores an issued token pair.
func (d *DB) CreateSession(s *models.Session) error {
	_, err := d.conn.Exec(`
		INSERT INTO sessions (id, user_id, access_digest, refresh_digest, access_expires_at, refresh_expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.AccessDigest, s.RefreshDigest,
		s.AccessExpiresAt.UTC().Format(time.RFC3339),
		s.RefreshExpiresAt.UTC().Format(time.RFC3339),
		s.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// SessionByAccessDigest returns the session issued for an access token digest,
// or sql.ErrNoRows.
func (d *DB) SessionByAccessDigest(digest string) (*models.Session, error) {
	return scanSession(d.conn.QueryRow(`
		SELECT id, user_id, access_digest, refresh_digest, access_expires_at, refresh_expires_at, created_at
		FROM sessions WHERE access_digest = ?`, digest))
}

// SessionByRefreshDigest returns the session of userID holding the refresh
// token digest, or sql.ErrNoRows.
func (d *DB) SessionByRefreshDigest(userID, digest string) (*models.Session, error) {
	return scanSession(d.conn.QueryRow(`
		SELECT id, user_id, access_digest, refresh_digest, access_expires_at, refresh_expires_at, created_at
		FROM sessions WHERE user_id = ? AND refresh_digest = ?`, userID, digest))
}

// DeleteSession removes a session. Returns sql.ErrNoRows if it does not exist.
func (d *DB) DeleteSession(id string) error {
	res, err := d.conn.Exec(`DELETE FROM sessions WHERE id = ?`, id)
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

// DeleteExpiredSessions drops sessions whose refresh token expired before now.
func (d *DB) DeleteExpiredSessions(now time.Time) (int64, error) {
	res, err := d.conn.Exec(`DELETE FROM sessions WHERE refresh_expires_at < ?`,
		now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var s models.Session
	var accessExp, refreshExp, createdAt string
	if err := row.Scan(&s.ID, &s.UserID, &s.AccessDigest, &s.RefreshDigest,
		&accessExp, &refreshExp, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if s.AccessExpiresAt, err = time.Parse(time.RFC3339, accessExp); err != nil {
		return nil, fmt.Errorf("parse access_expires_at %q: %w", accessExp, err)
	}
	if s.RefreshExpiresAt, err = time.Parse(time.RFC3339, refreshExp); err != nil {
		return nil, fmt.Errorf("parse refresh_expires_at %q: %w", refreshExp, err)
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &s, nil
}
