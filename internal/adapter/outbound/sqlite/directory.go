// Package sqlite provides the SQLite-backed user directory adapter: the
// beta allow-list, known account status, and collected beta signups.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/threadgate/threadgate/internal/domain/fault"
	"github.com/threadgate/threadgate/internal/port/outbound"
)

const schema = `
CREATE TABLE IF NOT EXISTS beta_emails (
	email TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS users (
	email    TEXT PRIMARY KEY,
	verified INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS beta_requests (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	email      TEXT NOT NULL,
	user_agent TEXT,
	ip_address TEXT,
	created_at TEXT NOT NULL
);
`

// Directory is the SQLite-backed user directory. It implements
// outbound.Directory.
type Directory struct {
	db *sql.DB
}

// Open opens (and creates if needed) the directory database at path.
func Open(path string) (*Directory, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open directory db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply directory schema: %w", err)
	}
	return &Directory{db: db}, nil
}

// Close releases the database handle.
func (d *Directory) Close() error {
	return d.db.Close()
}

// IsBetaEmail reports whether the email is on the beta allow-list.
func (d *Directory) IsBetaEmail(ctx context.Context, email string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx,
		`SELECT 1 FROM beta_emails WHERE email = ?`, normalize(email)).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, d.storeFailure("check beta email", err)
	}
	return true, nil
}

// Status returns the account status for an email. Unknown emails return
// the zero status.
func (d *Directory) Status(ctx context.Context, email string) (outbound.UserStatus, error) {
	var verified int
	err := d.db.QueryRowContext(ctx,
		`SELECT verified FROM users WHERE email = ?`, normalize(email)).Scan(&verified)
	switch {
	case err == sql.ErrNoRows:
		return outbound.UserStatus{}, nil
	case err != nil:
		return outbound.UserStatus{}, d.storeFailure("get user status", err)
	}
	return outbound.UserStatus{Exists: true, Verified: verified != 0}, nil
}

// RecordSignup stores a beta-access request.
func (d *Directory) RecordSignup(ctx context.Context, s outbound.Signup) error {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO beta_requests (email, user_agent, ip_address, created_at) VALUES (?, ?, ?, ?)`,
		normalize(s.Email), s.UserAgent, s.IPAddress, createdAt.Format(time.RFC3339))
	if err != nil {
		return d.storeFailure("record signup", err)
	}
	return nil
}

// AddBetaEmail puts an email on the beta allow-list. Used by operators and
// tests to seed the list.
func (d *Directory) AddBetaEmail(ctx context.Context, email string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO beta_emails (email) VALUES (?)`, normalize(email))
	if err != nil {
		return d.storeFailure("add beta email", err)
	}
	return nil
}

// SetUserStatus records the account status for an email.
func (d *Directory) SetUserStatus(ctx context.Context, email string, status outbound.UserStatus) error {
	if !status.Exists {
		_, err := d.db.ExecContext(ctx, `DELETE FROM users WHERE email = ?`, normalize(email))
		if err != nil {
			return d.storeFailure("clear user status", err)
		}
		return nil
	}
	verified := 0
	if status.Verified {
		verified = 1
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO users (email, verified) VALUES (?, ?)
		 ON CONFLICT(email) DO UPDATE SET verified = excluded.verified`,
		normalize(email), verified)
	if err != nil {
		return d.storeFailure("set user status", err)
	}
	return nil
}

// storeFailure wraps a database error into the taxonomy without leaking
// SQL detail to callers; the cause stays in failure context for logs.
func (d *Directory) storeFailure(op string, err error) error {
	return fault.Database("User directory operation failed").
		With("operation", op).
		With("cause", err.Error())
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
