// Package pkgstore keeps the shop's deliverable packages and the sessions in
// which they are sent to customers. Packages are managed by staff through
// slash commands; a send session records which package went to whom.
package pkgstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound means no package or session matches.
var ErrNotFound = errors.New("pkgstore: not found")

// ErrDuplicateKey means a package with that key already exists.
var ErrDuplicateKey = errors.New("pkgstore: key already exists")

// Package is one deliverable the shop sells.
type Package struct {
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FileURL     string    `json:"file_url"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

// SendSession records one delivery of a package to a user.
type SendSession struct {
	ID          string     `json:"id"`
	PackageKey  string     `json:"package_key"`
	UserID      string     `json:"user_id"`
	ChannelID   string     `json:"channel_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store is the package database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the package database and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("pkgstore: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pkgstore: wal: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS packages (
			key         TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			file_url    TEXT NOT NULL DEFAULT '',
			price       REAL NOT NULL DEFAULT 0,
			currency    TEXT NOT NULL DEFAULT 'USD',
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS send_sessions (
			id           TEXT PRIMARY KEY,
			package_key  TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			channel_id   TEXT NOT NULL,
			started_at   TEXT NOT NULL,
			completed_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user ON send_sessions(user_id);
	`)
	if err != nil {
		return fmt.Errorf("pkgstore: migrate: %w", err)
	}
	return nil
}

// Create adds a package.
func (s *Store) Create(p *Package) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO packages (key, title, description, file_url, price, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.Key, p.Title, p.Description, p.FileURL, p.Price, p.Currency, p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateKey
		}
		return fmt.Errorf("pkgstore: create: %w", err)
	}
	return nil
}

// Get returns a package by key.
func (s *Store) Get(key string) (*Package, error) {
	row := s.db.QueryRow(`
		SELECT key, title, description, file_url, price, currency, created_at
		FROM packages WHERE key = ?
	`, key)
	p, err := scanPackage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("pkgstore: get: %w", err)
	}
	return p, nil
}

// List returns all packages ordered by key.
func (s *Store) List() ([]*Package, error) {
	rows, err := s.db.Query(`
		SELECT key, title, description, file_url, price, currency, created_at
		FROM packages ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("pkgstore: list: %w", err)
	}
	defer rows.Close()

	var out []*Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("pkgstore: list scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update replaces a package's mutable fields.
func (s *Store) Update(p *Package) error {
	result, err := s.db.Exec(`
		UPDATE packages SET title = ?, description = ?, file_url = ?, price = ?, currency = ?
		WHERE key = ?
	`, p.Title, p.Description, p.FileURL, p.Price, p.Currency, p.Key)
	if err != nil {
		return fmt.Errorf("pkgstore: update: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a package by key.
func (s *Store) Delete(key string) error {
	result, err := s.db.Exec(`DELETE FROM packages WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("pkgstore: delete: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// StartSession records the beginning of a package delivery and returns the
// session.
func (s *Store) StartSession(packageKey, userID, channelID string) (*SendSession, error) {
	if _, err := s.Get(packageKey); err != nil {
		return nil, err
	}
	sess := &SendSession{
		ID:         uuid.NewString(),
		PackageKey: packageKey,
		UserID:     userID,
		ChannelID:  channelID,
		StartedAt:  time.Now(),
	}
	_, err := s.db.Exec(`
		INSERT INTO send_sessions (id, package_key, user_id, channel_id, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, sess.ID, sess.PackageKey, sess.UserID, sess.ChannelID, sess.StartedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("pkgstore: start session: %w", err)
	}
	return sess, nil
}

// CompleteSession marks a session delivered.
func (s *Store) CompleteSession(id string, at time.Time) error {
	result, err := s.db.Exec(`UPDATE send_sessions SET completed_at = ? WHERE id = ?`,
		at.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("pkgstore: complete session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SessionsFor returns a user's sessions, newest first.
func (s *Store) SessionsFor(userID string) ([]*SendSession, error) {
	rows, err := s.db.Query(`
		SELECT id, package_key, user_id, channel_id, started_at, completed_at
		FROM send_sessions WHERE user_id = ? ORDER BY started_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("pkgstore: sessions: %w", err)
	}
	defer rows.Close()

	var out []*SendSession
	for rows.Next() {
		var sess SendSession
		var startedStr string
		var completedStr *string
		if err := rows.Scan(&sess.ID, &sess.PackageKey, &sess.UserID, &sess.ChannelID, &startedStr, &completedStr); err != nil {
			return nil, fmt.Errorf("pkgstore: session scan: %w", err)
		}
		sess.StartedAt, _ = time.Parse(time.RFC3339, startedStr)
		if completedStr != nil {
			ct, _ := time.Parse(time.RFC3339, *completedStr)
			sess.CompletedAt = &ct
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPackage(row scannable) (*Package, error) {
	var p Package
	var createdStr string
	if err := row.Scan(&p.Key, &p.Title, &p.Description, &p.FileURL, &p.Price, &p.Currency, &createdStr); err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	return &p, nil
}
