package ticket

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nordshop/nsbot/pkg/protocol"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ticket store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ticket store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.clearStaleReservations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// clearStaleReservations drops rows still carrying a provisional id. Such a
// row means the process died between reserving the slot and creating the
// channel; left in place it would lock the opener's (kind, type) slot
// forever.
func (s *SQLiteStore) clearStaleReservations() error {
	_, err := s.db.Exec(`DELETE FROM tickets WHERE channel_id LIKE ? || '%'`, ReservationPrefix)
	if err != nil {
		return fmt.Errorf("ticket store: clear stale reservations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			channel_id    TEXT PRIMARY KEY,
			guild_id      TEXT NOT NULL,
			kind          TEXT NOT NULL,
			opener_id     TEXT NOT NULL,
			type          TEXT NOT NULL,
			pay_type      TEXT NOT NULL DEFAULT '',
			staff_role_id TEXT NOT NULL,
			claimed_by    TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'open',
			created_at    TEXT NOT NULL,
			closed_at     TEXT
		);

		-- One open ticket per (opener, kind, type): enforced by the database
		-- so two near-simultaneous requests cannot both create a channel.
		CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open
			ON tickets(opener_id, kind, type) WHERE status != 'closed';

		CREATE TABLE IF NOT EXISTS pending_deletions (
			channel_id   TEXT PRIMARY KEY,
			delete_after TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		CREATE INDEX IF NOT EXISTS idx_tickets_opener ON tickets(opener_id);
	`)
	if err != nil {
		return fmt.Errorf("ticket store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateOpen(t *protocol.Ticket) error {
	_, err := s.db.Exec(`
		INSERT INTO tickets (channel_id, guild_id, kind, opener_id, type, pay_type, staff_role_id, claimed_by, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', 'open', ?)
	`, t.ChannelID, t.GuildID, string(t.Kind), t.OpenerID, t.Type, t.PayType, t.StaffRoleID,
		t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			existing, ferr := s.FindOpen(t.OpenerID, t.Kind, t.Type)
			if ferr == nil {
				return &DuplicateOpenError{ChannelID: existing.ChannelID}
			}
			return &DuplicateOpenError{}
		}
		return fmt.Errorf("ticket store: create: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Rebind(oldChannelID, newChannelID string) error {
	result, err := s.db.Exec(`UPDATE tickets SET channel_id = ? WHERE channel_id = ?`, newChannelID, oldChannelID)
	if err != nil {
		return fmt.Errorf("ticket store: rebind: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Get(channelID string) (*protocol.Ticket, error) {
	row := s.db.QueryRow(selectCols+` WHERE channel_id = ?`, channelID)
	t, err := scanTicket(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ticket store: get: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) FindOpen(openerID string, kind protocol.TicketKind, typ string) (*protocol.Ticket, error) {
	row := s.db.QueryRow(selectCols+` WHERE opener_id = ? AND kind = ? AND type = ? AND status != 'closed'`,
		openerID, string(kind), typ)
	t, err := scanTicket(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ticket store: find open: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) Claim(channelID, staffID string) error {
	result, err := s.db.Exec(`
		UPDATE tickets SET claimed_by = ?, status = 'claimed'
		WHERE channel_id = ? AND claimed_by = '' AND status = 'open'
	`, staffID, channelID)
	if err != nil {
		return fmt.Errorf("ticket store: claim: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}

	// The conditional update missed: either the record is gone, already
	// closed, or someone claimed first. Report which.
	t, err := s.Get(channelID)
	if err != nil {
		return err
	}
	if t.Status == protocol.TicketClosed {
		return ErrAlreadyClosed
	}
	if t.ClaimedBy != "" {
		return &AlreadyClaimedError{ClaimerID: t.ClaimedBy}
	}
	return fmt.Errorf("ticket store: claim: channel %s is %s", channelID, t.Status)
}

func (s *SQLiteStore) Close(channelID string, at time.Time) error {
	result, err := s.db.Exec(`
		UPDATE tickets SET status = 'closed', closed_at = ?
		WHERE channel_id = ? AND status != 'closed'
	`, at.Format(time.RFC3339), channelID)
	if err != nil {
		return fmt.Errorf("ticket store: close: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.Get(channelID); err != nil {
		return err
	}
	return ErrAlreadyClosed
}

func (s *SQLiteStore) ListOpen() ([]*protocol.Ticket, error) {
	rows, err := s.db.Query(selectCols + ` WHERE status != 'closed' ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list open: %w", err)
	}
	defer rows.Close()

	var tickets []*protocol.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("ticket store: list scan: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *SQLiteStore) Delete(channelID string) error {
	_, err := s.db.Exec(`DELETE FROM tickets WHERE channel_id = ?`, channelID)
	if err != nil {
		return fmt.Errorf("ticket store: delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ScheduleDeletion(channelID string, after time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO pending_deletions (channel_id, delete_after) VALUES (?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET delete_after = excluded.delete_after
	`, channelID, after.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ticket store: schedule deletion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DueDeletions(now time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT channel_id FROM pending_deletions WHERE delete_after <= ?`,
		now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("ticket store: due deletions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ticket store: due scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) ClearDeletion(channelID string) error {
	_, err := s.db.Exec(`DELETE FROM pending_deletions WHERE channel_id = ?`, channelID)
	if err != nil {
		return fmt.Errorf("ticket store: clear deletion: %w", err)
	}
	return nil
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- helpers ---

const selectCols = `SELECT channel_id, guild_id, kind, opener_id, type, pay_type, staff_role_id, claimed_by, status, created_at, closed_at FROM tickets`

type scannable interface {
	Scan(dest ...any) error
}

func scanTicket(row scannable) (*protocol.Ticket, error) {
	var t protocol.Ticket
	var kind, status, createdAtStr string
	var closedAtStr *string

	err := row.Scan(&t.ChannelID, &t.GuildID, &kind, &t.OpenerID, &t.Type, &t.PayType,
		&t.StaffRoleID, &t.ClaimedBy, &status, &createdAtStr, &closedAtStr)
	if err != nil {
		return nil, err
	}

	t.Kind = protocol.TicketKind(kind)
	t.Status = protocol.TicketStatus(status)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	if closedAtStr != nil {
		ct, _ := time.Parse(time.RFC3339, *closedAtStr)
		t.ClosedAt = &ct
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
