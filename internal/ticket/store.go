package ticket

import (
	"errors"
	"fmt"
	"time"

	"github.com/nordshop/nsbot/pkg/protocol"
)

// ErrNotFound is returned when no record exists for a channel.
var ErrNotFound = errors.New("ticket: not found")

// ErrAlreadyClosed is returned by Claim and Close when the record is
// already closed.
var ErrAlreadyClosed = errors.New("ticket: already closed")

// ReservationPrefix marks provisional channel ids used to reserve an open
// slot before the platform channel exists. A reservation lives only for the
// duration of a single open call; any found at startup is a crash leftover.
const ReservationPrefix = "pending:"

// AlreadyClaimedError is returned by Claim when the ticket has a claimer.
type AlreadyClaimedError struct {
	ClaimerID string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("ticket: already claimed by %s", e.ClaimerID)
}

// DuplicateOpenError is returned by CreateOpen when the opener already has
// an open ticket of the same kind and type.
type DuplicateOpenError struct {
	ChannelID string // the existing open channel
}

func (e *DuplicateOpenError) Error() string {
	return fmt.Sprintf("ticket: duplicate open ticket in channel %s", e.ChannelID)
}

// Store is the persistence interface for ticket/order channel records and
// the durable deletion queue.
type Store interface {
	// CreateOpen inserts a new open record. The one-open-per-(opener,kind,type)
	// rule is enforced here atomically; a violation yields *DuplicateOpenError.
	CreateOpen(t *protocol.Ticket) error
	// Rebind moves a record to its final channel id once the platform has
	// assigned one. Records are reserved under a provisional id first so the
	// uniqueness check happens before any channel is created.
	Rebind(oldChannelID, newChannelID string) error
	// Get retrieves a record by channel id. Returns ErrNotFound if absent.
	Get(channelID string) (*protocol.Ticket, error)
	// FindOpen returns the opener's non-closed record of the given kind and
	// type, or ErrNotFound.
	FindOpen(openerID string, kind protocol.TicketKind, typ string) (*protocol.Ticket, error)
	// Claim records the first claimer. A second claim yields
	// *AlreadyClaimedError carrying the existing claimer; the stored
	// claimer is never overwritten. Claiming a closed record yields
	// ErrAlreadyClosed.
	Claim(channelID, staffID string) error
	// Close marks a record closed. Closing is terminal; a second close
	// yields ErrAlreadyClosed.
	Close(channelID string, at time.Time) error
	// ListOpen returns all non-closed records, newest first.
	ListOpen() ([]*protocol.Ticket, error)
	// Delete removes a record outright (used to roll back a reservation
	// when channel creation fails).
	Delete(channelID string) error

	// ScheduleDeletion persists a delete-after timestamp for a channel so a
	// restart does not lose the scheduled cleanup.
	ScheduleDeletion(channelID string, after time.Time) error
	// DueDeletions returns channel ids whose delete-after time has passed.
	DueDeletions(now time.Time) ([]string, error)
	// ClearDeletion removes a pending deletion entry.
	ClearDeletion(channelID string) error
}
