package protocol

import "time"

// TicketStatus is the lifecycle state of a ticket or order channel.
type TicketStatus string

const (
	TicketOpen    TicketStatus = "open"
	TicketClaimed TicketStatus = "claimed"
	TicketClosed  TicketStatus = "closed"
)

// TicketKind distinguishes support tickets from commission orders.
type TicketKind string

const (
	KindTicket TicketKind = "ticket"
	KindOrder  TicketKind = "order"
)

// Ticket is the persistent record for one ticket or order channel.
// The channel id doubles as the record key: the platform guarantees
// channel ids are unique, so there is never more than one record per
// channel.
type Ticket struct {
	ChannelID   string       `json:"channel_id"`
	GuildID     string       `json:"guild_id"`
	Kind        TicketKind   `json:"kind"`
	OpenerID    string       `json:"opener_id"`
	Type        string       `json:"type"`               // ticket category or order type slug
	PayType     string       `json:"pay_type,omitempty"` // orders only
	StaffRoleID string       `json:"staff_role_id"`
	ClaimedBy   string       `json:"claimed_by,omitempty"`
	Status      TicketStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	ClosedAt    *time.Time   `json:"closed_at,omitempty"`
}

// Claimed reports whether the ticket has been claimed by a staff member.
func (t *Ticket) Claimed() bool { return t.ClaimedBy != "" }

// Rating is an opener-submitted 1-5 score for a closed ticket.
// Ratings are logged, not persisted.
type Rating struct {
	ChannelID string    `json:"channel_id"`
	OpenerID  string    `json:"opener_id"`
	HandlerID string    `json:"handler_id"`
	Score     int       `json:"score"`
	At        time.Time `json:"at"`
}
