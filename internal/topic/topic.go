// Package topic encodes structured ticket state into a channel's free-text
// topic field. The SQLite record is the source of truth for lifecycle state;
// the topic tags are a best-effort mirror kept for display and so channels
// created before the record store existed can still be recognized.
package topic

import "regexp"

// MaxLen is the platform's cap on a channel topic. A tag that would push
// the topic past this length is dropped whole; earlier tags are never
// rewritten.
const MaxLen = 1024

// Separator joins tags inside a topic. Tag values must not contain it;
// ids are numeric and type slugs are validated upstream, so no escaping
// is done here.
const Separator = " | "

var (
	ticketRe    = regexp.MustCompile(`ns_ticket:(\d{5,}):([A-Za-z0-9_-]+)`)
	orderRe     = regexp.MustCompile(`ns_order:(\d{5,}):([A-Za-z0-9_-]+):([A-Za-z0-9_-]+)`)
	staffRoleRe = regexp.MustCompile(`ns_staffrole:(\d{5,})`)
	claimedRe   = regexp.MustCompile(`ns_claimed:(\d{5,})`)
)

// TicketTag builds an ns_ticket tag for a ticket channel.
func TicketTag(openerID, typ string) string {
	return "ns_ticket:" + openerID + ":" + typ
}

// OrderTag builds an ns_order tag for an order channel.
func OrderTag(openerID, orderType, payType string) string {
	return "ns_order:" + openerID + ":" + orderType + ":" + payType
}

// StaffRoleTag builds an ns_staffrole tag.
func StaffRoleTag(roleID string) string {
	return "ns_staffrole:" + roleID
}

// ClaimedTag builds an ns_claimed tag.
func ClaimedTag(staffID string) string {
	return "ns_claimed:" + staffID
}

// Append adds a tag to an existing topic, preserving everything already
// there. A tag that does not fit under MaxLen is dropped whole; cutting it
// short could leave a shortened id that still decodes and would mirror the
// wrong value.
func Append(prior, tag string) string {
	s := tag
	if prior != "" {
		s = prior + Separator + tag
	}
	if len(s) > MaxLen {
		return prior
	}
	return s
}

// TicketFields are the decoded fields of an ns_ticket tag.
type TicketFields struct {
	OpenerID string
	Type     string
}

// OrderFields are the decoded fields of an ns_order tag.
type OrderFields struct {
	OpenerID  string
	OrderType string
	PayType   string
}

// DecodeTicket extracts the first ns_ticket tag from a topic.
// A missing or malformed topic yields ok=false, never an error.
func DecodeTicket(topic string) (TicketFields, bool) {
	m := ticketRe.FindStringSubmatch(topic)
	if m == nil {
		return TicketFields{}, false
	}
	return TicketFields{OpenerID: m[1], Type: m[2]}, true
}

// DecodeOrder extracts the first ns_order tag from a topic.
func DecodeOrder(topic string) (OrderFields, bool) {
	m := orderRe.FindStringSubmatch(topic)
	if m == nil {
		return OrderFields{}, false
	}
	return OrderFields{OpenerID: m[1], OrderType: m[2], PayType: m[3]}, true
}

// DecodeStaffRole extracts the first ns_staffrole tag from a topic.
func DecodeStaffRole(topic string) (string, bool) {
	m := staffRoleRe.FindStringSubmatch(topic)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DecodeClaimed extracts the first ns_claimed tag from a topic.
// Presence of the tag is the mirror's claimed signal.
func DecodeClaimed(topic string) (string, bool) {
	m := claimedRe.FindStringSubmatch(topic)
	if m == nil {
		return "", false
	}
	return m[1], true
}
