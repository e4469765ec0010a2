// Package lifecycle drives ticket and order channels through
// Open → Claimed → Closed. Transitions are authorized against the staff role
// recorded for the channel, applied atomically in the ticket store, and
// fanned out to the transcript generator and notification sink. Secondary
// side effects never block a transition: each is attempted independently and
// failures are logged and swallowed.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nordshop/nsbot/internal/config"
	"github.com/nordshop/nsbot/internal/notify"
	"github.com/nordshop/nsbot/internal/platform"
	"github.com/nordshop/nsbot/internal/ticket"
	"github.com/nordshop/nsbot/internal/topic"
	"github.com/nordshop/nsbot/pkg/protocol"
)

// closeDeleteDelay is how long a closed channel lingers before the sweeper
// removes it.
const closeDeleteDelay = 2500 * time.Millisecond

// ErrUnauthorized means the actor lacks the staff role for this channel
// (or is not the opener, for ratings). Reported to the actor only; nothing
// is mutated or logged.
var ErrUnauthorized = errors.New("lifecycle: not authorized")

// ErrStaffTarget means an add/remove-user action targeted a staff member.
var ErrStaffTarget = errors.New("lifecycle: target holds a staff role")

// ErrNotManaged means the channel carries no ticket record and its topic
// decodes to nothing.
var ErrNotManaged = errors.New("lifecycle: channel is not a managed ticket")

// ConfigError means a required id is missing from configuration. Fatal to
// the operation, not the process.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("lifecycle: missing configuration: %s", e.Missing)
}

// AlreadyClaimedError reports a rejected second claim, with the claimer's
// display name when it could be resolved.
type AlreadyClaimedError struct {
	ClaimerID   string
	ClaimerName string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("lifecycle: already claimed by %s", e.ClaimerID)
}

// Engine is the ticket/order lifecycle state machine.
type Engine struct {
	store  ticket.Store
	client platform.Client
	sink   *notify.Sink
	cfg    *config.Manager
	logger *slog.Logger
	now    func() time.Time
}

// New creates an engine. logger may be nil.
func New(store ticket.Store, client platform.Client, sink *notify.Sink, cfg *config.Manager, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		client: client,
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// OpenTicket creates a ticket channel for the opener, enforcing one open
// ticket per (opener, type). The record is reserved in the store before any
// channel exists, so two simultaneous requests cannot both create one.
func (e *Engine) OpenTicket(guildID, openerID, typeKey string) (*protocol.Ticket, error) {
	cfg := e.cfg.Current()

	tt, ok := cfg.TicketType(typeKey)
	if !ok {
		return nil, &ConfigError{Missing: "ticket type " + typeKey}
	}
	staffRole := tt.StaffRoleID
	if staffRole == "" {
		staffRole = cfg.Tickets.FallbackStaffRoleID
	}
	if staffRole == "" {
		return nil, &ConfigError{Missing: "staff role for ticket type " + typeKey}
	}
	if cfg.Tickets.CategoryID == "" {
		return nil, &ConfigError{Missing: "tickets.category_id"}
	}

	topicStr := topic.Append("", topic.TicketTag(openerID, typeKey))
	topicStr = topic.Append(topicStr, topic.StaffRoleTag(staffRole))

	return e.open(cfg, &protocol.Ticket{
		GuildID:     guildID,
		Kind:        protocol.KindTicket,
		OpenerID:    openerID,
		Type:        typeKey,
		StaffRoleID: staffRole,
	}, cfg.Tickets.CategoryID, cfg.Tickets.NameFormat, topicStr)
}

// OpenOrder creates an order channel for the opener with the chosen payment
// method. Uniqueness is per (opener, order type), independent of tickets.
func (e *Engine) OpenOrder(guildID, openerID, orderType, payType string) (*protocol.Ticket, error) {
	cfg := e.cfg.Current()

	ot, ok := cfg.OrderType(orderType)
	if !ok {
		return nil, &ConfigError{Missing: "order type " + orderType}
	}
	if _, ok := cfg.PayMethod(payType); !ok {
		return nil, &ConfigError{Missing: "payment method " + payType}
	}
	staffRole := ot.StaffRoleID
	if staffRole == "" {
		staffRole = cfg.Orders.FallbackStaffRoleID
	}
	if staffRole == "" {
		return nil, &ConfigError{Missing: "staff role for order type " + orderType}
	}
	if cfg.Orders.CategoryID == "" {
		return nil, &ConfigError{Missing: "orders.category_id"}
	}

	topicStr := topic.Append("", topic.OrderTag(openerID, orderType, payType))
	topicStr = topic.Append(topicStr, topic.StaffRoleTag(staffRole))

	return e.open(cfg, &protocol.Ticket{
		GuildID:     guildID,
		Kind:        protocol.KindOrder,
		OpenerID:    openerID,
		Type:        orderType,
		PayType:     payType,
		StaffRoleID: staffRole,
	}, cfg.Orders.CategoryID, cfg.Orders.NameFormat, topicStr)
}

func (e *Engine) open(cfg *config.Config, rec *protocol.Ticket, categoryID, nameFormat, topicStr string) (*protocol.Ticket, error) {
	// Honor channels that predate the record store.
	if ch, found := e.findOpenByScan(rec.GuildID, rec.OpenerID, rec.Kind, rec.Type, categoryID); found {
		e.adoptChannel(ch, rec.Kind, cfg)
		return nil, &ticket.DuplicateOpenError{ChannelID: ch.ID}
	}

	// Reserve the (opener, kind, type) slot before creating anything; the
	// store's unique index is what makes the check race-free.
	rec.ChannelID = ticket.ReservationPrefix + uuid.NewString()
	rec.Status = protocol.TicketOpen
	rec.CreatedAt = e.now()
	if err := e.store.CreateOpen(rec); err != nil {
		return nil, err
	}

	openerName, err := e.client.MemberName(rec.GuildID, rec.OpenerID)
	if err != nil {
		openerName = rec.OpenerID
	}

	ch, err := e.client.CreateChannel(rec.GuildID, platform.ChannelCreate{
		Name:     channelName(nameFormat, rec.Type, openerName),
		Topic:    topicStr,
		ParentID: categoryID,
		Overwrites: []platform.Overwrite{
			// @everyone shares the guild id; hidden from everyone else.
			{TargetID: rec.GuildID, Kind: platform.OverwriteRole, Deny: platform.PermView},
			{TargetID: rec.OpenerID, Kind: platform.OverwriteMember, Allow: platform.PermView | platform.PermSend},
			{TargetID: rec.StaffRoleID, Kind: platform.OverwriteRole, Allow: platform.PermView | platform.PermSend},
		},
	})
	if err != nil {
		// Roll back the reservation; no retry, the caller sees the failure.
		if derr := e.store.Delete(rec.ChannelID); derr != nil {
			e.logger.Error("reservation rollback failed", "channel", rec.ChannelID, "error", derr)
		}
		return nil, fmt.Errorf("lifecycle: create channel: %w", err)
	}

	if err := e.store.Rebind(rec.ChannelID, ch.ID); err != nil {
		e.logger.Error("record rebind failed", "reserved", rec.ChannelID, "channel", ch.ID, "error", err)
	}
	rec.ChannelID = ch.ID

	e.logger.Info("channel opened",
		"channel", ch.ID, "kind", string(rec.Kind), "type", rec.Type, "opener", rec.OpenerID)
	return rec, nil
}

// channelName renders a name format, substituting {type} and {user}.
func channelName(format, typ, user string) string {
	name := strings.ReplaceAll(format, "{type}", typ)
	name = strings.ReplaceAll(name, "{user}", user)
	name = strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	return name
}

// authorize checks that the actor holds the channel's staff role or the
// configured fallback for its kind.
func (e *Engine) authorize(cfg *config.Config, rec *protocol.Ticket, actorID string) error {
	roles, err := e.client.MemberRoles(rec.GuildID, actorID)
	if err != nil {
		return fmt.Errorf("lifecycle: role lookup: %w", err)
	}
	required := rec.StaffRoleID
	if required == "" {
		required = e.fallbackRole(cfg, rec.Kind)
	}
	if required == "" {
		return &ConfigError{Missing: "staff role"}
	}
	for _, r := range roles {
		if r == required {
			return nil
		}
	}
	return ErrUnauthorized
}

func (e *Engine) fallbackRole(cfg *config.Config, kind protocol.TicketKind) string {
	if kind == protocol.KindOrder {
		return cfg.Orders.FallbackStaffRoleID
	}
	return cfg.Tickets.FallbackStaffRoleID
}

func (e *Engine) logChannel(cfg *config.Config, kind protocol.TicketKind) string {
	if kind == protocol.KindOrder {
		return cfg.Orders.LogChannelID
	}
	return cfg.Tickets.LogChannelID
}
