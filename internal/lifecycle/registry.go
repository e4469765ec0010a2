package lifecycle

import (
	"errors"

	"github.com/nordshop/nsbot/internal/config"
	"github.com/nordshop/nsbot/internal/platform"
	"github.com/nordshop/nsbot/internal/ticket"
	"github.com/nordshop/nsbot/internal/topic"
	"github.com/nordshop/nsbot/pkg/protocol"
)

// record loads the ticket record for a channel. Channels created before the
// record store existed are adopted from their topic tags on first touch.
func (e *Engine) record(channelID string) (*protocol.Ticket, error) {
	rec, err := e.store.Get(channelID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ticket.ErrNotFound) {
		return nil, err
	}

	ch, cerr := e.client.Channel(channelID)
	if cerr != nil {
		return nil, ErrNotManaged
	}
	cfg := e.cfg.Current()
	rec = recordFromTopic(ch, cfg)
	if rec == nil {
		return nil, ErrNotManaged
	}

	e.adoptChannel(ch, rec.Kind, cfg)
	if adopted, err := e.store.Get(channelID); err == nil {
		return adopted, nil
	}
	return rec, nil
}

// adoptChannel inserts a store record for a tag-only channel so future
// lookups skip the topic shim. Best-effort: a conflict or platform error
// just leaves the channel tag-backed.
func (e *Engine) adoptChannel(ch platform.Channel, kind protocol.TicketKind, cfg *config.Config) {
	rec := recordFromTopic(ch, cfg)
	if rec == nil {
		return
	}
	claimer := rec.ClaimedBy
	rec.ClaimedBy = ""
	rec.Status = protocol.TicketOpen
	rec.CreatedAt = e.now()
	if err := e.store.CreateOpen(rec); err != nil {
		var dup *ticket.DuplicateOpenError
		if !errors.As(err, &dup) {
			e.logger.Warn("channel adoption failed", "channel", ch.ID, "error", err)
		}
		return
	}
	if claimer != "" {
		if err := e.store.Claim(ch.ID, claimer); err != nil {
			e.logger.Warn("adopted claim not recorded", "channel", ch.ID, "error", err)
		}
	}
	e.logger.Info("channel adopted from topic tags", "channel", ch.ID, "kind", string(kind))
}

// recordFromTopic rebuilds a record from a channel's topic tags. Returns nil
// when the topic decodes to nothing; a malformed topic is "no state", never
// an error.
func recordFromTopic(ch platform.Channel, cfg *config.Config) *protocol.Ticket {
	rec := &protocol.Ticket{
		ChannelID: ch.ID,
		GuildID:   ch.GuildID,
		Status:    protocol.TicketOpen,
	}

	if tf, ok := topic.DecodeTicket(ch.Topic); ok {
		rec.Kind = protocol.KindTicket
		rec.OpenerID = tf.OpenerID
		rec.Type = tf.Type
	} else if of, ok := topic.DecodeOrder(ch.Topic); ok {
		rec.Kind = protocol.KindOrder
		rec.OpenerID = of.OpenerID
		rec.Type = of.OrderType
		rec.PayType = of.PayType
	} else {
		return nil
	}

	if role, ok := topic.DecodeStaffRole(ch.Topic); ok {
		rec.StaffRoleID = role
	} else if rec.Kind == protocol.KindOrder {
		rec.StaffRoleID = cfg.Orders.FallbackStaffRoleID
	} else {
		rec.StaffRoleID = cfg.Tickets.FallbackStaffRoleID
	}
	if claimer, ok := topic.DecodeClaimed(ch.Topic); ok {
		rec.ClaimedBy = claimer
		rec.Status = protocol.TicketClaimed
	}
	return rec
}

// findOpenByScan looks for an open channel of (opener, kind, type) by
// listing the category's channels fresh and decoding each topic. Linear in
// guild channel count; kept only as a compatibility shim for channels that
// predate the record store.
func (e *Engine) findOpenByScan(guildID, openerID string, kind protocol.TicketKind, typ, categoryID string) (platform.Channel, bool) {
	chans, err := e.client.GuildChannels(guildID)
	if err != nil {
		e.logger.Warn("channel scan failed", "guild", guildID, "error", err)
		return platform.Channel{}, false
	}
	for _, ch := range chans {
		if ch.ParentID != categoryID {
			continue
		}
		if _, err := e.store.Get(ch.ID); err == nil {
			continue // already record-backed; the store check covered it
		}
		switch kind {
		case protocol.KindTicket:
			if tf, ok := topic.DecodeTicket(ch.Topic); ok && tf.OpenerID == openerID && tf.Type == typ {
				return ch, true
			}
		case protocol.KindOrder:
			if of, ok := topic.DecodeOrder(ch.Topic); ok && of.OpenerID == openerID && of.OrderType == typ {
				return ch, true
			}
		}
	}
	return platform.Channel{}, false
}
