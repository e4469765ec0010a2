package lifecycle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/nordshop/nsbot/internal/customid"
	"github.com/nordshop/nsbot/internal/platform"
	"github.com/nordshop/nsbot/internal/ticket"
	"github.com/nordshop/nsbot/internal/topic"
	"github.com/nordshop/nsbot/internal/transcript"
	"github.com/nordshop/nsbot/pkg/protocol"
)

// ClaimResult is returned on a successful claim.
type ClaimResult struct {
	Ticket      *protocol.Ticket
	ClaimerName string
}

// Claim records the actor as the channel's handler. Claiming is first-wins:
// a second attempt returns AlreadyClaimedError naming the existing claimer
// and changes nothing.
func (e *Engine) Claim(channelID, actorID string) (*ClaimResult, error) {
	rec, err := e.record(channelID)
	if err != nil {
		return nil, err
	}
	cfg := e.cfg.Current()
	if err := e.authorize(cfg, rec, actorID); err != nil {
		return nil, err
	}

	if err := e.store.Claim(channelID, actorID); err != nil {
		var ac *ticket.AlreadyClaimedError
		if errors.As(err, &ac) {
			name, nerr := e.client.MemberName(rec.GuildID, ac.ClaimerID)
			if nerr != nil {
				name = ""
			}
			return nil, &AlreadyClaimedError{ClaimerID: ac.ClaimerID, ClaimerName: name}
		}
		return nil, err
	}
	rec.ClaimedBy = actorID
	rec.Status = protocol.TicketClaimed

	claimerName, err := e.client.MemberName(rec.GuildID, actorID)
	if err != nil {
		claimerName = actorID
	}

	// Mirror the claim into the topic tags; lossy and best-effort.
	if ch, err := e.client.Channel(channelID); err == nil {
		if _, claimed := topic.DecodeClaimed(ch.Topic); !claimed {
			if err := e.client.SetTopic(channelID, topic.Append(ch.Topic, topic.ClaimedTag(actorID))); err != nil {
				e.logger.Error("topic mirror update failed", "channel", channelID, "error", err)
			}
		}
	}

	if _, err := e.client.SendMessage(channelID, platform.Outbound{
		Content: fmt.Sprintf("%s will be assisting you today.", claimerName),
	}); err != nil {
		e.logger.Error("assistance message failed", "channel", channelID, "error", err)
	}

	e.sink.LogEvent(e.logChannel(cfg, rec.Kind), platform.Outbound{
		Content: fmt.Sprintf("Claimed: <#%s> by %s (%s %s, opener <@%s>)",
			channelID, claimerName, rec.Kind, rec.Type, rec.OpenerID),
	})
	e.logger.Info("claimed", "channel", channelID, "claimer", actorID)

	return &ClaimResult{Ticket: rec, ClaimerName: claimerName}, nil
}

// ToggleUser adds a user to the channel if absent, removes them if present.
// Staff members are refused as targets.
func (e *Engine) ToggleUser(channelID, actorID, targetID string) (added bool, err error) {
	rec, err := e.record(channelID)
	if err != nil {
		return false, err
	}
	cfg := e.cfg.Current()
	if err := e.authorize(cfg, rec, actorID); err != nil {
		return false, err
	}

	targetRoles, err := e.client.MemberRoles(rec.GuildID, targetID)
	if err != nil {
		return false, fmt.Errorf("lifecycle: target role lookup: %w", err)
	}
	for _, r := range targetRoles {
		for _, staff := range cfg.StaffRoleIDs() {
			if r == staff {
				return false, ErrStaffTarget
			}
		}
	}

	ch, err := e.client.Channel(channelID)
	if err != nil {
		return false, fmt.Errorf("lifecycle: channel lookup: %w", err)
	}
	present := false
	for _, o := range ch.Overwrites {
		if o.Kind == platform.OverwriteMember && o.TargetID == targetID {
			present = true
			break
		}
	}

	if present {
		if err := e.client.ClearPermission(channelID, targetID); err != nil {
			return false, fmt.Errorf("lifecycle: remove user: %w", err)
		}
	} else {
		if err := e.client.SetPermission(channelID, targetID, platform.OverwriteMember,
			platform.PermView|platform.PermSend, 0); err != nil {
			return false, fmt.Errorf("lifecycle: add user: %w", err)
		}
	}

	e.logger.Info("user toggled", "channel", channelID, "target", targetID, "added", !present)
	return !present, nil
}

// CloseResult is returned on a successful close.
type CloseResult struct {
	Ticket           *protocol.Ticket
	TranscriptFailed bool
	TranscriptParts  int
}

// Close ends the lifecycle: generate a transcript, log the closure with it
// attached, notify the opener, and schedule the channel for deletion. The
// transcript and every notification are best-effort; only the store update
// itself can fail the transition.
func (e *Engine) Close(channelID, actorID string) (*CloseResult, error) {
	rec, err := e.record(channelID)
	if err != nil {
		return nil, err
	}
	cfg := e.cfg.Current()
	if err := e.authorize(cfg, rec, actorID); err != nil {
		return nil, err
	}
	// A closed channel lingers until the sweeper removes it; a second close
	// in that window must not re-fire the transcript and notifications.
	if rec.Status == protocol.TicketClosed {
		return nil, ticket.ErrAlreadyClosed
	}

	chName := channelID
	if ch, cerr := e.client.Channel(channelID); cerr == nil && ch.Name != "" {
		chName = ch.Name
	}

	// Collect history while the channel is still alive. Failure degrades to
	// a placeholder document; closure is never blocked by it.
	msgs, terr := transcript.Collect(e.client, channelID)
	failed := terr != nil
	if failed {
		e.logger.Error("transcript collection failed", "channel", channelID, "error", terr)
	}

	if err := e.store.Close(channelID, e.now()); err != nil {
		return nil, err
	}

	handlerID := rec.ClaimedBy
	if handlerID == "" {
		handlerID = actorID
	}
	closerName, nerr := e.client.MemberName(rec.GuildID, actorID)
	if nerr != nil {
		closerName = actorID
	}

	result := &CloseResult{Ticket: rec, TranscriptFailed: failed}
	logChan := e.logChannel(cfg, rec.Kind)

	if rec.Kind == protocol.KindOrder {
		chunks := transcript.RenderChunks(msgs)
		if failed {
			chunks = transcript.FailedChunks()
		}
		result.TranscriptParts = len(chunks)

		e.sink.LogEvent(logChan, platform.Outbound{
			Content: fmt.Sprintf("Closed: %s (order %s, %s) by %s, transcript follows in %d part(s)",
				chName, rec.Type, rec.PayType, closerName, len(chunks)),
		})
		for _, chunk := range chunks {
			e.sink.LogEvent(logChan, platform.Outbound{Content: "```\n" + chunk + "\n```"})
		}
		e.sink.DirectMessage(rec.OpenerID, platform.Outbound{
			Content: fmt.Sprintf("Your order channel **%s** has been closed. Thank you for your purchase!", chName),
		})
	} else {
		parts := transcript.RenderDocument(chName, msgs)
		if failed {
			parts = transcript.FailedDocument(chName)
		}
		result.TranscriptParts = len(parts)

		e.sink.LogEvent(logChan, platform.Outbound{
			Content: fmt.Sprintf("Closed: %s (ticket %s) by %s, transcript attached",
				chName, rec.Type, closerName),
			Files: partFiles(parts),
		})
		e.sink.DirectMessage(rec.OpenerID, platform.Outbound{
			Content: fmt.Sprintf("Your ticket **%s** has been closed. The transcript is attached. How did we do? Rate your experience:", chName),
			Files:   partFiles(parts),
			Buttons: ratingButtons(channelID, rec.OpenerID, handlerID, false),
		})
	}

	// Durable deletion entry; the sweeper removes the channel after the
	// delay even across a restart.
	if err := e.store.ScheduleDeletion(channelID, e.now().Add(closeDeleteDelay)); err != nil {
		e.logger.Error("deletion scheduling failed", "channel", channelID, "error", err)
	}

	e.logger.Info("closed", "channel", channelID, "closer", actorID, "transcript_failed", failed)
	return result, nil
}

// Rate accepts a 1-5 score from the ticket opener. Any other actor is
// rejected without side effect. The rating is logged, not persisted.
func (e *Engine) Rate(ref customid.RateRef, actorID string) error {
	if actorID != ref.OpenerID {
		return ErrUnauthorized
	}

	r := protocol.Rating{
		ChannelID: ref.ChannelID,
		OpenerID:  ref.OpenerID,
		HandlerID: ref.HandlerID,
		Score:     ref.Score,
		At:        e.now(),
	}
	cfg := e.cfg.Current()
	e.sink.LogEvent(cfg.Tickets.LogChannelID, platform.Outbound{
		Content: fmt.Sprintf("Rating: %d/5 for <#%s> (handled by <@%s>)", r.Score, r.ChannelID, r.HandlerID),
	})
	e.logger.Info("rating submitted",
		"channel", r.ChannelID, "score", r.Score, "handler", r.HandlerID)
	return nil
}

// RatingButtons builds the 1-5 rating controls for a closed ticket,
// optionally disabled (after a rating lands they are disabled in place).
func ratingButtons(channelID, openerID, handlerID string, disabled bool) []platform.Button {
	buttons := make([]platform.Button, 5)
	for i := range buttons {
		buttons[i] = platform.Button{
			Label: fmt.Sprintf("%d", i+1),
			CustomID: customid.Rate(customid.RateRef{
				ChannelID: channelID,
				OpenerID:  openerID,
				HandlerID: handlerID,
				Score:     i + 1,
			}),
			Disabled: disabled,
		}
	}
	return buttons
}

func partFiles(parts []transcript.Part) []platform.File {
	files := make([]platform.File, len(parts))
	for i, p := range parts {
		files[i] = platform.File{
			Name:        p.Name,
			ContentType: "text/html",
			Reader:      bytes.NewReader(p.Data),
		}
	}
	return files
}
