package dashboard

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/nordshop/nsbot/internal/customid"
	"github.com/nordshop/nsbot/internal/lifecycle"
	"github.com/nordshop/nsbot/internal/ticket"
)

// HandleInteraction is the single entry point wired to the discordgo
// InteractionCreate event. Component ids that do not carry the bot's prefix
// are ignored without a response so other bots' components pass through.
func (h *Handler) HandleInteraction(s Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		h.handleCommand(s, i)
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if !customid.Recognized(data.CustomID) {
			return
		}
		h.handleComponent(s, i, data)
	}
}

func (h *Handler) handleComponent(s Session, i *discordgo.InteractionCreate, data discordgo.MessageComponentInteractionData) {
	switch {
	case data.CustomID == customid.Dashboard:
		h.onDashboardSelect(s, i, data)
	case data.CustomID == customid.OrderType:
		h.onOrderTypeSelect(s, i, data)
	case data.CustomID == customid.Actions:
		h.onAction(s, i, data)
	case data.CustomID == customid.UserToggle:
		h.onUserToggle(s, i, data)
	default:
		if orderType, ok := customid.ParseOrderPay(data.CustomID); ok {
			h.onOrderPaySelect(s, i, data, orderType)
			return
		}
		if ref, ok := customid.ParseRate(data.CustomID); ok {
			h.onRate(s, i, ref)
			return
		}
		// Recognized prefix but unknown shape: stale component from an older
		// deployment. Acknowledge silently.
		h.ack(s, i)
	}
}

func (h *Handler) onDashboardSelect(s Session, i *discordgo.InteractionCreate, data discordgo.MessageComponentInteractionData) {
	if len(data.Values) == 0 {
		h.ack(s, i)
		return
	}
	rec, err := h.engine.OpenTicket(i.GuildID, actorID(i), data.Values[0])
	if err != nil {
		h.respondError(s, i, err)
		return
	}
	h.postWelcome(s, rec)
	h.ephemeral(s, i, fmt.Sprintf("Your ticket is ready: <#%s>", rec.ChannelID))
}

func (h *Handler) onOrderTypeSelect(s Session, i *discordgo.InteractionCreate, data discordgo.MessageComponentInteractionData) {
	if len(data.Values) == 0 {
		h.ack(s, i)
		return
	}
	orderType := data.Values[0]
	cfg := h.cfg.Current()
	opts := make([]discordgo.SelectMenuOption, 0, len(cfg.Orders.PayMethods))
	for _, pm := range cfg.Orders.PayMethods {
		opts = append(opts, discordgo.SelectMenuOption{Label: pm.Label, Value: pm.Key})
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "How would you like to pay?",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						MenuType:    discordgo.StringSelectMenu,
						CustomID:    customid.OrderPay(orderType),
						Placeholder: "Payment method...",
						Options:     opts,
					},
				}},
			},
		},
	})
	if err != nil {
		h.logger.Error("payment prompt failed", "error", err)
	}
}

func (h *Handler) onOrderPaySelect(s Session, i *discordgo.InteractionCreate, data discordgo.MessageComponentInteractionData, orderType string) {
	if len(data.Values) == 0 {
		h.ack(s, i)
		return
	}
	rec, err := h.engine.OpenOrder(i.GuildID, actorID(i), orderType, data.Values[0])
	if err != nil {
		h.respondError(s, i, err)
		return
	}
	h.postWelcome(s, rec)
	h.ephemeral(s, i, fmt.Sprintf("Your order channel is ready: <#%s>", rec.ChannelID))
}

func (h *Handler) onAction(s Session, i *discordgo.InteractionCreate, data discordgo.MessageComponentInteractionData) {
	if len(data.Values) == 0 {
		h.ack(s, i)
		return
	}
	switch data.Values[0] {
	case customid.ActionClaim:
		res, err := h.engine.Claim(i.ChannelID, actorID(i))
		if err != nil {
			h.respondError(s, i, err)
			return
		}
		// Rewrite the menu in place so the claimer is visible on the control.
		err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content: i.Message.Content,
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{Components: []discordgo.MessageComponent{
						actionsMenu(res.ClaimerName),
					}},
					discordgo.ActionsRow{Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							MenuType:    discordgo.UserSelectMenu,
							CustomID:    customid.UserToggle,
							Placeholder: "Add or remove a user",
						},
					}},
				},
			},
		})
		if err != nil {
			h.logger.Error("claim menu update failed", "channel", i.ChannelID, "error", err)
		}
	case customid.ActionClose:
		if _, err := h.engine.Close(i.ChannelID, actorID(i)); err != nil {
			h.respondError(s, i, err)
			return
		}
		h.ephemeral(s, i, "Closing this channel. A transcript has been logged.")
	default:
		h.ack(s, i)
	}
}

func (h *Handler) onUserToggle(s Session, i *discordgo.InteractionCreate, data discordgo.MessageComponentInteractionData) {
	if len(data.Values) == 0 {
		h.ack(s, i)
		return
	}
	targetID := data.Values[0]
	added, err := h.engine.ToggleUser(i.ChannelID, actorID(i), targetID)
	if err != nil {
		h.respondError(s, i, err)
		return
	}
	if added {
		h.ephemeral(s, i, fmt.Sprintf("Added <@%s> to this channel.", targetID))
	} else {
		h.ephemeral(s, i, fmt.Sprintf("Removed <@%s> from this channel.", targetID))
	}
}

func (h *Handler) onRate(s Session, i *discordgo.InteractionCreate, ref customid.RateRef) {
	if err := h.engine.Rate(ref, actorID(i)); err != nil {
		h.respondError(s, i, err)
		return
	}
	// Disable the buttons in place so a rating lands once.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("Thanks for the feedback! You rated this %d/5.", ref.Score),
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: ratingButtonRow(ref, true)},
			},
		},
	})
	if err != nil {
		h.logger.Error("rating update failed", "error", err)
	}
}

func ratingButtonRow(ref customid.RateRef, disabled bool) []discordgo.MessageComponent {
	row := make([]discordgo.MessageComponent, 0, 5)
	for score := 1; score <= 5; score++ {
		r := ref
		r.Score = score
		row = append(row, discordgo.Button{
			Label:    fmt.Sprintf("%d", score),
			Style:    discordgo.PrimaryButton,
			CustomID: customid.Rate(r),
			Disabled: disabled,
		})
	}
	return row
}

// respondError maps engine errors to short ephemeral replies.
func (h *Handler) respondError(s Session, i *discordgo.InteractionCreate, err error) {
	var msg string

	var dup *ticket.DuplicateOpenError
	var claimed *lifecycle.AlreadyClaimedError
	var confErr *lifecycle.ConfigError
	switch {
	case errors.As(err, &dup):
		if dup.ChannelID != "" {
			msg = fmt.Sprintf("You already have an open channel for this: <#%s>", dup.ChannelID)
		} else {
			msg = "You already have an open channel for this."
		}
	case errors.As(err, &claimed):
		if claimed.ClaimerName != "" {
			msg = fmt.Sprintf("Already claimed by %s.", claimed.ClaimerName)
		} else {
			msg = fmt.Sprintf("Already claimed by <@%s>.", claimed.ClaimerID)
		}
	case errors.Is(err, lifecycle.ErrUnauthorized):
		msg = "You are not allowed to do that."
	case errors.Is(err, lifecycle.ErrStaffTarget):
		msg = "Staff members cannot be added or removed this way."
	case errors.Is(err, ticket.ErrAlreadyClosed):
		msg = "This channel is already closed."
	case errors.Is(err, lifecycle.ErrNotManaged):
		msg = "This channel is not a managed ticket."
	case errors.As(err, &confErr):
		msg = "This option is not configured yet. Please tell an admin."
		h.logger.Error("configuration hole surfaced to user", "missing", confErr.Missing)
	default:
		msg = "Something went wrong. Please try again."
		h.logger.Error("interaction failed", "error", err)
	}

	h.ephemeral(s, i, msg)
}

func (h *Handler) ephemeral(s Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Error("interaction reply failed", "error", err)
	}
}

// ack acknowledges without a visible reply.
func (h *Handler) ack(s Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		h.logger.Error("interaction ack failed", "error", err)
	}
}
