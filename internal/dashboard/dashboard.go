// Package dashboard owns everything the bot shows inside Discord: the
// dashboard and order-hub messages, slash commands, and the routing of
// component interactions into the lifecycle engine. It is the only package
// that builds discordgo UI payloads; the engine stays platform-neutral.
package dashboard

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/nordshop/nsbot/internal/config"
	"github.com/nordshop/nsbot/internal/customid"
	"github.com/nordshop/nsbot/internal/lifecycle"
	"github.com/nordshop/nsbot/internal/pkgstore"
	"github.com/nordshop/nsbot/pkg/protocol"
)

// Lifecycle is the slice of the engine the dashboard drives.
type Lifecycle interface {
	OpenTicket(guildID, openerID, typeKey string) (*protocol.Ticket, error)
	OpenOrder(guildID, openerID, orderType, payType string) (*protocol.Ticket, error)
	Claim(channelID, actorID string) (*lifecycle.ClaimResult, error)
	ToggleUser(channelID, actorID, targetID string) (added bool, err error)
	Close(channelID, actorID string) (*lifecycle.CloseResult, error)
	Rate(ref customid.RateRef, actorID string) error
}

// Session is the slice of *discordgo.Session the dashboard uses.
type Session interface {
	InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// Handler routes interactions to the engine and renders replies.
type Handler struct {
	engine   Lifecycle
	cfg      *config.Manager
	packages *pkgstore.Store
	logger   *slog.Logger
}

// New creates a handler. packages and logger may be nil.
func New(engine Lifecycle, cfg *config.Manager, packages *pkgstore.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, cfg: cfg, packages: packages, logger: logger}
}

// SendDashboard posts the ticket dashboard into a channel.
func (h *Handler) SendDashboard(s Session, channelID string) error {
	cfg := h.cfg.Current()
	opts := make([]discordgo.SelectMenuOption, 0, len(cfg.Tickets.Types))
	for _, tt := range cfg.Tickets.Types {
		opts = append(opts, discordgo.SelectMenuOption{
			Label:       tt.Label,
			Value:       tt.Key,
			Description: tt.Description,
		})
	}

	_, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Support & Commissions",
			Description: "Pick a category below and a private channel will be opened for you.",
			Color:       embedColor,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    customid.Dashboard,
					Placeholder: "Open a ticket...",
					Options:     opts,
				},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("dashboard: send dashboard: %w", err)
	}
	return nil
}

// SendOrderHub posts the order hub into a channel.
func (h *Handler) SendOrderHub(s Session, channelID string) error {
	cfg := h.cfg.Current()
	opts := make([]discordgo.SelectMenuOption, 0, len(cfg.Orders.Types))
	for _, ot := range cfg.Orders.Types {
		opts = append(opts, discordgo.SelectMenuOption{Label: ot.Label, Value: ot.Key})
	}

	_, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Place an Order",
			Description: "Choose what you want to order. You will be asked for a payment method next.",
			Color:       embedColor,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    customid.OrderType,
					Placeholder: "Order...",
					Options:     opts,
				},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("dashboard: send order hub: %w", err)
	}
	return nil
}

const embedColor = 0x5865F2

// postWelcome drops the action controls into a freshly opened channel.
func (h *Handler) postWelcome(s Session, rec *protocol.Ticket) {
	label := "ticket"
	if rec.Kind == protocol.KindOrder {
		label = "order"
	}
	_, err := s.ChannelMessageSendComplex(rec.ChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> your %s is open. Staff will be with you shortly.", rec.OpenerID, label),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				actionsMenu(""),
			}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.UserSelectMenu,
					CustomID:    customid.UserToggle,
					Placeholder: "Add or remove a user",
				},
			}},
		},
	})
	if err != nil {
		h.logger.Error("welcome message failed", "channel", rec.ChannelID, "error", err)
	}
}

// actionsMenu builds the claim/close select. A non-empty claimer name is
// surfaced in the placeholder after a claim.
func actionsMenu(claimerName string) discordgo.SelectMenu {
	placeholder := "Staff actions"
	if claimerName != "" {
		placeholder = "Claimed by " + claimerName
	}
	return discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    customid.Actions,
		Placeholder: placeholder,
		Options: []discordgo.SelectMenuOption{
			{Label: "Claim", Value: customid.ActionClaim, Description: "Take this channel"},
			{Label: "Close", Value: customid.ActionClose, Description: "Close and archive"},
		},
	}
}

// actorID returns the interaction's user id, whether it arrived from a guild
// or a DM.
func actorID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
