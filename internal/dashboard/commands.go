package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nordshop/nsbot/internal/pkgstore"
	"github.com/nordshop/nsbot/internal/taxcalc"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageServer)
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "dashboard",
			Description:              "Post the ticket dashboard in this channel",
			DefaultMemberPermissions: &manageGuild,
		},
		{
			Name:                     "orderhub",
			Description:              "Post the order hub in this channel",
			DefaultMemberPermissions: &manageGuild,
		},
		{
			Name:                     "reload",
			Description:              "Reload the bot configuration from disk",
			DefaultMemberPermissions: &manageGuild,
		},
		{
			Name:        "packages",
			Description: "Manage deliverable packages",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List all packages",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Add a package",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "key", Description: "Short unique key", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Display title", Required: true},
						{Type: discordgo.ApplicationCommandOptionNumber, Name: "price", Description: "Price"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "url", Description: "Download URL"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a package",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "key", Description: "Package key", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "send",
					Description: "Send a package to a user in this channel",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "key", Description: "Package key", Required: true},
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Recipient", Required: true},
					},
				},
			},
		},
		{
			Name:        "tax",
			Description: "Work out marketplace fees for a price",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionNumber, Name: "amount", Description: "Amount", Required: true},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "gross", Description: "Treat the amount as the listed price instead of the target payout"},
			},
		},
	}
}

// RegisterCommands overwrites the guild's slash commands with this bot's set.
func (h *Handler) RegisterCommands(s Session, appID, guildID string) error {
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, commandDefinitions()); err != nil {
		return fmt.Errorf("dashboard: register commands: %w", err)
	}
	return nil
}

func (h *Handler) handleCommand(s Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "dashboard":
		if err := h.SendDashboard(s, i.ChannelID); err != nil {
			h.respondError(s, i, err)
			return
		}
		h.ephemeral(s, i, "Dashboard posted.")
	case "orderhub":
		if err := h.SendOrderHub(s, i.ChannelID); err != nil {
			h.respondError(s, i, err)
			return
		}
		h.ephemeral(s, i, "Order hub posted.")
	case "reload":
		if _, err := h.cfg.Reload(); err != nil {
			h.ephemeral(s, i, "Reload failed, keeping the previous configuration: "+err.Error())
			return
		}
		h.ephemeral(s, i, "Configuration reloaded.")
	case "packages":
		h.handlePackages(s, i, data)
	case "tax":
		h.handleTax(s, i, data)
	}
}

func (h *Handler) handlePackages(s Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if h.packages == nil {
		h.ephemeral(s, i, "The package database is not available.")
		return
	}
	if len(data.Options) == 0 {
		h.ack(s, i)
		return
	}
	sub := data.Options[0]
	args := optionMap(sub.Options)

	switch sub.Name {
	case "list":
		pkgs, err := h.packages.List()
		if err != nil {
			h.respondError(s, i, err)
			return
		}
		if len(pkgs) == 0 {
			h.ephemeral(s, i, "No packages yet.")
			return
		}
		var b strings.Builder
		for _, p := range pkgs {
			fmt.Fprintf(&b, "`%s` %s", p.Key, p.Title)
			if p.Price > 0 {
				fmt.Fprintf(&b, " (%.2f %s)", p.Price, p.Currency)
			}
			b.WriteString("\n")
		}
		h.ephemeral(s, i, b.String())
	case "add":
		p := &pkgstore.Package{
			Key:      args["key"].StringValue(),
			Title:    args["title"].StringValue(),
			Currency: "USD",
		}
		if opt, ok := args["price"]; ok {
			p.Price = opt.FloatValue()
		}
		if opt, ok := args["url"]; ok {
			p.FileURL = opt.StringValue()
		}
		if err := h.packages.Create(p); err != nil {
			if errors.Is(err, pkgstore.ErrDuplicateKey) {
				h.ephemeral(s, i, fmt.Sprintf("A package with key `%s` already exists.", p.Key))
				return
			}
			h.respondError(s, i, err)
			return
		}
		h.ephemeral(s, i, fmt.Sprintf("Package `%s` added.", p.Key))
	case "remove":
		key := args["key"].StringValue()
		if err := h.packages.Delete(key); err != nil {
			if errors.Is(err, pkgstore.ErrNotFound) {
				h.ephemeral(s, i, fmt.Sprintf("No package with key `%s`.", key))
				return
			}
			h.respondError(s, i, err)
			return
		}
		h.ephemeral(s, i, fmt.Sprintf("Package `%s` removed.", key))
	case "send":
		h.handlePackageSend(s, i, args)
	default:
		h.ack(s, i)
	}
}

func (h *Handler) handlePackageSend(s Session, i *discordgo.InteractionCreate, args map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	key := args["key"].StringValue()
	userOpt, ok := args["user"]
	if !ok {
		h.ephemeral(s, i, "A recipient is required.")
		return
	}
	userID := userOpt.Value.(string)

	pkg, err := h.packages.Get(key)
	if err != nil {
		if errors.Is(err, pkgstore.ErrNotFound) {
			h.ephemeral(s, i, fmt.Sprintf("No package with key `%s`.", key))
			return
		}
		h.respondError(s, i, err)
		return
	}

	sess, err := h.packages.StartSession(key, userID, i.ChannelID)
	if err != nil {
		h.respondError(s, i, err)
		return
	}

	content := fmt.Sprintf("<@%s> here is your **%s**.", userID, pkg.Title)
	if pkg.FileURL != "" {
		content += "\n" + pkg.FileURL
	}
	if _, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{Content: content}); err != nil {
		h.respondError(s, i, err)
		return
	}
	if err := h.packages.CompleteSession(sess.ID, time.Now()); err != nil {
		h.logger.Error("session completion failed", "session", sess.ID, "error", err)
	}
	h.ephemeral(s, i, fmt.Sprintf("Sent `%s` to <@%s>.", key, userID))
}

func (h *Handler) handleTax(s Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	args := optionMap(data.Options)
	amount := args["amount"].FloatValue()
	gross := false
	if opt, ok := args["gross"]; ok {
		gross = opt.BoolValue()
	}

	var q taxcalc.Quote
	var err error
	if gross {
		q, err = taxcalc.ForGross(amount)
	} else {
		q, err = taxcalc.ForNet(amount)
	}
	if err != nil {
		h.ephemeral(s, i, "The amount must be a positive number.")
		return
	}
	h.ephemeral(s, i, taxcalc.Format(q, "USD"))
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}
