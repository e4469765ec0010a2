package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	apiPkg "github.com/nordshop/nsbot/internal/api"
	"github.com/nordshop/nsbot/internal/config"
	"github.com/nordshop/nsbot/internal/dashboard"
	"github.com/nordshop/nsbot/internal/lifecycle"
	"github.com/nordshop/nsbot/internal/logbuf"
	"github.com/nordshop/nsbot/internal/market"
	"github.com/nordshop/nsbot/internal/notify"
	platformDiscord "github.com/nordshop/nsbot/internal/platform/discord"
	"github.com/nordshop/nsbot/internal/pkgstore"
	"github.com/nordshop/nsbot/internal/sched"
	"github.com/nordshop/nsbot/internal/ticket"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// .env is optional; real env vars win either way.
	godotenv.Load()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logRing := logbuf.NewRing(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logRing))

	var mgr *config.Manager
	if *configPath != "" {
		var err error
		mgr, err = config.NewManager(*configPath)
		if err != nil {
			logger.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	} else {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			logger.Error("failed to load config from environment", "error", err)
			os.Exit(1)
		}
		mgr = config.NewStaticManager(cfg)
	}
	cfg := mgr.Current()

	logger.Info("nsbotd starting", "guild", cfg.Discord.GuildID)

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		logger.Error("failed to create data dir", "dir", cfg.Data.Dir, "error", err)
		os.Exit(1)
	}

	store, err := ticket.NewSQLiteStore(filepath.Join(cfg.Data.Dir, "tickets.db"))
	if err != nil {
		logger.Error("failed to open ticket store", "error", err)
		os.Exit(1)
	}
	packages, err := pkgstore.Open(filepath.Join(cfg.Data.Dir, "packages.db"))
	if err != nil {
		logger.Error("failed to open package store", "error", err)
		os.Exit(1)
	}
	defer packages.Close()

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Error("failed to create discord session", "error", err)
		os.Exit(1)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	client := platformDiscord.New(session)
	sink := notify.New(client, logger.With("component", "notify"))
	engine := lifecycle.New(store, client, sink, mgr, logger.With("component", "lifecycle"))
	ui := dashboard.New(engine, mgr, packages, logger.With("component", "dashboard"))

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ui.HandleInteraction(s, i)
	})
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("discord gateway ready", "user", r.User.Username)
	})

	if err := session.Open(); err != nil {
		logger.Error("failed to open discord gateway", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	if err := ui.RegisterCommands(session, cfg.Discord.AppID, cfg.Discord.GuildID); err != nil {
		logger.Error("failed to register slash commands", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background jobs: deletion sweep always, marketplace poll when
	// configured.
	runner := sched.New(logger.With("component", "sched"))
	if err := runner.Add("deletion-sweep", "@every 2s", engine.SweepDeletions); err != nil {
		logger.Error("failed to schedule deletion sweep", "error", err)
		os.Exit(1)
	}
	if cfg.Market != nil {
		poller := market.New(cfg.Market.APIKey, cfg.Market.ShopID, cfg.Market.NotifyChannelID,
			sink, logger.With("component", "market"), marketOptions(cfg)...)
		schedule := cfg.Market.Schedule
		if schedule == "" {
			schedule = "@every 2m"
		}
		if err := runner.Add("market-poll", schedule, poller.Poll); err != nil {
			logger.Error("failed to schedule market poll", "error", err)
			os.Exit(1)
		}
	}
	go safeGo(logger, "scheduler", func() { runner.Start(ctx) })

	apiSrv := apiPkg.NewServer(store, logRing, reloadAdapter{mgr}, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"))
	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())
	cancel()
	logger.Info("nsbotd stopped")
}

func marketOptions(cfg *config.Config) []market.Option {
	var opts []market.Option
	if cfg.Market.BaseURL != "" {
		opts = append(opts, market.WithBaseURL(cfg.Market.BaseURL))
	}
	return opts
}

// reloadAdapter narrows config.Manager.Reload for the API server.
type reloadAdapter struct {
	mgr *config.Manager
}

func (r reloadAdapter) Reload() error {
	_, err := r.mgr.Reload()
	return err
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
