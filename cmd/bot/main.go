package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fadedpez/ebucks/internal/app"
	"github.com/fadedpez/ebucks/internal/bot"
	"github.com/fadedpez/ebucks/internal/config"
	"github.com/fadedpez/ebucks/internal/discord"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateDiscord(); err != nil {
		log.Fatalf("Invalid Discord configuration: %v", err)
	}

	logger := app.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize eBucks: %v", err)
	}
	defer rt.Close()

	session, err := discord.NewSession(cfg.Token)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}

	ebucksBot := bot.New(cfg, session, rt.Registry, logger)
	if err := ebucksBot.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	logger.Info("Bot is now running. Press CTRL-C to exit.")

	// Wait for interrupt signal to gracefully shutdown
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	logger.Info("Shutting down...")
	ebucksBot.Shutdown()
}
