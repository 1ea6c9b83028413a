package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"card_live_dashboard/internal/cli"
	"card_live_dashboard/internal/config"
)

func main() {
	logger, err := cli.NewLogger(os.Stderr, logLevel())
	if err != nil {
		log.Fatalf("logger initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewInitCommand(cli.InitDeps{
		Config: config.NewManager(),
		Logger: logger,
	})
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", cmd.Name())
		stop()
		os.Exit(1)
	}
}

func logLevel() string {
	if v := os.Getenv("CARDLIVE_LOG_LEVEL"); v != "" {
		return v
	}
	return "info"
}
