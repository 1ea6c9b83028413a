package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"card_live_dashboard/internal/cli"
)

func main() {
	level := os.Getenv("CARDLIVE_LOG_LEVEL")
	if level == "" {
		level = "debug"
	}
	logger, err := cli.NewLogger(os.Stderr, level)
	if err != nil {
		log.Fatalf("logger initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewServeCommand(cli.ServeDeps{Logger: logger})
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", cmd.Name())
		stop()
		os.Exit(1)
	}
}
