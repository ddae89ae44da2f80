package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chat-engine/pkg/config"
	"chat-engine/pkg/engine"
	"chat-engine/pkg/telemetry"
	"chat-engine/pkg/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		info := version.Info()
		fmt.Printf("chatd version %s, commit %s, built %s\n", info.Version, info.Commit, info.Built)
		return
	}

	logger := log.New(os.Stderr, "[chatd] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("configuration error: %v", err)
	}
	if cfg == nil {
		// Help was shown
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aggregator := telemetry.NewAggregator(telemetry.RealClock{}, telemetry.DefaultConfig())
	aggregator.Start(ctx)
	defer aggregator.Stop()

	eng := engine.New(cfg, engine.Options{
		Logger:    logger,
		Telemetry: aggregator,
	})
	eng.Start()
	defer eng.Close()

	cli := NewCLI(aggregator, cfg, logger)
	if err := cli.Run(ctx); err != nil {
		logger.Fatalf("runtime error: %v", err)
	}
}
