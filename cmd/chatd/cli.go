package main

import (
	"context"
	"log"
	"strings"
	"time"

	"chat-engine/pkg/config"
	"chat-engine/pkg/telemetry"
)

// CLI represents the command-line interface runner
type CLI struct {
	telemetry telemetry.TelemetryReader
	config    *config.Config
	logger    *log.Logger

	// State
	lastSnapshot telemetry.Snapshot
	done         chan struct{}
}

// NewCLI creates a new command-line interface runner
func NewCLI(telemetryReader telemetry.TelemetryReader, cfg *config.Config, logger *log.Logger) *CLI {
	return &CLI{
		telemetry: telemetryReader,
		config:    cfg,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Run starts the CLI runner and blocks until shutdown
func (c *CLI) Run(ctx context.Context) error {
	c.logger.Printf("Starting chat engine in quiet mode")
	c.logger.Printf("Identity: %s", c.config.KeyPair.PublicKeyBech32)
	c.logger.Printf("Relays: %s", strings.Join(c.config.RelayURLs, ", "))
	c.logger.Printf("Ack: threshold=%d wait=%ds", c.config.Ack.Threshold, c.config.Ack.WaitSeconds)

	// Print periodic status updates
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Printf("Shutting down...")
			return nil
		case <-ticker.C:
			c.printStatus()
		case <-c.done:
			return nil
		}
	}
}

// Stop stops the CLI runner
func (c *CLI) Stop() {
	close(c.done)
}

// printStatus prints current telemetry status
func (c *CLI) printStatus() {
	snapshot := c.telemetry.Snapshot()

	if c.shouldPrintStatus(snapshot) {
		c.logger.Printf("Status - Events: received=%d, delivered=%d, dups=%d, rate=%.1f/s, errors=%d",
			snapshot.EventsReceived,
			snapshot.EventsDelivered,
			snapshot.DuplicatesDropped,
			snapshot.EventsPerSecond,
			snapshot.ErrorsTotal)

		c.logger.Printf("Publishes - started=%d, acked=%d, failed=%d, p95 ack=%.0fms",
			snapshot.PublishesStarted,
			snapshot.PublishesAcked,
			snapshot.PublishesFailed,
			snapshot.P95AckLatencyMs)

		open := 0
		for _, state := range snapshot.RelayStates {
			if state == "open" {
				open++
			}
		}
		c.logger.Printf("Relays - open=%d/%d", open, len(snapshot.RelayStates))
	}

	c.lastSnapshot = snapshot
}

// shouldPrintStatus determines if we should print a status update
func (c *CLI) shouldPrintStatus(snapshot telemetry.Snapshot) bool {
	// Always print first status
	if c.lastSnapshot.EventsReceived == 0 && c.lastSnapshot.PublishesStarted == 0 {
		return true
	}

	// Print if event counts changed
	if snapshot.EventsReceived != c.lastSnapshot.EventsReceived ||
		snapshot.EventsDelivered != c.lastSnapshot.EventsDelivered ||
		snapshot.PublishesStarted != c.lastSnapshot.PublishesStarted {
		return true
	}

	// Print if there are errors
	if snapshot.ErrorsTotal > c.lastSnapshot.ErrorsTotal {
		return true
	}

	// Print if connection status changed
	for url, state := range snapshot.RelayStates {
		if c.lastSnapshot.RelayStates[url] != state {
			return true
		}
	}

	return false
}
