// Package relayinfo fetches and caches relay capability documents (NIP-11).
// The cache is purely diagnostic: a fetch failure is surfaced to the caller
// and never evicts data that was valid before the attempt.
package relayinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"chat-engine/pkg/config"
	"chat-engine/pkg/telemetry"

	"github.com/nbd-wtf/go-nostr/nip11"
)

// Clock abstracts time for TTL checks in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options modifies a single Fetch call.
type Options struct {
	// Force bypasses the cache and always issues the network request.
	Force bool
	// Timeout overrides the configured per-fetch timeout when positive.
	Timeout time.Duration
}

type entry struct {
	document  nip11.RelayInformationDocument
	fetchedAt time.Time
}

// Cache is the TTL cache of capability documents keyed by relay URL.
type Cache struct {
	client  *http.Client
	clock   Clock
	logger  *log.Logger
	tel     telemetry.TelemetryPublisher
	ttl     time.Duration
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

func New(cfg config.InfoConfig, client *http.Client, clock Clock, logger *log.Logger, tel telemetry.TelemetryPublisher) *Cache {
	if client == nil {
		client = http.DefaultClient
	}
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[relayinfo] ", log.LstdFlags)
	}
	if tel == nil {
		tel = telemetry.NewNoopPublisher()
	}
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = time.Duration(config.DefaultInfoTTLHours) * time.Hour
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultInfoTimeoutSeconds) * time.Second
	}
	return &Cache{
		client:  client,
		clock:   clock,
		logger:  logger,
		tel:     tel,
		ttl:     ttl,
		timeout: timeout,
		entries: make(map[string]entry),
	}
}

// Fetch returns the relay's capability document, from cache when a fresh
// entry exists and Force is unset, from the network otherwise.
func (c *Cache) Fetch(ctx context.Context, relayURL string, opts Options) (*nip11.RelayInformationDocument, error) {
	now := c.clock.Now()

	if !opts.Force {
		c.mu.Lock()
		cached, ok := c.entries[relayURL]
		c.mu.Unlock()
		if ok && now.Sub(cached.fetchedAt) < c.ttl {
			c.tel.Publish(telemetry.NewInfoFetch(relayURL, true))
			doc := cached.document
			return &doc, nil
		}
	}

	doc, err := c.fetchDocument(ctx, relayURL, opts.Timeout)
	if err != nil {
		c.tel.Publish(telemetry.NewEngineError(err, "info_fetch", telemetry.ErrorSeverityInfo))
		return nil, err
	}

	c.mu.Lock()
	c.entries[relayURL] = entry{document: *doc, fetchedAt: now}
	c.mu.Unlock()

	c.tel.Publish(telemetry.NewInfoFetch(relayURL, false))
	return doc, nil
}

func (c *Cache) fetchDocument(ctx context.Context, relayURL string, timeout time.Duration) (*nip11.RelayInformationDocument, error) {
	endpoint, err := httpEndpoint(relayURL)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = c.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build info request: %w", err)
	}
	req.Header.Set("Accept", "application/nostr+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relay info from %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay info fetch from %s returned %d", endpoint, resp.StatusCode)
	}

	var doc nip11.RelayInformationDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode relay info from %s: %w", endpoint, err)
	}
	return &doc, nil
}

// httpEndpoint converts a relay's websocket URL to its HTTP equivalent.
func httpEndpoint(relayURL string) (string, error) {
	parsed, err := url.Parse(relayURL)
	if err != nil {
		return "", fmt.Errorf("invalid relay URL %q: %w", relayURL, err)
	}
	switch parsed.Scheme {
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	default:
		return "", fmt.Errorf("relay URL %q is not a websocket URL", relayURL)
	}
	return parsed.String(), nil
}
