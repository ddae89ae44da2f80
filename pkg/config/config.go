package config

import (
	"fmt"
	"strconv"
	"strings"

	"chat-engine/pkg/crypto"
)

type Config struct {
	RelayURLs []string
	SecretKey string
	KeyPair   crypto.KeyPair
	Ack       AckConfig
	Network   NetworkConfig
	Info      InfoConfig
}

// AckConfig tunes the publish acknowledgment protocol. The shipped values
// are defaults, not invariants; deployments pick their own
// durability/latency trade-off here.
type AckConfig struct {
	Threshold        int
	WaitSeconds      int
	RetryPlanSeconds []int
	GraceSeconds     int
}

type NetworkConfig struct {
	InitialBackoffSeconds int
	MaxBackoffSeconds     int
	BackoffJitter         float64
	DialTimeoutSeconds    int
	WriteTimeoutSeconds   int
}

type InfoConfig struct {
	TTLHours       int
	TimeoutSeconds int
}

// Load loads configuration from CLI flags and environment variables
// CLI flags take precedence over environment variables
func Load() (*Config, error) {
	flagSource, showHelp := parseCLIFlags()

	if showHelp {
		printUsage()
		return nil, nil // Return nil to indicate help was shown
	}

	resolver := NewConfigResolver(flagSource, &EnvSource{})

	retryPlan, err := parseRetryPlan(resolver.ResolveString(KeyAckRetryPlanSeconds, ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RelayURLs: splitRelayURLs(resolver.ResolveString(KeyRelayURLs, "")),
		SecretKey: resolver.ResolveString(KeySecretKey, ""),
		Ack: AckConfig{
			Threshold:        resolver.ResolveInt(KeyAckThreshold, DefaultAckThreshold),
			WaitSeconds:      resolver.ResolveInt(KeyAckWaitSeconds, DefaultAckWaitSeconds),
			RetryPlanSeconds: retryPlan,
			GraceSeconds:     resolver.ResolveInt(KeyAckGraceSeconds, DefaultAckGraceSeconds),
		},
		Network: NetworkConfig{
			InitialBackoffSeconds: resolver.ResolveInt(KeyNetworkInitialBackoffSeconds, DefaultNetworkInitialBackoffSeconds),
			MaxBackoffSeconds:     resolver.ResolveInt(KeyNetworkMaxBackoffSeconds, DefaultNetworkMaxBackoffSeconds),
			BackoffJitter:         resolver.ResolveFloat(KeyNetworkBackoffJitter, DefaultNetworkBackoffJitter),
			DialTimeoutSeconds:    resolver.ResolveInt(KeyNetworkDialTimeoutSeconds, DefaultNetworkDialTimeoutSeconds),
			WriteTimeoutSeconds:   resolver.ResolveInt(KeyNetworkWriteTimeoutSeconds, DefaultNetworkWriteTimeoutSeconds),
		},
		Info: InfoConfig{
			TTLHours:       resolver.ResolveInt(KeyInfoTTLHours, DefaultInfoTTLHours),
			TimeoutSeconds: resolver.ResolveInt(KeyInfoTimeoutSeconds, DefaultInfoTimeoutSeconds),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	keyPair, err := crypto.DeriveKeyPair(cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	cfg.KeyPair = *keyPair

	return cfg, nil
}

func splitRelayURLs(raw string) []string {
	if raw == "" {
		return nil
	}
	var urls []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

func parseRetryPlan(raw string) ([]int, error) {
	if raw == "" {
		plan := make([]int, len(DefaultAckRetryPlanSeconds))
		copy(plan, DefaultAckRetryPlanSeconds)
		return plan, nil
	}
	var plan []int
	for _, part := range strings.Split(raw, ",") {
		secs, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid retry plan entry %q", part)
		}
		plan = append(plan, secs)
	}
	return plan, nil
}
