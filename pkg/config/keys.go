package config

// Configuration key constants
// These constants centralize all environment variable and configuration key
// names to eliminate magic strings.

const (
	// Core engine configuration keys
	KeyRelayURLs = "CHAT_RELAY_URLS"
	KeySecretKey = "CHAT_SECKEY"

	// Acknowledgment configuration keys
	KeyAckThreshold        = "ACK_THRESHOLD"
	KeyAckWaitSeconds      = "ACK_WAIT_SECONDS"
	KeyAckRetryPlanSeconds = "ACK_RETRY_PLAN_SECONDS"
	KeyAckGraceSeconds     = "ACK_GRACE_SECONDS"

	// Network configuration keys
	KeyNetworkInitialBackoffSeconds = "NETWORK_INITIAL_BACKOFF_SECONDS"
	KeyNetworkMaxBackoffSeconds     = "NETWORK_MAX_BACKOFF_SECONDS"
	KeyNetworkBackoffJitter         = "NETWORK_BACKOFF_JITTER"
	KeyNetworkDialTimeoutSeconds    = "NETWORK_DIAL_TIMEOUT_SECONDS"
	KeyNetworkWriteTimeoutSeconds   = "NETWORK_WRITE_TIMEOUT_SECONDS"

	// Relay info cache configuration keys
	KeyInfoTTLHours       = "RELAY_INFO_TTL_HOURS"
	KeyInfoTimeoutSeconds = "RELAY_INFO_TIMEOUT_SECONDS"
)

// Default values for configuration
const (
	// Ack defaults: resolve on the first accepting relay, wait 9s before
	// the escalating retry plan kicks in.
	DefaultAckThreshold    = 1
	DefaultAckWaitSeconds  = 9
	DefaultAckGraceSeconds = 5

	// Network defaults
	DefaultNetworkInitialBackoffSeconds = 1
	DefaultNetworkMaxBackoffSeconds     = 60
	DefaultNetworkBackoffJitter         = 0.2
	DefaultNetworkDialTimeoutSeconds    = 10
	DefaultNetworkWriteTimeoutSeconds   = 10

	// Relay info cache defaults
	DefaultInfoTTLHours       = 24
	DefaultInfoTimeoutSeconds = 10
)

// DefaultAckRetryPlanSeconds is the escalating delay sequence between
// rebroadcasts once the initial ack wait has elapsed.
var DefaultAckRetryPlanSeconds = []int{3, 6, 12, 24, 48}

// CLI flag name constants
const (
	FlagRelayURLs                    = "relay-urls"
	FlagSecretKey                    = "secret-key"
	FlagAckThreshold                 = "ack-threshold"
	FlagAckWaitSeconds               = "ack-wait-seconds"
	FlagAckRetryPlanSeconds          = "ack-retry-plan-seconds"
	FlagAckGraceSeconds              = "ack-grace-seconds"
	FlagNetworkInitialBackoffSeconds = "network-initial-backoff-seconds"
	FlagNetworkMaxBackoffSeconds     = "network-max-backoff-seconds"
	FlagNetworkBackoffJitter         = "network-backoff-jitter"
	FlagNetworkDialTimeoutSeconds    = "network-dial-timeout-seconds"
	FlagNetworkWriteTimeoutSeconds   = "network-write-timeout-seconds"
	FlagInfoTTLHours                 = "relay-info-ttl-hours"
	FlagInfoTimeoutSeconds           = "relay-info-timeout-seconds"
	FlagHelp                         = "help"
)

// Help message constants
const (
	AppName        = "Chat Engine"
	AppDescription = "Encrypted DM and room event engine over Nostr relays"
	UsageFormat    = "chatd [OPTIONS]"

	HelpRelayURLs                    = "Comma-separated relay URLs (required)"
	HelpSecretKey                    = "Nostr secret key, hex or nsec (required)"
	HelpAckThreshold                 = "Relays that must accept before a publish is acked"
	HelpAckWaitSeconds               = "Bounded wait for acks before retrying"
	HelpAckRetryPlanSeconds          = "Comma-separated retry delays in seconds"
	HelpAckGraceSeconds              = "Grace window for late acks after resolution"
	HelpNetworkInitialBackoffSeconds = "Initial reconnect backoff in seconds"
	HelpNetworkMaxBackoffSeconds     = "Max reconnect backoff in seconds"
	HelpNetworkBackoffJitter         = "Reconnect backoff jitter fraction"
	HelpNetworkDialTimeoutSeconds    = "WebSocket dial timeout in seconds"
	HelpNetworkWriteTimeoutSeconds   = "WebSocket write timeout in seconds"
	HelpInfoTTLHours                 = "Relay info cache TTL in hours"
	HelpInfoTimeoutSeconds           = "Relay info fetch timeout in seconds"
	HelpShowHelp                     = "Show this help message"

	HelpOptions         = "Options:"
	HelpEnvironmentVars = "Environment Variables:"
	HelpUsage           = "Usage:"
	HelpNote            = "Note: CLI options override environment variables"
)
