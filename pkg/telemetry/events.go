package telemetry

import "time"

type TelemetryEvent interface {
	Timestamp() time.Time // When the event occurred
	EventType() string    // For categorization/filtering
}

// EventReceived is emitted for every inbound event matched to a live
// subscription, before dedup and validation.
type EventReceived struct {
	timestamp time.Time
	RelayURL  string
	EventKind int
	EventID   string
}

func (e EventReceived) Timestamp() time.Time { return e.timestamp }
func (e EventReceived) EventType() string    { return "event_received" }

func NewEventReceived(relayURL string, eventKind int, eventID string) EventReceived {
	return EventReceived{timestamp: time.Now(), RelayURL: relayURL, EventKind: eventKind, EventID: eventID}
}

// EventDelivered is emitted when an event reaches a subscription callback.
type EventDelivered struct {
	timestamp time.Time
	EventKind int
	EventID   string
}

func (e EventDelivered) Timestamp() time.Time { return e.timestamp }
func (e EventDelivered) EventType() string    { return "event_delivered" }

func NewEventDelivered(eventKind int, eventID string) EventDelivered {
	return EventDelivered{timestamp: time.Now(), EventKind: eventKind, EventID: eventID}
}

// DuplicateDropped is emitted when dedup suppresses a redelivery.
type DuplicateDropped struct {
	timestamp time.Time
	RelayURL  string
	EventID   string
}

func (e DuplicateDropped) Timestamp() time.Time { return e.timestamp }
func (e DuplicateDropped) EventType() string    { return "duplicate_dropped" }

func NewDuplicateDropped(relayURL, eventID string) DuplicateDropped {
	return DuplicateDropped{timestamp: time.Now(), RelayURL: relayURL, EventID: eventID}
}

// ValidationDropped is emitted when an inbound event fails id or signature
// validation and is discarded.
type ValidationDropped struct {
	timestamp time.Time
	RelayURL  string
	Reason    string
}

func (e ValidationDropped) Timestamp() time.Time { return e.timestamp }
func (e ValidationDropped) EventType() string    { return "validation_dropped" }

func NewValidationDropped(relayURL, reason string) ValidationDropped {
	return ValidationDropped{timestamp: time.Now(), RelayURL: relayURL, Reason: reason}
}

// ProtocolError is emitted when a frame cannot be parsed and is discarded.
type ProtocolError struct {
	timestamp time.Time
	RelayURL  string
	Reason    string
}

func (e ProtocolError) Timestamp() time.Time { return e.timestamp }
func (e ProtocolError) EventType() string    { return "protocol_error" }

func NewProtocolError(relayURL, reason string) ProtocolError {
	return ProtocolError{timestamp: time.Now(), RelayURL: relayURL, Reason: reason}
}

// ConnectionStateChanged tracks per-relay connection lifecycle.
type ConnectionStateChanged struct {
	timestamp time.Time
	RelayURL  string
	State     string
}

func (e ConnectionStateChanged) Timestamp() time.Time { return e.timestamp }
func (e ConnectionStateChanged) EventType() string    { return "connection_state_changed" }

func NewConnectionStateChanged(relayURL, state string) ConnectionStateChanged {
	return ConnectionStateChanged{timestamp: time.Now(), RelayURL: relayURL, State: state}
}

// PublishStarted is emitted for the initial broadcast and every retry.
type PublishStarted struct {
	timestamp time.Time
	EventID   string
	Targets   int
	Attempt   int
}

func (e PublishStarted) Timestamp() time.Time { return e.timestamp }
func (e PublishStarted) EventType() string    { return "publish_started" }

func NewPublishStarted(eventID string, targets, attempt int) PublishStarted {
	return PublishStarted{timestamp: time.Now(), EventID: eventID, Targets: targets, Attempt: attempt}
}

// PublishAcked is emitted when a publish reaches its ack threshold.
type PublishAcked struct {
	timestamp time.Time
	EventID   string
	RelayURL  string
	Latency   time.Duration // Time from first broadcast to threshold
}

func (e PublishAcked) Timestamp() time.Time { return e.timestamp }
func (e PublishAcked) EventType() string    { return "publish_acked" }

func NewPublishAcked(eventID, relayURL string, latency time.Duration) PublishAcked {
	return PublishAcked{timestamp: time.Now(), EventID: eventID, RelayURL: relayURL, Latency: latency}
}

// PublishFailed is emitted when the retry plan is exhausted.
type PublishFailed struct {
	timestamp time.Time
	EventID   string
	Attempts  int
}

func (e PublishFailed) Timestamp() time.Time { return e.timestamp }
func (e PublishFailed) EventType() string    { return "publish_failed" }

func NewPublishFailed(eventID string, attempts int) PublishFailed {
	return PublishFailed{timestamp: time.Now(), EventID: eventID, Attempts: attempts}
}

// InfoFetch tracks relay capability document lookups.
type InfoFetch struct {
	timestamp time.Time
	RelayURL  string
	CacheHit  bool
}

func (e InfoFetch) Timestamp() time.Time { return e.timestamp }
func (e InfoFetch) EventType() string    { return "info_fetch" }

func NewInfoFetch(relayURL string, cacheHit bool) InfoFetch {
	return InfoFetch{timestamp: time.Now(), RelayURL: relayURL, CacheHit: cacheHit}
}

// EngineError carries an error with context for the diagnostics surface.
type EngineError struct {
	timestamp time.Time
	Err       error
	Context   string // e.g. "relay_dial", "publish_retry"
	Severity  ErrorSeverity
}

func (e EngineError) Timestamp() time.Time { return e.timestamp }
func (e EngineError) EventType() string    { return "engine_error" }

func NewEngineError(err error, context string, severity ErrorSeverity) EngineError {
	return EngineError{timestamp: time.Now(), Err: err, Context: context, Severity: severity}
}

type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityCritical
)

type TelemetryPublisher interface {
	// Publish sends a telemetry event to the aggregator.
	// This is a non-blocking, fire-and-forget call.
	Publish(event TelemetryEvent)
}
