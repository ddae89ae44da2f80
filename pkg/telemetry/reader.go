package telemetry

type Snapshot struct {
	// Core metrics
	EventsReceived        uint64
	EventsDelivered       uint64
	DuplicatesDropped     uint64
	ValidationDrops       uint64
	ProtocolErrors        uint64
	ErrorsTotal           uint64
	EventsDeliveredByKind map[int]uint64

	// Publish state
	PublishesStarted uint64
	PublishesAcked   uint64
	PublishesFailed  uint64

	// Connection status per relay URL
	RelayStates map[string]string

	// Info cache
	InfoFetches   uint64
	InfoCacheHits uint64

	// Rate metrics
	EventsPerSecond    float64
	DeliveredPerSecond float64

	// Ack latency metrics
	AvgAckLatencyMs float64
	P95AckLatencyMs float64

	// System metrics
	UptimeSeconds      float64
	ChannelUtilization float64

	// Error breakdown
	ErrorsByContext  map[string]uint64
	ErrorsBySeverity map[ErrorSeverity]uint64
	RecentErrors     []string
}

type TelemetryReader interface {
	Snapshot() Snapshot
}
