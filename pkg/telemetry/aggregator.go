package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Clock interface allows for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Config for telemetry settings
type Config struct {
	BufferSize        int
	MaxRecentErrors   int
	RateWindowSeconds int
	LatencyRingSize   int
}

func DefaultConfig() Config {
	return Config{
		BufferSize:        1000,
		MaxRecentErrors:   50,
		RateWindowSeconds: 10,
		LatencyRingSize:   100,
	}
}

// Aggregator is the core stateful component that processes telemetry events
type Aggregator struct {
	mu    sync.RWMutex
	clock Clock
	cfg   Config

	// Core counters
	eventsReceived    uint64
	eventsDelivered   uint64
	duplicatesDropped uint64
	validationDrops   uint64
	protocolErrors    uint64
	errorsTotal       uint64

	// Breakdown
	deliveredByKind  map[int]uint64
	errorsByContext  map[string]uint64
	errorsBySeverity map[ErrorSeverity]uint64

	// Publish counters
	publishesStarted uint64
	publishesAcked   uint64
	publishesFailed  uint64

	// Info cache counters
	infoFetches   uint64
	infoCacheHits uint64

	// Rate calculations (ring buffers)
	receiveTimes  []time.Time
	deliverTimes  []time.Time

	// Connection state per relay
	relayStates map[string]string

	// Recent errors (ring buffer)
	recentErrors []string
	errorIndex   int

	// Ack latency tracking
	latencies    []time.Duration
	latencyIndex int

	// Control channels
	eventCh chan TelemetryEvent
	done    chan struct{}
	wg      sync.WaitGroup

	startTime time.Time
}

// NewAggregator creates a new telemetry aggregator
func NewAggregator(clock Clock, cfg Config) *Aggregator {
	if clock == nil {
		clock = RealClock{}
	}

	return &Aggregator{
		clock:            clock,
		cfg:              cfg,
		deliveredByKind:  make(map[int]uint64),
		errorsByContext:  make(map[string]uint64),
		errorsBySeverity: make(map[ErrorSeverity]uint64),
		relayStates:      make(map[string]string),
		receiveTimes:     make([]time.Time, 0, cfg.RateWindowSeconds*10),
		deliverTimes:     make([]time.Time, 0, cfg.RateWindowSeconds*10),
		recentErrors:     make([]string, cfg.MaxRecentErrors),
		latencies:        make([]time.Duration, cfg.LatencyRingSize),
		eventCh:          make(chan TelemetryEvent, cfg.BufferSize),
		done:             make(chan struct{}),
		startTime:        clock.Now(),
	}
}

// Start begins processing telemetry events
func (a *Aggregator) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.processEvents(ctx)
}

// Stop gracefully shuts down the aggregator
func (a *Aggregator) Stop() {
	close(a.done)
	a.wg.Wait()
}

// Publish implements TelemetryPublisher interface
func (a *Aggregator) Publish(event TelemetryEvent) {
	select {
	case a.eventCh <- event:
	default:
		// Non-blocking send - drop if channel is full
		// This protects the hot path from being blocked
	}
}

// Snapshot implements TelemetryReader interface
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.clock.Now()

	avgLatency, p95Latency := a.calculateLatencyMetrics()

	// Copy maps to prevent data races
	kindsCopy := make(map[int]uint64, len(a.deliveredByKind))
	for k, v := range a.deliveredByKind {
		kindsCopy[k] = v
	}

	errorsByContextCopy := make(map[string]uint64, len(a.errorsByContext))
	for k, v := range a.errorsByContext {
		errorsByContextCopy[k] = v
	}

	errorsBySeverityCopy := make(map[ErrorSeverity]uint64, len(a.errorsBySeverity))
	for k, v := range a.errorsBySeverity {
		errorsBySeverityCopy[k] = v
	}

	statesCopy := make(map[string]string, len(a.relayStates))
	for k, v := range a.relayStates {
		statesCopy[k] = v
	}

	recentErrors := make([]string, 0)
	for i := 0; i < a.cfg.MaxRecentErrors; i++ {
		idx := (a.errorIndex - i - 1 + len(a.recentErrors)) % len(a.recentErrors)
		if a.recentErrors[idx] != "" {
			recentErrors = append(recentErrors, a.recentErrors[idx])
		}
	}

	return Snapshot{
		EventsReceived:        a.eventsReceived,
		EventsDelivered:       a.eventsDelivered,
		DuplicatesDropped:     a.duplicatesDropped,
		ValidationDrops:       a.validationDrops,
		ProtocolErrors:        a.protocolErrors,
		ErrorsTotal:           a.errorsTotal,
		EventsDeliveredByKind: kindsCopy,
		PublishesStarted:      a.publishesStarted,
		PublishesAcked:        a.publishesAcked,
		PublishesFailed:       a.publishesFailed,
		RelayStates:           statesCopy,
		InfoFetches:           a.infoFetches,
		InfoCacheHits:         a.infoCacheHits,
		EventsPerSecond:       a.calculateRate(a.receiveTimes, now),
		DeliveredPerSecond:    a.calculateRate(a.deliverTimes, now),
		AvgAckLatencyMs:       avgLatency,
		P95AckLatencyMs:       p95Latency,
		UptimeSeconds:         now.Sub(a.startTime).Seconds(),
		ChannelUtilization:    float64(len(a.eventCh)) / float64(cap(a.eventCh)) * 100,
		ErrorsByContext:       errorsByContextCopy,
		ErrorsBySeverity:      errorsBySeverityCopy,
		RecentErrors:          recentErrors,
	}
}

func (a *Aggregator) processEvents(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case event := <-a.eventCh:
			a.handleEvent(event)
		}
	}
}

func (a *Aggregator) handleEvent(event TelemetryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()

	switch e := event.(type) {
	case EventReceived:
		a.eventsReceived++
		a.receiveTimes = appendWindowed(a.receiveTimes, now, a.rateCutoff(now))

	case EventDelivered:
		a.eventsDelivered++
		a.deliveredByKind[e.EventKind]++
		a.deliverTimes = appendWindowed(a.deliverTimes, now, a.rateCutoff(now))

	case DuplicateDropped:
		a.duplicatesDropped++

	case ValidationDropped:
		a.validationDrops++

	case ProtocolError:
		a.protocolErrors++

	case ConnectionStateChanged:
		a.relayStates[e.RelayURL] = e.State

	case PublishStarted:
		if e.Attempt == 0 {
			a.publishesStarted++
		}

	case PublishAcked:
		a.publishesAcked++
		a.addLatency(e.Latency)

	case PublishFailed:
		a.publishesFailed++

	case InfoFetch:
		a.infoFetches++
		if e.CacheHit {
			a.infoCacheHits++
		}

	case EngineError:
		a.errorsTotal++
		a.errorsByContext[e.Context]++
		a.errorsBySeverity[e.Severity]++
		a.addRecentError(e.Err.Error())
	}
}

func (a *Aggregator) rateCutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(a.cfg.RateWindowSeconds) * time.Second)
}

func appendWindowed(times []time.Time, t, cutoff time.Time) []time.Time {
	for len(times) > 0 && times[0].Before(cutoff) {
		times = times[1:]
	}
	return append(times, t)
}

func (a *Aggregator) addLatency(latency time.Duration) {
	a.latencies[a.latencyIndex] = latency
	a.latencyIndex = (a.latencyIndex + 1) % len(a.latencies)
}

func (a *Aggregator) addRecentError(err string) {
	a.recentErrors[a.errorIndex] = err
	a.errorIndex = (a.errorIndex + 1) % len(a.recentErrors)
}

func (a *Aggregator) calculateRate(times []time.Time, now time.Time) float64 {
	if len(times) == 0 {
		return 0.0
	}

	cutoff := a.rateCutoff(now)
	count := 0
	for _, t := range times {
		if t.After(cutoff) {
			count++
		}
	}

	return float64(count) / float64(a.cfg.RateWindowSeconds)
}

func (a *Aggregator) calculateLatencyMetrics() (float64, float64) {
	valid := make([]time.Duration, 0, len(a.latencies))
	for _, lat := range a.latencies {
		if lat > 0 {
			valid = append(valid, lat)
		}
	}
	if len(valid) == 0 {
		return 0.0, 0.0
	}

	var sum time.Duration
	for _, lat := range valid {
		sum += lat
	}
	avg := float64(sum) / float64(len(valid)) / float64(time.Millisecond)

	sort.Slice(valid, func(i, j int) bool { return valid[i] < valid[j] })
	p95Index := int(float64(len(valid)) * 0.95)
	if p95Index >= len(valid) {
		p95Index = len(valid) - 1
	}
	p95 := float64(valid[p95Index]) / float64(time.Millisecond)

	return avg, p95
}
