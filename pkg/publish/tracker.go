// Package publish implements the optimistic multi-relay broadcast and the
// bounded-wait acknowledgment protocol. There is no leader and no quorum:
// an event goes to every open relay at once and the publish is acked the
// moment enough relays independently accept it.
package publish

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"chat-engine/pkg/config"
	"chat-engine/pkg/telemetry"
	"chat-engine/pkg/wire"

	"github.com/nbd-wtf/go-nostr"
)

// Conn is the slice of a relay connection the tracker needs.
type Conn interface {
	URL() string
	Send(data []byte) error
}

// Status is a relay's verdict on a published event.
type Status int

const (
	StatusPending Status = iota
	StatusOK
	StatusRejected
)

// Options tunes the acknowledgment protocol. The defaults come from
// config; nothing here is an invariant of the wire protocol.
type Options struct {
	// Threshold is how many distinct relays must accept before the
	// publish resolves true. 1 trades durability for latency.
	Threshold int
	// AckWait bounds the wait after the initial broadcast and after the
	// final rebroadcast.
	AckWait time.Duration
	// RetryPlan is the escalating delay before each rebroadcast.
	RetryPlan []time.Duration
	// Grace keeps resolved entries around to absorb late acks.
	Grace time.Duration
}

// OptionsFromConfig converts the config representation.
func OptionsFromConfig(cfg config.AckConfig) Options {
	plan := make([]time.Duration, 0, len(cfg.RetryPlanSeconds))
	for _, secs := range cfg.RetryPlanSeconds {
		plan = append(plan, time.Duration(secs)*time.Second)
	}
	return Options{
		Threshold: cfg.Threshold,
		AckWait:   time.Duration(cfg.WaitSeconds) * time.Second,
		RetryPlan: plan,
		Grace:     time.Duration(cfg.GraceSeconds) * time.Second,
	}
}

// pending is one outstanding publish moving through
// Publishing → AwaitingAck → (Acked | Retrying…) → (Acked | Failed).
type pending struct {
	event    *nostr.Event
	frame    []byte
	statuses map[string]Status
	acks     int
	result   chan bool
	resolved bool
	retryIdx int
	attempts int
	started  time.Time
	timer    Timer
}

// Tracker owns every outstanding publish and its retry schedule.
type Tracker struct {
	opts   Options
	clock  Clock
	logger *log.Logger
	tel    telemetry.TelemetryPublisher
	open   func() []Conn

	mu      sync.Mutex
	pending map[string]*pending
	closed  bool
}

// NewTracker builds a tracker. open supplies the relay set that is open at
// the moment of each broadcast, which the pool keeps healing independently.
func NewTracker(opts Options, clock Clock, logger *log.Logger, tel telemetry.TelemetryPublisher, open func() []Conn) *Tracker {
	if opts.Threshold < 1 {
		opts.Threshold = 1
	}
	if clock == nil {
		clock = NewRealClock()
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[publish] ", log.LstdFlags)
	}
	if tel == nil {
		tel = telemetry.NewNoopPublisher()
	}
	return &Tracker{
		opts:    opts,
		clock:   clock,
		logger:  logger,
		tel:     tel,
		open:    open,
		pending: make(map[string]*pending),
	}
}

// Publish broadcasts the event to every open relay and returns a channel
// that resolves exactly once: true when the ack threshold is met, false
// when the retry plan is exhausted. The channel is buffered; the caller may
// ignore it.
func (t *Tracker) Publish(event *nostr.Event) <-chan bool {
	result := make(chan bool, 1)

	frame, err := wire.EventFrame(event)
	if err != nil {
		// Unserializable event: fail as data, never as a panic.
		t.tel.Publish(telemetry.NewEngineError(err, "publish_encode", telemetry.ErrorSeverityError))
		result <- false
		return result
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		result <- false
		return result
	}

	p := &pending{
		event:    event,
		frame:    frame,
		statuses: make(map[string]Status),
		result:   result,
		started:  t.clock.Now(),
	}
	t.pending[event.ID] = p

	t.broadcastLocked(p)
	p.timer = t.clock.AfterFunc(t.opts.AckWait, func() { t.onAckWaitElapsed(event.ID) })
	return result
}

// Await blocks on a publish outcome until the context ends; a cancelled
// context reads as not-acked.
func Await(ctx context.Context, acked <-chan bool) bool {
	select {
	case ok := <-acked:
		return ok
	case <-ctx.Done():
		return false
	}
}

// HandleOK records a relay's accept/reject signal. Accepts count toward
// the threshold; rejects only mark the relay and can never resolve the
// outcome by themselves. Signals for unknown events (late, past the grace
// window) are ignored.
func (t *Tracker) HandleOK(relayURL string, msg wire.OKMsg) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.pending[msg.EventID]
	if p == nil {
		return
	}

	if !msg.Accepted {
		p.statuses[relayURL] = StatusRejected
		t.logger.Printf("relay %s rejected %s: %s", relayURL, msg.EventID, msg.Reason)
		return
	}

	if p.statuses[relayURL] != StatusOK {
		p.statuses[relayURL] = StatusOK
		p.acks++
	}
	if !p.resolved && p.acks >= t.opts.Threshold {
		t.resolveLocked(p, true, relayURL)
	}
}

// StatusOf returns a copy of the per-relay statuses for an outstanding (or
// grace-window) publish.
func (t *Tracker) StatusOf(eventID string) (map[string]Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.pending[eventID]
	if p == nil {
		return nil, false
	}
	statuses := make(map[string]Status, len(p.statuses))
	for url, status := range p.statuses {
		statuses[url] = status
	}
	return statuses, true
}

// Close resolves every outstanding publish to false and stops all timers.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for id, p := range t.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		if !p.resolved {
			p.resolved = true
			p.result <- false
		}
		delete(t.pending, id)
	}
}

// broadcastLocked sends the frame to whichever relays are open right now.
func (t *Tracker) broadcastLocked(p *pending) {
	conns := t.open()
	for _, conn := range conns {
		if err := conn.Send(p.frame); err != nil {
			t.logger.Printf("broadcast of %s to %s failed: %v", p.event.ID, conn.URL(), err)
			continue
		}
		if _, known := p.statuses[conn.URL()]; !known {
			p.statuses[conn.URL()] = StatusPending
		}
	}
	t.tel.Publish(telemetry.NewPublishStarted(p.event.ID, len(conns), p.attempts))
	p.attempts++
}

// onAckWaitElapsed fires when a bounded ack window closes without the
// threshold being met: either the next retry gets scheduled or, with the
// plan exhausted, the publish fails.
func (t *Tracker) onAckWaitElapsed(eventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.pending[eventID]
	if p == nil || p.resolved {
		return
	}

	if p.retryIdx >= len(t.opts.RetryPlan) {
		t.resolveLocked(p, false, "")
		return
	}
	delay := t.opts.RetryPlan[p.retryIdx]
	p.timer = t.clock.AfterFunc(delay, func() { t.onRetryDue(eventID) })
}

// onRetryDue rebroadcasts against the then-current open set and schedules
// the next step: another retry delay, or the final ack window when the plan
// just ran out.
func (t *Tracker) onRetryDue(eventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.pending[eventID]
	if p == nil || p.resolved {
		return
	}

	p.retryIdx++
	t.broadcastLocked(p)

	if p.retryIdx >= len(t.opts.RetryPlan) {
		p.timer = t.clock.AfterFunc(t.opts.AckWait, func() { t.onAckWaitElapsed(eventID) })
		return
	}
	delay := t.opts.RetryPlan[p.retryIdx]
	p.timer = t.clock.AfterFunc(delay, func() { t.onRetryDue(eventID) })
}

// resolveLocked settles the outcome exactly once and schedules disposal
// after the grace window for late acks.
func (t *Tracker) resolveLocked(p *pending, acked bool, relayURL string) {
	p.resolved = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.result <- acked

	eventID := p.event.ID
	if acked {
		t.tel.Publish(telemetry.NewPublishAcked(eventID, relayURL, t.clock.Now().Sub(p.started)))
	} else {
		t.tel.Publish(telemetry.NewPublishFailed(eventID, p.attempts))
		t.logger.Printf("publish of %s failed after %d attempts", eventID, p.attempts)
	}

	t.clock.AfterFunc(t.opts.Grace, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.pending, eventID)
	})
}
