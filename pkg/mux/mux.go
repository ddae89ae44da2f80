// Package mux maps logical subscriptions onto per-relay subscription
// requests and restores a single coherent stream out of however many relays
// happen to deliver: every validated event reaches a subscription's callback
// exactly once, whatever the relay count or arrival order.
package mux

import (
	"fmt"
	"log"
	"os"
	"sync"

	"chat-engine/pkg/telemetry"
	"chat-engine/pkg/wire"

	"github.com/nbd-wtf/go-nostr"
)

// Conn is the slice of a relay connection the multiplexer needs.
type Conn interface {
	URL() string
	Send(data []byte) error
}

// Callback receives each deduplicated, validated event. relayURL names the
// relay that delivered the copy that won.
type Callback func(event *nostr.Event, relayURL string)

// Validator rejects inbound events before they can reach a callback.
type Validator func(event *nostr.Event) error

// Subscription is one logical feed. Its dedup state lives as long as the
// subscription does, across any number of relay reconnects.
type Subscription struct {
	id     string
	filter nostr.Filter
	cb     Callback

	relays map[string]string // relay URL -> wire subscription id
	seen   map[string]struct{}
	eose   map[string]bool
}

// ID returns the logical subscription id.
func (s *Subscription) ID() string { return s.id }

// Filter returns the subscription's query filter.
func (s *Subscription) Filter() nostr.Filter { return s.filter }

// Mux is the subscription multiplexer.
type Mux struct {
	logger   *log.Logger
	tel      telemetry.TelemetryPublisher
	validate Validator

	mu      sync.Mutex
	conns   map[string]Conn
	subs    map[string]*Subscription
	byRelay map[string]map[string]*Subscription // relay URL -> wire id -> sub
	nextID  uint64
}

func New(logger *log.Logger, tel telemetry.TelemetryPublisher, validate Validator) *Mux {
	if logger == nil {
		logger = log.New(os.Stderr, "[mux] ", log.LstdFlags)
	}
	if tel == nil {
		tel = telemetry.NewNoopPublisher()
	}
	return &Mux{
		logger:   logger,
		tel:      tel,
		validate: validate,
		conns:    make(map[string]Conn),
		subs:     make(map[string]*Subscription),
		byRelay:  make(map[string]map[string]*Subscription),
	}
}

// AttachConn registers a newly opened connection and replays every live
// filter to it (late join). Safe to call again after a reconnect.
func (m *Mux) AttachConn(conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conns[conn.URL()] = conn
	for _, sub := range m.subs {
		m.issueLocked(sub, conn)
	}
}

// DetachConn forgets a lost connection's relay-local subscription ids and
// EOSE marks. Dedup state is untouched; it belongs to the subscriptions,
// not the wire.
func (m *Mux) DetachConn(relayURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.conns, relayURL)
	delete(m.byRelay, relayURL)
	for _, sub := range m.subs {
		delete(sub.relays, relayURL)
		delete(sub.eose, relayURL)
	}
}

// Open starts a logical subscription: the filter goes to every currently
// open relay, and to any relay that opens later.
func (m *Mux) Open(filter nostr.Filter, cb Callback) (*Subscription, error) {
	if cb == nil {
		return nil, fmt.Errorf("subscription callback is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	sub := &Subscription{
		id:     fmt.Sprintf("sub%d", m.nextID),
		filter: filter,
		cb:     cb,
		relays: make(map[string]string),
		seen:   make(map[string]struct{}),
		eose:   make(map[string]bool),
	}
	m.subs[sub.id] = sub

	for _, conn := range m.conns {
		m.issueLocked(sub, conn)
	}
	return sub, nil
}

// Close ends a subscription: CLOSE frames to every relay carrying it, then
// the dedup state is discarded.
func (m *Mux) Close(sub *Subscription) {
	if sub == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, live := m.subs[sub.id]; !live {
		return
	}
	delete(m.subs, sub.id)

	for relayURL, wireID := range sub.relays {
		if relay := m.byRelay[relayURL]; relay != nil {
			delete(relay, wireID)
		}
		conn := m.conns[relayURL]
		if conn == nil {
			continue
		}
		frame, err := wire.CloseFrame(wireID)
		if err != nil {
			continue
		}
		if err := conn.Send(frame); err != nil {
			// Best effort; a dead connection has no subscription to close.
			m.logger.Printf("failed to close %s on %s: %v", sub.id, relayURL, err)
		}
	}
	sub.relays = make(map[string]string)
}

// Refresh re-issues every live filter on every attached connection. Dedup
// makes the resulting replays harmless.
func (m *Mux) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs {
		for _, conn := range m.conns {
			m.issueLocked(sub, conn)
		}
	}
}

// issueLocked sends the subscription's REQ to one connection, reusing the
// existing wire id when the relay already carries it.
func (m *Mux) issueLocked(sub *Subscription, conn Conn) {
	relayURL := conn.URL()
	wireID, exists := sub.relays[relayURL]
	if !exists {
		m.nextID++
		wireID = fmt.Sprintf("%s.%d", sub.id, m.nextID)
	}

	frame, err := wire.ReqFrame(wireID, sub.filter)
	if err != nil {
		m.logger.Printf("failed to build REQ for %s: %v", sub.id, err)
		return
	}
	if err := conn.Send(frame); err != nil {
		m.logger.Printf("failed to issue %s to %s: %v", sub.id, relayURL, err)
		return
	}

	sub.relays[relayURL] = wireID
	relay := m.byRelay[relayURL]
	if relay == nil {
		relay = make(map[string]*Subscription)
		m.byRelay[relayURL] = relay
	}
	relay[wireID] = sub
}

// HandleEvent routes an inbound EVENT frame: dedup, validate, deliver.
// Lookup and dedup run first so known duplicates and stray wire ids never
// pay for a signature check; only a copy that would actually be delivered
// gets validated. Invalid events vanish without a trace beyond telemetry
// and are not marked seen, so a later honest copy still goes through.
func (m *Mux) HandleEvent(relayURL string, msg wire.EventMsg) {
	m.mu.Lock()
	sub := m.lookupLocked(relayURL, msg.SubID)
	if sub == nil {
		m.mu.Unlock()
		return
	}

	m.tel.Publish(telemetry.NewEventReceived(relayURL, msg.Event.Kind, msg.Event.ID))

	if _, dup := sub.seen[msg.Event.ID]; dup {
		m.mu.Unlock()
		m.tel.Publish(telemetry.NewDuplicateDropped(relayURL, msg.Event.ID))
		return
	}
	m.mu.Unlock()

	if m.validate != nil {
		if err := m.validate(msg.Event); err != nil {
			m.tel.Publish(telemetry.NewValidationDropped(relayURL, err.Error()))
			return
		}
	}

	m.mu.Lock()
	if _, live := m.subs[sub.id]; !live {
		m.mu.Unlock()
		return
	}
	// Another relay's copy may have won while the signature check ran.
	if _, dup := sub.seen[msg.Event.ID]; dup {
		m.mu.Unlock()
		m.tel.Publish(telemetry.NewDuplicateDropped(relayURL, msg.Event.ID))
		return
	}
	sub.seen[msg.Event.ID] = struct{}{}
	cb := sub.cb
	m.mu.Unlock()

	cb(msg.Event, relayURL)
	m.tel.Publish(telemetry.NewEventDelivered(msg.Event.Kind, msg.Event.ID))
}

// HandleEOSE records end-of-stored-events per relay for a subscription.
func (m *Mux) HandleEOSE(relayURL, wireID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub := m.lookupLocked(relayURL, wireID); sub != nil {
		sub.eose[relayURL] = true
	}
}

// HandleClosed drops the relay-local leg of a subscription the relay
// terminated. The logical subscription stays live on its other relays.
func (m *Mux) HandleClosed(relayURL string, msg wire.ClosedMsg) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := m.lookupLocked(relayURL, msg.SubID)
	if sub == nil {
		return
	}
	delete(sub.relays, relayURL)
	if relay := m.byRelay[relayURL]; relay != nil {
		delete(relay, msg.SubID)
	}
	m.logger.Printf("relay %s closed %s: %s", relayURL, msg.SubID, msg.Reason)
}

// SawEOSE reports whether the given relay signalled end-of-stored-events
// for the subscription. Diagnostic only.
func (m *Mux) SawEOSE(sub *Subscription, relayURL string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sub.eose[relayURL]
}

// RelayCount returns how many relays currently carry the subscription.
func (m *Mux) RelayCount(sub *Subscription) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(sub.relays)
}

func (m *Mux) lookupLocked(relayURL, wireID string) *Subscription {
	relay := m.byRelay[relayURL]
	if relay == nil {
		return nil
	}
	return relay[wireID]
}
