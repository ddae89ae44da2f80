// Package engine assembles the client engine: the relay pool, the
// subscription multiplexer, the publish tracker and the capability cache,
// wired so that inbound frames route to the right component and outbound
// operations fan out to every open relay.
package engine

import (
	"context"
	"log"
	"os"

	"chat-engine/pkg/codec"
	"chat-engine/pkg/config"
	"chat-engine/pkg/mux"
	"chat-engine/pkg/pool"
	"chat-engine/pkg/publish"
	"chat-engine/pkg/relayinfo"
	"chat-engine/pkg/telemetry"
	"chat-engine/pkg/wire"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip11"
)

// Options carries the engine's injectable collaborators. Zero values get
// production defaults; tests swap in fakes.
type Options struct {
	Logger    *log.Logger
	Telemetry telemetry.TelemetryPublisher
	Dialer    pool.Dialer
	Clock     publish.Clock
}

// Engine is the façade over the whole client stack. All methods are safe
// for concurrent use.
type Engine struct {
	cfg    *config.Config
	logger *log.Logger
	tel    telemetry.TelemetryPublisher

	pool    *pool.Pool
	mux     *mux.Mux
	tracker *publish.Tracker
	info    *relayinfo.Cache
}

func New(cfg *config.Config, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.NewNoopPublisher()
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		tel:    tel,
	}

	e.mux = mux.New(logger, tel, codec.Validate)
	e.tracker = publish.NewTracker(
		publish.OptionsFromConfig(cfg.Ack),
		opts.Clock,
		logger,
		tel,
		e.openPublishConns,
	)
	e.info = relayinfo.New(cfg.Info, nil, nil, logger, tel)
	e.pool = pool.New(pool.Options{
		Network:   cfg.Network,
		Logger:    logger,
		Telemetry: tel,
		Dialer:    opts.Dialer,
		OnOpen:    func(conn *pool.Connection) { e.mux.AttachConn(conn) },
		OnDetach:  e.mux.DetachConn,
		OnMessage: e.dispatch,
	})

	return e
}

// Start brings up a connection for every configured relay. Connections heal
// themselves from there; Start never blocks on the network.
func (e *Engine) Start() {
	e.pool.Reconcile(e.cfg.RelayURLs)
}

// Reconcile converges the relay set to the given URL list. Subscriptions
// replay onto new relays as they open; removed relays are torn down.
func (e *Engine) Reconcile(relayURLs []string) {
	e.pool.Reconcile(relayURLs)
}

// Subscribe opens a logical subscription across every relay, current and
// future. The callback sees each matching event exactly once.
func (e *Engine) Subscribe(filter nostr.Filter, cb mux.Callback) (*mux.Subscription, error) {
	return e.mux.Open(filter, cb)
}

// Unsubscribe ends a subscription on every relay carrying it.
func (e *Engine) Unsubscribe(sub *mux.Subscription) {
	e.mux.Close(sub)
}

// RefreshSubscriptions re-issues every live filter on every open relay.
func (e *Engine) RefreshSubscriptions() {
	e.mux.Refresh()
}

// Publish broadcasts a pre-built signed event to every open relay. The
// returned channel resolves true once the ack threshold is met, false when
// the retry plan is exhausted.
func (e *Engine) Publish(event *nostr.Event) <-chan bool {
	return e.tracker.Publish(event)
}

// SendDM encrypts text to the recipient, signs it with the engine's key and
// publishes it.
func (e *Engine) SendDM(recipientPKHex, text string) (*nostr.Event, <-chan bool, error) {
	event, err := codec.NewDM(e.cfg.KeyPair.PrivateKeyHex, recipientPKHex, text)
	if err != nil {
		return nil, nil, err
	}
	return event, e.tracker.Publish(event), nil
}

// DecryptDM recovers the plaintext of a DM addressed to the engine's key.
func (e *Engine) DecryptDM(event *nostr.Event) (string, error) {
	return codec.DecryptDM(e.cfg.KeyPair.PrivateKeyHex, event)
}

// CreateRoom publishes a room creation event. The new room's id is the
// returned event's id.
func (e *Engine) CreateRoom(meta codec.RoomMeta) (*nostr.Event, <-chan bool, error) {
	event, err := codec.NewRoom(e.cfg.KeyPair.PrivateKeyHex, meta)
	if err != nil {
		return nil, nil, err
	}
	return event, e.tracker.Publish(event), nil
}

// SendRoomMessage publishes a message into an existing room.
func (e *Engine) SendRoomMessage(roomID, text string) (*nostr.Event, <-chan bool, error) {
	event, err := codec.NewRoomMessage(e.cfg.KeyPair.PrivateKeyHex, roomID, text)
	if err != nil {
		return nil, nil, err
	}
	return event, e.tracker.Publish(event), nil
}

// PublishStatus reports the per-relay accept/reject state of an outstanding
// publish.
func (e *Engine) PublishStatus(eventID string) (map[string]publish.Status, bool) {
	return e.tracker.StatusOf(eventID)
}

// RelayInfo fetches the relay's capability document through the TTL cache.
func (e *Engine) RelayInfo(ctx context.Context, relayURL string, opts relayinfo.Options) (*nip11.RelayInformationDocument, error) {
	return e.info.Fetch(ctx, relayURL, opts)
}

// Snapshot returns read-only per-relay connection records.
func (e *Engine) Snapshot() []pool.RelayRecord {
	return e.pool.Snapshot()
}

// Pool exposes the connection pool for diagnostics.
func (e *Engine) Pool() *pool.Pool { return e.pool }

// PublicKey returns the engine identity's hex public key.
func (e *Engine) PublicKey() string { return e.cfg.KeyPair.PublicKeyHex }

// Close resolves every outstanding publish to false and tears down all
// connections.
func (e *Engine) Close() {
	e.tracker.Close()
	e.pool.Close()
}

// dispatch routes one parsed inbound frame to the component that owns its
// label.
func (e *Engine) dispatch(relayURL string, msg wire.Message) {
	switch m := msg.(type) {
	case wire.EventMsg:
		e.mux.HandleEvent(relayURL, m)
	case wire.EOSEMsg:
		e.mux.HandleEOSE(relayURL, m.SubID)
	case wire.ClosedMsg:
		e.mux.HandleClosed(relayURL, m)
	case wire.OKMsg:
		e.tracker.HandleOK(relayURL, m)
	case wire.NoticeMsg:
		e.logger.Printf("notice from %s: %s", relayURL, m.Text)
	case wire.AuthMsg:
		// Relay authentication is not supported; the challenge is dropped.
	}
}

func (e *Engine) openPublishConns() []publish.Conn {
	open := e.pool.Open()
	conns := make([]publish.Conn, 0, len(open))
	for _, conn := range open {
		conns = append(conns, conn)
	}
	return conns
}
