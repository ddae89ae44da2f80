package pool

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"chat-engine/pkg/config"
	"chat-engine/pkg/telemetry"
	"chat-engine/pkg/wire"

	"github.com/gorilla/websocket"
)

// ConnState is the relay connection lifecycle state. Transitions are
// idle → connecting → (open | errored) → closed; backoff cycles between
// connecting, open and errored until the connection is removed.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateErrored
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ErrNotOpen is returned by Send when the socket is not currently open.
var ErrNotOpen = errors.New("connection is not open")

// MessageHandler receives every parsed inbound frame from a connection.
type MessageHandler func(relayURL string, msg wire.Message)

// RelayRecord is a read-only snapshot of one relay's connection state.
type RelayRecord struct {
	URL        string
	State      ConnState
	LastError  string
	LastOpenAt time.Time
}

// Connection owns one websocket to one relay URL: dialing, the read loop,
// and reconnection with backoff. It never gives up on its own; only removal
// from the pool stops the reconnect cycle.
type Connection struct {
	url          string
	dialer       Dialer
	network      config.NetworkConfig
	writeTimeout time.Duration
	logger       *log.Logger
	tel          telemetry.TelemetryPublisher

	onOpen    func(*Connection)
	onDetach  func(relayURL string)
	onMessage MessageHandler

	mu         sync.Mutex
	writeMu    sync.Mutex
	sock       Socket
	state      ConnState
	lastErr    error
	lastOpenAt time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(url string, opts Options) *Connection {
	writeTimeout := time.Duration(opts.Network.WriteTimeoutSeconds) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = time.Duration(config.DefaultNetworkWriteTimeoutSeconds) * time.Second
	}
	return &Connection{
		url:          url,
		dialer:       opts.Dialer,
		network:      opts.Network,
		writeTimeout: writeTimeout,
		logger:       opts.Logger,
		tel:          opts.Telemetry,
		onOpen:       opts.OnOpen,
		onDetach:     opts.OnDetach,
		onMessage:    opts.OnMessage,
		state:        StateIdle,
		done:         make(chan struct{}),
	}
}

func (c *Connection) URL() string { return c.url }

// Send writes a frame to the relay. Fails fast when the socket is not open;
// the caller decides whether that matters (publish retries do, REQ replays
// happen again on reconnect anyway). The write deadline bounds how long a
// stalled peer can hold the caller; a write that fails poisons the socket,
// so it is closed here to kick the read loop into the reconnect cycle.
func (c *Connection) Send(data []byte) error {
	c.mu.Lock()
	sock, state := c.sock, c.state
	c.mu.Unlock()

	if state != StateOpen || sock == nil {
		return ErrNotOpen
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	sock.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
		sock.Close()
		return err
	}
	return nil
}

// Record returns a snapshot of the connection's current state.
func (c *Connection) Record() RelayRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := RelayRecord{URL: c.url, State: c.state, LastOpenAt: c.lastOpenAt}
	if c.lastErr != nil {
		rec.LastError = c.lastErr.Error()
	}
	return rec
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// run drives the connect/read/backoff cycle until the connection is closed.
func (c *Connection) run() {
	attempt := 0
	for {
		if c.isDone() {
			c.setState(StateClosed, nil)
			return
		}

		c.setState(StateConnecting, nil)
		sock, err := c.dialer.Dial(context.Background(), c.url)
		if c.isDone() {
			if sock != nil {
				sock.Close()
			}
			c.setState(StateClosed, nil)
			return
		}
		if err != nil {
			c.setState(StateErrored, err)
			c.tel.Publish(telemetry.NewEngineError(err, "relay_dial", telemetry.ErrorSeverityWarning))
			if !c.waitBackoff(attempt) {
				c.setState(StateClosed, nil)
				return
			}
			attempt++
			continue
		}

		c.setOpen(sock)
		attempt = 0
		if c.onOpen != nil {
			c.onOpen(c)
		}

		readErr := c.readLoop(sock)
		sock.Close()
		if c.onDetach != nil {
			c.onDetach(c.url)
		}
		if c.isDone() {
			c.setState(StateClosed, nil)
			return
		}

		c.setState(StateErrored, readErr)
		c.logger.Printf("connection to %s lost: %v", c.url, readErr)
		if !c.waitBackoff(attempt) {
			c.setState(StateClosed, nil)
			return
		}
		attempt++
	}
}

// readLoop parses inbound frames and dispatches them until the socket fails.
func (c *Connection) readLoop(sock Socket) error {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			return err
		}

		msg, perr := wire.Parse(data)
		if perr != nil {
			c.tel.Publish(telemetry.NewProtocolError(c.url, perr.Error()))
			continue
		}
		if c.onMessage != nil {
			c.onMessage(c.url, msg)
		}
	}
}

func (c *Connection) setOpen(sock Socket) {
	c.mu.Lock()
	c.sock = sock
	c.state = StateOpen
	c.lastErr = nil
	c.lastOpenAt = time.Now()
	c.mu.Unlock()

	c.logger.Printf("connected to %s", c.url)
	c.tel.Publish(telemetry.NewConnectionStateChanged(c.url, StateOpen.String()))
}

func (c *Connection) setState(state ConnState, err error) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	if err != nil {
		c.lastErr = err
	}
	if state != StateOpen {
		c.sock = nil
	}
	c.mu.Unlock()

	if changed {
		c.tel.Publish(telemetry.NewConnectionStateChanged(c.url, state.String()))
	}
}

func (c *Connection) waitBackoff(attempt int) bool {
	delay := nextBackoff(c.network, attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-c.done:
		return false
	case <-timer.C:
		return true
	}
}

func (c *Connection) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// close stops the reconnect cycle and tears the socket down.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		sock := c.sock
		c.sock = nil
		c.state = StateClosed
		c.mu.Unlock()
		if sock != nil {
			sock.Close()
		}
		c.tel.Publish(telemetry.NewConnectionStateChanged(c.url, StateClosed.String()))
	})
}
