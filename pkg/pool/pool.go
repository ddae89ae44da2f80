// Package pool maintains one reconnecting websocket per enabled relay and
// exposes the open subset. Relays are never dropped for misbehaving; only
// reconciliation against the enabled list adds or removes them.
package pool

import (
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"chat-engine/pkg/config"
	"chat-engine/pkg/telemetry"
)

// Options configures a Pool. OnOpen/OnDetach/OnMessage hooks are shared by
// every connection the pool creates.
type Options struct {
	Network   config.NetworkConfig
	Logger    *log.Logger
	Telemetry telemetry.TelemetryPublisher
	Dialer    Dialer

	OnOpen    func(*Connection)
	OnDetach  func(relayURL string)
	OnMessage MessageHandler
}

// Pool is the set of relay connections keyed by URL.
type Pool struct {
	opts Options

	mu     sync.Mutex
	conns  map[string]*Connection
	closed bool
}

func New(opts Options) *Pool {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[pool] ", log.LstdFlags)
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.NewNoopPublisher()
	}
	if opts.Dialer == nil {
		timeout := time.Duration(opts.Network.DialTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		opts.Dialer = NewWebsocketDialer(timeout)
	}
	return &Pool{
		opts:  opts,
		conns: make(map[string]*Connection),
	}
}

// Reconcile converges the live connection set to the enabled URL list:
// new URLs get a connection, URLs no longer present are torn down. Calling
// it again with the same list is a no-op.
func (p *Pool) Reconcile(enabledURLs []string) {
	enabled := make(map[string]struct{}, len(enabledURLs))
	for _, url := range enabledURLs {
		enabled[url] = struct{}{}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	var removed []*Connection
	for url, conn := range p.conns {
		if _, keep := enabled[url]; !keep {
			removed = append(removed, conn)
			delete(p.conns, url)
		}
	}

	var added []*Connection
	for url := range enabled {
		if _, exists := p.conns[url]; exists {
			continue
		}
		conn := newConnection(url, p.opts)
		p.conns[url] = conn
		added = append(added, conn)
	}
	p.mu.Unlock()

	for _, conn := range removed {
		p.opts.Logger.Printf("removing relay %s", conn.URL())
		conn.close()
	}
	for _, conn := range added {
		go conn.run()
	}
}

// Open returns the connections currently in the open state.
func (p *Pool) Open() []*Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	var open []*Connection
	for _, conn := range p.conns {
		if conn.State() == StateOpen {
			open = append(open, conn)
		}
	}
	return open
}

// Get returns the connection for a URL, or nil if the relay is not enabled.
func (p *Pool) Get(url string) *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conns[url]
}

// Snapshot returns read-only per-relay records, sorted by URL.
func (p *Pool) Snapshot() []RelayRecord {
	p.mu.Lock()
	conns := make([]*Connection, 0, len(p.conns))
	for _, conn := range p.conns {
		conns = append(conns, conn)
	}
	p.mu.Unlock()

	records := make([]RelayRecord, 0, len(conns))
	for _, conn := range conns {
		records = append(records, conn.Record())
	}
	sort.Slice(records, func(i, j int) bool { return records[i].URL < records[j].URL })
	return records
}

// Close tears down every connection. The pool is unusable afterwards.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	conns := make([]*Connection, 0, len(p.conns))
	for _, conn := range p.conns {
		conns = append(conns, conn)
	}
	p.conns = make(map[string]*Connection)
	p.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
}
