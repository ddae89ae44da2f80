package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"chat-engine/pkg/pool"
)

// ErrSocketClosed is what a FakeSocket read returns once the socket closes.
var ErrSocketClosed = errors.New("socket closed")

// FakeSocket is an in-memory pool.Socket. Tests push inbound frames through
// Deliver and inspect outbound ones through Written.
type FakeSocket struct {
	incoming chan []byte

	mu       sync.Mutex
	written  [][]byte
	closed   bool
	stalled  bool
	deadline time.Time
	done     chan struct{}
}

func NewFakeSocket() *FakeSocket {
	return &FakeSocket{
		incoming: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// Deliver queues a frame for the next ReadMessage call.
func (s *FakeSocket) Deliver(data []byte) {
	s.incoming <- data
}

func (s *FakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case data := <-s.incoming:
		return 1, data, nil
	case <-s.done:
		return 0, nil, ErrSocketClosed
	}
}

// StallWrites makes every later write block until its deadline passes and
// then fail, mimicking a peer that stopped reading.
func (s *FakeSocket) StallWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalled = true
}

func (s *FakeSocket) SetWriteDeadline(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = t
	return nil
}

func (s *FakeSocket) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSocketClosed
	}
	stalled, deadline := s.stalled, s.deadline
	s.mu.Unlock()

	if stalled {
		wait := time.Hour
		if !deadline.IsZero() {
			wait = time.Until(deadline)
		}
		select {
		case <-time.After(wait):
			return errors.New("write deadline exceeded")
		case <-s.done:
			return ErrSocketClosed
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSocketClosed
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	s.written = append(s.written, frame)
	return nil
}

func (s *FakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// Written returns a copy of every frame written so far.
func (s *FakeSocket) Written() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.written))
	copy(out, s.written)
	return out
}

// FakeDialer hands out sockets (or errors) per dial attempt and records
// every attempt. With no script it returns a fresh FakeSocket each time.
type FakeDialer struct {
	// DialFunc, when set, decides each dial's outcome.
	DialFunc func(ctx context.Context, url string) (*FakeSocket, error)

	mu      sync.Mutex
	dials   []string
	sockets []*FakeSocket
}

// Dial satisfies pool.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, url string) (pool.Socket, error) {
	var sock *FakeSocket
	var err error
	if d.DialFunc != nil {
		sock, err = d.DialFunc(ctx, url)
	} else {
		sock = NewFakeSocket()
	}

	d.mu.Lock()
	d.dials = append(d.dials, url)
	if sock != nil {
		d.sockets = append(d.sockets, sock)
	}
	d.mu.Unlock()

	if sock == nil {
		return nil, err
	}
	return sock, err
}

// DialCount returns how many dial attempts were made.
func (d *FakeDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

// Socket returns the i-th socket handed out, or nil.
func (d *FakeDialer) Socket(i int) *FakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.sockets) {
		return nil
	}
	return d.sockets[i]
}

// SocketFor returns the most recent socket handed out for a URL, or nil.
func (d *FakeDialer) SocketFor(url string) *FakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.dials) - 1; i >= 0; i-- {
		if d.dials[i] == url && i < len(d.sockets) {
			return d.sockets[i]
		}
	}
	return nil
}
