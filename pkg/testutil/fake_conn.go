package testutil

import "sync"

// FakeConn records frames sent to one relay. It satisfies the Conn
// interfaces of the mux and publish packages.
type FakeConn struct {
	URLStr  string
	SendErr error

	mu   sync.Mutex
	sent [][]byte
}

func NewFakeConn(url string) *FakeConn {
	return &FakeConn{URLStr: url}
}

func (c *FakeConn) URL() string { return c.URLStr }

func (c *FakeConn) Send(data []byte) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	frame := make([]byte, len(data))
	copy(frame, data)
	c.sent = append(c.sent, frame)
	return nil
}

// Sent returns a copy of every frame sent so far.
func (c *FakeConn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentCount returns how many frames were sent.
func (c *FakeConn) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}
