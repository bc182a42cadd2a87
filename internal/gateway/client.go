package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a Peer backed by a websocket. Sends land in an unbounded outbox
// that a single writer goroutine drains, so Send never blocks.
type Client struct {
	id           string
	ws           wsWriter
	writeTimeout time.Duration

	mu     sync.Mutex
	queue  [][]byte
	closed bool
	err    error

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func NewClient(ws wsWriter, writeTimeout time.Duration) *Client {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Client{
		id:           uuid.NewString(),
		ws:           ws,
		writeTimeout: writeTimeout,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	if c.closed {
		err := c.err
		c.mu.Unlock()
		if err != nil {
			return err
		}
		return ErrClientClosed
	}
	c.queue = append(c.queue, payload)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending reports queued, unwritten messages.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// WriteLoop drains the outbox until Close or a write error.
func (c *Client) WriteLoop() error {
	for {
		select {
		case <-c.done:
			return nil
		case <-c.wake:
		}

		for {
			payload, ok := c.pop()
			if !ok {
				break
			}
			if err := c.write(payload); err != nil {
				c.fail(err)
				return err
			}
		}
	}
}

func (c *Client) pop() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.queue) == 0 {
		return nil, false
	}
	p := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return p, true
}

func (c *Client) write(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.Close()
}

// Close stops the writer and drops anything still queued.
func (c *Client) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.queue = nil
		c.mu.Unlock()
		close(c.done)
		_ = c.ws.Close()
	})
}
