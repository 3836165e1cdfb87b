// Package transport implements the dual Unix-domain / WebSocket socket
// listener, per-client I/O, and idle/dangling sweeps described in spec.md
// §4.B. Per-client I/O here runs a blocking reader goroutine and a
// queue-drained writer goroutine rather than the raw epoll/select
// readiness loop spec.md sketches: each accepted connection gets its own
// goroutine doing blocking Accept/Read calls, and the Go runtime's own
// netpoller provides the readiness multiplexing that an explicit
// epoll/select reactor would otherwise hand-roll. Reader goroutines only
// ever decode bytes and hand a parsed message to the engine's single
// inbound channel; they never touch session/registry/model state
// directly, so the invariant that matters — that all engine/domain-state
// mutation happens on exactly one goroutine (spec.md §5) — still holds.
package transport

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/eapache/queue"

	"github.com/HVML/purcmc-renderer/internal/frame"
	"github.com/HVML/purcmc-renderer/internal/registry"
)

// ThrottleThreshold is the per-client outbound queue size, in bytes, past
// which the client is flagged throttling and the writer goroutine is
// relied on exclusively to drain it, per spec.md §4.B "Backpressure".
const ThrottleThreshold = 1 << 20

// MaxQueuedBytes is the hard cap on a throttling client's outbound queue;
// exceeding it closes the client, per spec.md §4.B "If the queue grows
// without bound the server closes the client."
const MaxQueuedBytes = 16 * ThrottleThreshold

// Kind distinguishes which wire framing a Client speaks.
type Kind int

const (
	KindUnix Kind = iota
	KindWebSocket
)

// Client wraps one accepted connection: a queued, single-writer-goroutine
// outbound path plus the raw net.Conn a reader goroutine decodes from.
// It implements registry.ClientConn.
type Client struct {
	Conn net.Conn
	Kind Kind

	mu         sync.Mutex
	out        *queue.Queue
	queuedSize int
	throttled  bool
	closed     bool

	wake     chan struct{}
	done     chan struct{}
	closeErr error
}

var _ registry.ClientConn = (*Client)(nil)

// EncodeForTransport wraps a serialized wire message body in the framing
// the given transport kind expects: a single text Unix-socket frame, or a
// single, unmasked, UTF-8-sanitized WebSocket text frame.
func EncodeForTransport(kind Kind, body []byte) []byte {
	switch kind {
	case KindWebSocket:
		return frame.EncodeWSFrame(frame.WSText, true, frame.SanitizeUTF8(body))
	default:
		var buf bytes.Buffer
		frame.EncodeUnixMessage(&buf, body, true)
		return buf.Bytes()
	}
}

// NewClient wraps conn for the given transport kind.
func NewClient(conn net.Conn, kind Kind) *Client {
	c := &Client{
		Conn: conn,
		Kind: kind,
		out:  queue.New(),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// Enqueue appends a pre-framed wire chunk to the outbound queue. It never
// blocks on the network; the writer goroutine owns actual socket writes.
// Per spec.md §4.B, once queued bytes exceed MaxQueuedBytes the client is
// closed rather than allowed to grow without bound.
func (c *Client) Enqueue(chunk []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return io.ErrClosedPipe
	}
	c.out.Add(chunk)
	c.queuedSize += len(chunk)
	if c.queuedSize > ThrottleThreshold {
		c.throttled = true
	}
	over := c.queuedSize > MaxQueuedBytes
	c.mu.Unlock()

	if over {
		c.Close()
		return fmt.Errorf("transport: client exceeded max queued bytes %d", MaxQueuedBytes)
	}

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// wantsWork blocks until there is something to write or the client has
// been closed, returning false in the latter case.
func (c *Client) wantsWork() bool {
	select {
	case <-c.done:
		return false
	case <-c.wake:
		return true
	}
}

// Throttled reports whether this client's outbound queue is above the
// throttle threshold, per spec.md §4.B.
func (c *Client) Throttled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.throttled
}

func (c *Client) writeLoop() {
	for c.wantsWork() {
		for {
			c.mu.Lock()
			if c.out.Length() == 0 {
				c.mu.Unlock()
				break
			}
			chunk := c.out.Remove().([]byte)
			c.mu.Unlock()

			if _, err := c.Conn.Write(chunk); err != nil {
				c.mu.Lock()
				c.closeErr = err
				c.mu.Unlock()
				c.Close()
				return
			}

			c.mu.Lock()
			c.queuedSize -= len(chunk)
			if c.queuedSize <= ThrottleThreshold {
				c.throttled = false
			}
			drained := c.out.Length() == 0
			c.mu.Unlock()
			if drained {
				break
			}
		}
	}
}

// Close closes the underlying connection and stops the writer goroutine.
// Idempotent, safe to call from any goroutine (registry teardown, reader
// EOF, or a write error).
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
	return c.Conn.Close()
}
