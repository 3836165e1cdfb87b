package transport

import (
	"time"

	"github.com/HVML/purcmc-renderer/internal/frame"
	"github.com/HVML/purcmc-renderer/internal/registry"
)

// MaxNoRespondingTime bounds how long a dangling (unauthenticated) peer or
// an idle authenticated endpoint may go without activity before being
// dropped, per spec.md §4.B.
const MaxNoRespondingTime = 30 * time.Second

// MaxPingTime is the idle threshold past which a keepalive Ping is sent
// before the harder MaxNoRespondingTime close threshold, per spec.md §4.B.
const MaxPingTime = 15 * time.Second

// DanglingSweepInterval / ActivitySweepInterval are the idle-handler
// cadences spec.md §4.B specifies: "every 5 seconds" / "every 10 seconds".
const (
	DanglingSweepInterval = 5 * time.Second
	ActivitySweepInterval = 10 * time.Second
)

// SweepDangling drops every dangling endpoint older than
// MaxNoRespondingTime, per spec.md §4.B's 5-second pass. The caller (the
// engine) must still run registry.Remove/session teardown for endpoints
// returned here; SweepDangling only identifies them and closes the socket.
func SweepDangling(reg *registry.Registry, now time.Time) []*registry.Endpoint {
	stale := reg.SweepDangling(now, MaxNoRespondingTime)
	for _, ep := range stale {
		if c, ok := ep.Conn.(*Client); ok {
			c.Close()
		}
	}
	return stale
}

// SweepActivity pings idle-but-under-threshold endpoints and identifies
// endpoints to close for exceeding MaxNoRespondingTime, per spec.md §4.B's
// 10-second pass.
func SweepActivity(reg *registry.Registry, now time.Time) (pinged, closed []*registry.Endpoint) {
	toPing, toClose := reg.SweepActivity(now, MaxPingTime, MaxNoRespondingTime)
	for _, ep := range toPing {
		sendPing(ep)
	}
	pinged = toPing
	for _, ep := range toClose {
		if c, ok := ep.Conn.(*Client); ok {
			c.Close()
		}
	}
	closed = toClose
	return pinged, closed
}

func sendPing(ep *registry.Endpoint) {
	c, ok := ep.Conn.(*Client)
	if !ok {
		return
	}
	switch c.Kind {
	case KindUnix:
		c.Enqueue(encodeUnixPing())
	case KindWebSocket:
		c.Enqueue(frame.EncodeWSFrame(frame.WSPing, true, nil))
	}
}

func encodeUnixPing() []byte {
	var b pingBuf
	frame.EncodeUnixControl(&b, frame.OpPing)
	return b.buf
}

// pingBuf is a minimal io.Writer collecting the bytes EncodeUnixControl
// writes, since that function wants an io.Writer rather than returning a
// slice directly (it shares that shape with EncodeUnixMessage).
type pingBuf struct {
	buf []byte
}

func (b *pingBuf) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}
