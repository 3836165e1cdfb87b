package transport

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/HVML/purcmc-renderer/internal/frame"
	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/registry"
	"github.com/HVML/purcmc-renderer/internal/session"
)

// MaxClientsEach is the per-transport accept cap, per spec.md §4.B
// "refuses new connections past MAX_CLIENTS_EACH (512)".
const MaxClientsEach = 512

// Config configures the dual listener.
type Config struct {
	UnixSocketPath string
	UnixSocketMode uint32

	TCPAddr string
	TLSCert string
	TLSKey  string

	MaxFramePayload int
	MaxInMemPayload int

	Subprotocol string
}

// InboundMessage is one parsed wire message handed from a reader goroutine
// to the engine's single inbound channel.
type InboundMessage struct {
	Endpoint *registry.Endpoint
	Client   *Client
	Msg      *message.Message
}

// EndpointClosed notifies the engine that a client connection ended, so it
// can run session/registry teardown on its own goroutine.
type EndpointClosed struct {
	Endpoint *registry.Endpoint
	Cause    registry.RemovalCause
}

// Listener runs the Unix-domain and WebSocket accept loops and feeds
// decoded messages into Inbound.
type Listener struct {
	cfg Config
	reg *registry.Registry
	log *log.Logger

	Inbound chan InboundMessage
	Closed  chan EndpointClosed

	unixListeners int64
	wsListeners   int64

	unixLn net.Listener
	wsLn   net.Listener
}

// New builds a Listener bound to neither socket yet; call ListenUnix/
// ListenWebSocket to actually bind, then Serve.
func New(cfg Config, reg *registry.Registry, logger *log.Logger) *Listener {
	if logger == nil {
		logger = log.Default()
	}
	return &Listener{
		cfg:     cfg,
		reg:     reg,
		log:     logger,
		Inbound: make(chan InboundMessage, 256),
		Closed:  make(chan EndpointClosed, 64),
	}
}

// ListenUnix binds the Unix-domain socket transport.
func (l *Listener) ListenUnix() error {
	if l.cfg.UnixSocketPath == "" {
		return nil
	}
	ln, err := net.Listen("unix", l.cfg.UnixSocketPath)
	if err != nil {
		return fmt.Errorf("transport: listen unix %s: %w", l.cfg.UnixSocketPath, err)
	}
	l.unixLn = ln
	return nil
}

// ListenWebSocket binds the TCP (optionally TLS) transport carrying the
// RFC 6455 WebSocket handshake.
func (l *Listener) ListenWebSocket() error {
	if l.cfg.TCPAddr == "" {
		return nil
	}
	var ln net.Listener
	var err error
	if l.cfg.TLSCert != "" && l.cfg.TLSKey != "" {
		cert, cerr := tls.LoadX509KeyPair(l.cfg.TLSCert, l.cfg.TLSKey)
		if cerr != nil {
			return fmt.Errorf("transport: load TLS keypair: %w", cerr)
		}
		ln, err = tls.Listen("tcp", l.cfg.TCPAddr, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})
	} else {
		ln, err = net.Listen("tcp", l.cfg.TCPAddr)
	}
	if err != nil {
		return fmt.Errorf("transport: listen tcp %s: %w", l.cfg.TCPAddr, err)
	}
	l.wsLn = ln
	return nil
}

// Serve runs both accept loops until the listeners are closed. It returns
// once both loops have exited.
func (l *Listener) Serve() {
	done := make(chan struct{}, 2)
	n := 0
	if l.unixLn != nil {
		n++
		go func() { l.acceptLoop(l.unixLn, KindUnix); done <- struct{}{} }()
	}
	if l.wsLn != nil {
		n++
		go func() { l.acceptLoop(l.wsLn, KindWebSocket); done <- struct{}{} }()
	}
	for i := 0; i < n; i++ {
		<-done
	}
}

// Close shuts down both listeners; in-flight clients are torn down by the
// engine as their reader goroutines observe EOF.
func (l *Listener) Close() {
	if l.unixLn != nil {
		l.unixLn.Close()
	}
	if l.wsLn != nil {
		l.wsLn.Close()
	}
}

func (l *Listener) acceptLoop(ln net.Listener, kind Kind) {
	counter := &l.unixListeners
	if kind == KindWebSocket {
		counter = &l.wsListeners
	}
	for {
		conn, err := ln.Accept()
		if err != nil {
			l.log.Printf("transport: accept loop exiting: %v", err)
			return
		}
		if atomic.LoadInt64(counter) >= MaxClientsEach {
			l.rejectServiceUnavailable(conn, kind)
			continue
		}
		atomic.AddInt64(counter, 1)
		go func() {
			defer atomic.AddInt64(counter, -1)
			l.handleConn(conn, kind)
		}()
	}
}

// rejectServiceUnavailable answers a peer refused for being past
// MAX_CLIENTS_EACH, per spec.md §4.B / §7's ServiceUnavailable ret code.
func (l *Listener) rejectServiceUnavailable(conn net.Conn, kind Kind) {
	defer conn.Close()
	if kind == KindWebSocket {
		frame.WriteHandshakeError(conn, 503, "Service Unavailable")
		return
	}
	resp := message.Serialize(&message.Message{
		Type:     message.TypeResponse,
		RetCode:  message.RetServiceUnavailable,
		DataType: message.DataVoid,
	}, message.DefaultMaxSerializedSize)
	conn.Write(resp)
}

func (l *Listener) handleConn(conn net.Conn, kind Kind) {
	now := time.Now()
	ep := &registry.Endpoint{Transport: registry.TransportUnix}
	if kind == KindWebSocket {
		ep.Transport = registry.TransportWebSocket
		hr, err := frame.DoServerHandshake(conn, l.cfg.Subprotocol)
		if err != nil {
			frame.WriteHandshakeError(conn, 400, "Bad Request")
			conn.Close()
			return
		}
		if err := frame.WriteSwitchingProtocols(conn, hr); err != nil {
			conn.Close()
			return
		}
	}

	client := NewClient(conn, kind)
	ep.Conn = client
	l.reg.Accept(ep, now)
	l.sendInitialResponse(client, kind)

	switch kind {
	case KindUnix:
		l.readUnixLoop(ep, client)
	case KindWebSocket:
		l.readWSLoop(ep, client)
	}
}

func (l *Listener) readUnixLoop(ep *registry.Endpoint, client *Client) {
	maxPayload := l.cfg.MaxInMemPayload
	if maxPayload <= 0 {
		maxPayload = 4 << 20
	}
	dec := frame.NewUnixDecoder(client.Conn, client.Conn, maxPayload)
	for {
		msg, control, _, err := dec.Next()
		if err != nil {
			l.closeEndpoint(ep, client, registry.RemovedSocketClosed)
			return
		}
		if control == frame.UnixControlClose {
			l.closeEndpoint(ep, client, registry.RemovedSocketClosed)
			return
		}
		if msg == nil {
			continue
		}
		parsed, perr := message.Parse(msg.Body)
		if perr != nil {
			l.log.Printf("transport: malformed unix message from %p: %v", ep, perr)
			continue
		}
		l.Inbound <- InboundMessage{Endpoint: ep, Client: client, Msg: parsed}
	}
}

func (l *Listener) readWSLoop(ep *registry.Endpoint, client *Client) {
	maxFrame := l.cfg.MaxFramePayload
	if maxFrame <= 0 {
		maxFrame = 1 << 20
	}
	maxMsg := l.cfg.MaxInMemPayload
	if maxMsg <= 0 {
		maxMsg = 4 << 20
	}
	assembler := frame.NewWSMessageAssembler(maxMsg)

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := client.Conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			l.closeEndpoint(ep, client, registry.RemovedSocketClosed)
			return
		}

		for {
			f, consumed, ferr := frame.DecodeWSFrame(buf, maxFrame)
			if ferr != nil {
				if wsErr, ok := ferr.(*frame.WSFrameError); ok {
					client.Enqueue(frame.EncodeWSClose(wsErr.Code, ""))
				}
				l.closeEndpoint(ep, client, registry.RemovedSocketClosed)
				return
			}
			if f == nil {
				break
			}
			buf = buf[consumed:]

			switch f.Opcode {
			case frame.WSPing:
				client.Enqueue(frame.EncodeWSFrame(frame.WSPong, true, f.Payload))
				continue
			case frame.WSPong:
				continue
			case frame.WSClose:
				client.Enqueue(frame.EncodeWSClose(frame.CloseNormal, ""))
				l.closeEndpoint(ep, client, registry.RemovedSocketClosed)
				return
			}

			_, body, done, aerr := assembler.Feed(f)
			if aerr != nil {
				if wsErr, ok := aerr.(*frame.WSFrameError); ok {
					client.Enqueue(frame.EncodeWSClose(wsErr.Code, ""))
				}
				l.closeEndpoint(ep, client, registry.RemovedSocketClosed)
				return
			}
			if !done {
				continue
			}
			parsed, perr := message.Parse(body)
			if perr != nil {
				l.log.Printf("transport: malformed ws message from %p: %v", ep, perr)
				continue
			}
			l.Inbound <- InboundMessage{Endpoint: ep, Client: client, Msg: parsed}
		}
	}
}

// sendInitialResponse writes the feature-manifest response sent right
// after accept, before any startSession, per spec.md §4.E/§6. It is
// resolved here as an open question: since the manifest has no
// client-supplied requestId to correlate against, it is framed as an
// ordinary response message with the sentinel requestId "0", keeping one
// wire encoder for every server-to-client message rather than inventing a
// second unframed format.
func (l *Listener) sendInitialResponse(client *Client, kind Kind) {
	m := session.DefaultManifest()
	if kind == KindWebSocket {
		m = m.WithChallengeCode(m.OfficialShortName)
	}
	resp := &message.Message{
		Type:      message.TypeResponse,
		RequestID: "0",
		RetCode:   message.RetOK,
		DataType:  message.DataPlain,
		Data:      []byte(m.Features()),
	}
	client.Enqueue(EncodeForTransport(client.Kind, message.Serialize(resp, message.DefaultMaxSerializedSize)))
}

func (l *Listener) closeEndpoint(ep *registry.Endpoint, client *Client, cause registry.RemovalCause) {
	client.Close()
	l.Closed <- EndpointClosed{Endpoint: ep, Cause: cause}
}
