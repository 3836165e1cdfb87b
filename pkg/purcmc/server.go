// Package purcmc is the server facade: it wires the registry, session
// manager, workspace table, request dispatcher, DOM pipeline, and
// transport listener into one running renderer core, and owns the single
// goroutine that is allowed to mutate any of that domain state, per
// spec.md §5. Grounded on momentics-hioload-ws/lowlevel/server/run.go's
// shape (reactor poll loop in one goroutine, accept loop in another,
// readers pushing decoded units into the poll loop's inbox) with the
// "inbox" realized here as transport.Listener's buffered channels rather
// than a reactor Push call, since payload events (not raw fd readiness)
// are what the engine actually consumes.
package purcmc

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/HVML/purcmc-renderer/internal/backend"
	"github.com/HVML/purcmc-renderer/internal/config"
	"github.com/HVML/purcmc-renderer/internal/dispatch"
	"github.com/HVML/purcmc-renderer/internal/domsink"
	"github.com/HVML/purcmc-renderer/internal/events"
	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/metrics"
	"github.com/HVML/purcmc-renderer/internal/model"
	"github.com/HVML/purcmc-renderer/internal/registry"
	"github.com/HVML/purcmc-renderer/internal/session"
	"github.com/HVML/purcmc-renderer/internal/transport"
)

// Collaborators bundles the three out-of-scope GUI/layout/subprocess
// interfaces a concrete renderer build must supply, per spec.md §1.
type Collaborators struct {
	backend.WidgetBackend
	backend.RenderSubprocess
	backend.ConfirmationCollaborator

	// NewLayouter instantiates the layout oracle for setPageGroups from
	// its HTML body, per spec.md §4.F. A collaborator set with no real
	// layout engine may return backend.ErrNotImplemented.
	NewLayouter func(html string) (model.Layouter, error)
}

// Server is one running renderer core.
type Server struct {
	cfg config.Config
	log *log.Logger

	collab Collaborators

	registry   *registry.Registry
	sessions   *session.Manager
	workspaces *dispatch.Workspaces
	handshake  *session.Handshake
	pipeline   *domsink.Pipeline
	listener   *transport.Listener
	metrics    *metrics.Counters

	// sessionEndpoints maps a live session handle to its owning endpoint,
	// so EventSink can route a cross-session event to the right client.
	// Mutated only on the engine goroutine.
	sessionEndpoints map[model.Handle]*registry.Endpoint

	resolvedCh chan resolvedReply
	acceptCh   chan acceptRequest
}

// resolvedReply carries either a DOM-pipeline reply ready to flush to its
// endpoint (sess/resp set) or a completed startSession confirmation
// (ep/requestID/outcome set), both routed onto the engine goroutine from
// whatever foreign goroutine produced them.
type resolvedReply struct {
	sess *session.Session
	resp *message.Message

	ep        *registry.Endpoint
	requestID string
	outcome   session.Outcome
}

type acceptRequest struct {
	requestID string
	accepted  bool
}

// New builds a Server. Call Run to actually bind sockets and start serving.
func New(cfg config.Config, collab Collaborators, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if collab.NewLayouter == nil {
		collab.NewLayouter = func(string) (model.Layouter, error) { return nil, backend.ErrNotImplemented }
	}

	reg := registry.New()
	sessions := session.NewManager(16)
	handshake := session.NewHandshake(reg, sessions, collab.ConfirmationCollaborator, cfg.ConfirmationTimeout)

	s := &Server{
		cfg:              cfg,
		log:              logger,
		collab:           collab,
		registry:         reg,
		sessions:         sessions,
		workspaces:       dispatch.NewWorkspaces(),
		handshake:        handshake,
		metrics:          metrics.Global(),
		sessionEndpoints: make(map[model.Handle]*registry.Endpoint),
		resolvedCh:       make(chan resolvedReply, 64),
		acceptCh:         make(chan acceptRequest, 16),
	}

	// Handshake.Resolved fires from whatever goroutine decided a deferred
	// confirmation (the confirmation collaborator's own callback, or the
	// pending-confirmation timer); bounce it onto the engine goroutine
	// rather than touching sessionEndpoints/registry state here.
	handshake.Resolved = func(ep *registry.Endpoint, requestID string, out session.Outcome) {
		s.resolvedCh <- resolvedReply{ep: ep, requestID: requestID, outcome: out}
	}

	s.pipeline = &domsink.Pipeline{
		Subprocess: collab.RenderSubprocess,
		Log:        logger,
		OnEvent:    s.onSubprocessEvent,
		OnResolved: func(sess *session.Session, resp *message.Message) {
			s.resolvedCh <- resolvedReply{sess: sess, resp: resp}
		},
	}

	s.listener = transport.New(transport.Config{
		UnixSocketPath:  cfg.UnixSocketPath,
		UnixSocketMode:  cfg.UnixSocketMode,
		TCPAddr:         cfg.TCPAddr,
		TLSCert:         cfg.TLSCert,
		TLSKey:          cfg.TLSKey,
		MaxFramePayload: cfg.MaxFramePayload,
		MaxInMemPayload: cfg.MaxInMemPayload,
		Subprotocol:     cfg.Subprotocol,
	}, reg, logger)

	return s
}

// AcceptEndpoint resolves a deferred duplicate:true startSession handshake
// from outside the engine goroutine (typically a confirmation-dialog UI
// callback), per spec.md §4.E. The decision is routed onto the engine
// goroutine rather than applied here directly, preserving the
// single-writer domain-state invariant.
func (s *Server) AcceptEndpoint(requestID string, accepted bool) {
	s.acceptCh <- acceptRequest{requestID: requestID, accepted: accepted}
}

// Metrics returns the process-wide counters this server updates.
func (s *Server) Metrics() *metrics.Counters { return s.metrics }

// Run binds both configured transports and runs the engine loop until ctx
// is canceled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.listener.ListenUnix(); err != nil {
		return err
	}
	if err := s.listener.ListenWebSocket(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.listener.Serve()
	}()

	s.runEngine(ctx)

	s.listener.Close()
	wg.Wait()
	return nil
}

func (s *Server) runEngine(ctx context.Context) {
	danglingTicker := time.NewTicker(transport.DanglingSweepInterval)
	activityTicker := time.NewTicker(transport.ActivitySweepInterval)
	defer danglingTicker.Stop()
	defer activityTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case in := <-s.listener.Inbound:
			s.handleInbound(in)

		case closed := <-s.listener.Closed:
			s.handleClosed(closed)

		case rr := <-s.resolvedCh:
			s.deliverResolved(rr)

		case ar := <-s.acceptCh:
			s.handleAcceptEndpoint(ar)

		case now := <-danglingTicker.C:
			transport.SweepDangling(s.registry, now)

		case now := <-activityTicker.C:
			transport.SweepActivity(s.registry, now)
			ready, pending := s.registry.Count()
			s.metrics.SetEndpointCounts(ready, pending)
		}
	}
}

func (s *Server) handleInbound(in transport.InboundMessage) {
	now := time.Now()
	ep := in.Endpoint
	req := in.Msg
	s.registry.Touch(ep, now)

	ctx := &dispatch.Context{
		Now:         now,
		Endpoint:    ep,
		Registry:    s.registry,
		Sessions:    s.sessions,
		Workspaces:  s.workspaces,
		Backend:     s.collab.WidgetBackend,
		Pipeline:    s.pipeline,
		Handshake:   s.handshake,
		EventSink:   s.deliverEvent,
		NewLayouter: s.collab.NewLayouter,
	}
	if ep.Session != nil {
		if sess, ok := s.sessions.Get(*ep.Session); ok {
			ctx.Session = sess
			ctx.Workspace = s.workspaces.GetOrCreate(ep.Identity.Host, ep.Identity.App)
		}
	}

	if req.Operation != "startSession" && ctx.Session == nil {
		if resp := errorResponse(req, message.RetUnauthorized); resp != nil {
			s.writeMessage(ep, resp)
		}
		return
	}

	result := dispatch.Dispatch(ctx, req)
	s.metrics.IncDispatched()
	if result.Resp != nil && result.Resp.RetCode != message.RetOK {
		s.metrics.IncErrors()
	}

	if ep.Session != nil {
		s.sessionEndpoints[*ep.Session] = ep
	}
	if req.Operation == "endSession" && ep.Session != nil {
		delete(s.sessionEndpoints, *ep.Session)
	}

	if result.Resp != nil {
		s.writeMessage(ep, result.Resp)
	}
	if s.cfg.AccessLog {
		s.logAccess(ep, req, result)
	}
}

// handleClosed tears down the session owned by a closed endpoint the same
// way handleEndSession does: revoke its ownership from every page-owner
// stack in its workspace and fire the resulting reloadPage notices, so a
// dropped socket (crash, network loss) is indistinguishable from a clean
// endSession as far as other endpoints sharing those pages are concerned,
// per spec.md Scenario 5 and the §8 boundary on close-triggered reloads.
func (s *Server) handleClosed(ev transport.EndpointClosed) {
	ep := ev.Endpoint
	if ep.Session != nil {
		if sess, ok := s.sessions.Get(*ep.Session); ok {
			ws := s.workspaces.GetOrCreate(ep.Identity.Host, ep.Identity.App)
			for _, n := range ws.RevokeSessionEverywhere(sess.Handle) {
				page, ok := ws.LookupPage(n.Page)
				if !ok {
					continue
				}
				target := message.TargetPlainWindow
				if page.Variant == model.PageWidget {
					target = message.TargetWidget
				}
				s.deliverEvent(n.Owner.Session, events.ReloadPage(target, uint64(page.ContainerHandle), sess.URIPrefix()))
			}
			sess.Close()
			s.sessions.Delete(*ep.Session)
		}
		delete(s.sessionEndpoints, *ep.Session)
	}
	s.registry.Remove(ep, ev.Cause)
	ready, pending := s.registry.Count()
	s.metrics.SetEndpointCounts(ready, pending)
}

// handleAcceptEndpoint resolves a deferred duplicate:true startSession,
// per spec.md §4.E. The actual outcome reaches handshakeResolved through
// Handshake.Resolved, which fires even for this synchronous, same-goroutine
// path, so there is nothing further to do here.
func (s *Server) handleAcceptEndpoint(ar acceptRequest) {
	s.handshake.AcceptEndpoint(ar.requestID, ar.accepted)
}

func (s *Server) deliverResolved(rr resolvedReply) {
	if rr.ep != nil {
		s.handshakeResolved(rr.ep, rr.requestID, rr.outcome)
		return
	}
	select {
	case <-rr.sess.Done():
		return
	default:
	}
	ep, ok := s.sessionEndpoints[rr.sess.Handle]
	if !ok {
		return
	}
	s.writeMessage(ep, rr.resp)
}

// handshakeResolved sends the startSession response once a deferred
// confirmation completes, and records the new session's owning endpoint so
// EventSink/OnResolved can find it afterward, per spec.md §4.E.
func (s *Server) handshakeResolved(ep *registry.Endpoint, requestID string, out session.Outcome) {
	if out.Session != nil {
		s.sessionEndpoints[out.Session.Handle] = ep
	}
	resp := &message.Message{Type: message.TypeResponse, RequestID: requestID, RetCode: out.RetCode}
	if out.Session != nil {
		resp.ResultValue = uint64(out.Session.Handle)
	}
	s.writeMessage(ep, resp)
}

func (s *Server) deliverEvent(sessionHandle model.Handle, msg *message.Message) {
	ep, ok := s.sessionEndpoints[sessionHandle]
	if !ok {
		return
	}
	s.writeMessage(ep, msg)
}

// onSubprocessEvent promotes an unsolicited DOM event into a protocol
// Event message and routes it to the session that owns the originating
// view, per spec.md §4.H/§4.I.
func (s *Server) onSubprocessEvent(sess *session.Session, container model.Handle, sourceURI string, env domsink.EventEnvelope) {
	select {
	case <-sess.Done():
		return
	default:
	}
	ep, ok := s.sessionEndpoints[sess.Handle]
	if !ok {
		return
	}
	s.writeMessage(ep, events.DOMEvent(uint64(container), sourceURI, env))
}

func (s *Server) writeMessage(ep *registry.Endpoint, msg *message.Message) {
	client, ok := ep.Conn.(*transport.Client)
	if !ok {
		return
	}
	raw := message.Serialize(msg, message.DefaultMaxSerializedSize)
	if err := client.Enqueue(transport.EncodeForTransport(client.Kind, raw)); err != nil {
		s.log.Printf("purcmc: enqueue to endpoint failed: %v", err)
	}
}

func errorResponse(req *message.Message, code message.RetCode) *message.Message {
	if !req.WantsResponse() {
		return nil
	}
	return &message.Message{Type: message.TypeResponse, RequestID: req.RequestID, RetCode: code}
}

// logAccess writes one access-log line per completed request: the
// endpoint's host/app/runner name, the operation, the request id, and
// "retCode=<number>(<name>)". No elapsed time is recorded.
func (s *Server) logAccess(ep *registry.Endpoint, req *message.Message, result dispatch.Result) {
	code := message.RetOK
	if result.Resp != nil {
		code = result.Resp.RetCode
	}
	s.log.Printf("%s %s %s %s", ep.Identity.Name(), req.Operation, req.RequestID, fmt.Sprintf("retCode=%d(%s)", code, code))
}
