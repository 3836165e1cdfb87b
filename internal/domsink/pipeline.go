package domsink

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/HVML/purcmc-renderer/internal/backend"
	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/model"
	"github.com/HVML/purcmc-renderer/internal/session"
)

// ErrUnknownRequestID is logged (never returned to a peer) when a
// page-ready reply names a request_id with no pending slot — the endpoint
// likely closed already, per spec.md §4.H "silently dropped after
// logging."
var ErrUnknownRequestID = fmt.Errorf("domsink: reply for unknown or expired request id")

// Pipeline marshals DOM-mutation and property requests to the rendering
// subprocess collaborator and resolves its asynchronous replies against
// the owning session's pending-response table, per spec.md §4.H.
type Pipeline struct {
	Subprocess backend.RenderSubprocess
	Log        *log.Logger

	// OnEvent receives every unsolicited DOM event promoted off the
	// subprocess channel, along with the session and container handle
	// Subscribe bound the view to, for the caller to address the event
	// without re-deriving page ownership.
	OnEvent func(sess *session.Session, container model.Handle, sourceURI string, ev EventEnvelope)

	// OnResolved receives the response message built from a page-ready
	// reply, for the transport layer to flush back to the endpoint.
	OnResolved func(sess *session.Session, resp *message.Message)

	mu    sync.Mutex
	views map[model.Handle]viewRoute
}

// viewRoute is what Subscribe remembers about a web view so a later
// subprocess event can be routed back to its owning session and container
// without a workspace-wide search.
type viewRoute struct {
	sess      *session.Session
	container model.Handle
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Log != nil {
		p.Log.Printf(format, args...)
	}
}

// Subscribe wires a web view's subprocess channel to this pipeline's
// reply/event handling, to be called once per page creation. container is
// the page's plain-window or widget handle, remembered so a later
// subprocess event can be addressed back to the right session.
func (p *Pipeline) Subscribe(view model.Handle, sess *session.Session, sourceURI string, container model.Handle) {
	p.mu.Lock()
	if p.views == nil {
		p.views = make(map[model.Handle]viewRoute)
	}
	p.views[view] = viewRoute{sess: sess, container: container}
	p.mu.Unlock()

	p.Subprocess.Subscribe(view,
		func(reply backend.RenderReply) { p.handleReply(sess, reply) },
		func(ev backend.RenderEvent) { p.handleEvent(view, sourceURI, ev) },
	)
}

// Unsubscribe tears down the subscription, called on page destruction.
func (p *Pipeline) Unsubscribe(view model.Handle) {
	p.mu.Lock()
	delete(p.views, view)
	p.mu.Unlock()
	p.Subprocess.Unsubscribe(view)
}

// SendMutation marshals and dispatches a DOM-mutation envelope. Per
// spec.md §4.H "the sender immediately returns to the event loop; it does
// not block."
func (p *Pipeline) SendMutation(view model.Handle, env MutationEnvelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("domsink: marshal mutation envelope: %w", err)
	}
	return p.Subprocess.Send(view, raw)
}

// SendMethod marshals and dispatches a callMethod envelope.
func (p *Pipeline) SendMethod(view model.Handle, env MethodEnvelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("domsink: marshal method envelope: %w", err)
	}
	return p.Subprocess.Send(view, raw)
}

// SendProperty marshals and dispatches a get/setProperty envelope.
func (p *Pipeline) SendProperty(view model.Handle, env PropertyEnvelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("domsink: marshal property envelope: %w", err)
	}
	return p.Subprocess.Send(view, raw)
}

// handleReply implements spec.md §4.H steps 1-5.
func (p *Pipeline) handleReply(sess *session.Session, reply backend.RenderReply) {
	select {
	case <-sess.Done():
		return
	default:
	}

	pending, ok := sess.ResolvePending(reply.RequestID)
	if !ok {
		p.logf("domsink: %v: request_id=%s", ErrUnknownRequestID, reply.RequestID)
		return
	}

	resp := &message.Message{
		Type:        message.TypeResponse,
		RequestID:   reply.RequestID,
		RetCode:     message.DOMReplyState(reply.State),
		ResultValue: uint64(pending.ResultValue),
	}
	if len(reply.Data) > 0 {
		resp.DataType = message.DataJSON
		resp.Data = append([]byte(nil), reply.Data...)
	} else if pending.Plaintext != "" {
		resp.DataType = message.DataPlain
		resp.Data = []byte(pending.Plaintext)
	}

	if p.OnResolved != nil {
		p.OnResolved(sess, resp)
	}
}

func (p *Pipeline) handleEvent(view model.Handle, sourceURI string, ev backend.RenderEvent) {
	if p.OnEvent == nil {
		return
	}
	p.mu.Lock()
	route, ok := p.views[view]
	p.mu.Unlock()
	if !ok {
		return
	}
	kindTag := "id"
	if ev.IsHandle {
		kindTag = "handle"
	}
	p.OnEvent(route.sess, route.container, sourceURI, EventEnvelope{Name: ev.Name, KindTag: kindTag, Value: ev.Value, JSONData: ev.JSONData})
}
