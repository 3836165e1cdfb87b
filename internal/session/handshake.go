package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/HVML/purcmc-renderer/internal/backend"
	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/model"
	"github.com/HVML/purcmc-renderer/internal/registry"
)

// StartSessionRequest is the parsed payload of a startSession request, per
// spec.md §4.E.
type StartSessionRequest struct {
	ProtoName    string
	ProtoVersion int

	Host   string
	App    string
	Runner string

	Label       string
	Description string
	IconURL     string
	Signature   string

	AllowSwitchingRdr     bool
	AllowScalingByDensity bool

	// Duplicate defers session creation to an external accept_endpoint
	// call, per spec.md §4.E.
	Duplicate bool
}

// ValidationResult reports the outcome of the ordered checks in spec.md
// §4.E. Exactly one of (Identity set, Err set) holds on a non-nil return.
type ValidationResult struct {
	Identity registry.Identity
	RetCode  message.RetCode
	Err      error
}

const (
	// ServerMinProtoVersion/ServerProtoVersion bound the protocol
	// versions accepted from a peer, per spec.md §4.E step 1.
	ServerMinProtoVersion = 1
	ServerProtoVersion    = 2

	protocolName = "PURCMC"
)

// Validate runs the three synchronous ordered checks of spec.md §4.E:
// protocol name and version, host/app/runner syntax (host and app are one
// or more identifiers joined by '.', runner is a single identifier), and
// the presence of label and description. It does not consult the registry
// for name collisions (Begin does that through Registry.Authenticate), and
// confirmation is driven asynchronously by Begin.
func Validate(req StartSessionRequest) ValidationResult {
	if req.ProtoName != protocolName || req.ProtoVersion > ServerProtoVersion || req.ProtoVersion < ServerMinProtoVersion {
		return ValidationResult{RetCode: message.RetUpgradeRequired, Err: fmt.Errorf("session: unsupported protocol %q v%d", req.ProtoName, req.ProtoVersion)}
	}
	dotted := func(s string) bool {
		for _, part := range strings.Split(s, ".") {
			if !model.ValidIdentifier(part) {
				return false
			}
		}
		return true
	}
	if !dotted(req.Host) || !dotted(req.App) || !model.ValidIdentifier(req.Runner) {
		return ValidationResult{RetCode: message.RetBadRequest, Err: fmt.Errorf("session: invalid host/app/runner identifier")}
	}
	if req.Label == "" || req.Description == "" {
		return ValidationResult{RetCode: message.RetUnauthorized, Err: fmt.Errorf("session: missing label or description")}
	}
	return ValidationResult{Identity: registry.Identity{Host: req.Host, App: req.App, Runner: req.Runner}}
}

// Handshake orchestrates startSession end to end: validation, the optional
// confirmation-dialog round trip, and session instantiation, per spec.md
// §4.E.
type Handshake struct {
	Registry     *registry.Registry
	Sessions     *Manager
	Confirm      backend.ConfirmationCollaborator
	Timeout      time.Duration
	IsPreApproved func(appSignature string) bool

	// Resolved, if set, is invoked once a deferred confirmation completes
	// — from the confirmation collaborator's own callback goroutine, an
	// accept_endpoint call, or the pending-confirmation timer. Begin never
	// blocks waiting on a decision (spec.md §5's single-goroutine engine
	// must stay responsive to every other endpoint while one startSession
	// awaits confirmation), so the caller learns the outcome here instead
	// of from Begin's return value whenever Outcome.Deferred was true.
	Resolved func(ep *registry.Endpoint, requestID string, out Outcome)

	handles *model.HandleAllocator

	mu      sync.Mutex
	pending map[string]*pendingConfirmation
}

type pendingConfirmation struct {
	endpoint *registry.Endpoint
	req      StartSessionRequest
	timer    *time.Timer
}

// NewHandshake builds a handshake orchestrator.
func NewHandshake(reg *registry.Registry, sessions *Manager, confirm backend.ConfirmationCollaborator, timeout time.Duration) *Handshake {
	return &Handshake{
		Registry:      reg,
		Sessions:      sessions,
		Confirm:       confirm,
		Timeout:       timeout,
		IsPreApproved: func(string) bool { return false },
		handles:       &model.HandleAllocator{},
		pending:       make(map[string]*pendingConfirmation),
	}
}

// Outcome is the result of driving a startSession attempt to completion.
type Outcome struct {
	RetCode message.RetCode
	Session *Session
	// Deferred is true when the decision was handed off to accept_endpoint
	// and the caller must not send a response yet.
	Deferred bool
}

// Begin validates and, on success, either instantiates the session
// immediately or defers to the confirmation collaborator / duplicate-accept
// flow, per spec.md §4.E. It never blocks: a pending confirmation always
// returns Outcome{Deferred: true} and completes later through Resolved.
func (h *Handshake) Begin(ep *registry.Endpoint, req StartSessionRequest, requestID string, now time.Time) Outcome {
	v := Validate(req)
	if v.Err != nil {
		return Outcome{RetCode: v.RetCode}
	}
	if err := h.Registry.Authenticate(ep, v.Identity, now); err != nil {
		return Outcome{RetCode: message.RetConflict}
	}
	ep.Meta = registry.AppMeta{Label: req.Label, Description: req.Description, IconURL: req.IconURL, Signature: req.Signature}

	needsConfirm := req.Signature != "" && !h.IsPreApproved(req.Signature)
	if !needsConfirm {
		return h.finish(ep, req, now)
	}

	ep.PendingStartSession = requestID
	ep.PendingSince = now
	pc := &pendingConfirmation{endpoint: ep, req: req}
	pc.timer = time.AfterFunc(h.Timeout, func() {
		h.complete(requestID, false, true)
	})
	h.mu.Lock()
	h.pending[requestID] = pc
	h.mu.Unlock()

	if !req.Duplicate {
		h.Confirm.RequestConfirmation(backend.AppInfo{
			Host: req.Host, App: req.App, Runner: req.Runner,
			Label: req.Label, Description: req.Description,
			IconURL: req.IconURL, Signature: req.Signature,
		}, func(accepted bool) { h.complete(requestID, accepted, false) })
	}

	return Outcome{Deferred: true}
}

// AcceptEndpoint resolves a deferred handshake — either a duplicate:true
// session awaiting an external accept_endpoint call, or (less commonly) a
// still-pending live confirmation being short-circuited — per spec.md
// §4.E. Returns false if requestID has no pending handshake (already timed
// out, already resolved, or unknown).
func (h *Handshake) AcceptEndpoint(requestID string, accepted bool) (Outcome, bool) {
	h.mu.Lock()
	_, ok := h.pending[requestID]
	h.mu.Unlock()
	if !ok {
		return Outcome{}, false
	}
	return h.complete(requestID, accepted, false), true
}

// complete resolves a pending confirmation exactly once, however it was
// decided, and hands the outcome to Resolved. Safe to call from any
// goroutine: the confirmation collaborator's callback, the timeout timer,
// or AcceptEndpoint.
func (h *Handshake) complete(requestID string, accepted, timedOut bool) Outcome {
	h.mu.Lock()
	pc, ok := h.pending[requestID]
	if ok {
		delete(h.pending, requestID)
	}
	h.mu.Unlock()
	if !ok {
		return Outcome{}
	}
	pc.timer.Stop()
	pc.endpoint.PendingStartSession = ""

	var out Outcome
	switch {
	case timedOut:
		h.Registry.Remove(pc.endpoint, registry.RemovedNoResponding)
		out = Outcome{RetCode: message.RetNotAcceptable}
	case !accepted:
		h.Registry.Remove(pc.endpoint, registry.RemovedSocketClosed)
		out = Outcome{RetCode: message.RetUnauthorized}
	default:
		out = h.finish(pc.endpoint, pc.req, time.Now())
	}
	if h.Resolved != nil {
		h.Resolved(pc.endpoint, requestID, out)
	}
	return out
}

func (h *Handshake) finish(ep *registry.Endpoint, req StartSessionRequest, now time.Time) Outcome {
	sh := h.handles.Next()
	sess := New(sh, req.Host, req.App, req.Runner)
	h.Sessions.Put(sess)
	ep.Session = &sh
	ep.SessionCreatedAt = now
	return Outcome{RetCode: message.RetOK, Session: sess}
}
