// Package backend defines the narrow collaborator interfaces the PurCMC
// core talks to instead of the concrete GUI toolkit, HTML/CSS layout
// engine, and WebKit rendering subprocess — all explicitly out of scope
// per spec.md §1. A Fake implementation (fake.go) exercises the core in
// tests without any of those real collaborators.
package backend

import (
	"encoding/json"
	"time"

	"github.com/HVML/purcmc-renderer/internal/model"
)

// AppInfo is the app manifest a peer presents at handshake time, per
// spec.md §3 "Endpoint" app metadata.
type AppInfo struct {
	Host        string
	App         string
	Runner      string
	Label       string
	Description string
	IconURL     string
	Signature   string
}

// ConfirmationCollaborator models the human-facing authentication popup
// (spec.md §4.E, §9 "Confirmation dialog"): an external, asynchronous
// collaborator that eventually calls back with an accept/reject decision.
// The core never blocks waiting for it — it installs onDecision and moves
// on; the collaborator invokes onDecision exactly once, from any goroutine.
type ConfirmationCollaborator interface {
	RequestConfirmation(info AppInfo, onDecision func(accepted bool))
}

// WidgetBackend is the opaque GUI toolkit collaborator (GTK/MiniGUI in the
// original) that actually realizes windows, tabs, panes, and web views.
// The core only calls through this interface and never reaches into
// toolkit internals, per spec.md §1.
type WidgetBackend interface {
	// CreateWorkspace/UpdateWorkspace/DestroyWorkspace are optional: a
	// backend that does not model workspaces as first-class UI returns
	// ErrNotImplemented, which the dispatcher maps to RetNotImplemented.
	CreateWorkspace(host, app string, data []byte) error
	UpdateWorkspace(host, app string, property string, data []byte) error
	DestroyWorkspace(host, app string) error

	// CreatePlainWindow realizes a top-level OS window with one web view
	// and returns the new window handle and its web view handle.
	CreatePlainWindow(ws *model.Workspace, name, group string, data []byte) (win model.Handle, view model.Handle, err error)
	UpdatePlainWindow(win model.Handle, property string, data []byte) error
	DestroyPlainWindow(win model.Handle) error

	// CreateWidget realizes an embedded web view inside a tabbed/paned
	// container and returns the new widget handle and its web view handle.
	CreateWidget(ws *model.Workspace, container model.Handle, name, group string, data []byte) (widget model.Handle, view model.Handle, err error)
	UpdateWidget(widget model.Handle, property string, data []byte) error
	DestroyWidget(widget model.Handle) error

	// ResolveReserved resolves _first/_last/_active to a concrete handle
	// within a group, per spec.md §4.G.
	ResolveReserved(ws *model.Workspace, group, reserved string) (model.Handle, error)

	// SessionCallMethod/SessionGetProperty/SessionSetProperty are the
	// session-level RPC surface callMethod/getProperty/setProperty
	// dispatch to when a request's target is Session rather than DOM, per
	// spec.md §4.F's operation table ("callMethod | DOM or Session ...
	// for Session targets, dispatch to backend's session-level RPC
	// surface"). Unlike the DOM pipeline these resolve synchronously —
	// there is no rendering-subprocess round trip for session-scoped
	// state. A backend with no session-level RPC surface returns
	// ErrNotImplemented, mapped to RetNotImplemented same as the
	// workspace operations above.
	SessionCallMethod(sess model.Handle, method string, arg json.RawMessage) (json.RawMessage, error)
	SessionGetProperty(sess model.Handle, property string) (json.RawMessage, error)
	SessionSetProperty(sess model.Handle, property string, value json.RawMessage) error
}

// ErrNotImplemented is returned by a WidgetBackend method the concrete
// backend does not support; the dispatcher maps it to RetNotImplemented.
var ErrNotImplemented = errNotImplemented{}

type errNotImplemented struct{}

func (errNotImplemented) Error() string { return "backend: operation not implemented" }

// RenderReply is the asynchronous `page-ready` reply a rendering subprocess
// sends back for a DOM-pipeline request, per spec.md §4.H.
type RenderReply struct {
	RequestID string
	State     string
	Data      []byte // raw JSON "data" field, nil if absent
}

// RenderEvent is an unsolicited DOM-originated event, per spec.md §4.H:
// (name, idOrHandle kind, value, json data).
type RenderEvent struct {
	Name      string
	IsHandle  bool
	Value     string
	JSONData  []byte
	WebView   model.Handle
}

// RenderSubprocess is the collaborator representing the WebKit-based page
// process: the core sends it JSON page-messages and receives asynchronous
// replies/events on the same per-page channel, per spec.md §4.H.
type RenderSubprocess interface {
	// Send pushes a JSON envelope to the given web view's message channel.
	// It must not block past enqueueing — the event loop never waits on
	// the rendering subprocess (spec.md §5).
	Send(view model.Handle, envelope []byte) error

	// Subscribe registers callbacks invoked (from any goroutine) whenever
	// the subprocess delivers a page-ready reply or an event for view.
	Subscribe(view model.Handle, onReply func(RenderReply), onEvent func(RenderEvent))

	// Unsubscribe tears down the subscription when a web view is
	// destroyed.
	Unsubscribe(view model.Handle)
}

// Layouter adapts a concrete HTML/CSS layout engine to model.Layouter. Kept
// here so callers constructing a real backend can depend on one place for
// every out-of-scope collaborator interface.
type Layouter = model.Layouter

// DefaultConfirmationTimeout bounds how long the core waits for a
// confirmation collaborator's decision before treating the endpoint as
// NoResponding, per spec.md §4.E.
const DefaultConfirmationTimeout = 30 * time.Second
