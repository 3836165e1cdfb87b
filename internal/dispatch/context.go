package dispatch

import (
	"sync"
	"time"

	"github.com/HVML/purcmc-renderer/internal/backend"
	"github.com/HVML/purcmc-renderer/internal/domsink"
	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/model"
	"github.com/HVML/purcmc-renderer/internal/registry"
	"github.com/HVML/purcmc-renderer/internal/session"
)

// Workspaces is the process-wide (host, app) → *model.Workspace table.
// Workspaces are shared across every endpoint of the same app, per
// spec.md §3.
type Workspaces struct {
	mu   sync.Mutex
	byID map[string]*model.Workspace
}

// NewWorkspaces builds an empty workspace table.
func NewWorkspaces() *Workspaces {
	return &Workspaces{byID: make(map[string]*model.Workspace)}
}

// GetOrCreate returns the workspace for (host, app), creating it on first
// reference.
func (w *Workspaces) GetOrCreate(host, app string) *model.Workspace {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := host + "/" + app
	ws, ok := w.byID[key]
	if !ok {
		ws = model.NewWorkspace(host, app)
		w.byID[key] = ws
	}
	return ws
}

// Context carries everything a handler needs to service one request, per
// spec.md §4.F "(server, endpoint, request_message)".
type Context struct {
	Now time.Time

	Endpoint  *registry.Endpoint
	Session   *session.Session
	Workspace *model.Workspace

	Registry   *registry.Registry
	Sessions   *session.Manager
	Workspaces *Workspaces
	Backend    backend.WidgetBackend
	Pipeline   *domsink.Pipeline
	Handshake  *session.Handshake

	// EventSink delivers an out-of-band event to an endpoint other than
	// the one servicing the current request — used for suppressPage/
	// reloadPage/destroy notifications crossing sessions, per spec.md
	// §4.G/§4.I. Wired by the server facade, which owns the session
	// handle → endpoint mapping.
	EventSink func(sessionHandle model.Handle, msg *message.Message)

	// NewLayouter instantiates the layout oracle for a setPageGroups call
	// from its HTML body, per spec.md §4.F "instantiate layouter from HTML
	// body". Supplied by whatever concrete layout engine the process is
	// wired with; the core never parses the HTML itself.
	NewLayouter func(html string) (model.Layouter, error)
}

// Result is what a handler produces: either an immediate response (Resp
// non-nil) or nothing, because the request was handed off asynchronously
// to the DOM pipeline (spec.md §4.F step 3) or is a fire-and-forget
// request (endSession, or requestId == "-").
type Result struct {
	Resp *message.Message
}

// Handler services one request. It returns an error only for conditions
// the dispatcher itself should turn into a RetCode response (e.g. a
// sentinel from internal/model or internal/session); handlers that already
// built an error response return it in Result instead.
type Handler func(ctx *Context, req *message.Message) (Result, error)
