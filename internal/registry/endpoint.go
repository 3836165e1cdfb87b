package registry

import (
	"time"

	"github.com/HVML/purcmc-renderer/internal/model"
)

// AuthState is an endpoint's place in the handshake lifecycle, per spec.md §3.
type AuthState int

const (
	Authenticating AuthState = iota
	Ready
	Busy
	Closing
)

func (s AuthState) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// TransportKind names the socket family an endpoint arrived on.
type TransportKind int

const (
	TransportUnix TransportKind = iota
	TransportWebSocket
)

// AppMeta is the app manifest presented at handshake time, per spec.md §3.
type AppMeta struct {
	Label       string
	Description string
	IconURL     string
	Signature   string
}

// Identity is the (host, app, runner) triplet that uniquely names an
// endpoint once authenticated, per spec.md §3.
type Identity struct {
	Host   string
	App    string
	Runner string
}

// Name returns the canonical registry key "@host/app/runner" (spec.md §4.D).
func (id Identity) Name() string {
	return "@" + id.Host + "/" + id.App + "/" + id.Runner
}

// ClientConn is the narrow handle the registry needs onto the underlying
// socket client, enough to close it and to know it's still alive. The
// concrete connection type lives in internal/transport.
type ClientConn interface {
	Close() error
}

// Endpoint is a connected peer, per spec.md §3.
type Endpoint struct {
	Transport TransportKind
	State     AuthState
	Identity  Identity
	Meta      AppMeta

	CreatedAt        time.Time
	LastActivityAt   time.Time
	SessionStartedAt time.Time
	SessionCreatedAt time.Time

	Conn ClientConn

	// Session is installed once startSession succeeds; nil while
	// Authenticating or for a dangling endpoint.
	Session *model.Handle

	// danglingElem / activityElem are the endpoint's position in the
	// registry's internal lists; nil when not resident in that list.
	danglingElem *listElem
	activityElem *listElem

	// PendingStartSession holds the request_id of a deferred
	// duplicate:true startSession awaiting an external accept_endpoint
	// call, per spec.md §4.E. Empty when no handshake is pending.
	PendingStartSession string
	PendingSince        time.Time
}

// Touch updates last-activity only. Moving the endpoint to the fresh end
// of the activity order is done by Registry.Touch.
func (e *Endpoint) Touch(now time.Time) {
	e.LastActivityAt = now
}
