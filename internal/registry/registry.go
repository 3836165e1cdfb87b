package registry

import (
	"fmt"
	"sync"
	"time"
)

// ErrNameTaken reports an (host, app, runner) collision at authentication,
// per spec.md §3 invariants and §4.D.
var ErrNameTaken = fmt.Errorf("registry: endpoint name already taken")

// ErrNotDangling reports that Authenticate was called on an endpoint not
// present in the dangling list.
var ErrNotDangling = fmt.Errorf("registry: endpoint is not dangling")

// RemovalCause records why an endpoint left the registry, supplementing the
// original's plain "removed" signal with the causes its endpoint.c actually
// distinguishes in its close-reason logging.
type RemovalCause int

const (
	RemovedSocketClosed RemovalCause = iota
	RemovedNoResponding
	RemovedPingTimeout
	RemovedKicked
	RemovedServerShutdown
)

func (c RemovalCause) String() string {
	switch c {
	case RemovedSocketClosed:
		return "socket-closed"
	case RemovedNoResponding:
		return "no-responding"
	case RemovedPingTimeout:
		return "ping-timeout"
	case RemovedKicked:
		return "kicked"
	case RemovedServerShutdown:
		return "server-shutdown"
	default:
		return "unknown"
	}
}

// Registry tracks every connected endpoint: a name-keyed map of
// authenticated endpoints, an activity-ordered list over the same set, and
// a separate dangling list of peers mid-handshake, per spec.md §4.D.
type Registry struct {
	mu sync.Mutex

	byName   map[string]*Endpoint
	activity orderedList
	dangling orderedList
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*Endpoint)}
}

// Accept registers a freshly accepted, not-yet-authenticated endpoint into
// the dangling list.
func (r *Registry) Accept(ep *Endpoint, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep.State = Authenticating
	ep.CreatedAt = now
	ep.LastActivityAt = now
	ep.danglingElem = r.dangling.pushBack(ep)
}

// Authenticate moves a dangling endpoint into the named map once
// startSession succeeds, per spec.md §4.D/§4.E. It fails with ErrNameTaken
// if the identity collides with a live endpoint, and with ErrNotDangling if
// ep is not currently dangling.
func (r *Registry) Authenticate(ep *Endpoint, id Identity, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep.danglingElem == nil {
		return ErrNotDangling
	}
	name := id.Name()
	if _, taken := r.byName[name]; taken {
		return ErrNameTaken
	}
	r.dangling.remove(ep.danglingElem)
	ep.danglingElem = nil

	ep.Identity = id
	ep.State = Ready
	ep.SessionStartedAt = now
	ep.LastActivityAt = now
	r.byName[name] = ep
	ep.activityElem = r.activity.pushBack(ep)
	return nil
}

// Lookup finds a live, authenticated endpoint by its canonical name.
func (r *Registry) Lookup(name string) (*Endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.byName[name]
	return ep, ok
}

// Touch records activity on a live endpoint and moves it to the fresh end
// of the activity order.
func (r *Registry) Touch(ep *Endpoint, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep.LastActivityAt = now
	if ep.activityElem != nil {
		r.activity.moveToBack(ep.activityElem)
	}
}

// Remove drops an endpoint from whichever list holds it (dangling or the
// named map + activity list), per spec.md §4.D "Removal from the registry
// runs session teardown before freeing the endpoint record" — teardown
// itself is the caller's job (internal/session); Remove only unlinks the
// bookkeeping structures.
func (r *Registry) Remove(ep *Endpoint, cause RemovalCause) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep.danglingElem != nil {
		r.dangling.remove(ep.danglingElem)
		ep.danglingElem = nil
	}
	if ep.activityElem != nil {
		r.activity.remove(ep.activityElem)
		ep.activityElem = nil
	}
	if ep.Identity != (Identity{}) {
		delete(r.byName, ep.Identity.Name())
	}
	ep.State = Closing
}

// SweepDangling returns every dangling endpoint older than maxAge, per
// spec.md §4.B's "every 5 seconds, drop dangling endpoints older than
// MAX_NO_RESPONDING_TIME". It does not remove them; the caller closes the
// socket and calls Remove.
func (r *Registry) SweepDangling(now time.Time, maxAge time.Duration) []*Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []*Endpoint
	for el := r.dangling.front(); el != nil; el = el.next {
		if now.Sub(el.endpoint.CreatedAt) > maxAge {
			stale = append(stale, el.endpoint)
		}
	}
	return stale
}

// SweepActivity walks the activity-ordered list from the oldest entry,
// returning endpoints whose last activity exceeds pingAfter (candidates for
// a keepalive Ping) and those exceeding closeAfter (candidates for
// disconnection), per spec.md §4.B's 10-second idle pass. Because the list
// is ordered oldest-first, iteration stops at the first entry younger than
// pingAfter.
func (r *Registry) SweepActivity(now time.Time, pingAfter, closeAfter time.Duration) (toPing, toClose []*Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for el := r.activity.front(); el != nil; el = el.next {
		idle := now.Sub(el.endpoint.LastActivityAt)
		if idle <= pingAfter {
			break
		}
		if idle > closeAfter {
			toClose = append(toClose, el.endpoint)
		} else {
			toPing = append(toPing, el.endpoint)
		}
	}
	return toPing, toClose
}

// Count returns the number of authenticated endpoints and the number of
// dangling endpoints, for metrics.
func (r *Registry) Count() (ready, pending int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName), r.dangling.len()
}
