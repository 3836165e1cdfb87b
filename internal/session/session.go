package session

import (
	"fmt"
	"sync"

	"github.com/HVML/purcmc-renderer/internal/model"
)

// PendingResponse is a slot installed by an asynchronous handler (spec.md
// §4.F "pend_response") and resolved later by the DOM pipeline's reply
// matcher (§4.H) or freed outright on endpoint close (§5 "Cancellation").
type PendingResponse struct {
	ResultValue model.Handle
	// Plaintext is an optional pre-formatted payload that the DOM
	// pipeline echoes back as a plain-text body when the resolving reply
	// carries no data of its own.
	Plaintext string
}

// ErrRequestIDInUse reports that a handler tried to install a second
// pending-response slot under a request_id already pending, which spec.md
// §5 forbids: "the server guarantees no duplicate requestId is ever
// pending at the same time for the same endpoint."
var ErrRequestIDInUse = fmt.Errorf("session: request id already pending")

// ErrUnknownHandle reports a client-supplied handle absent from
// all_handles, per spec.md §3 invariants.
var ErrUnknownHandle = fmt.Errorf("session: unknown handle")

// ErrWrongHandleKind reports a handle present but of an incompatible kind
// for the operation's target.
var ErrWrongHandleKind = fmt.Errorf("session: handle kind mismatch")

// Session is installed by a successful startSession and torn down on
// endSession or socket close, per spec.md §3.
type Session struct {
	Handle model.Handle

	Host   string
	App    string
	Runner string

	mu             sync.Mutex
	allHandles     map[model.Handle]model.HandleKind
	pendingReplies map[string]PendingResponse

	done chan struct{}
	once sync.Once
}

// New creates a session for a freshly authenticated endpoint, per spec.md
// §4.E "a session object is instantiated via a factory callback."
func New(handle model.Handle, host, app, runner string) *Session {
	return &Session{
		Handle:         handle,
		Host:           host,
		App:            app,
		Runner:         runner,
		allHandles:     make(map[model.Handle]model.HandleKind),
		pendingReplies: make(map[string]PendingResponse),
		done:           make(chan struct{}),
	}
}

// URIPrefix returns the "hvml://host/app/runner/" prefix used when pushing
// pages to the rendering subprocess, per spec.md §3.
func (s *Session) URIPrefix() string {
	return fmt.Sprintf("hvml://%s/%s/%s/", s.Host, s.App, s.Runner)
}

// RegisterHandle records a newly created visible object in all_handles,
// per spec.md §4.G "recorded in the session's all_handles set at creation."
func (s *Session) RegisterHandle(h model.Handle, kind model.HandleKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allHandles[h] = kind
}

// ForgetHandle de-registers a destroyed object.
func (s *Session) ForgetHandle(h model.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.allHandles, h)
}

// ValidateHandle checks that h is present and one of wantKinds, per
// spec.md §3's handle invariant.
func (s *Session) ValidateHandle(h model.Handle, wantKinds ...model.HandleKind) (model.HandleKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.allHandles[h]
	if !ok {
		return 0, ErrUnknownHandle
	}
	if len(wantKinds) == 0 {
		return kind, nil
	}
	for _, k := range wantKinds {
		if k == kind {
			return kind, nil
		}
	}
	return kind, ErrWrongHandleKind
}

// PendResponse installs a pending-response slot for an asynchronous
// handler, per spec.md §4.F. It fails if request_id is already pending
// (spec.md §5) or is the literal "-" meaning "no response expected", in
// which case the caller must not have called PendResponse at all.
func (s *Session) PendResponse(requestID string, p PendingResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if requestID == "-" {
		return fmt.Errorf("session: request id %q takes no pending slot", requestID)
	}
	if _, exists := s.pendingReplies[requestID]; exists {
		return ErrRequestIDInUse
	}
	s.pendingReplies[requestID] = p
	return nil
}

// ResolvePending removes and returns a pending-response slot, for the DOM
// pipeline's reply matcher (spec.md §4.H step 2/5).
func (s *Session) ResolvePending(requestID string) (PendingResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pendingReplies[requestID]
	if ok {
		delete(s.pendingReplies, requestID)
	}
	return p, ok
}

// PendingCount reports the number of in-flight asynchronous requests, used
// by metrics and by teardown to know whether there is anything to drop.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingReplies)
}

// Close tears down the session: every pending-response slot is freed, per
// spec.md §5 "Endpoint-level cancellation occurs on close: all
// pending-response slots are freed." Idempotent.
func (s *Session) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.pendingReplies = make(map[string]PendingResponse)
		s.allHandles = make(map[model.Handle]model.HandleKind)
		s.mu.Unlock()
		close(s.done)
	})
}

// Done returns a channel closed once the session has been torn down, so
// any in-flight subprocess reply callback can check and drop itself rather
// than resolve a stale slot.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
