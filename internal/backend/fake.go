package backend

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/HVML/purcmc-renderer/internal/model"
)

// Fake is an in-memory WidgetBackend + RenderSubprocess + ConfirmationCollaborator
// used by package tests in place of the GTK/MiniGUI toolkit and the WebKit
// rendering subprocess. It never touches a real window system or process.
type Fake struct {
	mu sync.Mutex

	handles model.HandleAllocator

	workspaces map[string]bool

	// AutoConfirm, when true, makes RequestConfirmation call onDecision
	// synchronously with this value instead of waiting to be driven by a
	// test via Decide.
	AutoConfirm     bool
	pendingDecision map[string]func(bool)

	subs map[model.Handle]fakeSub

	sessionProps map[model.Handle]map[string]json.RawMessage
}

type fakeSub struct {
	onReply func(RenderReply)
	onEvent func(RenderEvent)
}

// NewFake builds an empty Fake collaborator set.
func NewFake() *Fake {
	return &Fake{
		workspaces:      make(map[string]bool),
		pendingDecision: make(map[string]func(bool)),
		subs:            make(map[model.Handle]fakeSub),
		sessionProps:    make(map[model.Handle]map[string]json.RawMessage),
	}
}

func (f *Fake) CreateWorkspace(host, app string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workspaces[host+"/"+app] = true
	return nil
}

func (f *Fake) UpdateWorkspace(host, app, property string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.workspaces[host+"/"+app] {
		return ErrNotImplemented
	}
	return nil
}

func (f *Fake) DestroyWorkspace(host, app string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.workspaces, host+"/"+app)
	return nil
}

func (f *Fake) CreatePlainWindow(ws *model.Workspace, name, group string, data []byte) (model.Handle, model.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles.Next(), f.handles.Next(), nil
}

func (f *Fake) UpdatePlainWindow(win model.Handle, property string, data []byte) error {
	return nil
}

func (f *Fake) DestroyPlainWindow(win model.Handle) error {
	return nil
}

func (f *Fake) CreateWidget(ws *model.Workspace, container model.Handle, name, group string, data []byte) (model.Handle, model.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles.Next(), f.handles.Next(), nil
}

func (f *Fake) UpdateWidget(widget model.Handle, property string, data []byte) error {
	return nil
}

func (f *Fake) DestroyWidget(widget model.Handle) error {
	return nil
}

func (f *Fake) ResolveReserved(ws *model.Workspace, group, reserved string) (model.Handle, error) {
	return 0, ErrNotImplemented
}

// SessionCallMethod, SessionGetProperty, and SessionSetProperty back
// callMethod/getProperty/setProperty requests targeting the Session
// itself (spec.md §4.F). Fake models session-level state as a plain
// per-session property bag; CallMethod has nothing real to invoke, so it
// just echoes its argument back.
func (f *Fake) SessionCallMethod(sess model.Handle, method string, arg json.RawMessage) (json.RawMessage, error) {
	return arg, nil
}

func (f *Fake) SessionGetProperty(sess model.Handle, property string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	props, ok := f.sessionProps[sess]
	if !ok {
		return nil, fmt.Errorf("backend: session %d has no properties set", sess)
	}
	value, ok := props[property]
	if !ok {
		return nil, fmt.Errorf("backend: session %d has no property %q", sess, property)
	}
	return value, nil
}

func (f *Fake) SessionSetProperty(sess model.Handle, property string, value json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	props, ok := f.sessionProps[sess]
	if !ok {
		props = make(map[string]json.RawMessage)
		f.sessionProps[sess] = props
	}
	props[property] = value
	return nil
}

// RequestConfirmation either auto-decides (AutoConfirm) or stashes the
// callback under the app's signature for a test to drive via Decide.
func (f *Fake) RequestConfirmation(info AppInfo, onDecision func(accepted bool)) {
	if f.AutoConfirm {
		onDecision(true)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingDecision[info.Signature] = onDecision
}

// Decide resolves a previously stashed confirmation request by signature.
func (f *Fake) Decide(signature string, accepted bool) bool {
	f.mu.Lock()
	cb, ok := f.pendingDecision[signature]
	if ok {
		delete(f.pendingDecision, signature)
	}
	f.mu.Unlock()
	if !ok {
		return false
	}
	cb(accepted)
	return true
}

func (f *Fake) Send(view model.Handle, envelope []byte) error {
	return nil
}

func (f *Fake) Subscribe(view model.Handle, onReply func(RenderReply), onEvent func(RenderEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[view] = fakeSub{onReply: onReply, onEvent: onEvent}
}

func (f *Fake) Unsubscribe(view model.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, view)
}

// DeliverReply lets a test simulate the rendering subprocess answering a
// DOM-pipeline request.
func (f *Fake) DeliverReply(view model.Handle, reply RenderReply) {
	f.mu.Lock()
	sub, ok := f.subs[view]
	f.mu.Unlock()
	if ok && sub.onReply != nil {
		sub.onReply(reply)
	}
}

// DeliverEvent lets a test simulate the rendering subprocess posting an
// unsolicited DOM event.
func (f *Fake) DeliverEvent(view model.Handle, ev RenderEvent) {
	f.mu.Lock()
	sub, ok := f.subs[view]
	f.mu.Unlock()
	if ok && sub.onEvent != nil {
		sub.onEvent(ev)
	}
}
