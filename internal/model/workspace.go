package model

import (
	"fmt"
	"sort"
	"sync"
)

// Layouter is the external layout oracle a Workspace instantiates lazily
// once setPageGroups installs an HTML+CSS page-group document, per
// spec.md §1 (out of scope) and §4.F (setPageGroups/addPageGroups/
// removePageGroup). The core only ever calls through this narrow
// interface; the concrete HTML/DOM layout engine lives outside this
// module.
type Layouter interface {
	// AddPageGroups parses additional HTML fragments defining page groups.
	AddPageGroups(html string) error
	// RemovePageGroup removes a previously added group by its identifier.
	RemovePageGroup(group string) error
	// ResolveReserved resolves a reserved page name (_first, _last, _active)
	// to a concrete page within the group, scanning pages created-time or
	// focus order as appropriate (spec.md §4.G).
	ResolveReserved(group, reserved string, candidates []PageID) (PageID, error)
}

// ReservedPageNames are the special names resolved via the Layouter/backend
// rather than looked up directly, per spec.md §4.G.
var ReservedPageNames = map[string]bool{
	"_first": true, "_last": true, "_active": true,
}

// ErrAlreadySet reports that setPageGroups was called twice on the same
// workspace (PreconditionFailed-adjacent Conflict per spec.md §4.F table).
var ErrAlreadySet = fmt.Errorf("model: page groups already set")

// ErrLayouterAbsent reports that addPageGroups/removePageGroup was called
// before setPageGroups installed a layouter.
var ErrLayouterAbsent = fmt.Errorf("model: layouter not set")

// Workspace is the shared state across all endpoints of one (host, app)
// pair, per spec.md §3.
type Workspace struct {
	mu sync.Mutex

	Host string
	App  string

	pages     map[PageID]*Page
	pageOwner map[PageID]*OwnerStack

	layouter Layouter
}

// NewWorkspace creates an empty workspace for the given (host, app) pair.
func NewWorkspace(host, app string) *Workspace {
	return &Workspace{
		Host:      host,
		App:       app,
		pages:     make(map[PageID]*Page),
		pageOwner: make(map[PageID]*OwnerStack),
	}
}

// SetLayouter installs the layout oracle, failing if one is already set
// (setPageGroups is not idempotent; spec.md §4.F).
func (w *Workspace) SetLayouter(l Layouter) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.layouter != nil {
		return ErrAlreadySet
	}
	w.layouter = l
	return nil
}

// GetLayouter returns the installed layout oracle, or nil if setPageGroups has
// not yet run.
func (w *Workspace) GetLayouter() Layouter {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.layouter
}

// LookupPage returns the page registered at id, if any.
func (w *Workspace) LookupPage(id PageID) (*Page, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pages[id]
	return p, ok
}

// CreatePage registers a new page at id if one does not already exist.
// Per spec.md §3's invariant, a duplicate create returns the existing page
// and created=false rather than overwriting it.
func (w *Workspace) CreatePage(id PageID, p *Page) (page *Page, created bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.pages[id]; ok {
		return existing, false
	}
	w.pages[id] = p
	w.pageOwner[id] = NewOwnerStack()
	return p, true
}

// LookupPageByContainer finds the page whose top-level container (plain
// window or widget handle) matches, used by the destroy path to find a
// page without the caller tracking PageID alongside the handle.
func (w *Workspace) LookupPageByContainer(container Handle) (*Page, PageID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, p := range w.pages {
		if p.ContainerHandle == container {
			return p, id, true
		}
	}
	return nil, "", false
}

// DestroyPage removes a page and its owner stack, returning it if present.
func (w *Workspace) DestroyPage(id PageID) (*Page, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pages[id]
	if !ok {
		return nil, false
	}
	delete(w.pages, id)
	delete(w.pageOwner, id)
	return p, true
}

// OwnerStackFor returns the owner stack for a live page.
func (w *Workspace) OwnerStackFor(id PageID) (*OwnerStack, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.pageOwner[id]
	return s, ok
}

// PagesInGroup returns every page id whose Group matches, sorted for
// deterministic iteration (Go map order is unspecified). For the
// renderer's scale this O(n) scan matches spec.md §4.G's documented cost.
func (w *Workspace) PagesInGroup(group string) []PageID {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ids []PageID
	for id, p := range w.pages {
		if p.Group == group {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AssignOwner registers (session, coroutine) as the new top owner of page
// id, returning the previously-top entry (if any) so the caller can
// suppress it. Shared by every operation that can reassign page ownership —
// register, load, loadFromUrl, and the writeBegin streaming family — per
// the shared register_coroutine-equivalent helper those opcodes call in
// endpoint.c.
func (w *Workspace) AssignOwner(id PageID, entry OwnerEntry) (suppressed OwnerEntry, hadSuppressed bool, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	stack, exists := w.pageOwner[id]
	if !exists {
		return OwnerEntry{}, false, false
	}
	suppressed, hadSuppressed = stack.Register(entry)
	return suppressed, hadSuppressed, true
}

// RevokeSessionEverywhere removes session's ownership from every page-owner
// stack in the workspace, collecting the resulting reload notifications.
// Used on endpoint teardown (spec.md §4.G, Testable Property "Closing an
// endpoint ... causes exactly K reload events").
func (w *Workspace) RevokeSessionEverywhere(session Handle) []ReloadNotice {
	w.mu.Lock()
	defer w.mu.Unlock()
	var notices []ReloadNotice
	for id, stack := range w.pageOwner {
		if top, reload := stack.RevokeSession(session); reload {
			notices = append(notices, ReloadNotice{Page: id, Owner: top})
		}
	}
	return notices
}

// ReloadNotice names a page whose top owner changed and must be asked to
// reload, per spec.md §4.G.
type ReloadNotice struct {
	Page  PageID
	Owner OwnerEntry
}
