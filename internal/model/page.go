package model

import "fmt"

// PageID is a page identifier of the form "prefix-name@group", globally
// unique within a workspace (spec.md §3 invariants).
type PageID string

// MakePageID builds the canonical page identifier for a name within an
// optional group.
func MakePageID(prefix, name, group string) PageID {
	if group == "" {
		return PageID(fmt.Sprintf("%s-%s", prefix, name))
	}
	return PageID(fmt.Sprintf("%s-%s@%s", prefix, name, group))
}

// PageVariant distinguishes a top-level OS window from an embedded widget.
type PageVariant int

const (
	PagePlainWindow PageVariant = iota
	PageWidget
)

// WebView is the opaque handle to the rendering subprocess's document
// instance backing one Page, per spec.md §3.
type WebView struct {
	Handle Handle
}

// Page is a rendered surface: a PlainWindow (top-level OS window) or a
// Widget (embedded web view inside a tabbed/paned container). Each owns
// exactly one WebView and a back-reference to its containing UI element,
// per spec.md §3.
type Page struct {
	ID      PageID
	Variant PageVariant

	// ContainerHandle is the plain-window handle (PagePlainWindow) or the
	// pane/tab handle (PageWidget) this page's web view lives inside.
	ContainerHandle Handle
	ContainerKind   HandleKind

	WebView WebView

	Name  string
	Group string
}
