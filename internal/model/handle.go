package model

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

// Handle is an opaque 64-bit object identifier. Per spec.md §9, handles are
// allocated from a generation counter rather than cast from pointers; freed
// ids are never reissued.
type Handle uint64

// HandleKind tags what kind of object a Handle refers to, purely for
// validation — no polymorphism is implied (spec.md §4.G).
type HandleKind int

const (
	HandlePlainWin HandleKind = iota
	HandleTabbedWin
	HandleContainer
	HandlePaneOrTab
	HandleWebView
)

func (k HandleKind) String() string {
	switch k {
	case HandlePlainWin:
		return "plainWindow"
	case HandleTabbedWin:
		return "tabbedWindow"
	case HandleContainer:
		return "container"
	case HandlePaneOrTab:
		return "paneOrTab"
	case HandleWebView:
		return "webView"
	default:
		return "unknown"
	}
}

// HandleAllocator hands out process-wide-unique, monotonically increasing
// handles. Never reused, so a stale handle presented after its object was
// freed reliably looks up as absent rather than aliasing a new object.
type HandleAllocator struct {
	next uint64
}

// Next returns the next handle value. The zero handle is never issued, so
// callers may use 0 as an "unset" sentinel.
func (a *HandleAllocator) Next() Handle {
	return Handle(atomic.AddUint64(&a.next, 1))
}

// identifierRE implements the assumed purc_is_valid_identifier grammar per
// spec.md §9's Open Question resolution: [A-Za-z_][A-Za-z0-9_]*, max 63 bytes.
var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is a syntactically valid window/page
// name.
func ValidIdentifier(name string) bool {
	return len(name) > 0 && len(name) <= 63 && identifierRE.MatchString(name)
}

// ErrInvalidIdentifier is returned when a window/page name fails
// ValidIdentifier.
var ErrInvalidIdentifier = fmt.Errorf("model: invalid identifier")
