package model

// OwnerEntry is one `(session, coroutine)` pair on a page-owner stack, per
// spec.md §3 "Page-owner stack". Session is the session's own handle (the
// value returned as resultValue from startSession) — never a live pointer —
// so a stack can outlive, and never strongly references, any session.
type OwnerEntry struct {
	Session   Handle
	Coroutine uint64
}

// OwnerStack is the ordered LIFO of owners of one page, governing
// suppression and reload on ownership transitions (spec.md §3, §4.G).
type OwnerStack struct {
	entries []OwnerEntry
}

// NewOwnerStack creates an empty page-owner stack.
func NewOwnerStack() *OwnerStack {
	return &OwnerStack{}
}

// Top returns the current top entry and true, or the zero value and false
// if the stack is empty.
func (s *OwnerStack) Top() (OwnerEntry, bool) {
	if len(s.entries) == 0 {
		return OwnerEntry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// Len reports the stack depth.
func (s *OwnerStack) Len() int { return len(s.entries) }

// Register pushes a new owner. If the stack was non-empty, the prior top is
// returned as "suppressed" so the caller can notify it, per spec.md §4.G.
func (s *OwnerStack) Register(e OwnerEntry) (suppressed OwnerEntry, hadSuppressed bool) {
	if len(s.entries) > 0 {
		suppressed = s.entries[len(s.entries)-1]
		hadSuppressed = true
	}
	s.entries = append(s.entries, e)
	return suppressed, hadSuppressed
}

// Revoke removes the first matching entry. If it was on top, the new top
// (if any) is returned as "to_reload" so the caller can ask it to resume.
func (s *OwnerStack) Revoke(e OwnerEntry) (toReload OwnerEntry, shouldReload bool) {
	idx := -1
	for i, cur := range s.entries {
		if cur == e {
			idx = i
			break
		}
	}
	if idx < 0 {
		return OwnerEntry{}, false
	}
	wasTop := idx == len(s.entries)-1
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	if wasTop {
		if top, ok := s.Top(); ok {
			return top, true
		}
	}
	return OwnerEntry{}, false
}

// RevokeSession removes every entry belonging to session. If the top
// changed as a result, the new top is returned as "to_reload".
func (s *OwnerStack) RevokeSession(session Handle) (toReload OwnerEntry, shouldReload bool) {
	if len(s.entries) == 0 {
		return OwnerEntry{}, false
	}
	prevTop, hadTop := s.Top()

	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if e.Session != session {
			kept = append(kept, e)
		}
	}
	s.entries = kept

	newTop, hasNewTop := s.Top()
	if !hadTop {
		return OwnerEntry{}, false
	}
	if hasNewTop && newTop == prevTop {
		return OwnerEntry{}, false
	}
	if hasNewTop {
		return newTop, true
	}
	return OwnerEntry{}, false
}

// Empty reports whether the stack has no owners left.
func (s *OwnerStack) Empty() bool { return len(s.entries) == 0 }
