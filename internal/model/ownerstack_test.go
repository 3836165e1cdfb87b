package model

import "testing"

func TestOwnerStackRegisterSuppression(t *testing.T) {
	s := NewOwnerStack()
	a := OwnerEntry{Session: 1, Coroutine: 100}
	b := OwnerEntry{Session: 2, Coroutine: 200}

	if _, had := s.Register(a); had {
		t.Fatalf("first register must not suppress anything")
	}
	suppressed, had := s.Register(b)
	if !had || suppressed != a {
		t.Fatalf("second register must suppress first: got %+v had=%v", suppressed, had)
	}
	top, ok := s.Top()
	if !ok || top != b {
		t.Fatalf("expected top to be b, got %+v", top)
	}
	if s.Len() != 2 {
		t.Fatalf("expected depth 2, got %d", s.Len())
	}
}

func TestOwnerStackRevokeTopReturnsNewTop(t *testing.T) {
	s := NewOwnerStack()
	a := OwnerEntry{Session: 1, Coroutine: 1}
	b := OwnerEntry{Session: 2, Coroutine: 2}
	s.Register(a)
	s.Register(b)

	newTop, reload := s.Revoke(b)
	if !reload || newTop != a {
		t.Fatalf("revoking top must surface prior entry to reload: %+v reload=%v", newTop, reload)
	}
}

func TestOwnerStackRevokeBottomLeavesTopUnchanged(t *testing.T) {
	s := NewOwnerStack()
	a := OwnerEntry{Session: 1, Coroutine: 1}
	b := OwnerEntry{Session: 2, Coroutine: 2}
	c := OwnerEntry{Session: 3, Coroutine: 3}
	s.Register(a)
	s.Register(b)
	s.Register(c)

	_, reload := s.Revoke(a)
	if reload {
		t.Fatalf("revoking a non-top entry must not request a reload")
	}
	top, _ := s.Top()
	if top != c {
		t.Fatalf("top must be unchanged after revoking the bottom entry, got %+v", top)
	}
	if s.Len() != 2 {
		t.Fatalf("expected depth 2 after revoke, got %d", s.Len())
	}
}

func TestOwnerStackNRegistersProduceDepthN(t *testing.T) {
	s := NewOwnerStack()
	const n = 5
	var last OwnerEntry
	for i := 0; i < n; i++ {
		e := OwnerEntry{Session: Handle(i), Coroutine: uint64(i)}
		s.Register(e)
		last = e
	}
	if s.Len() != n {
		t.Fatalf("expected depth %d, got %d", n, s.Len())
	}
	top, _ := s.Top()
	if top != last {
		t.Fatalf("expected top to be the Nth registered pair")
	}
}

func TestOwnerStackRevokeSessionChangesTop(t *testing.T) {
	s := NewOwnerStack()
	a := OwnerEntry{Session: 1, Coroutine: 1}
	b := OwnerEntry{Session: 2, Coroutine: 2}
	s.Register(a)
	s.Register(b)

	newTop, reload := s.RevokeSession(2)
	if !reload || newTop != a {
		t.Fatalf("revoking session owning the top must surface new top: %+v reload=%v", newTop, reload)
	}
	if !s.Empty() {
		s.RevokeSession(1)
	}
	if !s.Empty() {
		t.Fatalf("expected stack empty after revoking all sessions")
	}
}

func TestOwnerStackRevokeSessionNoChangeWhenNotTop(t *testing.T) {
	s := NewOwnerStack()
	a := OwnerEntry{Session: 1, Coroutine: 1}
	b := OwnerEntry{Session: 2, Coroutine: 2}
	s.Register(a)
	s.Register(b)

	_, reload := s.RevokeSession(1)
	if reload {
		t.Fatalf("revoking a non-top session must not request reload")
	}
	top, _ := s.Top()
	if top != b {
		t.Fatalf("top must remain b")
	}
}
