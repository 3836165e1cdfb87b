package registry

import (
	"testing"
	"time"
)

func TestAuthenticateMovesDanglingToNamedMap(t *testing.T) {
	r := New()
	ep := &Endpoint{}
	now := time.Unix(1000, 0)
	r.Accept(ep, now)

	ready, pending := r.Count()
	if ready != 0 || pending != 1 {
		t.Fatalf("expected 0 ready/1 pending after accept, got %d/%d", ready, pending)
	}

	id := Identity{Host: "localhost", App: "com.example", Runner: "main"}
	if err := r.Authenticate(ep, id, now); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	ready, pending = r.Count()
	if ready != 1 || pending != 0 {
		t.Fatalf("expected 1 ready/0 pending after authenticate, got %d/%d", ready, pending)
	}
	if _, ok := r.Lookup(id.Name()); !ok {
		t.Fatalf("expected endpoint to be looked up by name %s", id.Name())
	}
}

func TestAuthenticateRejectsNameCollision(t *testing.T) {
	r := New()
	id := Identity{Host: "localhost", App: "com.example", Runner: "main"}
	now := time.Unix(1000, 0)

	a := &Endpoint{}
	r.Accept(a, now)
	if err := r.Authenticate(a, id, now); err != nil {
		t.Fatalf("first authenticate: %v", err)
	}

	b := &Endpoint{}
	r.Accept(b, now)
	if err := r.Authenticate(b, id, now); err != ErrNameTaken {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestAuthenticateNotDangling(t *testing.T) {
	r := New()
	ep := &Endpoint{}
	id := Identity{Host: "localhost", App: "com.example", Runner: "main"}
	if err := r.Authenticate(ep, id, time.Unix(0, 0)); err != ErrNotDangling {
		t.Fatalf("expected ErrNotDangling, got %v", err)
	}
}

func TestSweepDanglingReturnsOnlyStale(t *testing.T) {
	r := New()
	base := time.Unix(1000, 0)
	fresh := &Endpoint{}
	stale := &Endpoint{}
	r.Accept(fresh, base)
	r.Accept(stale, base.Add(-10*time.Second))

	result := r.SweepDangling(base, 5*time.Second)
	if len(result) != 1 || result[0] != stale {
		t.Fatalf("expected exactly the stale endpoint, got %+v", result)
	}
}

func TestSweepActivityOrdersAndClassifies(t *testing.T) {
	r := New()
	base := time.Unix(10000, 0)

	mkReady := func(name string, lastActivity time.Time) *Endpoint {
		ep := &Endpoint{}
		r.Accept(ep, lastActivity)
		r.Authenticate(ep, Identity{Host: "h", App: "a", Runner: name}, lastActivity)
		return ep
	}

	// oldest last-activity first: veryOld should close, mid should ping,
	// fresh should not appear at all.
	veryOld := mkReady("r1", base.Add(-30*time.Second))
	mid := mkReady("r2", base.Add(-15*time.Second))
	_ = mkReady("r3", base.Add(-1*time.Second))

	toPing, toClose := r.SweepActivity(base, 10*time.Second, 20*time.Second)
	if len(toClose) != 1 || toClose[0] != veryOld {
		t.Fatalf("expected veryOld in toClose, got %+v", toClose)
	}
	if len(toPing) != 1 || toPing[0] != mid {
		t.Fatalf("expected mid in toPing, got %+v", toPing)
	}
}

func TestTouchReordersActivityList(t *testing.T) {
	r := New()
	base := time.Unix(5000, 0)
	ep := &Endpoint{}
	r.Accept(ep, base)
	r.Authenticate(ep, Identity{Host: "h", App: "a", Runner: "r"}, base)

	other := &Endpoint{}
	r.Accept(other, base)
	r.Authenticate(other, Identity{Host: "h", App: "a", Runner: "r2"}, base.Add(time.Second))

	// both are equally "old" relative to a future now; touching ep should
	// push it behind other in the oldest-first ordering.
	r.Touch(ep, base.Add(100*time.Second))

	_, toClose := r.SweepActivity(base.Add(100*time.Second), 0, 50*time.Second)
	if len(toClose) != 1 || toClose[0] != other {
		t.Fatalf("expected only the untouched endpoint to be stale, got %+v", toClose)
	}
}

func TestRemoveUnlinksFromAllLists(t *testing.T) {
	r := New()
	now := time.Unix(1, 0)
	ep := &Endpoint{}
	r.Accept(ep, now)
	id := Identity{Host: "h", App: "a", Runner: "r"}
	r.Authenticate(ep, id, now)

	r.Remove(ep, RemovedSocketClosed)
	if _, ok := r.Lookup(id.Name()); ok {
		t.Fatalf("expected endpoint removed from named map")
	}
	ready, pending := r.Count()
	if ready != 0 || pending != 0 {
		t.Fatalf("expected empty registry after remove, got %d/%d", ready, pending)
	}
}
