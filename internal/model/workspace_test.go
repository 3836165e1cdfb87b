package model

import "testing"

func TestCreatePageIdempotence(t *testing.T) {
	w := NewWorkspace("localhost", "com.example")
	id := MakePageID("plainwin", "main", "")

	p1, created1 := w.CreatePage(id, &Page{ID: id, Variant: PagePlainWindow})
	if !created1 {
		t.Fatalf("first create should report created=true")
	}
	p2, created2 := w.CreatePage(id, &Page{ID: id, Variant: PagePlainWindow})
	if created2 {
		t.Fatalf("duplicate create should report created=false")
	}
	if p1 != p2 {
		t.Fatalf("duplicate create must return the existing page, not a new one")
	}
}

func TestSetLayouterOnceOnly(t *testing.T) {
	w := NewWorkspace("localhost", "com.example")
	if err := w.SetLayouter(fakeLayouter{}); err != nil {
		t.Fatalf("first SetLayouter should succeed: %v", err)
	}
	if err := w.SetLayouter(fakeLayouter{}); err != ErrAlreadySet {
		t.Fatalf("second SetLayouter should return ErrAlreadySet, got %v", err)
	}
}

func TestRevokeSessionEverywhereCountsReloads(t *testing.T) {
	w := NewWorkspace("localhost", "com.example")
	idA := MakePageID("plainwin", "a", "")
	idB := MakePageID("plainwin", "b", "")
	w.CreatePage(idA, &Page{ID: idA})
	w.CreatePage(idB, &Page{ID: idB})

	stackA, _ := w.OwnerStackFor(idA)
	stackB, _ := w.OwnerStackFor(idB)
	stackA.Register(OwnerEntry{Session: 1, Coroutine: 1})
	stackA.Register(OwnerEntry{Session: 2, Coroutine: 2}) // session 2 owns top of A
	stackB.Register(OwnerEntry{Session: 2, Coroutine: 3}) // session 2 owns top of B (alone)

	notices := w.RevokeSessionEverywhere(2)
	if len(notices) != 1 {
		// B had only session 2, so after revoke its stack is empty: no
		// "new top" to reload, but A's top changes to session 1.
		t.Fatalf("expected exactly 1 reload notice, got %d: %+v", len(notices), notices)
	}
	if notices[0].Page != idA {
		t.Fatalf("expected reload notice for page A, got %v", notices[0].Page)
	}
}

type fakeLayouter struct{}

func (fakeLayouter) AddPageGroups(string) error                              { return nil }
func (fakeLayouter) RemovePageGroup(string) error                             { return nil }
func (fakeLayouter) ResolveReserved(string, string, []PageID) (PageID, error) { return "", nil }
