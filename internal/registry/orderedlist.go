package registry

// orderedList is a minimal intrusive doubly-linked list of *Endpoint,
// oldest at front. It backs both the dangling list and the
// activity-ordered liveness list (spec.md §4.D, §4.B): insertion is O(1),
// and moving an element to the back on activity update is O(1) given its
// *listElem, which callers keep on the Endpoint itself rather than
// re-searching — the "balanced tree" the spec describes is overkill for a
// single-process renderer's endpoint count, and no ordered-map library
// ships in the example corpus, so this is hand-rolled (see DESIGN.md).
type orderedList struct {
	head, tail *listElem
	size       int
}

type listElem struct {
	prev, next *listElem
	endpoint   *Endpoint
}

func (l *orderedList) pushBack(e *Endpoint) *listElem {
	el := &listElem{endpoint: e}
	if l.tail == nil {
		l.head, l.tail = el, el
	} else {
		el.prev = l.tail
		l.tail.next = el
		l.tail = el
	}
	l.size++
	return el
}

func (l *orderedList) remove(el *listElem) {
	if el == nil {
		return
	}
	if el.prev != nil {
		el.prev.next = el.next
	} else if l.head == el {
		l.head = el.next
	}
	if el.next != nil {
		el.next.prev = el.prev
	} else if l.tail == el {
		l.tail = el.prev
	}
	el.prev, el.next = nil, nil
	l.size--
}

// moveToBack re-homes el at the tail without changing the rest of the
// order; used on activity-touch re-ordering.
func (l *orderedList) moveToBack(el *listElem) {
	if l.tail == el {
		return
	}
	l.remove(el)
	el.prev, el.next = nil, nil
	if l.tail == nil {
		l.head, l.tail = el, el
	} else {
		el.prev = l.tail
		l.tail.next = el
		l.tail = el
	}
	l.size++
}

// front returns the oldest element, or nil if empty.
func (l *orderedList) front() *listElem { return l.head }

func (l *orderedList) len() int { return l.size }
