// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

// timerList is a circular, intrusive, doubly-linked list of *timer. It
// backs one spoke of a flat spoke array and is kept sorted ascending by
// deadline at all times: insert() walks from the head to find the first
// entry whose deadline is > the new one and splices in front of it, so
// entries with equal deadlines stay in insertion order.
type timerList struct {
	head  timer // sentinel; only next/prev (and spokeIdx, for debugging) are used
	spoke uint32
}

func (lst *timerList) init(spoke uint32) {
	lst.spoke = spoke
	lst.head.next = &lst.head
	lst.head.prev = &lst.head
	lst.head.spokeIdx = spoke
}

func (lst *timerList) isEmpty() bool {
	return lst.head.next == &lst.head
}

// insert splices e into the list so the list remains sorted ascending by
// deadline. e must be detached.
func (lst *timerList) insert(e *timer) {
	if !e.isDetached() {
		PANIC("timerList insert called on a non-detached timer %p\n", e)
	}
	v := lst.head.next
	for v != &lst.head && v.deadline.LE(e.deadline) {
		v = v.next
	}
	e.prev = v.prev
	e.next = v
	v.prev.next = e
	v.prev = e
	e.spokeIdx = lst.spoke
}

// rm detaches e from the list.
func (lst *timerList) rm(e *timer) {
	if e == nil || e.next == nil || e.prev == nil {
		PANIC("timerList rm called with a nil-linked timer %p\n", e)
	}
	if e.next == e || e.prev == e {
		PANIC("timerList rm called with an already-detached timer %p\n", e)
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	e.next = e
	e.prev = e
}

// forEach iterates the list front to back, stopping early if f returns
// false. It does not support removing the current element; use
// forEachSafeRm for that.
func (lst *timerList) forEach(f func(e *timer) bool) {
	for v := lst.head.next; v != &lst.head; v = v.next {
		if !f(v) {
			return
		}
	}
}

// forEachSafeRm iterates the list front to back, caching the next pointer
// before calling f so f may detach the current element (e.g. via rm) from
// lst or any other list without corrupting the iteration.
func (lst *timerList) forEachSafeRm(f func(l *timerList, e *timer) bool) {
	v := lst.head.next
	for v != &lst.head {
		nxt := v.next
		if !f(lst, v) {
			return
		}
		v = nxt
	}
}
