// Package ranklist keeps entries in ascending order of a caller-defined metric
// that only ever grows. New entries are prepended; an entry whose metric grew
// is moved forward past every entry that now ranks strictly below it, so the
// list never needs a full re-sort.
package ranklist

import "iter"

// Entry is an element of a List.
type Entry[T any] struct {
	Value T

	prev, next *Entry[T]
	list       *List[T]
}

// Next returns the following entry or nil.
func (e *Entry[T]) Next() *Entry[T] { return e.next }

// Prev returns the preceding entry or nil.
func (e *Entry[T]) Prev() *Entry[T] { return e.prev }

// CompareFunc orders two values: negative when a ranks below b, zero when they
// tie, positive when a ranks above b.
type CompareFunc[T any] func(a, b T) int

// List is a doubly-linked list of entries ordered head to tail.
// The zero value is an empty list. It is not safe for concurrent use.
type List[T any] struct {
	head, tail *Entry[T]
	len        int
}

// New returns an empty list.
func New[T any]() *List[T] { return &List[T]{} }

// Len returns the number of entries.
func (l *List[T]) Len() int { return l.len }

// Front returns the head entry or nil.
func (l *List[T]) Front() *Entry[T] { return l.head }

// Back returns the tail entry or nil.
func (l *List[T]) Back() *Entry[T] { return l.tail }

// InsertEntry prepends a new entry holding v and returns it; it becomes the
// new head. Ordering is not consulted: a fresh entry must either start at the
// minimum metric or be passed to Reposition before order is relied upon.
func (l *List[T]) InsertEntry(v T) *Entry[T] {
	e := &Entry[T]{Value: v, next: l.head, list: l}
	if l.head != nil {
		l.head.prev = e
	} else {
		l.tail = e
	}
	l.head = e
	l.len++
	return e
}

// Reposition moves e forward until it sits after every entry that ranks
// strictly below it and returns the (possibly new) head. Entries never move
// backwards: the metric behind e may only have grown since e was last placed.
// Entries that tie with e keep their place ahead of it.
func (l *List[T]) Reposition(e *Entry[T], cmp CompareFunc[T]) *Entry[T] {
	if e.list != l || e.next == nil || cmp(e.Value, e.next.Value) <= 0 {
		return l.head
	}

	current := e.next
	for current.next != nil && cmp(e.Value, current.next.Value) > 0 {
		current = current.next
	}

	l.unlink(e)
	l.linkAfter(e, current)
	return l.head
}

func (l *List[T]) unlink(e *Entry[T]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (l *List[T]) linkAfter(e, at *Entry[T]) {
	e.prev = at
	e.next = at.next
	if at.next != nil {
		at.next.prev = e
	} else {
		l.tail = e
	}
	at.next = e
}

// All yields the values from head to tail. The sequence is lazy and can be
// ranged over any number of times; it must not be used while the list is
// being modified.
func (l *List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for e := l.head; e != nil; e = e.next {
			if !yield(e.Value) {
				return
			}
		}
	}
}

// Backward yields the values from tail to head.
func (l *List[T]) Backward() iter.Seq[T] {
	return func(yield func(T) bool) {
		for e := l.tail; e != nil; e = e.prev {
			if !yield(e.Value) {
				return
			}
		}
	}
}

// Walk calls visit for every value from head to tail.
func (l *List[T]) Walk(visit func(T)) {
	for v := range l.All() {
		visit(v)
	}
}
