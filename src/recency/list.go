// Package recency implements the doubly linked list the LC+BP engine
// uses to track which bit-table slots are currently set, ordered
// least-recently-touched to most-recently-touched. Entries are
// externally owned: they are the bit-table slots themselves (embedded
// by value inside the engine's slot array), and this package only
// owns the link fields and the sentinel head.
package recency

import "github.com/cardsketch/windowcard/src/sketcherrors"

// Entry is one slot's recency-list linkage plus the two fields the
// sentinel head overloads for aggregate bookkeeping: Val (whether the
// slot is set; on the head, the count of currently-set slots) and Gap
// (dummy recency units attributed to this slot; on the head, the
// global pending-dummy counter).
type Entry struct {
	Val int
	Gap int64

	// Idx is the caller-owned bit-table index this entry corresponds
	// to. The list never reads or writes it; it exists so a caller
	// holding only an *Entry (e.g. from HeadNext) can recover which
	// table slot it came from without an unsafe pointer cast back
	// through an embedding struct.
	Idx int

	prev, next *Entry
	linked     bool
}

// Prev returns the entry's predecessor in the list, or nil for the
// sentinel head or an unlinked entry.
func (e *Entry) Prev() *Entry { return e.prev }

// Next returns the entry's successor in the list, or nil if e is the
// tail or unlinked.
func (e *Entry) Next() *Entry { return e.next }

// List is the recency list. Its zero value is not usable; construct
// with New. tail is tracked explicitly so every operation below is
// O(1), as spec.md §4.3 requires.
type List struct {
	head *Entry
	tail *Entry
}

// New returns an empty list with a fresh sentinel head.
func New() *List {
	head := &Entry{}
	return &List{head: head, tail: head}
}

// Head returns the sentinel head entry.
func (l *List) Head() *Entry {
	return l.head
}

// HeadNext returns the least-recently-touched entry (the current LRU
// candidate), or nil if the list is empty.
func (l *List) HeadNext() *Entry {
	return l.head.next
}

// Append links entry at the tail (MRU position). entry must not
// already be linked.
func (l *List) Append(entry *Entry) {
	if entry.linked {
		return
	}
	l.tail.next = entry
	entry.prev = l.tail
	entry.next = nil
	entry.linked = true
	l.tail = entry
}

// Touch relinks entry to the tail; a no-op if entry is already the
// tail. entry must already be linked (i.e. its Val is 1).
func (l *List) Touch(entry *Entry) {
	if !entry.linked || entry == l.tail {
		return
	}
	l.unlink(entry)
	l.tail.next = entry
	entry.prev = l.tail
	entry.next = nil
	entry.linked = true
	l.tail = entry
}

// PopHead unlinks and returns the LRU entry (head.next). Returns an
// InvalidParameters error if the list is empty; callers in this
// module only call PopHead after checking HeadNext() != nil, so this
// path exists for defensive completeness rather than expected use.
func (l *List) PopHead() (*Entry, error) {
	lru := l.head.next
	if lru == nil {
		return nil, sketcherrors.New(sketcherrors.InvalidParameters, "pop_head on empty recency list")
	}
	l.unlink(lru)
	return lru, nil
}

// unlink removes entry from the list without touching Val/Gap, fixing
// up tail if entry was it.
func (l *List) unlink(entry *Entry) {
	prev := entry.prev
	next := entry.next
	if prev != nil {
		prev.next = next
	}
	if next != nil {
		next.prev = prev
	}
	if l.tail == entry {
		l.tail = prev
	}
	entry.prev = nil
	entry.next = nil
	entry.linked = false
}
