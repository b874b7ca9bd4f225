// Package handles maps opaque integer IDs onto live resources.
//
// A Table is a slot arena. An ID packs the slot index in its low 32 bits and
// the slot generation in its high 32 bits; removing an entry bumps the
// generation, so an ID that outlived its resource never resolves to whatever
// occupies the slot next.
package handles

import (
	"fmt"
	"sync"
)

type ID uint64

// Invalid is never issued by a Table.
const Invalid ID = 0

func makeID(index, gen uint32) ID {
	return ID(uint64(gen)<<32 | uint64(index))
}

func (id ID) Index() uint32 {
	return uint32(id)
}

func (id ID) Generation() uint32 {
	return uint32(id >> 32)
}

func (id ID) String() string {
	return fmt.Sprintf("%d/%d", id.Index(), id.Generation())
}

type slot[T any] struct {
	gen  uint32
	used bool
	val  T
}

// Table guards its bookkeeping with one mutex. It never calls into stored
// values, so callers may do blocking work on a value returned by Get.
type Table[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  []uint32
	live  int
}

func NewTable[T any]() *Table[T] {
	return &Table[T]{}
}

func (t *Table[T]) Insert(v T) ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, slot[T]{gen: 1})
	}
	s := &t.slots[idx]
	s.used = true
	s.val = v
	t.live++
	return makeID(idx, s.gen)
}

func (t *Table[T]) Get(id ID) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.lookup(id)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.val, true
}

// Remove detaches the value from id. The ID and every earlier ID of the same
// slot stay invalid forever after.
func (t *Table[T]) Remove(id ID) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(id)
}

// RemoveIf removes id only when pred accepts the stored value. It lets
// callers check the kind of a resource and detach it in one step.
func (t *Table[T]) RemoveIf(id ID, pred func(T) bool) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.lookup(id)
	if s == nil || !pred(s.val) {
		var zero T
		return zero, false
	}
	return t.removeLocked(id)
}

func (t *Table[T]) removeLocked(id ID) (T, bool) {
	var zero T
	s := t.lookup(id)
	if s == nil {
		return zero, false
	}
	v := s.val
	s.val = zero
	s.used = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	t.free = append(t.free, id.Index())
	t.live--
	return v, true
}

func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Range calls fn for a snapshot of live entries taken under the lock; fn
// runs without the lock held.
func (t *Table[T]) Range(fn func(ID, T) bool) {
	type entry struct {
		id  ID
		val T
	}
	t.mu.Lock()
	entries := make([]entry, 0, t.live)
	for i := range t.slots {
		s := &t.slots[i]
		if s.used {
			entries = append(entries, entry{id: makeID(uint32(i), s.gen), val: s.val})
		}
	}
	t.mu.Unlock()

	for _, e := range entries {
		if !fn(e.id, e.val) {
			return
		}
	}
}

func (t *Table[T]) lookup(id ID) *slot[T] {
	idx := id.Index()
	if int(idx) >= len(t.slots) {
		return nil
	}
	s := &t.slots[idx]
	if !s.used || s.gen != id.Generation() {
		return nil
	}
	return s
}
