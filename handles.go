package gfx

// Handle is an opaque identifier for a GPU side resource. Handles are unique
// per resource category within one context and are never handed out twice,
// even after the resource they named has been deleted.
type Handle uint64

// NilHandle is the zero Handle. It never names a live resource.
const NilHandle Handle = 0

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) index() uint32 {
	return uint32(h)
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// slotTable is an arena of resources keyed by generation tagged handles.
// Deleting a resource bumps the slot's generation, so a handle that outlives
// its resource is rejected deterministically instead of silently aliasing a
// newer resource placed in the same slot.
type slotTable[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// Insert stores v and returns its handle.
func (t *slotTable[T]) Insert(v T) Handle {
	t.count++
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		s := &t.slots[idx]
		s.value = v
		s.live = true
		return makeHandle(idx, s.generation)
	}
	// Generations start at 1 so the zero Handle stays invalid.
	t.slots = append(t.slots, slot[T]{value: v, generation: 1, live: true})
	return makeHandle(uint32(len(t.slots)-1), 1)
}

// Get returns the resource named by h, or false when h is unknown or stale.
func (t *slotTable[T]) Get(h Handle) (T, bool) {
	var zero T
	idx := h.index()
	if int(idx) >= len(t.slots) {
		return zero, false
	}
	s := &t.slots[idx]
	if !s.live || s.generation != h.generation() {
		return zero, false
	}
	return s.value, true
}

// Set replaces the resource named by h.
func (t *slotTable[T]) Set(h Handle, v T) bool {
	idx := h.index()
	if int(idx) >= len(t.slots) {
		return false
	}
	s := &t.slots[idx]
	if !s.live || s.generation != h.generation() {
		return false
	}
	s.value = v
	return true
}

// Remove deletes the resource named by h and returns it. The slot's
// generation is bumped so h can never resolve again.
func (t *slotTable[T]) Remove(h Handle) (T, bool) {
	var zero T
	idx := h.index()
	if int(idx) >= len(t.slots) {
		return zero, false
	}
	s := &t.slots[idx]
	if !s.live || s.generation != h.generation() {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.live = false
	s.generation++
	t.free = append(t.free, idx)
	t.count--
	return v, true
}

// Len reports the number of live resources.
func (t *slotTable[T]) Len() int {
	return t.count
}

// Each calls fn for every live resource.
func (t *slotTable[T]) Each(fn func(Handle, T)) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.live {
			fn(makeHandle(uint32(i), s.generation), s.value)
		}
	}
}

// Clear drops every live resource, calling fn on each first when non-nil.
func (t *slotTable[T]) Clear(fn func(T)) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.live {
			if fn != nil {
				fn(s.value)
			}
			var zero T
			s.value = zero
			s.live = false
			s.generation++
			t.free = append(t.free, uint32(i))
		}
	}
	t.count = 0
}
