package gfx

import "fmt"

// Allocation is a reserved range inside a memory pool.
type Allocation struct {
	Offset uint64
	Size   uint64
}

func (a *Allocation) String() string {
	return fmt.Sprintf("[%d %d]", a.Offset, a.Size)
}

// PoolAllocator hands out sub-ranges of one fixed-size block of device
// memory. Vulkan limits the number of native memory allocations an
// application may make, so resources are suballocated from larger pools
// instead of each getting its own vkAllocateMemory call.
//
// Allocate is first-fit over the free gaps; allocs stays sorted by offset.
type PoolAllocator struct {
	Size  uint64
	Align uint64

	allocs []*Allocation
}

func alignUp(a uint64, align uint64) uint64 {
	if align == 0 {
		return a
	}
	m := a % align
	if m == 0 {
		return a
	}
	return (a - m) + align
}

// Allocate reserves size bytes and returns the allocation, or nil when no
// gap is large enough.
func (p *PoolAllocator) Allocate(size uint64) *Allocation {
	if size == 0 || size > p.Size {
		return nil
	}

	if len(p.allocs) == 0 {
		na := &Allocation{Offset: 0, Size: size}
		p.allocs = append(p.allocs, na)
		return na
	}

	// Gap before the first allocation.
	if p.allocs[0].Offset >= size {
		na := &Allocation{Offset: 0, Size: size}
		p.allocs = append([]*Allocation{na}, p.allocs...)
		return na
	}

	// Gaps between neighbours.
	for i := 0; i+1 < len(p.allocs); i++ {
		c := p.allocs[i]
		n := p.allocs[i+1]

		l := alignUp(c.Offset+c.Size, p.Align)
		if n.Offset >= l && n.Offset-l >= size {
			na := &Allocation{Offset: l, Size: size}
			p.allocs = append(p.allocs[:i+1], append([]*Allocation{na}, p.allocs[i+1:]...)...)
			return na
		}
	}

	// Tail gap.
	last := p.allocs[len(p.allocs)-1]
	l := alignUp(last.Offset+last.Size, p.Align)
	if p.Size >= l && p.Size-l >= size {
		na := &Allocation{Offset: l, Size: size}
		p.allocs = append(p.allocs, na)
		return na
	}

	return nil
}

// Free releases a previously returned allocation.
func (p *PoolAllocator) Free(fa *Allocation) {
	for i, a := range p.allocs {
		if a == fa {
			p.allocs = append(p.allocs[:i], p.allocs[i+1:]...)
			return
		}
	}
}

// Used returns the number of bytes currently reserved.
func (p *PoolAllocator) Used() uint64 {
	var used uint64
	for _, a := range p.allocs {
		used += a.Size
	}
	return used
}

func (p *PoolAllocator) String() string {
	return fmt.Sprintf("%v", p.allocs)
}
