//go:build vulkan

package gfx

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Pools are carved in 64 MiB chunks; resources larger than a chunk get a
// dedicated pool of their exact size.
const defaultPoolSize = 64 << 20

// poolAlign is the suballocation alignment inside a pool. It covers the
// buffer and image alignments current drivers report; a resource demanding
// more gets a dedicated pool where its offset is zero.
const poolAlign = 4096

type memoryPool struct {
	typeIndex   uint32
	hostVisible bool
	dedicated   bool
	size        uint64
	memory      vk.DeviceMemory
	ptr         unsafe.Pointer
	alloc       PoolAllocator
}

// releasable reports whether the pool's device memory should go back to the
// driver. Shared pools live until Cleanup; a dedicated pool exists for one
// oversized resource and is released as soon as that resource is freed.
func (p *memoryPool) releasable() bool {
	return p.dedicated && p.alloc.Used() == 0
}

// memoryBlock is one resource's slice of a pool.
type memoryBlock struct {
	pool       *memoryPool
	allocation *Allocation
}

// bytes returns the mapped window for a host visible block.
func (b *memoryBlock) bytes() []byte {
	if b.pool.ptr == nil {
		return nil
	}
	const m = 0x7fffffff
	s := b.allocation.Offset
	e := b.allocation.Offset + b.allocation.Size
	return (*[m]byte)(b.pool.ptr)[s:e]
}

// deviceAllocator owns the device memory pools for one VulkanContext. It is
// bound to the device/physical-device pair at logical device creation and
// destroyed with the context.
type deviceAllocator struct {
	device   vk.Device
	memProps vk.PhysicalDeviceMemoryProperties

	pools    []*memoryPool
	reserved uint64
	peakUsed uint64
}

func newDeviceAllocator(device vk.Device, gpu vk.PhysicalDevice) *deviceAllocator {
	a := &deviceAllocator{device: device}
	vk.GetPhysicalDeviceMemoryProperties(gpu, &a.memProps)
	a.memProps.Deref()
	return a
}

func (a *deviceAllocator) findMemoryType(memoryTypeBits uint32, properties vk.MemoryPropertyFlagBits) (uint32, error) {
	for i := uint32(0); i < a.memProps.MemoryTypeCount; i++ {
		mt := a.memProps.MemoryTypes[i]
		mt.Deref()
		if memoryTypeBits&(1<<i) != 0 &&
			vk.MemoryPropertyFlagBits(mt.PropertyFlags)&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no matching memory type for bits %#x props %#x", memoryTypeBits, properties)
}

func (a *deviceAllocator) newPool(typeIndex uint32, size uint64, hostVisible bool) (*memoryPool, error) {
	var memory vk.DeviceMemory
	err := vk.Error(vk.AllocateMemory(a.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}, nil, &memory))
	if err != nil {
		return nil, fmt.Errorf("pool allocation of %d bytes: %w", size, err)
	}

	pool := &memoryPool{
		typeIndex:   typeIndex,
		hostVisible: hostVisible,
		size:        size,
		memory:      memory,
		alloc:       PoolAllocator{Size: size, Align: poolAlign},
	}

	if hostVisible {
		// Host visible pools stay persistently mapped.
		var ptr unsafe.Pointer
		err := vk.Error(vk.MapMemory(a.device, memory, 0, vk.DeviceSize(size), 0, &ptr))
		if err != nil {
			vk.FreeMemory(a.device, memory, nil)
			return nil, fmt.Errorf("mapping pool memory: %w", err)
		}
		pool.ptr = ptr
	}

	a.pools = append(a.pools, pool)
	a.reserved += size
	return pool, nil
}

// allocate reserves memory satisfying req with the given properties.
// req must already be dereferenced.
func (a *deviceAllocator) allocate(req vk.MemoryRequirements, properties vk.MemoryPropertyFlagBits) (*memoryBlock, error) {
	typeIndex, err := a.findMemoryType(req.MemoryTypeBits, properties)
	if err != nil {
		return nil, err
	}

	hostVisible := properties&vk.MemoryPropertyHostVisibleBit != 0
	size := uint64(req.Size)

	if size <= defaultPoolSize && uint64(req.Alignment) <= poolAlign {
		for _, pool := range a.pools {
			if pool.typeIndex != typeIndex || pool.hostVisible != hostVisible {
				continue
			}
			if alloc := pool.alloc.Allocate(size); alloc != nil {
				return a.track(&memoryBlock{pool: pool, allocation: alloc}), nil
			}
		}
		pool, err := a.newPool(typeIndex, defaultPoolSize, hostVisible)
		if err != nil {
			return nil, err
		}
		alloc := pool.alloc.Allocate(size)
		if alloc == nil {
			return nil, fmt.Errorf("fresh pool rejected %d byte allocation", size)
		}
		return a.track(&memoryBlock{pool: pool, allocation: alloc}), nil
	}

	// Oversized or over-aligned: dedicated pool, offset zero.
	pool, err := a.newPool(typeIndex, size, hostVisible)
	if err != nil {
		return nil, err
	}
	pool.dedicated = true
	alloc := pool.alloc.Allocate(size)
	if alloc == nil {
		return nil, fmt.Errorf("dedicated pool rejected %d byte allocation", size)
	}
	return a.track(&memoryBlock{pool: pool, allocation: alloc}), nil
}

func (a *deviceAllocator) track(b *memoryBlock) *memoryBlock {
	if used := a.used(); used > a.peakUsed {
		a.peakUsed = used
	}
	return b
}

func (a *deviceAllocator) free(b *memoryBlock) {
	if b == nil {
		return
	}
	b.pool.alloc.Free(b.allocation)
	if b.pool.releasable() {
		a.releasePool(b.pool)
	}
}

func (a *deviceAllocator) releasePool(pool *memoryPool) {
	for i, p := range a.pools {
		if p == pool {
			a.pools = append(a.pools[:i], a.pools[i+1:]...)
			break
		}
	}
	if pool.ptr != nil {
		vk.UnmapMemory(a.device, pool.memory)
		pool.ptr = nil
	}
	vk.FreeMemory(a.device, pool.memory, nil)
	a.reserved -= pool.size
}

// used returns the bytes currently handed out to live resources.
func (a *deviceAllocator) used() uint64 {
	var used uint64
	for _, pool := range a.pools {
		used += pool.alloc.Used()
	}
	return used
}

func (a *deviceAllocator) destroy() {
	for _, pool := range a.pools {
		if pool.ptr != nil {
			vk.UnmapMemory(a.device, pool.memory)
		}
		vk.FreeMemory(a.device, pool.memory, nil)
	}
	a.pools = nil
	a.reserved = 0
}
