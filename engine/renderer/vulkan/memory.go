package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

// MemoryAllocation is one device memory block bound to exactly one resource.
type MemoryAllocation struct {
	Memory    MemoryHandle
	Size      uint64
	TypeIndex uint32
}

type MemoryAllocator struct {
	device Device
}

func NewMemoryAllocator(device Device) *MemoryAllocator {
	return &MemoryAllocator{device: device}
}

// SelectMemoryType returns the first memory type, in the order the device
// exposes them, that is allowed by typeBits and carries every flag in required.
func (ma *MemoryAllocator) SelectMemoryType(typeBits uint32, required vk.MemoryPropertyFlags) (uint32, error) {
	types := ma.device.MemoryTypes()
	for i := 0; i < len(types) && i < 32; i++ {
		// Check each memory type to see if its bit is set to 1.
		if typeBits&(1<<uint(i)) != 0 && types[i].PropertyFlags&required == required {
			return uint32(i), nil
		}
	}
	return 0, errors.Wrapf(core.ErrNoSuitableMemoryType,
		"could not find a memory type matching type request %#x with flags %#x", typeBits, uint32(required))
}

func (ma *MemoryAllocator) Allocate(size uint64, typeIndex uint32) (*MemoryAllocation, error) {
	mem, err := ma.device.AllocateMemory(size, typeIndex)
	if err != nil {
		err = errors.Wrapf(err, "allocating %d bytes from memory type %d", size, typeIndex)
		return nil, errors.Mark(err, core.ErrOutOfDeviceMemory)
	}
	return &MemoryAllocation{
		Memory:    mem,
		Size:      size,
		TypeIndex: typeIndex,
	}, nil
}

// AllocateFor selects a memory type for req and allocates req.Size bytes from it.
func (ma *MemoryAllocator) AllocateFor(req MemoryRequirements, required vk.MemoryPropertyFlags) (*MemoryAllocation, error) {
	index, err := ma.SelectMemoryType(req.TypeBits, required)
	if err != nil {
		return nil, err
	}
	return ma.Allocate(req.Size, index)
}

func (ma *MemoryAllocator) BindImage(image ImageHandle, alloc *MemoryAllocation) error {
	if err := ma.device.BindImageMemory(image, alloc.Memory, 0); err != nil {
		return errors.Mark(errors.Wrap(err, "binding image memory"), core.ErrDeviceObjectCreationFailed)
	}
	return nil
}

func (ma *MemoryAllocator) BindBuffer(buffer BufferHandle, alloc *MemoryAllocation) error {
	if err := ma.device.BindBufferMemory(buffer, alloc.Memory, 0); err != nil {
		return errors.Mark(errors.Wrap(err, "binding buffer memory"), core.ErrDeviceObjectCreationFailed)
	}
	return nil
}

// Free releases the allocation. Safe to call with nil.
func (ma *MemoryAllocator) Free(alloc *MemoryAllocation) {
	if alloc == nil || alloc.Memory == 0 {
		return
	}
	ma.device.FreeMemory(alloc.Memory)
	alloc.Memory = 0
}
