package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

// StagingAllocation is a host-visible transfer source holding the bytes of
// one flush. It must stay alive until the GPU has executed the copy.
type StagingAllocation struct {
	Name   string
	Buffer BufferHandle
	Memory *MemoryAllocation
	Size   uint64
}

// Free destroys the buffer and its memory. Safe to call more than once.
func (s *StagingAllocation) Free(device Device) {
	if s.Buffer != 0 {
		device.DestroyBuffer(s.Buffer)
		s.Buffer = 0
	}
	if s.Memory != nil && s.Memory.Memory != 0 {
		device.FreeMemory(s.Memory.Memory)
		s.Memory.Memory = 0
	}
}

const stagingMemoryFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

// newStagingAllocation creates a buffer sized to data, backs it with host
// visible memory and copies data into it.
func newStagingAllocation(device Device, memory *MemoryAllocator, name string, data []byte) (_ *StagingAllocation, err error) {
	size := uint64(len(data))
	s := &StagingAllocation{Name: name + " staging", Size: size}

	defer func() {
		if err != nil {
			s.Free(device)
		}
	}()

	s.Buffer, err = device.CreateBuffer(size, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "creating %s buffer", s.Name), core.ErrDeviceObjectCreationFailed)
	}
	device.SetObjectName(s.Buffer, s.Name)

	s.Memory, err = memory.AllocateFor(device.BufferMemoryRequirements(s.Buffer), stagingMemoryFlags)
	if err != nil {
		return nil, err
	}
	if err = memory.BindBuffer(s.Buffer, s.Memory); err != nil {
		return nil, err
	}

	mapped, err := device.MapMemory(s.Memory.Memory, 0, size)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "mapping %s", s.Name), core.ErrDeviceObjectCreationFailed)
	}
	copy(mapped, data)
	device.UnmapMemory(s.Memory.Memory)

	return s, nil
}
