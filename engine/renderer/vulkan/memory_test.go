package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

func TestSelectMemoryTypeFirstFit(t *testing.T) {
	dev := newFakeDevice()
	hostFlags := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	dev.types = []MemoryType{
		{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)},
		{PropertyFlags: hostFlags},
		{PropertyFlags: hostFlags | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit)},
	}
	ma := NewMemoryAllocator(dev)

	idx, err := ma.SelectMemoryType(0b111, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	require.NoError(t, err)
	require.Equal(t, uint32(1), idx)

	// Type 1 is masked out, so the superset at index 2 is chosen.
	idx, err = ma.SelectMemoryType(0b101, hostFlags)
	require.NoError(t, err)
	require.Equal(t, uint32(2), idx)

	idx, err = ma.SelectMemoryType(0b111, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx)
}

func TestSelectMemoryTypeNoMatch(t *testing.T) {
	dev := newFakeDevice()
	ma := NewMemoryAllocator(dev)

	_, err := ma.SelectMemoryType(0b01, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	require.ErrorIs(t, err, core.ErrNoSuitableMemoryType)

	_, err = ma.SelectMemoryType(0, 0)
	require.ErrorIs(t, err, core.ErrNoSuitableMemoryType)
}

func TestAllocateMarksDeviceFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.failAllocate = true
	ma := NewMemoryAllocator(dev)

	_, err := ma.Allocate(1024, 0)
	require.ErrorIs(t, err, core.ErrOutOfDeviceMemory)
	require.True(t, errors.Is(err, errFakeDevice))
}

func TestAllocateForAndFree(t *testing.T) {
	dev := newFakeDevice()
	ma := NewMemoryAllocator(dev)

	alloc, err := ma.AllocateFor(MemoryRequirements{Size: 64, TypeBits: 0b10}, stagingMemoryFlags)
	require.NoError(t, err)
	require.Equal(t, uint64(64), alloc.Size)
	require.Equal(t, uint32(1), alloc.TypeIndex)
	require.Equal(t, 1, dev.live())

	ma.Free(alloc)
	ma.Free(alloc)
	ma.Free(nil)
	require.Equal(t, 0, dev.live())
	require.Len(t, dev.freedMemories, 1)
}

func TestBindImageMarksFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.failBindImage = true
	ma := NewMemoryAllocator(dev)

	alloc, err := ma.Allocate(16, 0)
	require.NoError(t, err)
	require.ErrorIs(t, ma.BindImage(ImageHandle(1), alloc), core.ErrDeviceObjectCreationFailed)
}
