package vulkan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func stage(t *testing.T, dev *fakeDevice, name string) *StagingAllocation {
	t.Helper()
	s, err := newStagingAllocation(dev, NewMemoryAllocator(dev), name, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	return s
}

func TestFrameRetirementFreesAfterFullCycle(t *testing.T) {
	dev := newFakeDevice()
	fr := NewFrameRetirement(dev, 2)

	require.Equal(t, 0, fr.BeginFrame(0))
	fr.Retire(stage(t, dev, "a"))
	fr.Retire(stage(t, dev, "b"))

	// Frame 1 never retired anything.
	require.Equal(t, 0, fr.BeginFrame(1))
	require.Equal(t, 2, fr.Pending())
	fr.Retire(stage(t, dev, "c"))

	// Back on frame 0 after its fence: a and b are done.
	require.Equal(t, 2, fr.BeginFrame(0))
	require.Equal(t, 1, fr.Pending())
	require.Equal(t, 0, fr.Current())
	require.Contains(t, dev.staged, "a staging")
	require.Contains(t, dev.staged, "b staging")
	require.NotContains(t, dev.staged, "c staging")

	require.Equal(t, 1, fr.ReleaseAll())
	require.Equal(t, 0, fr.Pending())
	require.Equal(t, 0, dev.live())
}

func TestFrameRetirementSingleSlot(t *testing.T) {
	dev := newFakeDevice()
	fr := NewFrameRetirement(dev, 0)

	fr.Retire(stage(t, dev, "a"))
	require.Equal(t, 1, fr.BeginFrame(5))
	require.Equal(t, 0, fr.Current())
	require.Equal(t, 0, dev.live())
}

func TestStagingFreeIsIdempotent(t *testing.T) {
	dev := newFakeDevice()
	s := stage(t, dev, "x")
	require.Equal(t, []byte{1, 2, 3, 4}, dev.stagedBytes(s))
	require.Equal(t, "x staging", dev.names[s.Buffer])

	s.Free(dev)
	s.Free(dev)
	require.Equal(t, 0, dev.live())
	require.Len(t, dev.destroyedBuffers, 1)
}

func TestFenceSlotsSkipFailedSubmit(t *testing.T) {
	slots := newFenceSlots(2)
	require.False(t, slots.pending(0))

	ok := func() error { return nil }
	require.NoError(t, slots.submit(0, ok, ok))
	require.True(t, slots.pending(0))
	require.False(t, slots.pending(1))

	// The fence was reset but never handed to the queue.
	require.ErrorIs(t, slots.submit(0, ok, func() error { return errFakeDevice }), errFakeDevice)
	require.False(t, slots.pending(0))

	require.NoError(t, slots.submit(0, ok, ok))
	require.True(t, slots.pending(0))

	// A failed reset leaves the previous submission, and its fence, in place.
	require.ErrorIs(t, slots.submit(0, func() error { return errFakeDevice }, ok), errFakeDevice)
	require.True(t, slots.pending(0))
}
