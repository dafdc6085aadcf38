package vulkan

import (
	"sync"
)

// FrameRetirement keeps staging allocations alive until the frame that
// recorded their copies is known to be finished. There is one slot per frame
// in flight.
type FrameRetirement struct {
	mu      sync.Mutex
	device  Device
	frames  [][]*StagingAllocation
	current int
}

func NewFrameRetirement(device Device, framesInFlight uint32) *FrameRetirement {
	if framesInFlight == 0 {
		framesInFlight = 1
	}
	return &FrameRetirement{
		device: device,
		frames: make([][]*StagingAllocation, framesInFlight),
	}
}

// Retire hands s to the current frame.
func (fr *FrameRetirement) Retire(s *StagingAllocation) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.frames[fr.current] = append(fr.frames[fr.current], s)
}

// BeginFrame makes frame the current slot and frees what was retired into it
// the last time it was current. The caller must have waited on that frame's
// fence. It returns the number of allocations freed.
func (fr *FrameRetirement) BeginFrame(frame uint32) int {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	fr.current = int(frame) % len(fr.frames)
	return fr.freeSlot(fr.current)
}

// ReleaseAll frees every retired allocation. The device must be idle.
func (fr *FrameRetirement) ReleaseAll() int {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	n := 0
	for i := range fr.frames {
		n += fr.freeSlot(i)
	}
	return n
}

// Pending returns how many allocations wait to be freed.
func (fr *FrameRetirement) Pending() int {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	n := 0
	for _, f := range fr.frames {
		n += len(f)
	}
	return n
}

func (fr *FrameRetirement) Current() int {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.current
}

func (fr *FrameRetirement) freeSlot(i int) int {
	n := len(fr.frames[i])
	for _, s := range fr.frames[i] {
		s.Free(fr.device)
	}
	fr.frames[i] = nil
	return n
}

// fenceSlots tracks which frame slots have a submission their fence will
// signal. A slot whose submit failed holds an unsignaled fence and must not
// be waited on.
type fenceSlots struct {
	submitted []bool
}

func newFenceSlots(framesInFlight uint32) *fenceSlots {
	return &fenceSlots{submitted: make([]bool, framesInFlight)}
}

func (s *fenceSlots) pending(slot uint32) bool {
	return s.submitted[slot]
}

// submit resets the fence of slot and submits the frame. The slot is pending
// only when both succeed.
func (s *fenceSlots) submit(slot uint32, reset, submit func() error) error {
	if err := reset(); err != nil {
		return err
	}
	s.submitted[slot] = false
	if err := submit(); err != nil {
		return err
	}
	s.submitted[slot] = true
	return nil
}
