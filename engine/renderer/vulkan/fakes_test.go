package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

var errFakeDevice = errors.New("fake device failure")

// fakeDevice is an in-memory Device. Objects are plain ids; memory is a byte
// slice per allocation so staged data can be inspected.
type fakeDevice struct {
	nextID  uint64
	types   []MemoryType
	formats map[vk.Format]vk.FormatFeatureFlags

	images   map[ImageHandle]ImageInfo
	views    map[ViewHandle]ImageViewInfo
	buffers  map[BufferHandle]uint64
	memories map[MemoryHandle][]byte
	bound    map[any]MemoryHandle
	mapped   map[MemoryHandle]bool
	names    map[any]string

	// freed buffer contents by buffer name, for inspecting staged bytes
	staged map[string][]byte

	failCreateImage    bool
	failAllocate       bool
	failBindImage      bool
	failCreateView     bool
	failCreateBuffer   bool
	failMap            bool
	destroyedImages    []ImageHandle
	destroyedViews     []ViewHandle
	destroyedBuffers   []BufferHandle
	freedMemories      []MemoryHandle
	imageTypeBits      uint32
	bufferTypeBits     uint32
	allocationRequests []uint32
}

const allFeatures = vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit |
	vk.FormatFeatureBlitSrcBit | vk.FormatFeatureBlitDstBit |
	vk.FormatFeatureColorAttachmentBit | vk.FormatFeatureDepthStencilAttachmentBit)

func newFakeDevice() *fakeDevice {
	d := &fakeDevice{
		types: []MemoryType{
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)},
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)},
		},
		formats:        make(map[vk.Format]vk.FormatFeatureFlags),
		images:         make(map[ImageHandle]ImageInfo),
		views:          make(map[ViewHandle]ImageViewInfo),
		buffers:        make(map[BufferHandle]uint64),
		memories:       make(map[MemoryHandle][]byte),
		bound:          make(map[any]MemoryHandle),
		mapped:         make(map[MemoryHandle]bool),
		names:          make(map[any]string),
		staged:         make(map[string][]byte),
		imageTypeBits:  0b11,
		bufferTypeBits: 0b11,
	}
	for f := range formatTable {
		d.formats[f] = allFeatures
	}
	return d
}

func (d *fakeDevice) id() uint64 {
	d.nextID++
	return d.nextID
}

// live counts every object not yet destroyed or freed.
func (d *fakeDevice) live() int {
	return len(d.images) + len(d.views) + len(d.buffers) + len(d.memories)
}

func (d *fakeDevice) MemoryTypes() []MemoryType { return d.types }

func (d *fakeDevice) FormatProperties(format vk.Format) vk.FormatProperties {
	return vk.FormatProperties{OptimalTilingFeatures: d.formats[format]}
}

func (d *fakeDevice) CreateImage(info ImageInfo) (ImageHandle, error) {
	if d.failCreateImage {
		return 0, errFakeDevice
	}
	h := ImageHandle(d.id())
	d.images[h] = info
	return h, nil
}

func (d *fakeDevice) ImageMemoryRequirements(image ImageHandle) MemoryRequirements {
	info := d.images[image]
	return MemoryRequirements{
		Size:      uint64(info.Width) * uint64(info.Height) * uint64(BytesPerPixel(info.Format)) * 2,
		Alignment: 256,
		TypeBits:  d.imageTypeBits,
	}
}

func (d *fakeDevice) DestroyImage(image ImageHandle) {
	if _, ok := d.images[image]; !ok {
		panic(fmt.Sprintf("destroying unknown image %d", image))
	}
	delete(d.images, image)
	d.destroyedImages = append(d.destroyedImages, image)
}

func (d *fakeDevice) CreateImageView(info ImageViewInfo) (ViewHandle, error) {
	if d.failCreateView {
		return 0, errFakeDevice
	}
	h := ViewHandle(d.id())
	d.views[h] = info
	return h, nil
}

func (d *fakeDevice) DestroyImageView(view ViewHandle) {
	if _, ok := d.views[view]; !ok {
		panic(fmt.Sprintf("destroying unknown view %d", view))
	}
	delete(d.views, view)
	d.destroyedViews = append(d.destroyedViews, view)
}

func (d *fakeDevice) CreateBuffer(size uint64, usage vk.BufferUsageFlags) (BufferHandle, error) {
	if d.failCreateBuffer {
		return 0, errFakeDevice
	}
	h := BufferHandle(d.id())
	d.buffers[h] = size
	return h, nil
}

func (d *fakeDevice) BufferMemoryRequirements(buffer BufferHandle) MemoryRequirements {
	return MemoryRequirements{Size: d.buffers[buffer], Alignment: 4, TypeBits: d.bufferTypeBits}
}

func (d *fakeDevice) DestroyBuffer(buffer BufferHandle) {
	if _, ok := d.buffers[buffer]; !ok {
		panic(fmt.Sprintf("destroying unknown buffer %d", buffer))
	}
	if mem, ok := d.bound[buffer]; ok {
		d.staged[d.names[buffer]] = append([]byte(nil), d.memories[mem]...)
	}
	delete(d.buffers, buffer)
	d.destroyedBuffers = append(d.destroyedBuffers, buffer)
}

func (d *fakeDevice) AllocateMemory(size uint64, typeIndex uint32) (MemoryHandle, error) {
	d.allocationRequests = append(d.allocationRequests, typeIndex)
	if d.failAllocate {
		return 0, errFakeDevice
	}
	h := MemoryHandle(d.id())
	d.memories[h] = make([]byte, size)
	return h, nil
}

func (d *fakeDevice) FreeMemory(memory MemoryHandle) {
	if _, ok := d.memories[memory]; !ok {
		panic(fmt.Sprintf("freeing unknown memory %d", memory))
	}
	delete(d.memories, memory)
	d.freedMemories = append(d.freedMemories, memory)
}

func (d *fakeDevice) BindImageMemory(image ImageHandle, memory MemoryHandle, offset uint64) error {
	if d.failBindImage {
		return errFakeDevice
	}
	d.bound[image] = memory
	return nil
}

func (d *fakeDevice) BindBufferMemory(buffer BufferHandle, memory MemoryHandle, offset uint64) error {
	d.bound[buffer] = memory
	return nil
}

func (d *fakeDevice) MapMemory(memory MemoryHandle, offset, size uint64) ([]byte, error) {
	if d.failMap {
		return nil, errFakeDevice
	}
	d.mapped[memory] = true
	return d.memories[memory][offset : offset+size], nil
}

func (d *fakeDevice) UnmapMemory(memory MemoryHandle) {
	delete(d.mapped, memory)
}

func (d *fakeDevice) SetObjectName(object any, name string) {
	d.names[object] = name
}

// stagedBytes returns the contents of a live staging buffer.
func (d *fakeDevice) stagedBytes(s *StagingAllocation) []byte {
	return d.memories[s.Memory.Memory]
}

type recordedCommand struct {
	kind     string
	srcStage vk.PipelineStageFlags
	dstStage vk.PipelineStageFlags
	barriers []ImageBarrier
	copy     BufferImageCopy
	blit     ImageBlit
	filter   vk.Filter
}

// recorder captures commands in order.
type recorder struct {
	commands []recordedCommand
	idle     bool
}

func (r *recorder) Recording() bool { return !r.idle }

func (r *recorder) PipelineBarrier(srcStage, dstStage vk.PipelineStageFlags, barriers ...ImageBarrier) {
	r.commands = append(r.commands, recordedCommand{kind: "barrier", srcStage: srcStage, dstStage: dstStage, barriers: barriers})
}

func (r *recorder) CopyBufferToImage(src BufferHandle, dst ImageHandle, dstLayout vk.ImageLayout, region BufferImageCopy) {
	r.commands = append(r.commands, recordedCommand{kind: "copy", copy: region})
}

func (r *recorder) BlitImage(src ImageHandle, srcLayout vk.ImageLayout, dst ImageHandle, dstLayout vk.ImageLayout, region ImageBlit, filter vk.Filter) {
	r.commands = append(r.commands, recordedCommand{kind: "blit", blit: region, filter: filter})
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, c := range r.commands {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) reset() { r.commands = nil }

// sliceRetirer keeps staging allocations until the test frees them.
type sliceRetirer struct {
	retired []*StagingAllocation
}

func (s *sliceRetirer) Retire(staging *StagingAllocation) {
	s.retired = append(s.retired, staging)
}

func (s *sliceRetirer) freeAll(device Device) {
	for _, st := range s.retired {
		st.Free(device)
	}
	s.retired = nil
}

// failingHandles refuses every allocation.
type failingHandles struct{}

func (failingHandles) Alloc(*Texture) (uint32, error) { return 0, errFakeDevice }
func (failingHandles) Dealloc(*Texture) error         { return errFakeDevice }

type testEnv struct {
	device  *fakeDevice
	rec     *recorder
	retirer *sliceRetirer
	factory *TextureFactory
}

func newTestEnv() *testEnv {
	env := &testEnv{
		device:  newFakeDevice(),
		rec:     &recorder{},
		retirer: &sliceRetirer{},
	}
	env.factory = NewTextureFactory(env.device, env.rec, env.retirer)
	return env
}

func rgbaPixels(width, height uint32) []byte {
	out := make([]byte, width*height*4)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}
