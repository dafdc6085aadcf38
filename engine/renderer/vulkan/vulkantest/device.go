// Package vulkantest provides an in-memory vulkan.Device and a counting
// vulkan.CommandRecorder for testing code built on the texture core without
// a GPU.
package vulkantest

import (
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-texel/engine/renderer/vulkan"
)

// Device hands out ids for every object and keeps memory as byte slices.
// Every known format supports every feature.
type Device struct {
	mu      sync.Mutex
	nextID  uint64
	objects map[uint64]string
	memory  map[vulkan.MemoryHandle][]byte
	sizes   map[uint64]uint64
}

func NewDevice() *Device {
	return &Device{
		objects: make(map[uint64]string),
		memory:  make(map[vulkan.MemoryHandle][]byte),
		sizes:   make(map[uint64]uint64),
	}
}

func (d *Device) add(kind string, size uint64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.objects[d.nextID] = kind
	d.sizes[d.nextID] = size
	return d.nextID
}

func (d *Device) remove(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.objects, id)
	delete(d.sizes, id)
}

// Live returns the number of objects created and not yet destroyed.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.objects)
}

func (d *Device) MemoryTypes() []vulkan.MemoryType {
	return []vulkan.MemoryType{
		{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)},
		{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)},
	}
}

func (d *Device) FormatProperties(format vk.Format) vk.FormatProperties {
	if vulkan.BytesPerPixel(format) == 0 {
		return vk.FormatProperties{}
	}
	return vk.FormatProperties{OptimalTilingFeatures: vk.FormatFeatureFlags(
		vk.FormatFeatureSampledImageBit | vk.FormatFeatureBlitSrcBit | vk.FormatFeatureBlitDstBit |
			vk.FormatFeatureColorAttachmentBit | vk.FormatFeatureDepthStencilAttachmentBit)}
}

func (d *Device) CreateImage(info vulkan.ImageInfo) (vulkan.ImageHandle, error) {
	size := uint64(info.Width) * uint64(info.Height) * uint64(vulkan.BytesPerPixel(info.Format)) * 2
	return vulkan.ImageHandle(d.add("image", size)), nil
}

func (d *Device) ImageMemoryRequirements(image vulkan.ImageHandle) vulkan.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	return vulkan.MemoryRequirements{Size: d.sizes[uint64(image)], Alignment: 256, TypeBits: 0b11}
}

func (d *Device) DestroyImage(image vulkan.ImageHandle) { d.remove(uint64(image)) }

func (d *Device) CreateImageView(info vulkan.ImageViewInfo) (vulkan.ViewHandle, error) {
	return vulkan.ViewHandle(d.add("view", 0)), nil
}

func (d *Device) DestroyImageView(view vulkan.ViewHandle) { d.remove(uint64(view)) }

func (d *Device) CreateBuffer(size uint64, usage vk.BufferUsageFlags) (vulkan.BufferHandle, error) {
	return vulkan.BufferHandle(d.add("buffer", size)), nil
}

func (d *Device) BufferMemoryRequirements(buffer vulkan.BufferHandle) vulkan.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	return vulkan.MemoryRequirements{Size: d.sizes[uint64(buffer)], Alignment: 4, TypeBits: 0b11}
}

func (d *Device) DestroyBuffer(buffer vulkan.BufferHandle) { d.remove(uint64(buffer)) }

func (d *Device) AllocateMemory(size uint64, typeIndex uint32) (vulkan.MemoryHandle, error) {
	h := vulkan.MemoryHandle(d.add("memory", size))
	d.mu.Lock()
	d.memory[h] = make([]byte, size)
	d.mu.Unlock()
	return h, nil
}

func (d *Device) FreeMemory(memory vulkan.MemoryHandle) {
	d.mu.Lock()
	delete(d.memory, memory)
	d.mu.Unlock()
	d.remove(uint64(memory))
}

func (d *Device) BindImageMemory(vulkan.ImageHandle, vulkan.MemoryHandle, uint64) error   { return nil }
func (d *Device) BindBufferMemory(vulkan.BufferHandle, vulkan.MemoryHandle, uint64) error { return nil }

func (d *Device) MapMemory(memory vulkan.MemoryHandle, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memory[memory][offset : offset+size], nil
}

func (d *Device) UnmapMemory(vulkan.MemoryHandle) {}

func (d *Device) SetObjectName(any, string) {}

// Recorder counts the commands it receives.
type Recorder struct {
	Barriers int
	Copies   int
	Blits    int
	// Copied holds the region of every CopyBufferToImage, in order.
	Copied []vulkan.BufferImageCopy
	// Idle makes the recorder refuse commands, as outside a frame.
	Idle bool
}

func (r *Recorder) Recording() bool { return !r.Idle }

func (r *Recorder) PipelineBarrier(_, _ vk.PipelineStageFlags, _ ...vulkan.ImageBarrier) {
	r.Barriers++
}

func (r *Recorder) CopyBufferToImage(_ vulkan.BufferHandle, _ vulkan.ImageHandle, _ vk.ImageLayout, region vulkan.BufferImageCopy) {
	r.Copies++
	r.Copied = append(r.Copied, region)
}

func (r *Recorder) BlitImage(vulkan.ImageHandle, vk.ImageLayout, vulkan.ImageHandle, vk.ImageLayout, vulkan.ImageBlit, vk.Filter) {
	r.Blits++
}

// NewFactory returns a texture factory over a fresh Device and Recorder. The
// staging buffers of every flush are retired into a single frame slot.
func NewFactory() (*vulkan.TextureFactory, *Device, *Recorder, *vulkan.FrameRetirement) {
	dev := NewDevice()
	rec := &Recorder{}
	retirement := vulkan.NewFrameRetirement(dev, 1)
	return vulkan.NewTextureFactory(dev, rec, retirement), dev, rec, retirement
}
