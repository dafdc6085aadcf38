package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Handles identify device objects created through a Device. They are opaque
// ids owned by the Device implementation; zero is never a valid handle.
type (
	ImageHandle  uint64
	ViewHandle   uint64
	BufferHandle uint64
	MemoryHandle uint64
)

type MemoryType struct {
	PropertyFlags vk.MemoryPropertyFlags
	HeapIndex     uint32
}

type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	// Bit i is set when memory type i can back the resource.
	TypeBits uint32
}

type ImageInfo struct {
	Width     uint32
	Height    uint32
	Format    vk.Format
	MipLevels uint32
	Usage     vk.ImageUsageFlags
}

type ImageViewInfo struct {
	Image     ImageHandle
	Format    vk.Format
	Aspect    vk.ImageAspectFlags
	MipLevels uint32
}

// Device is the slice of the logical device the texture core needs. The
// goki/vulkan backed implementation is VulkanDevice.
type Device interface {
	MemoryTypes() []MemoryType
	FormatProperties(format vk.Format) vk.FormatProperties

	CreateImage(info ImageInfo) (ImageHandle, error)
	ImageMemoryRequirements(image ImageHandle) MemoryRequirements
	DestroyImage(image ImageHandle)

	CreateImageView(info ImageViewInfo) (ViewHandle, error)
	DestroyImageView(view ViewHandle)

	CreateBuffer(size uint64, usage vk.BufferUsageFlags) (BufferHandle, error)
	BufferMemoryRequirements(buffer BufferHandle) MemoryRequirements
	DestroyBuffer(buffer BufferHandle)

	AllocateMemory(size uint64, typeIndex uint32) (MemoryHandle, error)
	FreeMemory(memory MemoryHandle)
	BindImageMemory(image ImageHandle, memory MemoryHandle, offset uint64) error
	BindBufferMemory(buffer BufferHandle, memory MemoryHandle, offset uint64) error
	MapMemory(memory MemoryHandle, offset, size uint64) ([]byte, error)
	UnmapMemory(memory MemoryHandle)

	// SetObjectName attaches a debug name to an image, view or buffer.
	SetObjectName(object any, name string)
}

type ImageBarrier struct {
	Image        ImageHandle
	OldLayout    vk.ImageLayout
	NewLayout    vk.ImageLayout
	SrcAccess    vk.AccessFlags
	DstAccess    vk.AccessFlags
	Aspect       vk.ImageAspectFlags
	BaseMipLevel uint32
	LevelCount   uint32
}

type BufferImageCopy struct {
	BufferOffset uint64
	Aspect       vk.ImageAspectFlags
	MipLevel     uint32
	X, Y         int32
	Width        uint32
	Height       uint32
}

type ImageBlit struct {
	Aspect    vk.ImageAspectFlags
	SrcLevel  uint32
	SrcWidth  int32
	SrcHeight int32
	DstLevel  uint32
	DstWidth  int32
	DstHeight int32
}

// CommandRecorder receives the transfer commands of a flush. Submission and
// ordering against other work belongs to the recorder's owner. Commands are
// only accepted while Recording reports true.
type CommandRecorder interface {
	Recording() bool
	PipelineBarrier(srcStage, dstStage vk.PipelineStageFlags, barriers ...ImageBarrier)
	CopyBufferToImage(src BufferHandle, dst ImageHandle, dstLayout vk.ImageLayout, region BufferImageCopy)
	BlitImage(src ImageHandle, srcLayout vk.ImageLayout, dst ImageHandle, dstLayout vk.ImageLayout, region ImageBlit, filter vk.Filter)
}

//go:generate mockgen -destination=mock_retirer_test.go -package=vulkan . Retirer

// Retirer takes ownership of staging allocations and frees them once the GPU
// can no longer be reading them.
type Retirer interface {
	Retire(staging *StagingAllocation)
}
