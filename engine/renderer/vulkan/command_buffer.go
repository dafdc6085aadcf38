package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	handles := make([]vk.CommandBuffer, 1)
	res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles)
	if err := resultError(res, core.ErrDeviceObjectCreationFailed, "allocating command buffer"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanCommandBuffer{
		Handle: handles[0],
		State:  COMMAND_BUFFER_STATE_READY,
	}, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.Handle != nil {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	}
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}

	if err := resultError(vk.BeginCommandBuffer(v.Handle, beginInfo), core.ErrUnknown, "beginning command buffer"); err != nil {
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := resultError(vk.EndCommandBuffer(v.Handle), core.ErrUnknown, "ending command buffer"); err != nil {
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() error {
	if err := resultError(vk.ResetCommandBuffer(v.Handle, 0), core.ErrUnknown, "resetting command buffer"); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

// Submit ends recording and submits the buffer on queue, signaling fence.
func (v *VulkanCommandBuffer) Submit(context *VulkanContext, queueFamily uint32, queue vk.Queue, fence *VulkanFence) error {
	if err := v.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}

	var handle vk.Fence
	if fence != nil {
		handle = fence.Handle
	}

	err := context.Locks.SafeQueueCall(queueFamily, func() error {
		return resultError(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, handle), core.ErrUnknown, "submitting command buffer")
	})
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	v.UpdateSubmitted()
	return nil
}

// CommandBufferRecorder records the texture core's transfer commands into the
// command buffer of the current frame, translating handles through the device.
type CommandBufferRecorder struct {
	context *VulkanContext
}

func NewCommandBufferRecorder(context *VulkanContext) *CommandBufferRecorder {
	return &CommandBufferRecorder{context: context}
}

// Recording reports whether the current frame's command buffer is between
// Begin and End.
func (r *CommandBufferRecorder) Recording() bool {
	cb := r.context.CurrentCommandBuffer()
	return cb != nil && cb.State == COMMAND_BUFFER_STATE_RECORDING
}

func (r *CommandBufferRecorder) target() (vk.CommandBuffer, bool) {
	if !r.Recording() {
		core.LogError("transfer command dropped: frame %d is not recording", r.context.CurrentFrame)
		return nil, false
	}
	return r.context.CurrentCommandBuffer().Handle, true
}

func (r *CommandBufferRecorder) PipelineBarrier(srcStage, dstStage vk.PipelineStageFlags, barriers ...ImageBarrier) {
	cb, ok := r.target()
	if !ok {
		return
	}
	dev := r.context.Device
	vkBarriers := make([]vk.ImageMemoryBarrier, 0, len(barriers))
	for _, b := range barriers {
		vkBarriers = append(vkBarriers, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       b.SrcAccess,
			DstAccessMask:       b.DstAccess,
			OldLayout:           b.OldLayout,
			NewLayout:           b.NewLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               dev.image(b.Image),
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     b.Aspect,
				BaseMipLevel:   b.BaseMipLevel,
				LevelCount:     b.LevelCount,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
	}
	vk.CmdPipelineBarrier(cb, srcStage, dstStage, 0, 0, nil, 0, nil, uint32(len(vkBarriers)), vkBarriers)
}

func (r *CommandBufferRecorder) CopyBufferToImage(src BufferHandle, dst ImageHandle, dstLayout vk.ImageLayout, region BufferImageCopy) {
	cb, ok := r.target()
	if !ok {
		return
	}
	dev := r.context.Device
	copyRegion := vk.BufferImageCopy{
		BufferOffset: vk.DeviceSize(region.BufferOffset),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: region.Aspect,
			MipLevel:   region.MipLevel,
			LayerCount: 1,
		},
		ImageOffset: vk.Offset3D{X: region.X, Y: region.Y, Z: 0},
		ImageExtent: vk.Extent3D{Width: region.Width, Height: region.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb, dev.buffer(src), dev.image(dst), dstLayout, 1, []vk.BufferImageCopy{copyRegion})
}

func (r *CommandBufferRecorder) BlitImage(src ImageHandle, srcLayout vk.ImageLayout, dst ImageHandle, dstLayout vk.ImageLayout, region ImageBlit, filter vk.Filter) {
	cb, ok := r.target()
	if !ok {
		return
	}
	dev := r.context.Device
	blit := vk.ImageBlit{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask: region.Aspect,
			MipLevel:   region.SrcLevel,
			LayerCount: 1,
		},
		SrcOffsets: [2]vk.Offset3D{{}, {X: region.SrcWidth, Y: region.SrcHeight, Z: 1}},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask: region.Aspect,
			MipLevel:   region.DstLevel,
			LayerCount: 1,
		},
		DstOffsets: [2]vk.Offset3D{{}, {X: region.DstWidth, Y: region.DstHeight, Z: 1}},
	}
	vk.CmdBlitImage(cb, dev.image(src), srcLayout, dev.image(dst), dstLayout, 1, []vk.ImageBlit{blit}, filter)
}

var _ CommandRecorder = (*CommandBufferRecorder)(nil)
