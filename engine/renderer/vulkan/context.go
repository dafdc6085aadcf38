package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice
	Locks  *VulkanLockPool

	// One staging command buffer and fence per frame in flight.
	GraphicsCommandBuffers []*VulkanCommandBuffer
	InFlightFenceCount     uint32
	InFlightFences         []*VulkanFence

	CurrentFrame uint32
}

// CurrentCommandBuffer returns the command buffer of the frame being recorded.
func (vc *VulkanContext) CurrentCommandBuffer() *VulkanCommandBuffer {
	if int(vc.CurrentFrame) >= len(vc.GraphicsCommandBuffers) {
		return nil
	}
	return vc.GraphicsCommandBuffers[vc.CurrentFrame]
}
