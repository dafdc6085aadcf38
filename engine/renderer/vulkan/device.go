package vulkan

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

// VulkanDevice is the goki/vulkan implementation of Device. Objects it creates
// are handed out as integer handles and resolved back when commands are
// recorded.
type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex uint32
	GraphicsQueue      vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format

	allocator   *vk.AllocationCallbacks
	locks       *VulkanLockPool
	memoryTypes []MemoryType

	nextID   atomic.Uint64
	images   map[ImageHandle]vk.Image
	views    map[ViewHandle]vk.ImageView
	buffers  map[BufferHandle]vk.Buffer
	memories map[MemoryHandle]vk.DeviceMemory

	// debug names by raw Vulkan handle, as the validation layers report them
	namesMu sync.RWMutex
	names   map[uint64]string
}

func newVulkanDevice(allocator *vk.AllocationCallbacks, locks *VulkanLockPool) *VulkanDevice {
	return &VulkanDevice{
		allocator: allocator,
		locks:     locks,
		images:    make(map[ImageHandle]vk.Image),
		views:     make(map[ViewHandle]vk.ImageView),
		buffers:   make(map[BufferHandle]vk.Buffer),
		memories:  make(map[MemoryHandle]vk.DeviceMemory),
		names:     make(map[uint64]string),
	}
}

func (vd *VulkanDevice) newID() uint64 {
	return vd.nextID.Add(1)
}

func (vd *VulkanDevice) MemoryTypes() []MemoryType {
	return vd.memoryTypes
}

func (vd *VulkanDevice) FormatProperties(format vk.Format) vk.FormatProperties {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(vd.PhysicalDevice, format, &props)
	props.Deref()
	return props
}

func (vd *VulkanDevice) CreateImage(info ImageInfo) (ImageHandle, error) {
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    info.Format,
		Extent: vk.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     info.MipLevels,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         info.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var handle ImageHandle
	err := vd.locks.SafeCall(ImageManagement, func() error {
		var image vk.Image
		res := vk.CreateImage(vd.LogicalDevice, &createInfo, vd.allocator, &image)
		if err := resultError(res, core.ErrDeviceObjectCreationFailed, "vkCreateImage %dx%d", info.Width, info.Height); err != nil {
			return err
		}
		handle = ImageHandle(vd.newID())
		vd.images[handle] = image
		return nil
	})
	return handle, err
}

func (vd *VulkanDevice) ImageMemoryRequirements(image ImageHandle) MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(vd.LogicalDevice, vd.image(image), &reqs)
	reqs.Deref()
	return MemoryRequirements{
		Size:      uint64(reqs.Size),
		Alignment: uint64(reqs.Alignment),
		TypeBits:  reqs.MemoryTypeBits,
	}
}

func (vd *VulkanDevice) DestroyImage(image ImageHandle) {
	_ = vd.locks.SafeCall(ImageManagement, func() error {
		img, ok := vd.images[image]
		if !ok {
			return nil
		}
		vk.DestroyImage(vd.LogicalDevice, img, vd.allocator)
		delete(vd.images, image)
		vd.forgetName(objectID(unsafe.Pointer(img)))
		return nil
	})
}

func (vd *VulkanDevice) CreateImageView(info ImageViewInfo) (ViewHandle, error) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vd.image(info.Image),
		ViewType: vk.ImageViewType2d,
		Format:   info.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     info.Aspect,
			BaseMipLevel:   0,
			LevelCount:     info.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var handle ViewHandle
	err := vd.locks.SafeCall(ImageManagement, func() error {
		var view vk.ImageView
		res := vk.CreateImageView(vd.LogicalDevice, &createInfo, vd.allocator, &view)
		if err := resultError(res, core.ErrDeviceObjectCreationFailed, "vkCreateImageView"); err != nil {
			return err
		}
		handle = ViewHandle(vd.newID())
		vd.views[handle] = view
		return nil
	})
	return handle, err
}

func (vd *VulkanDevice) DestroyImageView(view ViewHandle) {
	_ = vd.locks.SafeCall(ImageManagement, func() error {
		if v, ok := vd.views[view]; ok {
			vk.DestroyImageView(vd.LogicalDevice, v, vd.allocator)
			delete(vd.views, view)
			vd.forgetName(objectID(unsafe.Pointer(v)))
		}
		return nil
	})
}

func (vd *VulkanDevice) CreateBuffer(size uint64, usage vk.BufferUsageFlags) (BufferHandle, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var handle BufferHandle
	err := vd.locks.SafeCall(BufferManagement, func() error {
		var buffer vk.Buffer
		res := vk.CreateBuffer(vd.LogicalDevice, &createInfo, vd.allocator, &buffer)
		if err := resultError(res, core.ErrDeviceObjectCreationFailed, "vkCreateBuffer of %d bytes", size); err != nil {
			return err
		}
		handle = BufferHandle(vd.newID())
		vd.buffers[handle] = buffer
		return nil
	})
	return handle, err
}

func (vd *VulkanDevice) BufferMemoryRequirements(buffer BufferHandle) MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(vd.LogicalDevice, vd.buffer(buffer), &reqs)
	reqs.Deref()
	return MemoryRequirements{
		Size:      uint64(reqs.Size),
		Alignment: uint64(reqs.Alignment),
		TypeBits:  reqs.MemoryTypeBits,
	}
}

func (vd *VulkanDevice) DestroyBuffer(buffer BufferHandle) {
	_ = vd.locks.SafeCall(BufferManagement, func() error {
		if b, ok := vd.buffers[buffer]; ok {
			vk.DestroyBuffer(vd.LogicalDevice, b, vd.allocator)
			delete(vd.buffers, buffer)
			vd.forgetName(objectID(unsafe.Pointer(b)))
		}
		return nil
	})
}

func (vd *VulkanDevice) AllocateMemory(size uint64, typeIndex uint32) (MemoryHandle, error) {
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}

	var handle MemoryHandle
	err := vd.locks.SafeCall(MemoryManagement, func() error {
		var memory vk.DeviceMemory
		res := vk.AllocateMemory(vd.LogicalDevice, &allocateInfo, vd.allocator, &memory)
		if err := resultError(res, core.ErrOutOfDeviceMemory, "vkAllocateMemory of %d bytes", size); err != nil {
			return err
		}
		handle = MemoryHandle(vd.newID())
		vd.memories[handle] = memory
		return nil
	})
	return handle, err
}

func (vd *VulkanDevice) FreeMemory(memory MemoryHandle) {
	_ = vd.locks.SafeCall(MemoryManagement, func() error {
		if m, ok := vd.memories[memory]; ok {
			vk.FreeMemory(vd.LogicalDevice, m, vd.allocator)
			delete(vd.memories, memory)
		}
		return nil
	})
}

func (vd *VulkanDevice) BindImageMemory(image ImageHandle, memory MemoryHandle, offset uint64) error {
	res := vk.BindImageMemory(vd.LogicalDevice, vd.image(image), vd.memory(memory), vk.DeviceSize(offset))
	return resultError(res, core.ErrDeviceObjectCreationFailed, "vkBindImageMemory")
}

func (vd *VulkanDevice) BindBufferMemory(buffer BufferHandle, memory MemoryHandle, offset uint64) error {
	res := vk.BindBufferMemory(vd.LogicalDevice, vd.buffer(buffer), vd.memory(memory), vk.DeviceSize(offset))
	return resultError(res, core.ErrDeviceObjectCreationFailed, "vkBindBufferMemory")
}

func (vd *VulkanDevice) MapMemory(memory MemoryHandle, offset, size uint64) ([]byte, error) {
	var data unsafe.Pointer
	res := vk.MapMemory(vd.LogicalDevice, vd.memory(memory), vk.DeviceSize(offset), vk.DeviceSize(size), 0, &data)
	if err := resultError(res, core.ErrDeviceObjectCreationFailed, "vkMapMemory"); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(data), size), nil
}

func (vd *VulkanDevice) UnmapMemory(memory MemoryHandle) {
	vk.UnmapMemory(vd.LogicalDevice, vd.memory(memory))
}

// SetObjectName records a debug name for an image, view or buffer. Validation
// messages about the object carry the name.
func (vd *VulkanDevice) SetObjectName(object any, name string) {
	var id uint64
	switch h := object.(type) {
	case ImageHandle:
		id = objectID(unsafe.Pointer(vd.image(h)))
	case ViewHandle:
		id = objectID(unsafe.Pointer(vd.view(h)))
	case BufferHandle:
		id = objectID(unsafe.Pointer(vd.buffer(h)))
	}
	if id == 0 {
		return
	}
	vd.namesMu.Lock()
	vd.names[id] = name
	vd.namesMu.Unlock()
}

// DebugName returns the name of the object behind a raw Vulkan handle.
func (vd *VulkanDevice) DebugName(object uint64) string {
	vd.namesMu.RLock()
	defer vd.namesMu.RUnlock()
	return vd.names[object]
}

func (vd *VulkanDevice) forgetName(object uint64) {
	vd.namesMu.Lock()
	delete(vd.names, object)
	vd.namesMu.Unlock()
}

func objectID(p unsafe.Pointer) uint64 {
	return uint64(uintptr(p))
}

func (vd *VulkanDevice) image(h ImageHandle) vk.Image {
	var img vk.Image
	_ = vd.locks.SafeCall(ImageManagement, func() error {
		img = vd.images[h]
		return nil
	})
	return img
}

func (vd *VulkanDevice) view(h ViewHandle) vk.ImageView {
	var v vk.ImageView
	_ = vd.locks.SafeCall(ImageManagement, func() error {
		v = vd.views[h]
		return nil
	})
	return v
}

func (vd *VulkanDevice) buffer(h BufferHandle) vk.Buffer {
	var buf vk.Buffer
	_ = vd.locks.SafeCall(BufferManagement, func() error {
		buf = vd.buffers[h]
		return nil
	})
	return buf
}

func (vd *VulkanDevice) memory(h MemoryHandle) vk.DeviceMemory {
	var mem vk.DeviceMemory
	_ = vd.locks.SafeCall(MemoryManagement, func() error {
		mem = vd.memories[h]
		return nil
	})
	return mem
}

// liveObjects reports how many device objects are still registered.
func (vd *VulkanDevice) liveObjects() int {
	n := 0
	_ = vd.locks.SafeCall(ImageManagement, func() error {
		n += len(vd.images) + len(vd.views)
		return nil
	})
	_ = vd.locks.SafeCall(BufferManagement, func() error {
		n += len(vd.buffers)
		return nil
	})
	_ = vd.locks.SafeCall(MemoryManagement, func() error {
		n += len(vd.memories)
		return nil
	})
	return n
}

var _ Device = (*VulkanDevice)(nil)

func DeviceCreate(context *VulkanContext) error {
	context.Device = newVulkanDevice(context.Allocator, context.Locks)
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	var queuePriority float32 = 1.0
	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: context.Device.GraphicsQueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{queuePriority},
	}}

	extensionNames := []string{}
	if deviceHasExtension(context.Device.PhysicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	res := vk.CreateDevice(context.Device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logical)
	if err := resultError(res, core.ErrDeviceObjectCreationFailed, "vkCreateDevice"); err != nil {
		core.LogError(err.Error())
		return err
	}
	context.Device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(logical, context.Device.GraphicsQueueIndex, 0, &queue)
	context.Device.GraphicsQueue = queue
	context.Locks.SetQueueFamily(context.Device.GraphicsQueueIndex)
	core.LogInfo("Queues obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: context.Device.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	res = vk.CreateCommandPool(logical, &poolCreateInfo, context.Allocator, &pool)
	if err := resultError(res, core.ErrDeviceObjectCreationFailed, "vkCreateCommandPool"); err != nil {
		core.LogError(err.Error())
		return err
	}
	context.Device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	if format, err := NegotiateDepthFormat(context.Device); err == nil {
		context.Device.DepthFormat = format
	} else {
		core.LogWarn("device has no usable depth format: %s", err)
	}

	return nil
}

func DeviceDestroy(context *VulkanContext) {
	if context.Device == nil {
		return
	}
	dev := context.Device

	if n := dev.liveObjects(); n > 0 {
		core.LogWarn("destroying logical device with %d texture objects still alive", n)
	}

	dev.GraphicsQueue = nil

	if dev.GraphicsCommandPool != nil {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(dev.LogicalDevice, dev.GraphicsCommandPool, context.Allocator)
		dev.GraphicsCommandPool = nil
	}

	core.LogInfo("Destroying logical device...")
	if dev.LogicalDevice != nil {
		vk.DestroyDevice(dev.LogicalDevice, context.Allocator)
		dev.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	dev.PhysicalDevice = nil
}

// SelectPhysicalDevice picks the first device with a graphics queue, which
// is what blits and copies are recorded on.
func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if err := resultError(vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil), core.ErrUnknown, "enumerating physical devices"); err != nil {
		return err
	}
	if physicalDeviceCount == 0 {
		return errors.New("no devices which support Vulkan were found")
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := resultError(vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices), core.ErrUnknown, "enumerating physical devices"); err != nil {
		return err
	}

	for _, pd := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()

		graphicsIndex, ok := findGraphicsQueue(pd)
		name := vk.ToString(properties.DeviceName[:])
		if !ok {
			core.LogInfo("Device '%s' has no graphics queue, skipping.", name)
			continue
		}

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
		memory.Deref()

		core.LogInfo("Selected device: '%s'.", name)
		switch properties.DeviceType {
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		default:
			core.LogInfo("GPU type is Unknown.")
		}
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version(properties.ApiVersion).Major(),
			vk.Version(properties.ApiVersion).Minor(),
			vk.Version(properties.ApiVersion).Patch(),
		)

		types := make([]MemoryType, 0, memory.MemoryTypeCount)
		for i := uint32(0); i < memory.MemoryTypeCount; i++ {
			memory.MemoryTypes[i].Deref()
			types = append(types, MemoryType{
				PropertyFlags: memory.MemoryTypes[i].PropertyFlags,
				HeapIndex:     memory.MemoryTypes[i].HeapIndex,
			})
		}
		for j := uint32(0); j < memory.MemoryHeapCount; j++ {
			memory.MemoryHeaps[j].Deref()
			memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
			if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
				core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
			} else {
				core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
			}
		}

		context.Device.PhysicalDevice = pd
		context.Device.GraphicsQueueIndex = graphicsIndex
		context.Device.Properties = properties
		context.Device.Memory = memory
		context.Device.memoryTypes = types

		core.LogInfo("Physical device selected.")
		return nil
	}

	return errors.New("no physical devices were found which meet the requirements")
}

func findGraphicsQueue(device vk.PhysicalDevice) (uint32, bool) {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

func deviceHasExtension(device vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if vk.ToString(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}
