package vulkan

import (
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

// Loader hands out the Vulkan loader entry point, e.g. the platform window
// layer.
type Loader interface {
	InstanceProcAddress() unsafe.Pointer
}

// VulkanRenderer owns the instance, the device and the per-frame staging
// command buffers that texture uploads are recorded into. It renders nothing
// and needs no surface.
type VulkanRenderer struct {
	loader      Loader
	FrameNumber uint64
	context     *VulkanContext

	framesInFlight uint32
	debug          bool

	retirement *FrameRetirement
	factory    *TextureFactory
	slots      *fenceSlots
	recording  bool

	// read by the validation layer callback
	debugNames atomic.Pointer[VulkanDevice]
}

func New(loader Loader, framesInFlight uint32, debug bool) *VulkanRenderer {
	if framesInFlight == 0 {
		framesInFlight = 1
	}
	return &VulkanRenderer{
		loader: loader,
		slots:  newFenceSlots(framesInFlight),
		context: &VulkanContext{
			Allocator: nil,
			Locks:     NewVulkanLockPool(),
		},
		framesInFlight: framesInFlight,
		debug:          debug,
	}
}

func (vr *VulkanRenderer) Initialize(appName string) error {
	procAddr := vr.loader.InstanceProcAddress()
	if procAddr == nil {
		return errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return errors.Wrap(err, "initializing vulkan loader")
	}

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	if vr.debug {
		if err := vr.createDebugCallback(); err != nil {
			return err
		}
	}

	if err := DeviceCreate(vr.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}
	vr.debugNames.Store(vr.context.Device)

	if err := vr.createFrameResources(); err != nil {
		return err
	}

	vr.retirement = NewFrameRetirement(vr.context.Device, vr.framesInFlight)
	vr.factory = NewTextureFactory(vr.context.Device, NewCommandBufferRecorder(vr.context), vr.retirement)

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Texel"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	requiredLayers := []string{}
	if vr.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		requiredLayers = append(requiredLayers, "VK_LAYER_KHRONOS_validation")
		if err := checkValidationLayers(requiredLayers); err != nil {
			return err
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	var instance vk.Instance
	if err := resultError(vk.CreateInstance(&createInfo, vr.context.Allocator, &instance), core.ErrDeviceObjectCreationFailed, "creating the Vulkan instance"); err != nil {
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(instance); err != nil {
		core.LogError(err.Error())
		return errors.Wrap(err, "initializing instance functions")
	}
	vr.context.Instance = instance

	core.LogInfo("Vulkan Instance created.")
	return nil
}

func checkValidationLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")

	var count uint32
	if err := resultError(vk.EnumerateInstanceLayerProperties(&count, nil), core.ErrUnknown, "enumerating layers"); err != nil {
		return err
	}
	available := make([]vk.LayerProperties, count)
	if err := resultError(vk.EnumerateInstanceLayerProperties(&count, available), core.ErrUnknown, "enumerating layers"); err != nil {
		return err
	}

	for _, name := range required {
		found := false
		for j := range available {
			available[j].Deref()
			if vk.ToString(available[j].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			return errors.Newf("required validation layer is missing: %s", name)
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func (vr *VulkanRenderer) createDebugCallback() error {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: vr.debugReport,
	}

	var dbg vk.DebugReportCallback
	if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
		core.LogError("vk.CreateDebugReportCallback failed with %s", err)
		return errors.Wrap(err, "creating debug report callback")
	}
	vr.context.debugMessenger = dbg
	core.LogDebug("Vulkan debugger created.")
	return nil
}

func (vr *VulkanRenderer) createFrameResources() error {
	ctx := vr.context
	ctx.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, vr.framesInFlight)
	ctx.InFlightFences = make([]*VulkanFence, vr.framesInFlight)
	ctx.InFlightFenceCount = vr.framesInFlight

	for i := uint32(0); i < vr.framesInFlight; i++ {
		cb, err := NewVulkanCommandBuffer(ctx, ctx.Device.GraphicsCommandPool)
		if err != nil {
			return err
		}
		ctx.GraphicsCommandBuffers[i] = cb

		// Signaled, so the first wait on every frame returns immediately.
		f, err := NewFence(ctx, true)
		if err != nil {
			return err
		}
		ctx.InFlightFences[i] = f
	}
	return nil
}

// Textures returns the factory textures are created through.
func (vr *VulkanRenderer) Textures() *TextureFactory {
	return vr.factory
}

func (vr *VulkanRenderer) Device() *VulkanDevice {
	return vr.context.Device
}

// BeginFrame waits until the GPU is done with the current frame slot, frees
// the staging buffers it retired and starts recording its command buffer.
func (vr *VulkanRenderer) BeginFrame() error {
	ctx := vr.context
	fence := ctx.InFlightFences[ctx.CurrentFrame]
	if vr.slots.pending(ctx.CurrentFrame) && !fence.Wait(ctx, math.MaxUint64) {
		return errors.Newf("waiting on frame %d fence", ctx.CurrentFrame)
	}
	if freed := vr.retirement.BeginFrame(ctx.CurrentFrame); freed > 0 {
		core.LogDebug("frame %d: freed %d staging buffers", ctx.CurrentFrame, freed)
	}

	cb := ctx.GraphicsCommandBuffers[ctx.CurrentFrame]
	if err := cb.Reset(); err != nil {
		return err
	}
	if err := cb.Begin(true); err != nil {
		return err
	}
	vr.recording = true
	return nil
}

// EndFrame submits the recorded transfers and moves to the next frame slot.
func (vr *VulkanRenderer) EndFrame() error {
	ctx := vr.context
	if !vr.recording {
		return errors.New("EndFrame called without BeginFrame")
	}
	vr.recording = false

	fence := ctx.InFlightFences[ctx.CurrentFrame]
	cb := ctx.GraphicsCommandBuffers[ctx.CurrentFrame]
	err := vr.slots.submit(ctx.CurrentFrame,
		func() error { return fence.Reset(ctx) },
		func() error {
			return cb.Submit(ctx, ctx.Device.GraphicsQueueIndex, ctx.Device.GraphicsQueue, fence)
		},
	)
	if err != nil {
		return err
	}

	ctx.CurrentFrame = (ctx.CurrentFrame + 1) % vr.framesInFlight
	vr.FrameNumber++
	return nil
}

// WaitIdle blocks until the device has finished all submitted work.
func (vr *VulkanRenderer) WaitIdle() error {
	if vr.context.Device == nil || vr.context.Device.LogicalDevice == nil {
		return nil
	}
	return resultError(vk.DeviceWaitIdle(vr.context.Device.LogicalDevice), core.ErrUnknown, "waiting for device idle")
}

// Shutdown waits for the device to go idle and destroys everything the
// renderer created. Textures must have been destroyed before.
func (vr *VulkanRenderer) Shutdown() error {
	ctx := vr.context
	if ctx.Device == nil || ctx.Device.LogicalDevice == nil {
		return nil
	}
	vk.DeviceWaitIdle(ctx.Device.LogicalDevice)

	// Destroy in the opposite order of creation.
	if vr.retirement != nil {
		if n := vr.retirement.ReleaseAll(); n > 0 {
			core.LogDebug("freed %d staging buffers", n)
		}
	}

	for i := range ctx.InFlightFences {
		if ctx.InFlightFences[i] != nil {
			ctx.InFlightFences[i].Destroy(ctx)
		}
	}
	ctx.InFlightFences = nil

	for i := range ctx.GraphicsCommandBuffers {
		if ctx.GraphicsCommandBuffers[i] != nil {
			ctx.GraphicsCommandBuffers[i].Free(ctx, ctx.Device.GraphicsCommandPool)
		}
	}
	ctx.GraphicsCommandBuffers = nil

	vr.debugNames.Store(nil)
	DeviceDestroy(ctx)

	if ctx.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugMessenger, ctx.Allocator)
		ctx.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogInfo("Destroying Vulkan instance...")
	vk.DestroyInstance(ctx.Instance, ctx.Allocator)
	ctx.Instance = nil
	return nil
}

func (vr *VulkanRenderer) debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	pMessage = describeObject(vr.debugNames.Load(), object, pMessage)
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

// describeObject appends the debug name of object, when it has one, to msg.
func describeObject(dev *VulkanDevice, object uint64, msg string) string {
	if dev == nil || object == 0 {
		return msg
	}
	if name := dev.DebugName(object); name != "" {
		return fmt.Sprintf("%s (object '%s')", msg, name)
	}
	return msg
}
