package vulkan

import (
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"
)

func TestDebugNamesFollowRawHandles(t *testing.T) {
	dev := newVulkanDevice(nil, NewVulkanLockPool())

	var imageObj, bufferObj byte
	img := vk.Image(unsafe.Pointer(&imageObj))
	buf := vk.Buffer(unsafe.Pointer(&bufferObj))
	dev.images[ImageHandle(1)] = img
	dev.buffers[BufferHandle(2)] = buf

	dev.SetObjectName(ImageHandle(1), "albedo")
	dev.SetObjectName(BufferHandle(2), "albedo staging")
	// Unknown handles have nothing to name.
	dev.SetObjectName(ViewHandle(3), "ghost")

	imageID := objectID(unsafe.Pointer(img))
	bufferID := objectID(unsafe.Pointer(buf))
	require.Equal(t, "albedo", dev.DebugName(imageID))
	require.Equal(t, "albedo staging", dev.DebugName(bufferID))
	require.Len(t, dev.names, 2)

	require.Equal(t, "layout mismatch (object 'albedo')", describeObject(dev, imageID, "layout mismatch"))
	require.Equal(t, "layout mismatch", describeObject(dev, 0, "layout mismatch"))
	require.Equal(t, "layout mismatch", describeObject(nil, imageID, "layout mismatch"))

	dev.forgetName(imageID)
	require.Empty(t, dev.DebugName(imageID))
	require.Equal(t, "layout mismatch", describeObject(dev, imageID, "layout mismatch"))
}
