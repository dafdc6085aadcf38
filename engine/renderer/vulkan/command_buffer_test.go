package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

func TestCommandBufferRecorderRecording(t *testing.T) {
	ctx := &VulkanContext{}
	rec := NewCommandBufferRecorder(ctx)
	require.False(t, rec.Recording())

	ctx.GraphicsCommandBuffers = []*VulkanCommandBuffer{
		{State: COMMAND_BUFFER_STATE_READY},
		{State: COMMAND_BUFFER_STATE_RECORDING},
	}
	require.False(t, rec.Recording())

	ctx.CurrentFrame = 1
	require.True(t, rec.Recording())

	ctx.GraphicsCommandBuffers[1].State = COMMAND_BUFFER_STATE_SUBMITTED
	require.False(t, rec.Recording())
}

func TestCreateWithDataOutsideFrameFails(t *testing.T) {
	dev := newFakeDevice()
	retirer := &sliceRetirer{}
	factory := NewTextureFactory(dev, NewCommandBufferRecorder(&VulkanContext{}), retirer)

	tex, err := factory.Create(TextureDescriptor{
		Name:   "early",
		Width:  4,
		Height: 4,
		Format: vk.FormatR8g8b8a8Unorm,
		Usage:  TextureUsageImage,
		Data:   rgbaPixels(4, 4),
	})
	require.ErrorIs(t, err, core.ErrNotRecording)
	require.Nil(t, tex)
	require.Zero(t, dev.live())
	require.Empty(t, retirer.retired)
}

func TestPushOutsideFrameKeepsPendingWrite(t *testing.T) {
	ctx := &VulkanContext{
		GraphicsCommandBuffers: []*VulkanCommandBuffer{{State: COMMAND_BUFFER_STATE_READY}},
	}
	dev := newFakeDevice()
	retirer := &sliceRetirer{}
	factory := NewTextureFactory(dev, NewCommandBufferRecorder(ctx), retirer)

	tex, err := factory.Create(TextureDescriptor{
		Name:      "late",
		Width:     4,
		Height:    4,
		Format:    vk.FormatR8g8b8a8Unorm,
		Usage:     TextureUsageImage,
		MipLevels: 3,
	})
	require.NoError(t, err)

	written := Rect{Start: Point{X: 1, Y: 1}, End: Point{X: 3, Y: 3}}
	require.NoError(t, tex.Write(written, make([]byte, 16)))

	require.ErrorIs(t, tex.Push(), core.ErrNotRecording)
	rect, pending := tex.Dirty().Rect()
	require.True(t, pending)
	require.Equal(t, written, rect)
	require.Equal(t, vk.ImageLayoutUndefined, tex.Layout())
	require.Empty(t, retirer.retired)
	require.Empty(t, dev.buffers)

	require.NoError(t, tex.Destroy())
	require.Zero(t, dev.live())
}
