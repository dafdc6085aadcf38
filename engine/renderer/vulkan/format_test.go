package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

func TestFormatTable(t *testing.T) {
	require.Equal(t, uint32(4), BytesPerPixel(vk.FormatR8g8b8a8Unorm))
	require.Equal(t, uint32(16), BytesPerPixel(vk.FormatR32g32b32a32Sfloat))
	require.Equal(t, uint32(0), BytesPerPixel(vk.FormatR8g8b8Unorm))

	require.True(t, IsDepthFormat(vk.FormatD16Unorm))
	require.False(t, HasStencil(vk.FormatD32Sfloat))
	require.True(t, HasStencil(vk.FormatD24UnormS8Uint))
	require.True(t, HasStencil(vk.FormatD32SfloatS8Uint))
	require.False(t, IsDepthFormat(vk.FormatB8g8r8a8Srgb))

	require.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), aspectMask(vk.FormatD24UnormS8Uint))
	require.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), aspectMask(vk.FormatD16Unorm))
	require.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), aspectMask(vk.FormatR8Unorm))
}

func TestNegotiateDepthFormatPriority(t *testing.T) {
	depthBit := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)

	for i, want := range depthPriority {
		dev := newFakeDevice()
		// Only formats from position i on are usable.
		for j, f := range depthPriority {
			if j < i {
				dev.formats[f] = 0
			} else {
				dev.formats[f] = depthBit
			}
		}
		got, err := NegotiateDepthFormat(dev)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	dev := newFakeDevice()
	for _, f := range depthPriority {
		dev.formats[f] = vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit)
	}
	_, err := NegotiateDepthFormat(dev)
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestResolveFormatChecksFeatures(t *testing.T) {
	dev := newFakeDevice()
	dev.formats[vk.FormatR8g8b8a8Unorm] = vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit)

	f, err := resolveFormat(dev, vk.FormatR8g8b8a8Unorm, TextureUsageImage, 1)
	require.NoError(t, err)
	require.Equal(t, vk.FormatR8g8b8a8Unorm, f)

	// Mip generation needs blit support.
	_, err = resolveFormat(dev, vk.FormatR8g8b8a8Unorm, TextureUsageImage, 3)
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)

	_, err = resolveFormat(dev, vk.FormatR8g8b8a8Unorm, TextureUsageRenderTarget, 1)
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)

	_, err = resolveFormat(dev, vk.FormatR8g8b8Unorm, TextureUsageImage, 1)
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestImageUsage(t *testing.T) {
	sampled := vk.ImageUsageFlags(vk.ImageUsageSampledBit)

	require.Equal(t, sampled|vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageTransferSrcBit),
		imageUsage(TextureUsageImage, vk.FormatR8g8b8a8Unorm))
	require.Equal(t, sampled|vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		imageUsage(TextureUsageRenderTarget, vk.FormatR8g8b8a8Unorm))
	require.Equal(t, sampled|vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		imageUsage(TextureUsageRenderTarget, vk.FormatD32Sfloat))
	require.Equal(t, sampled|vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		imageUsage(TextureUsageDepthTarget, vk.FormatD24UnormS8Uint))
}

func TestComputeLevels(t *testing.T) {
	cases := []struct {
		w, h uint32
		want uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{4, 4, 3},
		{256, 256, 9},
		{300, 17, 9},
		{1, 1024, 11},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ComputeLevels(c.w, c.h), "%dx%d", c.w, c.h)
	}
}
