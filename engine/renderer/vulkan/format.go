package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

// FormatDepth asks the factory to pick the best depth format the device
// supports as a depth-stencil attachment.
const FormatDepth vk.Format = vk.Format(0x7FFFFFFF)

type formatInfo struct {
	bytesPerPixel uint32
	depth         bool
	stencil       bool
}

// formatTable lists the formats a texture may be created with.
var formatTable = map[vk.Format]formatInfo{
	vk.FormatR8Unorm:            {bytesPerPixel: 1},
	vk.FormatR8g8Unorm:          {bytesPerPixel: 2},
	vk.FormatR8g8b8a8Unorm:      {bytesPerPixel: 4},
	vk.FormatR8g8b8a8Srgb:       {bytesPerPixel: 4},
	vk.FormatB8g8r8a8Unorm:      {bytesPerPixel: 4},
	vk.FormatB8g8r8a8Srgb:       {bytesPerPixel: 4},
	vk.FormatR32Sfloat:          {bytesPerPixel: 4},
	vk.FormatR16g16b16a16Sfloat: {bytesPerPixel: 8},
	vk.FormatR32g32b32a32Sfloat: {bytesPerPixel: 16},

	vk.FormatD16Unorm:        {bytesPerPixel: 2, depth: true},
	vk.FormatD32Sfloat:       {bytesPerPixel: 4, depth: true},
	vk.FormatD24UnormS8Uint:  {bytesPerPixel: 4, depth: true, stencil: true},
	vk.FormatD32SfloatS8Uint: {bytesPerPixel: 8, depth: true, stencil: true},
}

// depthPriority is the order FormatDepth is resolved in, best first.
var depthPriority = []vk.Format{
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
	vk.FormatD32Sfloat,
	vk.FormatD16Unorm,
}

// BytesPerPixel returns the texel size of format, or 0 if the format is unknown.
func BytesPerPixel(format vk.Format) uint32 {
	return formatTable[format].bytesPerPixel
}

func IsDepthFormat(format vk.Format) bool {
	return formatTable[format].depth
}

func HasStencil(format vk.Format) bool {
	return formatTable[format].stencil
}

// aspectMask returns the aspects a view of format covers.
func aspectMask(format vk.Format) vk.ImageAspectFlags {
	info := formatTable[format]
	switch {
	case info.stencil:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	case info.depth:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	default:
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
}

func hasFeatures(props vk.FormatProperties, want vk.FormatFeatureFlags) bool {
	return props.OptimalTilingFeatures&want == want
}

// NegotiateDepthFormat returns the first format of the depth priority list
// that the device can use as an optimally tiled depth-stencil attachment.
func NegotiateDepthFormat(device Device) (vk.Format, error) {
	want := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range depthPriority {
		if hasFeatures(device.FormatProperties(candidate), want) {
			return candidate, nil
		}
	}
	return vk.FormatUndefined, errors.Wrap(core.ErrUnsupportedFormat, "no depth format usable as depth-stencil attachment")
}

// resolveFormat turns the requested format into a concrete one and checks
// that the device supports it for usage.
func resolveFormat(device Device, format vk.Format, usage TextureUsage, mipLevels uint32) (vk.Format, error) {
	if format == FormatDepth {
		return NegotiateDepthFormat(device)
	}

	info, ok := formatTable[format]
	if !ok {
		return vk.FormatUndefined, errors.Wrapf(core.ErrUnsupportedFormat, "format %d is not known", format)
	}

	var want vk.FormatFeatureFlags
	switch {
	case info.depth:
		want = vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	case usage == TextureUsageImage:
		want = vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit)
		if mipLevels > 1 {
			want |= vk.FormatFeatureFlags(vk.FormatFeatureBlitSrcBit | vk.FormatFeatureBlitDstBit)
		}
	default:
		want = vk.FormatFeatureFlags(vk.FormatFeatureColorAttachmentBit | vk.FormatFeatureSampledImageBit)
	}

	if !hasFeatures(device.FormatProperties(format), want) {
		return vk.FormatUndefined, errors.Wrapf(core.ErrUnsupportedFormat,
			"format %d lacks optimal tiling features %#x", format, uint32(want))
	}
	return format, nil
}

// imageUsage derives the image usage mask for a texture of the given
// (already resolved) format.
func imageUsage(usage TextureUsage, format vk.Format) vk.ImageUsageFlags {
	flags := vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	switch {
	case usage == TextureUsageImage:
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit)
	case IsDepthFormat(format):
		flags |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	default:
		flags |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	return flags
}

// ComputeLevels returns the length of a full mip chain for a width x height image.
func ComputeLevels(width, height uint32) uint32 {
	n := width
	if height > n {
		n = height
	}
	levels := uint32(1)
	for n > 1 {
		n >>= 1
		levels++
	}
	return levels
}
