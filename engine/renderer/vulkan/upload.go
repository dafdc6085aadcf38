package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/loov/hrtime"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

// StagingUploadPipeline flushes the dirty region of a texture: it stages the
// bytes, records the copy into mip 0, rebuilds the mip chain with blits and
// leaves every level in shader-read layout.
type StagingUploadPipeline struct {
	device   Device
	memory   *MemoryAllocator
	recorder CommandRecorder
	retirer  Retirer
	metrics  *core.UploadMetrics
}

func NewStagingUploadPipeline(device Device, memory *MemoryAllocator, recorder CommandRecorder, retirer Retirer, metrics *core.UploadMetrics) *StagingUploadPipeline {
	return &StagingUploadPipeline{
		device:   device,
		memory:   memory,
		recorder: recorder,
		retirer:  retirer,
		metrics:  metrics,
	}
}

// Push is a no-op when t has nothing dirty. It fails with core.ErrNotRecording,
// leaving t untouched, when the recorder is not accepting commands.
func (p *StagingUploadPipeline) Push(t *Texture) error {
	rect, pending := t.dirty.Rect()
	if !pending {
		return nil
	}
	if !p.recorder.Recording() {
		return errors.Wrapf(core.ErrNotRecording, "flushing %s", t.name)
	}
	start := hrtime.Now()

	data := extractRegion(t.pixels, t.width, t.height, rect, BytesPerPixel(t.format))

	staging, err := newStagingAllocation(p.device, p.memory, t.name, data)
	if err != nil {
		core.LogError("failed to stage %d bytes for texture '%s': %s", len(data), t.name, err)
		return err
	}
	p.retirer.Retire(staging)

	color := vk.ImageAspectFlags(vk.ImageAspectColorBit)

	// Transition for write. Before the first upload the contents are
	// undefined; afterwards the image is sampled between flushes and the
	// texels outside rect have to survive.
	srcStage := vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	var srcAccess vk.AccessFlags
	if t.layout == vk.ImageLayoutShaderReadOnlyOptimal {
		srcStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
		srcAccess = vk.AccessFlags(vk.AccessShaderReadBit)
	}
	p.recorder.PipelineBarrier(srcStage, vk.PipelineStageFlags(vk.PipelineStageTransferBit), ImageBarrier{
		Image:        t.image,
		OldLayout:    t.layout,
		NewLayout:    vk.ImageLayoutTransferDstOptimal,
		SrcAccess:    srcAccess,
		DstAccess:    vk.AccessFlags(vk.AccessTransferWriteBit),
		Aspect:       color,
		BaseMipLevel: 0,
		LevelCount:   t.mipLevels,
	})

	p.recorder.CopyBufferToImage(staging.Buffer, t.image, vk.ImageLayoutTransferDstOptimal, BufferImageCopy{
		Aspect:   color,
		MipLevel: 0,
		X:        int32(rect.Start.X),
		Y:        int32(rect.Start.Y),
		Width:    rect.Width(),
		Height:   rect.Height(),
	})

	blits := p.generateMips(t, color)
	p.finalizeLayouts(t, color)

	t.layout = vk.ImageLayoutShaderReadOnlyOptimal
	t.dirty.Clear()

	elapsed := hrtime.Since(start)
	p.metrics.Record(uint64(len(data)), blits, elapsed)
	core.LogDebug("texture '%s': staged %d bytes for %dx%d at (%d,%d), %d blits, %s",
		t.name, len(data), rect.Width(), rect.Height(), rect.Start.X, rect.Start.Y, blits, elapsed)
	return nil
}

// generateMips blits level i-1 into level i for every level after the first.
// On return levels 0..n-2 are transfer sources and level n-1 is still a
// transfer destination.
func (p *StagingUploadPipeline) generateMips(t *Texture, aspect vk.ImageAspectFlags) uint32 {
	filter := t.mipFilter.vkFilter()
	transfer := vk.PipelineStageFlags(vk.PipelineStageTransferBit)

	mipWidth, mipHeight := int32(t.width), int32(t.height)
	for i := uint32(1); i < t.mipLevels; i++ {
		p.recorder.PipelineBarrier(transfer, transfer, ImageBarrier{
			Image:        t.image,
			OldLayout:    vk.ImageLayoutTransferDstOptimal,
			NewLayout:    vk.ImageLayoutTransferSrcOptimal,
			SrcAccess:    vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccess:    vk.AccessFlags(vk.AccessTransferReadBit),
			Aspect:       aspect,
			BaseMipLevel: i - 1,
			LevelCount:   1,
		})

		nextWidth, nextHeight := halve(mipWidth), halve(mipHeight)
		p.recorder.BlitImage(t.image, vk.ImageLayoutTransferSrcOptimal, t.image, vk.ImageLayoutTransferDstOptimal, ImageBlit{
			Aspect:    aspect,
			SrcLevel:  i - 1,
			SrcWidth:  mipWidth,
			SrcHeight: mipHeight,
			DstLevel:  i,
			DstWidth:  nextWidth,
			DstHeight: nextHeight,
		}, filter)

		mipWidth, mipHeight = nextWidth, nextHeight
	}
	return t.mipLevels - 1
}

// finalizeLayouts moves every level to shader-read layout: the blit sources
// in one barrier, the last level in another.
func (p *StagingUploadPipeline) finalizeLayouts(t *Texture, aspect vk.ImageAspectFlags) {
	barriers := make([]ImageBarrier, 0, 2)
	if t.mipLevels > 1 {
		barriers = append(barriers, ImageBarrier{
			Image:        t.image,
			OldLayout:    vk.ImageLayoutTransferSrcOptimal,
			NewLayout:    vk.ImageLayoutShaderReadOnlyOptimal,
			SrcAccess:    vk.AccessFlags(vk.AccessTransferReadBit),
			DstAccess:    vk.AccessFlags(vk.AccessShaderReadBit),
			Aspect:       aspect,
			BaseMipLevel: 0,
			LevelCount:   t.mipLevels - 1,
		})
	}
	barriers = append(barriers, ImageBarrier{
		Image:        t.image,
		OldLayout:    vk.ImageLayoutTransferDstOptimal,
		NewLayout:    vk.ImageLayoutShaderReadOnlyOptimal,
		SrcAccess:    vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccess:    vk.AccessFlags(vk.AccessShaderReadBit),
		Aspect:       aspect,
		BaseMipLevel: t.mipLevels - 1,
		LevelCount:   1,
	})
	p.recorder.PipelineBarrier(
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		barriers...,
	)
}

func halve(n int32) int32 {
	if n > 1 {
		return n / 2
	}
	return 1
}

// extractRegion returns the bytes of r packed row after row. A full-image
// region returns pixels itself and a region of whole rows returns a sub-slice;
// anything narrower is gathered row by row.
func extractRegion(pixels []byte, width, height uint32, r Rect, bpp uint32) []byte {
	if r == FullRect(width, height) {
		return pixels
	}
	if r.Width() == width {
		offset := int(r.Start.Y) * int(width) * int(bpp)
		size := int(r.Width()) * int(r.Height()) * int(bpp)
		return pixels[offset : offset+size : offset+size]
	}
	return extractRows(pixels, width, r, bpp)
}

// extractRows copies r out of pixels one row at a time.
func extractRows(pixels []byte, width uint32, r Rect, bpp uint32) []byte {
	stride := int(bpp)
	rowBytes := int(r.Width()) * stride
	out := make([]byte, rowBytes*int(r.Height()))
	for row := 0; row < int(r.Height()); row++ {
		src := ((int(r.Start.Y)+row)*int(width) + int(r.Start.X)) * stride
		copy(out[row*rowBytes:(row+1)*rowBytes], pixels[src:src+rowBytes])
	}
	return out
}
