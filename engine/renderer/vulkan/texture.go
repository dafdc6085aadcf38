package vulkan

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

type TextureUsage uint8

const (
	// Sampled image filled from CPU data.
	TextureUsageImage TextureUsage = iota
	// Color (or depth, for depth formats) attachment that can be sampled.
	TextureUsageRenderTarget
	// Depth attachment that can be sampled.
	TextureUsageDepthTarget
)

func (u TextureUsage) String() string {
	switch u {
	case TextureUsageImage:
		return "image"
	case TextureUsageRenderTarget:
		return "render-target"
	case TextureUsageDepthTarget:
		return "depth-target"
	default:
		return fmt.Sprintf("usage(%d)", uint8(u))
	}
}

// MipFilter selects the filter used to downsample one mip level into the next.
type MipFilter uint8

const (
	MipFilterNearest MipFilter = iota
	MipFilterLinear
)

func ParseMipFilter(s string) (MipFilter, error) {
	switch s {
	case "nearest":
		return MipFilterNearest, nil
	case "linear":
		return MipFilterLinear, nil
	}
	return MipFilterNearest, errors.Newf("unknown mip filter %q", s)
}

func (m MipFilter) vkFilter() vk.Filter {
	if m != MipFilterNearest {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

// HandleAllocator hands out shader-visible slots for textures.
// *containers.HandleTable[*Texture] implements it.
type HandleAllocator interface {
	Alloc(t *Texture) (uint32, error)
	Dealloc(t *Texture) error
}

type TextureDescriptor struct {
	// Debug name. Defaults to "texture-<uuid>".
	Name   string
	Width  uint32
	Height uint32
	// A concrete format or FormatDepth.
	Format vk.Format
	Usage  TextureUsage
	// 0 is treated as 1.
	MipLevels uint32
	// Optional initial pixels, Width*Height*BytesPerPixel(Format) bytes.
	// The texture keeps the slice as its CPU pixel buffer.
	Data      []byte
	Parent    HandleAllocator
	MipFilter MipFilter
}

// Texture is a 2D image with its view and backing memory, plus an optional
// CPU copy of its pixels and the region of it not yet uploaded.
//
// A Texture is not safe for concurrent use.
type Texture struct {
	factory *TextureFactory

	id        uuid.UUID
	name      string
	width     uint32
	height    uint32
	format    vk.Format
	usage     TextureUsage
	mipLevels uint32
	mipFilter MipFilter

	pixels []byte
	dirty  DirtyRegion
	// layout of every mip level between flushes
	layout vk.ImageLayout

	image  ImageHandle
	view   ViewHandle
	memory *MemoryAllocation
	owned  bool

	parent    HandleAllocator
	handle    uint32
	hasHandle bool

	destroyed bool
}

// Staging and copy sizes are 32-bit on the way to the device.
const maxTextureBytes = math.MaxUint32

// newTexture validates desc and returns an unbacked texture. No device object
// is created.
func (f *TextureFactory) newTexture(desc TextureDescriptor) (*Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, errors.Wrapf(core.ErrInvalidDescriptor, "resolution %dx%d", desc.Width, desc.Height)
	}
	levels := desc.MipLevels
	if levels == 0 {
		levels = 1
	}
	if maxLevels := ComputeLevels(desc.Width, desc.Height); levels > maxLevels {
		return nil, errors.Wrapf(core.ErrInvalidDescriptor,
			"%d mip levels requested, a %dx%d image has at most %d", levels, desc.Width, desc.Height, maxLevels)
	}

	depthRequested := desc.Format == FormatDepth || IsDepthFormat(desc.Format)
	switch desc.Usage {
	case TextureUsageImage:
		if depthRequested {
			return nil, errors.Wrap(core.ErrInvalidDescriptor, "image textures cannot use a depth format")
		}
	case TextureUsageDepthTarget:
		if !depthRequested {
			return nil, errors.Wrapf(core.ErrInvalidDescriptor, "depth target with color format %d", desc.Format)
		}
	case TextureUsageRenderTarget:
	default:
		return nil, errors.Wrapf(core.ErrInvalidDescriptor, "unknown usage %s", desc.Usage)
	}

	format, err := resolveFormat(f.device, desc.Format, desc.Usage, levels)
	if err != nil {
		return nil, err
	}
	if size := uint64(desc.Width) * uint64(desc.Height) * uint64(BytesPerPixel(format)); size > maxTextureBytes {
		return nil, errors.Wrapf(core.ErrInvalidDescriptor,
			"%dx%d texture needs %d bytes, at most %d are supported", desc.Width, desc.Height, size, uint64(maxTextureBytes))
	}

	if desc.Data != nil {
		if desc.Usage != TextureUsageImage {
			return nil, errors.Wrapf(core.ErrNotWritable, "initial data for a %s", desc.Usage)
		}
		want := uint64(desc.Width) * uint64(desc.Height) * uint64(BytesPerPixel(format))
		if uint64(len(desc.Data)) != want {
			return nil, errors.Wrapf(core.ErrInvalidBufferSize,
				"initial data is %d bytes, %dx%d texture needs %d", len(desc.Data), desc.Width, desc.Height, want)
		}
	}

	id := uuid.New()
	name := desc.Name
	if name == "" {
		name = fmt.Sprintf("texture-%s", id)
	}

	return &Texture{
		factory:   f,
		id:        id,
		name:      name,
		width:     desc.Width,
		height:    desc.Height,
		format:    format,
		usage:     desc.Usage,
		mipLevels: levels,
		mipFilter: desc.MipFilter,
		pixels:    desc.Data,
		layout:    vk.ImageLayoutUndefined,
		parent:    desc.Parent,
	}, nil
}

func (t *Texture) createView() error {
	view, err := t.factory.device.CreateImageView(ImageViewInfo{
		Image:     t.image,
		Format:    t.format,
		Aspect:    aspectMask(t.format),
		MipLevels: t.mipLevels,
	})
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "creating view of %s", t.name), core.ErrDeviceObjectCreationFailed)
	}
	t.view = view
	t.factory.device.SetObjectName(view, t.name+" view")
	return nil
}

func (t *Texture) acquireHandle() error {
	if t.parent == nil {
		return nil
	}
	h, err := t.parent.Alloc(t)
	if err != nil {
		return errors.Wrapf(err, "allocating handle for %s", t.name)
	}
	t.handle = h
	t.hasHandle = true
	return nil
}

// release frees everything the texture holds. Fields are zeroed as they are
// released, so it is safe on partially built textures and on repeat calls.
func (t *Texture) release() error {
	var err error
	dev := t.factory.device

	t.pixels = nil
	t.dirty.Clear()

	if t.hasHandle {
		if derr := t.parent.Dealloc(t); derr != nil {
			err = errors.CombineErrors(err, errors.Wrapf(derr, "releasing handle %d of %s", t.handle, t.name))
		}
		t.hasHandle = false
	}
	if t.view != 0 {
		dev.DestroyImageView(t.view)
		t.view = 0
	}
	if t.owned {
		if t.image != 0 {
			dev.DestroyImage(t.image)
			t.image = 0
		}
		t.factory.memory.Free(t.memory)
		t.memory = nil
	}
	return err
}

// Destroy releases the pixel buffer, the handle, the view and, when the texture
// owns them, the image and its memory. Calling it again is a no-op.
func (t *Texture) Destroy() error {
	if t.destroyed {
		return nil
	}
	t.destroyed = true
	err := t.release()
	if err != nil {
		core.LogError("texture '%s' destroyed with errors: %s", t.name, err)
	} else {
		core.LogDebug("texture '%s' destroyed", t.name)
	}
	return err
}

// Write copies pixels into the region r of the CPU pixel buffer and marks r
// dirty. Nothing reaches the GPU until the next Push.
func (t *Texture) Write(r Rect, pixels []byte) error {
	if err := t.checkWritable(r); err != nil {
		return err
	}
	bpp := int(BytesPerPixel(t.format))
	rowBytes := int(r.Width()) * bpp
	if want := rowBytes * int(r.Height()); len(pixels) != want {
		return errors.Wrapf(core.ErrInvalidBufferSize, "%d bytes for a %dx%d region, want %d", len(pixels), r.Width(), r.Height(), want)
	}

	t.ensurePixels()
	width := int(t.width)
	for row := 0; row < int(r.Height()); row++ {
		dst := ((int(r.Start.Y)+row)*width + int(r.Start.X)) * bpp
		src := row * rowBytes
		copy(t.pixels[dst:dst+rowBytes], pixels[src:src+rowBytes])
	}
	t.dirty.Extend(r)
	return nil
}

// MarkDirty schedules r for upload after the caller changed Pixels in place.
func (t *Texture) MarkDirty(r Rect) error {
	if err := t.checkWritable(r); err != nil {
		return err
	}
	t.ensurePixels()
	t.dirty.Extend(r)
	return nil
}

// Push uploads the dirty region, if any, and regenerates the mip chain.
func (t *Texture) Push() error {
	if t.destroyed {
		return errors.Wrapf(core.ErrTextureDestroyed, "push to %s", t.name)
	}
	return t.factory.uploader.Push(t)
}

func (t *Texture) checkWritable(r Rect) error {
	if t.destroyed {
		return errors.Wrapf(core.ErrTextureDestroyed, "write to %s", t.name)
	}
	if t.usage != TextureUsageImage {
		return errors.Wrapf(core.ErrNotWritable, "%s is a %s", t.name, t.usage)
	}
	if r.Empty() || !r.Within(t.width, t.height) {
		return errors.Wrapf(core.ErrInvalidRegion, "region %v outside %dx%d", r, t.width, t.height)
	}
	return nil
}

func (t *Texture) ensurePixels() {
	if t.pixels == nil {
		t.pixels = make([]byte, int(t.width)*int(t.height)*int(BytesPerPixel(t.format)))
	}
}

func (t *Texture) ID() uuid.UUID          { return t.id }
func (t *Texture) Name() string           { return t.name }
func (t *Texture) Width() uint32          { return t.width }
func (t *Texture) Height() uint32         { return t.height }
func (t *Texture) Format() vk.Format      { return t.format }
func (t *Texture) Usage() TextureUsage    { return t.usage }
func (t *Texture) MipLevels() uint32      { return t.mipLevels }
func (t *Texture) MipFilter() MipFilter   { return t.mipFilter }
func (t *Texture) Image() ImageHandle     { return t.image }
func (t *Texture) View() ViewHandle       { return t.view }
func (t *Texture) Owned() bool            { return t.owned }
func (t *Texture) Layout() vk.ImageLayout { return t.layout }
func (t *Texture) Dirty() DirtyRegion     { return t.dirty }
func (t *Texture) Destroyed() bool        { return t.destroyed }

// Pixels returns the CPU pixel buffer, nil if the texture has none.
func (t *Texture) Pixels() []byte { return t.pixels }

// Handle returns the slot assigned by the descriptor's parent.
func (t *Texture) Handle() (uint32, bool) { return t.handle, t.hasHandle }

func (t *Texture) String() string {
	return fmt.Sprintf("%s(%dx%d fmt=%d mips=%d %s)", t.name, t.width, t.height, t.format, t.mipLevels, t.usage)
}
