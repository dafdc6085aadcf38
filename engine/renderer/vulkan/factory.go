package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-texel/engine/core"
)

// TextureFactory is the only way to build textures. It owns the device
// injected at construction and the upload pipeline textures flush through.
type TextureFactory struct {
	device   Device
	memory   *MemoryAllocator
	uploader *StagingUploadPipeline
	metrics  *core.UploadMetrics
}

func NewTextureFactory(device Device, recorder CommandRecorder, retirer Retirer) *TextureFactory {
	memory := NewMemoryAllocator(device)
	metrics := core.NewUploadMetrics()
	return &TextureFactory{
		device:   device,
		memory:   memory,
		metrics:  metrics,
		uploader: NewStagingUploadPipeline(device, memory, recorder, retirer, metrics),
	}
}

func (f *TextureFactory) Metrics() *core.UploadMetrics { return f.metrics }

// Create builds a texture that owns its image and device-local memory. When
// desc carries data it is uploaded immediately. On failure nothing created
// along the way is left behind.
func (f *TextureFactory) Create(desc TextureDescriptor) (_ *Texture, err error) {
	t, err := f.newTexture(desc)
	if err != nil {
		core.LogError("texture '%s' rejected: %s", desc.Name, err)
		return nil, err
	}
	t.owned = true

	defer func() {
		if err != nil {
			if rerr := t.release(); rerr != nil {
				err = errors.CombineErrors(err, rerr)
			}
			core.LogError("failed to create texture '%s': %s", t.name, err)
		}
	}()

	image, err := f.device.CreateImage(ImageInfo{
		Width:     t.width,
		Height:    t.height,
		Format:    t.format,
		MipLevels: t.mipLevels,
		Usage:     imageUsage(t.usage, t.format),
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "creating image %s", t.name), core.ErrDeviceObjectCreationFailed)
	}
	t.image = image
	f.device.SetObjectName(image, t.name)

	t.memory, err = f.memory.AllocateFor(f.device.ImageMemoryRequirements(image), vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	if err = f.memory.BindImage(image, t.memory); err != nil {
		return nil, err
	}
	if err = t.createView(); err != nil {
		return nil, err
	}
	if err = t.acquireHandle(); err != nil {
		return nil, err
	}

	if t.pixels != nil {
		t.dirty.Extend(FullRect(t.width, t.height))
		if err = f.uploader.Push(t); err != nil {
			return nil, err
		}
	}

	core.LogDebug("texture '%s' created: %s", t.name, t)
	return t, nil
}

// Wrap builds a texture around an image owned by someone else. Only the view
// is created, and only the view is destroyed with the texture.
func (f *TextureFactory) Wrap(image ImageHandle, desc TextureDescriptor) (_ *Texture, err error) {
	if image == 0 {
		return nil, errors.Wrap(core.ErrInvalidDescriptor, "wrapping a null image")
	}
	if desc.Data != nil {
		return nil, errors.Wrap(core.ErrInvalidDescriptor, "wrapped textures take no initial data")
	}
	t, err := f.newTexture(desc)
	if err != nil {
		return nil, err
	}
	t.image = image

	defer func() {
		if err != nil {
			if rerr := t.release(); rerr != nil {
				err = errors.CombineErrors(err, rerr)
			}
			core.LogError("failed to wrap image as '%s': %s", t.name, err)
		}
	}()

	if err = t.createView(); err != nil {
		return nil, err
	}
	if err = t.acquireHandle(); err != nil {
		return nil, err
	}

	core.LogDebug("texture '%s' wraps a borrowed image", t.name)
	return t, nil
}
