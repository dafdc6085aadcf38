package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-texel/engine/core"
	"github.com/spaghettifunk/anima-texel/engine/platform"
	"github.com/spaghettifunk/anima-texel/engine/renderer/vulkan"
)

type RendererType uint8

const (
	Vulkan RendererType = iota
)

type Renderer struct {
	backend     RendererBackend
	frameNumber uint64
}

// New returns a renderer on the Vulkan backend.
func New(p *platform.Platform, cfg core.RendererConfig, debug bool) *Renderer {
	return NewWithBackend(vulkan.New(p, cfg.FramesInFlight, debug))
}

func NewWithBackend(backend RendererBackend) *Renderer {
	return &Renderer{backend: backend}
}

func (r *Renderer) Initialize(appName string) error {
	if err := r.backend.Initialize(appName); err != nil {
		core.LogError("renderer backend failed to initialize: %s", err)
		return err
	}
	return nil
}

func (r *Renderer) WaitIdle() error {
	return r.backend.WaitIdle()
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}

// Textures returns the factory of the backend.
func (r *Renderer) Textures() *vulkan.TextureFactory {
	return r.backend.Textures()
}

func (r *Renderer) FrameNumber() uint64 { return r.frameNumber }

// DrawFrame runs record between BeginFrame and EndFrame. The frame is
// submitted even when record fails, so commands it did record are not lost.
func (r *Renderer) DrawFrame(deltaTime float64, record func() error) error {
	if err := r.backend.BeginFrame(); err != nil {
		core.LogError(err.Error())
		return err
	}

	var err error
	if record != nil {
		if rerr := record(); rerr != nil {
			err = errors.Wrapf(rerr, "recording frame %d", r.frameNumber)
		}
	}

	if eerr := r.backend.EndFrame(); eerr != nil {
		core.LogError("RendererEndFrame failed: %s", eerr)
		err = errors.CombineErrors(err, eerr)
	}
	r.frameNumber++
	return err
}
