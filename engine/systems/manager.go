package systems

import (
	"runtime"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-texel/engine/core"
	"github.com/spaghettifunk/anima-texel/engine/renderer"
	"github.com/spaghettifunk/anima-texel/engine/renderer/vulkan"
)

type SystemManager struct {
	JobSystem     *JobSystem
	TextureSystem *TextureSystem
}

func NewSystemManager(cfg *core.Config, r *renderer.Renderer, source TextureSource) (*SystemManager, error) {
	js, err := NewJobSystem(runtime.NumCPU(), 64)
	if err != nil {
		return nil, err
	}

	filter, err := vulkan.ParseMipFilter(cfg.Renderer.DefaultMipFilter)
	if err != nil {
		return nil, errors.CombineErrors(err, js.Shutdown())
	}
	ts, err := NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount: cfg.Renderer.MaxTextures,
		MipFilter:       filter,
		GenerateMips:    cfg.Renderer.GenerateMips,
	}, r.Textures(), source)
	if err != nil {
		return nil, errors.CombineErrors(err, js.Shutdown())
	}

	return &SystemManager{
		JobSystem:     js,
		TextureSystem: ts,
	}, nil
}

func (sm *SystemManager) Initialize() error {
	return sm.TextureSystem.Initialize()
}

// Update runs once per frame while the renderer records.
func (sm *SystemManager) Update() error {
	return sm.TextureSystem.Update()
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.TextureSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
