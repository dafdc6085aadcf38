package engine

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-texel/engine/assets"
	"github.com/spaghettifunk/anima-texel/engine/assets/loaders"
	"github.com/spaghettifunk/anima-texel/engine/core"
	"github.com/spaghettifunk/anima-texel/engine/platform"
	"github.com/spaghettifunk/anima-texel/engine/renderer"
	"github.com/spaghettifunk/anima-texel/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const (
	targetFrameTime = time.Second / 60
	// Upload statistics are logged every this many frames.
	statsInterval = 600
)

// Engine streams the textures of an asset directory to the GPU and keeps
// them in sync with the files on disk.
type Engine struct {
	currentStage  Stage
	appName       string
	config        *core.Config
	platform      *platform.Platform
	renderer      *renderer.Renderer
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	clock         *core.Clock
	lastTime      time.Duration
}

func New(appName string, cfg *core.Config, debug bool) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	p := platform.New()
	return &Engine{
		currentStage: EngineStageUninitialized,
		appName:      appName,
		config:       cfg,
		platform:     p,
		renderer:     renderer.New(p, cfg.Renderer, debug),
		assetManager: assets.NewAssetManager(&loaders.ImageResourceParams{FlipY: true}, 256),
		clock:        core.NewClock(),
	}, nil
}

func (e *Engine) Initialize(ctx context.Context) error {
	e.currentStage = EngineStageInitializing

	if err := e.platform.Startup(e.appName, 1, 1); err != nil {
		return err
	}
	if err := e.renderer.Initialize(e.appName); err != nil {
		return err
	}

	sm, err := systems.NewSystemManager(e.config, e.renderer, e.assetManager)
	if err != nil {
		return err
	}
	e.systemManager = sm
	if err := sm.Initialize(); err != nil {
		return err
	}

	if err := e.loadAssets(ctx); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// loadAssets decodes every texture of the asset directory. The uploads are
// recorded by the first frame.
func (e *Engine) loadAssets(ctx context.Context) error {
	dir := e.config.Assets.Dir
	if _, err := os.Stat(dir); err != nil {
		core.LogWarn("asset directory '%s' not available, only default textures are loaded: %s", dir, err)
		return nil
	}
	if err := e.assetManager.Initialize(dir, e.config.Assets.Watch, e.systemManager.JobSystem); err != nil {
		return err
	}

	start := time.Now()
	images, err := e.assetManager.LoadAll(ctx)
	if err != nil {
		return errors.Wrapf(err, "loading textures from %s", dir)
	}
	for _, img := range images {
		if _, err := e.systemManager.TextureSystem.Register(img); err != nil {
			return err
		}
	}
	core.LogInfo("decoded %d textures from '%s' in %s", len(images), dir, time.Since(start))
	return nil
}

// Run draws frames until ctx is cancelled or the window is closed.
func (e *Engine) Run(ctx context.Context) error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for {
		if ctx.Err() != nil || !e.platform.PumpMessages() {
			return nil
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if err := e.renderer.DrawFrame(delta.Seconds(), e.recordFrame); err != nil {
			core.LogError("frame %d failed: %s", e.renderer.FrameNumber(), err)
			return err
		}

		if n := e.renderer.FrameNumber(); n%statsInterval == 0 {
			s := e.renderer.Textures().Metrics().Stats()
			core.LogInfo("uploads: %d flushes, %d bytes staged, %d blits, avg flush %s",
				s.Flushes, s.BytesStaged, s.Blits, s.AvgFlushTime)
		}

		// If there is time left, give it back to the OS.
		e.clock.Update()
		if remaining := targetFrameTime - (e.clock.Elapsed() - currentTime); remaining > time.Millisecond {
			e.platform.Sleep(remaining - time.Millisecond)
		}
		e.lastTime = currentTime
	}
}

// recordFrame applies the files changed on disk and pushes every pending
// texture write.
func (e *Engine) recordFrame() error {
	ts := e.systemManager.TextureSystem
	for _, img := range e.assetManager.PendingReloads() {
		if _, err := ts.Reload(img); err != nil {
			core.LogError(err.Error())
		}
	}
	return e.systemManager.Update()
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	var err error
	if aerr := e.assetManager.Shutdown(); aerr != nil {
		err = errors.CombineErrors(err, aerr)
	}
	// Textures may still be read by submitted frames.
	err = errors.CombineErrors(err, e.renderer.WaitIdle())
	if e.systemManager != nil {
		err = errors.CombineErrors(err, e.systemManager.Shutdown())
	}
	err = errors.CombineErrors(err, e.renderer.Shutdown())
	err = errors.CombineErrors(err, e.platform.Shutdown())
	return err
}
