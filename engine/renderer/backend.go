package renderer

import "github.com/spaghettifunk/anima-texel/engine/renderer/vulkan"

// RendererBackend is what the frontend drives once per frame. Transfers
// recorded between BeginFrame and EndFrame are submitted by EndFrame.
type RendererBackend interface {
	Initialize(appName string) error
	Shutdown() error
	BeginFrame() error
	EndFrame() error
	// WaitIdle blocks until the GPU has finished all submitted work.
	WaitIdle() error
	Textures() *vulkan.TextureFactory
}
