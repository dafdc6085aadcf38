package systems

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-texel/engine/assets/loaders"
	"github.com/spaghettifunk/anima-texel/engine/containers"
	"github.com/spaghettifunk/anima-texel/engine/core"
	"github.com/spaghettifunk/anima-texel/engine/renderer/vulkan"
)

const (
	DefaultTextureName         = "default"
	DefaultDiffuseTextureName  = "default_DIFF"
	DefaultSpecularTextureName = "default_SPEC"
	DefaultNormalTextureName   = "default_NORM"
)

type TextureSystemConfig struct {
	// The maximum number of textures that can be loaded at once, defaults
	// included.
	MaxTextureCount uint32
	MipFilter       vulkan.MipFilter
	// Build a full mip chain for every texture.
	GenerateMips bool
}

// TextureSource loads the image behind a texture name.
type TextureSource interface {
	LoadImage(name string) (*loaders.Image, error)
}

type textureReference struct {
	texture        *vulkan.Texture
	referenceCount uint64
	autoRelease    bool
}

// TextureSystem registers textures by name, hands out their shader-visible
// handles and pushes their pending writes once per frame. It is meant to be
// driven from the render thread.
type TextureSystem struct {
	config  *TextureSystemConfig
	factory *vulkan.TextureFactory
	source  TextureSource
	handles *containers.HandleTable[*vulkan.Texture]

	defaults   map[string]*vulkan.Texture
	registered map[string]*textureReference
}

func NewTextureSystem(config *TextureSystemConfig, factory *vulkan.TextureFactory, source TextureSource) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := errors.New("func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}

	return &TextureSystem{
		config:     config,
		factory:    factory,
		source:     source,
		handles:    containers.NewHandleTable[*vulkan.Texture](config.MaxTextureCount),
		defaults:   make(map[string]*vulkan.Texture, 4),
		registered: make(map[string]*textureReference),
	}, nil
}

// Initialize creates the default textures. Their pixels reach the GPU on the
// next Update.
func (ts *TextureSystem) Initialize() error {
	// NOTE: Create default texture, a 256x256 blue/white checkerboard pattern.
	// This is done in code to eliminate asset dependencies.
	const texDimension = 256
	pixels := solidPixels(texDimension, texDimension, 255, 255, 255, 255)
	for row := 0; row < texDimension; row++ {
		for col := 0; col < texDimension; col++ {
			if row%2 == col%2 {
				index := (row*texDimension + col) * 4
				pixels[index+0] = 0
				pixels[index+1] = 0
			}
		}
	}

	defaults := []struct {
		name   string
		size   uint32
		pixels []byte
	}{
		{DefaultTextureName, texDimension, pixels},
		// Default diffuse map is all white.
		{DefaultDiffuseTextureName, 16, solidPixels(16, 16, 255, 255, 255, 255)},
		// Default spec map is black (no specular).
		{DefaultSpecularTextureName, 16, solidPixels(16, 16, 0, 0, 0, 255)},
		// Blue, z-axis by default.
		{DefaultNormalTextureName, 16, solidPixels(16, 16, 128, 128, 255, 255)},
	}
	for _, d := range defaults {
		t, err := ts.createTexture(d.name, d.size, d.size, d.pixels)
		if err != nil {
			return errors.Wrapf(err, "creating default texture '%s'", d.name)
		}
		ts.defaults[d.name] = t
	}
	return nil
}

func solidPixels(width, height int, r, g, b, a byte) []byte {
	pixels := make([]byte, width*height*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i+0] = r
		pixels[i+1] = g
		pixels[i+2] = b
		pixels[i+3] = a
	}
	return pixels
}

func (ts *TextureSystem) createTexture(name string, width, height uint32, pixels []byte) (*vulkan.Texture, error) {
	mips := uint32(1)
	if ts.config.GenerateMips {
		mips = vulkan.ComputeLevels(width, height)
	}
	t, err := ts.factory.Create(vulkan.TextureDescriptor{
		Name:      name,
		Width:     width,
		Height:    height,
		Format:    vk.FormatR8g8b8a8Unorm,
		Usage:     vulkan.TextureUsageImage,
		MipLevels: mips,
		Parent:    ts.handles,
		MipFilter: ts.config.MipFilter,
	})
	if err != nil {
		return nil, err
	}
	if err := t.Write(vulkan.FullRect(width, height), pixels); err != nil {
		return nil, errors.CombineErrors(err, t.Destroy())
	}
	return t, nil
}

func (ts *TextureSystem) isDefault(name string) bool {
	_, ok := ts.defaults[name]
	return ok
}

// Acquire returns the texture called name, loading it from the source the
// first time. Every call takes a reference. When autoRelease is set on the
// first acquisition the texture is destroyed once its last reference is
// released.
func (ts *TextureSystem) Acquire(name string, autoRelease bool) (*vulkan.Texture, error) {
	if ts.isDefault(name) {
		core.LogWarn("texture system Acquire called for default texture '%s'. Use the GetDefault functions instead", name)
		return ts.defaults[name], nil
	}

	if ref, ok := ts.registered[name]; ok {
		ref.referenceCount++
		return ref.texture, nil
	}

	if ts.source == nil {
		return nil, errors.Newf("texture '%s' is not registered and there is no source to load it from", name)
	}
	img, err := ts.source.LoadImage(name)
	if err != nil {
		core.LogError("Failed to load texture '%s'.", name)
		return nil, errors.Wrapf(err, "acquiring texture '%s'", name)
	}
	t, err := ts.createTexture(name, img.Width, img.Height, img.Pixels)
	if err != nil {
		return nil, errors.Wrapf(err, "acquiring texture '%s'", name)
	}

	ts.registered[name] = &textureReference{
		texture:        t,
		referenceCount: 1,
		autoRelease:    autoRelease,
	}
	core.LogDebug("Texture '%s' does not yet exist. Created, and ref_count is now 1.", name)
	return t, nil
}

// Release drops one reference to name.
func (ts *TextureSystem) Release(name string) error {
	// Ignore release requests for the default textures.
	if ts.isDefault(name) {
		return nil
	}
	ref, ok := ts.registered[name]
	if !ok {
		core.LogWarn("Tried to release non-existent texture: '%s'", name)
		return nil
	}
	if ref.referenceCount == 0 {
		core.LogWarn("Tried to release texture '%s' whose reference count was already 0.", name)
		return nil
	}

	ref.referenceCount--
	if ref.referenceCount > 0 || !ref.autoRelease {
		core.LogDebug("Released texture '%s', now has a reference count of '%d' (AutoRelease=%t).", name, ref.referenceCount, ref.autoRelease)
		return nil
	}

	delete(ts.registered, name)
	core.LogDebug("Released texture '%s'. Texture unloaded because reference count=0 and AutoRelease=true.", name)
	return ref.texture.Destroy()
}

// Register creates or replaces the texture called img.Name. Registered
// textures hold no reference and are never auto-released.
func (ts *TextureSystem) Register(img *loaders.Image) (*vulkan.Texture, error) {
	if ts.isDefault(img.Name) {
		return nil, errors.Newf("'%s' is reserved for a default texture", img.Name)
	}
	if _, ok := ts.registered[img.Name]; ok {
		return ts.Reload(img)
	}
	t, err := ts.createTexture(img.Name, img.Width, img.Height, img.Pixels)
	if err != nil {
		return nil, err
	}
	ts.registered[img.Name] = &textureReference{texture: t}
	return t, nil
}

// Reload replaces the pixels of the texture called img.Name. A texture of the
// same size is rewritten in place and keeps its handle; otherwise a new
// texture takes its place and the old one is destroyed.
func (ts *TextureSystem) Reload(img *loaders.Image) (*vulkan.Texture, error) {
	ref, ok := ts.registered[img.Name]
	if !ok {
		return ts.Register(img)
	}

	old := ref.texture
	if old.Width() == img.Width && old.Height() == img.Height {
		if err := old.Write(vulkan.FullRect(img.Width, img.Height), img.Pixels); err != nil {
			return nil, errors.Wrapf(err, "reloading texture '%s'", img.Name)
		}
		core.LogInfo("texture '%s' reloaded", img.Name)
		return old, nil
	}

	t, err := ts.createTexture(img.Name, img.Width, img.Height, img.Pixels)
	if err != nil {
		return nil, errors.Wrapf(err, "reloading texture '%s'", img.Name)
	}
	ref.texture = t
	core.LogInfo("texture '%s' reloaded at %dx%d", img.Name, img.Width, img.Height)
	if err := old.Destroy(); err != nil {
		core.LogError(err.Error())
	}
	return t, nil
}

// Update pushes the pending writes of every texture. It must run while the
// renderer is recording a frame.
func (ts *TextureSystem) Update() error {
	var err error
	push := func(t *vulkan.Texture) {
		if t.Dirty().IsEmpty() {
			return
		}
		if perr := t.Push(); perr != nil {
			err = errors.CombineErrors(err, perr)
		}
	}
	for _, t := range ts.defaults {
		push(t)
	}
	for _, ref := range ts.registered {
		push(ref.texture)
	}
	return err
}

// Get returns a registered or default texture without taking a reference.
func (ts *TextureSystem) Get(name string) (*vulkan.Texture, bool) {
	if t, ok := ts.defaults[name]; ok {
		return t, true
	}
	if ref, ok := ts.registered[name]; ok {
		return ref.texture, true
	}
	return nil, false
}

// Count returns the number of live textures, defaults included.
func (ts *TextureSystem) Count() int {
	return ts.handles.Len()
}

func (ts *TextureSystem) GetDefaultTexture() *vulkan.Texture {
	return ts.defaults[DefaultTextureName]
}

func (ts *TextureSystem) GetDefaultDiffuseTexture() *vulkan.Texture {
	return ts.defaults[DefaultDiffuseTextureName]
}

func (ts *TextureSystem) GetDefaultSpecularTexture() *vulkan.Texture {
	return ts.defaults[DefaultSpecularTextureName]
}

func (ts *TextureSystem) GetDefaultNormalTexture() *vulkan.Texture {
	return ts.defaults[DefaultNormalTextureName]
}

// Shutdown destroys every texture, defaults included.
func (ts *TextureSystem) Shutdown() error {
	var err error
	for name, ref := range ts.registered {
		err = errors.CombineErrors(err, ref.texture.Destroy())
		delete(ts.registered, name)
	}
	for name, t := range ts.defaults {
		err = errors.CombineErrors(err, t.Destroy())
		delete(ts.defaults, name)
	}
	return err
}
