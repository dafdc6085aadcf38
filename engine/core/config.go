package core

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	// Number of frames the GPU may still be consuming. Staging buffers are
	// retired for this many frames before being freed.
	FramesInFlight uint32 `toml:"frames_in_flight"`
	// Capacity of the shader-visible texture handle table.
	MaxTextures uint32 `toml:"max_textures"`
	// "nearest" or "linear".
	DefaultMipFilter string `toml:"default_mip_filter"`
	GenerateMips     bool   `toml:"generate_mips"`
}

type AssetsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type Config struct {
	Log      LogConfig      `toml:"log"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Renderer: RendererConfig{
			FramesInFlight:   2,
			MaxTextures:      1024,
			DefaultMipFilter: "linear",
			GenerateMips:     true,
		},
		Assets: AssetsConfig{
			Dir:   "assets/textures",
			Watch: true,
		},
	}
}

// LoadConfig reads a TOML config file on top of the defaults. A missing file
// is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogWarn("config file '%s' not found, using defaults", path)
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "decoding config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Renderer.FramesInFlight == 0 {
		return errors.New("renderer.frames_in_flight must be > 0")
	}
	if c.Renderer.MaxTextures == 0 {
		return errors.New("renderer.max_textures must be > 0")
	}
	switch c.Renderer.DefaultMipFilter {
	case "nearest", "linear":
	default:
		return errors.Newf("renderer.default_mip_filter must be nearest or linear, got %q", c.Renderer.DefaultMipFilter)
	}
	return nil
}
