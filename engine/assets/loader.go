package assets

import "github.com/spaghettifunk/anima-texel/engine/assets/loaders"

type Loader interface {
	Load(path string, params *loaders.ImageResourceParams) (*loaders.Image, error)
	Unload(*loaders.Image) error
}
