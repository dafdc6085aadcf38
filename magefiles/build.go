//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the texel binary into bin/.
func (Build) Binary() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/texel", "."), withStream())
	return err
}

// Regenerates the gomock mocks.
func (Build) Mocks() error {
	_, err := executeCmd("go", withArgs("generate", "./..."), withStream())
	return err
}
