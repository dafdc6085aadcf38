//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the uploader against texel.toml with validation layers on.
func (Run) Demo() error {
	fmt.Println("Run texel...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "texel.toml", "-debug"), withStream()); err != nil {
		return err
	}
	return nil
}
