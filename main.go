/*
Texel streams the textures of an asset directory to the GPU and keeps them
in sync with the files on disk.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-texel/engine"
	"github.com/spaghettifunk/anima-texel/engine/core"
)

func main() {
	configPath := flag.String("config", "texel.toml", "path to the TOML config file")
	debug := flag.Bool("debug", false, "enable the Vulkan validation layers")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("loading config: %s", err)
	}

	// signal context to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	e, err := engine.New("Texel", cfg, *debug)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(ctx); err != nil {
		core.LogError("initialization failed: %s", err)
		_ = e.Shutdown()
		os.Exit(1)
	}

	// run engine
	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
