// splatview renders a gaussian splat point cloud interactively.
//
//	splatview -scene scene.ply [-settings viewer.json] [-debug]
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/app"
	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/core"
	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/ply"
)

func init() {
	// GLFW event handling must run on the main OS thread.
	runtime.LockOSThread()
}

func main() {
	scenePath := flag.String("scene", "", "path to a .ply splat scene")
	settingsPath := flag.String("settings", "", "path to a viewer settings JSON")
	debug := flag.Bool("debug", false, "enable debug logging")
	width := flag.Int("width", 1280, "window width")
	height := flag.Int("height", 720, "window height")
	flag.Parse()

	log := core.NewDefaultLogger("splatview", *debug)

	settings := app.DefaultSettings()
	if *settingsPath != "" {
		var err error
		settings, err = app.LoadSettings(*settingsPath)
		if err != nil {
			log.Warnf("%v, using defaults", err)
		}
	}

	viewer, err := app.New(app.Config{
		WindowWidth:  *width,
		WindowHeight: *height,
		WindowTitle:  "splatview",
		Settings:     settings,
		Logger:       log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "splatview: %v\n", err)
		os.Exit(1)
	}

	if *scenePath != "" {
		data, err := os.ReadFile(*scenePath)
		if err != nil {
			log.Errorf("read scene: %v", err)
			os.Exit(1)
		}
		cloud, err := ply.Decode(data, log)
		if err != nil {
			log.Errorf("decode scene: %v", err)
			os.Exit(1)
		}
		if err := viewer.LoadScene(cloud); err != nil {
			log.Errorf("load scene: %v", err)
		}
	}

	if err := viewer.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "splatview: %v\n", err)
		os.Exit(1)
	}
}
