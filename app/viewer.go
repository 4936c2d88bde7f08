// Package app is the interactive viewer shell around the renderer core:
// window, input, the demand-driven frame loop, animation playback, and
// export orchestration.
package app

import (
	"fmt"

	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/core"
	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/gpu"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type Config struct {
	WindowWidth  int
	WindowHeight int
	WindowTitle  string
	Settings     Settings
	Logger       core.Logger
}

// Playback mirrors the animation collaborator's transport state.
type Playback struct {
	Playing bool
	Frame   float32
	Total   int
	FPS     float64
}

// Viewer owns the window, the camera, and the renderer, and runs the
// demand-driven frame loop: idle until input or playback/export needs a
// frame, never a fixed background tick.
type Viewer struct {
	win      *glfw.Window
	ctx      *gpu.Context
	renderer *gpu.Renderer
	camera   *core.OrbitCamera
	cloud    *core.SplatCloud
	log      core.Logger

	settings Settings

	keyframes []core.Keyframe
	playback  Playback

	moveKeys  core.MoveKeys
	shiftHeld bool

	lastCursorX float64
	lastCursorY float64
	dragButton  glfw.MouseButton

	dirty    bool
	lastTime float64

	exp *exportRun

	// Resize arriving mid-export is held back until the run retires; the
	// capture target is bound to the current scene texture.
	resizePending  bool
	pendingResizeW int
	pendingResizeH int
}

// New creates the window and GPU context. Must run on the main thread; the
// caller locks it (see cmd/splatview).
func New(cfg Config) (*Viewer, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	width, height := cfg.WindowWidth, cfg.WindowHeight
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	title := cfg.WindowTitle
	if title == "" {
		title = "splatview"
	}

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}

	log := core.OrNop(cfg.Logger)
	ctx, err := gpu.NewContext(win)
	if err != nil {
		win.Destroy()
		glfw.Terminate()
		return nil, err
	}

	// A failed pipeline leaves a renderer that draws nothing; the viewer
	// stays up so the failure is visible once in the log, not a crash loop.
	renderer, err := gpu.NewRenderer(ctx, log)
	if err != nil {
		log.Errorf("running without a splat pipeline: %v", err)
	}

	settings := cfg.Settings
	if settings == (Settings{}) {
		settings = DefaultSettings()
	}

	camera := core.NewOrbitCamera()
	camera.FovDeg = settings.FovDeg
	camera.Aspect = float32(width) / float32(height)

	v := &Viewer{
		win:        win,
		ctx:        ctx,
		renderer:   renderer,
		camera:     camera,
		log:        log,
		settings:   settings,
		dragButton: -1,
		dirty:      true,
	}
	v.installCallbacks()
	return v, nil
}

// LoadScene swaps in a new splat cloud. Buffers are replaced as one set and
// the camera is framed to the new bounds, which also becomes its home pose.
func (v *Viewer) LoadScene(cloud *core.SplatCloud) error {
	bounds := core.Bounds(cloud)
	if err := v.renderer.SetScene(cloud); err != nil {
		// A failed upload leaves the previous scene renderable.
		return err
	}
	v.camera.Frame(bounds)
	v.cloud = cloud
	v.log.Infof("scene: %d splats, bounds %v .. %v", cloud.Count(), bounds.Min, bounds.Max)
	v.requestRedraw()
	return nil
}

// SetKeyframes installs the animation collaborator's camera track.
func (v *Viewer) SetKeyframes(frames []core.Keyframe, total int, fps float64) {
	v.keyframes = frames
	v.playback.Total = total
	v.playback.FPS = fps
	v.playback.Frame = 0
}

func (v *Viewer) Camera() *core.OrbitCamera { return v.camera }

func (v *Viewer) requestRedraw() {
	v.dirty = true
	glfw.PostEmptyEvent()
}

// animating reports whether the loop must keep ticking instead of blocking.
func (v *Viewer) animating() bool {
	return v.playback.Playing || v.exp != nil || v.anyMoveKey()
}

// Run is the frame loop. Blocks in WaitEvents while idle; input callbacks
// and PostEmptyEvent wake it.
func (v *Viewer) Run() error {
	v.lastTime = glfw.GetTime()
	for !v.win.ShouldClose() {
		if v.animating() {
			glfw.PollEvents()
		} else {
			glfw.WaitEvents()
		}

		now := glfw.GetTime()
		dt := float32(now - v.lastTime)
		v.lastTime = now

		v.update(dt)

		if v.dirty || v.animating() {
			v.dirty = false
			if err := v.renderFrame(); err != nil {
				v.log.Errorf("frame: %v", err)
			}
		}

		v.stepExport()
	}
	v.shutdown()
	return nil
}

func (v *Viewer) update(dt float32) {
	v.camera.FovDeg = v.settings.FovDeg

	if v.exp != nil {
		// Export owns the camera: pose it for the frame the next capture
		// records, before that frame renders. Live input is ignored until
		// the run ends.
		if v.exp.job.Active() {
			v.applyKeyframes(float32(v.exp.job.Frame()))
		}
		return
	}

	if v.anyMoveKey() {
		v.camera.Update(dt, v.moveKeys, v.shiftHeld, v.settings.SpeedMultiplier)
	}

	if v.playback.Playing && v.playback.Total > 0 {
		v.playback.Frame += dt * float32(v.playback.FPS)
		if v.playback.Frame >= float32(v.playback.Total) {
			v.playback.Frame = 0
		}
		v.applyKeyframes(v.playback.Frame)
	}
}

func (v *Viewer) applyKeyframes(frame float32) {
	pos, target, up, ok := core.CameraAt(v.keyframes, frame)
	if !ok {
		return
	}
	v.camera.Position = pos
	v.camera.Target = target
	v.camera.Up = up
}

func (v *Viewer) renderFrame() error {
	var capture *gpu.CaptureTarget
	if v.exp != nil && v.exp.wantCapture() {
		capture = v.exp.capture
	}
	return v.renderer.RenderFrame(v.camera, capture)
}

func (v *Viewer) shutdown() {
	if v.exp != nil {
		v.cancelExport()
		// Drain the in-flight readback before tearing down the device.
		for v.exp != nil {
			v.stepExport()
		}
	}
	v.renderer.Release()
	v.ctx.Release()
	v.win.Destroy()
	glfw.Terminate()
}
