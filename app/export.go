package app

import (
	"fmt"
	"os"

	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/export"
	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// exportRun ties one export job to its capture target for the duration of
// a run. The camera pose from before the export is restored afterwards.
type exportRun struct {
	job     *export.Job
	capture *gpu.CaptureTarget
	sink    export.FrameSink

	savedPosition mgl32.Vec3
	savedTarget   mgl32.Vec3
	savedUp       mgl32.Vec3
}

// StartExport begins rendering the keyframe track into dir as a PNG
// sequence at the requested resolution and fps. The live loop keeps showing
// frames while the export runs; only one export can be active.
func (v *Viewer) StartExport(dir string, width, height int, fps float64, totalFrames int) error {
	if v.exp != nil {
		return fmt.Errorf("export already running")
	}
	if !v.renderer.Ready() {
		return fmt.Errorf("no render pipeline, cannot export")
	}
	if totalFrames <= 0 {
		totalFrames = v.playback.Total
	}
	if fps <= 0 {
		fps = v.playback.FPS
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export dir: %w", err)
	}

	sink := &export.PNGSequenceSink{Dir: dir}
	job, err := export.NewJob(export.Options{
		Width:       width,
		Height:      height,
		FPS:         fps,
		TotalFrames: totalFrames,
	}, sink, v.log)
	if err != nil {
		return err
	}

	liveW, liveH := v.win.GetFramebufferSize()
	capture, err := gpu.NewCaptureTarget(v.ctx, width, height,
		v.renderer.SceneView(), v.renderer.Sampler(), liveW, liveH)
	if err != nil {
		return err
	}

	run := &exportRun{job: job, capture: capture, sink: sink}
	cam := v.camera
	run.savedPosition = cam.Position
	run.savedTarget = cam.Target
	run.savedUp = cam.Up

	job.Start()
	v.exp = run
	v.requestRedraw()
	return nil
}

// wantCapture claims the in-flight slot for the frame about to be rendered.
func (e *exportRun) wantCapture() bool {
	if e.capture.Busy() {
		return false
	}
	return e.job.BeginFrame()
}

// stepExport resolves finished readbacks and retires the run. Called every
// loop tick; frame advancement only ever happens inside the capture's
// completion path, never at submission.
func (v *Viewer) stepExport() {
	if v.exp == nil {
		return
	}
	run := v.exp

	if err := run.capture.Resolve(func(pix []byte, width, height int) {
		if err := run.job.CompleteFrame(pix, width, height); err != nil {
			v.log.Errorf("%v", err)
		}
	}); err != nil {
		// The frame in flight will never land; abort rather than wait on it.
		run.job.Fail(err)
	}

	if run.job.Active() || run.capture.Busy() {
		return
	}

	// Run is over (done, cancelled, or failed) and nothing is in flight.
	run.capture.Release()
	cam := v.camera
	cam.Position = run.savedPosition
	cam.Target = run.savedTarget
	cam.Up = run.savedUp
	v.exp = nil
	v.applyPendingResize()

	switch run.job.Phase() {
	case export.PhaseDone:
		v.log.Infof("export complete")
	case export.PhaseCancelled:
		v.log.Infof("export cancelled")
	case export.PhaseFailed:
		v.log.Errorf("export failed: %v", run.job.Err())
	}
	v.requestRedraw()
}

func (v *Viewer) cancelExport() {
	if v.exp == nil {
		return
	}
	v.exp.job.Cancel()
}
