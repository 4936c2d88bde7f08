package export

import (
	"fmt"

	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/core"
	"github.com/google/uuid"
)

// Phase is the export job's tagged state. Transitions happen only on
// explicit start, per-frame GPU completion, and explicit cancel/finish —
// never anywhere else.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseExporting
	PhaseDone
	PhaseCancelled
	PhaseFailed
)

// Options fixes an export run: frame geometry, timing, and length.
type Options struct {
	Width       int
	Height      int
	FPS         float64
	TotalFrames int
}

// Job sequences one export run. At most one frame is in flight at a time:
// BeginFrame gates rendering the next capture, CompleteFrame is invoked from
// the GPU completion path and advances the run. A completion arriving after
// Cancel is dropped, since the in-flight GPU callback may legally outlive
// the cancellation.
type Job struct {
	ID   string
	opts Options
	sink FrameSink
	log  core.Logger

	phase    Phase
	frame    int
	inFlight bool
	err      error
}

func NewJob(opts Options, sink FrameSink, log core.Logger) (*Job, error) {
	if opts.TotalFrames <= 0 {
		return nil, fmt.Errorf("export: total frames must be positive, got %d", opts.TotalFrames)
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("export: fps must be positive, got %g", opts.FPS)
	}
	if sink == nil {
		return nil, fmt.Errorf("export: nil sink")
	}
	return &Job{
		ID:    uuid.NewString(),
		opts:  opts,
		sink:  sink,
		log:   core.OrNop(log),
		phase: PhaseIdle,
	}, nil
}

func (j *Job) Phase() Phase     { return j.phase }
func (j *Job) Options() Options { return j.opts }
func (j *Job) Err() error       { return j.err }

// Active reports whether frames still need rendering.
func (j *Job) Active() bool { return j.phase == PhaseExporting }

// Frame is the next frame index to render.
func (j *Job) Frame() int { return j.frame }

// PTS is the presentation timestamp of the current frame.
func (j *Job) PTS() float64 { return float64(j.frame) / j.opts.FPS }

func (j *Job) Start() {
	if j.phase != PhaseIdle {
		return
	}
	j.phase = PhaseExporting
	j.frame = 0
	j.log.Infof("export %s: %d frames at %dx%d, %g fps",
		j.ID, j.opts.TotalFrames, j.opts.Width, j.opts.Height, j.opts.FPS)
}

// BeginFrame claims the single in-flight slot. Returns false while the
// previous frame's completion has not run yet, or when the job is not
// exporting; the caller skips encoding a capture in that case.
func (j *Job) BeginFrame() bool {
	if j.phase != PhaseExporting || j.inFlight {
		return false
	}
	j.inFlight = true
	return true
}

// CompleteFrame commits one captured frame. Runs from the GPU completion
// path, never inline with submission. Appending failure fails the whole job
// so the viewer never sits in export mode against a broken sink.
func (j *Job) CompleteFrame(pix []byte, width, height int) error {
	if j.phase != PhaseExporting {
		// Stale completion after cancel; drop it.
		return nil
	}
	if !j.inFlight {
		return fmt.Errorf("export %s: completion without a frame in flight", j.ID)
	}

	pts := j.PTS()
	if err := j.sink.AppendFrame(pix, width, height, pts); err != nil {
		j.phase = PhaseFailed
		j.inFlight = false
		j.err = fmt.Errorf("export %s: frame %d: %w", j.ID, j.frame, err)
		return j.err
	}

	j.frame++
	j.inFlight = false

	if j.frame >= j.opts.TotalFrames {
		if err := j.sink.Finish(); err != nil {
			j.phase = PhaseFailed
			j.err = fmt.Errorf("export %s: finish: %w", j.ID, err)
			return j.err
		}
		j.phase = PhaseDone
		j.log.Infof("export %s: finished %d frames", j.ID, j.frame)
	}
	return nil
}

// Fail aborts the run with an error raised outside the sink path, such as a
// readback that never mapped. The in-flight slot is released so the run can
// retire; a later stale completion is dropped like after Cancel.
func (j *Job) Fail(err error) {
	if j.phase != PhaseExporting {
		return
	}
	j.phase = PhaseFailed
	j.inFlight = false
	j.err = fmt.Errorf("export %s: frame %d: %w", j.ID, j.frame, err)
	j.log.Errorf("%v", j.err)
}

// Cancel aborts the run. Safe to call in any phase; a later in-flight
// completion is tolerated and ignored.
func (j *Job) Cancel() {
	if j.phase != PhaseExporting {
		return
	}
	j.phase = PhaseCancelled
	j.inFlight = false
	j.log.Infof("export %s: cancelled at frame %d", j.ID, j.frame)
}
