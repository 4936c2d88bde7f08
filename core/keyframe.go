package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Keyframe is a camera pose pinned to an animation frame. The list is owned
// by the animation collaborator and consumed read-only here, sorted by Frame.
type Keyframe struct {
	Frame    int
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
}

func lerp(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// CameraAt interpolates the camera pose at a fractional frame position.
// Queries outside the keyframe range clamp to the boundary keyframe. The up
// vector is lerped and renormalized; good for the dense keyframes the
// animation UI produces, wrong for near-180 degree twists between sparse ones.
// Returns ok=false when there are no keyframes, leaving the live camera alone.
func CameraAt(frames []Keyframe, frame float32) (pos, target, up mgl32.Vec3, ok bool) {
	if len(frames) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{}, false
	}
	first := frames[0]
	if frame <= float32(first.Frame) {
		return first.Position, first.Target, first.Up.Normalize(), true
	}
	last := frames[len(frames)-1]
	if frame >= float32(last.Frame) {
		return last.Position, last.Target, last.Up.Normalize(), true
	}

	// Find the bounding pair. Lists are short (hand-placed keyframes).
	for i := 1; i < len(frames); i++ {
		hi := frames[i]
		if frame > float32(hi.Frame) {
			continue
		}
		lo := frames[i-1]
		if frame == float32(hi.Frame) {
			return hi.Position, hi.Target, hi.Up.Normalize(), true
		}
		t := (frame - float32(lo.Frame)) / float32(hi.Frame-lo.Frame)
		pos = lerp(lo.Position, hi.Position, t)
		target = lerp(lo.Target, hi.Target, t)
		up = lerp(lo.Up, hi.Up, t).Normalize()
		return pos, target, up, true
	}
	return last.Position, last.Target, last.Up.Normalize(), true
}
