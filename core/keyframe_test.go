package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoKeyframes() []Keyframe {
	return []Keyframe{
		{Frame: 0, Position: mgl32.Vec3{0, 0, 10}, Target: mgl32.Vec3{0, 0, 0}, Up: mgl32.Vec3{0, 1, 0}},
		{Frame: 10, Position: mgl32.Vec3{10, 0, 10}, Target: mgl32.Vec3{10, 0, 0}, Up: mgl32.Vec3{0, 1, 0}},
	}
}

func TestCameraAtMidpoint(t *testing.T) {
	pos, target, up, ok := CameraAt(twoKeyframes(), 5)
	require.True(t, ok)
	assertVec3Near(t, mgl32.Vec3{5, 0, 10}, pos, 1e-6)
	assertVec3Near(t, mgl32.Vec3{5, 0, 0}, target, 1e-6)
	assertVec3Near(t, mgl32.Vec3{0, 1, 0}, up, 1e-6)
}

func TestCameraAtClampsOutsideRange(t *testing.T) {
	frames := twoKeyframes()

	pos, _, _, ok := CameraAt(frames, -5)
	require.True(t, ok)
	assertVec3Near(t, frames[0].Position, pos, 1e-6)

	pos, _, _, ok = CameraAt(frames, 15)
	require.True(t, ok)
	assertVec3Near(t, frames[1].Position, pos, 1e-6)
}

func TestCameraAtExactKeyframe(t *testing.T) {
	frames := []Keyframe{
		{Frame: 0, Position: mgl32.Vec3{0, 0, 1}, Up: DefaultUp},
		{Frame: 4, Position: mgl32.Vec3{4, 0, 1}, Up: DefaultUp},
		{Frame: 10, Position: mgl32.Vec3{1, 2, 3}, Up: DefaultUp},
	}
	pos, _, _, ok := CameraAt(frames, 4)
	require.True(t, ok)
	assertVec3Near(t, mgl32.Vec3{4, 0, 1}, pos, 1e-6)
}

func TestCameraAtFractionalFrame(t *testing.T) {
	pos, _, _, ok := CameraAt(twoKeyframes(), 2.5)
	require.True(t, ok)
	assert.InDelta(t, 2.5, pos.X(), 1e-5)
}

func TestCameraAtMultipleSegments(t *testing.T) {
	frames := []Keyframe{
		{Frame: 0, Position: mgl32.Vec3{0, 0, 0}, Up: DefaultUp},
		{Frame: 10, Position: mgl32.Vec3{10, 0, 0}, Up: DefaultUp},
		{Frame: 30, Position: mgl32.Vec3{10, 20, 0}, Up: DefaultUp},
	}
	pos, _, _, ok := CameraAt(frames, 20)
	require.True(t, ok)
	assertVec3Near(t, mgl32.Vec3{10, 10, 0}, pos, 1e-5)
}

func TestCameraAtRenormalizesUp(t *testing.T) {
	frames := []Keyframe{
		{Frame: 0, Up: mgl32.Vec3{0, 1, 0}},
		{Frame: 10, Up: mgl32.Vec3{1, 0, 0}},
	}
	_, _, up, ok := CameraAt(frames, 5)
	require.True(t, ok)
	assert.InDelta(t, 1.0, up.Len(), 1e-5)
}

func TestCameraAtEmpty(t *testing.T) {
	_, _, _, ok := CameraAt(nil, 3)
	assert.False(t, ok)
}

func TestCameraAtSingleKeyframe(t *testing.T) {
	frames := []Keyframe{{Frame: 5, Position: mgl32.Vec3{7, 8, 9}, Up: DefaultUp}}
	for _, frame := range []float32{0, 5, 100} {
		pos, _, _, ok := CameraAt(frames, frame)
		require.True(t, ok)
		assertVec3Near(t, mgl32.Vec3{7, 8, 9}, pos, 1e-6)
	}
}
