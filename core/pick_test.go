package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pickCamera() *OrbitCamera {
	c := NewOrbitCamera()
	c.Aspect = 1
	return c
}

func TestPickRayThroughCenter(t *testing.T) {
	c := pickCamera()
	origin, dir := c.PickRay(400, 300, 800, 600)
	assert.Equal(t, c.Position, origin)
	assertVec3Near(t, mgl32.Vec3{0, 0, -1}, dir, 1e-4)
}

func TestPickRayOffCenterLeansOut(t *testing.T) {
	c := pickCamera()
	_, dir := c.PickRay(700, 300, 800, 600)
	assert.Greater(t, dir.X(), float32(0))
	assert.Less(t, dir.Z(), float32(0))
	assert.InDelta(t, 1.0, dir.Len(), 1e-5)
}

func TestFocusPickNearestAlongRay(t *testing.T) {
	c := pickCamera()
	cloud := NewSplatCloud(3)
	cloud.Append(Splat{Position: mgl32.Vec3{0, 0, -10}}) // behind the near one
	cloud.Append(Splat{Position: mgl32.Vec3{0, 0, 0}})
	cloud.Append(Splat{Position: mgl32.Vec3{50, 0, 0}}) // off the ray

	idx, ok := c.FocusPick(cloud, 400, 300, 800, 600, 0.2)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestFocusPickIgnoresSplatsBehindCamera(t *testing.T) {
	c := pickCamera()
	cloud := NewSplatCloud(1)
	cloud.Append(Splat{Position: mgl32.Vec3{0, 0, 20}}) // behind the eye at z=5

	_, ok := c.FocusPick(cloud, 400, 300, 800, 600, 0.5)
	assert.False(t, ok)
}

func TestFocusPickMissesOutsideRadius(t *testing.T) {
	c := pickCamera()
	cloud := NewSplatCloud(1)
	cloud.Append(Splat{Position: mgl32.Vec3{1, 0, 0}})

	_, ok := c.FocusPick(cloud, 400, 300, 800, 600, 0.2)
	assert.False(t, ok)

	idx, ok := c.FocusPick(cloud, 400, 300, 800, 600, 1.5)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestFocusPickEmptyCloud(t *testing.T) {
	c := pickCamera()
	_, ok := c.FocusPick(NewSplatCloud(0), 400, 300, 800, 600, 1)
	assert.False(t, ok)
}
