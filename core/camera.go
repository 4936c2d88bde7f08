package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	rotateSensitivity = 0.003
	zoomFactor        = 0.05
	panFactor         = 0.001

	baseMoveSpeed = 1.5 // world units per second, scaled by orbit radius
	baseTurnSpeed = 1.2 // radians per second
)

var DefaultUp = mgl32.Vec3{0, 1, 0}

// MoveKeys is the per-frame translation/rotation key state fed to Update.
type MoveKeys struct {
	Forward, Back bool
	Left, Right   bool
	Up, Down      bool
	YawLeft       bool
	YawRight      bool
	PitchUp       bool
	PitchDown     bool
	RollLeft      bool
	RollRight     bool
}

// OrbitCamera is the single camera of the renderer: an orbit rig around a
// target (or an explicit pivot) that can also fly first-person.
type OrbitCamera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3

	FovDeg float32
	Near   float32
	Far    float32
	Aspect float32

	// Pivot overrides Target as the rotation center when set (click-to-focus).
	Pivot *mgl32.Vec3

	MinRadius float32

	homePosition mgl32.Vec3
	homeTarget   mgl32.Vec3
}

func NewOrbitCamera() *OrbitCamera {
	c := &OrbitCamera{
		Position:  mgl32.Vec3{0, 0, 5},
		Target:    mgl32.Vec3{0, 0, 0},
		Up:        DefaultUp,
		FovDeg:    60,
		Near:      0.01,
		Far:       1000,
		Aspect:    16.0 / 9.0,
		MinRadius: 0.01,
	}
	c.SetHome()
	return c
}

func (c *OrbitCamera) Radius() float32 {
	return c.Position.Sub(c.Target).Len()
}

func (c *OrbitCamera) Forward() mgl32.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}

func (c *OrbitCamera) right() mgl32.Vec3 {
	return c.Forward().Cross(c.Up).Normalize()
}

// SetHome captures the current pose as the reset state. Called at scene load.
func (c *OrbitCamera) SetHome() {
	c.homePosition = c.Position
	c.homeTarget = c.Target
}

// Reset restores the pose captured at load time. Up is forced back to the
// world default; any focus pivot is dropped.
func (c *OrbitCamera) Reset() {
	c.Position = c.homePosition
	c.Target = c.homeTarget
	c.Up = DefaultUp
	c.Pivot = nil
}

// Zoom scales the orbit radius multiplicatively and repositions the camera
// along the current view direction. The radius never drops below MinRadius.
func (c *OrbitCamera) Zoom(delta, speed float32) {
	forward := c.Forward()
	radius := c.Radius()
	radius -= delta * radius * zoomFactor * speed
	if radius < c.MinRadius {
		radius = c.MinRadius
	}
	c.Position = c.Target.Sub(forward.Mul(radius))
}

func (c *OrbitCamera) pivotPoint() mgl32.Vec3 {
	if c.Pivot != nil {
		return *c.Pivot
	}
	return c.Target
}

// Rotate orbits position and target together around the pivot. dx drives yaw
// about the world up axis, dy drives pitch about the camera's local right.
func (c *OrbitCamera) Rotate(dx, dy, speed float32) {
	pivot := c.pivotPoint()

	yaw := mgl32.QuatRotate(-dx*rotateSensitivity*speed, DefaultUp)
	pitch := mgl32.QuatRotate(-dy*rotateSensitivity*speed, c.right())
	rot := pitch.Mul(yaw)

	c.Position = pivot.Add(rot.Rotate(c.Position.Sub(pivot)))
	c.Target = pivot.Add(rot.Rotate(c.Target.Sub(pivot)))
	c.Up = rot.Rotate(c.Up).Normalize()
}

// Pan translates position, target, and pivot along the camera's right/up
// axes. The offset scales with the orbit radius so panning feels the same
// for room-sized and city-sized scenes.
func (c *OrbitCamera) Pan(dx, dy, speed float32) {
	right := c.right()
	up := right.Cross(c.Forward()).Normalize()
	radius := c.Radius()

	offset := right.Mul(-dx * radius * panFactor * speed).
		Add(up.Mul(dy * radius * panFactor * speed))

	c.Position = c.Position.Add(offset)
	c.Target = c.Target.Add(offset)
	if c.Pivot != nil {
		p := c.Pivot.Add(offset)
		c.Pivot = &p
	}
}

// Update integrates first-person fly controls for one frame. Translation
// moves position and target together; yaw/pitch/roll rotate the view in
// place. boost doubles all speeds while held.
func (c *OrbitCamera) Update(dt float32, keys MoveKeys, boost bool, speedMul float32) {
	if dt <= 0 {
		return
	}
	speed := speedMul
	if speed <= 0 {
		speed = 1
	}
	if boost {
		speed *= 2
	}

	forward := c.Forward()
	right := c.right()
	up := right.Cross(forward).Normalize()

	move := mgl32.Vec3{}
	if keys.Forward {
		move = move.Add(forward)
	}
	if keys.Back {
		move = move.Sub(forward)
	}
	if keys.Right {
		move = move.Add(right)
	}
	if keys.Left {
		move = move.Sub(right)
	}
	if keys.Up {
		move = move.Add(up)
	}
	if keys.Down {
		move = move.Sub(up)
	}
	if move.Len() > 0 {
		step := move.Normalize().Mul(baseMoveSpeed * c.Radius() * speed * dt)
		c.Position = c.Position.Add(step)
		c.Target = c.Target.Add(step)
	}

	var yaw, pitch, roll float32
	if keys.YawLeft {
		yaw += baseTurnSpeed * speed * dt
	}
	if keys.YawRight {
		yaw -= baseTurnSpeed * speed * dt
	}
	if keys.PitchUp {
		pitch += baseTurnSpeed * speed * dt
	}
	if keys.PitchDown {
		pitch -= baseTurnSpeed * speed * dt
	}
	if keys.RollLeft {
		roll += baseTurnSpeed * speed * dt
	}
	if keys.RollRight {
		roll -= baseTurnSpeed * speed * dt
	}

	if yaw != 0 || pitch != 0 {
		rot := mgl32.QuatRotate(pitch, right).Mul(mgl32.QuatRotate(yaw, up))
		dir := rot.Rotate(c.Target.Sub(c.Position))
		c.Target = c.Position.Add(dir)
		c.Up = rot.Rotate(c.Up).Normalize()
	}
	if roll != 0 {
		c.Up = mgl32.QuatRotate(roll, c.Forward()).Rotate(c.Up).Normalize()
	}
}

func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, c.Up)
}

func (c *OrbitCamera) ProjMatrix() mgl32.Mat4 {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FovDeg), aspect, c.Near, c.Far)
}

// Focus sets the orbit pivot without changing the current view direction.
func (c *OrbitCamera) Focus(point mgl32.Vec3) {
	p := point
	c.Pivot = &p
}

// Frame positions the camera to view the whole scene box and derives
// near/far from its scale, so wildly different scene sizes neither clip
// nor z-fight. The resulting pose becomes the new home state.
func (c *OrbitCamera) Frame(b AABB) {
	diag := b.Diagonal()
	if diag <= 0 {
		diag = 1
	}
	c.Target = b.Center()
	c.Position = c.Target.Add(mgl32.Vec3{0, 0, diag * 1.2})
	c.Up = DefaultUp
	c.Near = diag * 0.001
	c.Far = diag * 25
	c.MinRadius = diag * 0.002
	c.Pivot = nil
	c.SetHome()
}
