package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PickRay unprojects a screen point to a world-space ray: inverse projection
// into view space with perspective divide, then inverse view into world.
func (c *OrbitCamera) PickRay(mouseX, mouseY float64, width, height int) (origin, dir mgl32.Vec3) {
	nx := (2.0*float32(mouseX))/float32(width) - 1.0
	ny := 1.0 - (2.0*float32(mouseY))/float32(height)

	invProj := c.ProjMatrix().Inv()
	pView := invProj.Mul4x1(mgl32.Vec4{nx, ny, -1, 1})
	if pView.W() != 0 {
		pView = pView.Mul(1.0 / pView.W())
	}
	dirView := mgl32.Vec3{pView.X(), pView.Y(), pView.Z()}.Normalize()

	invView := c.ViewMatrix().Inv()
	dirWorld := invView.Mul4x1(dirView.Vec4(0)).Vec3().Normalize()
	return c.Position, dirWorld
}

// FocusPick finds the splat closest along the pick ray whose center lies
// within hitRadius of the ray, and returns its index. Brute force over all
// positions; a per-click cost, never a per-frame one.
func (c *OrbitCamera) FocusPick(cloud *SplatCloud, mouseX, mouseY float64, width, height int, hitRadius float32) (int, bool) {
	if cloud.Count() == 0 {
		return 0, false
	}
	origin, dir := c.PickRay(mouseX, mouseY, width, height)

	best := -1
	bestT := float32(math.Inf(1))
	for i, p := range cloud.Positions {
		rel := p.Sub(origin)
		t := rel.Dot(dir)
		if t <= 0 || t >= bestT {
			continue
		}
		perp := rel.Sub(dir.Mul(t)).Len()
		if perp <= hitRadius {
			best = i
			bestT = t
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}
