package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned bounding box over splat centers.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Diagonal() float32 {
	return b.Max.Sub(b.Min).Len()
}

// Bounds computes the AABB of all splat positions. An empty cloud yields a
// unit box around the origin so camera framing stays well defined.
func Bounds(c *SplatCloud) AABB {
	if c.Count() == 0 {
		return AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	}
	min := c.Positions[0]
	max := c.Positions[0]
	for _, p := range c.Positions[1:] {
		for k := 0; k < 3; k++ {
			if p[k] < min[k] {
				min[k] = p[k]
			}
			if p[k] > max[k] {
				max[k] = p[k]
			}
		}
	}
	return AABB{Min: min, Max: max}
}
