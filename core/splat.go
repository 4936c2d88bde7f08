package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Splat is a single anisotropic 3D gaussian primitive.
//
// Rotation is stored scalar-first (W, X, Y, Z), matching the rot_0..rot_3
// field order of the source files. It is kept unnormalized here; the vertex
// stage normalizes before building the rotation matrix.
type Splat struct {
	Position mgl32.Vec3
	Scale    mgl32.Vec3 // linear extents, the loader already applied exp()
	Color    mgl32.Vec3 // [0,1]
	Opacity  float32    // [0,1]
	Rotation mgl32.Vec4 // quaternion, scalar-first
}

// SplatCloud holds a loaded scene as structure-of-arrays, mirroring the GPU
// buffer layout. All slices share one length.
type SplatCloud struct {
	Positions []mgl32.Vec3
	Scales    []mgl32.Vec3
	Colors    []mgl32.Vec3
	Opacities []float32
	Rotations []mgl32.Vec4
}

func NewSplatCloud(capacity int) *SplatCloud {
	return &SplatCloud{
		Positions: make([]mgl32.Vec3, 0, capacity),
		Scales:    make([]mgl32.Vec3, 0, capacity),
		Colors:    make([]mgl32.Vec3, 0, capacity),
		Opacities: make([]float32, 0, capacity),
		Rotations: make([]mgl32.Vec4, 0, capacity),
	}
}

func (c *SplatCloud) Count() int {
	if c == nil {
		return 0
	}
	return len(c.Positions)
}

func (c *SplatCloud) Append(s Splat) {
	c.Positions = append(c.Positions, s.Position)
	c.Scales = append(c.Scales, s.Scale)
	c.Colors = append(c.Colors, s.Color)
	c.Opacities = append(c.Opacities, s.Opacity)
	c.Rotations = append(c.Rotations, s.Rotation)
}

func (c *SplatCloud) At(i int) Splat {
	return Splat{
		Position: c.Positions[i],
		Scale:    c.Scales[i],
		Color:    c.Colors[i],
		Opacity:  c.Opacities[i],
		Rotation: c.Rotations[i],
	}
}

// PaddedCount returns the next power of two >= Count. The sort network only
// operates on power-of-two arrays; slots past Count carry a sentinel key.
func (c *SplatCloud) PaddedCount() int {
	return NextPowerOfTwo(c.Count())
}

func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// PadSentinelKey sorts after any real view-space depth.
var PadSentinelKey = float32(math.Inf(1))

func putVec4(dst []byte, off int, x, y, z, w float32) {
	binary.LittleEndian.PutUint32(dst[off+0:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(dst[off+4:], math.Float32bits(y))
	binary.LittleEndian.PutUint32(dst[off+8:], math.Float32bits(z))
	binary.LittleEndian.PutUint32(dst[off+12:], math.Float32bits(w))
}

// PackPositions serializes positions as vec4 (w unused) for a storage buffer.
func (c *SplatCloud) PackPositions() []byte {
	out := make([]byte, c.Count()*16)
	for i, p := range c.Positions {
		putVec4(out, i*16, p[0], p[1], p[2], 0)
	}
	return out
}

func (c *SplatCloud) PackScales() []byte {
	out := make([]byte, c.Count()*16)
	for i, s := range c.Scales {
		putVec4(out, i*16, s[0], s[1], s[2], 0)
	}
	return out
}

// PackColors serializes rgb with opacity in w.
func (c *SplatCloud) PackColors() []byte {
	out := make([]byte, c.Count()*16)
	for i, col := range c.Colors {
		putVec4(out, i*16, col[0], col[1], col[2], c.Opacities[i])
	}
	return out
}

func (c *SplatCloud) PackRotations() []byte {
	out := make([]byte, c.Count()*16)
	for i, q := range c.Rotations {
		putVec4(out, i*16, q[0], q[1], q[2], q[3])
	}
	return out
}
