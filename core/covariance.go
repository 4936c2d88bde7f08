package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CPU mirror of the covariance math in shaders/splat.wgsl. Kept in lockstep
// with the WGSL so the projection is testable without a device.

// CovEpsilon is added to both diagonal terms of the projected covariance to
// keep it positive definite for near-planar splats.
const CovEpsilon = 0.3

// BuildCov3D computes the 3D covariance R*S*S^T*R^T from a scalar-first
// quaternion (normalized here) and linear scales.
func BuildCov3D(scale mgl32.Vec3, rotation mgl32.Vec4) mgl32.Mat3 {
	q := mgl32.Quat{W: rotation[0], V: mgl32.Vec3{rotation[1], rotation[2], rotation[3]}}
	if q.Len() == 0 {
		q = mgl32.QuatIdent()
	} else {
		q = q.Normalize()
	}
	r := q.Mat4().Mat3()
	s := mgl32.Diag3(scale)
	m := r.Mul3(s)
	return m.Mul3(m.Transpose())
}

// ProjectCov2D projects a 3D covariance through the first-order Taylor
// expansion of the perspective projection at camPos (the splat position in
// view space), using pixel-space focal lengths. The stabilizing epsilon is
// already added to the returned 2x2.
func ProjectCov2D(cov3 mgl32.Mat3, camPos mgl32.Vec3, view mgl32.Mat4, focalX, focalY float32) mgl32.Mat2 {
	z := camPos.Z()
	invZ := 1.0 / z
	j := mgl32.Mat3FromCols(
		mgl32.Vec3{focalX * invZ, 0, 0},
		mgl32.Vec3{0, focalY * invZ, 0},
		mgl32.Vec3{-focalX * camPos.X() * invZ * invZ, -focalY * camPos.Y() * invZ * invZ, 0},
	)
	w := view.Mat3()
	t := j.Mul3(w)
	cov := t.Mul3(cov3).Mul3(t.Transpose())

	return mgl32.Mat2{
		cov.At(0, 0) + CovEpsilon, cov.At(1, 0),
		cov.At(0, 1), cov.At(1, 1) + CovEpsilon,
	}
}

// Eigenvalues2 returns the eigenvalues of a symmetric 2x2, largest first.
func Eigenvalues2(m mgl32.Mat2) (float32, float32) {
	a, b, c := m.At(0, 0), m.At(0, 1), m.At(1, 1)
	mid := 0.5 * (a + c)
	det := a*c - b*b
	d := float32(math.Sqrt(math.Max(0, float64(mid*mid-det))))
	return mid + d, mid - d
}

// QuadRadiusPixels is the 3-sigma half extent of the screen-space quad.
func QuadRadiusPixels(l1, l2 float32) float32 {
	m := l1
	if l2 > m {
		m = l2
	}
	return float32(math.Ceil(3 * math.Sqrt(float64(m))))
}

// Conic inverts the 2x2 covariance for per-pixel gaussian evaluation.
// Returns (xx, xy, yy) and false when the determinant is not positive.
func Conic(m mgl32.Mat2) (mgl32.Vec3, bool) {
	det := m.Det()
	if det <= 0 {
		return mgl32.Vec3{}, false
	}
	inv := 1.0 / det
	return mgl32.Vec3{m.At(1, 1) * inv, -m.At(0, 1) * inv, m.At(0, 0) * inv}, true
}

// FocalPixels derives pixel-space focal lengths from a projection matrix and
// viewport size, as the vertex stage does.
func FocalPixels(proj mgl32.Mat4, width, height int) (float32, float32) {
	return proj.At(0, 0) * float32(width) / 2, proj.At(1, 1) * float32(height) / 2
}
