package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var identityQuat = mgl32.Vec4{1, 0, 0, 0}

func TestBuildCov3DIsotropic(t *testing.T) {
	cov := BuildCov3D(mgl32.Vec3{2, 2, 2}, identityQuat)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			want := float32(0)
			if r == c {
				want = 4
			}
			assert.InDelta(t, want, cov.At(r, c), 1e-5, "cov[%d][%d]", r, c)
		}
	}
}

func TestBuildCov3DRotationInvariantForUniformScale(t *testing.T) {
	// A sphere stays a sphere under any rotation.
	q := mgl32.QuatRotate(1.1, mgl32.Vec3{1, 2, 3}.Normalize())
	rot := mgl32.Vec4{q.W, q.V[0], q.V[1], q.V[2]}
	cov := BuildCov3D(mgl32.Vec3{0.5, 0.5, 0.5}, rot)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			want := float32(0)
			if r == c {
				want = 0.25
			}
			assert.InDelta(t, want, cov.At(r, c), 1e-5)
		}
	}
}

func TestBuildCov3DRotationReorientsAnisotropy(t *testing.T) {
	// 90 degree rotation about Z swaps the X and Y extents.
	q := mgl32.QuatRotate(float32(math.Pi/2), mgl32.Vec3{0, 0, 1})
	rot := mgl32.Vec4{q.W, q.V[0], q.V[1], q.V[2]}
	cov := BuildCov3D(mgl32.Vec3{3, 1, 1}, rot)
	assert.InDelta(t, 1, cov.At(0, 0), 1e-4)
	assert.InDelta(t, 9, cov.At(1, 1), 1e-4)
	assert.InDelta(t, 1, cov.At(2, 2), 1e-4)
}

func TestBuildCov3DUnnormalizedQuat(t *testing.T) {
	// The loader keeps quaternions raw, so scaling one must not change Σ.
	a := BuildCov3D(mgl32.Vec3{1, 2, 3}, mgl32.Vec4{0.5, 0.5, 0.5, 0.5})
	b := BuildCov3D(mgl32.Vec3{1, 2, 3}, mgl32.Vec4{2, 2, 2, 2})
	for i := range a {
		assert.InDelta(t, a[i], b[i], 1e-5)
	}
}

func TestBuildCov3DZeroQuatFallsBackToIdentity(t *testing.T) {
	cov := BuildCov3D(mgl32.Vec3{1, 2, 3}, mgl32.Vec4{})
	assert.InDelta(t, 1, cov.At(0, 0), 1e-5)
	assert.InDelta(t, 4, cov.At(1, 1), 1e-5)
	assert.InDelta(t, 9, cov.At(2, 2), 1e-5)
}

func TestProjectCov2DHeadOnIsotropy(t *testing.T) {
	// An isotropic splat on the optical axis projects to a circle whose
	// radius follows f*s/z, plus the stabilizing epsilon on the diagonal.
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 0}, DefaultUp)
	camPos := mgl32.Vec3{0, 0, -5}
	const s, f = 2.0, 100.0

	cov3 := BuildCov3D(mgl32.Vec3{s, s, s}, identityQuat)
	cov2 := ProjectCov2D(cov3, camPos, view, f, f)

	want := float32(f * s / 5 * f * s / 5)
	assert.InDelta(t, want+CovEpsilon, cov2.At(0, 0), 1e-2)
	assert.InDelta(t, want+CovEpsilon, cov2.At(1, 1), 1e-2)
	assert.InDelta(t, 0, cov2.At(0, 1), 1e-2)

	l1, l2 := Eigenvalues2(cov2)
	assert.InDelta(t, float64(l1), float64(l2), 1e-2)
}

func TestProjectCov2DShrinksWithDistance(t *testing.T) {
	view := mgl32.Ident4()
	cov3 := BuildCov3D(mgl32.Vec3{1, 1, 1}, identityQuat)

	near := ProjectCov2D(cov3, mgl32.Vec3{0, 0, -2}, view, 100, 100)
	far := ProjectCov2D(cov3, mgl32.Vec3{0, 0, -20}, view, 100, 100)

	nearL, _ := Eigenvalues2(near)
	farL, _ := Eigenvalues2(far)
	assert.Greater(t, nearL, farL)
	// 10x the distance is 100x smaller variance, before the epsilon.
	assert.InDelta(t, 100.0, float64((nearL-CovEpsilon)/(farL-CovEpsilon)), 1e-2)
}

func TestProjectCov2DDegenerateScaleStaysInvertible(t *testing.T) {
	view := mgl32.Ident4()
	cov3 := BuildCov3D(mgl32.Vec3{0, 0, 0}, identityQuat)
	cov2 := ProjectCov2D(cov3, mgl32.Vec3{0, 0, -5}, view, 100, 100)

	assert.InDelta(t, CovEpsilon, cov2.At(0, 0), 1e-5)
	assert.InDelta(t, CovEpsilon, cov2.At(1, 1), 1e-5)

	_, invertible := Conic(cov2)
	assert.True(t, invertible)
}

func TestEigenvalues2(t *testing.T) {
	l1, l2 := Eigenvalues2(mgl32.Mat2{3, 0, 0, 1})
	assert.InDelta(t, 3, l1, 1e-5)
	assert.InDelta(t, 1, l2, 1e-5)

	// Off-diagonal coupling spreads the eigenvalues around the trace mean.
	l1, l2 = Eigenvalues2(mgl32.Mat2{2, 1, 1, 2})
	assert.InDelta(t, 3, l1, 1e-5)
	assert.InDelta(t, 1, l2, 1e-5)
}

func TestQuadRadiusPixels(t *testing.T) {
	assert.Equal(t, float32(6), QuadRadiusPixels(4, 1))
	assert.Equal(t, float32(6), QuadRadiusPixels(1, 4))
	assert.Equal(t, float32(31), QuadRadiusPixels(100.5, 2))
}

func TestConic(t *testing.T) {
	v, ok := Conic(mgl32.Mat2{2, 0, 0, 0.5})
	require.True(t, ok)
	assert.InDelta(t, 0.5, v.X(), 1e-5)
	assert.InDelta(t, 0, v.Y(), 1e-5)
	assert.InDelta(t, 2, v.Z(), 1e-5)

	_, ok = Conic(mgl32.Mat2{1, 2, 2, 1}) // det = -3
	assert.False(t, ok)
}

func TestFocalPixels(t *testing.T) {
	// 90 degree vertical fov at square aspect: proj[0][0] = proj[1][1] = 1,
	// so the focal length is half the viewport.
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 100)
	fx, fy := FocalPixels(proj, 800, 800)
	assert.InDelta(t, 400, fx, 1e-2)
	assert.InDelta(t, 400, fy, 1e-2)
}
