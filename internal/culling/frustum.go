// Package culling implements AABB-vs-frustum visibility testing.
package culling

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned bounding box in world space.
type AABB struct {
	Min, Max mgl32.Vec3
}

// Frustum reports whether a box is at least partially visible.
type Frustum interface {
	IsVisible(box AABB) bool
}

type plane struct {
	a, b, c, d float32
}

// Planes is a concrete Frustum built from a combined view-projection
// matrix: six half-spaces in order left, right, bottom, top, near, far.
type Planes struct {
	p [6]plane
}

// FromViewProjection extracts the six frustum planes from a combined
// view*projection matrix (mgl32 is column-major).
func FromViewProjection(clip mgl32.Mat4) Planes {
	m00, m01, m02, m03 := clip[0], clip[4], clip[8], clip[12]
	m10, m11, m12, m13 := clip[1], clip[5], clip[9], clip[13]
	m20, m21, m22, m23 := clip[2], clip[6], clip[10], clip[14]
	m30, m31, m32, m33 := clip[3], clip[7], clip[11], clip[15]

	var f Planes
	f.p[0] = normalize(plane{m30 + m00, m31 + m01, m32 + m02, m33 + m03}) // left
	f.p[1] = normalize(plane{m30 - m00, m31 - m01, m32 - m02, m33 - m03}) // right
	f.p[2] = normalize(plane{m30 + m10, m31 + m11, m32 + m12, m33 + m13}) // bottom
	f.p[3] = normalize(plane{m30 - m10, m31 - m11, m32 - m12, m33 - m13}) // top
	f.p[4] = normalize(plane{m30 + m20, m31 + m21, m32 + m22, m33 + m23}) // near
	f.p[5] = normalize(plane{m30 - m20, m31 - m21, m32 - m22, m33 - m23}) // far
	return f
}

func normalize(p plane) plane {
	length := float32(math.Sqrt(float64(p.a*p.a + p.b*p.b + p.c*p.c)))
	if length == 0 {
		return p
	}
	return plane{p.a / length, p.b / length, p.c / length, p.d / length}
}

// IsVisible tests the AABB against all six planes using the
// positive-vertex test: if the box's furthest-in-the-normal-direction
// corner is outside any plane, the whole box is outside.
func (f Planes) IsVisible(box AABB) bool {
	for _, p := range f.p {
		px := box.Max.X()
		if p.a < 0 {
			px = box.Min.X()
		}
		py := box.Max.Y()
		if p.b < 0 {
			py = box.Min.Y()
		}
		pz := box.Max.Z()
		if p.c < 0 {
			pz = box.Min.Z()
		}
		if p.a*px+p.b*py+p.c*pz+p.d < 0 {
			return false
		}
	}
	return true
}
