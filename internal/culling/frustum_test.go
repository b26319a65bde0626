package culling

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testFrustum() Planes {
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 100)
	return FromViewProjection(proj.Mul4(view))
}

func TestBoxDirectlyAheadIsVisible(t *testing.T) {
	f := testFrustum()
	box := AABB{Min: mgl32.Vec3{-1, -1, -11}, Max: mgl32.Vec3{1, 1, -9}}
	if !f.IsVisible(box) {
		t.Fatal("box centered on the view axis should be visible")
	}
}

func TestBoxBehindCameraIsCulled(t *testing.T) {
	f := testFrustum()
	box := AABB{Min: mgl32.Vec3{-1, -1, 9}, Max: mgl32.Vec3{1, 1, 11}}
	if f.IsVisible(box) {
		t.Fatal("box behind the camera should be culled")
	}
}

func TestBoxFarOffToTheSideIsCulled(t *testing.T) {
	f := testFrustum()
	box := AABB{Min: mgl32.Vec3{500, -1, -11}, Max: mgl32.Vec3{502, 1, -9}}
	if f.IsVisible(box) {
		t.Fatal("box far outside the horizontal FOV should be culled")
	}
}

func TestBoxStraddlingAPlaneIsVisible(t *testing.T) {
	f := testFrustum()
	// A box that spans from well inside the frustum to far to one side
	// should still test visible: the near corner is inside.
	box := AABB{Min: mgl32.Vec3{-1, -1, -11}, Max: mgl32.Vec3{500, 1, -9}}
	if !f.IsVisible(box) {
		t.Fatal("box straddling the frustum boundary should be visible")
	}
}

func TestBoxBeyondFarPlaneIsCulled(t *testing.T) {
	f := testFrustum()
	box := AABB{Min: mgl32.Vec3{-1, -1, -200}, Max: mgl32.Vec3{1, 1, -150}}
	if f.IsVisible(box) {
		t.Fatal("box beyond the far plane should be culled")
	}
}
