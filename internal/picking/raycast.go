// Package picking marches a ray through voxel space to find the first
// solid voxel it hits, for block picking / editing. It has no
// dependency on internal/world: callers supply a Sample callback so
// the ray march works over any voxel source (a live Storage, a test
// fixture, ...).
package picking

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelcore/internal/profiling"
	"voxelcore/internal/voxel"
)

// Sample returns the voxel at integer world coordinates.
type Sample func(x, y, z int) voxel.Data

// Result is the outcome of a Raycast call.
type Result struct {
	HitPosition      [3]int
	AdjacentPosition [3]int
	Normal           [3]int8
	Face             uint8
	Distance         float32
	Hit              bool
}

// Raycast walks an Amanatides-Woo DDA voxel traversal from start along
// direction, stopping at the first solid voxel between minDist and
// maxDist. The traversal steps to the next voxel boundary before
// sampling, so the voxel start is already inside is never itself
// reported as a hit. AdjacentPosition is the last empty voxel visited
// before the hit — the position a new block would be placed at — and
// Face/Normal identify the boundary the ray crossed to reach it.
func Raycast(start, direction mgl32.Vec3, minDist, maxDist float32, sample Sample) Result {
	defer profiling.Track("picking.Raycast")()

	result := Result{}

	dir := direction.Normalize()
	if math.IsNaN(float64(dir.X())) {
		return result
	}

	x := int(math.Floor(float64(start.X())))
	y := int(math.Floor(float64(start.Y())))
	z := int(math.Floor(float64(start.Z())))

	stepX, tMaxX, tDeltaX := ddaAxis(start.X(), dir.X(), x)
	stepY, tMaxY, tDeltaY := ddaAxis(start.Y(), dir.Y(), y)
	stepZ, tMaxZ, tDeltaZ := ddaAxis(start.Z(), dir.Z(), z)

	maxSteps := int(maxDist*3) + 64
	for i := 0; i < maxSteps; i++ {
		var t float32
		var nx, ny, nz int
		switch {
		case tMaxX < tMaxY && tMaxX < tMaxZ:
			t = tMaxX
			x += stepX
			tMaxX += tDeltaX
			nx = -stepX
		case tMaxY < tMaxZ:
			t = tMaxY
			y += stepY
			tMaxY += tDeltaY
			ny = -stepY
		default:
			t = tMaxZ
			z += stepZ
			tMaxZ += tDeltaZ
			nz = -stepZ
		}

		if t > maxDist {
			break
		}
		if t < minDist {
			continue
		}

		if sample(x, y, z).IsSolid() {
			result.Hit = true
			result.HitPosition = [3]int{x, y, z}
			result.Normal = [3]int8{int8(nx), int8(ny), int8(nz)}
			result.Face = normalToFace(nx, ny, nz)
			result.AdjacentPosition = [3]int{x + nx, y + ny, z + nz}
			result.Distance = t
			return result
		}
	}

	return result
}

// ddaAxis computes one axis's step direction, distance to its first
// voxel boundary, and the distance between consecutive boundaries. An
// axis-aligned ray component (|dir| ~ 0) never reaches a boundary.
func ddaAxis(startPos, dir float32, voxelPos int) (step int, tMax, tDelta float32) {
	const epsilon = 1e-9
	if dir >= 0 {
		step = 1
	} else {
		step = -1
	}
	if float32(math.Abs(float64(dir))) < epsilon {
		return step, 1e30, 1e30
	}
	tDelta = float32(math.Abs(float64(1 / dir)))
	var bound float32
	if step > 0 {
		bound = float32(voxelPos+1) - startPos
	} else {
		bound = startPos - float32(voxelPos)
	}
	return step, bound * tDelta, tDelta
}

func normalToFace(nx, ny, nz int) uint8 {
	switch {
	case nx > 0:
		return voxel.FacePosX
	case nx < 0:
		return voxel.FaceNegX
	case ny > 0:
		return voxel.FacePosY
	case ny < 0:
		return voxel.FaceNegY
	case nz > 0:
		return voxel.FacePosZ
	default:
		return voxel.FaceNegZ
	}
}
