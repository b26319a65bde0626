package world

import (
	"testing"

	"voxelcore/internal/voxel"
)

var stone = voxel.Make(1, 255, 0, voxel.FlagSolid)

func TestGenerateMeshOnEmptyChunkProducesNothing(t *testing.T) {
	c := NewChunk(Coord{0, 0, 0}, 4)
	mesh := c.GenerateMesh(Neighbours{}, 0)
	if len(mesh.Vertices) != 0 || len(mesh.Indices) != 0 {
		t.Fatalf("empty chunk produced %d vertices / %d indices, want 0/0", len(mesh.Vertices), len(mesh.Indices))
	}
}

func TestGenerateMeshOnFullChunkMergesEachFaceIntoOneQuad(t *testing.T) {
	c := NewChunk(Coord{0, 0, 0}, 4)
	c.Fill(stone)
	// A fully solid chunk with no neighbours: every voxel-face pair on
	// the six chunk faces is exposed to (treated-as-air) space, and
	// greedy merging should collapse each of the 6 faces into a single
	// 4x4 quad.
	mesh := c.GenerateMesh(Neighbours{}, 0)
	if len(mesh.Vertices) != 6*4 {
		t.Fatalf("GenerateMesh produced %d vertices, want %d (6 merged faces * 4 corners)", len(mesh.Vertices), 6*4)
	}
	if len(mesh.Indices) != 6*6 {
		t.Fatalf("GenerateMesh produced %d indices, want %d (6 faces * 2 triangles * 3)", len(mesh.Indices), 6*6)
	}
}

func TestGenerateMeshHidesInteriorFaces(t *testing.T) {
	c := NewChunk(Coord{0, 0, 0}, 2)
	c.Fill(stone)
	nb := Neighbours{}
	for i := range nb {
		n := NewChunk(Coord{}, 2)
		n.Fill(stone)
		nb[i] = n
	}
	// Every neighbour is also fully solid. Faces between the chunk's own
	// voxels are hidden, but faces on the chunk boundary are always
	// emitted as skirts, so only the six merged outer quads remain.
	mesh := c.GenerateMesh(nb, 0)
	if len(mesh.Vertices) != 6*4 {
		t.Fatalf("fully surrounded chunk produced %d vertices, want %d (6 boundary quads, no interior faces)", len(mesh.Vertices), 6*4)
	}
}

func TestGenerateMeshProducesSkirtAtWorldEdge(t *testing.T) {
	c := NewChunk(Coord{0, 0, 0}, 2)
	c.SetVoxel(0, 0, 0, stone)
	// A single solid voxel with no neighbours exposes all 6 faces.
	mesh := c.GenerateMesh(Neighbours{}, 0)
	if len(mesh.Vertices) != 6*4 {
		t.Fatalf("single exposed voxel produced %d vertices, want %d", len(mesh.Vertices), 6*4)
	}
}

func TestComputeAOLevelsMatchOccluderCount(t *testing.T) {
	cases := []struct {
		side1, side2, corner bool
		want                 uint8
	}{
		{false, false, false, 3},
		{true, false, false, 2},
		{false, true, false, 2},
		{false, false, true, 2},
		{true, false, true, 1},
		{true, true, false, 0}, // both edges occupied forces max occlusion
		{true, true, true, 0},
	}
	for _, c := range cases {
		got := computeAO(c.side1, c.side2, c.corner)
		if got != c.want {
			t.Errorf("computeAO(%v,%v,%v) = %d, want %d", c.side1, c.side2, c.corner, got, c.want)
		}
	}
}

func TestGenerateMeshAtLOD1CoarsensGrid(t *testing.T) {
	c := NewChunk(Coord{0, 0, 0}, 4)
	c.Fill(stone)
	mesh := c.GenerateMesh(Neighbours{}, 1)
	// At LOD 1, step=2 halves the grid to 2x2 super-voxels per axis, but
	// a fully solid chunk still merges each face down to one quad.
	if len(mesh.Vertices) != 6*4 {
		t.Fatalf("LOD 1 full chunk produced %d vertices, want %d", len(mesh.Vertices), 6*4)
	}
}

func TestFaceMaskCanMergeIgnoresAO(t *testing.T) {
	a := faceMask{paletteIdx: 3, faceID: 0, ao: [4]uint8{0, 0, 0, 0}}
	b := faceMask{paletteIdx: 3, faceID: 0, ao: [4]uint8{3, 3, 3, 3}}
	if !a.canMerge(b) {
		t.Fatal("faces with matching (palette, faceID) but different AO should still merge")
	}
	c := faceMask{paletteIdx: 4, faceID: 0}
	if a.canMerge(c) {
		t.Fatal("faces with different palette indices should not merge")
	}
}
