package world

import "testing"

func TestNewChunkIsAllAir(t *testing.T) {
	c := NewChunk(Coord{0, 0, 0}, 4)
	for z := 0; z < 4; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				if !c.GetVoxel(x, y, z).IsAir() {
					t.Fatalf("voxel (%d,%d,%d) not air in a fresh chunk", x, y, z)
				}
			}
		}
	}
}

func TestOutOfBoundsAccessIsSafe(t *testing.T) {
	c := NewChunk(Coord{0, 0, 0}, 8)
	if v := c.GetVoxel(1000, 0, 0); !v.IsAir() {
		t.Fatalf("out-of-bounds GetVoxel = %v, want Air", v)
	}
	c.SetVoxel(1000, 0, 0, 7) // out of bounds, must be a no-op
	if c.IsDirty() {
		t.Fatal("an out-of-bounds SetVoxel should not mark the chunk dirty")
	}
}

func TestSetVoxelMarksDirty(t *testing.T) {
	c := NewChunk(Coord{0, 0, 0}, 4)
	c.SetClean()
	if c.IsDirty() {
		t.Fatal("SetClean() left the chunk dirty")
	}
	c.SetVoxel(1, 1, 1, 7)
	if !c.IsDirty() {
		t.Fatal("SetVoxel did not mark the chunk dirty")
	}
	if got := c.GetVoxel(1, 1, 1); got != 7 {
		t.Fatalf("GetVoxel(1,1,1) = %v, want 7", got)
	}
}

func TestTryBeginGeneratingIsOneShot(t *testing.T) {
	c := NewChunk(Coord{0, 0, 0}, 4)
	if !c.TryBeginGenerating() {
		t.Fatal("first TryBeginGenerating() should succeed on an Ungenerated chunk")
	}
	if c.TryBeginGenerating() {
		t.Fatal("second TryBeginGenerating() should fail once already Generating")
	}
	c.MarkReady()
	if c.State() != Ready {
		t.Fatalf("State() = %v, want Ready", c.State())
	}
}

func TestNeighbourForClampsOutOfRangeAxes(t *testing.T) {
	nb := Neighbours{}
	right := NewChunk(Coord{1, 0, 0}, 4)
	nb[0] = right // FacePosX

	n, lx, ly, lz := neighbourFor(nb, 4, 5, 2, 4)
	if n != right {
		t.Fatal("neighbourFor did not resolve the +X neighbour for x >= size")
	}
	if lx != 0 || ly != 3 || lz != 2 {
		t.Fatalf("neighbourFor local coords = (%d,%d,%d), want (0,3,2) with y clamped", lx, ly, lz)
	}
}

func TestNeighbourForReturnsNilAtWorldEdge(t *testing.T) {
	nb := Neighbours{}
	n, _, _, _ := neighbourFor(nb, -1, 0, 0, 4)
	if n != nil {
		t.Fatal("neighbourFor should return nil when no neighbour chunk exists")
	}
}
