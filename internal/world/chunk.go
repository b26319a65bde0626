// Package world holds chunk storage and the greedy mesher that turns a
// chunk's voxels into packed GPU geometry.
package world

import (
	"sync"
	"sync/atomic"

	"voxelcore/internal/noise"
	"voxelcore/internal/voxel"
)

// State is a chunk's lifecycle stage.
type State int32

const (
	Ungenerated State = iota
	Generating
	Ready
)

// Coord identifies a chunk by its grid position (chunk units, not voxel units).
type Coord struct {
	X, Y, Z int
}

// Neighbours holds the six adjacent chunks in FaceID order:
// +X, -X, +Y, -Y, +Z, -Z. A nil entry means "treat as air" (world edge).
type Neighbours [6]*Chunk

// Chunk is a fixed-size cube of packed voxels plus its lifecycle state.
type Chunk struct {
	Coord Coord
	size  int

	mu     sync.RWMutex
	voxels []voxel.Data

	state atomic.Int32
	dirty atomic.Bool
}

// NewChunk allocates an empty (all-air) chunk of size^3 voxels.
func NewChunk(coord Coord, size int) *Chunk {
	return &Chunk{
		Coord:  coord,
		size:   size,
		voxels: make([]voxel.Data, size*size*size),
	}
}

func (c *Chunk) Size() int { return c.size }

func (c *Chunk) index(x, y, z int) int {
	return x + y*c.size + z*c.size*c.size
}

func (c *Chunk) inBounds(x, y, z int) bool {
	return x >= 0 && x < c.size && y >= 0 && y < c.size && z >= 0 && z < c.size
}

// GetVoxel returns the voxel at local coordinates, or Air if out of bounds.
func (c *Chunk) GetVoxel(x, y, z int) voxel.Data {
	if !c.inBounds(x, y, z) {
		return voxel.Air
	}
	c.mu.RLock()
	v := c.voxels[c.index(x, y, z)]
	c.mu.RUnlock()
	return v
}

// SetVoxel writes a voxel at local coordinates and marks the chunk dirty.
// Out-of-bounds writes are a no-op.
func (c *Chunk) SetVoxel(x, y, z int, v voxel.Data) {
	if !c.inBounds(x, y, z) {
		return
	}
	c.mu.Lock()
	c.voxels[c.index(x, y, z)] = v
	c.mu.Unlock()
	c.dirty.Store(true)
}

// Fill sets every voxel in the chunk to v.
func (c *Chunk) Fill(v voxel.Data) {
	c.mu.Lock()
	for i := range c.voxels {
		c.voxels[i] = v
	}
	c.mu.Unlock()
	c.dirty.Store(true)
}

// FillTerrain deterministically populates the chunk from a heightmap
// noise source: stone below the surface, dirt near it, grass on top.
func (c *Chunk) FillTerrain(src noise.Source, baseHeight, amplitude float64) {
	stone := voxel.Make(1, 255, 0, voxel.FlagSolid)
	dirt := voxel.Make(2, 255, 0, voxel.FlagSolid)
	grass := voxel.Make(3, 255, 0, voxel.FlagSolid)

	worldBaseY := c.Coord.Y * c.size

	c.mu.Lock()
	for z := 0; z < c.size; z++ {
		for x := 0; x < c.size; x++ {
			wx := float64(c.Coord.X*c.size + x)
			wz := float64(c.Coord.Z*c.size + z)
			terrainH := baseHeight + amplitude*src.Height2D(wx, wz)
			for y := 0; y < c.size; y++ {
				wy := float64(worldBaseY + y)
				v := voxel.Air
				switch {
				case wy < terrainH-3:
					v = stone
				case wy < terrainH-1:
					v = dirt
				case wy < terrainH:
					v = grass
				}
				c.voxels[c.index(x, y, z)] = v
			}
		}
	}
	c.mu.Unlock()
	c.dirty.Store(true)
}

// State returns the chunk's current lifecycle stage.
func (c *Chunk) State() State { return State(c.state.Load()) }

// TryBeginGenerating atomically transitions Ungenerated -> Generating,
// reporting whether this call won the transition.
func (c *Chunk) TryBeginGenerating() bool {
	return c.state.CompareAndSwap(int32(Ungenerated), int32(Generating))
}

// MarkReady transitions Generating -> Ready.
func (c *Chunk) MarkReady() { c.state.Store(int32(Ready)) }

// IsDirty reports whether the chunk has been mutated since the last
// SetClean call.
func (c *Chunk) IsDirty() bool { return c.dirty.Load() }

// SetClean clears the dirty flag.
func (c *Chunk) SetClean() { c.dirty.Store(false) }

// snapshotInto copies this chunk's voxels and its neighbours' boundary
// layers into cache, a (size+2)^3 volume indexed by cacheIndex. This is
// the point at which an in-flight mesh task's view of the world is
// pinned: a SetVoxel landing after this call only affects the next
// mesh, never this one.
func (c *Chunk) snapshotInto(cache []voxel.Data, nb Neighbours) {
	size := c.size
	dim := size + 2
	for i := range cache {
		cache[i] = voxel.Air
	}

	c.mu.RLock()
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				cache[cacheIndex(x, y, z, dim)] = c.voxels[c.index(x, y, z)]
			}
		}
	}
	c.mu.RUnlock()

	for z := -1; z <= size; z++ {
		for y := -1; y <= size; y++ {
			for x := -1; x <= size; x++ {
				if x >= 0 && x < size && y >= 0 && y < size && z >= 0 && z < size {
					continue
				}
				n, lx, ly, lz := neighbourFor(nb, x, y, z, size)
				if n == nil {
					continue
				}
				cache[cacheIndex(x, y, z, dim)] = n.GetVoxel(lx, ly, lz)
			}
		}
	}
}

func cacheIndex(x, y, z, dim int) int {
	return (x + 1) + (y+1)*dim + (z+1)*dim*dim
}

func neighbourFor(nb Neighbours, x, y, z, size int) (n *Chunk, lx, ly, lz int) {
	lx, ly, lz = x, y, z
	switch {
	case x >= size:
		n, lx = nb[voxel.FacePosX], x-size
	case x < 0:
		n, lx = nb[voxel.FaceNegX], x+size
	case y >= size:
		n, ly = nb[voxel.FacePosY], y-size
	case y < 0:
		n, ly = nb[voxel.FaceNegY], y+size
	case z >= size:
		n, lz = nb[voxel.FacePosZ], z-size
	case z < 0:
		n, lz = nb[voxel.FaceNegZ], z+size
	}
	if n == nil {
		return nil, 0, 0, 0
	}
	if lx < 0 {
		lx = 0
	} else if lx >= size {
		lx = size - 1
	}
	if ly < 0 {
		ly = 0
	} else if ly >= size {
		ly = size - 1
	}
	if lz < 0 {
		lz = 0
	} else if lz >= size {
		lz = size - 1
	}
	return n, lx, ly, lz
}
