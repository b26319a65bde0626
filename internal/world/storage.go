package world

import (
	"sync"
	"sync/atomic"

	"voxelcore/internal/config"
	"voxelcore/internal/noise"
	"voxelcore/internal/voxel"
)

// Storage is a dense, bounded grid of chunks around the origin,
// addressed by floor-divided world voxel coordinates.
type Storage struct {
	cfg config.Config

	minX, minY, minZ int
	dimX, dimY, dimZ int

	mu     sync.RWMutex
	chunks []*Chunk

	modCount atomic.Uint64
}

// NewStorage allocates a grid spanning [-radiusX, radiusX] x [-radiusY,
// radiusY] x [-radiusZ, radiusZ] in chunk coordinates. Every slot
// starts nil (Ungenerated, uncreated).
func NewStorage(cfg config.Config, radiusX, radiusY, radiusZ int) *Storage {
	dimX := 2*radiusX + 1
	dimY := 2*radiusY + 1
	dimZ := 2*radiusZ + 1
	return &Storage{
		cfg:    cfg,
		minX:   -radiusX,
		minY:   -radiusY,
		minZ:   -radiusZ,
		dimX:   dimX,
		dimY:   dimY,
		dimZ:   dimZ,
		chunks: make([]*Chunk, dimX*dimY*dimZ),
	}
}

func (s *Storage) inRange(c Coord) bool {
	return c.X >= s.minX && c.X < s.minX+s.dimX &&
		c.Y >= s.minY && c.Y < s.minY+s.dimY &&
		c.Z >= s.minZ && c.Z < s.minZ+s.dimZ
}

func (s *Storage) index(c Coord) int {
	return (c.X - s.minX) + (c.Y-s.minY)*s.dimX + (c.Z-s.minZ)*s.dimX*s.dimY
}

// GetChunk returns the chunk at c, if it has been created.
func (s *Storage) GetChunk(c Coord) (*Chunk, bool) {
	if !s.inRange(c) {
		return nil, false
	}
	s.mu.RLock()
	ch := s.chunks[s.index(c)]
	s.mu.RUnlock()
	return ch, ch != nil
}

// CreateChunkIfMissing returns the chunk at c, creating an
// Ungenerated one first if none exists. Double-checked locking avoids
// holding the write lock on the common (already-created) path.
func (s *Storage) CreateChunkIfMissing(c Coord) (*Chunk, bool) {
	if !s.inRange(c) {
		return nil, false
	}
	idx := s.index(c)

	s.mu.RLock()
	ch := s.chunks[idx]
	s.mu.RUnlock()
	if ch != nil {
		return ch, true
	}

	s.mu.Lock()
	ch = s.chunks[idx]
	if ch == nil {
		ch = NewChunk(c, s.cfg.ChunkSize)
		s.chunks[idx] = ch
		s.modCount.Add(1)
	}
	s.mu.Unlock()
	return ch, true
}

// AllCoords returns every coordinate in the grid's bounds, created or
// not, in a deterministic scan order (z-major, then y, then x).
func (s *Storage) AllCoords() []Coord {
	out := make([]Coord, 0, s.dimX*s.dimY*s.dimZ)
	for z := 0; z < s.dimZ; z++ {
		for y := 0; y < s.dimY; y++ {
			for x := 0; x < s.dimX; x++ {
				out = append(out, Coord{s.minX + x, s.minY + y, s.minZ + z})
			}
		}
	}
	return out
}

// ModCount returns the number of chunks created so far, useful for
// tests and stats surfaces to detect structural growth of the grid.
func (s *Storage) ModCount() uint64 { return s.modCount.Load() }

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

// WorldToChunk splits a world voxel coordinate into its owning chunk
// coordinate and the local voxel coordinate within it.
func (s *Storage) WorldToChunk(wx, wy, wz int) (c Coord, lx, ly, lz int) {
	return s.worldToChunk(wx, wy, wz)
}

func (s *Storage) worldToChunk(wx, wy, wz int) (c Coord, lx, ly, lz int) {
	size := s.cfg.ChunkSize
	c = Coord{floorDiv(wx, size), floorDiv(wy, size), floorDiv(wz, size)}
	lx, ly, lz = floorMod(wx, size), floorMod(wy, size), floorMod(wz, size)
	return
}

// GetVoxel returns the voxel at world coordinates, or Air if the
// owning chunk hasn't been created.
func (s *Storage) GetVoxel(wx, wy, wz int) voxel.Data {
	c, lx, ly, lz := s.worldToChunk(wx, wy, wz)
	ch, ok := s.GetChunk(c)
	if !ok {
		return voxel.Air
	}
	return ch.GetVoxel(lx, ly, lz)
}

// SetVoxel writes a voxel at world coordinates, creating the owning
// chunk if needed, and marks any neighbouring chunk dirty when the
// edit lands on that chunk's boundary layer (its mesh samples across
// the border, so it must be remeshed too).
func (s *Storage) SetVoxel(wx, wy, wz int, v voxel.Data) {
	c, lx, ly, lz := s.worldToChunk(wx, wy, wz)
	ch, ok := s.CreateChunkIfMissing(c)
	if !ok {
		return
	}
	ch.SetVoxel(lx, ly, lz, v)

	size := s.cfg.ChunkSize
	s.markBoundaryDirty(c, lx, ly, lz, size)
}

func (s *Storage) markBoundaryDirty(c Coord, lx, ly, lz, size int) {
	if lx == 0 {
		s.dirtyNeighbourAt(Coord{c.X - 1, c.Y, c.Z})
	}
	if lx == size-1 {
		s.dirtyNeighbourAt(Coord{c.X + 1, c.Y, c.Z})
	}
	if ly == 0 {
		s.dirtyNeighbourAt(Coord{c.X, c.Y - 1, c.Z})
	}
	if ly == size-1 {
		s.dirtyNeighbourAt(Coord{c.X, c.Y + 1, c.Z})
	}
	if lz == 0 {
		s.dirtyNeighbourAt(Coord{c.X, c.Y, c.Z - 1})
	}
	if lz == size-1 {
		s.dirtyNeighbourAt(Coord{c.X, c.Y, c.Z + 1})
	}
}

func (s *Storage) dirtyNeighbourAt(c Coord) {
	if ch, ok := s.GetChunk(c); ok {
		ch.dirty.Store(true)
	}
}

// Neighbours resolves the six adjacent chunks of c (nil for any that
// don't exist).
func (s *Storage) Neighbours(c Coord) Neighbours {
	var nb Neighbours
	for face, off := range voxel.FaceNeighbour {
		n, _ := s.GetChunk(Coord{c.X + int(off[0]), c.Y + int(off[1]), c.Z + int(off[2])})
		nb[face] = n
	}
	return nb
}

// GenerateWorld fills every chunk slot in the grid with deterministic
// terrain, in parallel across cfg.Workers() goroutines. Each worker
// claims chunk indices from a shared atomic counter and publishes only
// to its own claimed slots, so no two goroutines ever write the same
// slot.
func (s *Storage) GenerateWorld(seed int64, baseHeight, amplitude float64) {
	coords := s.AllCoords()
	src := noise.NewSource(seed)

	var next atomic.Int64
	var wg sync.WaitGroup
	workers := s.cfg.Workers()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := next.Add(1) - 1
				if i >= int64(len(coords)) {
					return
				}
				c := coords[i]
				ch, _ := s.CreateChunkIfMissing(c)
				if !ch.TryBeginGenerating() {
					continue
				}
				ch.FillTerrain(src, baseHeight, amplitude)
				ch.MarkReady()
			}
		}()
	}
	wg.Wait()
}
