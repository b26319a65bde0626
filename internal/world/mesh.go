package world

import (
	"sync"

	"voxelcore/internal/voxel"
)

// MeshData is the CPU-side output of greedy meshing: a packed vertex
// buffer and its matching index buffer.
type MeshData struct {
	Vertices []voxel.Vertex
	Indices  []uint32
}

// faceMask is one cell of the 2D greedy-meshing mask.
type faceMask struct {
	paletteIdx uint16
	faceID     uint8 // 0xFF = empty
	ao         [4]uint8
}

func (m faceMask) empty() bool { return m.faceID == 0xFF }

// canMerge merges by (paletteIdx, faceID) only — AO is deliberately
// ignored so large quads can span voxels with different corner AO; the
// GPU interpolates AO smoothly across the merged quad (soft-gradient AO).
func (m faceMask) canMerge(o faceMask) bool {
	return !o.empty() && m.faceID == o.faceID && m.paletteIdx == o.paletteIdx
}

// scratch holds the reusable buffers a mesh generation pass needs. A
// sync.Pool of these avoids a heap allocation per chunk per frame.
type scratch struct {
	mask  []faceMask
	cache []voxel.Data
}

var scratchPool = sync.Pool{
	New: func() any { return &scratch{} },
}

func computeAO(side1, side2, corner bool) uint8 {
	if side1 && side2 {
		return 0
	}
	n := 3
	if side1 {
		n--
	}
	if side2 {
		n--
	}
	if corner {
		n--
	}
	return uint8(n)
}

// GenerateMesh runs LOD-aware greedy meshing with soft-gradient AO over
// this chunk and its neighbours, per the algorithm:
//
//  1. Snapshot the chunk plus a 1-voxel border from each neighbour into
//     a padded volume cache (a missing neighbour reads as air). The
//     border feeds AO only: a face whose outward neighbour lies outside
//     the chunk is always emitted, even against a solid neighbour, which
//     produces implicit "skirts" at chunk boundaries with no dedicated
//     skirt geometry.
//  2. For each of the 3 axes and both directions along it, build a 2D
//     face mask per layer, greedily merge adjacent cells that share a
//     (palette, face) pair, and emit one quad per merged rectangle with
//     AO taken from its four actual corner cells.
//
// lod selects the super-voxel step: step = 1<<lod, so lod 0 meshes at
// full voxel resolution and lod 2 merges 4x4x4 blocks into one cell.
func (c *Chunk) GenerateMesh(nb Neighbours, lod int) MeshData {
	if lod < 0 {
		lod = 0
	} else if lod > 2 {
		lod = 2
	}
	size := c.size
	dim := size + 2

	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)
	if cap(s.cache) < dim*dim*dim {
		s.cache = make([]voxel.Data, dim*dim*dim)
	}
	cache := s.cache[:dim*dim*dim]
	c.snapshotInto(cache, nb)

	step := 1 << lod
	gridSize := size / step

	if cap(s.mask) < gridSize*gridSize {
		s.mask = make([]faceMask, gridSize*gridSize)
	}
	mask := s.mask[:gridSize*gridSize]

	mesh := MeshData{
		Vertices: make([]voxel.Vertex, 0, 2048),
		Indices:  make([]uint32, 0, 3072),
	}

	for d := 0; d < 3; d++ {
		u := (d + 1) % 3
		v := (d + 2) % 3

		for _, normalDir := range [2]int{1, -1} {
			faceID := uint8(d*2)
			if normalDir < 0 {
				faceID++
			}

			for layer := 0; layer < gridSize; layer++ {
				for i := range mask {
					mask[i].faceID = 0xFF
				}

				for j := 0; j < gridSize; j++ {
					for i := 0; i < gridSize; i++ {
						var pos [3]int
						pos[d] = layer * step
						pos[u] = i * step
						pos[v] = j * step

						vox := cache[cacheIndex(pos[0], pos[1], pos[2], dim)]
						if !vox.IsSolid() {
							continue
						}

						npos := pos
						npos[d] += normalDir * step

						neighbourSolid := true
					holeSearch:
						for dv := 0; dv < step; dv++ {
							for du := 0; du < step; du++ {
								chk := npos
								chk[u] += du
								chk[v] += dv
								if chk[d] >= 0 && chk[d] < size {
									if !cache[cacheIndex(chk[0], chk[1], chk[2], dim)].IsSolid() {
										neighbourSolid = false
										break holeSearch
									}
								} else {
									neighbourSolid = false
									break holeSearch
								}
							}
						}
						if neighbourSolid {
							continue
						}

						cell := &mask[j*gridSize+i]
						cell.faceID = faceID
						cell.paletteIdx = vox.PaletteIndex()
						cell.ao[0] = sampleAO(cache, dim, pos, d, u, v, -1, -1, normalDir)
						cell.ao[1] = sampleAO(cache, dim, pos, d, u, v, +1, -1, normalDir)
						cell.ao[2] = sampleAO(cache, dim, pos, d, u, v, +1, +1, normalDir)
						cell.ao[3] = sampleAO(cache, dim, pos, d, u, v, -1, +1, normalDir)
					}
				}

				for j := 0; j < gridSize; j++ {
					for i := 0; i < gridSize; {
						ref := mask[j*gridSize+i]
						if ref.empty() {
							i++
							continue
						}

						w := 1
						for i+w < gridSize && ref.canMerge(mask[j*gridSize+(i+w)]) {
							w++
						}

						h := 1
						canExpand := true
						for j+h < gridSize && canExpand {
							for k := 0; k < w; k++ {
								if !ref.canMerge(mask[(j+h)*gridSize+(i+k)]) {
									canExpand = false
									break
								}
							}
							if canExpand {
								h++
							}
						}

						vi, vj := i*step, j*step
						vw, vh := w*step, h*step
						faceLayer := layer * step
						if normalDir > 0 {
							faceLayer += step
						}

						var corners [4][3]int
						corners[0][d], corners[0][u], corners[0][v] = faceLayer, vi, vj
						corners[1][d], corners[1][u], corners[1][v] = faceLayer, vi+vw, vj
						corners[2][d], corners[2][u], corners[2][v] = faceLayer, vi+vw, vj+vh
						corners[3][d], corners[3][u], corners[3][v] = faceLayer, vi, vj+vh

						ao0 := mask[j*gridSize+i].ao[0]
						ao1 := mask[j*gridSize+(i+w-1)].ao[1]
						ao2 := mask[(j+h-1)*gridSize+(i+w-1)].ao[2]
						ao3 := mask[(j+h-1)*gridSize+i].ao[3]

						emitQuad(&mesh, corners, faceID, ref.paletteIdx, [4]uint8{ao0, ao1, ao2, ao3}, normalDir)

						for jj := j; jj < j+h; jj++ {
							for ii := i; ii < i+w; ii++ {
								mask[jj*gridSize+ii].faceID = 0xFF
							}
						}
						i += w
					}
				}
			}
		}
	}

	return mesh
}

// sampleAO samples the three occluder cells (two edge-adjacent, one
// diagonal) for one corner of a face and reduces them to an AO level.
func sampleAO(cache []voxel.Data, dim int, pos [3]int, d, u, v, du, dv, normalDir int) uint8 {
	base := pos
	if normalDir > 0 {
		base[d]++
	} else {
		base[d]--
	}

	s1 := base
	s1[u] += du
	s2 := base
	s2[v] += dv
	sc := base
	sc[u] += du
	sc[v] += dv

	b1 := cache[cacheIndex(s1[0], s1[1], s1[2], dim)].IsSolid()
	b2 := cache[cacheIndex(s2[0], s2[1], s2[2], dim)].IsSolid()
	bc := cache[cacheIndex(sc[0], sc[1], sc[2], dim)].IsSolid()
	return computeAO(b1, b2, bc)
}

// emitQuad appends one quad (4 vertices, 6 indices) to mesh, winding
// CCW for the outward normal and choosing the diagonal split that
// avoids an AO bowtie artifact.
func emitQuad(mesh *MeshData, corners [4][3]int, faceID uint8, paletteIdx uint16, ao [4]uint8, normalDir int) {
	order := [4]int{0, 1, 2, 3}
	vao := ao
	if normalDir < 0 {
		order = [4]int{3, 2, 1, 0}
		vao = [4]uint8{ao[3], ao[2], ao[1], ao[0]}
	}

	base := uint32(len(mesh.Vertices))
	for c := 0; c < 4; c++ {
		co := corners[order[c]]
		mesh.Vertices = append(mesh.Vertices, voxel.Vertex{
			X:       uint8(co[0]),
			Y:       uint8(co[1]),
			Z:       uint8(co[2]),
			FaceID:  faceID,
			AO:      vao[c],
			Palette: paletteIdx,
		})
	}

	if int(vao[0])+int(vao[2]) < int(vao[1])+int(vao[3]) {
		mesh.Indices = append(mesh.Indices, base+1, base+2, base+3, base+1, base+3, base+0)
	} else {
		mesh.Indices = append(mesh.Indices, base+0, base+1, base+2, base+0, base+2, base+3)
	}
}
