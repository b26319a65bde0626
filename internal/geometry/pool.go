// Package geometry sub-allocates chunk meshes into a small number of
// large GPU vertex/index buffer pairs, uploading new meshes in
// batches so a whole frame's worth of new geometry crosses one
// pipeline barrier instead of one per chunk.
package geometry

import (
	"errors"
	"unsafe"

	"voxelcore/internal/alloc"
	"voxelcore/internal/gpu"
	"voxelcore/internal/voxel"
)

// ErrCapacityExceeded is returned when a mesh doesn't fit in any
// existing pool and the caller has already tried creating a fresh one.
var ErrCapacityExceeded = errors.New("geometry: no pool has room for this mesh")

// ErrUploadFailure is returned for a failed batched upload; the caller's chunks
// remain marked dirty so the next frame retries.
var ErrUploadFailure = errors.New("geometry: batched upload failed")

const vertexSize = uint64(unsafe.Sizeof(voxel.Vertex{}))
const indexSize = uint64(4)

// Mesh is a handle to a sub-allocated region across one pool's vertex
// and index buffers.
type Mesh struct {
	PoolIndex    int
	VertexOffset uint64 // bytes
	VertexCount  uint32
	IndexOffset  uint64 // bytes
	IndexCount   uint32
}

// Pool owns one vertex buffer and one index buffer, each with its own
// free-list allocator.
type Pool struct {
	Vertex   gpu.Buffer
	Index    gpu.Buffer
	vertices *alloc.BlockAllocator
	indices  *alloc.BlockAllocator
}

func newPool(dev gpu.Device, vertexBytes, indexBytes uint64) (*Pool, error) {
	vb, err := dev.CreateBuffer(gpu.BufferDesc{
		Size:        vertexBytes,
		Usage:       gpu.UsageVertex | gpu.UsageTransferDst | gpu.UsageShaderDeviceAddress,
		MemoryUsage: gpu.MemoryGPUOnly,
	})
	if err != nil {
		return nil, err
	}
	ib, err := dev.CreateBuffer(gpu.BufferDesc{
		Size:        indexBytes,
		Usage:       gpu.UsageIndex | gpu.UsageTransferDst | gpu.UsageShaderDeviceAddress,
		MemoryUsage: gpu.MemoryGPUOnly,
	})
	if err != nil {
		dev.DestroyBuffer(vb)
		return nil, err
	}
	return &Pool{
		Vertex:   vb,
		Index:    ib,
		vertices: alloc.NewBlockAllocator(vertexBytes),
		indices:  alloc.NewBlockAllocator(indexBytes),
	}, nil
}

// tryAllocate reserves room for vertexCount vertices and indexCount
// indices, atomically: if the index allocation fails after the vertex
// one succeeds, the vertex allocation is rolled back so a pool never
// ends up with an orphaned vertex range.
func (p *Pool) tryAllocate(vertexCount, indexCount uint32, align uint64) (Mesh, bool) {
	vBytes := uint64(vertexCount) * vertexSize
	iBytes := uint64(indexCount) * indexSize

	vOff, ok := p.vertices.Allocate(vBytes, align)
	if !ok {
		return Mesh{}, false
	}
	iOff, ok := p.indices.Allocate(iBytes, align)
	if !ok {
		p.vertices.Free(vOff, vBytes)
		return Mesh{}, false
	}
	return Mesh{
		VertexOffset: vOff,
		VertexCount:  vertexCount,
		IndexOffset:  iOff,
		IndexCount:   indexCount,
	}, true
}

func (p *Pool) free(m Mesh) {
	p.vertices.Free(m.VertexOffset, uint64(m.VertexCount)*vertexSize)
	p.indices.Free(m.IndexOffset, uint64(m.IndexCount)*indexSize)
}
