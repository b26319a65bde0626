package geometry

import (
	"unsafe"

	"voxelcore/internal/config"
	"voxelcore/internal/gpu"
	"voxelcore/internal/voxel"
)

// UploadRequest pairs a freshly-allocated Mesh with the CPU-side data
// that must be copied into its sub-allocated region.
type UploadRequest struct {
	Mesh     Mesh
	Vertices []voxel.Vertex
	Indices  []uint32
}

// Manager owns a growable list of Pools and batches uploads across all
// of them into as few staging buffers and pipeline barriers as
// possible.
type Manager struct {
	dev   gpu.Device
	cfg   config.Config
	pools []*Pool
}

// NewManager creates a Manager with one pool pre-allocated at the
// configured default sizes.
func NewManager(dev gpu.Device, cfg config.Config) (*Manager, error) {
	m := &Manager{dev: dev, cfg: cfg}
	if _, err := m.addPool(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) addPool() (*Pool, error) {
	p, err := newPool(m.dev, m.cfg.VertexPoolBytes, m.cfg.IndexPoolBytes)
	if err != nil {
		return nil, err
	}
	m.pools = append(m.pools, p)
	return p, nil
}

// AllocateMeshRaw reserves space for mesh in the first pool with room,
// creating a fresh pool if none of the existing ones fit it. Returns
// ErrCapacityExceeded only once a brand new pool also can't hold it
// (i.e. the mesh itself exceeds the configured pool size).
func (m *Manager) AllocateMeshRaw(vertexCount, indexCount uint32) (Mesh, error) {
	for i, p := range m.pools {
		if mesh, ok := p.tryAllocate(vertexCount, indexCount, m.cfg.AllocAlign); ok {
			mesh.PoolIndex = i
			return mesh, nil
		}
	}
	p, err := m.addPool()
	if err != nil {
		return Mesh{}, err
	}
	mesh, ok := p.tryAllocate(vertexCount, indexCount, m.cfg.AllocAlign)
	if !ok {
		return Mesh{}, ErrCapacityExceeded
	}
	mesh.PoolIndex = len(m.pools) - 1
	return mesh, nil
}

// FreeMesh releases a previously allocated mesh back to its pool.
func (m *Manager) FreeMesh(mesh Mesh) {
	if mesh.PoolIndex < 0 || mesh.PoolIndex >= len(m.pools) {
		return
	}
	m.pools[mesh.PoolIndex].free(mesh)
}

// BindPool records vertex/index buffer bind commands for a pool.
func (m *Manager) BindPool(rec gpu.CommandRecorder, poolIndex int) {
	p := m.pools[poolIndex]
	rec.BindVertexBuffer(p.Vertex, 0)
	rec.BindIndexBuffer(p.Index, 0)
}

// PoolCount reports how many pools currently exist.
func (m *Manager) PoolCount() int { return len(m.pools) }

// Reset frees every pool and its GPU buffers, leaving the manager
// with none. Used when tearing down or reloading the whole world.
func (m *Manager) Reset() {
	for _, p := range m.pools {
		m.dev.DestroyBuffer(p.Vertex)
		m.dev.DestroyBuffer(p.Index)
	}
	m.pools = nil
}

// ExecuteBatchUpload copies every request's vertex/index data into its
// sub-allocated region using exactly one staging vertex buffer and one
// staging index buffer sized for the whole batch (regardless of how
// many pools it touches), then inserts one vertex-input and one
// index-input barrier per touched pool, all flushed by the host as a
// single combined pipeline barrier before returning.
func (m *Manager) ExecuteBatchUpload(reqs []UploadRequest) error {
	if len(reqs) == 0 {
		return nil
	}

	byPool := make(map[int][]UploadRequest)
	for _, r := range reqs {
		byPool[r.Mesh.PoolIndex] = append(byPool[r.Mesh.PoolIndex], r)
	}

	var vertexBytes, indexBytes uint64
	for _, r := range reqs {
		vertexBytes += uint64(len(r.Vertices)) * vertexSize
		indexBytes += uint64(len(r.Indices)) * indexSize
	}

	vStaging, err := m.dev.CreateBuffer(gpu.BufferDesc{
		Size: vertexBytes, Usage: gpu.UsageTransferSrc, MemoryUsage: gpu.MemoryCPUToGPU,
	})
	if err != nil {
		return ErrUploadFailure
	}
	defer m.dev.DestroyBuffer(vStaging)

	iStaging, err := m.dev.CreateBuffer(gpu.BufferDesc{
		Size: indexBytes, Usage: gpu.UsageTransferSrc, MemoryUsage: gpu.MemoryCPUToGPU,
	})
	if err != nil {
		return ErrUploadFailure
	}
	defer m.dev.DestroyBuffer(iStaging)

	if err := writeVertexStaging(vStaging, reqs); err != nil {
		return ErrUploadFailure
	}
	if err := writeIndexStaging(iStaging, reqs); err != nil {
		return ErrUploadFailure
	}

	rec := m.dev.BeginSingleTimeCommands()

	var vCursor, iCursor uint64
	for _, r := range reqs {
		pool := m.pools[r.Mesh.PoolIndex]
		vLen := uint64(len(r.Vertices)) * vertexSize
		iLen := uint64(len(r.Indices)) * indexSize
		rec.CopyBuffer(vStaging, pool.Vertex, vCursor, r.Mesh.VertexOffset, vLen)
		rec.CopyBuffer(iStaging, pool.Index, iCursor, r.Mesh.IndexOffset, iLen)
		vCursor += vLen
		iCursor += iLen
	}

	for poolIdx, poolReqs := range byPool {
		pool := m.pools[poolIdx]

		var poolVertexBytes, poolIndexBytes uint64
		for _, r := range poolReqs {
			poolVertexBytes += uint64(len(r.Vertices)) * vertexSize
			poolIndexBytes += uint64(len(r.Indices)) * indexSize
		}
		rec.BufferBarrier(pool.Vertex, 0, poolVertexBytes, gpu.BarrierVertexInput)
		rec.BufferBarrier(pool.Index, 0, poolIndexBytes, gpu.BarrierIndexInput)
	}

	if err := m.dev.EndSingleTimeCommands(rec); err != nil {
		return ErrUploadFailure
	}
	return nil
}

func writeVertexStaging(buf gpu.Buffer, reqs []UploadRequest) error {
	ptr, err := buf.Map()
	if err != nil {
		return err
	}
	defer buf.Unmap()

	dst := unsafe.Slice((*byte)(ptr), buf.Size())
	var cursor uint64
	for _, r := range reqs {
		if len(r.Vertices) == 0 {
			continue
		}
		n := uint64(len(r.Vertices)) * vertexSize
		src := unsafe.Slice((*byte)(unsafe.Pointer(&r.Vertices[0])), n)
		copy(dst[cursor:cursor+n], src)
		cursor += n
	}
	return buf.Flush(0, buf.Size())
}

func writeIndexStaging(buf gpu.Buffer, reqs []UploadRequest) error {
	ptr, err := buf.Map()
	if err != nil {
		return err
	}
	defer buf.Unmap()

	dst := unsafe.Slice((*byte)(ptr), buf.Size())
	var cursor uint64
	for _, r := range reqs {
		if len(r.Indices) == 0 {
			continue
		}
		n := uint64(len(r.Indices)) * indexSize
		src := unsafe.Slice((*byte)(unsafe.Pointer(&r.Indices[0])), n)
		copy(dst[cursor:cursor+n], src)
		cursor += n
	}
	return buf.Flush(0, buf.Size())
}
