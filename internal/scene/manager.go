package scene

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"voxelcore/internal/config"
	"voxelcore/internal/culling"
	"voxelcore/internal/geometry"
	"voxelcore/internal/gpu"
	"voxelcore/internal/lod"
	"voxelcore/internal/voxel"
	"voxelcore/internal/worker"
	"voxelcore/internal/world"
)

// Manager is the facade the host program drives: it owns the chunk
// grid, the worker pool, the geometry manager, and the LOD controller,
// and exposes the handful of calls a frame needs.
type Manager struct {
	cfg     config.Config
	storage *world.Storage
	pool    *worker.Pool
	geo     *geometry.Manager
	render  *Renderer
	lodc    lod.Controller

	radiusX, radiusY, radiusZ int
	seed                      int64
	baseHeight, amplitude     float64

	onPanicMu sync.Mutex
	onPanic   func(error)
}

// NewManager wires every subsystem together. dev is the host's GPU
// device implementation; radiusX/Y/Z bound the resident chunk grid.
func NewManager(cfg config.Config, dev gpu.Device, radiusX, radiusY, radiusZ int, seed int64) (*Manager, error) {
	storage := world.NewStorage(cfg, radiusX, radiusY, radiusZ)
	geo, err := geometry.NewManager(dev, cfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:        cfg,
		storage:    storage,
		geo:        geo,
		lodc:       lod.NewController(cfg),
		radiusX:    radiusX,
		radiusY:    radiusY,
		radiusZ:    radiusZ,
		seed:       seed,
		baseHeight: 32,
		amplitude:  32,
	}
	m.pool = worker.NewPool(cfg, func(err error) {
		m.onPanicMu.Lock()
		cb := m.onPanic
		m.onPanicMu.Unlock()
		if cb != nil {
			cb(err)
		}
	})
	m.render = NewRenderer(cfg, storage, m.pool, geo, dev)
	return m, nil
}

// OnPanic registers cb to be called, from the panicking worker
// goroutine, whenever a mesh/generate task panics. The pool has
// already begun shutting down by the time cb runs. Only the most
// recently registered callback is kept.
func (m *Manager) OnPanic(cb func(error)) {
	m.onPanicMu.Lock()
	m.onPanic = cb
	m.onPanicMu.Unlock()
}

// GenerateWorld synchronously fills every chunk slot with terrain in
// parallel, computes each chunk's initial LOD from its distance to the
// world origin (no camera position exists yet), and submits an initial
// mesh task for every one of them.
func (m *Manager) GenerateWorld() {
	m.storage.GenerateWorld(m.seed, m.baseHeight, m.amplitude)
	for _, c := range m.storage.AllCoords() {
		center := chunkCenter(c, m.cfg.ChunkSize)
		lod := m.lodc.Calculate(center.Len(), -1)
		m.render.SetLOD(c, lod)
		m.render.MarkDirty(c)
		if ch, ok := m.storage.GetChunk(c); ok {
			ch.SetClean()
		}
	}
	m.render.FlushDirty()
}

// UpdateCamera recomputes each resident chunk's target LOD from its
// distance to camPos, applies hysteresis via the LOD controller, and
// marks any chunk whose LOD changed dirty. A chunk directly above or
// below the camera gets its target LOD from a boosted (nearer)
// effective distance, since vertical detail loss is far more visible
// than horizontal — a small vertical streaming boost recovered from
// the original engine's camera-follow behaviour.
func (m *Manager) UpdateCamera(camPos mgl32.Vec3) {
	const verticalBoost = 0.5

	for _, c := range m.storage.AllCoords() {
		center := chunkCenter(c, m.cfg.ChunkSize)
		d := center.Sub(camPos)
		horizontal := mgl32.Vec2{d.X(), d.Z()}.Len()
		vertical := float32Abs(d.Y())
		dist := horizontal + vertical*verticalBoost

		current := m.render.currentLOD(c)
		next := m.lodc.Calculate(dist, current)
		if next != current {
			m.render.SetLOD(c, next)
		}
	}
	m.render.FlushDirty()
}

func float32Abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func chunkCenter(c world.Coord, size int) mgl32.Vec3 {
	half := float32(size) / 2
	return mgl32.Vec3{
		float32(c.X*size) + half,
		float32(c.Y*size) + half,
		float32(c.Z*size) + half,
	}
}

// RebuildDirtyChunks drains completed mesh/generate work and uploads
// it in one batch. currentTime feeds the fade-in animation.
func (m *Manager) RebuildDirtyChunks(currentTime float32) error {
	return m.render.RebuildDirtyChunks(currentTime)
}

// Render draws every visible resident chunk.
func (m *Manager) Render(rec gpu.CommandRecorder, frustum culling.Frustum, currentTime float32) Stats {
	return m.render.Render(rec, frustum, currentTime)
}

// GetVoxel reads a voxel at world coordinates.
func (m *Manager) GetVoxel(wx, wy, wz int) voxel.Data {
	return m.storage.GetVoxel(wx, wy, wz)
}

// SetVoxel writes a voxel at world coordinates, then marks every chunk
// Storage.SetVoxel actually flagged dirty (the owning chunk, plus any
// neighbour whose boundary layer the edit touched) for remeshing,
// consuming Chunk.IsDirty/SetClean instead of recomputing which
// boundary the edit crossed a second time.
func (m *Manager) SetVoxel(wx, wy, wz int, v voxel.Data) {
	m.storage.SetVoxel(wx, wy, wz, v)
	c, _, _, _ := m.storage.WorldToChunk(wx, wy, wz)

	m.syncDirty(c)
	for _, n := range m.storage.Neighbours(c) {
		if n != nil {
			m.syncDirty(n.Coord)
		}
	}
}

func (m *Manager) syncDirty(c world.Coord) {
	ch, ok := m.storage.GetChunk(c)
	if !ok || !ch.IsDirty() {
		return
	}
	m.render.MarkDirty(c)
	ch.SetClean()
}

// LastStats reports the last frame's visible/culled chunk counters and
// pool count for a debug overlay.
func (m *Manager) LastStats() Stats { return m.render.lastStats() }

// Close shuts down the worker pool and releases GPU geometry.
func (m *Manager) Close() {
	m.pool.Close()
	m.geo.Reset()
}
