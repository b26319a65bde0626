// Package scene turns chunk storage into GPU draw calls: it tracks
// which chunks need remeshing, batches that work onto the worker
// pool, uploads finished meshes in one shot per frame, and draws the
// visible set with frustum culling and per-chunk fade-in.
package scene

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"voxelcore/internal/config"
	"voxelcore/internal/culling"
	"voxelcore/internal/geometry"
	"voxelcore/internal/gpu"
	"voxelcore/internal/noise"
	"voxelcore/internal/profiling"
	"voxelcore/internal/worker"
	"voxelcore/internal/world"
)

type taskKind int

const (
	kindMesh taskKind = iota
	kindGenerate
)

type taskInfo struct {
	coord world.Coord
	kind  taskKind
	lod   int
}

// chunkRecord is what the renderer keeps per resident chunk.
type chunkRecord struct {
	hasMesh   bool
	mesh      geometry.Mesh
	lod       int
	aabb      culling.AABB
	fadeStart float32
}

// Stats surfaces per-frame renderer counters.
type Stats struct {
	Visible int
	Culled  int
	Pools   int
}

// Renderer owns the dirty set, in-flight task bookkeeping, and the
// resident chunk render data.
type Renderer struct {
	cfg     config.Config
	storage *world.Storage
	pool    *worker.Pool
	geo     *geometry.Manager
	dev     gpu.Device

	mu         sync.Mutex
	dirty      map[world.Coord]struct{}
	records    map[world.Coord]chunkRecord
	nextTaskID atomic.Uint64
	inFlight   map[uint64]taskInfo
	last       Stats
}

func (r *Renderer) lastStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// NewRenderer wires a Renderer to its storage, worker pool, geometry
// manager, and the host device it must block on before a batched
// upload (see RebuildDirtyChunks).
func NewRenderer(cfg config.Config, storage *world.Storage, pool *worker.Pool, geo *geometry.Manager, dev gpu.Device) *Renderer {
	return &Renderer{
		cfg:      cfg,
		storage:  storage,
		pool:     pool,
		geo:      geo,
		dev:      dev,
		dirty:    make(map[world.Coord]struct{}),
		records:  make(map[world.Coord]chunkRecord),
		inFlight: make(map[uint64]taskInfo),
	}
}

// MarkDirty queues c for remeshing on the next FlushDirty.
func (r *Renderer) MarkDirty(c world.Coord) {
	r.mu.Lock()
	r.dirty[c] = struct{}{}
	r.mu.Unlock()
}

// HasMesh reports whether c currently has uploaded geometry.
func (r *Renderer) HasMesh(c world.Coord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[c]
	return ok && rec.hasMesh
}

// FlushDirty submits one HIGH-priority task per dirty chunk: a
// GENERATE task if the chunk hasn't been created/filled yet, otherwise
// a MESH task at the chunk's currently assigned LOD.
func (r *Renderer) FlushDirty() {
	r.mu.Lock()
	coords := make([]world.Coord, 0, len(r.dirty))
	for c := range r.dirty {
		coords = append(coords, c)
	}
	r.dirty = make(map[world.Coord]struct{})
	r.mu.Unlock()

	for _, c := range coords {
		r.submitFor(c)
	}
}

func (r *Renderer) submitFor(c world.Coord) {
	ch, _ := r.storage.CreateChunkIfMissing(c)
	if ch.State() != world.Ready {
		r.submitGenerate(c, ch)
		return
	}
	r.mu.Lock()
	l := r.records[c].lod
	r.mu.Unlock()
	r.submitMesh(c, ch, l)
}

// SubmitGenerateTaskHigh submits a GENERATE task for c regardless of
// its dirty-set membership; used when a fresh chunk enters the
// resident radius.
func (r *Renderer) SubmitGenerateTaskHigh(c world.Coord, seed int64, baseHeight, amplitude float64) {
	ch, _ := r.storage.CreateChunkIfMissing(c)
	r.submitGenerateWithTerrain(c, ch, seed, baseHeight, amplitude)
}

func (r *Renderer) submitGenerate(c world.Coord, ch *world.Chunk) {
	r.submitGenerateWithTerrain(c, ch, 0, 4, 20)
}

func (r *Renderer) submitGenerateWithTerrain(c world.Coord, ch *world.Chunk, seed int64, baseHeight, amplitude float64) {
	if !ch.TryBeginGenerating() {
		return
	}
	id := r.nextTaskID.Add(1)
	r.mu.Lock()
	r.inFlight[id] = taskInfo{coord: c, kind: kindGenerate}
	r.mu.Unlock()

	r.pool.Submit(worker.Task{
		ID: id,
		Run: func() any {
			ch.FillTerrain(noise.NewSource(seed), baseHeight, amplitude)
			ch.MarkReady()
			return nil
		},
	}, worker.High)
}

func (r *Renderer) submitMesh(c world.Coord, ch *world.Chunk, l int) {
	id := r.nextTaskID.Add(1)
	r.mu.Lock()
	r.inFlight[id] = taskInfo{coord: c, kind: kindMesh, lod: l}
	r.mu.Unlock()

	nb := r.storage.Neighbours(c)
	r.pool.Submit(worker.Task{
		ID: id,
		Run: func() any {
			return ch.GenerateMesh(nb, l)
		},
	}, worker.High)
}

// RebuildDirtyChunks drains completed worker results, allocates GPU
// space for newly meshed chunks, and issues exactly one batched
// upload for everything collected this call. A GENERATE result simply
// re-enqueues the chunk's MESH task rather than fusing mesh generation
// into the same task (see the top-level design notes for why).
func (r *Renderer) RebuildDirtyChunks(currentTime float32) error {
	defer profiling.Track("scene.RebuildDirtyChunks")()

	results := r.pool.Collect()
	if len(results) == 0 {
		return nil
	}

	var reqs []geometry.UploadRequest
	var uploaded []world.Coord
	for _, res := range results {
		r.mu.Lock()
		info, ok := r.inFlight[res.ID]
		delete(r.inFlight, res.ID)
		r.mu.Unlock()
		if !ok {
			continue // StaleResult: task ID unknown, drop silently
		}

		if info.kind == kindGenerate {
			ch, _ := r.storage.GetChunk(info.coord)
			if ch != nil {
				r.submitMesh(info.coord, ch, r.currentLOD(info.coord))
			}
			continue
		}

		r.mu.Lock()
		wantLOD := r.records[info.coord].lod
		r.mu.Unlock()
		if info.lod != wantLOD {
			continue // StaleResult: LOD changed since this task was submitted
		}

		mesh, ok := res.Value.(world.MeshData)
		if !ok {
			continue
		}

		r.mu.Lock()
		old, hadOld := r.records[info.coord]
		r.mu.Unlock()
		if hadOld && old.hasMesh {
			r.geo.FreeMesh(old.mesh)
		}

		if len(mesh.Vertices) == 0 {
			r.mu.Lock()
			r.records[info.coord] = chunkRecord{hasMesh: false, lod: info.lod}
			r.mu.Unlock()
			continue
		}

		alloc, err := r.geo.AllocateMeshRaw(uint32(len(mesh.Vertices)), uint32(len(mesh.Indices)))
		if err != nil {
			// CapacityExceeded: leave the chunk dirty, it retries next frame.
			r.MarkDirty(info.coord)
			continue
		}

		rec := chunkRecord{
			hasMesh:   true,
			mesh:      alloc,
			lod:       info.lod,
			aabb:      chunkAABB(info.coord, r.cfg.ChunkSize),
			fadeStart: currentTime,
		}
		r.mu.Lock()
		r.records[info.coord] = rec
		r.mu.Unlock()

		reqs = append(reqs, geometry.UploadRequest{Mesh: alloc, Vertices: mesh.Vertices, Indices: mesh.Indices})
		uploaded = append(uploaded, info.coord)
	}

	if len(reqs) == 0 {
		return nil
	}
	err := r.dev.WaitIdle()
	if err == nil {
		err = r.geo.ExecuteBatchUpload(reqs)
	}
	if err != nil {
		// UploadFailure: release the unfilled allocations and leave the
		// chunks dirty so the next frame retries.
		for _, c := range uploaded {
			r.mu.Lock()
			rec := r.records[c]
			r.records[c] = chunkRecord{lod: rec.lod}
			r.mu.Unlock()
			if rec.hasMesh {
				r.geo.FreeMesh(rec.mesh)
			}
			r.MarkDirty(c)
		}
	}
	return err
}

// currentLOD returns c's currently assigned LOD, or -1 if c has no
// render record yet (a freshly-streamed-in chunk), mirroring the
// original engine's "no LOD assigned" sentinel so Controller.Calculate
// can jump a distant new chunk straight to its steady-state LOD instead
// of always starting at 0.
func (r *Renderer) currentLOD(c world.Coord) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[c]
	if !ok {
		return -1
	}
	return rec.lod
}

// SetLOD assigns a new target LOD for c. If it differs from the
// chunk's current mesh LOD, the chunk is marked dirty.
func (r *Renderer) SetLOD(c world.Coord, l int) {
	r.mu.Lock()
	rec := r.records[c]
	changed := rec.lod != l
	rec.lod = l
	r.records[c] = rec
	r.mu.Unlock()
	if changed {
		r.MarkDirty(c)
	}
}

// RemoveChunk frees a chunk's GPU geometry and drops its record.
func (r *Renderer) RemoveChunk(c world.Coord) {
	r.mu.Lock()
	rec, ok := r.records[c]
	delete(r.records, c)
	delete(r.dirty, c)
	r.mu.Unlock()
	if ok && rec.hasMesh {
		r.geo.FreeMesh(rec.mesh)
	}
}

// pushConstants is the {origin, fade_progress} block written at
// offset 128 of the pipeline layout's push-constant range.
type pushConstants struct {
	OriginX, OriginY, OriginZ float32
	FadeProgress              float32
}

func (p pushConstants) bytes() []byte {
	var b [16]byte
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(p.OriginX))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(p.OriginY))
	binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(p.OriginZ))
	binary.LittleEndian.PutUint32(b[12:16], math.Float32bits(p.FadeProgress))
	return b[:]
}

const pushConstantOffset = 128

// Render frustum-culls the resident chunk set and issues one draw per
// visible chunk, rebinding vertex/index buffers only when the pool
// changes between consecutive draws.
func (r *Renderer) Render(rec gpu.CommandRecorder, frustum culling.Frustum, currentTime float32) Stats {
	defer profiling.Track("scene.Render")()

	r.mu.Lock()
	records := make(map[world.Coord]chunkRecord, len(r.records))
	for c, v := range r.records {
		records[c] = v
	}
	r.mu.Unlock()

	var stats Stats
	stats.Pools = r.geo.PoolCount()

	boundPool := -1
	for c, rd := range records {
		if !rd.hasMesh {
			continue
		}
		if !frustum.IsVisible(rd.aabb) {
			stats.Culled++
			continue
		}
		stats.Visible++

		if rd.mesh.PoolIndex != boundPool {
			r.geo.BindPool(rec, rd.mesh.PoolIndex)
			boundPool = rd.mesh.PoolIndex
		}

		fade := (currentTime - rd.fadeStart) / r.cfg.FadeDuration
		if fade < 0 {
			fade = 0
		} else if fade > 1 {
			fade = 1
		}

		pc := pushConstants{
			OriginX:      float32(c.X * r.cfg.ChunkSize),
			OriginY:      float32(c.Y * r.cfg.ChunkSize),
			OriginZ:      float32(c.Z * r.cfg.ChunkSize),
			FadeProgress: fade,
		}
		rec.PushConstants(0, pushConstantOffset, pc.bytes())

		vertexOffsetInVerts := int32(rd.mesh.VertexOffset / uint64(voxelVertexSize))
		indexOffsetInIdx := uint32(rd.mesh.IndexOffset / 4)
		rec.DrawIndexed(rd.mesh.IndexCount, 1, indexOffsetInIdx, vertexOffsetInVerts, 0)
	}

	r.mu.Lock()
	r.last = stats
	r.mu.Unlock()
	return stats
}

const voxelVertexSize = 8

func chunkAABB(c world.Coord, size int) culling.AABB {
	min := mgl32.Vec3{float32(c.X * size), float32(c.Y * size), float32(c.Z * size)}
	max := min.Add(mgl32.Vec3{float32(size), float32(size), float32(size)})
	return culling.AABB{Min: min, Max: max}
}

