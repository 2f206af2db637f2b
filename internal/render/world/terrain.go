// Package world couples the chunk store with the resident mesh cache so a
// chunk is never meshed, uploaded or evicted through one map without the
// other.
package world

import (
	"errors"
	"fmt"
	"time"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/gpu"
	"voxelmesh.ai/internal/render/mesh"
	"voxelmesh.ai/internal/render/terrain/store"
	"voxelmesh.ai/internal/render/voxel"
)

type Config struct {
	VoxelSize float32
	Capacity  gpu.Capacity
}

// Terrain owns the voxel store, the mesh cache, the mesher scratch buffer
// and the device meshes are uploaded to. It is not safe for concurrent use;
// Stats may be called from any goroutine.
type Terrain struct {
	cfg   Config
	dev   gpu.Device
	store *store.ChunkStore
	cache *MeshCache
	quads *mesh.QuadBuffer
	sink  MeshSink

	seq   uint64
	now   func() time.Time
	stats counters
}

// New validates the capacity plan and returns an empty terrain.
func New(dev gpu.Device, cfg Config) (*Terrain, error) {
	if dev == nil {
		return nil, errors.New("world: nil device")
	}
	if cfg.VoxelSize <= 0 {
		return nil, fmt.Errorf("world: voxel size must be > 0, got %v", cfg.VoxelSize)
	}
	if err := cfg.Capacity.Validate(); err != nil {
		return nil, err
	}
	return &Terrain{
		cfg:   cfg,
		dev:   dev,
		store: store.NewChunkStore(),
		cache: NewMeshCache(),
		quads: mesh.NewQuadBuffer(),
		now:   time.Now,
	}, nil
}

func (t *Terrain) SetSink(s MeshSink) { t.sink = s }

func (t *Terrain) Config() Config { return t.cfg }

// Store exposes the voxel store for read access.
func (t *Terrain) Store() *store.ChunkStore { return t.store }

// Cache exposes the mesh cache for read access.
func (t *Terrain) Cache() *MeshCache { return t.cache }

// SetChunk fills a chunk without meshing it. A resident mesh stays as it was
// until the next Remesh.
func (t *Terrain) SetChunk(pos chunk.Pos, gen store.Generator) {
	t.store.SetChunk(pos, gen)
	t.stats.chunks.Store(int64(t.store.Len()))
}

// MakeMesh meshes a loaded chunk on the CPU. It returns ErrChunkNotLoaded
// for coordinates that were never set.
func (t *Terrain) MakeMesh(pos chunk.Pos) (*mesh.CPUMesh, error) {
	ch, ok := t.store.Get(pos)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrChunkNotLoaded, pos)
	}
	mesh.GreedyQuads[voxel.Block, bool](ch.Voxels, chunk.Padded, mesh.DefaultMin, mesh.DefaultMax, &mesh.RightHandedYUp, t.quads)
	m, err := mesh.Build(t.quads, &mesh.RightHandedYUp, pos, t.cfg.VoxelSize)
	if err != nil {
		return nil, fmt.Errorf("mesh chunk %v: %w", pos, err)
	}
	return m, nil
}

// FillAndMesh fills a chunk and makes its mesh resident.
func (t *Terrain) FillAndMesh(pos chunk.Pos, gen store.Generator) error {
	t.SetChunk(pos, gen)
	return t.Remesh(pos)
}

// Remesh rebuilds the mesh of a loaded chunk and writes it to the device:
// a first upload allocates buffers at the planned capacity, later calls
// rewrite them in place. A mesh that exceeds the plan is an error and leaves
// the resident mesh unchanged.
func (t *Terrain) Remesh(pos chunk.Pos) error {
	start := t.now()
	cpu, err := t.MakeMesh(pos)
	if err != nil {
		return err
	}

	kind := MeshUpdated
	gm, ok := t.cache.Get(pos)
	if ok {
		prev := int64(gm.NumIndices() / 6)
		if err := gm.Update(t.dev, cpu); err != nil {
			return fmt.Errorf("update chunk %v: %w", pos, err)
		}
		t.stats.residentQuads.Add(int64(cpu.NumQuads()) - prev)
		t.stats.updates.Inc()
	} else {
		gm, err = gpu.UploadSized(t.dev, cpu, t.cfg.Capacity)
		if err != nil {
			return fmt.Errorf("upload chunk %v: %w", pos, err)
		}
		t.cache.Insert(pos, gm)
		kind = MeshUploaded
		t.stats.residentQuads.Add(int64(cpu.NumQuads()))
		t.stats.uploads.Inc()
		t.stats.meshes.Store(int64(t.cache.Len()))
	}
	t.store.ClearDirty(pos)

	elapsed := t.now().Sub(start).Microseconds()
	t.stats.quadsBuilt.Add(uint64(cpu.NumQuads()))
	t.stats.lastBuild.Store(elapsed)

	ev := MeshEvent{
		Time:        start,
		Pos:         pos,
		Kind:        kind,
		Quads:       cpu.NumQuads(),
		Vertices:    cpu.NumVertices(),
		Indices:     cpu.NumIndices(),
		CapVertices: gm.Capacity.Vertices,
		CapIndices:  gm.Capacity.Indices,
		Digest:      digestHex(cpu.Digest()),
		BuildMicros: elapsed,
		Mesh:        cpu,
	}
	if ch, ok := t.store.Get(pos); ok {
		ev.VoxelDigest = digestHex(ch.Digest())
	}
	t.emit(ev)
	return nil
}

// RemeshDirty remeshes every chunk edited since its last mesh, in coordinate
// order, and returns how many were rebuilt. It stops at the first error.
func (t *Terrain) RemeshDirty() (int, error) {
	n := 0
	for _, pos := range t.store.DirtyChunkKeys() {
		if err := t.Remesh(pos); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// SetBlock edits one world voxel. It reports whether a loaded chunk changed;
// the chunk is remeshed by the next RemeshDirty.
func (t *Terrain) SetBlock(world [3]int, b voxel.Block) bool {
	_, changed := t.store.SetBlock(world, b)
	return changed
}

func (t *Terrain) GetBlock(world [3]int) voxel.Block { return t.store.GetBlock(world) }

// Evict drops a chunk together with its resident mesh.
func (t *Terrain) Evict(pos chunk.Pos) bool {
	loaded := t.store.Delete(pos)
	gm, meshed := t.cache.Delete(pos)
	if meshed {
		t.stats.residentQuads.Sub(int64(gm.NumIndices() / 6))
		gm.Release(t.dev)
	}
	if !loaded && !meshed {
		return false
	}
	t.stats.chunks.Store(int64(t.store.Len()))
	t.stats.meshes.Store(int64(t.cache.Len()))
	t.stats.evictions.Inc()
	t.emit(MeshEvent{Time: t.now(), Pos: pos, Kind: MeshEvicted})
	return true
}

// Draw issues one indexed draw per requested chunk that has a resident
// mesh. Chunks without one are skipped and reported in a
// *MeshNotReadyError after the others were drawn.
func (t *Terrain) Draw(pass gpu.RenderPass, coords []chunk.Pos, instances uint32) error {
	var missing []chunk.Pos
	for _, pos := range coords {
		gm, ok := t.cache.Get(pos)
		if !ok {
			missing = append(missing, pos)
			continue
		}
		if gm.NumIndices() > 0 && instances > 0 {
			gm.Draw(pass, instances)
			t.stats.draws.Inc()
		}
	}
	if len(missing) > 0 {
		t.stats.notReady.Add(uint64(len(missing)))
		return &MeshNotReadyError{Missing: missing}
	}
	return nil
}

func (t *Terrain) Stats() Stats { return t.stats.snapshot() }

func (t *Terrain) emit(ev MeshEvent) {
	t.seq++
	ev.Seq = t.seq
	if t.sink == nil {
		return
	}
	if err := t.sink.WriteMesh(ev); err != nil {
		t.stats.sinkErrors.Inc()
	}
}
