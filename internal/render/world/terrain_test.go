package world

import (
	"errors"
	"testing"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/gpu"
	"voxelmesh.ai/internal/render/voxel"
)

func newTerrain(t *testing.T) (*Terrain, *gpu.MemDevice) {
	t.Helper()
	dev := gpu.NewMemDevice()
	tr, err := New(dev, Config{VoxelSize: 1, Capacity: gpu.ChunkCapacity(chunk.Size)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr, dev
}

func floor(y int) func(local, world [3]int) voxel.Block {
	return func(local, world [3]int) voxel.Block {
		if world[1] <= y {
			return voxel.Stone
		}
		return voxel.Air
	}
}

type recordSink struct {
	events []MeshEvent
	err    error
}

func (s *recordSink) WriteMesh(ev MeshEvent) error {
	s.events = append(s.events, ev)
	return s.err
}

func TestNewRejectsBadPlan(t *testing.T) {
	dev := gpu.NewMemDevice()
	if _, err := New(dev, Config{VoxelSize: 1, Capacity: gpu.ChunkCapacity(32)}); !errors.Is(err, gpu.ErrCapacityPlan) {
		t.Fatalf("expected ErrCapacityPlan, got %v", err)
	}
	if _, err := New(dev, Config{VoxelSize: 0, Capacity: gpu.ChunkCapacity(chunk.Size)}); err == nil {
		t.Fatalf("expected error for zero voxel size")
	}
}

func TestMakeMeshUnloadedChunk(t *testing.T) {
	tr, _ := newTerrain(t)
	if _, err := tr.MakeMesh(chunk.Pos{1, 2, 3}); !errors.Is(err, ErrChunkNotLoaded) {
		t.Fatalf("expected ErrChunkNotLoaded, got %v", err)
	}
	if err := tr.Remesh(chunk.Pos{1, 2, 3}); !errors.Is(err, ErrChunkNotLoaded) {
		t.Fatalf("expected ErrChunkNotLoaded from Remesh, got %v", err)
	}
}

func TestShellIsForcedEmptyForSolidGenerator(t *testing.T) {
	tr, _ := newTerrain(t)
	tr.SetChunk(chunk.Pos{}, func(local, world [3]int) voxel.Block { return voxel.Stone })
	m, err := tr.MakeMesh(chunk.Pos{})
	if err != nil {
		t.Fatalf("MakeMesh: %v", err)
	}
	// A full interior with an air shell is one quad per side.
	if m.NumQuads() != 6 {
		t.Fatalf("quads = %d want 6", m.NumQuads())
	}
}

func TestFillAndMeshThenDraw(t *testing.T) {
	tr, _ := newTerrain(t)
	sink := &recordSink{}
	tr.SetSink(sink)
	a, b := chunk.Pos{0, 0, 0}, chunk.Pos{1, 0, 0}
	for _, p := range []chunk.Pos{a, b} {
		if err := tr.FillAndMesh(p, floor(4)); err != nil {
			t.Fatalf("FillAndMesh %v: %v", p, err)
		}
	}
	if tr.Cache().Len() != 2 || tr.Store().Len() != 2 {
		t.Fatalf("cache=%d store=%d", tr.Cache().Len(), tr.Store().Len())
	}
	if len(sink.events) != 2 || sink.events[0].Kind != MeshUploaded || sink.events[1].Seq != 2 {
		t.Fatalf("events = %+v", sink.events)
	}
	if sink.events[0].Digest == "" || sink.events[0].VoxelDigest == "" || sink.events[0].Mesh == nil {
		t.Fatalf("event missing digests: %+v", sink.events[0])
	}

	var rec gpu.Recorder
	if err := tr.Draw(&rec, []chunk.Pos{a, b}, 1); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if calls, _ := rec.Draws(); calls != 2 {
		t.Fatalf("draw calls = %d want 2", calls)
	}
}

func TestDrawSkipsMissingMeshes(t *testing.T) {
	tr, _ := newTerrain(t)
	if err := tr.FillAndMesh(chunk.Pos{}, floor(4)); err != nil {
		t.Fatalf("FillAndMesh: %v", err)
	}
	tr.SetChunk(chunk.Pos{0, 0, 1}, floor(4))
	missing := chunk.Pos{0, 0, 1}

	var rec gpu.Recorder
	err := tr.Draw(&rec, []chunk.Pos{missing, {}, {5, 5, 5}}, 1)
	var nr *MeshNotReadyError
	if !errors.As(err, &nr) || !errors.Is(err, ErrMeshNotReady) {
		t.Fatalf("expected MeshNotReadyError, got %v", err)
	}
	if len(nr.Missing) != 2 || nr.Missing[0] != missing {
		t.Fatalf("missing = %v", nr.Missing)
	}
	if calls, _ := rec.Draws(); calls != 1 {
		t.Fatalf("other chunks not drawn: %d calls", calls)
	}
	if s := tr.Stats(); s.NotReady != 2 || s.Draws != 1 {
		t.Fatalf("stats = %+v", s)
	}

	// Next frame after meshing draws both.
	if err := tr.Remesh(missing); err != nil {
		t.Fatalf("Remesh: %v", err)
	}
	rec.Reset()
	if err := tr.Draw(&rec, []chunk.Pos{missing, {}}, 1); err != nil {
		t.Fatalf("Draw after remesh: %v", err)
	}
}

func TestEditRemeshesInPlace(t *testing.T) {
	tr, dev := newTerrain(t)
	sink := &recordSink{}
	tr.SetSink(sink)
	pos := chunk.Pos{}
	if err := tr.FillAndMesh(pos, floor(4)); err != nil {
		t.Fatalf("FillAndMesh: %v", err)
	}
	gm, _ := tr.Cache().Get(pos)
	before := gm.NumIndices()
	buffers := dev.Stats().Buffers

	if !tr.SetBlock([3]int{8, 9, 8}, voxel.Stone) {
		t.Fatalf("SetBlock reported no change")
	}
	if tr.SetBlock([3]int{8, 9, 8}, voxel.Stone) {
		t.Fatalf("second identical SetBlock reported a change")
	}
	if tr.SetBlock([3]int{8, 9, 1000}, voxel.Stone) {
		t.Fatalf("SetBlock on unloaded chunk reported a change")
	}
	n, err := tr.RemeshDirty()
	if err != nil || n != 1 {
		t.Fatalf("RemeshDirty = %d, %v", n, err)
	}
	gm2, _ := tr.Cache().Get(pos)
	if gm2 != gm {
		t.Fatalf("remesh replaced the resident mesh")
	}
	if dev.Stats().Buffers != buffers {
		t.Fatalf("remesh allocated new buffers")
	}
	// A floating block above the floor adds six unit faces.
	if gm.NumIndices() != before+6*6 {
		t.Fatalf("indices %d -> %d", before, gm.NumIndices())
	}
	last := sink.events[len(sink.events)-1]
	if last.Kind != MeshUpdated {
		t.Fatalf("last event kind = %s", last.Kind)
	}
	if n, _ := tr.RemeshDirty(); n != 0 {
		t.Fatalf("dirty flag not cleared: %d", n)
	}
	if got := tr.GetBlock([3]int{8, 9, 8}); got != voxel.Stone {
		t.Fatalf("GetBlock = %+v", got)
	}
}

func TestEvictReleasesBuffers(t *testing.T) {
	tr, dev := newTerrain(t)
	pos := chunk.Pos{2, 0, 0}
	if err := tr.FillAndMesh(pos, floor(4)); err != nil {
		t.Fatalf("FillAndMesh: %v", err)
	}
	if dev.Stats().Buffers != 2 {
		t.Fatalf("buffers = %d", dev.Stats().Buffers)
	}
	if !tr.Evict(pos) {
		t.Fatalf("Evict returned false")
	}
	if _, ok := tr.Cache().Get(pos); ok {
		t.Fatalf("mesh still cached")
	}
	if _, ok := tr.Store().Get(pos); ok {
		t.Fatalf("chunk still stored")
	}
	if dev.Stats().Buffers != 0 {
		t.Fatalf("buffers not released: %d", dev.Stats().Buffers)
	}
	if tr.Evict(pos) {
		t.Fatalf("second Evict returned true")
	}
	if s := tr.Stats(); s.Chunks != 0 || s.Meshes != 0 || s.ResidentQuads != 0 || s.Evictions != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestSinkErrorsAreCounted(t *testing.T) {
	tr, _ := newTerrain(t)
	tr.SetSink(&recordSink{err: errors.New("disk full")})
	if err := tr.FillAndMesh(chunk.Pos{}, floor(2)); err != nil {
		t.Fatalf("FillAndMesh: %v", err)
	}
	if tr.Stats().SinkErrors != 1 {
		t.Fatalf("sink error not counted")
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &recordSink{err: errors.New("x")}, &recordSink{}
	if err := (MultiSink{a, nil, b}).WriteMesh(MeshEvent{Seq: 7}); err != nil {
		t.Fatalf("MultiSink: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fan out: %d %d", len(a.events), len(b.events))
	}
}
