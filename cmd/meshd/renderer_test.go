package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/gpu"
	"voxelmesh.ai/internal/render/terrain/gen"
	"voxelmesh.ai/internal/render/tuning"
	"voxelmesh.ai/internal/render/world"
	"voxelmesh.ai/internal/transport/observer"
)

func newTestRenderer(t *testing.T, tune tuning.Tuning) (*renderer, *gpu.MemDevice) {
	t.Helper()
	dev := gpu.NewMemDevice()
	terrain, err := world.New(dev, world.Config{VoxelSize: tune.VoxelSize, Capacity: tune.MeshCapacity()})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	hub := observer.NewHub()
	terrain.SetSink(world.MultiSink{hub})
	g, err := gen.ByName(tune.Worldgen.Generator, gen.Params{
		Seed:         tune.Worldgen.Seed,
		BaseHeight:   tune.Worldgen.BaseHeight,
		HeightRange:  tune.Worldgen.HeightRange,
		FeatureScale: tune.Worldgen.FeatureScale,
	})
	if err != nil {
		t.Fatalf("gen: %v", err)
	}
	return newRenderer(terrain, hub, tune, g, chunk.Pos{}, nil), dev
}

func TestRenderer_StepDrawsEveryWantedChunk(t *testing.T) {
	tune := tuning.Defaults()
	tune.ViewRadius = 1
	tune.ChunkLayers = 0
	tune.Edits.PerTick = 0
	r, _ := newTestRenderer(t, tune)
	if err := r.fill(); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := r.step(time.Now()); err != nil {
		t.Fatalf("step: %v", err)
	}
	st := r.Stats()
	if st.WantedCount != 9 {
		t.Fatalf("wanted=%d want 9", st.WantedCount)
	}
	if st.Frames != 1 {
		t.Fatalf("frames=%d", st.Frames)
	}
	if st.DrawCalls <= 0 || st.DrawCalls > int64(st.WantedCount) {
		t.Fatalf("draw calls=%d", st.DrawCalls)
	}
	if got := r.terrain.Stats().NotReady; got != 0 {
		t.Fatalf("not ready=%d", got)
	}
}

func TestRenderer_StepMeshesMissingChunks(t *testing.T) {
	tune := tuning.Defaults()
	tune.ViewRadius = 0
	tune.ChunkLayers = 0
	tune.Edits.PerTick = 0
	r, _ := newTestRenderer(t, tune)
	// No fill: the first frame finds nothing resident and meshes it.
	if err := r.step(time.Now()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := r.terrain.Stats().NotReady; got != 1 {
		t.Fatalf("not ready=%d want 1", got)
	}
	if _, ok := r.terrain.Cache().Get(chunk.Pos{}); !ok {
		t.Fatalf("center chunk was not meshed")
	}
}

func TestRenderer_EditsAreDeterministic(t *testing.T) {
	tune := tuning.Defaults()
	tune.ViewRadius = 1
	tune.ChunkLayers = 0
	tune.Edits.EveryMs = 1
	tune.Edits.PerTick = 8

	run := func() [][32]byte {
		r, _ := newTestRenderer(t, tune)
		if err := r.fill(); err != nil {
			t.Fatalf("fill: %v", err)
		}
		now := time.Unix(1700000000, 0)
		for i := 0; i < 5; i++ {
			now = now.Add(10 * time.Millisecond)
			if err := r.step(now); err != nil {
				t.Fatalf("step: %v", err)
			}
		}
		if r.Stats().Edits == 0 {
			t.Fatalf("expected edits to land")
		}
		var out [][32]byte
		for _, pos := range r.wanted {
			c, ok := r.terrain.Store().Get(pos)
			if !ok {
				t.Fatalf("chunk %v missing", pos)
			}
			out = append(out, c.Digest())
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d digest differs between runs", i)
		}
	}
}

func TestMetrics_Exposition(t *testing.T) {
	tune := tuning.Defaults()
	tune.ViewRadius = 0
	tune.ChunkLayers = 0
	r, dev := newTestRenderer(t, tune)
	if err := r.fill(); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := r.step(time.Now()); err != nil {
		t.Fatalf("step: %v", err)
	}

	h := metricsSource{renderer: r, terrain: r.terrain, device: dev, hub: r.hub}.Handler()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/metrics", nil))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE voxelmesh_frames_total counter",
		"voxelmesh_frames_total 1",
		`voxelmesh_terrain{metric="chunks"} 1`,
		`voxelmesh_mesh_ops_total{op="upload"} 1`,
		"voxelmesh_device_buffers 2",
		"voxelmesh_observer_sessions 0",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "voxelmesh_index_queue_depth") {
		t.Fatalf("index metrics emitted without an index")
	}
}

func TestParsePos(t *testing.T) {
	p, err := parsePos(" -1, 2 ,3")
	if err != nil || p != (chunk.Pos{-1, 2, 3}) {
		t.Fatalf("parsePos=%v,%v", p, err)
	}
	if _, err := parsePos("1,2"); err == nil {
		t.Fatalf("expected error for two components")
	}
}
