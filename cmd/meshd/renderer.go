package main

import (
	"context"
	"errors"
	"log"
	"time"

	"go.uber.org/atomic"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/gpu"
	"voxelmesh.ai/internal/render/logic/mathx"
	"voxelmesh.ai/internal/render/terrain/store"
	"voxelmesh.ai/internal/render/tuning"
	"voxelmesh.ai/internal/render/voxel"
	"voxelmesh.ai/internal/render/world"
	"voxelmesh.ai/internal/transport/observer"
)

// renderer is the headless frame loop. It owns the terrain; everything
// else reads it through stats or the observer hub.
type renderer struct {
	terrain *world.Terrain
	hub     *observer.Hub
	tune    tuning.Tuning
	gen     store.Generator
	center  chunk.Pos
	log     *log.Logger

	wanted   []chunk.Pos
	pass     gpu.Recorder
	frame    uint64
	lastEdit time.Time

	frames    atomic.Uint64
	edits     atomic.Uint64
	drawCalls atomic.Int64
	drawnIdx  atomic.Int64
	stepUS    atomic.Int64
}

func newRenderer(t *world.Terrain, hub *observer.Hub, tune tuning.Tuning, gen store.Generator, center chunk.Pos, logger *log.Logger) *renderer {
	return &renderer{
		terrain: t,
		hub:     hub,
		tune:    tune,
		gen:     gen,
		center:  center,
		log:     logger,
		wanted:  world.WantedChunks(center, tune.ViewRadius, tune.ChunkLayers, tune.MaxChunks),
	}
}

// fill loads and meshes every wanted chunk that is not resident yet.
func (r *renderer) fill() error {
	for _, pos := range r.wanted {
		if _, ok := r.terrain.Cache().Get(pos); ok {
			continue
		}
		if err := r.terrain.FillAndMesh(pos, r.gen); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) Run(ctx context.Context) error {
	if err := r.fill(); err != nil {
		return err
	}
	tick := time.NewTicker(time.Duration(r.tune.FrameMs) * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick.C:
			if err := r.step(now); err != nil {
				return err
			}
		}
	}
}

// step renders one frame: periodic edits, remesh of dirty chunks, one draw
// per wanted chunk, then observer fan-out.
func (r *renderer) step(now time.Time) error {
	start := time.Now()
	r.frame++

	every := time.Duration(r.tune.Edits.EveryMs) * time.Millisecond
	if r.tune.Edits.PerTick > 0 && every > 0 && now.Sub(r.lastEdit) >= every {
		r.lastEdit = now
		r.applyEdits()
	}
	if _, err := r.terrain.RemeshDirty(); err != nil {
		// Capacity overflow means the plan is wrong; stop the loop.
		return err
	}

	r.pass.Reset()
	err := r.terrain.Draw(&r.pass, r.wanted, 1)
	var notReady *world.MeshNotReadyError
	if errors.As(err, &notReady) {
		for _, pos := range notReady.Missing {
			if err := r.terrain.FillAndMesh(pos, r.gen); err != nil {
				return err
			}
		}
		if r.log != nil {
			r.log.Printf("frame %d: meshed %d chunks that were not ready", r.frame, len(notReady.Missing))
		}
	} else if err != nil {
		return err
	}
	calls, indices := r.pass.Draws()
	r.drawCalls.Store(int64(calls))
	r.drawnIdx.Store(int64(indices))

	if r.hub != nil {
		r.hub.Pump(r.terrain, r.frame)
	}
	r.frames.Inc()
	r.stepUS.Store(time.Since(start).Microseconds())
	return nil
}

// applyEdits toggles a few surface-adjacent voxels chosen by hashing the
// frame number, so runs with the same seed edit the same cells.
func (r *renderer) applyEdits() {
	if len(r.wanted) == 0 {
		return
	}
	seed := r.tune.Worldgen.Seed
	for i := 0; i < r.tune.Edits.PerTick; i++ {
		h := mathx.Hash3(seed, int(r.frame), i, 0x0ed17)
		pos := r.wanted[int(h%uint64(len(r.wanted)))]
		origin := pos.Origin()
		w := [3]int{
			origin[0] + 1 + int((h>>8)%chunk.Size),
			origin[1] + 1 + int((h>>16)%chunk.Size),
			origin[2] + 1 + int((h>>24)%chunk.Size),
		}
		cur := r.terrain.GetBlock(w)
		b := voxel.Stone
		if cur.Solid {
			b = voxel.Air
		}
		if r.terrain.SetBlock(w, b) {
			r.edits.Inc()
		}
	}
}

type frameStats struct {
	Frames      uint64
	Edits       uint64
	DrawCalls   int64
	DrawnIdx    int64
	StepMicros  int64
	WantedCount int
}

func (r *renderer) Stats() frameStats {
	return frameStats{
		Frames:      r.frames.Load(),
		Edits:       r.edits.Load(),
		DrawCalls:   r.drawCalls.Load(),
		DrawnIdx:    r.drawnIdx.Load(),
		StepMicros:  r.stepUS.Load(),
		WantedCount: len(r.wanted),
	}
}
