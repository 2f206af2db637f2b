package main

import (
	"fmt"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/gpu"
	"voxelmesh.ai/internal/render/logic/mathx"
	"voxelmesh.ai/internal/render/terrain/gen"
	"voxelmesh.ai/internal/render/terrain/store"
	"voxelmesh.ai/internal/render/voxel"
	"voxelmesh.ai/internal/render/world"
)

type chunkReport struct {
	Name     string
	Pos      chunk.Pos
	Quads    int
	Vertices int
	Indices  int
	Fits     bool
}

type adversary struct {
	name string
	gen  store.Generator
}

// randomFill fills each cell independently with the given per-mille
// density.
func randomFill(seed int64, permille uint64) store.Generator {
	return func(_, w [3]int) voxel.Block {
		if mathx.Hash3(seed, w[0], w[1], w[2])%1000 < permille {
			return voxel.Stone
		}
		return voxel.Air
	}
}

// perturbedCheckerboard flips a few cells of the checkerboard.
func perturbedCheckerboard(seed int64, permille uint64) store.Generator {
	board := gen.Checkerboard()
	return func(local, w [3]int) voxel.Block {
		b := board(local, w)
		if mathx.Hash3(seed, w[0], w[1], w[2])%1000 < permille {
			b.Solid = !b.Solid
		}
		return b
	}
}

func adversaries(trials int, seed int64) []adversary {
	out := []adversary{
		{name: "empty", gen: gen.Empty()},
		{name: "solid", gen: func(_, _ [3]int) voxel.Block { return voxel.Stone }},
		{name: "checkerboard", gen: gen.Checkerboard()},
	}
	for i := 0; i < trials; i++ {
		s := seed + int64(i)
		density := uint64(mathx.Hash2(s, i, 0) % 1000)
		if i%2 == 0 {
			out = append(out, adversary{name: fmt.Sprintf("random-%d", i), gen: randomFill(s, density)})
		} else {
			out = append(out, adversary{name: fmt.Sprintf("perturbed-%d", i), gen: perturbedCheckerboard(s, density%50)})
		}
	}
	return out
}

// runChecks meshes every adversary into a fresh chunk and reports whether
// each mesh fits plan. Nothing is uploaded.
func runChecks(plan gpu.Capacity, trials int, seed int64) ([]chunkReport, error) {
	t, err := world.New(gpu.NewMemDevice(), world.Config{VoxelSize: 1, Capacity: plan})
	if err != nil {
		return nil, err
	}
	var pos chunk.Pos
	var out []chunkReport
	for _, a := range adversaries(trials, seed) {
		t.SetChunk(pos, a.gen)
		m, err := t.MakeMesh(pos)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.name, err)
		}
		out = append(out, chunkReport{
			Name:     a.name,
			Pos:      pos,
			Quads:    m.NumQuads(),
			Vertices: m.NumVertices(),
			Indices:  m.NumIndices(),
			Fits:     plan.Fits(m),
		})
	}
	return out, nil
}

// surveyChunks meshes the configured world over the given positions.
func surveyChunks(plan gpu.Capacity, g store.Generator, coords []chunk.Pos) ([]chunkReport, error) {
	t, err := world.New(gpu.NewMemDevice(), world.Config{VoxelSize: 1, Capacity: plan})
	if err != nil {
		return nil, err
	}
	out := make([]chunkReport, 0, len(coords))
	for _, pos := range coords {
		t.SetChunk(pos, g)
		m, err := t.MakeMesh(pos)
		if err != nil {
			return nil, err
		}
		out = append(out, chunkReport{
			Name:     fmt.Sprintf("%d,%d,%d", pos[0], pos[1], pos[2]),
			Pos:      pos,
			Quads:    m.NumQuads(),
			Vertices: m.NumVertices(),
			Indices:  m.NumIndices(),
			Fits:     plan.Fits(m),
		})
	}
	return out, nil
}
