// Package gen holds the world generators chunks are filled from. Every
// generator is a pure function of its parameters and the world coordinate,
// so refilling a chunk reproduces it exactly.
package gen

import (
	"fmt"
	"sort"

	"voxelmesh.ai/internal/render/logic/mathx"
	"voxelmesh.ai/internal/render/terrain/store"
	"voxelmesh.ai/internal/render/voxel"
)

type Params struct {
	Seed         int64
	BaseHeight   int
	HeightRange  int
	FeatureScale int
}

func solid(ok bool) voxel.Block {
	if ok {
		return voxel.Stone
	}
	return voxel.Air
}

// Empty fills nothing.
func Empty() store.Generator {
	return func(local, world [3]int) voxel.Block { return voxel.Air }
}

// Plane is solid at and below height y.
func Plane(y int) store.Generator {
	return func(local, world [3]int) voxel.Block { return solid(world[1] <= y) }
}

// Checkerboard alternates solid and air on the x+y+z parity. It defeats
// face merging entirely and is the worst case for mesh size.
func Checkerboard() store.Generator {
	return func(local, world [3]int) voxel.Block {
		return solid(mathx.Mod(world[0]+world[1]+world[2], 2) == 0)
	}
}

// Sphere is a ball of the given radius around center.
func Sphere(center [3]int, radius int) store.Generator {
	r2 := radius * radius
	return func(local, world [3]int) voxel.Block {
		dx, dy, dz := world[0]-center[0], world[1]-center[1], world[2]-center[2]
		return solid(dx*dx+dy*dy+dz*dz <= r2)
	}
}

// HeightAt is the terrain surface height at column (x, z): value noise over
// a lattice of FeatureScale-spaced hashed heights, smoothly interpolated.
func HeightAt(p Params, x, z int) int {
	scale := p.FeatureScale
	if scale <= 0 {
		scale = 1
	}
	gx, gz := mathx.FloorDiv(x, scale), mathx.FloorDiv(z, scale)
	tx := mathx.SmoothStep(float64(mathx.Mod(x, scale)) / float64(scale))
	tz := mathx.SmoothStep(float64(mathx.Mod(z, scale)) / float64(scale))

	h00 := mathx.Unit2(p.Seed, gx, gz)
	h10 := mathx.Unit2(p.Seed, gx+1, gz)
	h01 := mathx.Unit2(p.Seed, gx, gz+1)
	h11 := mathx.Unit2(p.Seed, gx+1, gz+1)
	n := mathx.Lerp(mathx.Lerp(h00, h10, tx), mathx.Lerp(h01, h11, tx), tz)
	return p.BaseHeight + int(n*float64(p.HeightRange))
}

// InBoulder reports whether (x, y, z) lies in one of the round boulders
// scattered on a grid of cells. Each cell holds at most one boulder whose
// centre sits on the surface.
func InBoulder(p Params, x, y, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := mathx.FloorDiv(x, grid)
	gz := mathx.FloorDiv(z, grid)
	r2 := radius * radius

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cgx := gx + dx
			cgz := gz + dz
			h := mathx.Hash2(p.Seed^0x5eed, cgx, cgz)
			if h%1000 >= probPermille {
				continue
			}
			cx := cgx*grid + int((h>>10)%uint64(grid))
			cz := cgz*grid + int((h>>20)%uint64(grid))
			cy := HeightAt(p, cx, cz)

			ddx, ddy, ddz := x-cx, y-cy, z-cz
			if ddx*ddx+ddy*ddy+ddz*ddz <= r2 {
				return true
			}
		}
	}
	return false
}

// Heightmap is rolling terrain with boulders and sparse caves.
func Heightmap(p Params) store.Generator {
	grid := p.FeatureScale * 2
	return func(local, world [3]int) voxel.Block {
		x, y, z := world[0], world[1], world[2]
		h := HeightAt(p, x, z)
		if y > h {
			return solid(InBoulder(p, x, y, z, grid, 2, 150))
		}
		// Caves: hashed cells below the surface are hollowed out.
		if y < h-3 && mathx.Hash3(p.Seed, x/4, y/4, z/4)%100 < 4 {
			return voxel.Air
		}
		return voxel.Stone
	}
}

var generators = map[string]func(Params) store.Generator{
	"heightmap":    Heightmap,
	"plane":        func(p Params) store.Generator { return Plane(p.BaseHeight) },
	"sphere":       func(p Params) store.Generator { return Sphere([3]int{0, p.BaseHeight, 0}, p.HeightRange) },
	"checkerboard": func(Params) store.Generator { return Checkerboard() },
	"empty":        func(Params) store.Generator { return Empty() },
}

// ByName returns the named generator configured with p.
func ByName(name string, p Params) (store.Generator, error) {
	mk, ok := generators[name]
	if !ok {
		return nil, fmt.Errorf("unknown generator %q (have %v)", name, Names())
	}
	return mk(p), nil
}

func Names() []string {
	out := make([]string, 0, len(generators))
	for k := range generators {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
