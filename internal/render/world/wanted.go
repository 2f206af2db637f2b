package world

import (
	"sort"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/logic/mathx"
)

// WantedChunks lists the chunks within radius of center (Chebyshev box) that
// the renderer should keep meshed, nearest first by Manhattan distance, then
// by coordinate. layers limits the vertical extent to center.y-layers ..
// center.y+layers; a negative value uses radius.
func WantedChunks(center chunk.Pos, radius, layers, maxChunks int) []chunk.Pos {
	if radius < 0 {
		radius = 0
	}
	if layers < 0 {
		layers = radius
	}
	if maxChunks <= 0 {
		maxChunks = 1024
	}
	type item struct {
		p    chunk.Pos
		dist int
	}
	items := make([]item, 0, (2*radius+1)*(2*radius+1)*(2*layers+1))
	for dz := -radius; dz <= radius; dz++ {
		for dy := -layers; dy <= layers; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				p := chunk.Pos{center[0] + int32(dx), center[1] + int32(dy), center[2] + int32(dz)}
				items = append(items, item{p: p, dist: mathx.AbsInt(dx) + mathx.AbsInt(dy) + mathx.AbsInt(dz)})
			}
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].dist != items[j].dist {
			return items[i].dist < items[j].dist
		}
		return items[i].p.Less(items[j].p)
	})
	if len(items) > maxChunks {
		items = items[:maxChunks]
	}
	out := make([]chunk.Pos, 0, len(items))
	for _, it := range items {
		out = append(out, it.p)
	}
	return out
}
