package store

import (
	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/voxel"
)

// SetChunk creates the chunk at pos if absent and overwrites every cell,
// padding included, with gen(local, world). gen is called once per linear
// index in ascending order. The padding shell is forced to air afterwards so
// the mesher never emits faces for it, whatever gen returned there.
//
// A panicking gen leaves the chunk partially overwritten.
func (s *ChunkStore) SetChunk(pos chunk.Pos, gen Generator) *Chunk {
	ch, ok := s.Chunks[pos]
	if !ok {
		ch = newChunk(pos)
		s.Chunks[pos] = ch
	}
	origin := pos.Origin()
	for i := range ch.Voxels {
		p := chunk.Padded.Delinearize(uint32(i))
		local := [3]int{int(p[0]), int(p[1]), int(p[2])}
		world := [3]int{local[0] + origin[0], local[1] + origin[1], local[2] + origin[2]}
		b := gen(local, world)
		if chunk.IsShell(p) {
			b = voxel.Air
		}
		ch.Voxels[i] = b
	}
	ch.dirty = true
	ch.hashStale = true
	return ch
}
