package store

import (
	"sort"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/logic/mathx"
	"voxelmesh.ai/internal/render/voxel"
)

func (s *ChunkStore) Get(pos chunk.Pos) (*Chunk, bool) {
	ch, ok := s.Chunks[pos]
	return ch, ok
}

func (s *ChunkStore) Delete(pos chunk.Pos) bool {
	if _, ok := s.Chunks[pos]; !ok {
		return false
	}
	delete(s.Chunks, pos)
	return true
}

func (s *ChunkStore) Len() int { return len(s.Chunks) }

func (s *ChunkStore) LoadedChunkKeys() []chunk.Pos {
	keys := make([]chunk.Pos, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sortPositions(keys)
	return keys
}

func (s *ChunkStore) DirtyChunkKeys() []chunk.Pos {
	var keys []chunk.Pos
	for k, ch := range s.Chunks {
		if ch.dirty {
			keys = append(keys, k)
		}
	}
	sortPositions(keys)
	return keys
}

func (s *ChunkStore) ClearDirty(pos chunk.Pos) {
	if ch, ok := s.Chunks[pos]; ok {
		ch.dirty = false
	}
}

// Locate maps a world voxel coordinate to the chunk that owns it as an
// interior cell and the padded local coordinate inside that chunk.
func Locate(world [3]int) (chunk.Pos, [3]int) {
	var pos chunk.Pos
	var local [3]int
	for a := 0; a < 3; a++ {
		pos[a] = int32(mathx.FloorDiv(world[a]-1, chunk.Size))
		local[a] = mathx.Mod(world[a]-1, chunk.Size) + 1
	}
	return pos, local
}

// GetBlock returns the voxel at a world coordinate, or air if its chunk is
// not loaded.
func (s *ChunkStore) GetBlock(world [3]int) voxel.Block {
	pos, local := Locate(world)
	ch, ok := s.Chunks[pos]
	if !ok {
		return voxel.Air
	}
	return ch.Get(local)
}

// SetBlock edits the voxel at a world coordinate. It reports whether the
// owning chunk is loaded and the cell changed.
func (s *ChunkStore) SetBlock(world [3]int, b voxel.Block) (chunk.Pos, bool) {
	pos, local := Locate(world)
	ch, ok := s.Chunks[pos]
	if !ok {
		return pos, false
	}
	return pos, ch.Set(local, b)
}

func sortPositions(keys []chunk.Pos) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
