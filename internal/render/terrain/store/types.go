package store

import (
	"crypto/sha256"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/voxel"
)

// Generator returns the voxel for one padded cell. local ranges over
// [0, chunk.Edge) per axis and world is local + pos*chunk.Size.
type Generator func(local, world [3]int) voxel.Block

type Chunk struct {
	Pos    chunk.Pos
	Voxels []voxel.Block // len = chunk.Volume, x innermost

	dirty     bool
	hashStale bool
	hash      [32]byte
}

func newChunk(pos chunk.Pos) *Chunk {
	return &Chunk{
		Pos:    pos,
		Voxels: make([]voxel.Block, chunk.Volume),
	}
}

func (c *Chunk) index(local [3]int) int {
	return int(chunk.Padded.Linearize([3]uint32{uint32(local[0]), uint32(local[1]), uint32(local[2])}))
}

func (c *Chunk) Get(local [3]int) voxel.Block {
	return c.Voxels[c.index(local)]
}

// Set writes an interior cell. Writes to the padding shell are ignored.
func (c *Chunk) Set(local [3]int, b voxel.Block) bool {
	if !interior(local) {
		return false
	}
	i := c.index(local)
	if c.Voxels[i] == b {
		return false
	}
	c.Voxels[i] = b
	c.dirty = true
	c.hashStale = true
	return true
}

// Dirty reports whether the voxels changed since the chunk was last meshed.
func (c *Chunk) Dirty() bool { return c.dirty }

func (c *Chunk) Digest() [32]byte {
	if c.hashStale || c.hash == ([32]byte{}) {
		h := sha256.New()
		buf := make([]byte, len(c.Voxels))
		for i, v := range c.Voxels {
			if v.Solid {
				buf[i] = 1
			}
		}
		h.Write(buf)
		copy(c.hash[:], h.Sum(nil))
		c.hashStale = false
	}
	return c.hash
}

type ChunkStore struct {
	Chunks map[chunk.Pos]*Chunk
}

func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		Chunks: map[chunk.Pos]*Chunk{},
	}
}

func interior(local [3]int) bool {
	for _, c := range local {
		if c < 1 || c > chunk.Size {
			return false
		}
	}
	return true
}
