package world

import (
	"sort"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/gpu"
)

// MeshCache maps chunk coordinates to their resident meshes.
type MeshCache struct {
	meshes map[chunk.Pos]*gpu.Mesh
}

func NewMeshCache() *MeshCache {
	return &MeshCache{meshes: map[chunk.Pos]*gpu.Mesh{}}
}

func (c *MeshCache) Insert(pos chunk.Pos, m *gpu.Mesh) { c.meshes[pos] = m }

func (c *MeshCache) Get(pos chunk.Pos) (*gpu.Mesh, bool) {
	m, ok := c.meshes[pos]
	return m, ok
}

func (c *MeshCache) Delete(pos chunk.Pos) (*gpu.Mesh, bool) {
	m, ok := c.meshes[pos]
	if ok {
		delete(c.meshes, pos)
	}
	return m, ok
}

func (c *MeshCache) Len() int { return len(c.meshes) }

// Keys returns the cached coordinates sorted by x, then y, then z.
func (c *MeshCache) Keys() []chunk.Pos {
	keys := make([]chunk.Pos, 0, len(c.meshes))
	for k := range c.meshes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
