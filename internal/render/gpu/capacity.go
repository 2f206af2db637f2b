package gpu

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"voxelmesh.ai/internal/render/mesh"
)

var (
	ErrCapacityExceeded = errors.New("gpu: mesh exceeds buffer capacity")
	ErrCapacityPlan     = errors.New("gpu: invalid capacity plan")
)

// Capacity is the fixed element count of a mesh's vertex and index buffers.
type Capacity struct {
	Vertices uint32
	Indices  uint32
}

// ChunkCapacity is the worst-case plan for a size^3 chunk.
func ChunkCapacity(size int) Capacity {
	q := uint32(mesh.WorstCaseQuads(size))
	return Capacity{Vertices: q * 4, Indices: q * 6}
}

// Validate rejects plans that 16-bit indices cannot address or that cannot
// hold a single quad.
func (c Capacity) Validate() error {
	if c.Vertices < 4 || c.Indices < 6 {
		return fmt.Errorf("%w: %d vertices / %d indices cannot hold one quad", ErrCapacityPlan, c.Vertices, c.Indices)
	}
	if c.Vertices > mesh.MaxVertices {
		return fmt.Errorf("%w: %d vertices exceed 16-bit index range (%d)", ErrCapacityPlan, c.Vertices, mesh.MaxVertices)
	}
	return nil
}

// Fits reports whether m can be written into buffers of this capacity.
func (c Capacity) Fits(m *mesh.CPUMesh) bool {
	return uint64(m.NumVertices()) <= uint64(c.Vertices) && uint64(m.NumIndices()) <= uint64(c.Indices)
}

func (c Capacity) VertexBytes() uint64 { return uint64(c.Vertices) * mesh.VertexStride }
func (c Capacity) IndexBytes() uint64  { return uint64(c.Indices) * mesh.IndexStride }

func (c Capacity) String() string {
	return fmt.Sprintf("%d verts (%s) / %d indices (%s)",
		c.Vertices, humanize.IBytes(c.VertexBytes()), c.Indices, humanize.IBytes(c.IndexBytes()))
}

// CapacityError reports a mesh that does not fit a fixed capacity.
type CapacityError struct {
	Capacity Capacity
	Vertices int
	Indices  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("gpu: mesh with %d vertices / %d indices exceeds capacity %d / %d",
		e.Vertices, e.Indices, e.Capacity.Vertices, e.Capacity.Indices)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

func checkFits(c Capacity, m *mesh.CPUMesh) error {
	if c.Fits(m) {
		return nil
	}
	return &CapacityError{Capacity: c, Vertices: m.NumVertices(), Indices: m.NumIndices()}
}
