package mesh

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/render/chunk"
)

// MaxVertices is the number of vertices addressable by 16-bit indices.
const MaxVertices = 1 << 16

var ErrIndexOverflow = errors.New("mesh: vertex count exceeds 16-bit index range")

type Vertex struct {
	Pos mgl32.Vec3
}

// CPUMesh is an indexed triangle list. Vertices are appended in face order,
// then quad order within a face.
type CPUMesh struct {
	Vertices []Vertex
	Indices  []uint16
}

func (m *CPUMesh) NumVertices() int { return len(m.Vertices) }
func (m *CPUMesh) NumIndices() int  { return len(m.Indices) }
func (m *CPUMesh) NumQuads() int    { return len(m.Indices) / 6 }

func (m *CPUMesh) Empty() bool { return len(m.Indices) == 0 }

// Digest hashes the vertex and index streams in their GPU byte layout.
func (m *CPUMesh) Digest() [32]byte {
	h := sha256.New()
	h.Write(AppendVertexBytes(nil, m.Vertices))
	h.Write(AppendIndexBytes(nil, m.Indices))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Build converts the quads in buf into a mesh placed at chunk pos. Each quad
// becomes 4 vertices at (corner + pos*chunk.Size) * voxelSize and 6 indices
// continuing from the running vertex count.
func Build(buf *QuadBuffer, faces *[6]OrientedFace, pos chunk.Pos, voxelSize float32) (*CPUMesh, error) {
	n := buf.NumQuads()
	if n*4 > MaxVertices {
		return nil, fmt.Errorf("%w: %d quads need %d vertices", ErrIndexOverflow, n, n*4)
	}
	m := &CPUMesh{
		Vertices: make([]Vertex, 0, n*4),
		Indices:  make([]uint16, 0, n*6),
	}
	origin := pos.Origin()
	offset := mgl32.Vec3{float32(origin[0]), float32(origin[1]), float32(origin[2])}

	for i, group := range buf.Groups {
		face := faces[i]
		for _, q := range group {
			start := uint16(len(m.Vertices))
			for _, c := range face.Corners(q) {
				p := mgl32.Vec3{float32(c[0]), float32(c[1]), float32(c[2])}
				m.Vertices = append(m.Vertices, Vertex{Pos: p.Add(offset).Mul(voxelSize)})
			}
			idx := face.Indices(start)
			m.Indices = append(m.Indices, idx[:]...)
		}
	}
	return m, nil
}
