package mesh

import (
	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/voxel"
)

// Quad is a merged rectangle of visible faces. Minimum is the padded grid
// coordinate of its first cell; Width runs along the face's U axis and Height
// along V.
type Quad struct {
	Minimum [3]uint32
	Width   uint32
	Height  uint32
}

// QuadBuffer is the scratch space of GreedyQuads. It is owned by the caller
// and reused across calls; one buffer must not be shared by concurrent calls.
type QuadBuffer struct {
	Groups [6][]Quad

	visited []bool
}

func NewQuadBuffer() *QuadBuffer {
	return &QuadBuffer{}
}

// Reset drops the quads of the previous call, keeping the allocations.
func (b *QuadBuffer) Reset() {
	for i := range b.Groups {
		b.Groups[i] = b.Groups[i][:0]
	}
}

func (b *QuadBuffer) NumQuads() int {
	n := 0
	for _, g := range b.Groups {
		n += len(g)
	}
	return n
}

// DefaultMin and DefaultMax bound a padded chunk: the interior 1..Size is
// meshed, the shell at 0 and Size+1 is only read as neighbours.
var (
	DefaultMin = [3]uint32{0, 0, 0}
	DefaultMax = [3]uint32{chunk.Size + 1, chunk.Size + 1, chunk.Size + 1}
)

// GreedyQuads merges the visible faces of voxels into rectangles, one group
// per entry of faces. The extent [min, max] is inclusive; cells on its border
// are neighbours only. Output order is deterministic for a given input.
func GreedyQuads[V voxel.MergeVoxel[K], K comparable](
	voxels []V,
	shape chunk.Shape,
	min, max [3]uint32,
	faces *[6]OrientedFace,
	buf *QuadBuffer,
) {
	buf.Reset()
	for a := 0; a < 3; a++ {
		if max[a] < min[a]+2 {
			return
		}
	}
	for i := range faces {
		buf.Groups[i] = greedyFace[V, K](voxels, shape, min, max, faces[i], buf, buf.Groups[i])
	}
}

func greedyFace[V voxel.MergeVoxel[K], K comparable](
	voxels []V,
	shape chunk.Shape,
	min, max [3]uint32,
	face OrientedFace,
	buf *QuadBuffer,
	out []Quad,
) []Quad {
	lo := [3]uint32{min[0] + 1, min[1] + 1, min[2] + 1}
	hi := [3]uint32{max[0] - 1, max[1] - 1, max[2] - 1}
	uLen := hi[face.U] - lo[face.U] + 1
	vLen := hi[face.V] - lo[face.V] + 1

	plane := int(uLen * vLen)
	if cap(buf.visited) < plane {
		buf.visited = make([]bool, plane)
	}
	visited := buf.visited[:plane]

	cell := func(n, u, v uint32) [3]uint32 {
		var p [3]uint32
		p[face.N] = n
		p[face.U] = lo[face.U] + u
		p[face.V] = lo[face.V] + v
		return p
	}
	neighbour := func(p [3]uint32) [3]uint32 {
		if face.NSign > 0 {
			p[face.N]++
		} else {
			p[face.N]--
		}
		return p
	}
	at := func(p [3]uint32) V {
		return voxels[shape.Linearize(p)]
	}
	same := func(a, b [3]uint32) bool {
		va, vb := at(a), at(b)
		if va.MergeValue() != vb.MergeValue() {
			return false
		}
		na, nb := at(neighbour(a)), at(neighbour(b))
		return na.IsEmpty() == nb.IsEmpty() && na.IsOpaque() == nb.IsOpaque()
	}

	for n := lo[face.N]; n <= hi[face.N]; n++ {
		for i := range visited {
			visited[i] = false
		}
		for v := uint32(0); v < vLen; v++ {
			for u := uint32(0); u < uLen; {
				p := cell(n, u, v)
				if visited[v*uLen+u] || !faceVisible[V](at(p), at(neighbour(p))) {
					u++
					continue
				}

				width := uint32(1)
				for u+width < uLen {
					q := cell(n, u+width, v)
					if visited[v*uLen+u+width] || !faceVisible[V](at(q), at(neighbour(q))) || !same(p, q) {
						break
					}
					width++
				}

				height := uint32(1)
			rows:
				for v+height < vLen {
					for du := uint32(0); du < width; du++ {
						q := cell(n, u+du, v+height)
						if visited[(v+height)*uLen+u+du] || !faceVisible[V](at(q), at(neighbour(q))) || !same(p, q) {
							break rows
						}
					}
					height++
				}

				for dv := uint32(0); dv < height; dv++ {
					row := (v + dv) * uLen
					for du := uint32(0); du < width; du++ {
						visited[row+u+du] = true
					}
				}
				out = append(out, Quad{Minimum: p, Width: width, Height: height})
				u += width
			}
		}
	}
	return out
}

// faceVisible reports whether the face between a cell and its neighbour must
// be meshed.
func faceVisible[V voxel.Voxel](v, neighbour V) bool {
	if v.IsEmpty() {
		return false
	}
	if neighbour.IsEmpty() {
		return true
	}
	return v.IsOpaque() && !neighbour.IsOpaque()
}

// WorstCaseQuads is the largest quad count a size^3 chunk can produce: the
// 3-D checkerboard, where every solid cell exposes six unmergeable faces.
func WorstCaseQuads(size int) int {
	return size * size * size * 6 / 2
}
