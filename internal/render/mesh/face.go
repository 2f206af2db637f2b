package mesh

import "github.com/go-gl/mathgl/mgl32"

// OrientedFace is one of the six axis-aligned face directions. N is the
// normal axis and U, V span the face plane with U x V = +N.
type OrientedFace struct {
	NSign int32
	N     int
	U     int
	V     int
}

func newFace(sign int32, n int) OrientedFace {
	return OrientedFace{NSign: sign, N: n, U: (n + 1) % 3, V: (n + 2) % 3}
}

// RightHandedYUp is the fixed face order used for every mesh:
// -X, -Y, -Z, +X, +Y, +Z. Vertex layout depends on this order.
var RightHandedYUp = [6]OrientedFace{
	newFace(-1, 0),
	newFace(-1, 1),
	newFace(-1, 2),
	newFace(1, 0),
	newFace(1, 1),
	newFace(1, 2),
}

func (f OrientedFace) Normal() mgl32.Vec3 {
	var n mgl32.Vec3
	n[f.N] = float32(f.NSign)
	return n
}

// Corners returns the four corners of q in grid units. Corners are ordered
// (minU,minV), (maxU,minV), (minU,maxV), (maxU,maxV).
func (f OrientedFace) Corners(q Quad) [4][3]uint32 {
	base := q.Minimum
	if f.NSign > 0 {
		base[f.N]++
	}
	du := base
	du[f.U] += q.Width
	dv := base
	dv[f.V] += q.Height
	duv := du
	duv[f.V] += q.Height
	return [4][3]uint32{base, du, dv, duv}
}

// Indices returns the two triangles of a quad whose first vertex is start,
// wound counter-clockwise when seen from outside the face.
func (f OrientedFace) Indices(start uint16) [6]uint16 {
	if f.NSign > 0 {
		return [6]uint16{start, start + 1, start + 2, start + 1, start + 3, start + 2}
	}
	return [6]uint16{start, start + 2, start + 1, start + 1, start + 2, start + 3}
}
