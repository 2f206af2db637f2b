// Package chunk describes the padded dense grid every chunk is stored in.
//
// A chunk has Size^3 interior cells surrounded by a one-cell padding shell on
// every face, so the backing array has Edge^3 cells. Linear indices run with x
// innermost, then y, then z.
package chunk

const (
	Size   = 16
	Edge   = Size + 2
	Volume = Edge * Edge * Edge
)

// Pos is a chunk coordinate in chunk space.
type Pos [3]int32

// Origin is the world voxel coordinate that local coordinate (0,0,0) maps to.
func (p Pos) Origin() [3]int {
	return [3]int{int(p[0]) * Size, int(p[1]) * Size, int(p[2]) * Size}
}

// Less orders positions by x, then y, then z.
func (p Pos) Less(o Pos) bool {
	if p[0] != o[0] {
		return p[0] < o[0]
	}
	if p[1] != o[1] {
		return p[1] < o[1]
	}
	return p[2] < o[2]
}

// Shape is the extent of a dense 3-D array.
type Shape [3]uint32

// Padded is the shape of one chunk including its padding shell.
var Padded = Shape{Edge, Edge, Edge}

func (s Shape) Size() uint32 { return s[0] * s[1] * s[2] }

func (s Shape) Linearize(p [3]uint32) uint32 {
	return p[0] + s[0]*(p[1]+s[1]*p[2])
}

func (s Shape) Delinearize(i uint32) [3]uint32 {
	x := i % s[0]
	i /= s[0]
	y := i % s[1]
	z := i / s[1]
	return [3]uint32{x, y, z}
}

// Contains reports whether p lies inside the extent.
func (s Shape) Contains(p [3]uint32) bool {
	return p[0] < s[0] && p[1] < s[1] && p[2] < s[2]
}

// IsShell reports whether a padded local coordinate lies on the padding shell.
func IsShell(local [3]uint32) bool {
	for _, c := range local {
		if c == 0 || c >= Edge-1 {
			return true
		}
	}
	return false
}
