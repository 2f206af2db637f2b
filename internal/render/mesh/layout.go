package mesh

import (
	"encoding/binary"
	"fmt"
	"math"
)

// GPU byte layout: a vertex is three little-endian float32, an index a
// little-endian uint16.
const (
	VertexStride = 12
	IndexStride  = 2
)

func AppendVertexBytes(dst []byte, verts []Vertex) []byte {
	for _, v := range verts {
		for _, c := range v.Pos {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(c))
		}
	}
	return dst
}

func AppendIndexBytes(dst []byte, idx []uint16) []byte {
	for _, i := range idx {
		dst = binary.LittleEndian.AppendUint16(dst, i)
	}
	return dst
}

func DecodeVertices(b []byte) ([]Vertex, error) {
	if len(b)%VertexStride != 0 {
		return nil, fmt.Errorf("vertex bytes: length %d not a multiple of %d", len(b), VertexStride)
	}
	out := make([]Vertex, len(b)/VertexStride)
	for i := range out {
		off := i * VertexStride
		for c := 0; c < 3; c++ {
			out[i].Pos[c] = math.Float32frombits(binary.LittleEndian.Uint32(b[off+4*c:]))
		}
	}
	return out, nil
}

func DecodeIndices(b []byte) ([]uint16, error) {
	if len(b)%IndexStride != 0 {
		return nil, fmt.Errorf("index bytes: length %d not a multiple of %d", len(b), IndexStride)
	}
	out := make([]uint16, len(b)/IndexStride)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[i*IndexStride:])
	}
	return out, nil
}
