package world

import (
	"encoding/hex"
	"time"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/mesh"
)

type MeshEventKind string

const (
	MeshUploaded MeshEventKind = "upload"
	MeshUpdated  MeshEventKind = "update"
	MeshEvicted  MeshEventKind = "evict"
)

// MeshEvent describes one change to the resident mesh of a chunk.
type MeshEvent struct {
	Seq         uint64        `json:"seq"`
	Time        time.Time     `json:"time"`
	Pos         chunk.Pos     `json:"pos"`
	Kind        MeshEventKind `json:"kind"`
	Quads       int           `json:"quads"`
	Vertices    int           `json:"vertices"`
	Indices     int           `json:"indices"`
	CapVertices uint32        `json:"cap_vertices"`
	CapIndices  uint32        `json:"cap_indices"`
	Digest      string        `json:"digest,omitempty"`
	VoxelDigest string        `json:"voxel_digest,omitempty"`
	BuildMicros int64         `json:"build_us"`

	// Mesh is the CPU mesh that was uploaded. Nil for evictions.
	Mesh *mesh.CPUMesh `json:"-"`
}

// MeshSink receives mesh events synchronously from the goroutine that owns
// the Terrain.
type MeshSink interface {
	WriteMesh(ev MeshEvent) error
}

// MultiSink fans an event out to every sink. Sink errors are ignored so one
// failing consumer cannot stall rendering.
type MultiSink []MeshSink

func (m MultiSink) WriteMesh(ev MeshEvent) error {
	for _, s := range m {
		if s != nil {
			_ = s.WriteMesh(ev)
		}
	}
	return nil
}

func digestHex(d [32]byte) string { return hex.EncodeToString(d[:]) }
