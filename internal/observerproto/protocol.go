package observerproto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"voxelmesh.ai/internal/render/mesh"
)

// Version is the mesh observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeWelcome   = "WELCOME"
	TypeMesh      = "MESH"
	TypeEvict     = "EVICT"
)

// Stream encodings of MeshMsg data.
const (
	EncodingVertexF32LE = "f32le_xyz"
	EncodingIndexU16LE  = "u16le"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to move the view.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Center          [3]int32 `json:"center"`
	Radius          int      `json:"radius"`
	Layers          int      `json:"layers,omitempty"`
	MaxChunks       int      `json:"max_chunks,omitempty"`
	// IncludeData requests vertex and index streams, not only summaries.
	IncludeData bool `json:"include_data,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string       `json:"protocol_version"`
	ChunkSize       int          `json:"chunk_size"`
	PaddedEdge      int          `json:"padded_edge"`
	VoxelSize       float32      `json:"voxel_size"`
	FaceOrder       []string     `json:"face_order"`
	Capacity        CapacityInfo `json:"capacity"`
	LoadedChunks    [][3]int32   `json:"loaded_chunks"`
	Meshes          int          `json:"meshes"`
	Frame           uint64       `json:"frame"`
}

type CapacityInfo struct {
	MaxVerts    uint32 `json:"max_verts"`
	MaxIndxs    uint32 `json:"max_indxs"`
	VertexBytes uint64 `json:"vertex_bytes"`
	IndexBytes  uint64 `json:"index_bytes"`
}

// Server -> Client. Sent once the subscription is accepted.
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	Wanted          int    `json:"wanted"`
}

// Server -> Client. The current mesh of one chunk.
type MeshMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Seq             uint64   `json:"seq"`
	Pos             [3]int32 `json:"pos"`
	Kind            string   `json:"kind"`
	Quads           int      `json:"quads"`
	NumVertices     int      `json:"num_vertices"`
	NumIndices      int      `json:"num_indices"`
	Digest          string   `json:"digest"`

	VertexEncoding string `json:"vertex_encoding,omitempty"`
	Vertices       string `json:"vertices,omitempty"`
	IndexEncoding  string `json:"index_encoding,omitempty"`
	Indices        string `json:"indices,omitempty"`
}

// Server -> Client. The chunk's mesh is gone.
type EvictMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Seq             uint64   `json:"seq"`
	Pos             [3]int32 `json:"pos"`
}

// HasData reports whether the message carries vertex and index streams.
func (m MeshMsg) HasData() bool { return m.VertexEncoding != "" || m.IndexEncoding != "" }

// DecodeData decodes the vertex and index streams of a MESH message sent
// with include_data.
func (m MeshMsg) DecodeData() ([]mesh.Vertex, []uint16, error) {
	if m.VertexEncoding != EncodingVertexF32LE {
		return nil, nil, fmt.Errorf("unsupported vertex_encoding %q", m.VertexEncoding)
	}
	if m.IndexEncoding != EncodingIndexU16LE {
		return nil, nil, fmt.Errorf("unsupported index_encoding %q", m.IndexEncoding)
	}
	vb, err := base64.StdEncoding.DecodeString(m.Vertices)
	if err != nil {
		return nil, nil, fmt.Errorf("vertices: %w", err)
	}
	ib, err := base64.StdEncoding.DecodeString(m.Indices)
	if err != nil {
		return nil, nil, fmt.Errorf("indices: %w", err)
	}
	verts, err := mesh.DecodeVertices(vb)
	if err != nil {
		return nil, nil, err
	}
	idx, err := mesh.DecodeIndices(ib)
	if err != nil {
		return nil, nil, err
	}
	if len(verts) != m.NumVertices || len(idx) != m.NumIndices {
		return nil, nil, fmt.Errorf("stream lengths %d/%d do not match counts %d/%d", len(verts), len(idx), m.NumVertices, m.NumIndices)
	}
	return verts, idx, nil
}
