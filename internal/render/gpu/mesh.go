package gpu

import (
	"fmt"

	"voxelmesh.ai/internal/render/mesh"
)

// Mesh is a CPU mesh resident on a device. Its buffers are allocated once at
// Capacity and only rewritten afterwards; NumIndices is how many indices from
// the head of the index buffer are drawable.
type Mesh struct {
	VertexBuffer Buffer
	IndexBuffer  Buffer
	Capacity     Capacity

	numVertices uint32
	numIndices  uint32
}

func (m *Mesh) NumIndices() uint32  { return m.numIndices }
func (m *Mesh) NumVertices() uint32 { return m.numVertices }

// UploadSized allocates buffers of exactly capacity elements and writes cpu
// into their low end, zero-filling the rest.
func UploadSized(dev Device, cpu *mesh.CPUMesh, capacity Capacity) (*Mesh, error) {
	if err := checkFits(capacity, cpu); err != nil {
		return nil, err
	}
	vb, err := dev.CreateBuffer(BufferDescriptor{
		Label: "chunk vertices",
		Size:  capacity.VertexBytes(),
		Usage: BufferUsageVertex | BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}
	ib, err := dev.CreateBuffer(BufferDescriptor{
		Label: "chunk indices",
		Size:  capacity.IndexBytes(),
		Usage: BufferUsageIndex | BufferUsageCopyDst,
	})
	if err != nil {
		destroy(dev, vb)
		return nil, fmt.Errorf("create index buffer: %w", err)
	}

	verts := make([]byte, capacity.VertexBytes())
	mesh.AppendVertexBytes(verts[:0], cpu.Vertices)
	idx := make([]byte, capacity.IndexBytes())
	mesh.AppendIndexBytes(idx[:0], cpu.Indices)

	if err := dev.WriteBuffer(vb, 0, verts); err != nil {
		destroy(dev, vb, ib)
		return nil, fmt.Errorf("write vertex buffer: %w", err)
	}
	if err := dev.WriteBuffer(ib, 0, idx); err != nil {
		destroy(dev, vb, ib)
		return nil, fmt.Errorf("write index buffer: %w", err)
	}
	return &Mesh{
		VertexBuffer: vb,
		IndexBuffer:  ib,
		Capacity:     capacity,
		numVertices:  uint32(cpu.NumVertices()),
		numIndices:   uint32(cpu.NumIndices()),
	}, nil
}

// Upload sizes the buffers to cpu itself. The result cannot grow on Update.
func Upload(dev Device, cpu *mesh.CPUMesh) (*Mesh, error) {
	return UploadSized(dev, cpu, Capacity{Vertices: uint32(cpu.NumVertices()), Indices: uint32(cpu.NumIndices())})
}

// Update rewrites the buffers from offset 0. Stale data past the new mesh is
// left in place; draws only read NumIndices indices. Nothing is written when
// cpu does not fit. If a device write fails the mesh is left empty, so it
// never draws old indices over new vertices.
func (m *Mesh) Update(dev Device, cpu *mesh.CPUMesh) error {
	if err := checkFits(m.Capacity, cpu); err != nil {
		return err
	}
	if cpu.NumVertices() > 0 {
		if err := dev.WriteBuffer(m.VertexBuffer, 0, mesh.AppendVertexBytes(nil, cpu.Vertices)); err != nil {
			m.numVertices, m.numIndices = 0, 0
			return fmt.Errorf("write vertex buffer: %w", err)
		}
	}
	if cpu.NumIndices() > 0 {
		if err := dev.WriteBuffer(m.IndexBuffer, 0, mesh.AppendIndexBytes(nil, cpu.Indices)); err != nil {
			m.numVertices, m.numIndices = 0, 0
			return fmt.Errorf("write index buffer: %w", err)
		}
	}
	m.numVertices = uint32(cpu.NumVertices())
	m.numIndices = uint32(cpu.NumIndices())
	return nil
}

// Draw binds the buffers and issues one indexed draw. Empty meshes record
// nothing.
func (m *Mesh) Draw(pass RenderPass, instances uint32) {
	if m.numIndices == 0 || instances == 0 {
		return
	}
	pass.SetVertexBuffer(0, m.VertexBuffer)
	pass.SetIndexBuffer(m.IndexBuffer, IndexFormatUint16)
	pass.DrawIndexed(m.numIndices, instances)
}

// Destroyer is implemented by devices that can free buffers.
type Destroyer interface {
	Destroy(buf Buffer)
}

// Release frees the mesh's buffers when dev supports it. The mesh must not
// be used afterwards.
func (m *Mesh) Release(dev Device) {
	destroy(dev, m.VertexBuffer, m.IndexBuffer)
}

func destroy(dev Device, bufs ...Buffer) {
	d, ok := dev.(Destroyer)
	if !ok {
		return
	}
	for _, b := range bufs {
		d.Destroy(b)
	}
}
