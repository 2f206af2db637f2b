package gpu

import (
	"errors"
	"testing"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/mesh"
	"voxelmesh.ai/internal/render/voxel"
)

func buildMesh(t *testing.T, solid func(x, y, z int) bool) *mesh.CPUMesh {
	t.Helper()
	voxels := make([]voxel.Block, chunk.Volume)
	for i := range voxels {
		p := chunk.Padded.Delinearize(uint32(i))
		if !chunk.IsShell(p) && solid(int(p[0]), int(p[1]), int(p[2])) {
			voxels[i] = voxel.Stone
		}
	}
	buf := mesh.NewQuadBuffer()
	mesh.GreedyQuads[voxel.Block, bool](voxels, chunk.Padded, mesh.DefaultMin, mesh.DefaultMax, &mesh.RightHandedYUp, buf)
	m, err := mesh.Build(buf, &mesh.RightHandedYUp, chunk.Pos{0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

func cube(x, y, z int) bool { return x == 4 && y == 4 && z == 4 }

func readBack(t *testing.T, dev *MemDevice, m *Mesh, verts, indices int) *mesh.CPUMesh {
	t.Helper()
	vb, err := dev.ReadBuffer(m.VertexBuffer, 0, uint64(verts*mesh.VertexStride))
	if err != nil {
		t.Fatalf("read vertices: %v", err)
	}
	ib, err := dev.ReadBuffer(m.IndexBuffer, 0, uint64(indices*mesh.IndexStride))
	if err != nil {
		t.Fatalf("read indices: %v", err)
	}
	v, err := mesh.DecodeVertices(vb)
	if err != nil {
		t.Fatalf("decode vertices: %v", err)
	}
	i, err := mesh.DecodeIndices(ib)
	if err != nil {
		t.Fatalf("decode indices: %v", err)
	}
	return &mesh.CPUMesh{Vertices: v, Indices: i}
}

func TestChunkCapacity(t *testing.T) {
	c := ChunkCapacity(chunk.Size)
	if c.Vertices != 49152 || c.Indices != 73728 {
		t.Fatalf("ChunkCapacity(16) = %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := ChunkCapacity(32).Validate(); !errors.Is(err, ErrCapacityPlan) {
		t.Fatalf("expected ErrCapacityPlan for 32^3 chunks, got %v", err)
	}
	if err := (Capacity{}).Validate(); !errors.Is(err, ErrCapacityPlan) {
		t.Fatalf("expected ErrCapacityPlan for zero capacity, got %v", err)
	}
}

func TestUploadSizedRoundTrip(t *testing.T) {
	dev := NewMemDevice()
	cpu := buildMesh(t, cube)
	capacity := ChunkCapacity(chunk.Size)
	m, err := UploadSized(dev, cpu, capacity)
	if err != nil {
		t.Fatalf("UploadSized: %v", err)
	}
	if m.VertexBuffer.Size() != capacity.VertexBytes() || m.IndexBuffer.Size() != capacity.IndexBytes() {
		t.Fatalf("buffer sizes %d/%d want %d/%d", m.VertexBuffer.Size(), m.IndexBuffer.Size(), capacity.VertexBytes(), capacity.IndexBytes())
	}
	if !m.VertexBuffer.Usage().Has(BufferUsageVertex|BufferUsageCopyDst) || !m.IndexBuffer.Usage().Has(BufferUsageIndex|BufferUsageCopyDst) {
		t.Fatalf("unexpected usages %b/%b", m.VertexBuffer.Usage(), m.IndexBuffer.Usage())
	}
	if m.NumIndices() != 36 || m.NumVertices() != 24 {
		t.Fatalf("counts %d/%d", m.NumVertices(), m.NumIndices())
	}
	got := readBack(t, dev, m, cpu.NumVertices(), cpu.NumIndices())
	if got.Digest() != cpu.Digest() {
		t.Fatalf("read back mesh differs from upload")
	}
}

func TestUploadSizedZeroPads(t *testing.T) {
	dev := NewMemDevice()
	cpu := buildMesh(t, cube)
	capacity := Capacity{Vertices: 64, Indices: 96}
	m, err := UploadSized(dev, cpu, capacity)
	if err != nil {
		t.Fatalf("UploadSized: %v", err)
	}
	off := uint64(cpu.NumVertices() * mesh.VertexStride)
	tail, err := dev.ReadBuffer(m.VertexBuffer, off, capacity.VertexBytes()-off)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, b := range tail {
		if b != 0 {
			t.Fatalf("vertex padding byte %d = %d", i, b)
		}
	}
	off = uint64(cpu.NumIndices() * mesh.IndexStride)
	tail, err = dev.ReadBuffer(m.IndexBuffer, off, capacity.IndexBytes()-off)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, b := range tail {
		if b != 0 {
			t.Fatalf("index padding byte %d = %d", i, b)
		}
	}
}

func TestUploadSizedRejectsOversizedMesh(t *testing.T) {
	dev := NewMemDevice()
	cpu := buildMesh(t, cube)
	_, err := UploadSized(dev, cpu, Capacity{Vertices: 8, Indices: 12})
	var ce *CapacityError
	if !errors.As(err, &ce) || !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected CapacityError, got %v", err)
	}
	if ce.Vertices != 24 || ce.Indices != 36 {
		t.Fatalf("error fields %+v", ce)
	}
	if dev.Stats().Buffers != 0 {
		t.Fatalf("buffers allocated for rejected upload")
	}
}

func TestUpdateInPlace(t *testing.T) {
	dev := NewMemDevice()
	big := buildMesh(t, func(x, y, z int) bool { return (x+y+z)%2 == 0 && x < 5 })
	m, err := UploadSized(dev, big, ChunkCapacity(chunk.Size))
	if err != nil {
		t.Fatalf("UploadSized: %v", err)
	}
	vb, ib := m.VertexBuffer, m.IndexBuffer

	small := buildMesh(t, cube)
	if err := m.Update(dev, small); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.VertexBuffer != vb || m.IndexBuffer != ib {
		t.Fatalf("Update reallocated buffers")
	}
	if m.NumIndices() != uint32(small.NumIndices()) {
		t.Fatalf("NumIndices = %d want %d", m.NumIndices(), small.NumIndices())
	}
	got := readBack(t, dev, m, small.NumVertices(), small.NumIndices())
	if got.Digest() != small.Digest() {
		t.Fatalf("read back after update differs")
	}

	empty := &mesh.CPUMesh{}
	if err := m.Update(dev, empty); err != nil {
		t.Fatalf("Update empty: %v", err)
	}
	if m.NumIndices() != 0 {
		t.Fatalf("NumIndices after empty update = %d", m.NumIndices())
	}
}

func TestUpdateOverflowLeavesMeshUntouched(t *testing.T) {
	dev := NewMemDevice()
	cpu := buildMesh(t, cube)
	m, err := Upload(dev, cpu)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	writes := dev.Stats().Writes

	bigger := buildMesh(t, func(x, y, z int) bool { return cube(x, y, z) || (x == 9 && y == 9 && z == 9) })
	err = m.Update(dev, bigger)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if dev.Stats().Writes != writes {
		t.Fatalf("failed update wrote to the device")
	}
	if m.NumIndices() != 36 {
		t.Fatalf("NumIndices changed to %d", m.NumIndices())
	}
	got := readBack(t, dev, m, cpu.NumVertices(), cpu.NumIndices())
	if got.Digest() != cpu.Digest() {
		t.Fatalf("buffer contents changed after failed update")
	}
}

func TestDrawRecordsCommands(t *testing.T) {
	dev := NewMemDevice()
	m, err := Upload(dev, buildMesh(t, cube))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	var rec Recorder
	m.Draw(&rec, 3)
	if len(rec.Commands) != 3 {
		t.Fatalf("commands = %+v", rec.Commands)
	}
	if c := rec.Commands[0]; c.Kind != CmdSetVertexBuffer || c.Slot != 0 || c.Buffer != m.VertexBuffer {
		t.Fatalf("vertex bind = %+v", c)
	}
	if c := rec.Commands[1]; c.Kind != CmdSetIndexBuffer || c.Format != IndexFormatUint16 || c.Buffer != m.IndexBuffer {
		t.Fatalf("index bind = %+v", c)
	}
	if c := rec.Commands[2]; c.Kind != CmdDrawIndexed || c.Indices != 36 || c.Instances != 3 {
		t.Fatalf("draw = %+v", c)
	}
	calls, indices := rec.Draws()
	if calls != 1 || indices != 108 {
		t.Fatalf("Draws() = %d, %d", calls, indices)
	}
}

func TestDrawSkipsEmptyMesh(t *testing.T) {
	dev := NewMemDevice()
	m, err := UploadSized(dev, &mesh.CPUMesh{}, ChunkCapacity(chunk.Size))
	if err != nil {
		t.Fatalf("UploadSized: %v", err)
	}
	var rec Recorder
	m.Draw(&rec, 1)
	if len(rec.Commands) != 0 {
		t.Fatalf("empty mesh recorded %d commands", len(rec.Commands))
	}
}

func TestMemDeviceBounds(t *testing.T) {
	dev := NewMemDevice()
	buf, err := dev.CreateBuffer(BufferDescriptor{Label: "b", Size: 8, Usage: BufferUsageVertex | BufferUsageCopyDst})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := dev.WriteBuffer(buf, 4, make([]byte, 5)); err == nil {
		t.Fatalf("expected out of range write to fail")
	}
	ro, _ := dev.CreateBuffer(BufferDescriptor{Label: "ro", Size: 8, Usage: BufferUsageVertex})
	if err := dev.WriteBuffer(ro, 0, []byte{1}); err == nil {
		t.Fatalf("expected write without copy_dst to fail")
	}
	dev.Destroy(buf)
	if err := dev.WriteBuffer(buf, 0, []byte{1}); !errors.Is(err, ErrUnknownBuffer) {
		t.Fatalf("expected ErrUnknownBuffer, got %v", err)
	}
	if s := dev.Stats(); s.Buffers != 1 || s.AllocatedBytes != 8 {
		t.Fatalf("stats = %+v", s)
	}
}

var errDeviceLost = errors.New("device lost")

// flakyDevice fails the n-th CreateBuffer or WriteBuffer call (1-based).
type flakyDevice struct {
	*MemDevice
	failCreate, failWrite int
	creates, writes       int
}

func (d *flakyDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	d.creates++
	if d.creates == d.failCreate {
		return nil, errDeviceLost
	}
	return d.MemDevice.CreateBuffer(desc)
}

func (d *flakyDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	d.writes++
	if d.writes == d.failWrite {
		return errDeviceLost
	}
	return d.MemDevice.WriteBuffer(buf, offset, data)
}

func TestUploadSizedFreesBuffersOnDeviceError(t *testing.T) {
	cpu := buildMesh(t, cube)
	for _, tc := range []struct {
		name string
		dev  *flakyDevice
	}{
		{"index buffer create", &flakyDevice{MemDevice: NewMemDevice(), failCreate: 2}},
		{"vertex write", &flakyDevice{MemDevice: NewMemDevice(), failWrite: 1}},
		{"index write", &flakyDevice{MemDevice: NewMemDevice(), failWrite: 2}},
	} {
		m, err := UploadSized(tc.dev, cpu, ChunkCapacity(chunk.Size))
		if !errors.Is(err, errDeviceLost) || m != nil {
			t.Fatalf("%s: m=%v err=%v", tc.name, m, err)
		}
		if st := tc.dev.Stats(); st.Buffers != 0 || st.AllocatedBytes != 0 {
			t.Fatalf("%s: leaked buffers=%d allocated=%d", tc.name, st.Buffers, st.AllocatedBytes)
		}
	}
}

func TestUpdateFailedIndexWriteLeavesMeshEmpty(t *testing.T) {
	dev := &flakyDevice{MemDevice: NewMemDevice()}
	m, err := UploadSized(dev, buildMesh(t, cube), ChunkCapacity(chunk.Size))
	if err != nil {
		t.Fatalf("UploadSized: %v", err)
	}
	// Upload made writes 1 and 2; the update's vertex write is 3.
	dev.failWrite = 4
	bigger := buildMesh(t, func(x, y, z int) bool { return x >= 2 && x <= 3 && y == 2 && z == 2 || cube(x, y, z) })
	if err := m.Update(dev, bigger); !errors.Is(err, errDeviceLost) {
		t.Fatalf("Update err=%v", err)
	}
	if m.NumIndices() != 0 || m.NumVertices() != 0 {
		t.Fatalf("counts after failed update = %d/%d, want 0/0", m.NumVertices(), m.NumIndices())
	}
	var rec Recorder
	m.Draw(&rec, 1)
	if calls, _ := rec.Draws(); calls != 0 {
		t.Fatalf("failed update still draws %d calls", calls)
	}

	// A later successful update restores the mesh.
	if err := m.Update(dev, bigger); err != nil {
		t.Fatalf("Update retry: %v", err)
	}
	if m.NumIndices() != uint32(bigger.NumIndices()) {
		t.Fatalf("NumIndices=%d want %d", m.NumIndices(), bigger.NumIndices())
	}
}
