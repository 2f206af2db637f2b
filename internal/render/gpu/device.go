// Package gpu keeps chunk meshes resident in fixed-capacity device buffers.
//
// Device and RenderPass are the only surface the package needs from a
// graphics backend. MemDevice and Recorder implement them in memory for the
// headless server, tools and tests.
package gpu

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageCopyDst
	BufferUsageCopySrc
)

func (u BufferUsage) Has(f BufferUsage) bool { return u&f == f }

type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// Buffer is a device allocation. Its size never changes after creation.
type Buffer interface {
	Label() string
	Size() uint64
	Usage() BufferUsage
}

// Device allocates buffers and queues writes into them.
type Device interface {
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
}

type IndexFormat int

const (
	IndexFormatUint16 IndexFormat = iota + 1
	IndexFormatUint32
)

func (f IndexFormat) String() string {
	switch f {
	case IndexFormatUint16:
		return "uint16"
	case IndexFormatUint32:
		return "uint32"
	default:
		return "unknown"
	}
}

// RenderPass records draw commands.
type RenderPass interface {
	SetVertexBuffer(slot uint32, buf Buffer)
	SetIndexBuffer(buf Buffer, format IndexFormat)
	DrawIndexed(indexCount, instanceCount uint32)
}
