package gpu

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

var ErrUnknownBuffer = errors.New("gpu: buffer not owned by device")

type memBuffer struct {
	id    int
	desc  BufferDescriptor
	bytes []byte
}

func (b *memBuffer) Label() string      { return b.desc.Label }
func (b *memBuffer) Size() uint64       { return b.desc.Size }
func (b *memBuffer) Usage() BufferUsage { return b.desc.Usage }

// MemDevice is a Device backed by host memory. Writes are applied
// immediately. It is safe for concurrent use.
type MemDevice struct {
	mu      sync.Mutex
	buffers map[*memBuffer]struct{}
	nextID  int

	allocated atomic.Uint64
	written   atomic.Uint64
	writes    atomic.Uint64
}

func NewMemDevice() *MemDevice {
	return &MemDevice{buffers: map[*memBuffer]struct{}{}}
}

func (d *MemDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	b := &memBuffer{id: d.nextID, desc: desc, bytes: make([]byte, desc.Size)}
	d.buffers[b] = struct{}{}
	d.allocated.Add(desc.Size)
	return b, nil
}

func (d *MemDevice) lookup(buf Buffer) (*memBuffer, error) {
	b, ok := buf.(*memBuffer)
	if !ok {
		return nil, ErrUnknownBuffer
	}
	if _, ok := d.buffers[b]; !ok {
		return nil, ErrUnknownBuffer
	}
	return b, nil
}

func (d *MemDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.lookup(buf)
	if err != nil {
		return err
	}
	if !b.desc.Usage.Has(BufferUsageCopyDst) {
		return fmt.Errorf("gpu: write %q: buffer lacks copy_dst usage", b.desc.Label)
	}
	end := offset + uint64(len(data))
	if end < offset || end > b.desc.Size {
		return fmt.Errorf("gpu: write %q: range [%d,%d) outside buffer of %d bytes", b.desc.Label, offset, end, b.desc.Size)
	}
	copy(b.bytes[offset:end], data)
	d.written.Add(uint64(len(data)))
	d.writes.Inc()
	return nil
}

// ReadBuffer copies n bytes starting at offset out of buf.
func (d *MemDevice) ReadBuffer(buf Buffer, offset, n uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.lookup(buf)
	if err != nil {
		return nil, err
	}
	end := offset + n
	if end < offset || end > b.desc.Size {
		return nil, fmt.Errorf("gpu: read %q: range [%d,%d) outside buffer of %d bytes", b.desc.Label, offset, end, b.desc.Size)
	}
	return append([]byte(nil), b.bytes[offset:end]...), nil
}

// Destroy releases buf. Later writes to it fail with ErrUnknownBuffer.
func (d *MemDevice) Destroy(buf Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.lookup(buf)
	if err != nil {
		return
	}
	delete(d.buffers, b)
	d.allocated.Sub(b.desc.Size)
}

type DeviceStats struct {
	Buffers        int
	AllocatedBytes uint64
	WrittenBytes   uint64
	Writes         uint64
}

func (d *MemDevice) Stats() DeviceStats {
	d.mu.Lock()
	n := len(d.buffers)
	d.mu.Unlock()
	return DeviceStats{
		Buffers:        n,
		AllocatedBytes: d.allocated.Load(),
		WrittenBytes:   d.written.Load(),
		Writes:         d.writes.Load(),
	}
}
