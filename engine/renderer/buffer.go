package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/gogpu/gputypes"
)

// Buffer wraps a GPU buffer handle together with its cached descriptor.
type Buffer struct {
	resource
	size  uint64
	usage gputypes.BufferUsage
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 {
	return b.size
}

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() gputypes.BufferUsage {
	return b.usage
}

// Write queues a write of data at offset. Offset and length must keep the write inside the buffer;
// the length is padded up to a multiple of 4 as required by the queue.
//
// Parameters:
//   - offset: byte offset into the buffer, a multiple of 4
//   - data: the bytes to write
//
// Returns:
//   - error: ErrUseAfterFree if released, or a range error
func (b *Buffer) Write(offset uint64, data []byte) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if offset%bufferAlignment != 0 {
		return fmt.Errorf("buffer %q: write offset %d is not a multiple of %d", b.label, offset, bufferAlignment)
	}
	if len(data) == 0 {
		return nil
	}
	padded := alignUp(uint64(len(data)), bufferAlignment)
	if offset+padded > b.size {
		return fmt.Errorf("buffer %q: write of %d bytes at offset %d exceeds size %d", b.label, len(data), offset, b.size)
	}
	if padded != uint64(len(data)) {
		p := make([]byte, padded)
		copy(p, data)
		data = p
	}
	return b.r.backend.WriteBuffer(b.handle, offset, data)
}

func (r *renderer) CreateBuffer(desc BufferDescriptor) (own.Own[*Buffer], error) {
	if err := r.checkOpen(KindBuffer, desc.Label); err != nil {
		return own.None[*Buffer](), err
	}
	if err := desc.normalize(); err != nil {
		return own.None[*Buffer](), err
	}
	h, err := r.backend.CreateBuffer(&desc)
	if err != nil {
		return own.None[*Buffer](), &CreationError{Kind: KindBuffer, Label: desc.Label, Err: err}
	}
	b := &Buffer{
		resource: newResource(r, KindBuffer, desc.Label, h),
		size:     desc.Size,
		usage:    desc.Usage,
	}
	return own.New(b, func(b *Buffer) { b.destroy() }), nil
}
