//go:build !windows

// Package buffer implements the growable, prepend-region byte buffer from
// spec.md §3 and §4.8, ported from original_source/Buffer.cc.
package buffer

import (
	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"
)

// DefaultPrependSize is the reserved header region ahead of the readable
// bytes, matching the source's default.
const DefaultPrependSize = 8

// initialBufferSize is an arbitrary but generous starting capacity; grows
// via ensureWritable as needed.
const initialBufferSize = 1024

// spillSize is the on-stack scratch size in original_source/Buffer.cc
// ("char extrabuf[65536]"). Go has no stack VLA of this size worth taking,
// so the scratch slice is pooled via bytebufferpool instead of allocated
// per readFd call — the same pooling dependency the teacher already
// carries (_examples/walkon-gnet/go.mod).
const spillSize = 64 * 1024

var spillPool bytebufferpool.Pool

// Buffer is a single-owner (per-connection, per-loop-goroutine) byte
// buffer with readerIndex <= writerIndex <= len(data), per spec.md §3.
type Buffer struct {
	data   []byte
	reader int
	writer int
}

// New returns an empty Buffer with the default prepend region reserved
// and the default initial capacity.
func New() *Buffer {
	return NewWithCap(initialBufferSize)
}

// NewWithCap is New with a caller-chosen initial capacity, letting
// TcpConnection size its per-connection buffers from Options.ReadBufferCap
// instead of always starting small and growing.
func NewWithCap(capacity int) *Buffer {
	if capacity < DefaultPrependSize {
		capacity = DefaultPrependSize
	}
	return &Buffer{
		data:   make([]byte, capacity),
		reader: DefaultPrependSize,
		writer: DefaultPrependSize,
	}
}

// ReadableBytes is writer - reader.
func (b *Buffer) ReadableBytes() int { return b.writer - b.reader }

// WritableBytes is len(data) - writer.
func (b *Buffer) WritableBytes() int { return len(b.data) - b.writer }

// PrependableBytes is reader.
func (b *Buffer) PrependableBytes() int { return b.reader }

// Peek returns the readable region without consuming it.
func (b *Buffer) Peek() []byte { return b.data[b.reader:b.writer] }

// Retrieve advances the reader cursor by n, evicting n readable bytes.
// Once the buffer is fully drained, both cursors reset to the prepend
// boundary so the writable region doesn't migrate forever.
func (b *Buffer) Retrieve(n int) {
	if n <= 0 {
		return
	}
	if n >= b.ReadableBytes() {
		b.RetrieveAll()
		return
	}
	b.reader += n
}

// RetrieveAll evicts all readable bytes.
func (b *Buffer) RetrieveAll() {
	b.reader = DefaultPrependSize
	b.writer = DefaultPrependSize
}

// RetrieveAllAsString evicts and returns all readable bytes as a string.
func (b *Buffer) RetrieveAllAsString() string {
	s := string(b.Peek())
	b.RetrieveAll()
	return s
}

// Append copies s into the writable tail, growing or compacting first if
// needed.
func (b *Buffer) Append(s []byte) {
	b.EnsureWritable(len(s))
	copy(b.data[b.writer:], s)
	b.writer += len(s)
}

// AppendString is Append for a string, avoiding a redundant copy at the
// call site where the caller already has a string.
func (b *Buffer) AppendString(s string) {
	b.EnsureWritable(len(s))
	copy(b.data[b.writer:], s)
	b.writer += len(s)
}

// EnsureWritable grows the buffer, or compacts it by shifting the
// still-unread bytes back to the prepend boundary, so that at least n
// bytes are writable.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	if b.WritableBytes()+b.PrependableBytes()-DefaultPrependSize >= n {
		readable := b.ReadableBytes()
		copy(b.data[DefaultPrependSize:], b.data[b.reader:b.writer])
		b.reader = DefaultPrependSize
		b.writer = b.reader + readable
		return
	}
	needed := b.writer + n
	newCap := len(b.data) * 2
	if newCap < needed {
		newCap = needed
	}
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.writer])
	b.data = grown
}

// ReadFd performs the vectored read from spec.md §4.8: one iovec into the
// buffer's writable tail, a second into a pooled 64 KiB spill slice used
// only when the writable tail is smaller than the spill size. Overflow
// into the spill slice is appended to the buffer afterward, growing it at
// most once per call.
func (b *Buffer) ReadFd(fd int) (int, error) {
	writable := b.WritableBytes()

	spill := spillPool.Get()
	defer spillPool.Put(spill)
	spill.B = spill.B[:cap(spill.B)]
	if len(spill.B) < spillSize {
		spill.B = make([]byte, spillSize)
	} else {
		spill.B = spill.B[:spillSize]
	}

	iovs := make([][]byte, 0, 2)
	iovs = append(iovs, b.data[b.writer:])
	if writable < spillSize {
		iovs = append(iovs, spill.B)
	}

	n, err := unix.Readv(fd, iovs)
	if err != nil {
		return 0, err
	}
	switch {
	case n <= writable:
		b.writer += n
	default:
		b.writer = len(b.data)
		b.Append(spill.B[:n-writable])
	}
	return n, nil
}

// WriteFd writes the readable region of the buffer to fd without
// consuming it; the caller (TcpConnection.handleWrite) advances the
// reader cursor by however many bytes the write actually accepted.
func (b *Buffer) WriteFd(fd int) (int, error) {
	return unix.Write(fd, b.Peek())
}
