// Package workspace implements the fixed-size memory arena the HTTP/1.1
// parser and serializer carve their header bytes, field-index entries,
// and staging buffers from.
package workspace

import (
	"errors"
	"unsafe"
)

// ErrExhausted is returned by ReserveFront/ReserveBack when satisfying
// the request would make the front and back regions overlap.
var ErrExhausted = errors.New("workspace: exhausted")

// DefaultSize is sized for a typical request line + header block, a
// back-allocated field index (and trailer index) of DefaultMaxHeaderCount
// entries, and a body delivery ring/staging buffer of
// DefaultBodyRingSize or DefaultPayloadBufferSize bytes.
const DefaultSize = 64 * 1024

// Workspace is a single contiguous byte region bump-allocated from both
// ends at once. Front allocations hold header bytes and body staging
// data in the order they are produced; back allocations hold
// fixed-layout records (field-index entries) that are easiest to
// address by a stable offset from the end of the buffer. The two
// regions never overlap; requesting more than the remaining space
// returns ErrExhausted rather than growing the buffer.
type Workspace struct {
	buf   []byte
	front int // bytes allocated from the start
	back  int // bytes allocated from the end
}

// New allocates a Workspace backed by a buffer of size bytes.
func New(size int) *Workspace {
	if size <= 0 {
		size = DefaultSize
	}
	return &Workspace{buf: make([]byte, size)}
}

// Size returns the total capacity of the workspace.
func (w *Workspace) Size() int { return len(w.buf) }

// Used returns the number of bytes currently allocated from both ends.
func (w *Workspace) Used() int { return w.front + w.back }

// Remaining returns the number of bytes still available between the
// front and back regions.
func (w *Workspace) Remaining() int { return len(w.buf) - w.front - w.back }

// Clear resets both bump pointers without zeroing the underlying
// buffer, making the whole workspace available again.
func (w *Workspace) Clear() {
	w.front = 0
	w.back = 0
}

// ReserveFront bump-allocates n bytes from the front of the workspace
// and returns a slice over them. The slice is valid until the next
// Clear.
func (w *Workspace) ReserveFront(n int) ([]byte, error) {
	if n < 0 || n > w.Remaining() {
		return nil, ErrExhausted
	}
	s := w.buf[w.front : w.front+n : len(w.buf)-w.back]
	w.front += n
	return s, nil
}

// ReserveBack bump-allocates n bytes from the back of the workspace and
// returns a slice over them. Because entries are easiest to address by
// a stable index rather than a growing offset, ReserveBack returns the
// slice in forward byte order (buf[end-n:end]) with the most recently
// reserved region closest to the front.
func (w *Workspace) ReserveBack(n int) ([]byte, error) {
	if n < 0 || n > w.Remaining() {
		return nil, ErrExhausted
	}
	end := len(w.buf) - w.back
	w.back += n
	// Cap the slice at its own reservation so callers that reslice up
	// to cap (staging buffers) cannot reach into neighboring regions.
	return w.buf[end-n : end : end], nil
}

// PrepareFront returns a mutable window into the unused front capacity,
// at most n bytes long (the whole remaining front capacity if n <= 0).
// The caller writes into the window and then calls CommitFront with
// however many bytes it actually wrote — unlike ReserveFront, the
// amount used need not be known up front, matching the streaming
// parser's prepare()/commit(n) pair.
func (w *Workspace) PrepareFront(n int) []byte {
	free := w.buf[w.front : len(w.buf)-w.back]
	if n > 0 && n < len(free) {
		free = free[:n]
	}
	return free
}

// CommitFront advances the front bump pointer by n bytes, which must
// have just been written into the slice returned by PrepareFront.
func (w *Workspace) CommitFront(n int) error {
	if n < 0 || w.front+n > len(w.buf)-w.back {
		return ErrExhausted
	}
	w.front += n
	return nil
}

// FrontLen reports how many bytes are currently allocated from the
// front.
func (w *Workspace) FrontLen() int { return w.front }

// FrontBytes returns the bytes allocated from the front so far.
func (w *Workspace) FrontBytes() []byte { return w.buf[:w.front] }

// TruncateFront shrinks the front region to n bytes, which must be no
// greater than the current front length. Used to give back trailing
// bytes once they have been consumed by a caller (e.g. after a header
// has been copied out of the workspace into its final resting place).
func (w *Workspace) TruncateFront(n int) {
	if n < 0 {
		n = 0
	}
	if n > w.front {
		n = w.front
	}
	w.front = n
}

// PushArray back-allocates room for n values of T from w and returns
// them as a slice of length n, the generic counterpart to ReserveBack
// for typed fixed-capacity records (e.g. a header field index) instead
// of raw bytes. The returned slice aliases w's buffer and is valid
// until the next Clear, exactly like ReserveBack's.
func PushArray[T any](w *Workspace, n int) ([]T, error) {
	if n < 0 {
		return nil, ErrExhausted
	}
	if n == 0 {
		return nil, nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	buf, err := w.ReserveBack(size * n)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), n), nil
}

// RingBuffer is a two-segment circular buffer carved from a Workspace
// region, used to stage body bytes between the stream adapter and the
// parser/serializer without ever allocating outside the workspace.
type RingBuffer struct {
	buf        []byte
	head, tail int
	full       bool
}

// NewRingBuffer wraps buf (the parser passes a ReserveBack region) as a
// ring buffer.
func NewRingBuffer(buf []byte) *RingBuffer {
	return &RingBuffer{buf: buf}
}

// Cap returns the ring buffer's total capacity.
func (r *RingBuffer) Cap() int { return len(r.buf) }

// Len returns the number of bytes currently staged.
func (r *RingBuffer) Len() int {
	if r.full {
		return len(r.buf)
	}
	if r.tail >= r.head {
		return r.tail - r.head
	}
	return len(r.buf) - r.head + r.tail
}

// Free returns the number of bytes that can still be written.
func (r *RingBuffer) Free() int { return len(r.buf) - r.Len() }

// Reset empties the ring buffer.
func (r *RingBuffer) Reset() {
	r.head, r.tail, r.full = 0, 0, false
}

// WriteSlot returns up to two contiguous slices into which new data may
// be written, honoring wraparound. Callers must call Commit(n) with the
// total number of bytes actually written.
func (r *RingBuffer) WriteSlot() (a, b []byte) {
	free := r.Free()
	if free == 0 {
		return nil, nil
	}
	if r.tail >= r.head && !r.full {
		first := len(r.buf) - r.tail
		if first > free {
			first = free
		}
		a = r.buf[r.tail : r.tail+first]
		rest := free - first
		if rest > 0 {
			b = r.buf[0:rest]
		}
		return a, b
	}
	a = r.buf[r.tail : r.tail+free]
	return a, nil
}

// Commit advances the write cursor by n bytes, as returned by a
// preceding WriteSlot.
func (r *RingBuffer) Commit(n int) {
	if n <= 0 {
		return
	}
	r.tail = (r.tail + n) % len(r.buf)
	if r.tail == r.head {
		r.full = true
	}
}

// ReadSlot returns up to two contiguous slices holding the currently
// staged, unread bytes, honoring wraparound.
func (r *RingBuffer) ReadSlot() (a, b []byte) {
	n := r.Len()
	if n == 0 {
		return nil, nil
	}
	first := len(r.buf) - r.head
	if first > n {
		first = n
	}
	a = r.buf[r.head : r.head+first]
	if rest := n - first; rest > 0 {
		b = r.buf[0:rest]
	}
	return a, b
}

// Consume advances the read cursor by n bytes, as returned by a
// preceding ReadSlot.
func (r *RingBuffer) Consume(n int) {
	if n <= 0 {
		return
	}
	r.head = (r.head + n) % len(r.buf)
	r.full = false
}
