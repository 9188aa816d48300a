// Package ringbuf provides the fixed-capacity byte FIFO shared between an
// interrupt handler and main-line code.
//
// A Buffer has one producer and one consumer. The serial receive path stores
// from the receive interrupt and takes from main-line code; the transmit path
// is the mirror image. Main-line callers must hold the interrupt mask (see
// package irq) around every call, handlers need nothing extra.
package ringbuf

const (
	// Size is the storage length used on boards with at most two serial ports.
	Size = 128
	// SmallSize is used when more ports compete for RAM.
	SmallSize = 64
)

// SizeFor returns the storage length for a board with the given number of
// serial ports.
func SizeFor(ports int) int {
	if ports <= 2 {
		return Size
	}
	return SmallSize
}

// Buffer is a circular byte FIFO of N slots. One slot is always left vacant,
// so head == tail means empty and N-1 bytes are usable.
type Buffer struct {
	buf  []byte
	head int // next write slot
	tail int // next read slot
}

// New allocates a Buffer with n slots (n-1 usable). n must be >= 2.
func New(n int) *Buffer {
	if n < 2 {
		panic("ringbuf: size must be >= 2")
	}
	return &Buffer{buf: make([]byte, n)}
}

// Size returns the number of slots.
func (b *Buffer) Size() int { return len(b.buf) }

// Cap returns the number of usable bytes (Size-1).
func (b *Buffer) Cap() int { return len(b.buf) - 1 }

func (b *Buffer) next(i int) int {
	i++
	if i == len(b.buf) {
		return 0
	}
	return i
}

// Store appends c. When the buffer is full the new byte is dropped and Store
// reports false; the bytes already queued are kept.
func (b *Buffer) Store(c byte) bool {
	i := b.next(b.head)
	if i == b.tail {
		return false
	}
	b.buf[b.head] = c
	b.head = i
	return true
}

// Take removes and returns the oldest byte.
func (b *Buffer) Take() (byte, bool) {
	if b.head == b.tail {
		return 0, false
	}
	c := b.buf[b.tail]
	b.tail = b.next(b.tail)
	return c, true
}

// Peek returns the oldest byte without removing it.
func (b *Buffer) Peek() (byte, bool) {
	if b.head == b.tail {
		return 0, false
	}
	return b.buf[b.tail], true
}

// Len returns the occupancy, (head - tail) mod N.
func (b *Buffer) Len() int {
	n := len(b.buf)
	return (n + b.head - b.tail) % n
}

// Free returns how many more bytes Store would accept.
func (b *Buffer) Free() int { return b.Cap() - b.Len() }

func (b *Buffer) Empty() bool { return b.head == b.tail }

func (b *Buffer) Full() bool { return b.next(b.head) == b.tail }

// NearFull reports whether storing margin more bytes would fill the buffer.
func (b *Buffer) NearFull(margin int) bool { return b.Free() <= margin }

// Reset empties the buffer and rewinds both indices.
func (b *Buffer) Reset() { b.head, b.tail = 0, 0 }

// Discard drops every unread byte by moving tail up to head. Unlike Reset it
// only touches the consumer index, so the consumer may call it while the
// producer is live.
func (b *Buffer) Discard() { b.tail = b.head }
