package twi

// buffer is a fill-then-drain byte buffer. After clear it accepts puts; flip
// switches it to draining what was put.
type buffer struct {
	data    []byte
	pos     int
	lim     int
	reading bool
}

func (b *buffer) size() int { return len(b.data) }

func (b *buffer) clear() {
	b.pos, b.lim, b.reading = 0, len(b.data), false
}

// put appends all of p or nothing.
func (b *buffer) put(p []byte) bool {
	if b.reading || len(p) > b.lim-b.pos {
		return false
	}
	b.pos += copy(b.data[b.pos:], p)
	return true
}

func (b *buffer) putByte(v byte) bool {
	if b.reading || b.pos >= b.lim {
		return false
	}
	b.data[b.pos] = v
	b.pos++
	return true
}

func (b *buffer) flip() {
	if b.reading {
		return
	}
	b.lim, b.pos, b.reading = b.pos, 0, true
}

// remaining is the number of bytes left to drain; zero while filling.
func (b *buffer) remaining() int {
	if !b.reading {
		return 0
	}
	return b.lim - b.pos
}

func (b *buffer) get() (byte, bool) {
	if b.remaining() == 0 {
		return 0, false
	}
	v := b.data[b.pos]
	b.pos++
	return v, true
}

func (b *buffer) peek() (byte, bool) {
	if b.remaining() == 0 {
		return 0, false
	}
	return b.data[b.pos], true
}
