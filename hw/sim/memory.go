package sim

// Memory is a register-file slave, the shape of most small sensors and
// EEPROMs: the first byte of a write phase selects the register pointer, the
// following bytes store with auto-increment, and reads return consecutive
// registers from the pointer.
type Memory struct {
	Regs [256]byte

	// NackAt makes the slave NACK the data byte with this 1-based index within
	// each write phase. Zero never NACKs.
	NackAt int
	// OnWrite, when set, runs after a register is stored.
	OnWrite func(reg, v byte)

	ptr      byte
	selected bool
	n        int
	starts   int
	stops    int
}

func (m *Memory) Start(read bool) bool {
	m.starts++
	if !read {
		m.selected = false
		m.n = 0
	}
	return true
}

func (m *Memory) Write(b byte) bool {
	m.n++
	if m.NackAt > 0 && m.n >= m.NackAt {
		return false
	}
	if !m.selected {
		m.ptr = b
		m.selected = true
		return true
	}
	reg := m.ptr
	m.Regs[reg] = b
	m.ptr++
	if m.OnWrite != nil {
		m.OnWrite(reg, b)
	}
	return true
}

func (m *Memory) Read() byte {
	b := m.Regs[m.ptr]
	m.ptr++
	return b
}

func (m *Memory) Stop() { m.stops++ }

// Pointer returns the current register pointer.
func (m *Memory) Pointer() byte { return m.ptr }

// Starts and Stops count address phases and stop conditions seen.
func (m *Memory) Starts() int { return m.starts }
func (m *Memory) Stops() int  { return m.stops }
