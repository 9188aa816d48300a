package sim

// Reg is a simulated 8-bit register. Peripherals install read and write hooks
// to model side effects such as write-one-to-clear flags or data FIFOs; a Reg
// without hooks behaves like plain memory.
type Reg struct {
	v     uint8
	read  func() uint8
	write func(v uint8)
}

func (r *Reg) Get() uint8 {
	if r.read != nil {
		return r.read()
	}
	return r.v
}

func (r *Reg) Set(v uint8) {
	if r.write != nil {
		r.write(v)
		return
	}
	r.v = v
}

func (r *Reg) SetBits(v uint8) { r.Set(r.Get() | v) }

func (r *Reg) ClearBits(v uint8) { r.Set(r.Get() &^ v) }

func (r *Reg) HasBits(v uint8) bool { return r.Get()&v != 0 }

// Value returns the stored byte without running the read hook.
func (r *Reg) Value() uint8 { return r.v }
