package sim

import (
	"walkduino-go/hw"
)

// Port models one 8-pin I/O port: direction and output latches, pull-ups,
// externally driven inputs and edge detection onto the INT1 line.
type Port struct {
	Name string

	dir, out, in, intctrl, int1mask, intflags, remap Reg

	pinctrl [8]Reg

	driven uint8 // inputs driven from outside
	ext    uint8 // levels of the driven inputs

	regs hw.Port
}

// NewPort returns a port with every pin an undriven input.
func NewPort(name string) *Port {
	p := &Port{Name: name}
	p.in.read = p.levels
	p.in.write = func(uint8) {}
	p.intflags.write = func(v uint8) { p.intflags.v &^= v }
	p.regs = hw.Port{
		DIR:      &p.dir,
		OUT:      &p.out,
		IN:       &p.in,
		INTCTRL:  &p.intctrl,
		INT1MASK: &p.int1mask,
		INTFLAGS: &p.intflags,
		REMAP:    &p.remap,
	}
	for i := range p.pinctrl {
		p.regs.PINCTRL[i] = &p.pinctrl[i]
	}
	return p
}

// Registers returns the register block the drivers program.
func (p *Port) Registers() *hw.Port { return &p.regs }

// Pin returns a binding for pin i of this port.
func (p *Port) Pin(i uint8) hw.Pin { return hw.Pin{Port: &p.regs, Index: i} }

func (p *Port) level(i uint8) bool {
	m := uint8(1) << i
	switch {
	case p.dir.v&m != 0:
		return p.out.v&m != 0
	case p.driven&m != 0:
		return p.ext&m != 0
	default:
		opc := p.pinctrl[i].v & hw.PORT_OPC_gm
		return opc == hw.PORT_OPC_PULLUP || opc == hw.PORT_OPC_WIREDANDPULL
	}
}

func (p *Port) levels() uint8 {
	var v uint8
	for i := uint8(0); i < 8; i++ {
		if p.level(i) {
			v |= 1 << i
		}
	}
	return v
}

// Level returns the electrical level of pin i as seen on the wire.
func (p *Port) Level(i uint8) bool { return p.level(i) }

// Drive makes an external device hold input i at level. An edge on a pin
// routed to INT1 raises the INT1 flag according to the pin's sense config.
func (p *Port) Drive(i uint8, level bool) {
	old := p.level(i)
	m := uint8(1) << i
	p.driven |= m
	if level {
		p.ext |= m
	} else {
		p.ext &^= m
	}
	p.edge(i, old, p.level(i))
}

// Release stops driving input i; it falls back to its pull configuration.
func (p *Port) Release(i uint8) {
	old := p.level(i)
	p.driven &^= 1 << i
	p.edge(i, old, p.level(i))
}

func (p *Port) edge(i uint8, old, now bool) {
	if old == now || p.int1mask.v&(1<<i) == 0 {
		return
	}
	var want bool
	switch p.pinctrl[i].v & hw.PORT_ISC_gm {
	case hw.PORT_ISC_BOTHEDGES:
		want = true
	case hw.PORT_ISC_RISING:
		want = now
	case hw.PORT_ISC_FALLING:
		want = !now
	}
	if want {
		p.intflags.v |= hw.PORT_INT1IF
	}
}

// INT1Pending reports whether the INT1 vector would be taken.
func (p *Port) INT1Pending() bool {
	return p.intflags.v&hw.PORT_INT1IF != 0 && p.intctrl.v&hw.PORT_INT1LVL_gm != 0
}

// ConnectINT1 routes the port's INT1 vector to handler. Like the hardware,
// taking the vector clears the flag.
func (p *Port) ConnectINT1(c *Core, handler func()) {
	c.Connect(p.Name+".INT1", p.INT1Pending, func() {
		p.intflags.v &^= hw.PORT_INT1IF
		handler()
	})
}
