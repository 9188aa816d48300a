package sim

import (
	"github.com/golang/glog"

	"walkduino-go/hw"
)

// Slave is a device on a simulated two-wire bus.
type Slave interface {
	// Start is called for each address phase (start or repeated start).
	// Returning false NACKs the address.
	Start(read bool) bool
	// Write receives one data byte; returning false NACKs it.
	Write(b byte) bool
	// Read supplies the next byte for the master.
	Read() byte
	// Stop ends the transaction.
	Stop()
}

// EventKind classifies a bus trace entry.
type EventKind uint8

const (
	EventStart EventKind = iota
	EventWrite
	EventRead
	EventNack
	EventStop
	EventFault
)

// Event is one entry of the bus trace.
type Event struct {
	Kind EventKind
	Addr uint8 // 7-bit address for EventStart
	Read bool  // direction for EventStart
	Data byte
}

type twiOp uint8

const (
	opNone twiOp = iota
	opAddress
	opWrite
	opRead
)

// TWI models the master half of a two-wire controller together with the
// devices on its bus. Each Step completes the byte-level action started by
// the last ADDR, DATA or CTRLC write.
type TWI struct {
	Name string

	ctrla, ctrlb, ctrlc, status, baud, addr, data Reg

	slaves  map[uint8]Slave
	flags   uint8 // RIF, WIF, RXACK, ARBLOST, BUSERR
	bus     uint8 // BUSSTATE field
	op      twiOp
	active  Slave
	reading bool
	fault   uint8 // injected ARBLOST or BUSERR for the next action
	busy    int   // steps until a foreign bus owner releases the bus
	trace   []Event

	regs hw.TWI
}

func NewTWI(name string) *TWI {
	t := &TWI{Name: name, slaves: make(map[uint8]Slave)}
	t.status.read = func() uint8 { return t.flags | t.bus }
	t.status.write = t.writeStatus
	t.addr.write = t.writeAddr
	t.data.read = t.readData
	t.data.write = t.writeData
	t.ctrlc.write = t.writeCtrlC
	t.regs = hw.TWI{
		CTRLA:  &t.ctrla,
		CTRLB:  &t.ctrlb,
		CTRLC:  &t.ctrlc,
		STATUS: &t.status,
		BAUD:   &t.baud,
		ADDR:   &t.addr,
		DATA:   &t.data,
	}
	return t
}

// Registers returns the register block the drivers program.
func (t *TWI) Registers() *hw.TWI { return &t.regs }

// Connect attaches the bus to c and installs the master interrupt vector.
func (t *TWI) Connect(c *Core, handler func()) {
	c.Attach(t)
	c.Connect(t.Name+".TWIM", t.Pending, handler)
}

// Add places a slave at a 7-bit address.
func (t *TWI) Add(addr uint8, s Slave) { t.slaves[addr&0x7F] = s }

// Remove takes the slave at addr off the bus.
func (t *TWI) Remove(addr uint8) { delete(t.slaves, addr&0x7F) }

// Fail makes the next byte-level action fail. Pass hw.TWI_MASTER_ARBLOST to
// model another master winning arbitration or hw.TWI_MASTER_BUSERR for an
// illegal bus condition.
func (t *TWI) Fail(flag uint8) {
	t.fault = flag & (hw.TWI_MASTER_ARBLOST | hw.TWI_MASTER_BUSERR)
}

// Trace returns a copy of the bus events so far.
func (t *TWI) Trace() []Event { return append([]Event(nil), t.trace...) }

// Written returns every data byte the master clocked out, in order.
func (t *TWI) Written() []byte {
	var out []byte
	for _, e := range t.trace {
		if e.Kind == EventWrite {
			out = append(out, e.Data)
		}
	}
	return out
}

// ResetTrace clears the event trace.
func (t *TWI) ResetTrace() { t.trace = t.trace[:0] }

func (t *TWI) enabled() bool { return t.ctrla.v&hw.TWI_MASTER_ENABLE != 0 }

func (t *TWI) log(e Event) {
	t.trace = append(t.trace, e)
	if glog.V(2) {
		glog.Infof("sim: %s event kind=%d addr=%#02x read=%v data=%#02x", t.Name, e.Kind, e.Addr, e.Read, e.Data)
	}
}

func (t *TWI) writeStatus(v uint8) {
	t.flags &^= v & (hw.TWI_MASTER_RIF | hw.TWI_MASTER_WIF | hw.TWI_MASTER_ARBLOST | hw.TWI_MASTER_BUSERR)
	if v&hw.TWI_MASTER_BUSSTATE_gm == hw.TWI_MASTER_BUSSTATE_IDLE && t.enabled() {
		t.bus = hw.TWI_MASTER_BUSSTATE_IDLE
	}
}

func (t *TWI) writeAddr(v uint8) {
	t.addr.v = v
	if !t.enabled() || t.bus == hw.TWI_MASTER_BUSSTATE_BUSY {
		return
	}
	t.bus = hw.TWI_MASTER_BUSSTATE_OWNER
	t.flags &^= hw.TWI_MASTER_RIF | hw.TWI_MASTER_WIF | hw.TWI_MASTER_RXACK
	t.op = opAddress
}

func (t *TWI) readData() uint8 {
	t.flags &^= hw.TWI_MASTER_RIF
	return t.data.v
}

func (t *TWI) writeData(v uint8) {
	t.data.v = v
	if t.bus != hw.TWI_MASTER_BUSSTATE_OWNER || t.reading {
		return
	}
	t.flags &^= hw.TWI_MASTER_WIF
	t.op = opWrite
}

func (t *TWI) writeCtrlC(v uint8) {
	t.ctrlc.v = v & hw.TWI_MASTER_ACKACT
	switch v & hw.TWI_MASTER_CMD_gm {
	case hw.TWI_MASTER_CMD_REPSTART:
		t.writeAddr(t.addr.v)
	case hw.TWI_MASTER_CMD_RECVTRANS:
		if t.reading {
			t.flags &^= hw.TWI_MASTER_RIF
			t.op = opRead
		}
	case hw.TWI_MASTER_CMD_STOP:
		t.stop()
	}
}

func (t *TWI) stop() {
	if t.active != nil {
		t.active.Stop()
	}
	t.active = nil
	t.reading = false
	t.op = opNone
	t.flags &^= hw.TWI_MASTER_RIF | hw.TWI_MASTER_WIF
	if t.bus == hw.TWI_MASTER_BUSSTATE_OWNER {
		t.bus = hw.TWI_MASTER_BUSSTATE_IDLE
	}
	t.log(Event{Kind: EventStop})
}

// Pending reports whether the master interrupt vector would be taken.
func (t *TWI) Pending() bool {
	a := t.ctrla.v
	if a&hw.TWI_MASTER_INTLVL_gm == 0 || !t.enabled() {
		return false
	}
	return (t.flags&hw.TWI_MASTER_WIF != 0 && a&hw.TWI_MASTER_WIEN != 0) ||
		(t.flags&hw.TWI_MASTER_RIF != 0 && a&hw.TWI_MASTER_RIEN != 0)
}

func (t *TWI) Tick() {
	if t.busy > 0 {
		t.busy--
		if t.busy == 0 {
			t.bus = hw.TWI_MASTER_BUSSTATE_IDLE
		}
	}
	op := t.op
	if op == opNone {
		return
	}
	t.op = opNone
	if t.fault != 0 {
		// Losing the bus ends our transaction; the other party holds it a
		// little longer before the bus reads idle again.
		t.flags |= t.fault | hw.TWI_MASTER_WIF
		t.log(Event{Kind: EventFault, Data: t.fault})
		t.fault = 0
		if t.active != nil {
			t.active.Stop()
			t.active = nil
		}
		t.reading = false
		t.bus = hw.TWI_MASTER_BUSSTATE_BUSY
		t.busy = 2
		return
	}

	switch op {
	case opAddress:
		a := t.addr.v >> 1
		read := t.addr.v&1 != 0
		t.log(Event{Kind: EventStart, Addr: a, Read: read})
		s := t.slaves[a]
		if s == nil || !s.Start(read) {
			t.log(Event{Kind: EventNack, Addr: a})
			t.active = nil
			t.flags |= hw.TWI_MASTER_WIF | hw.TWI_MASTER_RXACK
			return
		}
		t.active = s
		t.reading = read
		if read {
			t.data.v = s.Read()
			t.log(Event{Kind: EventRead, Data: t.data.v})
			t.flags |= hw.TWI_MASTER_RIF
			return
		}
		t.flags &^= hw.TWI_MASTER_RXACK
		t.flags |= hw.TWI_MASTER_WIF

	case opWrite:
		b := t.data.v
		t.log(Event{Kind: EventWrite, Data: b})
		ack := t.active != nil && t.active.Write(b)
		t.flags |= hw.TWI_MASTER_WIF
		if ack {
			t.flags &^= hw.TWI_MASTER_RXACK
		} else {
			t.flags |= hw.TWI_MASTER_RXACK
			t.log(Event{Kind: EventNack})
		}

	case opRead:
		if t.active == nil {
			return
		}
		t.data.v = t.active.Read()
		t.log(Event{Kind: EventRead, Data: t.data.v})
		t.flags |= hw.TWI_MASTER_RIF
	}
}

// BusState returns the BUSSTATE field.
func (t *TWI) BusState() uint8 { return t.bus }
