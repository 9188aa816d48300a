// Package twi is the interrupt-driven two-wire (I2C) bus master.
//
// A transaction is composed on the main line and started by a single write to
// the address register; from then on HandleMaster, the bus interrupt handler,
// is the only code that advances it:
//
//	c.BeginTransmission(0x50)
//	c.Write([]byte{0x01, 0x02})
//	c.EndTransmission(0)        // starts the write, returns immediately
//
//	c.RequestFrom(0x50, 4)
//	n := c.Available()          // busy-waits until the read is done
//
// Only one transaction is in flight per controller. BeginTransmission and
// RequestFrom wait for the bus to read idle before starting a new one. None
// of the waits time out.
package twi

import (
	"walkduino-go/errcode"
	"walkduino-go/hw"
	"walkduino-go/irq"
	"walkduino-go/types"
	"walkduino-go/x/mathx"
)

// DefaultBufferSize is the send and receive capacity used by BeginMaster
// callers that pass zero.
const DefaultBufferSize = 32

// DefaultClockHz is the peripheral clock assumed when Config leaves it zero.
const DefaultClockHz = 32000000

// Speed selects the bus clock.
type Speed uint8

const (
	Speed100k Speed = 1
	Speed400k Speed = 2
)

// Hz returns the bus clock rate, or zero for an unknown speed.
func (s Speed) Hz() uint32 {
	switch s {
	case Speed100k:
		return 100000
	case Speed400k:
		return 400000
	}
	return 0
}

// Port names the physical controller.
type Port uint8

const (
	PortNA Port = 0
	PortC  Port = 3
	PortD  Port = 4
	PortE  Port = 5
	PortF  Port = 6
)

func (p Port) String() string {
	switch p {
	case PortC:
		return "TWIC"
	case PortD:
		return "TWID"
	case PortE:
		return "TWIE"
	case PortF:
		return "TWIF"
	}
	return "NA"
}

// State is the transaction phase.
type State uint8

const (
	StateIdle State = iota
	StateAddressPending
	StateWritingData
	StateRepeatedStart
	StateReadingData
	StateArbitrationLost
	StateBusError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAddressPending:
		return "address_pending"
	case StateWritingData:
		return "writing_data"
	case StateRepeatedStart:
		return "repeated_start"
	case StateReadingData:
		return "reading_data"
	case StateArbitrationLost:
		return "arbitration_lost"
	case StateBusError:
		return "bus_error"
	}
	return "unknown"
}

// Pins are the bus lines; both are set to wired-AND with pull-up at Begin.
type Pins struct {
	SDA, SCL hw.Pin
}

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// ClockHz is the peripheral clock. Default 32 MHz.
	ClockHz uint32
	// Alloc provides buffer storage at Begin and returns nil when memory is
	// exhausted. Default allocates from the heap.
	Alloc func(n int) []byte
}

// Controller is one two-wire bus master.
type Controller struct {
	cpu  irq.CPU
	port Port
	regs *hw.TWI
	pins Pins
	cfg  Config

	send buffer
	recv buffer

	// Shared with HandleMaster; main-line access holds the interrupt mask.
	slaveAddress  uint8 // 7-bit address << 1 | R/W
	slaveReadSize int   // bytes still expected in the read phase
	result        errcode.Code
	state         State

	writeErr error
	speed    Speed
	address  uint8
}

// New creates a controller for the TWI master at regs. It does not touch the
// hardware; call Begin.
func New(cpu irq.CPU, port Port, regs *hw.TWI, pins Pins, cfgs ...Config) *Controller {
	var cfg Config
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	if cfg.ClockHz == 0 {
		cfg.ClockHz = DefaultClockHz
	}
	if cfg.Alloc == nil {
		cfg.Alloc = func(n int) []byte { return make([]byte, n) }
	}
	return &Controller{cpu: cpu, port: port, regs: regs, pins: pins, cfg: cfg, result: errcode.OK}
}

// Begin validates the configuration, allocates bufferSize bytes for each of
// the send and receive buffers, programs the bus clock and enables the master
// with its interrupts. address is the controller's own address; only master
// operation (address 0) is implemented.
func (c *Controller) Begin(address uint8, speed Speed, bufferSize int) error {
	const op = "twi.begin"
	switch {
	case c.port == PortNA || c.regs == nil:
		return errcode.Wrap(op, errcode.UnknownPort)
	case speed.Hz() == 0:
		return errcode.Wrap(op, errcode.InvalidSpeed)
	case bufferSize <= 0:
		return errcode.Wrap(op, errcode.InvalidBufferSize)
	case address > 127:
		return errcode.Wrap(op, errcode.InvalidAddress)
	case address != 0:
		return errcode.Wrap(op, errcode.Unsupported)
	}
	send := c.cfg.Alloc(bufferSize)
	recv := c.cfg.Alloc(bufferSize)
	if len(send) < bufferSize || len(recv) < bufferSize {
		return errcode.Wrap(op, errcode.OutOfMemory)
	}

	st := c.cpu.Disable()
	c.send = buffer{data: send[:bufferSize]}
	c.recv = buffer{data: recv[:bufferSize]}
	c.send.clear()
	c.recv.clear()

	if c.pins.SDA.Valid() {
		c.pins.SDA.Configure(hw.PORT_OPC_WIREDANDPULL)
	}
	if c.pins.SCL.Valid() {
		c.pins.SCL.Configure(hw.PORT_OPC_WIREDANDPULL)
	}
	c.regs.BAUD.Set(baudFor(c.cfg.ClockHz, speed))
	c.regs.CTRLA.Set(hw.TWI_MASTER_INTLVL_LO | hw.TWI_MASTER_RIEN | hw.TWI_MASTER_WIEN | hw.TWI_MASTER_ENABLE)
	c.regs.STATUS.Set(hw.TWI_MASTER_BUSSTATE_IDLE)

	c.result = errcode.OK
	c.state = StateIdle
	c.slaveAddress = 0
	c.slaveReadSize = 0
	c.speed = speed
	c.address = address
	c.cpu.Restore(st)
	return nil
}

// BeginMaster is Begin for master-only use. A bufferSize of zero selects
// DefaultBufferSize.
func (c *Controller) BeginMaster(speed Speed, bufferSize int) error {
	if bufferSize == 0 {
		bufferSize = DefaultBufferSize
	}
	return c.Begin(0, speed, bufferSize)
}

// baudFor computes the master BAUD register: clk/(2*speed) - 5.
func baudFor(clockHz uint32, speed Speed) uint8 {
	v := int64(clockHz)/(2*int64(speed.Hz())) - 5
	return mathx.U8(v)
}

// Ready reports whether the bus reads idle.
func (c *Controller) Ready() bool {
	return c.regs.STATUS.Get()&hw.TWI_MASTER_BUSSTATE_gm == hw.TWI_MASTER_BUSSTATE_IDLE
}

func (c *Controller) waitReady() {
	for !c.Ready() {
		c.cpu.Idle()
	}
}

func validAddress(addr uint8) bool { return mathx.Between(addr, 1, 127) }

// BeginTransmission waits for the bus, then starts composing a write to the
// 7-bit address addr.
func (c *Controller) BeginTransmission(addr uint8) error {
	c.waitReady()
	if !validAddress(addr) {
		return errcode.Wrap("twi.begin_transmission", errcode.InvalidAddress)
	}
	st := c.cpu.Disable()
	c.slaveAddress = addr << 1
	c.send.clear()
	c.cpu.Restore(st)
	return nil
}

// Write appends p to the send buffer. Without a transmission in progress, or
// when p does not fit, nothing is appended, the condition is recorded (see
// WriteError) and zero is returned.
func (c *Controller) Write(p []byte) (int, error) {
	if err := c.queue(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteByte appends one byte; see Write.
func (c *Controller) WriteByte(b byte) error { return c.queue([]byte{b}) }

func (c *Controller) queue(p []byte) error {
	st := c.cpu.Disable()
	defer c.cpu.Restore(st)
	switch {
	case c.slaveAddress == 0:
		c.writeErr = errcode.WriteNotStarted
	case !c.send.put(p):
		c.writeErr = errcode.OutOfMemory
	default:
		return nil
	}
	return c.writeErr
}

// WriteError returns the last condition recorded by Write.
func (c *Controller) WriteError() error { return c.writeErr }

// ClearWriteError forgets the recorded write condition.
func (c *Controller) ClearWriteError() { c.writeErr = nil }

// EndTransmission starts the composed write. When expected is positive the
// write is followed by a repeated start and a read of that many bytes. The
// call returns as soon as the address is on its way; the outcome is reported
// by TransmissionResult.
func (c *Controller) EndTransmission(expected int) error {
	const op = "twi.end_transmission"
	if c.slaveAddress == 0 {
		return errcode.Wrap(op, errcode.NotTransmitting)
	}
	if expected < 0 || expected > c.recv.size() {
		return errcode.Wrap(op, errcode.OutOfMemory)
	}
	st := c.cpu.Disable()
	c.send.flip()
	c.recv.clear()
	c.slaveReadSize = expected
	c.result = errcode.OK
	c.state = StateAddressPending
	c.regs.ADDR.Set(c.slaveAddress)
	c.cpu.Restore(st)
	return nil
}

// RequestFrom waits for the bus, then starts reading expected bytes from the
// 7-bit address addr. It returns immediately; use Available to wait.
func (c *Controller) RequestFrom(addr uint8, expected int) error {
	const op = "twi.request_from"
	c.waitReady()
	if !validAddress(addr) {
		return errcode.Wrap(op, errcode.InvalidAddress)
	}
	if expected <= 0 || expected > c.recv.size() {
		return errcode.Wrap(op, errcode.OutOfMemory)
	}
	st := c.cpu.Disable()
	c.send.clear()
	c.recv.clear()
	c.slaveReadSize = expected
	c.result = errcode.OK
	c.slaveAddress = addr<<1 | 1
	c.state = StateAddressPending
	c.regs.ADDR.Set(c.slaveAddress)
	c.cpu.Restore(st)
	return nil
}

func (c *Controller) expecting() int {
	st := c.cpu.Disable()
	n := c.slaveReadSize
	c.cpu.Restore(st)
	return n
}

// Available waits until the read phase has finished and returns the number of
// bytes ready to read.
func (c *Controller) Available() int {
	for c.expecting() > 0 {
		c.cpu.Idle()
	}
	st := c.cpu.Disable()
	n := c.recv.remaining()
	c.cpu.Restore(st)
	return n
}

// ReadByte pops one received byte, or returns errcode.BufferEmpty.
func (c *Controller) ReadByte() (byte, error) {
	st := c.cpu.Disable()
	b, ok := c.recv.get()
	c.cpu.Restore(st)
	if !ok {
		return 0, errcode.BufferEmpty
	}
	return b, nil
}

// Read copies received bytes into p without waiting.
func (c *Controller) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, err := c.ReadByte()
		if err != nil {
			break
		}
		p[n] = b
		n++
	}
	if n == 0 && len(p) > 0 {
		return 0, errcode.BufferEmpty
	}
	return n, nil
}

// Peek returns the next received byte without consuming it.
func (c *Controller) Peek() (byte, error) {
	st := c.cpu.Disable()
	b, ok := c.recv.peek()
	c.cpu.Restore(st)
	if !ok {
		return 0, errcode.BufferEmpty
	}
	return b, nil
}

// Flush discards everything in the receive buffer.
func (c *Controller) Flush() {
	st := c.cpu.Disable()
	c.recv.clear()
	c.cpu.Restore(st)
}

// TransmissionResult returns the outcome of the last transaction: nil on
// success, otherwise errcode.Nack, errcode.ArbitrationLost or
// errcode.BusError.
func (c *Controller) TransmissionResult() error {
	st := c.cpu.Disable()
	r := c.result
	c.cpu.Restore(st)
	if r == errcode.OK {
		return nil
	}
	return r
}

// State returns the current transaction phase.
func (c *Controller) State() State {
	st := c.cpu.Disable()
	s := c.state
	c.cpu.Restore(st)
	return s
}

// Info describes the controller.
func (c *Controller) Info() types.TWIInfo {
	return types.TWIInfo{Port: c.port.String(), SpeedHz: c.speed.Hz(), BufferSize: c.send.size()}
}

// HandleMaster is the master interrupt handler and the only code that moves a
// transaction forward once it has started.
func (c *Controller) HandleMaster() {
	status := c.regs.STATUS.Get()
	switch {
	case status&hw.TWI_MASTER_ARBLOST != 0:
		c.regs.STATUS.Set(hw.TWI_MASTER_ARBLOST | hw.TWI_MASTER_WIF)
		c.finish(errcode.ArbitrationLost, StateArbitrationLost)

	case status&hw.TWI_MASTER_BUSERR != 0:
		c.regs.STATUS.Set(hw.TWI_MASTER_BUSERR | hw.TWI_MASTER_WIF)
		c.finish(errcode.BusError, StateBusError)

	case status&hw.TWI_MASTER_WIF != 0:
		switch {
		case status&hw.TWI_MASTER_RXACK != 0:
			c.regs.CTRLC.Set(hw.TWI_MASTER_CMD_STOP)
			c.finish(errcode.Nack, StateIdle)
		case c.send.remaining() > 0:
			b, _ := c.send.get()
			c.state = StateWritingData
			c.regs.DATA.Set(b)
		case c.slaveReadSize > 0:
			c.state = StateRepeatedStart
			c.regs.ADDR.Set(c.slaveAddress | 1)
		default:
			c.regs.CTRLC.Set(hw.TWI_MASTER_CMD_STOP)
			c.finish(errcode.OK, StateIdle)
		}

	case status&hw.TWI_MASTER_RIF != 0:
		c.state = StateReadingData
		if c.slaveReadSize > 0 {
			c.recv.putByte(c.regs.DATA.Get())
			c.slaveReadSize--
		}
		if c.slaveReadSize > 0 {
			c.regs.CTRLC.Set(hw.TWI_MASTER_CMD_RECVTRANS)
		} else {
			c.regs.CTRLC.Set(hw.TWI_MASTER_ACKACT | hw.TWI_MASTER_CMD_STOP)
			c.finish(errcode.OK, StateIdle)
		}
	}
}

// finish records a terminal outcome. Whatever was received becomes readable
// and nothing more is expected, so Available returns instead of waiting on a
// transaction the bus has already ended.
func (c *Controller) finish(res errcode.Code, st State) {
	c.result = res
	c.state = st
	c.slaveReadSize = 0
	c.recv.flip()
}
