// Package serial is the interrupt-driven, ring-buffered USART transport.
//
// A Channel owns one receive and one transmit ring. The receive-complete
// handler fills the receive ring; the data-register-empty handler drains the
// transmit ring. Main-line calls touch the rings only with interrupts masked.
//
// Blocking calls (WriteByte on a full ring, Flush, End) busy-wait. When
// interrupts are off at entry, WriteByte cannot rely on the handlers and
// replays them itself through Service, the same function a board may call
// from a polling loop instead of wiring the vectors.
//
// Receive overflow is silent: once the ring is full new bytes are dropped.
// Wire RTS to let the remote pause before that happens.
package serial

import (
	"walkduino-go/errcode"
	"walkduino-go/hw"
	"walkduino-go/irq"
	"walkduino-go/types"
	"walkduino-go/x/ringbuf"
)

// DefaultClockHz is the peripheral clock assumed when Config leaves it zero.
const DefaultClockHz = 32000000

// Pins binds a Channel to its port pins. RTS and CTS are optional.
type Pins struct {
	RX, TX hw.Pin

	// RTS is driven high to ask the remote to stop sending.
	RTS hw.Pin
	// CTS is sampled before each byte; high means the remote cannot take data.
	CTS hw.Pin

	// Remap, when non-zero, is OR-ed into the port REMAP register before the
	// pins are configured.
	Remap uint8
}

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Name labels the channel in Info. Default "serial".
	Name string
	// ClockHz is the peripheral clock. Default 32 MHz.
	ClockHz uint32
	// BufferSize is the ring size per direction. Default ringbuf.Size.
	BufferSize int
}

// Channel is one buffered serial port.
type Channel struct {
	cpu  irq.CPU
	regs *hw.USART
	pins Pins
	cfg  Config

	rx *ringbuf.Buffer
	tx *ringbuf.Buffer

	// transmitting is set by every write and cleared by Flush once the
	// hardware reports the last frame complete.
	transmitting bool

	baud   uint32
	format Format
}

// New creates a channel for the USART at regs. It does not touch the
// hardware; call Begin.
func New(cpu irq.CPU, regs *hw.USART, pins Pins, cfgs ...Config) *Channel {
	var cfg Config
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	if cfg.Name == "" {
		cfg.Name = "serial"
	}
	if cfg.ClockHz == 0 {
		cfg.ClockHz = DefaultClockHz
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = ringbuf.Size
	}
	return &Channel{
		cpu:  cpu,
		regs: regs,
		pins: pins,
		cfg:  cfg,
		rx:   ringbuf.New(cfg.BufferSize),
		tx:   ringbuf.New(cfg.BufferSize),
	}
}

// Begin programs the port for baud and format and enables the receiver and
// transmitter. Only the receive interrupt is enabled; the transmit interrupt
// follows the first write. Both rings are emptied.
func (c *Channel) Begin(baud uint32, format Format) error {
	if c.regs == nil || !c.pins.TX.Valid() || !c.pins.RX.Valid() {
		return errcode.Wrap("serial.begin", errcode.UnknownPort)
	}
	double := DoubleSpeed(baud)
	setting, ok := ResolveBaud(c.cfg.ClockHz, baud, double)
	if !ok {
		return errcode.Wrap("serial.begin", errcode.UnsupportedBaud)
	}
	var u2x uint8
	if double {
		u2x = hw.USART_CLK2X
	}

	st := c.cpu.Disable()
	c.transmitting = false
	c.rx.Reset()
	c.tx.Reset()

	if c.pins.Remap != 0 {
		c.pins.TX.Port.REMAP.SetBits(c.pins.Remap)
	}
	// The TX line idles high; drive it before the transmitter takes over.
	c.pins.TX.Configure(hw.PORT_OPC_TOTEM)
	c.pins.TX.High()
	c.pins.TX.Output()
	c.pins.RX.Configure(hw.PORT_OPC_TOTEM)
	c.pins.RX.Low()
	c.pins.RX.Input()
	c.initFlow()

	c.regs.CTRLB.Set(u2x)
	c.regs.CTRLC.Set(uint8(format) &^ hw.USART_CMODE_gm)
	c.regs.SetBaud(setting)
	c.regs.CTRLB.Set(u2x | hw.USART_RXEN | hw.USART_TXEN)
	c.regs.CTRLA.Set(hw.USART_RXCINTLVL_HI)
	c.baud = baud
	c.format = format
	c.cpu.Restore(st)
	return nil
}

// End drains the transmit ring when interrupts are on, then disables the port
// and drops any unread input. It is a no-op on a channel without registers.
func (c *Channel) End() {
	if c.regs == nil {
		return
	}
	if c.cpu.Enabled() {
		for !c.txEmpty() {
			c.cpu.Idle()
		}
	}
	st := c.cpu.Disable()
	c.regs.CTRLB.Set(0)
	c.regs.CTRLA.Set(0)
	c.disarmCTS()
	c.rx.Discard()
	c.baud = 0
	c.cpu.Restore(st)
}

func (c *Channel) txEmpty() bool {
	st := c.cpu.Disable()
	empty := c.tx.Empty()
	c.cpu.Restore(st)
	return empty
}

// Available returns the number of buffered input bytes.
func (c *Channel) Available() int {
	st := c.cpu.Disable()
	n := c.rx.Len()
	c.cpu.Restore(st)
	return n
}

// Peek returns the next input byte without consuming it.
func (c *Channel) Peek() (byte, error) {
	st := c.cpu.Disable()
	b, ok := c.rx.Peek()
	c.cpu.Restore(st)
	if !ok {
		return 0, errcode.BufferEmpty
	}
	return b, nil
}

// ReadByte pops one input byte, or returns errcode.BufferEmpty. Every call
// also releases RTS if the ring has room again.
func (c *Channel) ReadByte() (byte, error) {
	st := c.cpu.Disable()
	c.releaseRTS()
	b, ok := c.rx.Take()
	c.cpu.Restore(st)
	if !ok {
		return 0, errcode.BufferEmpty
	}
	return b, nil
}

// Read copies buffered input into p without waiting. It returns
// errcode.BufferEmpty when nothing is buffered.
func (c *Channel) Read(p []byte) (int, error) {
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

// WriteByte queues v for transmission, blocking while the transmit ring is
// full. It fails only on a channel without registers.
func (c *Channel) WriteByte(v byte) error {
	if c.regs == nil {
		return errcode.Wrap("serial.write", errcode.UnknownPort)
	}
	st := c.cpu.Disable()
	if c.tx.Full() {
		if st.On() {
			c.regs.CTRLA.Set(hw.USART_RXCINTLVL_HI | hw.USART_DREINTLVL_HI)
		}
		for c.tx.Full() {
			if st.On() {
				// Open a window for the data-register-empty handler.
				c.cpu.Restore(st)
				c.cpu.Idle()
				c.cpu.Disable()
			} else {
				// No handler can run: poll the status register and run
				// its logic here.
				c.cpu.Idle()
				c.Service()
			}
		}
	}
	c.tx.Store(v)
	c.regs.CTRLA.Set(hw.USART_RXCINTLVL_HI | hw.USART_DREINTLVL_HI)
	c.transmitting = true
	c.regs.STATUS.Set(hw.USART_TXCIF)
	c.cpu.Restore(st)
	return nil
}

// Write queues every byte of p. It blocks the same way WriteByte does.
func (c *Channel) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := c.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// WriteString is Write for strings.
func (c *Channel) WriteString(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		if err := c.WriteByte(s[i]); err != nil {
			return i, err
		}
	}
	return len(s), nil
}

// Flush waits until every queued byte has left the wire.
func (c *Channel) Flush() {
	if c.regs == nil {
		return
	}
	for c.transmitting && !c.regs.STATUS.HasBits(hw.USART_TXCIF) {
		c.cpu.Idle()
	}
	c.transmitting = false
}

// Service runs whichever handler the status register calls for. It is the
// single entry point for driving the port by polling, and WriteByte uses it
// when interrupts are masked.
func (c *Channel) Service() {
	if c.regs == nil {
		return
	}
	status := c.regs.STATUS.Get()
	if status&hw.USART_RXCIF != 0 {
		c.HandleRXC()
		c.regs.STATUS.Set(hw.USART_RXCIF)
	}
	if status&hw.USART_DREIF != 0 {
		c.HandleDRE()
		c.regs.STATUS.Set(hw.USART_DREIF)
	}
}

// HandleRXC is the receive-complete interrupt handler.
func (c *Channel) HandleRXC() {
	c.holdRTS()
	status := c.regs.STATUS.Get()
	// Always read DATA so a stale byte does not stay in the register.
	b := c.regs.DATA.Get()
	if status&hw.USART_RXCIF != 0 {
		c.rx.Store(b)
	}
}

// HandleDRE is the data-register-empty interrupt handler.
func (c *Channel) HandleDRE() {
	stopped := c.ctsStop()
	if stopped || c.tx.Empty() {
		if stopped {
			c.armCTS()
		}
		c.regs.CTRLA.Set(hw.USART_RXCINTLVL_HI)
		return
	}
	b, _ := c.tx.Take()
	c.regs.DATA.Set(b)
}

// Baud returns the configured rate, or zero before Begin.
func (c *Channel) Baud() uint32 { return c.baud }

// Info describes the channel.
func (c *Channel) Info() types.SerialInfo {
	return types.SerialInfo{
		Port:   c.cfg.Name,
		Baud:   c.baud,
		Format: c.format.String(),
		RTSCTS: c.pins.RTS.Valid() || c.pins.CTS.Valid(),
	}
}
