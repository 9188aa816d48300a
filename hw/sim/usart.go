package sim

import (
	"sync"

	"github.com/golang/glog"

	"walkduino-go/hw"
)

// rxDepth is the hardware receive FIFO depth.
const rxDepth = 2

// USART models one asynchronous serial port. One Step moves at most one
// character in each direction: the transmit shift register finishes its frame
// and the receiver takes the next character off the line.
//
// The far end of the line is driven with Feed and observed with Sent. Feed is
// safe to call from another goroutine; everything else belongs to the
// goroutine running the Core.
type USART struct {
	Name string

	// Hold, when set, is consulted before each incoming character; while it
	// returns true the remote sender keeps the character back. Wire it to the
	// level of the RTS output to model a remote that honours flow control.
	Hold func() bool

	// OnSend is called for every character leaving the transmitter.
	OnSend func(b byte)

	data, status, ctrla, ctrlb, ctrlc, baudA, baudB Reg

	rx       []byte
	txBuf    byte
	txFull   bool
	shift    byte
	shifting bool
	txc      bool
	ovf      bool
	overruns int

	mu   sync.Mutex
	line []byte // characters on their way in
	sent []byte // characters that left the TX pin

	regs hw.USART
}

func NewUSART(name string) *USART {
	u := &USART{Name: name}
	u.data.read = u.readData
	u.data.write = u.writeData
	u.status.read = u.readStatus
	u.status.write = u.writeStatus
	u.regs = hw.USART{
		DATA:      &u.data,
		STATUS:    &u.status,
		CTRLA:     &u.ctrla,
		CTRLB:     &u.ctrlb,
		CTRLC:     &u.ctrlc,
		BAUDCTRLA: &u.baudA,
		BAUDCTRLB: &u.baudB,
	}
	return u
}

// Registers returns the register block the drivers program.
func (u *USART) Registers() *hw.USART { return &u.regs }

// Connect attaches the port to c and installs its receive-complete and
// data-register-empty vectors.
func (u *USART) Connect(c *Core, rxc, dre func()) {
	c.Attach(u)
	if rxc != nil {
		c.Connect(u.Name+".RXC", u.RXCPending, rxc)
	}
	if dre != nil {
		c.Connect(u.Name+".DRE", u.DREPending, dre)
	}
}

func (u *USART) readData() uint8 {
	if len(u.rx) == 0 {
		return u.data.v
	}
	b := u.rx[0]
	u.rx = u.rx[1:]
	u.data.v = b
	u.ovf = false
	return b
}

func (u *USART) writeData(v uint8) {
	if u.ctrlb.v&hw.USART_TXEN == 0 {
		return
	}
	switch {
	case !u.shifting:
		u.shift, u.shifting = v, true
	case !u.txFull:
		u.txBuf, u.txFull = v, true
	default:
		// Writing DATA while DREIF is clear overwrites the pending byte.
		u.txBuf = v
	}
}

func (u *USART) readStatus() uint8 {
	var s uint8
	if len(u.rx) > 0 {
		s |= hw.USART_RXCIF
	}
	if u.txc {
		s |= hw.USART_TXCIF
	}
	if !u.txFull {
		s |= hw.USART_DREIF
	}
	if u.ovf {
		s |= hw.USART_BUFOVF
	}
	return s
}

func (u *USART) writeStatus(v uint8) {
	if v&hw.USART_TXCIF != 0 {
		u.txc = false
	}
}

// RXCPending reports whether the receive-complete vector would be taken.
func (u *USART) RXCPending() bool {
	return len(u.rx) > 0 && u.ctrla.v&hw.USART_RXCINTLVL_gm != 0
}

// DREPending reports whether the data-register-empty vector would be taken.
func (u *USART) DREPending() bool {
	return !u.txFull && u.ctrla.v&hw.USART_DREINTLVL_gm != 0
}

func (u *USART) Tick() {
	if u.shifting {
		b := u.shift
		u.shifting = false
		if u.txFull {
			u.shift, u.shifting = u.txBuf, true
			u.txFull = false
		} else {
			u.txc = true
		}
		u.mu.Lock()
		u.sent = append(u.sent, b)
		u.mu.Unlock()
		if glog.V(2) {
			glog.Infof("sim: %s tx %#02x", u.Name, b)
		}
		if u.OnSend != nil {
			u.OnSend(b)
		}
	}

	if u.ctrlb.v&hw.USART_RXEN == 0 {
		return
	}
	if u.Hold != nil && u.Hold() {
		return
	}
	u.mu.Lock()
	if len(u.line) == 0 {
		u.mu.Unlock()
		return
	}
	b := u.line[0]
	u.line = u.line[1:]
	u.mu.Unlock()
	if len(u.rx) >= rxDepth {
		u.ovf = true
		u.overruns++
		glog.Warningf("sim: %s receiver overrun, dropped %#02x", u.Name, b)
		return
	}
	u.rx = append(u.rx, b)
	if glog.V(2) {
		glog.Infof("sim: %s rx %#02x", u.Name, b)
	}
}

// Feed queues characters sent by the remote end.
func (u *USART) Feed(p []byte) {
	u.mu.Lock()
	u.line = append(u.line, p...)
	u.mu.Unlock()
}

// Pending returns how many fed characters have not reached the receiver yet.
func (u *USART) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.line)
}

// Sent returns a copy of every character transmitted so far.
func (u *USART) Sent() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]byte(nil), u.sent...)
}

// TakeSent returns the transmitted characters and forgets them.
func (u *USART) TakeSent() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := u.sent
	u.sent = nil
	return out
}

// Overruns counts characters lost because the receive FIFO was full.
func (u *USART) Overruns() int { return u.overruns }

// Idle reports whether the transmitter has nothing queued or shifting.
func (u *USART) Idle() bool { return !u.shifting && !u.txFull }
