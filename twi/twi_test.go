package twi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"walkduino-go/errcode"
	"walkduino-go/hw"
	"walkduino-go/hw/sim"
	"walkduino-go/irq"
)

type rig struct {
	core *sim.Core
	bus  *sim.TWI
	port *sim.Port
	c    *Controller
	mem  *sim.Memory
}

func newRig(t *testing.T, cfgs ...Config) *rig {
	t.Helper()
	r := &rig{
		core: sim.NewCore(),
		bus:  sim.NewTWI("TWIE"),
		port: sim.NewPort("PORTE"),
		mem:  &sim.Memory{},
	}
	r.c = New(r.core, PortE, r.bus.Registers(), Pins{SDA: r.port.Pin(0), SCL: r.port.Pin(1)}, cfgs...)
	r.bus.Connect(r.core, r.c.HandleMaster)
	r.bus.Add(0x50, r.mem)
	require.NoError(t, r.c.BeginMaster(Speed100k, 0))
	return r
}

// settle steps the core until the bus is idle again.
func (r *rig) settle(t *testing.T) {
	t.Helper()
	for i := 0; !r.c.Ready(); i++ {
		require.Less(t, i, 1000, "bus never went idle")
		r.core.Step()
	}
}

func TestBeginProgramsController(t *testing.T) {
	r := newRig(t)
	regs := r.bus.Registers()
	require.EqualValues(t, 155, regs.BAUD.Get())
	require.EqualValues(t, hw.TWI_MASTER_INTLVL_LO|hw.TWI_MASTER_RIEN|hw.TWI_MASTER_WIEN|hw.TWI_MASTER_ENABLE, regs.CTRLA.Get())
	require.True(t, r.c.Ready())
	require.EqualValues(t, hw.PORT_OPC_WIREDANDPULL, r.port.Registers().PINCTRL[0].Get())
	require.EqualValues(t, hw.PORT_OPC_WIREDANDPULL, r.port.Registers().PINCTRL[1].Get())
	require.Equal(t, DefaultBufferSize, r.c.Info().BufferSize)

	require.NoError(t, r.c.BeginMaster(Speed400k, 8))
	require.EqualValues(t, 35, regs.BAUD.Get())
}

func TestBeginValidation(t *testing.T) {
	core := sim.NewCore()
	bus := sim.NewTWI("TWIC")

	cases := []struct {
		name string
		c    *Controller
		addr uint8
		spd  Speed
		size int
		want errcode.Code
	}{
		{"no port", New(core, PortNA, bus.Registers(), Pins{}), 0, Speed100k, 8, errcode.UnknownPort},
		{"speed", New(core, PortC, bus.Registers(), Pins{}), 0, Speed(3), 8, errcode.InvalidSpeed},
		{"buffer", New(core, PortC, bus.Registers(), Pins{}), 0, Speed100k, 0, errcode.InvalidBufferSize},
		{"address", New(core, PortC, bus.Registers(), Pins{}), 200, Speed100k, 8, errcode.InvalidAddress},
		{"slave", New(core, PortC, bus.Registers(), Pins{}), 0x22, Speed100k, 8, errcode.Unsupported},
		{"alloc", New(core, PortC, bus.Registers(), Pins{}, Config{Alloc: func(int) []byte { return nil }}), 0, Speed100k, 8, errcode.OutOfMemory},
	}
	for _, tc := range cases {
		err := tc.c.Begin(tc.addr, tc.spd, tc.size)
		require.Truef(t, errors.Is(err, tc.want), "%s: err=%v want %v", tc.name, err, tc.want)
	}
}

func TestWriteTransaction(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.c.BeginTransmission(0x50))
	n, err := r.c.Write([]byte{0x01, 0x02})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, r.c.EndTransmission(0))
	require.False(t, r.c.Ready(), "address write should claim the bus")
	require.Equal(t, StateAddressPending, r.c.State())

	r.settle(t)
	require.NoError(t, r.c.TransmissionResult())
	require.Equal(t, []byte{0x01, 0x02}, r.bus.Written())
	require.Equal(t, StateIdle, r.c.State())
	require.Equal(t, byte(0x01), r.mem.Pointer()-1, "first byte selects the register")
	require.Equal(t, byte(0x02), r.mem.Regs[0x01])
}

func TestWriteNackStopsTransfer(t *testing.T) {
	r := newRig(t)
	r.mem.NackAt = 1

	require.NoError(t, r.c.BeginTransmission(0x50))
	_, err := r.c.Write([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	require.NoError(t, r.c.EndTransmission(0))
	r.settle(t)

	require.ErrorIs(t, r.c.TransmissionResult(), errcode.Nack)
	require.Equal(t, []byte{0x01}, r.bus.Written(), "no bytes after the NACK")
	require.Equal(t, 1, r.mem.Stops())
}

func TestAddressNack(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.c.RequestFrom(0x33, 2))
	require.Equal(t, 0, r.c.Available())
	r.settle(t)
	require.ErrorIs(t, r.c.TransmissionResult(), errcode.Nack)
}

func TestRequestFrom(t *testing.T) {
	r := newRig(t)
	copy(r.mem.Regs[:], []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x55})

	require.NoError(t, r.c.RequestFrom(0x50, 4))
	require.Equal(t, 4, r.c.Available())
	require.NoError(t, r.c.TransmissionResult())

	b, err := r.c.Peek()
	require.NoError(t, err)
	require.Equal(t, byte(0xDE), b)

	var got [4]byte
	n, err := r.c.Read(got[:])
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, [4]byte{0xDE, 0xAD, 0xBE, 0xEF}, got)

	_, err = r.c.ReadByte()
	require.ErrorIs(t, err, errcode.BufferEmpty)
	n, err = r.c.Read(got[:])
	require.Zero(t, n)
	require.ErrorIs(t, err, errcode.BufferEmpty)
	r.settle(t)
	require.Equal(t, 4, countKind(r.bus.Trace(), sim.EventRead))
}

func TestHandlerReadCountdown(t *testing.T) {
	// Drive the handler by hand: four read interrupts with a decreasing
	// expected count, no simulated slave involved.
	core := sim.NewCore()
	status, data, ctrlc := &fakeReg{}, &fakeReg{}, &fakeReg{}
	regs := &hw.TWI{CTRLA: &fakeReg{}, CTRLB: &fakeReg{}, CTRLC: ctrlc, STATUS: status, BAUD: &fakeReg{}, ADDR: &fakeReg{}, DATA: data}
	c := New(core, PortC, regs, Pins{})
	require.NoError(t, c.Begin(0, Speed400k, 8))
	status.v = hw.TWI_MASTER_BUSSTATE_IDLE
	require.NoError(t, c.RequestFrom(0x50, 4))

	for i := 0; i < 4; i++ {
		require.Equal(t, 4-i, c.slaveReadSize)
		status.v = hw.TWI_MASTER_RIF | hw.TWI_MASTER_BUSSTATE_OWNER
		data.v = byte(0x10 + i)
		c.HandleMaster()
		if i < 3 {
			require.EqualValues(t, hw.TWI_MASTER_CMD_RECVTRANS, ctrlc.v)
		}
	}
	require.EqualValues(t, hw.TWI_MASTER_ACKACT|hw.TWI_MASTER_CMD_STOP, ctrlc.v)
	require.Equal(t, 4, c.Available())
	require.NoError(t, c.TransmissionResult())
}

func TestWriteThenRepeatedStartRead(t *testing.T) {
	r := newRig(t)
	r.mem.Regs[0x10] = 0xA5
	r.mem.Regs[0x11] = 0x5A

	require.NoError(t, r.c.BeginTransmission(0x50))
	require.NoError(t, r.c.WriteByte(0x10))
	require.NoError(t, r.c.EndTransmission(2))
	require.Equal(t, 2, r.c.Available())

	var got [2]byte
	_, err := r.c.Read(got[:])
	require.NoError(t, err)
	require.Equal(t, [2]byte{0xA5, 0x5A}, got)

	var starts []bool
	for _, e := range r.bus.Trace() {
		if e.Kind == sim.EventStart {
			starts = append(starts, e.Read)
		}
	}
	require.Equal(t, []bool{false, true}, starts, "write phase then repeated start read")
}

func TestArbitrationLostAndBusError(t *testing.T) {
	for _, tc := range []struct {
		flag  uint8
		want  errcode.Code
		state State
	}{
		{hw.TWI_MASTER_ARBLOST, errcode.ArbitrationLost, StateArbitrationLost},
		{hw.TWI_MASTER_BUSERR, errcode.BusError, StateBusError},
	} {
		r := newRig(t)
		r.bus.Fail(tc.flag)
		require.NoError(t, r.c.RequestFrom(0x50, 3))
		require.Equal(t, 0, r.c.Available())
		require.ErrorIs(t, r.c.TransmissionResult(), tc.want)
		require.Equal(t, tc.state, r.c.State())

		// No retry: the next transaction is the caller's and goes through.
		r.settle(t)
		require.NoError(t, r.c.RequestFrom(0x50, 1))
		require.Equal(t, 1, r.c.Available())
		require.NoError(t, r.c.TransmissionResult())
	}
}

func TestWriteErrors(t *testing.T) {
	r := newRig(t, Config{})

	n, err := r.c.Write([]byte{1})
	require.Zero(t, n)
	require.ErrorIs(t, err, errcode.WriteNotStarted)
	require.ErrorIs(t, r.c.WriteError(), errcode.WriteNotStarted)
	r.c.ClearWriteError()
	require.NoError(t, r.c.WriteError())

	require.ErrorIs(t, r.c.EndTransmission(0), errcode.NotTransmitting)

	require.NoError(t, r.c.BeginTransmission(0x50))
	n, err = r.c.Write(make([]byte, DefaultBufferSize+1))
	require.Zero(t, n)
	require.ErrorIs(t, err, errcode.OutOfMemory)
	require.ErrorIs(t, r.c.EndTransmission(DefaultBufferSize+1), errcode.OutOfMemory)

	require.ErrorIs(t, r.c.BeginTransmission(0), errcode.InvalidAddress)
	require.ErrorIs(t, r.c.BeginTransmission(0x80), errcode.InvalidAddress)
	require.ErrorIs(t, r.c.RequestFrom(0x50, 0), errcode.OutOfMemory)
}

func TestWriteHoldsInterruptMask(t *testing.T) {
	core := sim.NewCore()
	cpu := &countingCPU{CPU: core}
	bus := sim.NewTWI("TWIE")
	c := New(cpu, PortE, bus.Registers(), Pins{})
	bus.Connect(core, c.HandleMaster)
	require.NoError(t, c.BeginMaster(Speed100k, 4))
	require.NoError(t, c.BeginTransmission(0x50))

	before := cpu.disables
	n, err := c.Write([]byte{1, 2})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, c.WriteByte(3))
	require.Equal(t, before+2, cpu.disables)
	require.True(t, cpu.Enabled(), "mask must be restored")
}

func TestFlushDiscardsReceived(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.c.RequestFrom(0x50, 3))
	require.Equal(t, 3, r.c.Available())
	r.c.Flush()
	_, err := r.c.ReadByte()
	require.ErrorIs(t, err, errcode.BufferEmpty)
}

func TestTxAdaptor(t *testing.T) {
	r := newRig(t)
	r.mem.Regs[0x20] = 0x99
	buf := make([]byte, 1)

	require.NoError(t, r.c.Tx(0x50, []byte{0x20}, buf))
	require.Equal(t, byte(0x99), buf[0])

	require.NoError(t, r.c.Tx(0x50, []byte{0x30, 0x42}, nil))
	require.Equal(t, byte(0x42), r.mem.Regs[0x30])

	r.mem.Regs[0x31] = 0x77
	require.NoError(t, r.c.Tx(0x50, nil, buf), "read continues at the register pointer")
	require.Equal(t, byte(0x77), buf[0])

	require.ErrorIs(t, r.c.Tx(0x51, []byte{1}, nil), errcode.Nack)
	require.ErrorIs(t, r.c.Tx(0x80, nil, buf), errcode.InvalidAddress)
	require.NoError(t, r.c.Tx(0x50, nil, nil))
}

func countKind(ev []sim.Event, k sim.EventKind) int {
	n := 0
	for _, e := range ev {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// countingCPU counts critical sections.
type countingCPU struct {
	irq.CPU
	disables int
}

func (c *countingCPU) Disable() irq.State {
	c.disables++
	return c.CPU.Disable()
}

// fakeReg is plain register memory.
type fakeReg struct{ v uint8 }

func (r *fakeReg) Get() uint8 { return r.v }
func (r *fakeReg) Set(v uint8) { r.v = v }
func (r *fakeReg) SetBits(v uint8) { r.v |= v }
func (r *fakeReg) ClearBits(v uint8) { r.v &^= v }
func (r *fakeReg) HasBits(v uint8) bool { return r.v&v != 0 }
