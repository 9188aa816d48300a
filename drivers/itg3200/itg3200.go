// Package itg3200 provides a driver for the InvenSense ITG-3200/3205
// three-axis gyroscope.
//
//	d := itg3200.New(bus)
//	if err := d.Configure(); err != nil { ... }
//	s, err := d.ReadRotation()   // s.MilliDPS[0] is X in milli-degrees/s
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus.
package itg3200

import (
	"errors"

	"tinygo.org/x/drivers"
)

// I2C addresses: AD0 low and high.
const (
	Address    = 0x68
	AddressAlt = 0x69
)

// Registers.
const (
	regWhoAmI    = 0x00
	regSmplrtDiv = 0x15
	regDLPFFS    = 0x16
	regIntCfg    = 0x17
	regIntStatus = 0x1A
	regTempOutH  = 0x1B
	regGyroXOutH = 0x1D
	regPwrMgm    = 0x3E
)

// PWR_MGM bits.
const (
	pwrReset  = 0x80
	pwrSleep  = 0x40
	clkSelMsk = 0x07

	StandByX = 0x20
	StandByY = 0x10
	StandByZ = 0x08
)

// INT_STATUS bits.
const (
	intRawDataReady = 0x01
	intPLLReady     = 0x04
)

// Register masks for reserved bits.
const (
	dlpfMask   = 0x1F
	intCfgMask = 0xF5
)

// Conversion constants.
const (
	// 14.375 LSB per deg/s, kept as 115/8.
	sensNum = 8000
	sensDen = 115

	tempOffset    = 13200 // raw reading at 35 °C is -13200
	tempLSBPerDeg = 280
	tempCelsius   = 35
)

// Clock sources for SetClockSource.
const (
	ClockInternal uint8 = iota
	ClockPLLX
	ClockPLLY
	ClockPLLZ
	ClockPLLExt32k
	ClockPLLExt19M
)

var (
	ErrClockSource = errors.New("itg3200: reserved clock source")
)

// Setup holds explicit register values for Configure.
type Setup struct {
	PowerManagement   uint8
	SampleRateDivider uint8
	FilterScale       uint8 // DLPF_FS; bits 7..5 are reserved
	InterruptConfig   uint8 // INT_CFG; bits 3 and 1 are reserved
}

// DefaultSetup is written when Config.Setup is nil: internal clock, sample
// rate divider 255, full-scale range with the 5 Hz low-pass filter and no
// interrupts.
var DefaultSetup = Setup{
	PowerManagement:   0,
	SampleRateDivider: 0xFF,
	FilterScale:       0x1E,
	InterruptConfig:   0,
}

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x68 if zero.
	Address uint16
	// Setup defaults to DefaultSetup if nil.
	Setup *Setup
}

// Sample is one rotation reading.
type Sample struct {
	Raw      [3]int16 // X, Y, Z counts
	MilliDPS [3]int32 // X, Y, Z in milli-degrees per second
}

// Device wraps an I2C connection to an ITG-3200 device.
type Device struct {
	bus     drivers.I2C
	Address uint16

	buf [6]byte
}

// New creates a new ITG-3200 connection. The I2C bus must already be
// configured. This function only creates the Device object; it does not touch
// the device.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address}
}

// Configure writes the power, sample rate, filter and interrupt registers.
func (d *Device) Configure(cfgs ...Config) error {
	s := DefaultSetup
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.Address != 0 {
			d.Address = c.Address
		}
		if c.Setup != nil {
			s = *c.Setup
			s.FilterScale &= dlpfMask
			s.InterruptConfig &= intCfgMask
		}
	}
	for _, w := range [...][2]uint8{
		{regPwrMgm, s.PowerManagement},
		{regSmplrtDiv, s.SampleRateDivider},
		{regDLPFFS, s.FilterScale},
		{regIntCfg, s.InterruptConfig},
	} {
		if err := d.write(w[0], w[1]); err != nil {
			return err
		}
	}
	return nil
}

// ReadRotation reads all three axes in one burst.
func (d *Device) ReadRotation() (Sample, error) {
	var s Sample
	if err := d.bus.Tx(d.Address, []byte{regGyroXOutH}, d.buf[:6]); err != nil {
		return s, err
	}
	for i := range s.Raw {
		v := int16(uint16(d.buf[2*i])<<8 | uint16(d.buf[2*i+1]))
		s.Raw[i] = v
		s.MilliDPS[i] = int32(v) * sensNum / sensDen
	}
	return s, nil
}

// ReadTemperature returns the die temperature in milli-degrees Celsius.
func (d *Device) ReadTemperature() (int32, error) {
	if err := d.bus.Tx(d.Address, []byte{regTempOutH}, d.buf[:2]); err != nil {
		return 0, err
	}
	raw := int32(int16(uint16(d.buf[0])<<8 | uint16(d.buf[1])))
	return (raw+tempOffset)*1000/tempLSBPerDeg + tempCelsius*1000, nil
}

// Reset performs a device reset; all registers return to power-on defaults.
func (d *Device) Reset() error { return d.write(regPwrMgm, pwrReset) }

// Sleep puts the device in low-power sleep.
func (d *Device) Sleep() error { return d.update(regPwrMgm, pwrSleep, 0) }

// Wake leaves sleep.
func (d *Device) Wake() error { return d.update(regPwrMgm, 0, pwrSleep) }

// StandBy puts the given axes (StandByX|StandByY|StandByZ) in standby.
func (d *Device) StandBy(axes uint8) error {
	return d.update(regPwrMgm, axes&(StandByX|StandByY|StandByZ), 0)
}

// SetClockSource selects the clock. Sources 6 and 7 are reserved.
func (d *Device) SetClockSource(src uint8) error {
	if src > ClockPLLExt19M {
		return ErrClockSource
	}
	return d.update(regPwrMgm, src, clkSelMsk)
}

// SetInterruptConfig writes INT_CFG; reserved bits are cleared.
func (d *Device) SetInterruptConfig(v uint8) error { return d.write(regIntCfg, v&intCfgMask) }

// InterruptConfig reads INT_CFG.
func (d *Device) InterruptConfig() (uint8, error) { return d.read(regIntCfg) }

// RawDataReady reports the INT_STATUS raw-data-ready bit.
func (d *Device) RawDataReady() (bool, error) {
	v, err := d.read(regIntStatus)
	return v&intRawDataReady != 0, err
}

// PLLReady reports the INT_STATUS PLL-ready bit.
func (d *Device) PLLReady() (bool, error) {
	v, err := d.read(regIntStatus)
	return v&intPLLReady != 0, err
}

// WhoAmI reads the device's own I2C address register.
func (d *Device) WhoAmI() (uint8, error) { return d.read(regWhoAmI) }

// SetWhoAmI changes the address the device answers to. Subsequent calls on d
// use the new address.
func (d *Device) SetWhoAmI(addr uint8) error {
	if err := d.write(regWhoAmI, addr&0x7E); err != nil {
		return err
	}
	d.Address = uint16(addr & 0x7E)
	return nil
}

func (d *Device) write(reg, v uint8) error {
	d.buf[0], d.buf[1] = reg, v
	return d.bus.Tx(d.Address, d.buf[:2], nil)
}

func (d *Device) read(reg uint8) (uint8, error) {
	d.buf[0] = reg
	if err := d.bus.Tx(d.Address, d.buf[:1], d.buf[1:2]); err != nil {
		return 0, err
	}
	return d.buf[1], nil
}

// update sets the bits in set and clears those in clear with a
// read-modify-write.
func (d *Device) update(reg, set, clear uint8) error {
	v, err := d.read(reg)
	if err != nil {
		return err
	}
	return d.write(reg, v&^clear|set)
}
