// Package board binds the transports to the Walkera rx2635h receiver board.
//
// Serial is USARTD1 on PORTD (RX 6, TX 7), Serial1 is USARTC0 on PORTC
// (RX 2, TX 3) and Wire, the default two-wire bus, is TWIE on PORTE (SDA 0,
// SCL 1). The on-board gyro sits on Wire. The status LED is PD4, active high.
//
// RegistersAt lays the blocks out at their ATxmega32D4 addresses. TinyGo AVR
// builds bind them to the memory-mapped registers as MCU, with the vectors
// installed; host builds use NewSim.
package board

import (
	"walkduino-go/hw"
	"walkduino-go/irq"
	"walkduino-go/serial"
	"walkduino-go/twi"
	"walkduino-go/x/ringbuf"
)

// Name identifies the board.
const Name = "rx2635h"

// SerialPorts is the number of USARTs brought out.
const SerialPorts = 2

// Pin indices.
const (
	SerialRX  = 6 // PORTD
	SerialTX  = 7 // PORTD
	Serial1RX = 2 // PORTC
	Serial1TX = 3 // PORTC
	WireSDA   = 0 // PORTE
	WireSCL   = 1 // PORTE
	LEDPin    = 4 // PORTD
)

// Registers are the peripheral blocks the board uses.
type Registers struct {
	USARTD1 *hw.USART
	USARTC0 *hw.USART
	TWIE    *hw.TWI
	PORTC   *hw.Port
	PORTD   *hw.Port
	PORTE   *hw.Port
}

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// ClockHz is the peripheral clock. Default 32 MHz.
	ClockHz uint32
}

// Board holds one instance of each transport, created once per physical
// port.
type Board struct {
	CPU     irq.CPU
	Serial  *serial.Channel
	Serial1 *serial.Channel
	Wire    *twi.Controller
	LED     hw.Pin
}

// New creates the transports over regs. Nothing is programmed until each
// transport's Begin.
func New(cpu irq.CPU, regs Registers, cfgs ...Config) *Board {
	var cfg Config
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	size := ringbuf.SizeFor(SerialPorts)
	return &Board{
		CPU: cpu,
		Serial: serial.New(cpu, regs.USARTD1, serial.Pins{
			RX: hw.Pin{Port: regs.PORTD, Index: SerialRX},
			TX: hw.Pin{Port: regs.PORTD, Index: SerialTX},
		}, serial.Config{Name: "Serial", ClockHz: cfg.ClockHz, BufferSize: size}),
		Serial1: serial.New(cpu, regs.USARTC0, serial.Pins{
			RX: hw.Pin{Port: regs.PORTC, Index: Serial1RX},
			TX: hw.Pin{Port: regs.PORTC, Index: Serial1TX},
		}, serial.Config{Name: "Serial1", ClockHz: cfg.ClockHz, BufferSize: size}),
		Wire: twi.New(cpu, twi.PortE, regs.TWIE, twi.Pins{
			SDA: hw.Pin{Port: regs.PORTE, Index: WireSDA},
			SCL: hw.Pin{Port: regs.PORTE, Index: WireSCL},
		}, twi.Config{ClockHz: cfg.ClockHz}),
		LED: hw.Pin{Port: regs.PORTD, Index: LEDPin},
	}
}

// SetLED drives the status LED.
func (b *Board) SetLED(on bool) {
	b.LED.Output()
	if on {
		b.LED.High()
	} else {
		b.LED.Low()
	}
}
