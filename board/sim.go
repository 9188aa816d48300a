package board

import (
	"walkduino-go/hw/sim"
)

// GyroAddress is where the on-board ITG-3205 answers.
const GyroAddress = 0x68

// Sim is the board running on the host simulator, with each transport's
// vectors connected.
type Sim struct {
	*Board

	Core    *sim.Core
	USARTD1 *sim.USART
	USARTC0 *sim.USART
	TWIE    *sim.TWI
	PORTC   *sim.Port
	PORTD   *sim.Port
	PORTE   *sim.Port

	// Gyro is the register file of the simulated gyro on Wire.
	Gyro *sim.Memory
}

// NewSim builds a simulated board.
func NewSim(cfgs ...Config) *Sim {
	s := &Sim{
		Core:    sim.NewCore(),
		USARTD1: sim.NewUSART("USARTD1"),
		USARTC0: sim.NewUSART("USARTC0"),
		TWIE:    sim.NewTWI("TWIE"),
		PORTC:   sim.NewPort("PORTC"),
		PORTD:   sim.NewPort("PORTD"),
		PORTE:   sim.NewPort("PORTE"),
		Gyro:    &sim.Memory{},
	}
	s.Board = New(s.Core, Registers{
		USARTD1: s.USARTD1.Registers(),
		USARTC0: s.USARTC0.Registers(),
		TWIE:    s.TWIE.Registers(),
		PORTC:   s.PORTC.Registers(),
		PORTD:   s.PORTD.Registers(),
		PORTE:   s.PORTE.Registers(),
	}, cfgs...)

	s.USARTD1.Connect(s.Core, s.Serial.HandleRXC, s.Serial.HandleDRE)
	s.USARTC0.Connect(s.Core, s.Serial1.HandleRXC, s.Serial1.HandleDRE)
	s.TWIE.Connect(s.Core, s.Wire.HandleMaster)

	// WHO_AM_I reads back the address.
	s.Gyro.Regs[0x00] = GyroAddress
	s.TWIE.Add(GyroAddress, s.Gyro)
	return s
}

// LEDOn reports the level of the status LED pin.
func (s *Sim) LEDOn() bool { return s.PORTD.Level(LEDPin) }
