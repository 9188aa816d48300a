package board

import "walkduino-go/hw"

// Peripheral base addresses of the ATxmega32D4 on the rx2635h.
const (
	AddrPMIC       = 0x00A0
	AddrTWIEMaster = 0x04A1
	AddrPORTC      = 0x0640
	AddrPORTD      = 0x0660
	AddrPORTE      = 0x0680
	AddrUSARTC0    = 0x08A0
	AddrUSARTD1    = 0x09B0
)

// MMIO returns the register at a data-space address.
type MMIO func(addr uintptr) hw.Register8

// RegistersAt lays the board's peripheral blocks out over m.
func RegistersAt(m MMIO) Registers {
	return Registers{
		USARTD1: usartAt(m, AddrUSARTD1),
		USARTC0: usartAt(m, AddrUSARTC0),
		TWIE:    twiMasterAt(m, AddrTWIEMaster),
		PORTC:   portAt(m, AddrPORTC),
		PORTD:   portAt(m, AddrPORTD),
		PORTE:   portAt(m, AddrPORTE),
	}
}

func usartAt(m MMIO, base uintptr) *hw.USART {
	return &hw.USART{
		DATA:      m(base + 0x00),
		STATUS:    m(base + 0x01),
		CTRLA:     m(base + 0x03),
		CTRLB:     m(base + 0x04),
		CTRLC:     m(base + 0x05),
		BAUDCTRLA: m(base + 0x06),
		BAUDCTRLB: m(base + 0x07),
	}
}

func twiMasterAt(m MMIO, base uintptr) *hw.TWI {
	return &hw.TWI{
		CTRLA:  m(base + 0x00),
		CTRLB:  m(base + 0x01),
		CTRLC:  m(base + 0x02),
		STATUS: m(base + 0x03),
		BAUD:   m(base + 0x04),
		ADDR:   m(base + 0x05),
		DATA:   m(base + 0x06),
	}
}

// portAt skips the SET/CLR/TGL strobes; the transports use read-modify-write
// on DIR and OUT.
func portAt(m MMIO, base uintptr) *hw.Port {
	p := &hw.Port{
		DIR:      m(base + 0x00),
		OUT:      m(base + 0x04),
		IN:       m(base + 0x08),
		INTCTRL:  m(base + 0x09),
		INT1MASK: m(base + 0x0B),
		INTFLAGS: m(base + 0x0C),
		REMAP:    m(base + 0x0E),
	}
	for i := range p.PINCTRL {
		p.PINCTRL[i] = m(base + 0x10 + uintptr(i))
	}
	return p
}
