//go:build tinygo && avr

package board

import (
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"walkduino-go/hw"
	"walkduino-go/irq"
)

// Interrupt vector numbers.
const (
	vecPORTC_INT1  = 3
	vecUSARTC0_RXC = 25
	vecUSARTC0_DRE = 26
	vecTWIE_TWIM   = 46
	vecPORTD_INT1  = 65
	vecUSARTD1_RXC = 91
	vecUSARTD1_DRE = 92
)

// PMIC.CTRL level enables.
const (
	pmicCTRL     = 0x02
	pmicLOLVLEN  = 0x01
	pmicMEDLVLEN = 0x02
	pmicHILVLEN  = 0x04
)

// MCU is the board bound to the memory-mapped peripherals. Its vectors are
// installed at init; the interrupt levels are enabled by Start.
var MCU = New(irq.Hardware{}, RegistersAt(volatileAt))

func init() {
	interrupt.New(vecUSARTD1_RXC, serialRXC)
	interrupt.New(vecUSARTD1_DRE, serialDRE)
	interrupt.New(vecPORTD_INT1, serialCTS)
	interrupt.New(vecUSARTC0_RXC, serial1RXC)
	interrupt.New(vecUSARTC0_DRE, serial1DRE)
	interrupt.New(vecPORTC_INT1, serial1CTS)
	interrupt.New(vecTWIE_TWIM, wireMaster)
}

// Start enables every interrupt level in the controller and the global flag.
// Call it once, before the first Begin.
func Start() *Board {
	volatileAt(AddrPMIC + pmicCTRL).SetBits(pmicLOLVLEN | pmicMEDLVLEN | pmicHILVLEN)
	irq.Enable(MCU.CPU)
	return MCU
}

func serialRXC(interrupt.Interrupt) { MCU.Serial.HandleRXC() }

func serialDRE(interrupt.Interrupt) { MCU.Serial.HandleDRE() }

func serialCTS(interrupt.Interrupt) { MCU.Serial.HandleCTS() }

func serial1RXC(interrupt.Interrupt) { MCU.Serial1.HandleRXC() }

func serial1DRE(interrupt.Interrupt) { MCU.Serial1.HandleDRE() }

func serial1CTS(interrupt.Interrupt) { MCU.Serial1.HandleCTS() }

func wireMaster(interrupt.Interrupt) { MCU.Wire.HandleMaster() }

func volatileAt(addr uintptr) hw.Register8 {
	return (*volatile.Register8)(unsafe.Pointer(addr))
}
