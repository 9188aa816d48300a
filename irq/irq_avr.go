//go:build tinygo && avr

package irq

import "runtime/interrupt"

// Hardware drives the real status register. Bit 7 of SREG is the global
// interrupt flag, which lines up with Enabled.
type Hardware struct{}

func (Hardware) Disable() State { return State(interrupt.Disable()) }

func (Hardware) Restore(s State) { interrupt.Restore(interrupt.State(s)) }

func (Hardware) Enabled() bool {
	s := interrupt.Disable()
	interrupt.Restore(s)
	return State(s).On()
}

// Idle is a no-op: peripherals run on their own and interrupts preempt the
// loop directly.
func (Hardware) Idle() {}
