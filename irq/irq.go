// Package irq models the single global interrupt-enable flag of an 8-bit core.
//
// Everything shared between main-line code and interrupt handlers (ring
// buffer indices, two-wire transaction fields) is guarded by this one flag.
// Main-line code brackets each access with
//
//	st := cpu.Disable()
//	...
//	cpu.Restore(st)
//
// and keeps the span short. Handlers run with the flag masked and take no
// further locks.
package irq

// State is the saved interrupt flag returned by Disable.
type State uint8

// Enabled is the State bit recorded when interrupts were on.
const Enabled State = 0x80

// Masked is the State of a core with interrupts off.
const Masked State = 0

// On reports whether the saved state had interrupts enabled.
func (s State) On() bool { return s&Enabled != 0 }

// CPU is the critical-section primitive shared by every transport.
type CPU interface {
	// Disable masks interrupts and returns the previous state.
	Disable() State
	// Restore puts the flag back to a state returned by Disable. Restoring an
	// enabled state lets pending handlers run.
	Restore(State)
	// Enabled reports whether interrupts are currently on.
	Enabled() bool
	// Idle is one iteration of a busy-wait loop. Hardware keeps running
	// meanwhile, and pending handlers run if interrupts are on.
	Idle()
}

// Enable turns interrupts on regardless of the previous state.
func Enable(c CPU) { c.Restore(Enabled) }

// Locked runs fn with interrupts masked and restores the previous state.
func Locked(c CPU, fn func()) {
	st := c.Disable()
	fn()
	c.Restore(st)
}
