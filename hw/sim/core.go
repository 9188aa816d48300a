// Package sim is a deterministic host model of an xmega core and the
// peripherals the transports use.
//
// Core implements irq.CPU. Time only moves when main-line code idles in a
// busy-wait (Idle) or a test calls Step/Run; every Step ticks each attached
// device once. Interrupt sources are level-triggered predicates over the
// simulated registers and their handlers run synchronously on the calling
// goroutine, with the flag masked, whenever interrupts are (re-)enabled.
package sim

import (
	"github.com/golang/glog"

	"walkduino-go/irq"
)

// Device is a simulated peripheral advanced once per Step.
type Device interface {
	Tick()
}

type vector struct {
	name    string
	pending func() bool
	handler func()
}

// Core is the simulated execution core.
type Core struct {
	enabled  bool
	inISR    bool
	devices  []Device
	vectors  []vector
	ticks    uint64
	serviced map[string]int
}

// NewCore returns a core with interrupts enabled, the state application code
// starts in.
func NewCore() *Core {
	return &Core{enabled: true, serviced: make(map[string]int)}
}

// Attach adds a device to the tick list.
func (c *Core) Attach(d Device) { c.devices = append(c.devices, d) }

// Connect installs an interrupt vector. Vectors are polled in the order they
// were connected, which stands in for the hardware vector priority.
func (c *Core) Connect(name string, pending func() bool, handler func()) {
	c.vectors = append(c.vectors, vector{name: name, pending: pending, handler: handler})
}

func (c *Core) Disable() irq.State {
	s := irq.Masked
	if c.enabled {
		s = irq.Enabled
	}
	c.enabled = false
	return s
}

func (c *Core) Restore(s irq.State) {
	c.enabled = s.On()
	if c.enabled {
		c.dispatch()
	}
}

func (c *Core) Enabled() bool { return c.enabled }

// Idle advances the peripherals by one step.
func (c *Core) Idle() { c.Step() }

// Step ticks every device once and then services pending interrupts if they
// are enabled.
func (c *Core) Step() {
	c.ticks++
	for _, d := range c.devices {
		d.Tick()
	}
	if c.enabled {
		c.dispatch()
	}
}

// Run performs n steps.
func (c *Core) Run(n int) {
	for i := 0; i < n; i++ {
		c.Step()
	}
}

// Ticks returns the number of steps taken so far.
func (c *Core) Ticks() uint64 { return c.ticks }

// InInterrupt reports whether a handler is currently running.
func (c *Core) InInterrupt() bool { return c.inISR }

// Serviced returns how many times the named vector has run.
func (c *Core) Serviced(name string) int { return c.serviced[name] }

// maxPasses bounds back-to-back servicing so a handler that never clears its
// source cannot wedge the simulation.
const maxPasses = 16

// dispatch services pending vectors, masked and in vector order, until none
// is pending.
func (c *Core) dispatch() {
	if c.inISR {
		return
	}
	c.inISR = true
	c.enabled = false
	for pass := 0; pass < maxPasses; pass++ {
		ran := false
		for _, v := range c.vectors {
			if !v.pending() {
				continue
			}
			ran = true
			c.serviced[v.name]++
			if glog.V(3) {
				glog.Infof("sim: vector %s", v.name)
			}
			v.handler()
		}
		if !ran {
			break
		}
	}
	c.enabled = true
	c.inISR = false
}
