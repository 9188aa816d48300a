package serial

import "walkduino-go/hw"

// rtsMargin is the receive space left when RTS is raised: the bytes the
// remote may still send before it notices.
const rtsMargin = 3

func (c *Channel) initFlow() {
	if c.pins.RTS.Valid() {
		c.pins.RTS.Configure(hw.PORT_OPC_TOTEM)
		c.pins.RTS.Low()
		c.pins.RTS.Output()
	}
	if c.pins.CTS.Valid() {
		c.pins.CTS.DisableInterrupt()
		c.pins.CTS.Input()
		c.pins.CTS.Configure(hw.PORT_OPC_PULLUP | hw.PORT_ISC_BOTHEDGES)
		c.pins.CTS.Port.INTCTRL.SetBits(hw.PORT_INT1LVL_HI)
	}
}

// holdRTS raises RTS when the receive ring is close to full. Handler context.
func (c *Channel) holdRTS() {
	if c.pins.RTS.Valid() && c.rx.NearFull(rtsMargin) {
		c.pins.RTS.High()
		c.pins.RTS.Output()
	}
}

// releaseRTS lowers RTS whenever the ring has room. Caller holds the mask.
func (c *Channel) releaseRTS() {
	if c.pins.RTS.Valid() && !c.rx.NearFull(rtsMargin) {
		c.pins.RTS.Low()
	}
}

// ctsStop reports whether the remote is holding CTS high.
func (c *Channel) ctsStop() bool {
	return c.pins.CTS.Valid() && c.pins.CTS.Get()
}

func (c *Channel) armCTS() { c.pins.CTS.EnableInterrupt() }

func (c *Channel) disarmCTS() {
	if c.pins.CTS.Valid() {
		c.pins.CTS.DisableInterrupt()
	}
}

// HandleCTS is the CTS pin-change handler. The edge interrupt is one-shot:
// it is armed when the data-register-empty handler finds CTS high and is
// disarmed by the edge that releases the line, which also restarts
// transmission if data is waiting.
func (c *Channel) HandleCTS() {
	if c.ctsStop() {
		return
	}
	c.disarmCTS()
	if !c.tx.Empty() {
		c.regs.CTRLA.Set(hw.USART_RXCINTLVL_HI | hw.USART_DREINTLVL_HI)
	}
}

// RTSAsserted reports whether RTS is currently asking the remote to stop.
func (c *Channel) RTSAsserted() bool {
	return c.pins.RTS.Valid() && c.pins.RTS.Port.OUT.HasBits(1<<c.pins.RTS.Index)
}
