package hw

// Port is the register block of one 8-pin I/O port.
type Port struct {
	DIR      Register8
	OUT      Register8
	IN       Register8
	INTCTRL  Register8
	INT1MASK Register8
	INTFLAGS Register8
	REMAP    Register8
	PINCTRL  [8]Register8
}

// PINnCTRL fields.
const (
	PORT_OPC_gm           = 0x38
	PORT_OPC_TOTEM        = 0x00
	PORT_OPC_PULLUP       = 0x18
	PORT_OPC_WIREDANDPULL = 0x38
	PORT_ISC_gm           = 0x07
	PORT_ISC_BOTHEDGES    = 0x00
	PORT_ISC_RISING       = 0x01
	PORT_ISC_FALLING      = 0x02
)

// INTCTRL / INTFLAGS for the second port interrupt line.
const (
	PORT_INT1LVL_gm = 0x0C
	PORT_INT1LVL_HI = 0x0C
	PORT_INT1IF     = 0x02
)

// Pin is one pin of a Port. The zero Pin is "not connected".
type Pin struct {
	Port  *Port
	Index uint8
}

// Valid reports whether the pin is bound to a port.
func (p Pin) Valid() bool { return p.Port != nil && p.Index < 8 }

func (p Pin) mask() uint8 { return 1 << p.Index }

// Configure writes the pin control register (output/pull and sense config).
func (p Pin) Configure(ctrl uint8) { p.Port.PINCTRL[p.Index].Set(ctrl) }

func (p Pin) Output() { p.Port.DIR.SetBits(p.mask()) }

func (p Pin) Input() { p.Port.DIR.ClearBits(p.mask()) }

func (p Pin) High() { p.Port.OUT.SetBits(p.mask()) }

func (p Pin) Low() { p.Port.OUT.ClearBits(p.mask()) }

// Get returns the input level.
func (p Pin) Get() bool { return p.Port.IN.HasBits(p.mask()) }

// EnableInterrupt routes the pin onto the port's INT1 line.
func (p Pin) EnableInterrupt() { p.Port.INT1MASK.SetBits(p.mask()) }

// DisableInterrupt removes the pin from the port's INT1 line.
func (p Pin) DisableInterrupt() { p.Port.INT1MASK.ClearBits(p.mask()) }

// InterruptEnabled reports whether the pin is on the INT1 line.
func (p Pin) InterruptEnabled() bool { return p.Port.INT1MASK.HasBits(p.mask()) }
