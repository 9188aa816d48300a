// Package hw describes the xmega peripheral register blocks the transports
// program. Each block is a struct of Register8 handles; on silicon they point
// at the memory-mapped registers, on the host they come from package hw/sim.
package hw

// Register8 is one 8-bit peripheral register. *volatile.Register8 from
// TinyGo's runtime/volatile satisfies it.
type Register8 interface {
	Get() uint8
	Set(value uint8)
	SetBits(value uint8)
	ClearBits(value uint8)
	HasBits(value uint8) bool
}

// USART is the register block of one asynchronous serial port.
type USART struct {
	DATA      Register8
	STATUS    Register8
	CTRLA     Register8
	CTRLB     Register8
	CTRLC     Register8
	BAUDCTRLA Register8
	BAUDCTRLB Register8
}

// SetBaud programs the BSCALE/BSEL pair, low byte first.
func (u *USART) SetBaud(v uint16) {
	u.BAUDCTRLA.Set(uint8(v))
	u.BAUDCTRLB.Set(uint8(v >> 8))
}

// USART STATUS bits.
const (
	USART_RXCIF  = 0x80
	USART_TXCIF  = 0x40
	USART_DREIF  = 0x20
	USART_FERR   = 0x10
	USART_BUFOVF = 0x08
	USART_PERR   = 0x04
	USART_RXB8   = 0x01
)

// USART CTRLA interrupt levels (high level for receive-complete and
// data-register-empty, as the serial driver uses them).
const (
	USART_RXCINTLVL_gm = 0x30
	USART_RXCINTLVL_HI = 0x30
	USART_TXCINTLVL_gm = 0x0C
	USART_DREINTLVL_gm = 0x03
	USART_DREINTLVL_HI = 0x03
)

// USART CTRLB bits.
const (
	USART_RXEN  = 0x10
	USART_TXEN  = 0x08
	USART_CLK2X = 0x04
	USART_MPCM  = 0x02
	USART_TXB8  = 0x01
)

// USART CTRLC fields.
const (
	USART_CMODE_gm   = 0xC0
	USART_PMODE_gm   = 0x30
	USART_PMODE_EVEN = 0x20
	USART_PMODE_ODD  = 0x30
	USART_SBMODE     = 0x08
	USART_CHSIZE_gm  = 0x07
)

// TWI is the master half of one two-wire controller.
type TWI struct {
	CTRLA  Register8
	CTRLB  Register8
	CTRLC  Register8
	STATUS Register8
	BAUD   Register8
	ADDR   Register8
	DATA   Register8
}

// TWI master CTRLA bits.
const (
	TWI_MASTER_INTLVL_gm = 0xC0
	TWI_MASTER_INTLVL_LO = 0x40
	TWI_MASTER_RIEN      = 0x20
	TWI_MASTER_WIEN      = 0x10
	TWI_MASTER_ENABLE    = 0x08
)

// TWI master CTRLC bits and commands.
const (
	TWI_MASTER_ACKACT        = 0x04
	TWI_MASTER_CMD_gm        = 0x03
	TWI_MASTER_CMD_NOACT     = 0x00
	TWI_MASTER_CMD_REPSTART  = 0x01
	TWI_MASTER_CMD_RECVTRANS = 0x02
	TWI_MASTER_CMD_STOP      = 0x03
)

// TWI master STATUS bits.
const (
	TWI_MASTER_RIF              = 0x80
	TWI_MASTER_WIF              = 0x40
	TWI_MASTER_CLKHOLD          = 0x20
	TWI_MASTER_RXACK            = 0x10
	TWI_MASTER_ARBLOST          = 0x08
	TWI_MASTER_BUSERR           = 0x04
	TWI_MASTER_BUSSTATE_gm      = 0x03
	TWI_MASTER_BUSSTATE_UNKNOWN = 0x00
	TWI_MASTER_BUSSTATE_IDLE    = 0x01
	TWI_MASTER_BUSSTATE_OWNER   = 0x02
	TWI_MASTER_BUSSTATE_BUSY    = 0x03
)
