package serial

import (
	"walkduino-go/errcode"
	"walkduino-go/hw"
	"walkduino-go/types"
)

// Format is an asynchronous frame format: the CTRLC value with the mode bits
// clear.
type Format uint8

// Common formats, named data bits / parity / stop bits.
const (
	Format5N1 Format = 0x00
	Format6N1 Format = 0x01
	Format7N1 Format = 0x02
	Format8N1 Format = 0x03
	Format7N2 Format = 0x0A
	Format8N2 Format = 0x0B
	Format7E1 Format = 0x22
	Format8E1 Format = 0x23
	Format7E2 Format = 0x2A
	Format8E2 Format = 0x2B
	Format7O1 Format = 0x32
	Format8O1 Format = 0x33
	Format7O2 Format = 0x3A
	Format8O2 Format = 0x3B
)

// NewFormat encodes a frame description. Five to eight data bits, one or two
// stop bits.
func NewFormat(f types.Frame) (Format, error) {
	if f.DataBits < 5 || f.DataBits > 8 || f.StopBits < 1 || f.StopBits > 2 {
		return 0, errcode.InvalidParams
	}
	v := Format(f.DataBits - 5)
	if f.StopBits == 2 {
		v |= hw.USART_SBMODE
	}
	switch f.Parity {
	case types.ParityNone:
	case types.ParityEven:
		v |= hw.USART_PMODE_EVEN
	case types.ParityOdd:
		v |= hw.USART_PMODE_ODD
	default:
		return 0, errcode.InvalidParams
	}
	return v, nil
}

// Frame decodes the format.
func (f Format) Frame() types.Frame {
	fr := types.Frame{DataBits: uint8(f&hw.USART_CHSIZE_gm) + 5, StopBits: 1}
	if f&hw.USART_SBMODE != 0 {
		fr.StopBits = 2
	}
	switch f & hw.USART_PMODE_gm {
	case hw.USART_PMODE_EVEN:
		fr.Parity = types.ParityEven
	case hw.USART_PMODE_ODD:
		fr.Parity = types.ParityOdd
	}
	return fr
}

func (f Format) String() string {
	fr := f.Frame()
	p := "N"
	switch fr.Parity {
	case types.ParityEven:
		p = "E"
	case types.ParityOdd:
		p = "O"
	}
	return string(rune('0'+fr.DataBits)) + p + string(rune('0'+fr.StopBits))
}

// ParseFormat reads the short form returned by String, such as "8N1" or
// "7e2".
func ParseFormat(s string) (Format, error) {
	if len(s) != 3 {
		return 0, errcode.InvalidParams
	}
	f := types.Frame{DataBits: s[0] - '0', StopBits: s[2] - '0'}
	switch s[1] {
	case 'N', 'n':
		f.Parity = types.ParityNone
	case 'E', 'e':
		f.Parity = types.ParityEven
	case 'O', 'o':
		f.Parity = types.ParityOdd
	default:
		return 0, errcode.InvalidParams
	}
	return NewFormat(f)
}
