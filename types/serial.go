package types

// ------------------------
// Serial
// ------------------------

type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

// Frame describes an asynchronous character frame.
type Frame struct {
	DataBits uint8  `json:"data_bits"`
	StopBits uint8  `json:"stop_bits"`
	Parity   Parity `json:"parity"`
}

// SerialInfo describes a configured serial channel.
type SerialInfo struct {
	Port   string `json:"port"`
	Baud   uint32 `json:"baud"` // 0 until begun
	Format string `json:"format"`
	RTSCTS bool   `json:"rtscts"`
}

// ------------------------
// Two-wire
// ------------------------

// TWIInfo describes a configured two-wire controller.
type TWIInfo struct {
	Port       string `json:"port"`
	SpeedHz    uint32 `json:"speed_hz"` // 0 until begun
	BufferSize int    `json:"buffer_size"`
}
