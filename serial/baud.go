package serial

// DoubleSpeedAbove is the baud crossover; faster rates run the USART in
// double-speed (CLK2X) mode.
const DoubleSpeedAbove = 57600

// Bauds lists the rates the resolver has timing constants for.
var Bauds = [...]uint32{
	1200, 2400, 4800, 9600, 14400, 19200, 28800, 38400, 57600,
	115200, 230400, 460800, 921600,
}

// bscale places a signed BSCALE value in the top nibble of BAUDCTRLB:A.
func bscale(s int8) uint16 { return uint16(uint8(s)&0x0F) << 12 }

type baudTable struct {
	clockHz uint32
	single  [len(Bauds)]uint16
	double  [len(Bauds)]uint16
}

var baudTables = [...]baudTable{
	{
		clockHz: 32000000,
		single: [len(Bauds)]uint16{
			0,                // 1200
			6<<12 | 12,       // 2400
			5<<12 | 12,       // 4800
			4<<12 | 12,       // 9600
			138,              // 14400
			3<<12 | 12,       // 19200
			bscale(-1) | 137, // 28800
			2<<12 | 12,       // 38400
			bscale(-2) | 135, // 57600
			bscale(-3) | 131, // 115200
			bscale(-4) | 123, // 230400
			bscale(-5) | 107, // 460800
			bscale(-6) | 75,  // 921600
		},
		double: [len(Bauds)]uint16{
			0,                // 1200
			7<<12 | 12,       // 2400
			6<<12 | 12,       // 4800
			5<<12 | 12,       // 9600
			1<<12 | 138,      // 14400
			4<<12 | 12,       // 19200
			138,              // 28800
			3<<12 | 12,       // 38400
			bscale(-1) | 137, // 57600
			bscale(-2) | 135, // 115200
			bscale(-3) | 131, // 230400
			bscale(-4) | 123, // 460800
			bscale(-5) | 107, // 921600
		},
	},
	{
		clockHz: 16000000,
		single: [len(Bauds)]uint16{
			14<<12 + 3329, // 1200
			13<<12 + 3325, // 2400
			12<<12 + 3317, // 4800
			11<<12 + 3301, // 9600
			11<<12 + 2190, // 14400
			10<<12 + 3269, // 19200
			10<<12 + 2158, // 28800
			9<<12 + 3205,  // 38400
			9<<12 + 2094,  // 57600
			9<<12 + 983,   // 115200
			9<<12 + 428,   // 230400
			9<<12 + 150,   // 460800
			9<<12 + 11,    // 921600
		},
		double: [len(Bauds)]uint16{
			15<<12 + 3331, // 1200
			14<<12 + 3329, // 2400
			13<<12 + 3325, // 4800
			12<<12 + 3317, // 9600
			12<<12 + 2206, // 14400
			11<<12 + 3301, // 19200
			11<<12 + 2190, // 28800
			10<<12 + 3269, // 38400
			10<<12 + 2158, // 57600
			10<<12 + 1047, // 115200
			9<<12 + 983,   // 230400
			9<<12 + 428,   // 460800
			9<<12 + 150,   // 921600
		},
	},
}

// DoubleSpeed reports whether baud has to use double-speed mode.
func DoubleSpeed(baud uint32) bool { return baud > DoubleSpeedAbove }

// ResolveBaud returns the BAUDCTRLB:BAUDCTRLA value for baud on a clockHz
// peripheral clock in the given oversampling mode. Only the canonical rates
// in Bauds on a 32 MHz or 16 MHz clock resolve; anything else reports false.
func ResolveBaud(clockHz, baud uint32, double bool) (uint16, bool) {
	for i := range baudTables {
		t := &baudTables[i]
		if t.clockHz != clockHz {
			continue
		}
		for j, b := range Bauds {
			if b != baud {
				continue
			}
			if double {
				return t.double[j], true
			}
			return t.single[j], true
		}
		return 0, false
	}
	return 0, false
}
