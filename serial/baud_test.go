package serial

import "testing"

func TestResolveBaudTables(t *testing.T) {
	cases := []struct {
		clock  uint32
		double bool
		want   [len(Bauds)]uint16
	}{
		{32000000, false, [len(Bauds)]uint16{0x0000, 0x600C, 0x500C, 0x400C, 0x008A, 0x300C, 0xF089, 0x200C, 0xE087, 0xD083, 0xC07B, 0xB06B, 0xA04B}},
		{32000000, true, [len(Bauds)]uint16{0x0000, 0x700C, 0x600C, 0x500C, 0x108A, 0x400C, 0x008A, 0x300C, 0xF089, 0xE087, 0xD083, 0xC07B, 0xB06B}},
		{16000000, false, [len(Bauds)]uint16{0xED01, 0xDCFD, 0xCCF5, 0xBCE5, 0xB88E, 0xACC5, 0xA86E, 0x9C85, 0x982E, 0x93D7, 0x91AC, 0x9096, 0x900B}},
		{16000000, true, [len(Bauds)]uint16{0xFD03, 0xED01, 0xDCFD, 0xCCF5, 0xC89E, 0xBCE5, 0xB88E, 0xACC5, 0xA86E, 0xA417, 0x93D7, 0x91AC, 0x9096}},
	}
	for _, tc := range cases {
		for i, baud := range Bauds {
			got, ok := ResolveBaud(tc.clock, baud, tc.double)
			if !ok {
				t.Fatalf("clock=%d baud=%d double=%v: not resolved", tc.clock, baud, tc.double)
			}
			if got != tc.want[i] {
				t.Errorf("clock=%d baud=%d double=%v: got %#04x want %#04x", tc.clock, baud, tc.double, got, tc.want[i])
			}
		}
	}
}

func TestResolveBaudUnsupported(t *testing.T) {
	if _, ok := ResolveBaud(32000000, 76800, false); ok {
		t.Fatalf("76800 has no table entry")
	}
	if _, ok := ResolveBaud(32000000, 0, true); ok {
		t.Fatalf("zero baud resolved")
	}
	if _, ok := ResolveBaud(8000000, 9600, false); ok {
		t.Fatalf("8 MHz clock has no table")
	}
}

func TestDoubleSpeedCrossover(t *testing.T) {
	if DoubleSpeed(57600) {
		t.Fatalf("57600 should use single speed")
	}
	if !DoubleSpeed(115200) {
		t.Fatalf("115200 should use double speed")
	}
}
