package main

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("xmsim %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestLoopback(t *testing.T) {
	out := run(t, "loopback", "--count", "300", "--format", "7E1", "--baud", "9600")
	if !strings.Contains(out, "Serial 9600 7E1: 300/300 bytes") {
		t.Fatalf("unexpected output %q", out)
	}
	out = run(t, "loopback", "--port", "serial1", "--count", "16", "--format", "8N1", "--baud", "115200")
	if !strings.Contains(out, "Serial1 115200 8N1: 16/16") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestScanFindsGyroAndExtras(t *testing.T) {
	out := run(t, "scan", "--device", "0x50", "--speed", "400")
	for _, want := range []string{"found 0x50", "found 0x68", "TWIE: 2 device(s)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestGyroSamples(t *testing.T) {
	out := run(t, "gyro", "--samples", "2", "--interval", "1ms", "--x", "8", "--z", "-16")
	if strings.Count(out, "x=8.000 y=0.000 z=-16.000 dps") != 2 {
		t.Fatalf("unexpected output %q", out)
	}
}
