package bridge

import (
	"context"
	"errors"
	"io"
	"time"

	"go.bug.st/serial"
)

type serialTransport struct {
	cfg SerialConfig
}

func newSerialTransport(cfg TransportConfig) (Transport, error) {
	if cfg.Serial == nil || cfg.Serial.Device == "" {
		return nil, errors.New("bridge: serial transport requires a device")
	}
	return &serialTransport{cfg: *cfg.Serial}, nil
}

func (t *serialTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	baud := t.cfg.Baud
	if baud <= 0 {
		baud = 115200
	}
	p, err := serial.Open(t.cfg.Device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	// A bounded read lets the pump notice cancellation without a close.
	rt := time.Duration(t.cfg.ReadTimeoutMS) * time.Millisecond
	if rt <= 0 {
		rt = 100 * time.Millisecond
	}
	if err := p.SetReadTimeout(rt); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (t *serialTransport) String() string { return "serial:" + t.cfg.Device }

// Ports lists the host serial devices.
func Ports() ([]string, error) { return serial.GetPortsList() }
