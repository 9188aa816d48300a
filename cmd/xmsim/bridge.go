package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"walkduino-go/bus"
	"walkduino-go/serial"
	"walkduino-go/services/bridge"
)

var (
	bridgeOpts = struct {
		device string
		baud   uint32
		list   bool
	}{}

	bridgeCmd = &cobra.Command{
		Use:   "bridge",
		Short: "Wire a host serial port to the simulated Serial and run an echo loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bridgeOpts.list {
				ports, err := bridge.Ports()
				if err != nil {
					return err
				}
				for _, p := range ports {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			}
			if bridgeOpts.device == "" {
				return fmt.Errorf("--device is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := newBoard()
			if err := s.Serial.Begin(bridgeOpts.baud, serial.Format8N1); err != nil {
				return err
			}
			defer s.Serial.End()

			conn := bus.NewBus(8).NewConnection("xmsim")
			defer conn.Disconnect()
			svc := bridge.New(conn, s.USARTD1)
			s.USARTD1.OnSend = svc.Send
			go svc.Run(ctx)
			go logState(ctx, conn.Subscribe(bridge.TopicState))

			conn.Publish(conn.NewMessage(bridge.TopicConfig, bridge.Config{
				Transport: bridge.TransportConfig{
					Type:   "serial",
					Serial: &bridge.SerialConfig{Device: bridgeOpts.device, Baud: int(bridgeOpts.baud)},
				},
			}, false))

			echo(ctx, s.Core, s.Serial, bridgeOpts.baud)
			return nil
		},
	}
)

// stepper is the part of the simulated core the echo loop paces.
type stepper interface{ Step() }

// echo is the board firmware: every received byte is sent back. The core is
// stepped at roughly the character rate of the line.
func echo(ctx context.Context, core stepper, ch *serial.Channel, baud uint32) {
	perMs := int(baud / 10 / 1000)
	if perMs < 1 {
		perMs = 1
	}
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		for i := 0; i < perMs; i++ {
			core.Step()
		}
		for ch.Available() > 0 {
			b, err := ch.ReadByte()
			if err != nil {
				break
			}
			_ = ch.WriteByte(b)
		}
	}
}

func logState(ctx context.Context, sub *bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			if st, ok := m.Payload.(bridge.State); ok {
				glog.Infof("bridge: %s/%s %s", st.Level, st.Status, st.Error)
			}
		}
	}
}

func init() {
	f := bridgeCmd.Flags()
	f.StringVar(&bridgeOpts.device, "device", "", "host serial device, e.g. /dev/ttyUSB0")
	f.Uint32Var(&bridgeOpts.baud, "baud", 115200, "baud rate for both ends")
	f.BoolVar(&bridgeOpts.list, "list", false, "list host serial ports and exit")
}
