package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"walkduino-go/hw/sim"
	"walkduino-go/serial"
)

var (
	loopbackOpts = struct {
		port   string
		baud   uint32
		format string
		count  int
	}{}

	loopbackCmd = &cobra.Command{
		Use:   "loopback",
		Short: "Send a pattern through a serial port with TX jumpered to RX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newBoard()
			ch, usart := s.Serial, s.USARTD1
			switch loopbackOpts.port {
			case "serial":
			case "serial1":
				ch, usart = s.Serial1, s.USARTC0
			default:
				return fmt.Errorf("unknown port %q (serial, serial1)", loopbackOpts.port)
			}
			usart.OnSend = func(b byte) { usart.Feed([]byte{b}) }

			format, err := serial.ParseFormat(loopbackOpts.format)
			if err != nil {
				return fmt.Errorf("format %q: %w", loopbackOpts.format, err)
			}
			if err := ch.Begin(loopbackOpts.baud, format); err != nil {
				return err
			}
			defer ch.End()

			want := make([]byte, loopbackOpts.count)
			for i := range want {
				want[i] = byte(i)
			}
			got := make([]byte, 0, len(want))
			drain := func() {
				for ch.Available() > 0 {
					b, err := ch.ReadByte()
					if err != nil {
						return
					}
					got = append(got, b)
				}
			}
			start := s.Core.Ticks()
			for _, b := range want {
				if err := ch.WriteByte(b); err != nil {
					return err
				}
				drain()
			}
			ch.Flush()
			settle(s.Core, usart)
			drain()

			info := ch.Info()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d %s: %d/%d bytes in %d ticks\n",
				info.Port, info.Baud, info.Format, len(got), len(want), s.Core.Ticks()-start)
			if !bytes.Equal(got, want) {
				return fmt.Errorf("loopback mismatch (overruns %d)", usart.Overruns())
			}
			return nil
		},
	}
)

// settle steps until the line has delivered everything in flight.
func settle(c *sim.Core, u *sim.USART) {
	for i := 0; i < 16 && (u.Pending() > 0 || !u.Idle()); i++ {
		c.Step()
	}
	c.Step()
}

func init() {
	f := loopbackCmd.Flags()
	f.StringVar(&loopbackOpts.port, "port", "serial", "board port: serial or serial1")
	f.Uint32Var(&loopbackOpts.baud, "baud", 115200, "baud rate")
	f.StringVar(&loopbackOpts.format, "format", "8N1", "frame format, e.g. 8N1, 7E2")
	f.IntVar(&loopbackOpts.count, "count", 256, "bytes to send")
}
