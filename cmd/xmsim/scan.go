package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"walkduino-go/hw/sim"
	"walkduino-go/twi"
)

var (
	scanOpts = struct {
		speed   int
		devices []string
	}{}

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Probe every two-wire address on the board bus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newBoard()
			for _, d := range scanOpts.devices {
				a, err := strconv.ParseUint(d, 0, 7)
				if err != nil {
					return fmt.Errorf("device address %q: %w", d, err)
				}
				s.TWIE.Add(uint8(a), &sim.Memory{})
			}

			speed := twi.Speed100k
			if scanOpts.speed == 400 {
				speed = twi.Speed400k
			}
			w := s.Wire
			if err := w.BeginMaster(speed, 0); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			found := 0
			for addr := uint8(1); addr < 0x80; addr++ {
				if err := w.BeginTransmission(addr); err != nil {
					return err
				}
				if err := w.EndTransmission(0); err != nil {
					return err
				}
				for !w.Ready() {
					s.Core.Step()
				}
				if w.TransmissionResult() == nil {
					fmt.Fprintf(out, "found %#02x\n", addr)
					found++
				}
			}
			fmt.Fprintf(out, "%s: %d device(s)\n", w.Info().Port, found)
			return nil
		},
	}
)

func init() {
	f := scanCmd.Flags()
	f.IntVar(&scanOpts.speed, "speed", 100, "bus speed in kHz: 100 or 400")
	f.StringSliceVar(&scanOpts.devices, "device", nil, "extra simulated device address (repeatable)")
}
