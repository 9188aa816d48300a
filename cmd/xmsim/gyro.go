package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"walkduino-go/bus"
	"walkduino-go/drivers/itg3200"
	"walkduino-go/services/telemetry"
	"walkduino-go/twi"
)

var (
	gyroOpts = struct {
		samples  int
		interval time.Duration
		rate     [3]float64
		temp     float64
	}{}

	gyroCmd = &cobra.Command{
		Use:   "gyro",
		Short: "Sample the on-board gyro through the telemetry service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newBoard()
			seedGyro(s.Gyro.Regs[:])

			if err := s.Wire.BeginMaster(twi.Speed400k, 0); err != nil {
				return err
			}
			g := itg3200.New(s.Wire)
			if err := g.Configure(); err != nil {
				return err
			}

			b := bus.NewBus(gyroOpts.samples + 1)
			conn := b.NewConnection("xmsim")
			defer conn.Disconnect()
			rot := conn.Subscribe(telemetry.TopicRotation)
			errs := conn.Subscribe(telemetry.TopicError)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			svc := &telemetry.Service{Gyro: &g, Interval: gyroOpts.interval}
			svc.Start(ctx, conn)

			out := cmd.OutOrStdout()
			for n := 0; n < gyroOpts.samples; {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case m := <-errs.Channel():
					return fmt.Errorf("gyro: %v", m.Payload)
				case m := <-rot.Channel():
					r := m.Payload.(telemetry.Reading)
					fmt.Fprintf(out, "#%d x=%.3f y=%.3f z=%.3f dps\n", r.Seq,
						float64(r.Sample.MilliDPS[0])/1000,
						float64(r.Sample.MilliDPS[1])/1000,
						float64(r.Sample.MilliDPS[2])/1000)
					n++
				}
			}
			return nil
		},
	}
)

// seedGyro writes the requested rates and temperature into the simulated
// gyro's output registers.
func seedGyro(regs []byte) {
	put := func(reg int, v float64) {
		raw := int16(math.Round(math.Max(math.MinInt16, math.Min(math.MaxInt16, v))))
		regs[reg] = byte(uint16(raw) >> 8)
		regs[reg+1] = byte(uint16(raw))
	}
	put(0x1B, (gyroOpts.temp-35)*280-13200)
	for i, dps := range gyroOpts.rate {
		put(0x1D+2*i, dps*14.375)
	}
}

func init() {
	f := gyroCmd.Flags()
	f.IntVar(&gyroOpts.samples, "samples", 5, "readings to print")
	f.DurationVar(&gyroOpts.interval, "interval", 100*time.Millisecond, "sampling interval")
	f.Float64Var(&gyroOpts.rate[0], "x", 0, "simulated X rate in deg/s")
	f.Float64Var(&gyroOpts.rate[1], "y", 0, "simulated Y rate in deg/s")
	f.Float64Var(&gyroOpts.rate[2], "z", 0, "simulated Z rate in deg/s")
	f.Float64Var(&gyroOpts.temp, "temp", 25, "simulated die temperature in °C")
}
