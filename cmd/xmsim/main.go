// Command xmsim runs rx2635h board routines against the host simulator.
//
//	xmsim loopback --baud 115200 --format 8N1
//	xmsim scan --device 0x50
//	xmsim gyro --samples 5 --x 12.5
//	xmsim bridge --device /dev/ttyUSB0
//
// Pass -v=2 to trace simulated bus and line activity.
package main

import (
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"walkduino-go/board"
)

var (
	clockHz uint32

	rootCmd = &cobra.Command{
		Use:          "xmsim",
		Short:        "Run rx2635h board routines on the host simulator",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().Uint32Var(&clockHz, "clock", 32000000, "peripheral clock in Hz (32 MHz or 16 MHz)")
	rootCmd.AddCommand(loopbackCmd, scanCmd, gyroCmd, bridgeCmd)
}

func newBoard() *board.Sim {
	return board.NewSim(board.Config{ClockHz: clockHz})
}

func main() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	_ = flag.Set("logtostderr", "true")
	defer glog.Flush()

	if err := rootCmd.Execute(); err != nil {
		glog.Flush()
		os.Exit(1)
	}
}
