package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tinygo-org/mcan/mcan"
)

var rootCmd = &cobra.Command{
	Use:   "mcancalc",
	Short: "MCAN bit timing and message RAM planner",
	Long: `mcancalc computes bit timings and message RAM layouts for the MCAN
modules of TC3xx devices. The plan command runs a node configuration
against a simulated module and prints the resulting register image.`,
	SilenceUsage: true,
}

// environment holds the defaults of the persistent flags.
type environment struct {
	ClockHz uint32 `env:"MCAN_CLOCK_HZ" envDefault:"80000000"`
	RAMSize uint32 `env:"MCAN_RAM_SIZE" envDefault:"32768"`
}

const (
	flagClock   = "clock"
	flagRAMSize = "ram-size"
	flagNoColor = "no-color"
)

var (
	clockHz uint32
	ramSize uint32
)

var (
	label = color.New(color.FgHiBlue).SprintfFunc()
	value = color.New(color.FgGreen).SprintfFunc()
	alert = color.New(color.FgRed).SprintfFunc()
)

// checkRAMSize rejects message RAM windows the start address fields
// cannot cover.
func checkRAMSize(size uint32) error {
	if size > mcan.MaxRAMSize {
		return fmt.Errorf("message RAM size %#x above %#x", size, mcan.MaxRAMSize)
	}
	return nil
}

// checkOffset rejects message RAM offsets that are not word aligned.
func checkOffset(off uint32) error {
	if off%4 != 0 {
		return fmt.Errorf("message RAM offset %#x not word aligned", off)
	}
	return nil
}

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	defaults := environment{ClockHz: 80_000_000, RAMSize: mcan.DefaultRAMSize}
	if err := env.Parse(&defaults); err != nil {
		log.Printf("environment: %v", err)
	}

	pf := rootCmd.PersistentFlags()
	pf.Uint32VarP(&clockHz, flagClock, "c", defaults.ClockHz, "MCAN kernel clock in Hz ($MCAN_CLOCK_HZ)")
	pf.Uint32Var(&ramSize, flagRAMSize, defaults.RAMSize, "message RAM window in bytes ($MCAN_RAM_SIZE)")
	pf.BoolVar(&color.NoColor, flagNoColor, color.NoColor, "disable colored output")
}
