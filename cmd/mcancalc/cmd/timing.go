package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tinygo-org/mcan/mcan"
)

var (
	samplePoint float64
	syncJump    uint16
	dataPhase   bool
)

func init() {
	rootCmd.AddCommand(timingCmd)
	f := timingCmd.Flags()
	f.Float64VarP(&samplePoint, "sample-point", "s", 80, "sample point in percent")
	f.Uint16Var(&syncJump, "sjw", 3, "synchronization jump width in time quanta")
	f.BoolVarP(&dataPhase, "data", "d", false, "calculate the CAN FD data phase timing")
}

var timingCmd = &cobra.Command{
	Use:     "timing <baud>",
	Short:   "calculate the bit timing of a baud rate",
	Example: "  mcancalc timing 500k -s 87.5\n  mcancalc timing 2M --data -c 160M",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		baud, err := parseRate(args[0])
		if err != nil {
			return err
		}
		calc := mcan.CalculateNominalTiming
		if dataPhase {
			calc = mcan.CalculateDataTiming
		}
		t, err := calc(clockHz, baud, permyriad(samplePoint), syncJump)
		if err != nil {
			return fmt.Errorf("%d bit/s from %d Hz: %w", baud, clockHz, err)
		}
		printTiming(cmd.OutOrStdout(), t, clockHz, baud)
		return nil
	},
}

func printTiming(w io.Writer, t mcan.BitTiming, clock, baud uint32) {
	fmt.Fprintf(w, "%s %s\n", label("%-14s", "prescaler"), value("%d", t.Prescaler))
	fmt.Fprintf(w, "%s %s\n", label("%-14s", "time segment 1"), value("%d", t.TimeSegment1))
	fmt.Fprintf(w, "%s %s\n", label("%-14s", "time segment 2"), value("%d", t.TimeSegment2))
	fmt.Fprintf(w, "%s %s\n", label("%-14s", "sjw"), value("%d", t.SyncJumpWidth))
	fmt.Fprintf(w, "%s %s\n", label("%-14s", "quanta"), value("%d", t.TotalQuanta()))
	fmt.Fprintf(w, "%s %s\n", label("%-14s", "sample point"), value("%d.%02d%%", t.SamplePoint()/100, t.SamplePoint()%100))

	actual := t.BitRate(clock)
	br := value("%d bit/s", actual)
	if baud != 0 && actual != baud {
		br = alert("%d bit/s (%+.2f%%)", actual, (float64(actual)-float64(baud))*100/float64(baud))
	}
	fmt.Fprintf(w, "%s %s\n", label("%-14s", "bit rate"), br)
}
