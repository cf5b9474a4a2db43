package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/tinygo-org/mcan/mcan"
)

var planPath string

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVarP(&planPath, "file", "f", "", "YAML plan file")
	planCmd.MarkFlagRequired("file")
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "configure nodes on a simulated module and print the register image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(planPath)
		if err != nil {
			return err
		}
		defer f.Close()
		p, err := parsePlan(f)
		if err != nil {
			return err
		}
		return runPlan(cmd.OutOrStdout(), p, clockHz, ramSize)
	},
}

// runPlan configures every node of p on a MemBus modelling the module and
// writes the timings, the message RAM layout and the non-zero words of
// the module to w. The clock and RAM size of p override clock and ram.
func runPlan(w io.Writer, p *planFile, clock, ram uint32) error {
	base, err := p.base()
	if err != nil {
		return err
	}
	if p.Clock != 0 {
		clock = uint32(p.Clock)
	}
	if p.RAMSize != 0 {
		ram = p.RAMSize
	}
	if err := checkRAMSize(ram); err != nil {
		return err
	}

	bus := mcan.NewMemBus()
	bus.ModelMCAN(base)
	m := mcan.NewModule(bus, mcan.ModuleConfig{
		Base:    base,
		RAMSize: ram,
		Clock:   mcan.Frequency(clock),
		Logger:  log.Default(),
	})
	m.Enable()

	for _, np := range p.Nodes {
		cfg, err := np.config()
		if err != nil {
			return fmt.Errorf("node %d: %w", np.ID, err)
		}
		cn, err := m.Claim(mcan.NodeID(np.ID))
		if err != nil {
			return fmt.Errorf("node %d: %w", np.ID, err)
		}
		n, err := cn.Configure(cfg)
		if err != nil {
			return fmt.Errorf("node %d: %w", np.ID, err)
		}
		fmt.Fprintln(w, label("node %d", np.ID), value("%s", n.FrameMode()))
		printTiming(w, n.NominalTiming(), clock, cfg.BitTiming.BaudRate)
		if n.FrameMode() == mcan.FDLongAndFast {
			fmt.Fprintln(w, label("data phase"))
			printTiming(w, n.DataTiming(), clock, cfg.FastBitTiming.BaudRate)
		}
		printRegions(w, base, n.RAM())
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, label("registers"))
	for _, a := range bus.Words() {
		fmt.Fprintf(w, "%s %s\n", label("%-14s", mcan.RegisterName(a.Addr-base)), value("0x%08x", a.Value))
	}
	return nil
}
