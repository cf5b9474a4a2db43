package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tinygo-org/mcan/mcan"
)

func init() {
	rootCmd.AddCommand(layoutCmd)
}

var layoutCmd = &cobra.Command{
	Use:   "layout <kind:count[:bytes][@offset]>...",
	Short: "plan message RAM regions",
	Long: `layout places message RAM regions in the order given and prints the
result. Kinds are std, ext, fifo0, fifo1, rxbuf, txev and txbuf. bytes is
the data field size of buffer and FIFO elements, 8 by default.`,
	Example: "  mcancalc layout std:4 fifo0:16:64 txbuf:8:64@0x1000",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkRAMSize(ramSize); err != nil {
			return err
		}
		l := mcan.NewLayout(ramSize)
		for _, arg := range args {
			req, err := parseRegion(arg)
			if err != nil {
				return err
			}
			if _, err := l.Place(req); err != nil {
				return fmt.Errorf("%s: %w", arg, err)
			}
		}
		printRegions(cmd.OutOrStdout(), 0, l.Regions())
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", label("%-17s", "free"), value("%d bytes", l.Free()))
		return nil
	},
}

var regionKinds = map[string]mcan.RegionKind{
	"std":   mcan.StandardFilters,
	"ext":   mcan.ExtendedFilters,
	"fifo0": mcan.RxFIFO0,
	"fifo1": mcan.RxFIFO1,
	"rxbuf": mcan.RxBuffers,
	"txev":  mcan.TxEventFIFO,
	"txbuf": mcan.TxBuffers,
}

func parseRegion(s string) (mcan.RegionRequest, error) {
	var req mcan.RegionRequest
	desc, at, fixed := strings.Cut(s, "@")
	if fixed {
		off, err := strconv.ParseUint(at, 0, 32)
		if err != nil {
			return req, fmt.Errorf("%s: invalid offset %q", s, at)
		}
		if err := checkOffset(uint32(off)); err != nil {
			return req, fmt.Errorf("%s: %w", s, err)
		}
		req.Start = mcan.At(uint32(off))
	}
	parts := strings.Split(desc, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return req, fmt.Errorf("%s: want kind:count[:bytes]", s)
	}
	kind, ok := regionKinds[parts[0]]
	if !ok {
		return req, fmt.Errorf("%s: unknown region kind %q", s, parts[0])
	}
	req.Kind = kind
	n, err := strconv.ParseUint(parts[1], 0, 32)
	if err != nil || n == 0 {
		return req, fmt.Errorf("%s: invalid count %q", s, parts[1])
	}
	req.Count = uint32(n)
	if len(parts) == 3 {
		b, err := strconv.Atoi(parts[2])
		if err != nil {
			return req, fmt.Errorf("%s: invalid data field size %q", s, parts[2])
		}
		if req.FieldSize, err = fieldSize(b); err != nil {
			return req, fmt.Errorf("%s: %w", s, err)
		}
	}
	return req, nil
}

// printRegions lists regions with their addresses relative to base.
func printRegions(w io.Writer, base uint32, regions []mcan.Region) {
	for _, r := range regions {
		fmt.Fprintf(w, "%s %s %s\n",
			label("%-17s", r.Kind),
			value("0x%04x-0x%04x", base+r.Start, base+r.End()-1),
			fmt.Sprintf("%d x %d bytes", r.Count, r.ElementSize))
	}
}
