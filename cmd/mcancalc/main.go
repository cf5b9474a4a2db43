// Command mcancalc calculates MCAN bit timings, plans message RAM layouts
// and prints the register image a node configuration produces.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/tinygo-org/mcan/cmd/mcancalc/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
