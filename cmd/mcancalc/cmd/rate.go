package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseRate parses a frequency or baud rate with an optional k or M
// suffix, such as 500k or 2.5M.
func parseRate(s string) (uint32, error) {
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "M"):
		mult, s = 1e6, strings.TrimSuffix(s, "M")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q", s)
	}
	v = math.Round(v * mult)
	if v <= 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("rate %v out of range", v)
	}
	return uint32(v), nil
}

// rate is a YAML scalar decoded with parseRate.
type rate uint32

func (r *rate) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseRate(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*r = rate(v)
	return nil
}

// permyriad converts a percentage to 1/100 percent.
func permyriad(percent float64) uint16 {
	return uint16(math.Round(percent * 100))
}
