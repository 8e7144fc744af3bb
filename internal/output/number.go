package output

import (
	"fmt"
	"math"
)

// Scale thresholds. Values strictly above a threshold switch tier; the
// divisor is binary (1024) while the threshold is decimal.
const (
	kiloThreshold = 1000
	megaThreshold = 1000000
	kilo          = 1024.0
	mega          = 1024.0 * 1024.0
)

// FormatNumber renders v with a K/M suffix for the console. It is cosmetic
// only; points always carry the raw value.
func FormatNumber(v float64) string {
	switch {
	case v > megaThreshold:
		return fmt.Sprintf("%.2fM", v/mega)
	case v > kiloThreshold:
		return fmt.Sprintf("%.2fK", v/kilo)
	case v == math.Trunc(v):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
