package format

import "fmt"

const (
	Byte     = 1
	KiloByte = Byte * 1000
	MegaByte = KiloByte * 1000
	GigaByte = MegaByte * 1000
)

// HumanBytes formats b with a decimal unit suffix.
func HumanBytes(b int64) string {
	var value float64
	var unit string

	switch {
	case b >= GigaByte:
		value, unit = float64(b)/GigaByte, "GB"
	case b >= MegaByte:
		value, unit = float64(b)/MegaByte, "MB"
	case b >= KiloByte:
		value, unit = float64(b)/KiloByte, "KB"
	default:
		return fmt.Sprintf("%d B", b)
	}

	if value >= 10 {
		return fmt.Sprintf("%.0f %s", value, unit)
	}
	return fmt.Sprintf("%.1f %s", value, unit)
}
