package finance

import (
	"strconv"
	"strings"
)

// FormatDuration renders seconds as "Xh Ym Zs", dropping zero components.
// Zero renders as "0s".
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}

	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	parts := make([]string, 0, 3)
	if h > 0 {
		parts = append(parts, strconv.FormatInt(h, 10)+"h")
	}
	if m > 0 {
		parts = append(parts, strconv.FormatInt(m, 10)+"m")
	}
	if s > 0 {
		parts = append(parts, strconv.FormatInt(s, 10)+"s")
	}
	return strings.Join(parts, " ")
}

func secondsToHours(seconds int64) float64 {
	return float64(seconds) / 3600
}
