package service

import (
	"fmt"
	"time"
)

// orderNoPrefix returns the per-day prefix, e.g. "K-20260301-".
func orderNoPrefix(day time.Time) string {
	return "K-" + day.Format("20060102") + "-"
}

// formatOrderNo appends the zero-padded daily sequence to prefix.
func formatOrderNo(prefix string, seq int32) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}
