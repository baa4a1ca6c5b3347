package tui

import (
	"fmt"
	"time"
)

// FormatBytes returns a human-readable size with one decimal (B, KB, MB...).
func FormatBytes(size int64) string {
	value := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if value < 1024 && value > -1024 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.1f TB", value)
}

// FormatDuration renders an elapsed time as "Xm Y.Ys" or "Y.Ys".
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()
	if seconds >= 60 {
		minutes := int(seconds) / 60
		return fmt.Sprintf("%dm %.1fs", minutes, seconds-float64(minutes*60))
	}
	return fmt.Sprintf("%.1fs", seconds)
}
