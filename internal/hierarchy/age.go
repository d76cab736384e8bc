package hierarchy

import (
	"fmt"
	"time"
)

// humanAge renders the elapsed wall-clock time since created as a short
// human-readable string, e.g. "3d 2h 5m 1s".
func humanAge(created, now time.Time) string {
	elapsed := now.Sub(created)
	if elapsed < 0 {
		return "in the future"
	}

	days := int(elapsed.Hours()) / 24
	hours := int(elapsed.Hours()) % 24
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
