package hierarchy

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard 5-field cron expressions
// (minute hour day-of-month month day-of-week).
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var weekdayNames = []string{
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
}

// InterpretSchedule renders a 5-field cron expression as human-readable
// text. A small set of canonical patterns gets an idiomatic phrasing;
// everything else falls back to a literal per-field description.
func InterpretSchedule(expr string) string {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 5 {
		return "Invalid cron format"
	}
	if _, err := scheduleParser.Parse(expr); err != nil {
		return "Invalid cron format"
	}

	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]
	everyDay := dom == "*" && month == "*" && dow == "*"

	if minute == "*" && hour == "*" && everyDay {
		return "Every minute"
	}

	if interval, ok := strings.CutPrefix(minute, "*/"); ok && hour == "*" && everyDay {
		if interval == "1" {
			return "Every minute"
		}
		return fmt.Sprintf("Every %s minutes", interval)
	}

	if interval, ok := strings.CutPrefix(hour, "*/"); ok && minute == "0" && everyDay {
		if interval == "1" {
			return "Every hour"
		}
		return fmt.Sprintf("Every %s hours", interval)
	}

	if minute == "0" && hour == "0" && everyDay {
		return "Daily at midnight"
	}

	if minute == "0" && hour == "0" && dom == "*" && month == "*" && dow == "0" {
		return "Weekly on Sunday at midnight"
	}

	if minute == "0" && hour == "0" && dom == "1" && month == "*" && dow == "*" {
		return "Monthly on the 1st at midnight"
	}

	if h, m, ok := numericTime(hour, minute); ok {
		if everyDay {
			return fmt.Sprintf("Daily at %02d:%02d", h, m)
		}
		if dom == "*" && month == "*" {
			if d, ok := numericField(dow); ok && d >= 0 && d <= 6 {
				return fmt.Sprintf("Weekly on %s at %02d:%02d", weekdayNames[d], h, m)
			}
		}
		if month == "*" && dow == "*" {
			if d, ok := numericField(dom); ok {
				return fmt.Sprintf("Monthly on day %d at %02d:%02d", d, h, m)
			}
		}
	}

	return fmt.Sprintf("minute: %s, hour: %s, day-of-month: %s, month: %s, day-of-week: %s",
		minute, hour, dom, month, dow)
}

func numericTime(hour, minute string) (int, int, bool) {
	h, hok := numericField(hour)
	m, mok := numericField(minute)
	if !hok || !mok {
		return 0, 0, false
	}
	return h, m, true
}

func numericField(field string) (int, bool) {
	var n int
	if _, err := fmt.Sscanf(field, "%d", &n); err != nil {
		return 0, false
	}
	// Reject trailing garbage such as "5,10" or "5-8".
	if fmt.Sprintf("%d", n) != field {
		return 0, false
	}
	return n, true
}
