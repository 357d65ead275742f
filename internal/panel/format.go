package panel

import (
	"fmt"
	"time"
)

// RelativeTime renders t relative to now: minutes and hours within the last
// twelve hours, a long date after that.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	diff := now.Sub(t)
	hours := int(diff / time.Hour)
	if hours < 12 {
		minutes := int(diff / time.Minute)
		if minutes < 1 {
			return "Just now"
		}
		if minutes < 60 {
			return fmt.Sprintf("%d minute%s ago", minutes, plural(minutes))
		}
		return fmt.Sprintf("%d hour%s ago", hours, plural(hours))
	}
	return longDate(t)
}

func longDate(t time.Time) string {
	return fmt.Sprintf("%s %d%s, %d %s", t.Month(), t.Day(), ordinalSuffix(t.Day()), t.Year(), t.Format("15:04"))
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}
