// Package timeutil turns the timetable's local civil date+time values into
// offset-qualified timestamps in the institution's fixed timezone.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// Window is one occurrence's offset-qualified time range.
type Window struct {
	Start string
	End   string
	// Degraded is set when parsing failed and the timestamps were built by
	// naive concatenation with the fixed offset. Reminder accuracy is not
	// safety-critical, so callers log a warning instead of failing the job.
	Degraded bool
}

// NormalizeDate rewrites slash-separated dates to ISO form and zero-pads the
// components, e.g. "2025/9/1" -> "2025-09-01".
func NormalizeDate(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "/", "-"))
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return s
	}
	for i := 1; i < 3; i++ {
		if len(parts[i]) == 1 {
			parts[i] = "0" + parts[i]
		}
	}
	return strings.Join(parts, "-")
}

// NormalizeTime appends missing seconds and zero-pads the hour, e.g.
// "8:00" -> "08:00:00".
func NormalizeTime(s string) string {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) == 2 {
		parts = append(parts, "00")
	}
	if len(parts) == 3 && len(parts[0]) == 1 {
		parts[0] = "0" + parts[0]
	}
	return strings.Join(parts, ":")
}

// Compute builds the event window for one occurrence. Inputs are normalized
// before parsing; if parsing still fails the window degrades to string
// concatenation with the location's fixed offset appended.
func Compute(loc *time.Location, date, startTime, endTime string) Window {
	date = NormalizeDate(date)
	startTime = NormalizeTime(startTime)
	endTime = NormalizeTime(endTime)

	start, startErr := time.ParseInLocation(time.DateTime, date+" "+startTime, loc)
	end, endErr := time.ParseInLocation(time.DateTime, date+" "+endTime, loc)
	if startErr != nil || endErr != nil {
		offset := OffsetString(loc)
		return Window{
			Start:    fmt.Sprintf("%sT%s%s", date, startTime, offset),
			End:      fmt.Sprintf("%sT%s%s", date, endTime, offset),
			Degraded: true,
		}
	}

	return Window{
		Start: start.Format(time.RFC3339),
		End:   end.Format(time.RFC3339),
	}
}

// OffsetString formats the location's current UTC offset as "+08:00".
func OffsetString(loc *time.Location) string {
	_, secs := time.Now().In(loc).Zone()
	sign := "+"
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	return fmt.Sprintf("%s%02d:%02d", sign, secs/3600, (secs%3600)/60)
}
