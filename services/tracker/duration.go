package tracker

import (
	"regexp"
	"strconv"
)

var hoursRegex = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*hours?`)
var minsRegex = regexp.MustCompile(`(?i)(\d+)\s*mins?`)

// ToMinutes converts free-text durations like "5 hours 30 mins" into whole
// minutes. Either component may be missing and contributes zero, anything
// unparseable ("N/A" included) comes out as zero. Fractional hours are
// floored after the conversion.
func ToMinutes(text string) int {
	total := 0.0
	if m := hoursRegex.FindStringSubmatch(text); len(m) > 1 {
		hours, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			total += hours * 60
		}
	}
	if m := minsRegex.FindStringSubmatch(text); len(m) > 1 {
		mins, err := strconv.Atoi(m[1])
		if err == nil {
			total += float64(mins)
		}
	}
	return int(total)
}
