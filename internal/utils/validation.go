package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"gtd/internal/dates"
)

// relativePattern matches relative date formats like +7d, -3d, +2w, +1m
var relativePattern = regexp.MustCompile(`^([+-])(\d+)([dwm])$`)

// parseRelativeDate parses "tomorrow", "yesterday", "+7d", "-3d", "+2w", "+1m".
// Returns ok=false if the string is not a relative date format.
func parseRelativeDate(dateStr string, today time.Time) (dates.Date, bool, error) {
	lower := strings.ToLower(dateStr)

	switch lower {
	case "tomorrow":
		return dates.OnDay(today.AddDate(0, 0, 1)), true, nil
	case "yesterday":
		return dates.OnDay(today.AddDate(0, 0, -1)), true, nil
	}

	matches := relativePattern.FindStringSubmatch(lower)
	if matches == nil {
		return dates.Date{}, false, nil
	}

	num, err := strconv.Atoi(matches[2])
	if err != nil {
		return dates.Date{}, true, ErrInvalidDate(dateStr)
	}
	if matches[1] == "-" {
		num = -num
	}

	var result time.Time
	switch matches[3] {
	case "d":
		result = today.AddDate(0, 0, num)
	case "w":
		result = today.AddDate(0, 0, num*7)
	case "m":
		result = today.AddDate(0, num, 0)
	}
	return dates.OnDay(result), true, nil
}

// ParseDateFlag parses a date given on the command line.
// Supported: the fuzzy markers (now, today, soon, someday, nodate),
// tomorrow, yesterday, +Nd, -Nd, +Nw, +Nm and YYYY-MM-DD.
// An empty string clears the date.
func ParseDateFlag(dateStr string) (dates.Date, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return dates.NoDate(), nil
	}

	d, ok, err := parseRelativeDate(dateStr, time.Now())
	if err != nil {
		return dates.Date{}, err
	}
	if ok {
		return d, nil
	}

	d, err = dates.Parse(dateStr)
	if err != nil {
		return dates.Date{}, ErrInvalidDate(dateStr)
	}
	return d, nil
}
