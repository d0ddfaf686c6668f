// Package worktime parses and normalizes the durations logged against issues.
package worktime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// durationPattern accepts (<int>h)?(<int>m)? with optional whitespace between
// the two parts. Units are matched case-insensitively.
var durationPattern = regexp.MustCompile(`^(?:(\d+)h)?\s*(?:(\d+)m)?$`)

// unitPattern finds every <int><unit> token, used to explain rejected input.
var unitPattern = regexp.MustCompile(`(\d+)\s*([a-z]+)`)

// maxHours bounds the parsed value well below time.Duration overflow.
const maxHours = 24 * 365

// DurationParseError is returned when a duration expression is rejected.
type DurationParseError struct {
	Input  string
	Reason string
}

func (e *DurationParseError) Error() string {
	return fmt.Sprintf("invalid duration %q: %s", e.Input, e.Reason)
}

// Parse converts an expression such as "1h30m", "45m" or "2h" to a duration.
// The hour part must come before the minute part and the total must be positive.
func Parse(input string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return 0, &DurationParseError{Input: input, Reason: "empty input, expected something like 1h30m"}
	}

	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &DurationParseError{Input: input, Reason: explain(s)}
	}

	var hours, minutes int64
	var err error
	if m[1] != "" {
		if hours, err = strconv.ParseInt(m[1], 10, 64); err != nil || hours > maxHours {
			return 0, &DurationParseError{Input: input, Reason: "hour value out of range"}
		}
	}
	if m[2] != "" {
		if minutes, err = strconv.ParseInt(m[2], 10, 64); err != nil || minutes > maxHours*60 {
			return 0, &DurationParseError{Input: input, Reason: "minute value out of range"}
		}
	}

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if d <= 0 {
		return 0, &DurationParseError{Input: input, Reason: "duration must be greater than zero"}
	}
	return d, nil
}

func explain(s string) string {
	tokens := unitPattern.FindAllStringSubmatch(s, -1)
	seenMinutes := false
	for _, tok := range tokens {
		switch tok[2] {
		case "h":
			if seenMinutes {
				return "hours must come before minutes"
			}
		case "m":
			seenMinutes = true
		default:
			return fmt.Sprintf("unsupported unit %q (use h and m)", tok[2])
		}
	}
	return "expected <hours>h<minutes>m, e.g. 1h30m, 45m or 2h"
}

// RoundToMinute rounds d to the nearest whole minute. Half a minute rounds up
// and anything shorter than a minute is logged as one minute.
func RoundToMinute(d time.Duration) time.Duration {
	r := d.Round(time.Minute)
	if r < time.Minute {
		return time.Minute
	}
	return r
}

// Format renders d in Jira timeSpent notation ("1h30m", "45m", "2h").
// Seconds are dropped.
func Format(d time.Duration) string {
	total := int64(d / time.Minute)
	if total <= 0 {
		return "0m"
	}
	h, m := total/60, total%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%dm", h, m)
	}
}
