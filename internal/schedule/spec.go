// Package schedule turns a task's schedule descriptor into its next
// eligible run instant. It is pure: no clocks, no I/O, deterministic for a
// given input.
package schedule

import (
	"strconv"
	"strings"
)

// SpecKind tags the recognized cron pattern families. Everything outside
// this family is Unsupported and evaluated with a degraded fallback instead
// of an error.
type SpecKind int

const (
	SpecUnsupported SpecKind = iota
	SpecMinutely
	SpecHourly
	SpecDailyAt
	SpecWeekdaysAt
	SpecWeekendAt
)

// Spec is the parsed form of a cron-style schedule string. Only the preset
// family below is interpreted exactly; Raw always carries the original
// string so the fallback case stays inspectable.
type Spec struct {
	Kind   SpecKind
	Hour   int
	Minute int
	Raw    string
}

// ParseCron classifies a cron string into the preset family. The recognized
// patterns are:
//
//	* * * * *        every minute
//	0 * * * *        every hour on the hour
//	0 H * * *        daily at hour H
//	M H * * *        daily at H:M
//	0 H * * 1-5      weekdays at hour H
//	0 H * * 0,6      weekend at hour H (also 6,0 and 6-7)
//
// Any other string parses to an Unsupported spec, never an error.
func ParseCron(raw string) Spec {
	expr := strings.TrimSpace(raw)
	s := Spec{Kind: SpecUnsupported, Raw: raw}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return s
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]
	if dom != "*" || month != "*" {
		return s
	}

	if minute == "*" && hour == "*" && dow == "*" {
		s.Kind = SpecMinutely
		return s
	}

	m, mOK := parseField(minute, 0, 59)
	h, hOK := parseField(hour, 0, 23)

	if minute == "0" && hour == "*" && dow == "*" {
		s.Kind = SpecHourly
		return s
	}
	if !mOK || !hOK {
		return s
	}

	switch dow {
	case "*":
		s.Kind = SpecDailyAt
	case "1-5":
		if m != 0 {
			return s
		}
		s.Kind = SpecWeekdaysAt
	case "0,6", "6,0", "6-7":
		if m != 0 {
			return s
		}
		s.Kind = SpecWeekendAt
	default:
		return s
	}
	s.Hour = h
	s.Minute = m
	return s
}

func parseField(f string, lo, hi int) (int, bool) {
	n, err := strconv.Atoi(f)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}
