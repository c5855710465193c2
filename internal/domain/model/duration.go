package model

import "strings"

type DurationUnit string

const (
	DurationDay   DurationUnit = "DAY"
	DurationWeek  DurationUnit = "WEEK"
	DurationMonth DurationUnit = "MONTH"
	DurationYear  DurationUnit = "YEAR"
)

func ParseDurationUnit(s string) (DurationUnit, bool) {
	u := DurationUnit(strings.ToUpper(strings.TrimSpace(s)))
	switch u {
	case DurationDay, DurationWeek, DurationMonth, DurationYear:
		return u, true
	}
	return "", false
}
