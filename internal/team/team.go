package team

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Type classifies a team as house league or competitive.
type Type string

const (
	House       Type = "house"
	Competitive Type = "competitive"
)

// TimeOfDay is a clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return TimeOfDay(hh*60 + mm), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Add returns the time shifted by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

// Window is a preferred time range on one weekday.
type Window struct {
	Start  TimeOfDay
	End    TimeOfDay
	Strict bool
}

// Team is the canonical, normalized team shape consumed by the engine.
// Legacy configuration variants are folded into this form by the config
// package before the engine ever sees them.
type Team struct {
	Name                string
	Age                 string // age tag as configured, e.g. "U9"
	Type                Type
	PracticeDuration    int // minutes
	GameDuration        int // minutes
	AllowMultiplePerDay bool
	AllowSharedIce      bool
	MandatorySharedIce  bool
	LateIceCutoff       *TimeOfDay
	Preferred           map[time.Weekday][]Window
	Blackouts           []time.Time
}

var agePattern = regexp.MustCompile(`\d+`)

// AgeNumeric extracts the numeric age from the age tag ("U9" -> 9).
// Returns 0 when no number is present.
func (t *Team) AgeNumeric() int {
	m := agePattern.FindString(t.Age)
	if m == "" {
		return 0
	}
	var age int
	fmt.Sscanf(m, "%d", &age)
	return age
}

var tierPattern = regexp.MustCompile(`(?i)U\d+\s*(AA|BB|A|B|C)\b`)

// Tier returns the competitive sub-classification (AA/A/BB/B/C) parsed
// from the team name, or "HOUSE" for house teams.
func (t *Team) Tier() string {
	if t.Type == House {
		return "HOUSE"
	}
	if m := tierPattern.FindStringSubmatch(t.Name); m != nil {
		return strings.ToUpper(m[1])
	}
	return "C"
}

// HasStrictPreferences reports whether any preferred window is strict.
func (t *Team) HasStrictPreferences() bool {
	for _, windows := range t.Preferred {
		for _, w := range windows {
			if w.Strict {
				return true
			}
		}
	}
	return false
}

// HasMandatoryShared reports whether this team must always be paired.
// Mandatory sharing implies the team allows sharing at all.
func (t *Team) HasMandatoryShared() bool {
	return t.MandatorySharedIce && t.AllowSharedIce
}

// HasBlackoutOn reports whether the team cannot be booked on the date.
func (t *Team) HasBlackoutOn(date time.Time) bool {
	for _, b := range t.Blackouts {
		if sameDay(b, date) {
			return true
		}
	}
	return false
}

// WindowsOn returns the preferred windows for a weekday, if any.
func (t *Team) WindowsOn(day time.Weekday) []Window {
	return t.Preferred[day]
}

// ViolatesLateCutoff reports whether a session starting at the given
// time would begin after the team's late-ice cutoff. A start exactly at
// the cutoff is still allowed.
func (t *Team) ViolatesLateCutoff(start TimeOfDay) bool {
	return t.LateIceCutoff != nil && start > *t.LateIceCutoff
}

// Priority computes the allocation priority; lower values are served
// first. Younger teams, competitive teams, and higher tiers rank ahead,
// and mandatory-shared or strict-preference teams are boosted so they
// claim scarce windows before easier teams consume them.
func (t *Team) Priority() int {
	priority := 0

	if age := t.AgeNumeric(); age > 0 {
		priority += age / 2
	} else {
		priority += 25
	}

	if t.Type != Competitive {
		priority += 10
	} else {
		switch t.Tier() {
		case "AA":
			priority += 0
		case "A":
			priority += 1
		case "BB":
			priority += 2
		case "B":
			priority += 3
		case "C":
			priority += 4
		default:
			priority += 5
		}
	}

	if t.HasMandatoryShared() {
		priority -= 100
	}
	if t.HasStrictPreferences() {
		priority -= 50
	}

	return priority
}

// Complexity scores how hard a team is to place; higher is harder.
// Phases serve the most-constrained teams first so that flexible teams
// do not consume the few blocks a constrained team could use.
func (t *Team) Complexity() int {
	complexity := 0
	if t.HasMandatoryShared() {
		complexity += 40
	}
	if t.HasStrictPreferences() {
		complexity += 30
	}
	complexity += 2 * len(t.Blackouts)
	if age := t.AgeNumeric(); age > 0 && age <= 9 {
		complexity += 15
	}
	if !t.AllowSharedIce {
		complexity += 20
	}
	return complexity
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
