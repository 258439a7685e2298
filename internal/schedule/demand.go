package schedule

import (
	"sort"
	"time"

	"github.com/jmorneau/icetime/internal/config"
	"github.com/jmorneau/icetime/internal/team"
)

// Demand tracks one team's remaining season need. Needed only ever
// decreases and never goes below zero.
type Demand struct {
	Team            team.Team
	Needed          int
	WeeklyCount     map[int]int
	ScheduledDates  map[time.Time]int
	ExpectedPerWeek int
	TotalTarget     int
	Priority        int
	Complexity      int
}

func (d *Demand) recordSession(date time.Time, week int) {
	if d.Needed > 0 {
		d.Needed--
	}
	d.WeeklyCount[week]++
	d.ScheduledDates[dayKey(date)]++
}

// totalScheduled is the number of sessions already on the calendar.
func (d *Demand) totalScheduled() int {
	total := 0
	for _, n := range d.ScheduledDates {
		total += n
	}
	return total
}

// sessionsOn returns how many sessions the team already has on a date.
func (d *Demand) sessionsOn(date time.Time) int {
	return d.ScheduledDates[dayKey(date)]
}

// allocatedFraction is the share of the season target already booked.
func (d *Demand) allocatedFraction() float64 {
	if d.TotalTarget == 0 {
		return 1
	}
	return float64(d.TotalTarget-d.Needed) / float64(d.TotalTarget)
}

// weekNumber maps a date to its 1-based season week.
func weekNumber(date, seasonStart time.Time) int {
	days := int(date.Sub(seasonStart).Hours() / 24)
	return days/7 + 1
}

// totalWeeks returns the number of scheduling weeks in the season.
func totalWeeks(start, end time.Time) int {
	weeks := int(end.Sub(start).Hours()/24) / 7
	if weeks < 1 {
		weeks = 1
	}
	return weeks
}

// buildDemands creates one demand record per team, crediting any
// pre-assigned entries already in the schedule.
func buildDemands(teams map[string]team.Team, rules config.Rules, start, end time.Time, entries []Entry) map[string]*Demand {
	weeks := totalWeeks(start, end)
	demands := make(map[string]*Demand, len(teams))

	for name, t := range teams {
		perWeek := rules.SessionsPerWeek(&t)
		target := perWeek * weeks

		d := &Demand{
			Team:            t,
			Needed:          target,
			WeeklyCount:     make(map[int]int),
			ScheduledDates:  make(map[time.Time]int),
			ExpectedPerWeek: perWeek,
			TotalTarget:     target,
			Priority:        t.Priority(),
			Complexity:      t.Complexity(),
		}
		demands[name] = d
	}

	for _, e := range entries {
		week := weekNumber(e.Date, start)
		if d, ok := demands[e.Team]; ok {
			d.recordSession(e.Date, week)
		}
		if e.Type == TypeSharedPractice && e.Opponent != OpponentPractice && e.Opponent != OpponentTBD {
			if d, ok := demands[e.Opponent]; ok {
				d.recordSession(e.Date, week)
			}
		}
	}

	return demands
}

// byConstraint orders demand records most-constrained first, breaking
// ties by allocation priority then name for determinism.
func byConstraint(demands map[string]*Demand, onlyNeeding bool) []*Demand {
	ordered := sortedDemands(demands, onlyNeeding)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Complexity != ordered[j].Complexity {
			return ordered[i].Complexity > ordered[j].Complexity
		}
		return ordered[i].Priority < ordered[j].Priority
	})
	return ordered
}

// byPriority orders demand records by allocation priority (lower first).
func byPriority(demands map[string]*Demand, onlyNeeding bool) []*Demand {
	ordered := sortedDemands(demands, onlyNeeding)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	return ordered
}

func sortedDemands(demands map[string]*Demand, onlyNeeding bool) []*Demand {
	ordered := make([]*Demand, 0, len(demands))
	for _, d := range demands {
		if onlyNeeding && d.Needed <= 0 {
			continue
		}
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Team.Name < ordered[j].Team.Name
	})
	return ordered
}

func dayKey(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
}
