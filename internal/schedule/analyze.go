package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TeamAllocation is the post-run accounting for one team.
type TeamAllocation struct {
	Team           string
	ExpectedWeekly int
	ExpectedTotal  int
	ActualTotal    int
	MissingWeeks   []int
	FullyAllocated bool
}

// Summary is the post-run analysis of the whole schedule.
type Summary struct {
	Teams             []TeamAllocation
	Underallocated    []string
	TotalWeeks        int
	SameDayViolations []string
}

// analyze compares what every team received against its season target
// and flags weeks that came up short.
func analyze(r *run) *Summary {
	s := &Summary{TotalWeeks: r.weeks}

	for _, d := range sortedDemands(r.demands, false) {
		alloc := TeamAllocation{
			Team:           d.Team.Name,
			ExpectedWeekly: d.ExpectedPerWeek,
			ExpectedTotal:  d.TotalTarget,
			ActualTotal:    d.totalScheduled(),
		}
		if d.ExpectedPerWeek > 0 {
			for week := 1; week <= r.weeks; week++ {
				if d.WeeklyCount[week] < d.ExpectedPerWeek {
					alloc.MissingWeeks = append(alloc.MissingWeeks, week)
				}
			}
		}
		alloc.FullyAllocated = alloc.ActualTotal >= alloc.ExpectedTotal
		if !alloc.FullyAllocated {
			s.Underallocated = append(s.Underallocated, d.Team.Name)
		}
		s.Teams = append(s.Teams, alloc)
	}

	s.SameDayViolations = sameDayViolations(r.schedule)
	return s
}

// sameDayViolations finds teams whose multiple sessions on one date are
// not time-adjacent.
func sameDayViolations(entries []Entry) []string {
	type teamDay struct {
		team string
		date time.Time
	}
	spans := make(map[teamDay][]string)
	add := func(name string, e Entry) {
		key := teamDay{name, dayKey(e.Date)}
		spans[key] = append(spans[key], e.TimeSlot)
	}
	for _, e := range entries {
		add(e.Team, e)
		if e.Type == TypeSharedPractice && e.Opponent != OpponentPractice && e.Opponent != OpponentTBD {
			add(e.Opponent, e)
		}
	}

	keys := make([]teamDay, 0, len(spans))
	for k := range spans {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].team != keys[j].team {
			return keys[i].team < keys[j].team
		}
		return keys[i].date.Before(keys[j].date)
	})

	var violations []string
	for _, k := range keys {
		slots := spans[k]
		if len(slots) < 2 {
			continue
		}
		if !allAdjacent(slots) {
			violations = append(violations, fmt.Sprintf(
				"%s has %d non-adjacent sessions on %s",
				k.team, len(slots), k.date.Format("2006-01-02")))
		}
	}
	return violations
}

// allAdjacent reports whether the time slots form one contiguous chain.
func allAdjacent(slots []string) bool {
	type span struct{ start, end int }
	spans := make([]span, 0, len(slots))
	for _, s := range slots {
		start, end, ok := slotBounds(s)
		if !ok {
			return false
		}
		spans = append(spans, span{int(start), int(end)})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start != spans[i-1].end {
			return false
		}
	}
	return true
}

// dedupe removes exact duplicate entries. The key covers every field,
// so two legitimately distinct sessions are never collapsed and a
// second pass over an already clean schedule changes nothing.
func dedupe(entries []Entry) []Entry {
	type key struct {
		team, opponent, arena, slot, entryType string
		date                                   time.Time
	}
	seen := make(map[key]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		k := key{e.Team, e.Opponent, e.Arena, e.TimeSlot, e.Type, dayKey(e.Date)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// sortEntries orders a schedule by date, then start time, then arena
// and team for determinism.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		si, _, _ := slotBounds(entries[i].TimeSlot)
		sj, _, _ := slotBounds(entries[j].TimeSlot)
		if si != sj {
			return si < sj
		}
		if entries[i].Arena != entries[j].Arena {
			return entries[i].Arena < entries[j].Arena
		}
		return entries[i].Team < entries[j].Team
	})
}

// FormatSummary renders the allocation report as plain text.
func (s *Summary) FormatSummary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Season length: %d weeks\n\n", s.TotalWeeks)
	for _, t := range s.Teams {
		status := "OK"
		if !t.FullyAllocated {
			status = "SHORT"
		}
		fmt.Fprintf(&b, "%-24s %3d / %3d sessions  [%s]\n",
			t.Team, t.ActualTotal, t.ExpectedTotal, status)
		if len(t.MissingWeeks) > 0 {
			fmt.Fprintf(&b, "%-24s short in weeks %s\n", "",
				joinInts(t.MissingWeeks))
		}
	}

	if len(s.Underallocated) > 0 {
		fmt.Fprintf(&b, "\nUnderallocated teams: %s\n", strings.Join(s.Underallocated, ", "))
	}
	if len(s.SameDayViolations) > 0 {
		b.WriteString("\nSame-day violations:\n")
		for _, v := range s.SameDayViolations {
			fmt.Fprintf(&b, "  - %s\n", v)
		}
	}
	return b.String()
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}
