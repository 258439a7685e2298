package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/jmorneau/icetime/internal/config"
	"github.com/jmorneau/icetime/internal/team"
)

type ledgerEntry struct {
	Date     time.Time
	TimeSlot string
	Other    string // arena for team bookings, team for arena bookings
}

// Ledger records committed bookings and validates new ones against
// team time overlaps, arena double-booking, and excessive same-day
// consecutive sessions.
type Ledger struct {
	teamBookings   map[string][]ledgerEntry
	arenaBookings  map[string][]ledgerEntry
	maxConsecutive int
}

// NewLedger returns an empty ledger allowing at most maxConsecutive
// time-adjacent sessions per team per day.
func NewLedger(maxConsecutive int) *Ledger {
	return &Ledger{
		teamBookings:   make(map[string][]ledgerEntry),
		arenaBookings:  make(map[string][]ledgerEntry),
		maxConsecutive: maxConsecutive,
	}
}

// Reset clears the ledger and re-indexes it from an existing schedule.
func (l *Ledger) Reset(entries []Entry) {
	l.teamBookings = make(map[string][]ledgerEntry)
	l.arenaBookings = make(map[string][]ledgerEntry)
	for _, e := range entries {
		if e.Team == "" || e.Arena == "" || e.TimeSlot == "" {
			continue
		}
		l.commit(e.Team, e.Arena, e.Date, e.TimeSlot)
		if e.Type == TypeSharedPractice && e.Opponent != OpponentPractice && e.Opponent != OpponentTBD {
			l.commit(e.Opponent, e.Arena, e.Date, e.TimeSlot)
		}
	}
}

// ValidateBooking checks a tentative booking and returns whether it may
// be committed along with the conflict reasons when it may not. With
// force set, arena conflicts and the consecutive-session limit are
// waived; a team overlapping itself never is.
func (l *Ledger) ValidateBooking(teamName, arena string, date time.Time, timeSlot string, force bool) (bool, []string) {
	var conflicts []string

	newStart, newEnd, haveSpan := slotBounds(timeSlot)
	for _, existing := range l.teamBookings[teamName] {
		if !existing.Date.Equal(date) {
			continue
		}
		same := existing.TimeSlot == timeSlot
		if !same {
			s, e, ok := slotBounds(existing.TimeSlot)
			if !haveSpan || !ok || e <= newStart || s >= newEnd {
				continue
			}
		}
		if same && existing.Other == arena {
			conflicts = append(conflicts, fmt.Sprintf(
				"duplicate booking: team %s already has %s on %s",
				teamName, timeSlot, date.Format("2006-01-02")))
		} else {
			conflicts = append(conflicts, fmt.Sprintf(
				"team %s already booked at %s for %s on %s",
				teamName, existing.Other, existing.TimeSlot, date.Format("2006-01-02")))
		}
	}

	if !force {
		for _, existing := range l.arenaBookings[arena] {
			if existing.Date.Equal(date) && existing.TimeSlot == timeSlot && existing.Other != teamName {
				conflicts = append(conflicts, fmt.Sprintf(
					"arena %s already booked by %s for %s on %s",
					arena, existing.Other, timeSlot, date.Format("2006-01-02")))
			}
		}

		if run := l.consecutiveRun(teamName, date, timeSlot); run > l.maxConsecutive {
			conflicts = append(conflicts, fmt.Sprintf(
				"team %s would have %d consecutive sessions on %s (max %d)",
				teamName, run, date.Format("2006-01-02"), l.maxConsecutive))
		}
	}

	return len(conflicts) == 0, conflicts
}

// AddBooking re-validates then commits to both indices; it only commits
// while still valid, so double commits are safe.
func (l *Ledger) AddBooking(teamName, arena string, date time.Time, timeSlot string, force bool) bool {
	ok, _ := l.ValidateBooking(teamName, arena, date, timeSlot, force)
	if !ok {
		return false
	}
	l.commit(teamName, arena, date, timeSlot)
	return true
}

func (l *Ledger) commit(teamName, arena string, date time.Time, timeSlot string) {
	l.teamBookings[teamName] = append(l.teamBookings[teamName], ledgerEntry{date, timeSlot, arena})
	l.arenaBookings[arena] = append(l.arenaBookings[arena], ledgerEntry{date, timeSlot, teamName})
}

// SessionsOn counts committed sessions for a team on a date.
func (l *Ledger) SessionsOn(teamName string, date time.Time) int {
	count := 0
	for _, e := range l.teamBookings[teamName] {
		if e.Date.Equal(date) {
			count++
		}
	}
	return count
}

// AdjacentOn reports whether the slot is back-to-back with one of the
// team's existing sessions on the date.
func (l *Ledger) AdjacentOn(teamName string, date time.Time, timeSlot string) bool {
	start, end, ok := slotBounds(timeSlot)
	if !ok {
		return false
	}
	for _, e := range l.teamBookings[teamName] {
		if !e.Date.Equal(date) {
			continue
		}
		s, en, ok := slotBounds(e.TimeSlot)
		if !ok {
			continue
		}
		if en == start || end == s {
			return true
		}
	}
	return false
}

// consecutiveRun computes the length of the time-adjacent chain the new
// slot would create among the team's same-day bookings.
func (l *Ledger) consecutiveRun(teamName string, date time.Time, newSlot string) int {
	type span struct{ start, end team.TimeOfDay }

	start, end, ok := slotBounds(newSlot)
	if !ok {
		return 1
	}
	spans := []span{{start, end}}
	for _, e := range l.teamBookings[teamName] {
		if !e.Date.Equal(date) {
			continue
		}
		if s, en, ok := slotBounds(e.TimeSlot); ok {
			spans = append(spans, span{s, en})
		}
	}
	if len(spans) == 1 {
		return 1
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	best, run := 1, 1
	for i := 1; i < len(spans); i++ {
		if spans[i].start == spans[i-1].end {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 1
		}
	}
	return best
}

func slotBounds(timeSlot string) (team.TimeOfDay, team.TimeOfDay, bool) {
	w, ok := config.ParseWindowString(timeSlot)
	if !ok {
		return 0, 0, false
	}
	return w.Start, w.End, true
}
