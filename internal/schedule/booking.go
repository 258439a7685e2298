package schedule

import (
	"fmt"
	"time"

	"github.com/jmorneau/icetime/internal/config"
)

// LogEntry is one timestamped line of the run's execution log.
type LogEntry struct {
	Time    time.Time
	Message string
}

// run is the run-scoped execution context. Every phase call receives
// it explicitly; there is no shared global state. Phases run strictly
// sequentially and each booking is validated and committed before the
// next is attempted, so no locking is needed.
type run struct {
	rules              config.Rules
	tun                Tuning
	start              time.Time
	end                time.Time
	weeks              int
	blocks             []*Block
	demands            map[string]*Demand
	ledger             *Ledger
	schedule           []Entry
	log                []LogEntry
	deadline           time.Time
	maxIterations      int
	emergencyThreshold float64
}

func (r *run) logf(format string, args ...any) {
	r.log = append(r.log, LogEntry{Time: time.Now(), Message: fmt.Sprintf(format, args...)})
}

func (r *run) expired() bool {
	return !r.deadline.IsZero() && time.Now().After(r.deadline)
}

// dayPolicy is the same-day rule in force for the calling phase.
type dayPolicy struct {
	MaxPerDay      int  // sessions allowed per team per date (given opt-in)
	PermitMultiple bool // phase grants a second session even without team opt-in
	BackToBack     bool // a second same-day session must be time-adjacent
	IgnoreQuota    bool // skip the weekly quota check entirely
	LenientQuota   bool // allow QuotaSlack x the weekly quota
	IgnoreCutoff   bool
}

// strictPolicy is the baseline for the quota-driven phases: one session
// per day, two for teams that opted in to multiples, quota enforced.
func (r *run) strictPolicy() dayPolicy {
	return dayPolicy{MaxPerDay: r.tun.MaxSessionsPerDay}
}

// blockAvailable checks whether a team could take its practice slot in
// this block under the given policy. Failures here are expected and
// frequent; the caller just moves to the next candidate.
func (r *run) blockAvailable(b *Block, d *Demand, pol dayPolicy) bool {
	t := &d.Team

	if !b.CanFit(t.PracticeDuration) {
		return false
	}
	if t.HasBlackoutOn(b.Date) {
		return false
	}

	if !pol.IgnoreQuota {
		week := weekNumber(b.Date, r.start)
		limit := d.ExpectedPerWeek
		if pol.LenientQuota {
			limit = int(float64(d.ExpectedPerWeek) * r.tun.QuotaSlack)
		}
		if d.WeeklyCount[week] >= limit {
			return false
		}
	}

	sessions := d.sessionsOn(b.Date)
	limit := 1
	if t.AllowMultiplePerDay || pol.PermitMultiple {
		limit = pol.MaxPerDay
	}
	if sessions >= limit {
		return false
	}
	if sessions >= 1 && pol.BackToBack {
		slot := b.NextStart().String() + "-" + b.NextStart().Add(t.PracticeDuration).String()
		if !r.ledger.AdjacentOn(t.Name, b.Date, slot) {
			return false
		}
	}

	if !pol.IgnoreCutoff && t.ViolatesLateCutoff(b.NextStart()) {
		return false
	}

	return true
}

// sessionDuration extends a booking to absorb an otherwise unusable
// short tail left in the block.
func (r *run) sessionDuration(b *Block, required int) int {
	tail := b.Remaining() - required
	if tail >= r.tun.AbsorbTailMinutes && tail < r.tun.MinUtilizationMinutes {
		return required + tail
	}
	return required
}

// bookPractice books a standard practice session for one team.
func (r *run) bookPractice(d *Demand, b *Block, force bool) bool {
	return r.bookSpan(d, b, r.sessionDuration(b, d.Team.PracticeDuration), force)
}

// bookSpan reserves block capacity for one team, validates against the
// ledger, and either commits the schedule entry and demand updates or
// rolls the reservation back. No partial state survives a failure.
func (r *run) bookSpan(d *Demand, b *Block, duration int, force bool) bool {
	t := &d.Team

	start, end, err := b.AddBooking(t.Name, duration, TypePractice)
	if err != nil {
		return false
	}
	timeSlot := start.String() + "-" + end.String()

	ok, _ := r.ledger.ValidateBooking(t.Name, b.Arena, b.Date, timeSlot, force)
	if !ok {
		b.PopBooking()
		return false
	}

	r.schedule = append(r.schedule, Entry{
		Team:     t.Name,
		Opponent: OpponentPractice,
		Arena:    b.Arena,
		Date:     b.Date,
		TimeSlot: timeSlot,
		Type:     TypePractice,
	})
	r.ledger.AddBooking(t.Name, b.Arena, b.Date, timeSlot, force)
	d.recordSession(b.Date, weekNumber(b.Date, r.start))
	r.retire(b)
	return true
}

// bookShared books one block jointly for two teams. The reserved
// duration is the longer of the two practice lengths, both teams must
// pass ledger validation, and both demand records update symmetrically.
func (r *run) bookShared(d1, d2 *Demand, b *Block, force bool) bool {
	t1, t2 := &d1.Team, &d2.Team
	required := t1.PracticeDuration
	if t2.PracticeDuration > required {
		required = t2.PracticeDuration
	}
	duration := r.sessionDuration(b, required)

	start, end, err := b.AddBooking(t1.Name+" & "+t2.Name, duration, TypeSharedPractice)
	if err != nil {
		return false
	}
	timeSlot := start.String() + "-" + end.String()

	if ok, _ := r.ledger.ValidateBooking(t1.Name, b.Arena, b.Date, timeSlot, force); !ok {
		b.PopBooking()
		return false
	}
	if ok, _ := r.ledger.ValidateBooking(t2.Name, b.Arena, b.Date, timeSlot, force); !ok {
		b.PopBooking()
		return false
	}

	r.schedule = append(r.schedule, Entry{
		Team:     t1.Name,
		Opponent: t2.Name,
		Arena:    b.Arena,
		Date:     b.Date,
		TimeSlot: timeSlot,
		Type:     TypeSharedPractice,
	})
	r.ledger.AddBooking(t1.Name, b.Arena, b.Date, timeSlot, true)
	r.ledger.AddBooking(t2.Name, b.Arena, b.Date, timeSlot, true)

	week := weekNumber(b.Date, r.start)
	d1.recordSession(b.Date, week)
	d2.recordSession(b.Date, week)
	r.retire(b)
	return true
}

// retire drops a block from the active pool once its remaining capacity
// is below the minimum session length.
func (r *run) retire(b *Block) {
	if b.Remaining() >= r.tun.MinSessionMinutes {
		return
	}
	for i, candidate := range r.blocks {
		if candidate == b {
			r.blocks = append(r.blocks[:i], r.blocks[i+1:]...)
			return
		}
	}
}
