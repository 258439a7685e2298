package schedule

import (
	"testing"
	"time"

	"github.com/jmorneau/icetime/internal/team"
)

// testRun builds a one-week run context over the given teams and
// blocks. Weekly quotas default to 1 unless overridden.
func testRun(teams []team.Team, perWeek map[string]int, blocks []*Block) *run {
	demands := make(map[string]*Demand, len(teams))
	for _, tm := range teams {
		pw, ok := perWeek[tm.Name]
		if !ok {
			pw = 1
		}
		demands[tm.Name] = &Demand{
			Team:            tm,
			Needed:          pw,
			WeeklyCount:     make(map[int]int),
			ScheduledDates:  make(map[time.Time]int),
			ExpectedPerWeek: pw,
			TotalTarget:     pw,
			Priority:        tm.Priority(),
			Complexity:      tm.Complexity(),
		}
	}
	return &run{
		tun:                DefaultTuning(),
		start:              day(2026, 9, 7),
		end:                day(2026, 9, 13),
		weeks:              1,
		blocks:             blocks,
		demands:            demands,
		ledger:             NewLedger(2),
		maxIterations:      100,
		emergencyThreshold: 0.8,
	}
}

func houseTeam(name, age string) team.Team {
	return team.Team{Name: name, Age: age, Type: team.House, PracticeDuration: 60, GameDuration: 60, AllowSharedIce: true}
}

func TestBookPractice(t *testing.T) {
	u9 := houseTeam("U9 Red", "U9")
	b := &Block{Arena: "Rink", Date: day(2026, 9, 7), Start: 17 * 60, End: 19 * 60}
	r := testRun([]team.Team{u9}, nil, []*Block{b})
	d := r.demands["U9 Red"]

	if !r.bookPractice(d, b, false) {
		t.Fatal("booking should succeed")
	}
	if len(r.schedule) != 1 {
		t.Fatalf("schedule = %d entries, want 1", len(r.schedule))
	}
	e := r.schedule[0]
	if e.TimeSlot != "17:00-18:00" || e.Type != TypePractice || e.Opponent != OpponentPractice {
		t.Errorf("entry = %+v", e)
	}
	if d.Needed != 0 {
		t.Errorf("needed = %d, want 0", d.Needed)
	}
	if d.WeeklyCount[1] != 1 {
		t.Errorf("week 1 count = %d, want 1", d.WeeklyCount[1])
	}
	if r.ledger.SessionsOn("U9 Red", b.Date) != 1 {
		t.Error("ledger should record the session")
	}
}

func TestBookPracticeRollsBackOnConflict(t *testing.T) {
	u9 := houseTeam("U9 Red", "U9")
	b := &Block{Arena: "Rink", Date: day(2026, 9, 7), Start: 17 * 60, End: 18 * 60}
	r := testRun([]team.Team{u9}, nil, []*Block{b})
	d := r.demands["U9 Red"]

	// Another team already holds this arena slot.
	r.ledger.AddBooking("U11 Red", "Rink", b.Date, "17:00-18:00", false)

	if r.bookPractice(d, b, false) {
		t.Fatal("booking over an occupied arena slot should fail")
	}
	if b.Remaining() != 60 {
		t.Errorf("block reservation not rolled back: remaining = %d", b.Remaining())
	}
	if len(r.schedule) != 0 || d.Needed != 1 {
		t.Error("no partial state should survive a failed booking")
	}
}

func TestTailAbsorption(t *testing.T) {
	u9 := houseTeam("U9 Red", "U9")
	// 75-minute block: the 15-minute tail would be unusable.
	b := &Block{Arena: "Rink", Date: day(2026, 9, 7), Start: 17 * 60, End: 18*60 + 15}
	r := testRun([]team.Team{u9}, nil, []*Block{b})

	if !r.bookPractice(r.demands["U9 Red"], b, false) {
		t.Fatal("booking should succeed")
	}
	if got := r.schedule[0].TimeSlot; got != "17:00-18:15" {
		t.Errorf("slot = %q, want the tail absorbed into 17:00-18:15", got)
	}
}

func TestNoAbsorptionOfUsableTail(t *testing.T) {
	u9 := houseTeam("U9 Red", "U9")
	// A 60-minute tail is another team's session; leave it.
	b := &Block{Arena: "Rink", Date: day(2026, 9, 7), Start: 17 * 60, End: 19 * 60}
	r := testRun([]team.Team{u9}, nil, []*Block{b})

	r.bookPractice(r.demands["U9 Red"], b, false)
	if got := r.schedule[0].TimeSlot; got != "17:00-18:00" {
		t.Errorf("slot = %q, want 17:00-18:00", got)
	}
	if b.Remaining() != 60 {
		t.Errorf("remaining = %d, want 60", b.Remaining())
	}
}

func TestRetireExhaustedBlock(t *testing.T) {
	u9 := houseTeam("U9 Red", "U9")
	// 70-minute block: after a 60-minute session the 10-minute rest is
	// below both the absorb threshold and the minimum session length.
	b := &Block{Arena: "Rink", Date: day(2026, 9, 7), Start: 17 * 60, End: 18*60 + 10}
	r := testRun([]team.Team{u9}, nil, []*Block{b})

	r.bookPractice(r.demands["U9 Red"], b, false)
	if len(r.blocks) != 0 {
		t.Errorf("blocks = %d, want the exhausted block retired", len(r.blocks))
	}
}

func TestBookShared(t *testing.T) {
	u7 := houseTeam("U7 White", "U7")
	u9 := houseTeam("U9 Red", "U9")
	u9.PracticeDuration = 90
	b := &Block{Arena: "Rink", Date: day(2026, 9, 7), Start: 17 * 60, End: 18*60 + 30}
	r := testRun([]team.Team{u7, u9}, nil, []*Block{b})
	d7, d9 := r.demands["U7 White"], r.demands["U9 Red"]

	if !r.bookShared(d7, d9, b, false) {
		t.Fatal("shared booking should succeed")
	}

	if len(r.schedule) != 1 {
		t.Fatalf("schedule = %d entries, want a single shared entry", len(r.schedule))
	}
	e := r.schedule[0]
	if e.Type != TypeSharedPractice || e.Team != "U7 White" || e.Opponent != "U9 Red" {
		t.Errorf("entry = %+v", e)
	}
	// The reserved span covers the longer of the two durations.
	if e.TimeSlot != "17:00-18:30" {
		t.Errorf("slot = %q, want 17:00-18:30", e.TimeSlot)
	}

	if d7.Needed != 0 || d9.Needed != 0 {
		t.Error("both demand records should be credited")
	}
	if r.ledger.SessionsOn("U7 White", b.Date) != 1 || r.ledger.SessionsOn("U9 Red", b.Date) != 1 {
		t.Error("both teams should occupy the ledger slot")
	}
}

func TestBlockAvailablePolicies(t *testing.T) {
	monday := day(2026, 9, 7)

	t.Run("weekly quota", func(t *testing.T) {
		u9 := houseTeam("U9 Red", "U9")
		b1 := &Block{Arena: "Rink", Date: monday, Start: 17 * 60, End: 18 * 60}
		b2 := &Block{Arena: "Rink", Date: day(2026, 9, 9), Start: 17 * 60, End: 18 * 60}
		r := testRun([]team.Team{u9}, nil, []*Block{b1, b2})
		d := r.demands["U9 Red"]

		r.bookPractice(d, b1, false)
		if r.blockAvailable(b2, d, r.strictPolicy()) {
			t.Error("quota of 1 is spent; the second block should be unavailable")
		}
		if !r.blockAvailable(b2, d, dayPolicy{MaxPerDay: 1, IgnoreQuota: true}) {
			t.Error("IgnoreQuota should open the block back up")
		}
	})

	t.Run("zero quota team", func(t *testing.T) {
		u9 := houseTeam("U9 Red", "U9")
		b := &Block{Arena: "Rink", Date: monday, Start: 17 * 60, End: 18 * 60}
		r := testRun([]team.Team{u9}, map[string]int{"U9 Red": 0}, []*Block{b})
		if r.blockAvailable(b, r.demands["U9 Red"], r.strictPolicy()) {
			t.Error("teams without a quota rule get no allocated ice")
		}
	})

	t.Run("blackout", func(t *testing.T) {
		u9 := houseTeam("U9 Red", "U9")
		u9.Blackouts = []time.Time{monday}
		b := &Block{Arena: "Rink", Date: monday, Start: 17 * 60, End: 18 * 60}
		r := testRun([]team.Team{u9}, nil, []*Block{b})
		if r.blockAvailable(b, r.demands["U9 Red"], dayPolicy{MaxPerDay: 1, IgnoreQuota: true}) {
			t.Error("blackout dates are never available")
		}
	})

	t.Run("late cutoff", func(t *testing.T) {
		u9 := houseTeam("U9 Red", "U9")
		cutoff := team.TimeOfDay(20 * 60)
		u9.LateIceCutoff = &cutoff
		atCutoff := &Block{Arena: "Rink", Date: monday, Start: 20 * 60, End: 21 * 60}
		late := &Block{Arena: "Rink", Date: monday, Start: 20*60 + 30, End: 21*60 + 30}
		r := testRun([]team.Team{u9}, nil, []*Block{atCutoff, late})
		d := r.demands["U9 Red"]

		if !r.blockAvailable(atCutoff, d, r.strictPolicy()) {
			t.Error("a block starting exactly at the cutoff is still allowed")
		}
		if r.blockAvailable(late, d, r.strictPolicy()) {
			t.Error("a block starting past the cutoff should be rejected")
		}
		if !r.blockAvailable(late, d, dayPolicy{MaxPerDay: 1, IgnoreQuota: true, IgnoreCutoff: true}) {
			t.Error("IgnoreCutoff should waive the late-ice rejection")
		}
	})

	t.Run("second same-day session needs opt-in", func(t *testing.T) {
		u9 := houseTeam("U9 Red", "U9")
		b1 := &Block{Arena: "Rink", Date: monday, Start: 17 * 60, End: 18 * 60}
		b2 := &Block{Arena: "Rink", Date: monday, Start: 18 * 60, End: 19 * 60}
		r := testRun([]team.Team{u9}, map[string]int{"U9 Red": 3}, []*Block{b1, b2})
		d := r.demands["U9 Red"]

		r.bookPractice(d, b1, false)
		if r.blockAvailable(b2, d, r.strictPolicy()) {
			t.Error("second session without opt-in should be rejected")
		}
		if !r.blockAvailable(b2, d, dayPolicy{MaxPerDay: 2, PermitMultiple: true, BackToBack: true}) {
			t.Error("a phase granting multiples should accept the adjacent block")
		}

		detached := &Block{Arena: "Rink", Date: monday, Start: 20 * 60, End: 21 * 60}
		if r.blockAvailable(detached, d, dayPolicy{MaxPerDay: 2, PermitMultiple: true, BackToBack: true}) {
			t.Error("BackToBack requires the second session to be adjacent")
		}
	})
}
