package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/jmorneau/icetime/internal/config"
	"github.com/jmorneau/icetime/internal/team"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func cfgDate(y, m, d int) config.Date {
	return config.Date{Time: day(y, m, d)}
}

func TestBlockPacking(t *testing.T) {
	b := &Block{Arena: "Rink", Date: day(2026, 9, 7), Start: 17 * 60, End: 19 * 60}

	if b.Duration() != 120 || b.Remaining() != 120 {
		t.Fatalf("fresh block: duration %d remaining %d", b.Duration(), b.Remaining())
	}

	start, end, err := b.AddBooking("U9 Red", 60, TypePractice)
	if err != nil {
		t.Fatalf("AddBooking: %v", err)
	}
	if start != 17*60 || end != 18*60 {
		t.Errorf("first booking %v-%v, want 17:00-18:00", start, end)
	}
	if b.NextStart() != 18*60 {
		t.Errorf("NextStart = %v, want 18:00", b.NextStart())
	}
	if b.Remaining() != 60 {
		t.Errorf("remaining = %d, want 60", b.Remaining())
	}

	if _, _, err := b.AddBooking("U11 Red", 90, TypePractice); err == nil {
		t.Error("overfull booking should fail")
	}

	b.PopBooking()
	if b.Remaining() != 120 {
		t.Errorf("after rollback remaining = %d, want 120", b.Remaining())
	}
}

func TestBuildBlocks(t *testing.T) {
	cfg := &config.Config{
		Season: config.Season{
			StartDate: cfgDate(2026, 9, 7),
			EndDate:   cfgDate(2026, 9, 13),
		},
		Arenas: map[string][]config.ArenaBlock{
			"Rink": {{
				Start: cfgDate(2026, 9, 1),
				End:   cfgDate(2026, 9, 30),
				Slots: map[string][]config.Slot{
					// Monday
					"0": {{Time: "17:00-20:00"}},
					// Saturday: a pre-assigned game shorter than its slot
					"5": {{
						Time:     "13:00-15:00",
						Type:     TypeGame,
						Team:     "U13 AA",
						Opponent: "Visitors",
						Duration: 90,
					}},
					// Sunday: malformed
					"6": {{Time: "afternoon"}},
				},
			}},
		},
	}
	teams := map[string]team.Team{
		"U13 AA": {Name: "U13 AA", Age: "U13", Type: team.Competitive, GameDuration: 120},
	}

	blocks, entries, warnings := BuildBlocks(cfg, teams)

	if len(warnings) != 1 || !strings.Contains(warnings[0], "afternoon") {
		t.Errorf("warnings = %v, want one about the malformed slot", warnings)
	}

	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 pre-assigned game", len(entries))
	}
	e := entries[0]
	if e.Team != "U13 AA" || e.Opponent != "Visitors" || e.Type != TypeGame {
		t.Errorf("pre-assigned entry = %+v", e)
	}
	if e.TimeSlot != "13:00-14:30" {
		t.Errorf("game slot = %q, want 13:00-14:30 (90 minutes)", e.TimeSlot)
	}
	if !e.Date.Equal(day(2026, 9, 12)) {
		t.Errorf("game date = %v, want Saturday 2026-09-12", e.Date)
	}

	// One open Monday block plus the 30-minute game remainder.
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(blocks))
	}
	if !blocks[0].Date.Equal(day(2026, 9, 7)) || blocks[0].Start != 17*60 {
		t.Errorf("first block = %+v, want Monday 17:00", blocks[0])
	}
	rem := blocks[1]
	if !rem.Date.Equal(day(2026, 9, 12)) || rem.Start != 14*60+30 || rem.End != 15*60 {
		t.Errorf("remainder block = %+v, want Saturday 14:30-15:00", rem)
	}
}

func TestBuildBlocksClampsToSeason(t *testing.T) {
	cfg := &config.Config{
		Season: config.Season{
			StartDate: cfgDate(2026, 9, 7),
			EndDate:   cfgDate(2026, 9, 13),
		},
		Arenas: map[string][]config.ArenaBlock{
			"Rink": {{
				Start: cfgDate(2026, 8, 1),
				End:   cfgDate(2027, 6, 30),
				Slots: map[string][]config.Slot{
					"0": {{Time: "17:00-18:00"}},
				},
			}},
		},
	}

	blocks, _, _ := BuildBlocks(cfg, nil)
	if len(blocks) != 1 {
		t.Fatalf("blocks = %d, want exactly one Monday inside the season", len(blocks))
	}
}

func TestPreassignedPracticeSlot(t *testing.T) {
	window := team.Window{Start: 17 * 60, End: 18 * 60}
	slot := config.Slot{Time: "17:00-18:00", Team: "U9 Red"}

	entry, remainder := preassignedEntry("Rink", day(2026, 9, 7), window, slot, nil)
	if entry.Type != TypePractice || entry.Opponent != OpponentPractice {
		t.Errorf("entry = %+v, want a practice", entry)
	}
	if remainder != nil {
		t.Error("practice takes the whole slot; no remainder expected")
	}
}

func TestPreassignedGameUnknownOpponent(t *testing.T) {
	window := team.Window{Start: 13 * 60, End: 15 * 60}
	slot := config.Slot{Time: "13:00-15:00", Type: TypeGame, Team: "U13 AA", Duration: 120}

	entry, _ := preassignedEntry("Rink", day(2026, 9, 12), window, slot, nil)
	if entry.Opponent != OpponentTBD {
		t.Errorf("opponent = %q, want TBD", entry.Opponent)
	}
}

func TestMondayIndex(t *testing.T) {
	tests := []struct {
		day  time.Weekday
		want string
	}{
		{time.Monday, "0"},
		{time.Wednesday, "2"},
		{time.Saturday, "5"},
		{time.Sunday, "6"},
	}
	for _, tt := range tests {
		if got := mondayIndex(tt.day); got != tt.want {
			t.Errorf("mondayIndex(%v) = %q, want %q", tt.day, got, tt.want)
		}
	}
}
