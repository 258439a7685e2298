package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/jmorneau/icetime/internal/config"
	"github.com/jmorneau/icetime/internal/team"
)

// Entry is one line of the output schedule. Opponent is another team
// name for games and shared practices, or "Practice" / "TBD".
type Entry struct {
	Team     string
	Opponent string
	Arena    string
	Date     time.Time
	TimeSlot string // "HH:MM-HH:MM"
	Type     string // "practice", "game", or "shared practice"
}

const (
	TypePractice       = "practice"
	TypeGame           = "game"
	TypeSharedPractice = "shared practice"

	OpponentPractice = "Practice"
	OpponentTBD      = "TBD"
)

// Booking is a sub-booking packed into a Block.
type Booking struct {
	Team     string
	Duration int // minutes
	Start    team.TimeOfDay
	End      team.TimeOfDay
	Type     string
}

// Block is a bookable time window on one arena and date. Sub-bookings
// are packed sequentially from the window start; identity is
// (arena, date, start, end).
type Block struct {
	Arena    string
	Date     time.Time
	Start    team.TimeOfDay
	End      team.TimeOfDay
	bookings []Booking
}

// Duration returns the total window length in minutes.
func (b *Block) Duration() int {
	return int(b.End - b.Start)
}

// Remaining returns unbooked minutes in the window.
func (b *Block) Remaining() int {
	used := 0
	for _, bk := range b.bookings {
		used += bk.Duration
	}
	return b.Duration() - used
}

// CanFit reports whether a session of the given length still fits.
func (b *Block) CanFit(minutes int) bool {
	return b.Remaining() >= minutes
}

// NextStart returns the start time of the next booking in this block.
func (b *Block) NextStart() team.TimeOfDay {
	used := 0
	for _, bk := range b.bookings {
		used += bk.Duration
	}
	return b.Start.Add(used)
}

// AddBooking appends a sub-booking at the current packing offset and
// returns its actual start and end times. It fails when the duration
// exceeds remaining capacity.
func (b *Block) AddBooking(teamName string, minutes int, bookingType string) (team.TimeOfDay, team.TimeOfDay, error) {
	if !b.CanFit(minutes) {
		return 0, 0, fmt.Errorf("cannot fit %d minutes in remaining %d minutes", minutes, b.Remaining())
	}
	start := b.NextStart()
	end := start.Add(minutes)
	b.bookings = append(b.bookings, Booking{
		Team:     teamName,
		Duration: minutes,
		Start:    start,
		End:      end,
		Type:     bookingType,
	})
	return start, end, nil
}

// PopBooking removes the most recent sub-booking; callers use it to
// roll back a reservation that failed ledger validation.
func (b *Block) PopBooking() {
	if len(b.bookings) > 0 {
		b.bookings = b.bookings[:len(b.bookings)-1]
	}
}

// Bookings returns the committed sub-bookings.
func (b *Block) Bookings() []Booking {
	return b.bookings
}

// BuildBlocks materializes the season's open Time Blocks from arena
// availability, emitting pre-assigned slots directly as schedule
// entries. A pre-assigned game shorter than its slot leaves the
// remainder of the window as an open block. Malformed slots are skipped
// with a warning; they never abort the run.
func BuildBlocks(cfg *config.Config, teams map[string]team.Team) ([]*Block, []Entry, []string) {
	var blocks []*Block
	var entries []Entry
	var warnings []string

	for arena, arenaBlocks := range cfg.Arenas {
		for _, ab := range arenaBlocks {
			start := maxDate(ab.Start.Time, cfg.Season.StartDate.Time)
			end := minDate(ab.End.Time, cfg.Season.EndDate.Time)
			if start.After(end) {
				continue
			}

			for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
				for _, slot := range ab.Slots[mondayIndex(d.Weekday())] {
					window, ok := config.ParseWindowString(slot.Time)
					if !ok {
						warnings = append(warnings, fmt.Sprintf("skipping invalid slot %q in %s", slot.Time, arena))
						continue
					}

					if slot.Team == "" {
						blocks = append(blocks, &Block{
							Arena: arena,
							Date:  d,
							Start: window.Start,
							End:   window.End,
						})
						continue
					}

					entry, remainder := preassignedEntry(arena, d, window, slot, teams)
					entries = append(entries, entry)
					if remainder != nil {
						blocks = append(blocks, remainder)
					}
				}
			}
		}
	}

	sort.Slice(blocks, func(i, j int) bool {
		if !blocks[i].Date.Equal(blocks[j].Date) {
			return blocks[i].Date.Before(blocks[j].Date)
		}
		if blocks[i].Start != blocks[j].Start {
			return blocks[i].Start < blocks[j].Start
		}
		return blocks[i].Arena < blocks[j].Arena
	})

	return blocks, entries, warnings
}

// preassignedEntry converts a pre-assigned slot into a schedule entry,
// returning any remaining open ice after a game shorter than its slot.
func preassignedEntry(arena string, date time.Time, window team.Window, slot config.Slot, teams map[string]team.Team) (Entry, *Block) {
	info, known := teams[slot.Team]
	isGame := slot.Type == TypeGame || (slot.Type == "" && known && info.GameDuration > 0 && slot.Opponent != "")

	if !isGame {
		return Entry{
			Team:     slot.Team,
			Opponent: OpponentPractice,
			Arena:    arena,
			Date:     date,
			TimeSlot: window.Start.String() + "-" + window.End.String(),
			Type:     TypePractice,
		}, nil
	}

	duration := slot.Duration
	if duration <= 0 {
		duration = 60
		if known {
			duration = info.GameDuration
		}
	}
	gameEnd := window.Start.Add(duration)
	if gameEnd > window.End {
		gameEnd = window.End
	}

	opponent := slot.Opponent
	if opponent == "" {
		opponent = OpponentTBD
	}

	entry := Entry{
		Team:     slot.Team,
		Opponent: opponent,
		Arena:    arena,
		Date:     date,
		TimeSlot: window.Start.String() + "-" + gameEnd.String(),
		Type:     TypeGame,
	}

	if gameEnd < window.End {
		return entry, &Block{Arena: arena, Date: date, Start: gameEnd, End: window.End}
	}
	return entry, nil
}

// mondayIndex maps Go's Sunday-based weekday to the Monday-based string
// index used in arena data ("0" = Monday ... "6" = Sunday).
func mondayIndex(d time.Weekday) string {
	idx := (int(d) + 6) % 7
	return fmt.Sprintf("%d", idx)
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
