package validator

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jmorneau/icetime/internal/config"
	"github.com/jmorneau/icetime/internal/excel"
	"github.com/jmorneau/icetime/internal/schedule"
	"github.com/jmorneau/icetime/internal/team"
)

// Violation represents a constraint violation found during validation.
type Violation struct {
	Row     int
	Type    string // "error" or "warning"
	Message string
}

// Validate reads a schedule Excel file and checks it against the
// configured teams and rules.
func Validate(cfg *config.Config, path string) ([]Violation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	sessions, err := readSessions(f)
	if err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}

	teams := cfg.NormalizedTeams()

	var violations []Violation

	// Hard constraints
	violations = append(violations, checkArenaOverlaps(sessions)...)
	violations = append(violations, checkTeamOverlaps(sessions)...)
	violations = append(violations, checkBlackouts(teams, sessions)...)
	violations = append(violations, checkSameDayLoad(teams, sessions)...)

	// Soft constraints
	violations = append(violations, checkLateCutoffs(teams, sessions)...)
	violations = append(violations, checkWeeklyQuota(cfg, teams, sessions)...)

	// Completeness
	violations = append(violations, checkCompleteness(teams, sessions)...)

	return violations, nil
}

type parsedSession struct {
	Row      int
	Date     time.Time
	Start    team.TimeOfDay
	End      team.TimeOfDay
	TimeSlot string
	Arena    string
	Team     string
	Opponent string
	Type     string
}

func readSessions(f *excelize.File) ([]parsedSession, error) {
	rows, err := f.GetRows(excel.ScheduleSheet)
	if err != nil {
		return nil, fmt.Errorf("reading %s sheet: %w", excel.ScheduleSheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s sheet is empty", excel.ScheduleSheet)
	}

	var sessions []parsedSession
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 7 || row[0] == "" {
			continue
		}

		date, err := time.Parse("01/02/2006", row[0])
		if err != nil {
			continue
		}
		window, ok := config.ParseWindowString(row[2])
		if !ok {
			continue
		}
		sessions = append(sessions, parsedSession{
			Row:      i + 1,
			Date:     date,
			Start:    window.Start,
			End:      window.End,
			TimeSlot: row[2],
			Arena:    row[3],
			Team:     row[4],
			Opponent: row[5],
			Type:     row[6],
		})
	}
	return sessions, nil
}

// participants returns every team occupying the ice for a session.
// Shared practices count for both sides.
func participants(s parsedSession) []string {
	if s.Type == schedule.TypeSharedPractice &&
		s.Opponent != schedule.OpponentPractice && s.Opponent != schedule.OpponentTBD {
		return []string{s.Team, s.Opponent}
	}
	return []string{s.Team}
}

func overlaps(a, b parsedSession) bool {
	return a.Start < b.End && b.Start < a.End
}

func checkArenaOverlaps(sessions []parsedSession) []Violation {
	var violations []Violation
	for i := 0; i < len(sessions); i++ {
		for j := i + 1; j < len(sessions); j++ {
			a, b := sessions[i], sessions[j]
			if a.Arena != b.Arena || !a.Date.Equal(b.Date) {
				continue
			}
			if overlaps(a, b) {
				violations = append(violations, Violation{
					Row:  b.Row,
					Type: "error",
					Message: fmt.Sprintf("%s double-booked on %s: %s (%s) overlaps %s (%s)",
						a.Arena, a.Date.Format("01/02"), a.TimeSlot, a.Team, b.TimeSlot, b.Team),
				})
			}
		}
	}
	return violations
}

func checkTeamOverlaps(sessions []parsedSession) []Violation {
	type teamSession struct {
		session parsedSession
		name    string
	}
	byTeam := make(map[string][]teamSession)
	for _, s := range sessions {
		for _, name := range participants(s) {
			byTeam[name] = append(byTeam[name], teamSession{s, name})
		}
	}

	names := sortedKeys(byTeam)
	var violations []Violation
	for _, name := range names {
		list := byTeam[name]
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				a, b := list[i].session, list[j].session
				if !a.Date.Equal(b.Date) || !overlaps(a, b) {
					continue
				}
				if a.Arena == b.Arena && a.TimeSlot == b.TimeSlot {
					continue // the same shared session seen from both sides
				}
				violations = append(violations, Violation{
					Row:  b.Row,
					Type: "error",
					Message: fmt.Sprintf("%s booked twice on %s: %s at %s and %s at %s",
						name, a.Date.Format("01/02"), a.TimeSlot, a.Arena, b.TimeSlot, b.Arena),
				})
			}
		}
	}
	return violations
}

func checkBlackouts(teams map[string]team.Team, sessions []parsedSession) []Violation {
	var violations []Violation
	for _, s := range sessions {
		for _, name := range participants(s) {
			t, ok := teams[name]
			if !ok {
				continue
			}
			if t.HasBlackoutOn(s.Date) {
				violations = append(violations, Violation{
					Row:  s.Row,
					Type: "error",
					Message: fmt.Sprintf("%s scheduled on blackout date %s",
						name, s.Date.Format("01/02")),
				})
			}
		}
	}
	return violations
}

// checkSameDayLoad flags teams with more than one session on a date
// when they have not opted in to multiples, and teams whose same-day
// sessions are not back to back.
func checkSameDayLoad(teams map[string]team.Team, sessions []parsedSession) []Violation {
	type teamDay struct {
		name string
		date time.Time
	}
	byDay := make(map[teamDay][]parsedSession)
	for _, s := range sessions {
		for _, name := range participants(s) {
			key := teamDay{name, s.Date}
			byDay[key] = append(byDay[key], s)
		}
	}

	keys := make([]teamDay, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].date.Before(keys[j].date)
	})

	var violations []Violation
	for _, k := range keys {
		day := byDay[k]
		if len(day) < 2 {
			continue
		}
		t, known := teams[k.name]
		if known && !t.AllowMultiplePerDay && len(day) > 2 {
			violations = append(violations, Violation{
				Row:  day[1].Row,
				Type: "error",
				Message: fmt.Sprintf("%s has %d sessions on %s",
					k.name, len(day), k.date.Format("01/02")),
			})
			continue
		}
		sort.Slice(day, func(i, j int) bool { return day[i].Start < day[j].Start })
		for i := 1; i < len(day); i++ {
			if day[i].Start != day[i-1].End {
				violations = append(violations, Violation{
					Row:  day[i].Row,
					Type: "warning",
					Message: fmt.Sprintf("%s has non-adjacent sessions on %s: %s then %s",
						k.name, k.date.Format("01/02"), day[i-1].TimeSlot, day[i].TimeSlot),
				})
			}
		}
	}
	return violations
}

func checkLateCutoffs(teams map[string]team.Team, sessions []parsedSession) []Violation {
	var violations []Violation
	for _, s := range sessions {
		for _, name := range participants(s) {
			t, ok := teams[name]
			if !ok {
				continue
			}
			if t.ViolatesLateCutoff(s.Start) {
				violations = append(violations, Violation{
					Row:  s.Row,
					Type: "warning",
					Message: fmt.Sprintf("%s starts at %s on %s, past its late-ice cutoff",
						name, s.Start, s.Date.Format("01/02")),
				})
			}
		}
	}
	return violations
}

func checkWeeklyQuota(cfg *config.Config, teams map[string]team.Team, sessions []parsedSession) []Violation {
	if len(sessions) == 0 {
		return nil
	}
	seasonStart := cfg.Season.StartDate.Time
	seasonEnd := cfg.Season.EndDate.Time
	weeks := int(seasonEnd.Sub(seasonStart).Hours()/24) / 7
	if weeks < 1 {
		weeks = 1
	}

	weekly := make(map[string]map[int]int)
	for _, s := range sessions {
		week := int(s.Date.Sub(seasonStart).Hours()/24)/7 + 1
		for _, name := range participants(s) {
			if weekly[name] == nil {
				weekly[name] = make(map[int]int)
			}
			weekly[name][week]++
		}
	}

	var violations []Violation
	for _, name := range sortedKeys(teams) {
		t := teams[name]
		expected := cfg.Rules.SessionsPerWeek(&t)
		if expected == 0 {
			continue
		}
		for week := 1; week <= weeks; week++ {
			if weekly[name][week] < expected {
				violations = append(violations, Violation{
					Type: "warning",
					Message: fmt.Sprintf("%s has %d of %d sessions in week %d",
						name, weekly[name][week], expected, week),
				})
			}
		}
	}
	return violations
}

func checkCompleteness(teams map[string]team.Team, sessions []parsedSession) []Violation {
	counts := make(map[string]int)
	for _, s := range sessions {
		for _, name := range participants(s) {
			counts[name]++
		}
	}

	var violations []Violation
	for _, name := range sortedKeys(teams) {
		if counts[name] == 0 {
			violations = append(violations, Violation{
				Type:    "error",
				Message: fmt.Sprintf("%s has no ice time scheduled", name),
			})
		}
	}
	return violations
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
