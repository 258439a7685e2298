package excel

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jmorneau/icetime/internal/config"
	"github.com/jmorneau/icetime/internal/schedule"
)

const testConfigYAML = `
season:
  start_date: "2026-09-07"
  end_date: "2026-09-13"
teams:
  U9 Red:
    age: U9
    type: house
  U9 Blue:
    age: U9
    type: house
arenas:
  Civic Centre:
    - start: "2026-09-07"
      end: "2026-09-13"
      slots:
        "0":
          - time: "17:00-19:00"
rules:
  ice_times_per_week:
    house:
      U9: 1
`

func testFixtures(t *testing.T) (*config.Config, *schedule.Result) {
	t.Helper()
	cfg, err := config.LoadFromBytes([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	result := &schedule.Result{
		Schedule: []schedule.Entry{
			{Team: "U9 Red", Opponent: "U9 Blue", Arena: "Civic Centre", Date: monday,
				TimeSlot: "17:00-18:00", Type: schedule.TypeSharedPractice},
			{Team: "U9 Blue", Opponent: schedule.OpponentPractice, Arena: "Civic Centre", Date: monday,
				TimeSlot: "18:00-19:00", Type: schedule.TypePractice},
		},
		Summary: &schedule.Summary{
			TotalWeeks: 1,
			Teams: []schedule.TeamAllocation{
				{Team: "U9 Blue", ExpectedWeekly: 1, ExpectedTotal: 1, ActualTotal: 2, FullyAllocated: true},
				{Team: "U9 Red", ExpectedWeekly: 1, ExpectedTotal: 1, ActualTotal: 1, FullyAllocated: true},
			},
		},
	}
	return cfg, result
}

func saveWorkbook(t *testing.T, cfg *config.Config, result *schedule.Result) string {
	t.Helper()
	f, err := Generate(cfg, result)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "schedule.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}
	f.Close()
	return path
}

func TestGenerateScheduleSheet(t *testing.T) {
	cfg, result := testFixtures(t)
	path := saveWorkbook(t, cfg, result)

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(ScheduleSheet)
	if err != nil {
		t.Fatalf("reading schedule sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("schedule sheet has %d rows, want header + 2", len(rows))
	}
	for i, h := range ScheduleHeaders {
		if rows[0][i] != h {
			t.Errorf("header %d = %q, want %q", i, rows[0][i], h)
		}
	}
	first := rows[1]
	if first[0] != "09/07/2026" || first[1] != "Mon" || first[2] != "17:00-18:00" {
		t.Errorf("first row = %v", first)
	}
	if first[4] != "U9 Red" || first[5] != "U9 Blue" || first[6] != schedule.TypeSharedPractice {
		t.Errorf("first row teams = %v", first)
	}
}

func TestGenerateTeamSheets(t *testing.T) {
	cfg, result := testFixtures(t)
	path := saveWorkbook(t, cfg, result)

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopening workbook: %v", err)
	}
	defer f.Close()

	// The shared session appears on both sides; Blue also has its own
	// practice.
	redRows, err := f.GetRows("U9 Red")
	if err != nil {
		t.Fatalf("reading U9 Red sheet: %v", err)
	}
	if len(redRows) != 2 {
		t.Fatalf("U9 Red has %d rows, want header + 1", len(redRows))
	}
	if redRows[1][4] != "U9 Blue" {
		t.Errorf("U9 Red partner = %q, want U9 Blue", redRows[1][4])
	}

	blueRows, err := f.GetRows("U9 Blue")
	if err != nil {
		t.Fatalf("reading U9 Blue sheet: %v", err)
	}
	if len(blueRows) != 3 {
		t.Fatalf("U9 Blue has %d rows, want header + 2", len(blueRows))
	}
	if blueRows[1][4] != "U9 Red" {
		t.Errorf("U9 Blue first session partner = %q, want U9 Red", blueRows[1][4])
	}
	if blueRows[2][5] != schedule.TypePractice {
		t.Errorf("U9 Blue second session type = %q", blueRows[2][5])
	}
}

func TestGenerateAllocationSheet(t *testing.T) {
	cfg, result := testFixtures(t)
	result.Summary.Teams[1].ActualTotal = 0
	result.Summary.Teams[1].FullyAllocated = false
	result.Summary.Teams[1].MissingWeeks = []int{1}
	path := saveWorkbook(t, cfg, result)

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Allocation")
	if err != nil {
		t.Fatalf("reading allocation sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("allocation sheet has %d rows, want header + 2", len(rows))
	}
	if rows[1][4] != "OK" {
		t.Errorf("U9 Blue status = %q, want OK", rows[1][4])
	}
	if rows[2][4] != "SHORT" || rows[2][5] != "1" {
		t.Errorf("U9 Red row = %v, want SHORT in week 1", rows[2])
	}
}

func TestUpdateTeamSheets(t *testing.T) {
	cfg, result := testFixtures(t)
	path := saveWorkbook(t, cfg, result)

	// Hand the Blue practice to Red on the master sheet, then rebuild.
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopening workbook: %v", err)
	}
	f.SetCellValue(ScheduleSheet, "E3", "U9 Red")
	if err := f.Save(); err != nil {
		t.Fatalf("saving edit: %v", err)
	}
	f.Close()

	if err := UpdateTeamSheets(path, cfg); err != nil {
		t.Fatalf("UpdateTeamSheets: %v", err)
	}

	f, err = excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopening workbook: %v", err)
	}
	defer f.Close()

	redRows, err := f.GetRows("U9 Red")
	if err != nil {
		t.Fatalf("reading U9 Red sheet: %v", err)
	}
	if len(redRows) != 3 {
		t.Errorf("U9 Red has %d rows after update, want header + 2", len(redRows))
	}
	blueRows, err := f.GetRows("U9 Blue")
	if err != nil {
		t.Fatalf("reading U9 Blue sheet: %v", err)
	}
	if len(blueRows) != 2 {
		t.Errorf("U9 Blue has %d rows after update, want header + 1", len(blueRows))
	}
}
