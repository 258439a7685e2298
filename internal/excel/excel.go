package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jmorneau/icetime/internal/config"
	"github.com/jmorneau/icetime/internal/schedule"
)

// Generate creates an Excel workbook with the master schedule, one
// sheet per team, and the allocation summary.
func Generate(cfg *config.Config, result *schedule.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	// Set default font for the workbook
	f.SetDefaultFont("Arial")

	if err := writeScheduleSheet(f, result); err != nil {
		return nil, fmt.Errorf("writing schedule sheet: %w", err)
	}
	if err := writeTeamSheets(f, cfg, result); err != nil {
		return nil, fmt.Errorf("writing team sheets: %w", err)
	}
	if err := writeAllocationSheet(f, result); err != nil {
		return nil, fmt.Errorf("writing allocation sheet: %w", err)
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

// ScheduleSheet is the master sheet name; the validator reads it back.
const ScheduleSheet = "Schedule"

// ScheduleHeaders are the master sheet columns, in order.
var ScheduleHeaders = []string{"Date", "Day", "Time", "Arena", "Team", "Opponent", "Type"}

func writeScheduleSheet(f *excelize.File, result *schedule.Result) error {
	sheet := ScheduleSheet
	f.NewSheet(sheet)

	for i, h := range ScheduleHeaders {
		f.SetCellValue(sheet, cellRef(i+1, 1), h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 16, Family: "Arial"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if headerStyle != 0 {
		for i := range ScheduleHeaders {
			f.SetCellStyle(sheet, cellRef(i+1, 1), cellRef(i+1, 1), headerStyle)
		}
	}

	cellStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})

	for i, e := range result.Schedule {
		row := i + 2
		f.SetCellValue(sheet, cellRef(1, row), e.Date.Format("01/02/2006"))
		f.SetCellValue(sheet, cellRef(2, row), e.Date.Format("Mon"))
		f.SetCellValue(sheet, cellRef(3, row), e.TimeSlot)
		f.SetCellValue(sheet, cellRef(4, row), e.Arena)
		f.SetCellValue(sheet, cellRef(5, row), e.Team)
		f.SetCellValue(sheet, cellRef(6, row), e.Opponent)
		f.SetCellValue(sheet, cellRef(7, row), e.Type)
		if cellStyle != 0 {
			for col := 1; col <= len(ScheduleHeaders); col++ {
				f.SetCellStyle(sheet, cellRef(col, row), cellRef(col, row), cellStyle)
			}
		}
	}

	// Conditional formatting: shared-ice rows get a light blue fill
	lastRow := len(result.Schedule) + 1
	blueFill, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	if lastRow > 1 {
		cellRange := fmt.Sprintf("A2:G%d", lastRow)
		f.SetConditionalFormat(sheet, cellRange, []excelize.ConditionalFormatOptions{
			{
				Type:     "formula",
				Criteria: fmt.Sprintf(`$G2=%q`, schedule.TypeSharedPractice),
				Format:   &blueFill,
			},
		})
	}

	// Set column widths (sized for Arial 16)
	widths := map[string]float64{"A": 18, "B": 8, "C": 16, "D": 24, "E": 22, "F": 22, "G": 20}
	for col, w := range widths {
		f.SetColWidth(sheet, col, col, w)
	}

	return nil
}

func writeTeamSheets(f *excelize.File, cfg *config.Config, result *schedule.Result) error {
	names := make([]string, 0, len(cfg.Teams))
	for name := range cfg.Teams {
		names = append(names, name)
	}
	sort.Strings(names)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 16, Family: "Arial"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	cellStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})

	for _, name := range names {
		sheet := name
		f.NewSheet(sheet)

		headers := []string{"Date", "Day", "Time", "Arena", "With", "Type"}
		for i, h := range headers {
			f.SetCellValue(sheet, cellRef(i+1, 1), h)
			if headerStyle != 0 {
				f.SetCellStyle(sheet, cellRef(i+1, 1), cellRef(i+1, 1), headerStyle)
			}
		}

		type session struct {
			date        time.Time
			slot        string
			arena       string
			with        string
			sessionType string
		}
		var sessions []session
		for _, e := range result.Schedule {
			switch {
			case e.Team == name:
				sessions = append(sessions, session{e.Date, e.TimeSlot, e.Arena, e.Opponent, e.Type})
			case e.Opponent == name && e.Type == schedule.TypeSharedPractice:
				sessions = append(sessions, session{e.Date, e.TimeSlot, e.Arena, e.Team, e.Type})
			}
		}
		sort.Slice(sessions, func(i, j int) bool {
			if !sessions[i].date.Equal(sessions[j].date) {
				return sessions[i].date.Before(sessions[j].date)
			}
			return sessions[i].slot < sessions[j].slot
		})

		for i, s := range sessions {
			row := i + 2
			f.SetCellValue(sheet, cellRef(1, row), s.date.Format("01/02/2006"))
			f.SetCellValue(sheet, cellRef(2, row), s.date.Format("Mon"))
			f.SetCellValue(sheet, cellRef(3, row), s.slot)
			f.SetCellValue(sheet, cellRef(4, row), s.arena)
			f.SetCellValue(sheet, cellRef(5, row), s.with)
			f.SetCellValue(sheet, cellRef(6, row), s.sessionType)
			if cellStyle != 0 {
				for col := 1; col <= len(headers); col++ {
					f.SetCellStyle(sheet, cellRef(col, row), cellRef(col, row), cellStyle)
				}
			}
		}

		widths := map[string]float64{"A": 18, "B": 8, "C": 16, "D": 24, "E": 22, "F": 20}
		for col, w := range widths {
			f.SetColWidth(sheet, col, col, w)
		}
	}

	return nil
}

func writeAllocationSheet(f *excelize.File, result *schedule.Result) error {
	sheet := "Allocation"
	f.NewSheet(sheet)

	headers := []string{"Team", "Per Week", "Expected", "Actual", "Status", "Short Weeks"}
	for i, h := range headers {
		f.SetCellValue(sheet, cellRef(i+1, 1), h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 16, Family: "Arial"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if headerStyle != 0 {
		for i := range headers {
			f.SetCellStyle(sheet, cellRef(i+1, 1), cellRef(i+1, 1), headerStyle)
		}
	}

	cellStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})

	rows := 0
	if result.Summary != nil {
		for i, t := range result.Summary.Teams {
			row := i + 2
			status := "OK"
			if !t.FullyAllocated {
				status = "SHORT"
			}
			shortWeeks := ""
			if len(t.MissingWeeks) > 0 {
				parts := make([]string, len(t.MissingWeeks))
				for j, w := range t.MissingWeeks {
					parts[j] = fmt.Sprintf("%d", w)
				}
				shortWeeks = strings.Join(parts, ", ")
			}
			f.SetCellValue(sheet, cellRef(1, row), t.Team)
			f.SetCellValue(sheet, cellRef(2, row), t.ExpectedWeekly)
			f.SetCellValue(sheet, cellRef(3, row), t.ExpectedTotal)
			f.SetCellValue(sheet, cellRef(4, row), t.ActualTotal)
			f.SetCellValue(sheet, cellRef(5, row), status)
			f.SetCellValue(sheet, cellRef(6, row), shortWeeks)
			if cellStyle != 0 {
				for col := 1; col <= len(headers); col++ {
					f.SetCellStyle(sheet, cellRef(col, row), cellRef(col, row), cellStyle)
				}
			}
		}
		rows = len(result.Summary.Teams)
	}

	// Conditional formatting: underallocated rows get light red
	redFill, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#FFC7CE"}},
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	if rows > 0 {
		cellRange := fmt.Sprintf("A2:F%d", rows+1)
		f.SetConditionalFormat(sheet, cellRange, []excelize.ConditionalFormatOptions{
			{
				Type:     "formula",
				Criteria: `$E2="SHORT"`,
				Format:   &redFill,
			},
		})
	}

	widths := map[string]float64{"A": 22, "B": 12, "C": 12, "D": 12, "E": 12, "F": 24}
	for col, w := range widths {
		f.SetColWidth(sheet, col, col, w)
	}

	return nil
}

// UpdateTeamSheets rebuilds every team sheet from the master Schedule
// sheet of an existing workbook, so manual edits to the master carry
// through to the per-team views.
func UpdateTeamSheets(path string, cfg *config.Config) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(ScheduleSheet)
	if err != nil {
		return fmt.Errorf("reading %s sheet: %w", ScheduleSheet, err)
	}

	var entries []schedule.Entry
	for i, row := range rows {
		if i == 0 || len(row) < 7 || row[0] == "" {
			continue
		}
		date, err := time.Parse("01/02/2006", row[0])
		if err != nil {
			continue
		}
		entries = append(entries, schedule.Entry{
			Date:     date,
			TimeSlot: row[2],
			Arena:    row[3],
			Team:     row[4],
			Opponent: row[5],
			Type:     row[6],
		})
	}

	for name := range cfg.Teams {
		f.DeleteSheet(name)
	}
	if err := writeTeamSheets(f, cfg, &schedule.Result{Schedule: entries}); err != nil {
		return err
	}
	return f.Save()
}

func cellRef(col, row int) string {
	return fmt.Sprintf("%s%d", colLetter(col), row)
}

func colLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
