package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmorneau/icetime/internal/config"
	"github.com/jmorneau/icetime/internal/excel"
	"github.com/jmorneau/icetime/internal/schedule"
	"github.com/jmorneau/icetime/internal/validator"
)

const defaultConfigFile = "config.yaml"

func resolveConfigPath(configFlag string) (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile, nil
	}
	return "", fmt.Errorf("no config file found. Either create %s in the current directory or pass --config", defaultConfigFile)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "icetime",
		Short: "Youth hockey ice time allocator",
	}

	var initOutputPath string
	initCmd := &cobra.Command{
		Use:          "init",
		Short:        "Create a starter config.yaml in the current directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(initOutputPath)
		},
	}
	initCmd.Flags().StringVarP(&initOutputPath, "output", "o", defaultConfigFile, "Output path for the config file")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate and validate ice time schedules",
	}

	var configFile string
	scheduleCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: config.yaml in current directory)")

	var outputFile string
	var logFile string
	generateCmd := &cobra.Command{
		Use:          "generate",
		Short:        "Allocate ice time from a config file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runGenerate(configPath, outputFile, logFile)
		},
	}
	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "schedule.xlsx", "Output Excel file path")
	generateCmd.Flags().StringVar(&logFile, "log", "schedule_log.txt", "Allocation log file path (empty to skip)")

	validateCmd := &cobra.Command{
		Use:          "validate <schedule.xlsx>",
		Short:        "Validate a schedule against config rules",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runValidate(configPath, args[0])
		},
	}

	scheduleCmd.AddCommand(generateCmd, validateCmd)
	rootCmd.AddCommand(initCmd, scheduleCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInit(outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use -o to write elsewhere", outputPath)
	}

	if err := os.WriteFile(outputPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("✓ Created %s\n", outputPath)
	return nil
}

const configTemplate = `# Ice Time Season Configuration
# =============================
# This file defines the teams, arenas, and rules for allocating
# practice ice across a season.

# Season defines the date range to allocate.
season:
  start_date: "2026-09-07"
  end_date: "2027-03-14"

# Teams, keyed by name. Only age is required; everything else has a
# sensible default. Durations are minutes.
teams:
  U7 White:
    age: U7
    type: house
    practice_duration: 60
    mandatory_shared_ice: true

  U9 Red:
    age: U9
    type: house
    # shared_ice also accepts the object form: {enabled: true}
    shared_ice: true
    # Days with preferred windows. Add a <day>_strict: true flag to
    # make that day's window a hard preference the allocator fights for.
    # Windows may also be written as [start, end] or a single [start]
    # list (treated as a one-hour window).
    preferred_days_and_times:
      monday: "17:00-18:00"
      monday_strict: true
      wednesday: "17:00-18:30"

  U13 AA:
    age: U13
    type: competitive
    practice_duration: 90
    game_duration: 120
    allow_multiple_per_day: true
    # No ice starting after this time.
    late_ice_cutoff: "21:00"
    blackout_dates:
      - "2026-12-24"
      - "2026-12-25"

# Arenas, each a list of contract blocks. Slots are a weekly pattern
# keyed by weekday index, "0" (Monday) through "6" (Sunday).
# Slot times use 24-hour format, "HH:MM-HH:MM".
arenas:
  Civic Centre:
    - start: "2026-09-07"
      end: "2027-03-14"
      slots:
        "0":
          - time: "17:00-20:00"
        "2":
          - time: "17:00-19:00"
        "5":
          - time: "07:00-12:00"
          # Pre-assigned slots are honored before allocation runs.
          - time: "13:00-15:00"
            type: game
            pre_assigned_team: U13 AA
            pre_assigned_opponent: Visitors
            duration: 120

# Weekly session quotas: type -> age -> sessions per week. Teams with
# no matching rule receive no allocated ice.
rules:
  default_ice_time_type: practice
  ice_times_per_week:
    house:
      U7: 1
      U9: 2
    competitive:
      U13: 3

# Optional: override the allocation pipeline. Omitted steps keep their
# defaults; omit the whole section to run the standard four phases.
# pipeline:
#   steps:
#     - id: maximum_utilization
#       enabled: false
#   global_settings:
#     allocation_timeout_seconds: 120
`

func runGenerate(configPath, outputPath, logPath string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pipeline, err := schedule.NormalizePipeline(cfg.Pipeline)
	if err != nil {
		return fmt.Errorf("resolving pipeline: %w", err)
	}

	fmt.Printf("Allocating ice for %d teams across %d arenas...\n", len(cfg.Teams), len(cfg.Arenas))

	result, err := schedule.Generate(cfg, pipeline)
	if err != nil {
		return fmt.Errorf("generating schedule: %w", err)
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "⚠ %s\n", w)
	}

	for _, step := range result.StepResults {
		fmt.Printf("  %-28s %4d sessions (%s)\n", step.Name, step.Booked, step.Duration.Round(1e6))
	}

	fmt.Println()
	fmt.Print(result.Summary.FormatSummary())

	if len(result.Conflicts) > 0 {
		fmt.Printf("\nUnresolved conflicts (%d):\n", len(result.Conflicts))
		for _, c := range result.Conflicts {
			fmt.Printf("  ✗ %s\n", c)
		}
	} else {
		fmt.Println("\n✓ No unresolved conflicts")
	}

	f, err := excel.Generate(cfg, result)
	if err != nil {
		return fmt.Errorf("generating Excel: %w", err)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("saving file: %w", err)
	}
	fmt.Printf("\n✓ Schedule saved to %s\n", outputPath)

	if logPath != "" {
		if err := writeLog(logPath, result); err != nil {
			return fmt.Errorf("writing log: %w", err)
		}
		fmt.Printf("✓ Allocation log saved to %s\n", logPath)
	}

	if n := len(result.Summary.Underallocated); n > 0 {
		return fmt.Errorf("schedule is incomplete: %d team(s) below their season target", n)
	}
	return nil
}

func writeLog(path string, result *schedule.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, e := range result.ExecutionLog {
		fmt.Fprintf(f, "%s  %s\n", e.Time.Format("15:04:05.000"), e.Message)
	}
	fmt.Fprintln(f)
	fmt.Fprint(f, result.Summary.FormatSummary())
	return nil
}

func runValidate(configPath, schedulePath string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	violations, err := validator.Validate(cfg, schedulePath)
	if err != nil {
		return fmt.Errorf("validating: %w", err)
	}

	errors := 0
	warnings := 0
	for _, v := range violations {
		switch v.Type {
		case "error":
			errors++
			fmt.Printf("✗ Rule violation: %s\n", v.Message)
		case "warning":
			warnings++
			fmt.Printf("⚠ Guideline violation: %s\n", v.Message)
		}
	}

	fmt.Printf("\nValidation complete: %d rule violations, %d warnings\n", errors, warnings)

	// Regenerate team sheets from the master schedule
	if err := excel.UpdateTeamSheets(schedulePath, cfg); err != nil {
		return fmt.Errorf("updating team sheets: %w", err)
	}
	fmt.Printf("✓ Team sheets updated in %s\n", schedulePath)

	if errors > 0 {
		return fmt.Errorf("%d constraint violations found", errors)
	}
	return nil
}
