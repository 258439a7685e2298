package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmorneau/icetime/internal/team"
)

// Date is a wrapper around time.Time for YAML date parsing.
type Date struct {
	Time time.Time
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	t, err := time.Parse("2006-01-02", value.Value)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", value.Value, err)
	}
	d.Time = t
	return nil
}

type Season struct {
	StartDate Date `yaml:"start_date"`
	EndDate   Date `yaml:"end_date"`
}

// SharedIce accepts both the legacy bool form (shared_ice: true) and the
// object form (shared_ice: {enabled: true}).
type SharedIce struct {
	Enabled *bool
}

func (s *SharedIce) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var b bool
		if err := value.Decode(&b); err != nil {
			return fmt.Errorf("invalid shared_ice value: %w", err)
		}
		s.Enabled = &b
	case yaml.MappingNode:
		var obj struct {
			Enabled *bool `yaml:"enabled"`
		}
		if err := value.Decode(&obj); err != nil {
			return fmt.Errorf("invalid shared_ice object: %w", err)
		}
		if obj.Enabled != nil {
			s.Enabled = obj.Enabled
		} else {
			enabled := true
			s.Enabled = &enabled
		}
	default:
		return fmt.Errorf("shared_ice must be a bool or an object")
	}
	return nil
}

// BlackoutDates accepts a flat list of dates or the legacy grouped map
// form (month label -> list of dates). Unparseable dates are dropped:
// a blackout that cannot be read is treated as no constraint.
type BlackoutDates struct {
	Dates []time.Time
}

func (b *BlackoutDates) UnmarshalYAML(value *yaml.Node) error {
	appendDates := func(raw []string) {
		for _, s := range raw {
			if t, err := time.Parse("2006-01-02", s); err == nil {
				b.Dates = append(b.Dates, t)
			}
		}
	}
	switch value.Kind {
	case yaml.SequenceNode:
		var raw []string
		if err := value.Decode(&raw); err != nil {
			return fmt.Errorf("invalid blackout list: %w", err)
		}
		appendDates(raw)
	case yaml.MappingNode:
		var grouped map[string][]string
		if err := value.Decode(&grouped); err != nil {
			return fmt.Errorf("invalid blackout map: %w", err)
		}
		for _, raw := range grouped {
			appendDates(raw)
		}
	default:
		return fmt.Errorf("blackouts must be a list or a map of lists")
	}
	return nil
}

// TeamConfig is the raw, legacy-tolerant team shape. Normalize folds it
// into the canonical team.Team.
type TeamConfig struct {
	Age                 string               `yaml:"age"`
	Type                string               `yaml:"type"`
	PracticeDuration    int                  `yaml:"practice_duration"`
	GameDuration        int                  `yaml:"game_duration"`
	AllowMultiplePerDay bool                 `yaml:"allow_multiple_per_day"`
	AllowSharedIce      *bool                `yaml:"allow_shared_ice"`
	SharedIce           *SharedIce           `yaml:"shared_ice"`
	MandatorySharedIce  bool                 `yaml:"mandatory_shared_ice"`
	LateIceCutoff       string               `yaml:"late_ice_cutoff"`
	LateIceCutoffOn     bool                 `yaml:"late_ice_cutoff_enabled"`
	LateIceCutoffTime   string               `yaml:"late_ice_cutoff_time"`
	Preferred           map[string]yaml.Node `yaml:"preferred_days_and_times"`
	BlackoutDates       *BlackoutDates       `yaml:"blackout_dates"`
	Blackouts           *BlackoutDates       `yaml:"blackouts"`
}

var dayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

// Normalize converts the raw config shape into the canonical team model.
// Preference values may be an "HH:MM-HH:MM" string, a [start, end] list,
// or a single [start] list (treated as a one-hour window); values that
// fail to parse are dropped, per the degrade-to-unconstrained policy.
func (tc *TeamConfig) Normalize(name string) team.Team {
	t := team.Team{
		Name:                name,
		Age:                 tc.Age,
		Type:                team.Type(tc.Type),
		PracticeDuration:    tc.PracticeDuration,
		GameDuration:        tc.GameDuration,
		AllowMultiplePerDay: tc.AllowMultiplePerDay,
		AllowSharedIce:      true,
		MandatorySharedIce:  tc.MandatorySharedIce,
		Preferred:           make(map[time.Weekday][]team.Window),
	}
	if t.Type != team.Competitive {
		t.Type = team.House
	}
	if t.PracticeDuration <= 0 {
		t.PracticeDuration = 60
	}
	if t.GameDuration <= 0 {
		t.GameDuration = 60
	}

	switch {
	case tc.AllowSharedIce != nil:
		t.AllowSharedIce = *tc.AllowSharedIce
	case tc.SharedIce != nil && tc.SharedIce.Enabled != nil:
		t.AllowSharedIce = *tc.SharedIce.Enabled
	}

	cutoff := tc.LateIceCutoff
	if tc.LateIceCutoffOn && tc.LateIceCutoffTime != "" {
		cutoff = tc.LateIceCutoffTime
	}
	if cutoff != "" {
		if tod, err := team.ParseTimeOfDay(cutoff); err == nil {
			t.LateIceCutoff = &tod
		}
	}

	for key, node := range tc.Preferred {
		day, ok := dayNames[strings.ToLower(key)]
		if !ok {
			continue
		}
		window, ok := parseWindow(node)
		if !ok {
			continue
		}
		window.Strict = strictFlag(tc.Preferred, key)
		t.Preferred[day] = append(t.Preferred[day], window)
	}

	if tc.BlackoutDates != nil {
		t.Blackouts = append(t.Blackouts, tc.BlackoutDates.Dates...)
	} else if tc.Blackouts != nil {
		t.Blackouts = append(t.Blackouts, tc.Blackouts.Dates...)
	}

	return t
}

func strictFlag(prefs map[string]yaml.Node, day string) bool {
	for key, node := range prefs {
		if !strings.EqualFold(key, day+"_strict") {
			continue
		}
		var strict bool
		if err := node.Decode(&strict); err != nil {
			return false
		}
		return strict
	}
	return false
}

func parseWindow(node yaml.Node) (team.Window, bool) {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return team.Window{}, false
		}
		return ParseWindowString(s)
	case yaml.SequenceNode:
		var times []string
		if err := node.Decode(&times); err != nil {
			return team.Window{}, false
		}
		switch len(times) {
		case 1:
			start, err := team.ParseTimeOfDay(times[0])
			if err != nil {
				return team.Window{}, false
			}
			return team.Window{Start: start, End: start.Add(60)}, true
		case 2:
			return ParseWindowString(times[0] + "-" + times[1])
		}
	}
	return team.Window{}, false
}

// ParseWindowString parses an "HH:MM-HH:MM" range.
func ParseWindowString(s string) (team.Window, bool) {
	startStr, endStr, found := strings.Cut(s, "-")
	if !found {
		return team.Window{}, false
	}
	start, err := team.ParseTimeOfDay(strings.TrimSpace(startStr))
	if err != nil {
		return team.Window{}, false
	}
	end, err := team.ParseTimeOfDay(strings.TrimSpace(endStr))
	if err != nil {
		return team.Window{}, false
	}
	if end <= start {
		return team.Window{}, false
	}
	return team.Window{Start: start, End: end}, true
}

// Slot is one weekly arena time slot, either open ice or pre-assigned.
type Slot struct {
	Time     string `yaml:"time"` // "HH:MM-HH:MM"
	Type     string `yaml:"type"`
	Team     string `yaml:"pre_assigned_team"`
	Opponent string `yaml:"pre_assigned_opponent"`
	Duration int    `yaml:"duration"` // pre-assigned game length, minutes
}

// ArenaBlock is a contract period for one arena: a date range carrying a
// weekly slot pattern keyed by weekday index, "0" (Monday) through "6"
// (Sunday), matching the exported arena data format.
type ArenaBlock struct {
	Start Date              `yaml:"start"`
	End   Date              `yaml:"end"`
	Slots map[string][]Slot `yaml:"slots"`
}

// Rules holds the weekly quota table: type -> age tag -> sessions/week.
type Rules struct {
	DefaultIceTimeType string                    `yaml:"default_ice_time_type"`
	IceTimesPerWeek    map[string]map[string]int `yaml:"ice_times_per_week"`
}

// SessionsPerWeek returns the weekly quota for a team, or zero when no
// rule matches (such a team needs no allocated sessions).
func (r *Rules) SessionsPerWeek(t *team.Team) int {
	byAge, ok := r.IceTimesPerWeek[string(t.Type)]
	if !ok {
		return 0
	}
	return byAge[t.Age]
}

// PipelineStep is the external configuration of one allocation step.
type PipelineStep struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Priority   int            `yaml:"priority"`
	Enabled    *bool          `yaml:"enabled"`
	Parameters map[string]any `yaml:"parameters"`
}

// PipelineSettings are pipeline-wide knobs.
type PipelineSettings struct {
	AllocationTimeoutSeconds int     `yaml:"allocation_timeout_seconds"`
	EmergencyModeThreshold   float64 `yaml:"emergency_mode_threshold"`
	MaxIterationsPerStep     int     `yaml:"max_iterations_per_step"`
}

// Pipeline is the optional external pipeline configuration; absent, the
// engine's documented defaults apply.
type Pipeline struct {
	Steps          []PipelineStep   `yaml:"steps"`
	GlobalSettings PipelineSettings `yaml:"global_settings"`
}

type Config struct {
	Season   Season                  `yaml:"season"`
	Teams    map[string]TeamConfig   `yaml:"teams"`
	Arenas   map[string][]ArenaBlock `yaml:"arenas"`
	Rules    Rules                   `yaml:"rules"`
	Pipeline *Pipeline               `yaml:"pipeline"`
}

// NormalizedTeams folds every raw team config into the canonical model.
func (c *Config) NormalizedTeams() map[string]team.Team {
	teams := make(map[string]team.Team, len(c.Teams))
	for name, tc := range c.Teams {
		teams[name] = tc.Normalize(name)
	}
	return teams
}

// LoadFromBytes parses YAML bytes into a Config and validates it.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads and parses a YAML config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

func (c *Config) validate() error {
	if !c.Season.EndDate.Time.After(c.Season.StartDate.Time) {
		return fmt.Errorf("end date %s must be after start date %s",
			c.Season.EndDate.Time.Format("2006-01-02"),
			c.Season.StartDate.Time.Format("2006-01-02"))
	}

	if len(c.Teams) == 0 {
		return fmt.Errorf("at least one team is required")
	}

	if len(c.Arenas) == 0 {
		return fmt.Errorf("at least one arena is required")
	}

	for arena, blocks := range c.Arenas {
		for _, b := range blocks {
			if b.Start.Time.IsZero() || b.End.Time.IsZero() {
				return fmt.Errorf("arena %q: availability block must have start and end dates", arena)
			}
			if b.End.Time.Before(b.Start.Time) {
				return fmt.Errorf("arena %q: availability block end %s before start %s",
					arena, b.End.Time.Format("2006-01-02"), b.Start.Time.Format("2006-01-02"))
			}
		}
	}

	for name, tc := range c.Teams {
		if tc.Type != "" && tc.Type != "house" && tc.Type != "competitive" {
			return fmt.Errorf("team %q: type must be house or competitive, got %q", name, tc.Type)
		}
	}

	return nil
}
