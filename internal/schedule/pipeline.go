package schedule

import (
	"fmt"
	"sort"
	"time"

	deepcopy "github.com/tiendc/go-deepcopy"

	"github.com/jmorneau/icetime/internal/config"
)

// StepParams are the free-form per-step options from configuration.
type StepParams map[string]any

// Bool reads a boolean parameter, falling back to def when the key is
// absent or not a bool.
func (p StepParams) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Int reads an integer parameter. YAML decodes whole numbers as int but
// a float is accepted too.
func (p StepParams) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// Step is one resolved pipeline step, bound by ID to a phase function.
type Step struct {
	ID       string
	Name     string
	Priority int
	Enabled  bool
	Params   StepParams
}

// GlobalSettings are the resolved pipeline-wide knobs.
type GlobalSettings struct {
	AllocationTimeout      time.Duration
	EmergencyModeThreshold float64
	MaxIterationsPerStep   int
}

// PipelineConfig is the resolved allocation pipeline: which steps run,
// in what order, with what parameters.
type PipelineConfig struct {
	Steps  []Step
	Global GlobalSettings
}

var stepFuncs = map[string]func(*run, StepParams) int{
	"minimum_guarantee":       minimumGuarantee,
	"preference_optimization": preferenceOptimization,
	"capacity_maximization":   capacityMaximization,
	"maximum_utilization":     maximumUtilization,
}

// DefaultPipeline returns the standard four-phase allocation pipeline.
func DefaultPipeline() *PipelineConfig {
	return &PipelineConfig{
		Steps: []Step{
			{ID: "minimum_guarantee", Name: "Minimum Ice Time Guarantee", Priority: 1, Enabled: true, Params: StepParams{}},
			{ID: "preference_optimization", Name: "Preference Optimization", Priority: 2, Enabled: true, Params: StepParams{}},
			{ID: "capacity_maximization", Name: "Capacity Maximization", Priority: 3, Enabled: true, Params: StepParams{}},
			{ID: "maximum_utilization", Name: "Maximum Utilization", Priority: 4, Enabled: true, Params: StepParams{}},
		},
		Global: GlobalSettings{
			AllocationTimeout:      300 * time.Second,
			EmergencyModeThreshold: 0.8,
			MaxIterationsPerStep:   1000,
		},
	}
}

// NormalizePipeline overlays the optional external pipeline section on
// the defaults. Configured steps must name a known step id; omitted
// steps keep their default settings.
func NormalizePipeline(pc *config.Pipeline) (*PipelineConfig, error) {
	resolved := &PipelineConfig{}
	if err := deepcopy.Copy(resolved, DefaultPipeline()); err != nil {
		return nil, fmt.Errorf("copying default pipeline: %w", err)
	}
	if pc == nil {
		return resolved, nil
	}

	for _, override := range pc.Steps {
		step := findStep(resolved.Steps, override.ID)
		if step == nil {
			return nil, fmt.Errorf("unknown pipeline step %q", override.ID)
		}
		if override.Name != "" {
			step.Name = override.Name
		}
		if override.Priority > 0 {
			step.Priority = override.Priority
		}
		if override.Enabled != nil {
			step.Enabled = *override.Enabled
		}
		for k, v := range override.Parameters {
			step.Params[k] = v
		}
	}

	gs := pc.GlobalSettings
	if gs.AllocationTimeoutSeconds > 0 {
		resolved.Global.AllocationTimeout = time.Duration(gs.AllocationTimeoutSeconds) * time.Second
	}
	if gs.EmergencyModeThreshold > 0 {
		resolved.Global.EmergencyModeThreshold = gs.EmergencyModeThreshold
	}
	if gs.MaxIterationsPerStep > 0 {
		resolved.Global.MaxIterationsPerStep = gs.MaxIterationsPerStep
	}

	sort.SliceStable(resolved.Steps, func(i, j int) bool {
		return resolved.Steps[i].Priority < resolved.Steps[j].Priority
	})
	return resolved, nil
}

func findStep(steps []Step, id string) *Step {
	for i := range steps {
		if steps[i].ID == id {
			return &steps[i]
		}
	}
	return nil
}

// StepResult records one executed pipeline step.
type StepResult struct {
	ID       string
	Name     string
	Booked   int
	Duration time.Duration
}

// Result is the full allocation outcome.
type Result struct {
	Schedule     []Entry
	Summary      *Summary
	Conflicts    []string
	Warnings     []string
	StepResults  []StepResult
	ExecutionLog []LogEntry
}

// Generate runs the allocation pipeline over a loaded configuration.
// A nil pipeline argument resolves the config's pipeline section, or
// the defaults. The returned result always carries whatever schedule
// was produced, even when some teams could not be fully served.
func Generate(cfg *config.Config, pc *PipelineConfig) (*Result, error) {
	if pc == nil {
		var err error
		pc, err = NormalizePipeline(cfg.Pipeline)
		if err != nil {
			return nil, err
		}
	}

	teams := cfg.NormalizedTeams()
	start := cfg.Season.StartDate.Time
	end := cfg.Season.EndDate.Time
	tun := DefaultTuning()

	blocks, preassigned, warnings := BuildBlocks(cfg, teams)

	r := &run{
		rules:              cfg.Rules,
		tun:                tun,
		start:              start,
		end:                end,
		weeks:              totalWeeks(start, end),
		blocks:             blocks,
		demands:            buildDemands(teams, cfg.Rules, start, end, preassigned),
		ledger:             NewLedger(tun.MaxConsecutiveSessions),
		schedule:           append([]Entry(nil), preassigned...),
		maxIterations:      pc.Global.MaxIterationsPerStep,
		emergencyThreshold: pc.Global.EmergencyModeThreshold,
	}
	r.ledger.Reset(r.schedule)
	if pc.Global.AllocationTimeout > 0 {
		r.deadline = time.Now().Add(pc.Global.AllocationTimeout)
	}
	r.logf("allocation started: %d teams, %d blocks, %d pre-assigned entries",
		len(teams), len(blocks), len(preassigned))

	results := make([]StepResult, 0, len(pc.Steps))
	for _, step := range pc.Steps {
		if !step.Enabled {
			r.logf("step %s disabled, skipping", step.ID)
			continue
		}
		fn, ok := stepFuncs[step.ID]
		if !ok {
			return nil, fmt.Errorf("unknown pipeline step %q", step.ID)
		}
		r.logf("step %s (%s) starting", step.ID, step.Name)
		began := time.Now()
		booked := fn(r, step.Params)
		results = append(results, StepResult{
			ID:       step.ID,
			Name:     step.Name,
			Booked:   booked,
			Duration: time.Since(began),
		})
	}

	r.schedule = dedupe(r.schedule)
	sortEntries(r.schedule)

	summary := analyze(r)
	conflicts := finalConflicts(r.schedule, r.tun.MaxConsecutiveSessions)
	r.logf("allocation finished: %d entries, %d conflicts", len(r.schedule), len(conflicts))

	return &Result{
		Schedule:     r.schedule,
		Summary:      summary,
		Conflicts:    conflicts,
		Warnings:     warnings,
		StepResults:  results,
		ExecutionLog: r.log,
	}, nil
}

// finalConflicts replays the finished schedule through a fresh ledger
// and reports anything that still collides.
func finalConflicts(entries []Entry, maxConsecutive int) []string {
	ledger := NewLedger(maxConsecutive)
	var conflicts []string
	for _, e := range entries {
		if ok, reasons := ledger.ValidateBooking(e.Team, e.Arena, e.Date, e.TimeSlot, false); !ok {
			conflicts = append(conflicts, reasons...)
		}
		ledger.AddBooking(e.Team, e.Arena, e.Date, e.TimeSlot, true)
		if e.Type == TypeSharedPractice && e.Opponent != OpponentPractice && e.Opponent != OpponentTBD {
			if ok, reasons := ledger.ValidateBooking(e.Opponent, e.Arena, e.Date, e.TimeSlot, true); !ok {
				conflicts = append(conflicts, reasons...)
			}
			ledger.AddBooking(e.Opponent, e.Arena, e.Date, e.TimeSlot, true)
		}
	}
	return conflicts
}
