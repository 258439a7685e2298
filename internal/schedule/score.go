package schedule

import (
	"github.com/jmorneau/icetime/internal/team"
)

// Tuning carries the scoring constants and caps. The source data these
// defaults came from was re-tuned repeatedly, so they are configuration
// rather than hard-coded values.
type Tuning struct {
	// Strict-preference score bands, by overlap fraction.
	StrictFullScore    int     // overlap >= FullOverlap
	StrictGoodScore    int     // overlap >= PartialOverlap
	StrictPartialScore int     // any overlap
	SoftFullScore      int     // non-strict, overlap >= FullOverlap
	SoftPartialScore   int     // non-strict, any overlap
	FullOverlap        float64
	PartialOverlap     float64

	// Shared-ice compatibility.
	MaxShareAgeDiff       int
	EmergencyShareAgeDiff int

	// Session packing.
	MinSessionMinutes      int // blocks below this remaining are retired
	AbsorbTailMinutes      int // tails in [this, MinUtilization) are absorbed
	MinUtilizationMinutes  int // utilization phase fills blocks >= this
	MaxSessionsPerDay      int // phases 1-3
	UtilizationSessionsCap int // utilization phase
	MaxConsecutiveSessions int // ledger limit on time-adjacent same-day sessions
	QuotaSlack             float64
}

// DefaultTuning returns the canonical constants.
func DefaultTuning() Tuning {
	return Tuning{
		StrictFullScore:        100,
		StrictGoodScore:        80,
		StrictPartialScore:     60,
		SoftFullScore:          50,
		SoftPartialScore:       30,
		FullOverlap:            0.8,
		PartialOverlap:         0.5,
		MaxShareAgeDiff:        3,
		EmergencyShareAgeDiff:  4,
		MinSessionMinutes:      30,
		AbsorbTailMinutes:      15,
		MinUtilizationMinutes:  60,
		MaxSessionsPerDay:      2,
		UtilizationSessionsCap: 3,
		MaxConsecutiveSessions: 2,
		QuotaSlack:             1.5,
	}
}

// PreferenceScore rates how well a block matches a team's preferred
// windows. Strict windows score in a high band (three tiers by overlap
// fraction of the block), soft windows in a low band (two tiers). A day
// with no preference scores zero. The score ranks candidates; it is
// never a hard filter on its own.
func PreferenceScore(b *Block, t *team.Team, tun Tuning) int {
	windows := t.WindowsOn(b.Date.Weekday())
	if len(windows) == 0 {
		return 0
	}

	best := 0
	blockLen := float64(b.Duration())
	for _, w := range windows {
		if b.Start >= w.End || b.End <= w.Start {
			continue
		}
		overlapStart := maxTime(b.Start, w.Start)
		overlapEnd := minTime(b.End, w.End)
		overlap := float64(overlapEnd - overlapStart)

		if w.Strict {
			switch {
			case overlap >= blockLen*tun.FullOverlap:
				return tun.StrictFullScore
			case overlap >= blockLen*tun.PartialOverlap:
				return tun.StrictGoodScore
			default:
				return tun.StrictPartialScore
			}
		}

		score := tun.SoftPartialScore
		if overlap >= blockLen*tun.FullOverlap {
			score = tun.SoftFullScore
		}
		if score > best {
			best = score
		}
	}
	return best
}

// matchesStrictWindow reports whether the block fully contains one of
// the team's strict preferred windows.
func matchesStrictWindow(b *Block, t *team.Team) bool {
	for _, w := range t.WindowsOn(b.Date.Weekday()) {
		if w.Strict && b.Start <= w.Start && b.End >= w.End {
			return true
		}
	}
	return false
}

// ShareCompatibility reports whether two teams may share a block and
// how good a pairing it is; lower numbers are better. Sharing fails
// when either team disallows it (waived in emergency mode) or the age
// gap exceeds the threshold. Beyond those gates the number is a ranking
// signal only: mandatory pairs rank best, then one-mandatory pairs,
// then same-type pairs, with mixed house/competitive pairs last.
func ShareCompatibility(a, b *team.Team, emergency bool, tun Tuning) (bool, int) {
	ageA, ageB := a.AgeNumeric(), b.AgeNumeric()
	if ageA == 0 || ageB == 0 {
		return false, 0
	}
	ageDiff := ageA - ageB
	if ageDiff < 0 {
		ageDiff = -ageDiff
	}

	if !emergency && (!a.AllowSharedIce || !b.AllowSharedIce) {
		return false, 0
	}

	maxDiff := tun.MaxShareAgeDiff
	if emergency {
		maxDiff = tun.EmergencyShareAgeDiff
	}
	if ageDiff > maxDiff {
		return false, 0
	}

	switch {
	case a.HasMandatoryShared() && b.HasMandatoryShared():
		return true, 5 + ageDiff
	case a.HasMandatoryShared() || b.HasMandatoryShared():
		return true, 10 + ageDiff
	case emergency:
		return true, 30 + ageDiff
	case a.Type == b.Type:
		return true, 20 + ageDiff
	default:
		return true, 40 + ageDiff
	}
}

func maxTime(a, b team.TimeOfDay) team.TimeOfDay {
	if a > b {
		return a
	}
	return b
}

func minTime(a, b team.TimeOfDay) team.TimeOfDay {
	if a < b {
		return a
	}
	return b
}
