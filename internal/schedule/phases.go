package schedule

import (
	"sort"
)

// The four allocation phases share one signature so the pipeline can
// dispatch them by step id. Each returns the number of bookings made.

// minimumGuarantee gives every team with no ice at all exactly one
// session, most-constrained teams first. Mandatory shared-ice teams are
// paired where possible, and quota and cutoff restrictions fall away in
// stages before the team is declared unservable.
func minimumGuarantee(r *run, p StepParams) int {
	booked := 0
	pol := r.strictPolicy()
	allowForced := p.Bool("allow_forced", true)

	for _, d := range byConstraint(r.demands, true) {
		if r.expired() {
			r.logf("minimum guarantee: allocation deadline reached")
			break
		}
		if d.totalScheduled() > 0 {
			continue
		}

		// Mandatory-shared teams are never booked individually.
		if d.Team.HasMandatoryShared() {
			if partner, b := r.bestSharedSlot(d, pol, false); b != nil && r.bookShared(d, partner, b, false) {
				r.logf("minimum guarantee: paired %s with %s at %s on %s",
					d.Team.Name, partner.Team.Name, b.Arena, b.Date.Format("2006-01-02"))
				booked++
			} else {
				r.logf("minimum guarantee: no compatible partner for %s", d.Team.Name)
			}
			continue
		}

		if r.tryBook(d, pol, false) {
			booked++
			continue
		}

		// Relax quota and cutoff before resorting to a forced booking.
		relaxed := pol
		relaxed.IgnoreQuota = true
		relaxed.IgnoreCutoff = true
		if r.tryBook(d, relaxed, false) {
			r.logf("minimum guarantee: relaxed restrictions for %s", d.Team.Name)
			booked++
			continue
		}
		if allowForced && d.Team.HasStrictPreferences() && r.tryBook(d, relaxed, true) {
			r.logf("minimum guarantee: forced booking for %s", d.Team.Name)
			booked++
			continue
		}
		r.logf("minimum guarantee: no ice available for %s", d.Team.Name)
	}

	r.logf("minimum guarantee: %d sessions booked", booked)
	return booked
}

// preferenceOptimization repeatedly grants the single best available
// booking to the team with the strongest claim, re-ranking after every
// grant so no team can drain the pool in one pass.
func preferenceOptimization(r *run, p StepParams) int {
	booked := 0
	pol := r.strictPolicy()

	for iter := 0; r.maxIterations == 0 || iter < r.maxIterations; iter++ {
		if r.expired() {
			r.logf("preference optimization: allocation deadline reached")
			break
		}
		progress := false
		for _, d := range byPriority(r.demands, true) {
			if r.allocateOne(d, pol) {
				booked++
				progress = true
				break
			}
		}
		if !progress {
			break
		}
	}

	r.logf("preference optimization: %d sessions booked", booked)
	return booked
}

// allocateOne makes at most one booking for a team, in descending order
// of desirability: mandatory shared ice, then preferred windows, then
// shared ice of opportunity, then any open block.
func (r *run) allocateOne(d *Demand, pol dayPolicy) bool {
	if d.Team.HasMandatoryShared() {
		if partner, b := r.bestSharedSlot(d, pol, false); b != nil && r.bookShared(d, partner, b, false) {
			return true
		}
		return false
	}

	for _, b := range r.candidates(d, pol) {
		if PreferenceScore(b, &d.Team, r.tun) == 0 {
			break
		}
		if r.bookPractice(d, b, false) {
			return true
		}
	}

	if d.Team.AllowSharedIce && !d.Team.HasMandatoryShared() {
		if partner, b := r.bestSharedSlot(d, pol, false); b != nil && r.bookShared(d, partner, b, false) {
			return true
		}
	}

	return r.tryBook(d, pol, false)
}

// capacityMaximization pushes remaining demand into the pool under a
// relaxed quota, allowing a time-adjacent second session per day and
// preferring shared bookings so one block can serve two teams.
func capacityMaximization(r *run, p StepParams) int {
	booked := 0
	pol := dayPolicy{
		MaxPerDay:      r.tun.MaxSessionsPerDay,
		PermitMultiple: true,
		BackToBack:     true,
		LenientQuota:   true,
	}
	preferShared := p.Bool("prefer_shared", true)

	for iter := 0; r.maxIterations == 0 || iter < r.maxIterations; iter++ {
		if r.expired() {
			r.logf("capacity maximization: allocation deadline reached")
			break
		}
		progress := false
		for _, d := range byPriority(r.demands, true) {
			if preferShared && d.Team.AllowSharedIce {
				if partner, b := r.bestSharedSlot(d, pol, false); b != nil && r.bookShared(d, partner, b, false) {
					booked++
					progress = true
					continue
				}
			}
			if d.Team.HasMandatoryShared() {
				continue
			}
			if r.tryBook(d, pol, false) {
				booked++
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	r.logf("capacity maximization: %d sessions booked", booked)
	return booked
}

// maximumUtilization hands out whatever usable ice is still in the
// pool, quota no longer applies. Each grant consumes the whole
// remaining span of its block, going to the least allocated team that
// can take it. When the season is badly short, sharing rules widen to
// emergency tolerances.
func maximumUtilization(r *run, p StepParams) int {
	booked := 0
	pol := dayPolicy{
		MaxPerDay:      r.tun.UtilizationSessionsCap,
		PermitMultiple: true,
		IgnoreQuota:    true,
		IgnoreCutoff:   true,
	}
	emergency := p.Bool("emergency_mode", r.emergencyMode())
	if emergency {
		r.logf("maximum utilization: emergency mode, widened sharing tolerances")
	}

	for {
		if r.expired() {
			r.logf("maximum utilization: allocation deadline reached")
			break
		}
		progress := false
		for _, b := range r.openBlocks() {
			if r.fillBlock(b, pol, emergency) {
				booked++
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	r.logf("maximum utilization: %d sessions booked", booked)
	return booked
}

// fillBlock gives the remaining span of a block to the least allocated
// eligible team, falling back to an emergency shared pairing when no
// single team can take it alone.
func (r *run) fillBlock(b *Block, pol dayPolicy, emergency bool) bool {
	ordered := sortedDemands(r.demands, false)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].allocatedFraction() < ordered[j].allocatedFraction()
	})

	for _, d := range ordered {
		if d.Team.HasMandatoryShared() || !r.blockAvailable(b, d, pol) {
			continue
		}
		if r.bookSpan(d, b, b.Remaining(), false) {
			return true
		}
	}

	if !emergency {
		return false
	}
	for _, d := range ordered {
		if !r.blockAvailable(b, d, pol) {
			continue
		}
		for _, other := range ordered {
			if other == d {
				continue
			}
			if ok, _ := ShareCompatibility(&d.Team, &other.Team, true, r.tun); !ok {
				continue
			}
			if !r.blockAvailable(b, other, pol) {
				continue
			}
			if r.bookShared(d, other, b, false) {
				return true
			}
		}
	}
	return false
}

// candidates returns the blocks a team could book under the policy,
// best preference match first. Blocks tie on score in date order.
func (r *run) candidates(d *Demand, pol dayPolicy) []*Block {
	out := make([]*Block, 0, len(r.blocks))
	for _, b := range r.blocks {
		if r.blockAvailable(b, d, pol) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return PreferenceScore(out[i], &d.Team, r.tun) > PreferenceScore(out[j], &d.Team, r.tun)
	})
	return out
}

// tryBook books the first candidate block that commits cleanly.
func (r *run) tryBook(d *Demand, pol dayPolicy, force bool) bool {
	for _, b := range r.candidates(d, pol) {
		if r.bookPractice(d, b, force) {
			return true
		}
	}
	return false
}

// bestSharedSlot searches every needing partner and open block for the
// strongest shared pairing: best compatibility rank first, then the
// highest combined preference score.
func (r *run) bestSharedSlot(d *Demand, pol dayPolicy, emergency bool) (*Demand, *Block) {
	var (
		bestPartner *Demand
		bestBlock   *Block
		bestRank    int
		bestScore   int
	)

	for _, other := range sortedDemands(r.demands, true) {
		if other == d {
			continue
		}
		ok, rank := ShareCompatibility(&d.Team, &other.Team, emergency, r.tun)
		if !ok {
			continue
		}
		for _, b := range r.blocks {
			if !r.blockAvailable(b, d, pol) || !r.blockAvailable(b, other, pol) {
				continue
			}
			score := PreferenceScore(b, &d.Team, r.tun) + PreferenceScore(b, &other.Team, r.tun)
			if bestBlock == nil || rank < bestRank || (rank == bestRank && score > bestScore) {
				bestPartner, bestBlock, bestRank, bestScore = other, b, rank, score
			}
		}
	}
	return bestPartner, bestBlock
}

// openBlocks snapshots the blocks still worth filling in the
// utilization phase.
func (r *run) openBlocks() []*Block {
	out := make([]*Block, 0, len(r.blocks))
	for _, b := range r.blocks {
		if b.Remaining() >= r.tun.MinUtilizationMinutes {
			out = append(out, b)
		}
	}
	return out
}

// emergencyMode reports whether any team is still far enough below its
// season target to justify widened sharing rules.
func (r *run) emergencyMode() bool {
	for _, d := range r.demands {
		if d.TotalTarget > 0 && d.allocatedFraction() < r.emergencyThreshold {
			return true
		}
	}
	return false
}
