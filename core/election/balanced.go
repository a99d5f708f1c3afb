// Balanced (parallel-style) selection.
//
// A distinct variant from sequential Phragmen: it seeds the active set with
// the highest-approval candidates, then loops assigning every voter's full
// stake to the least-backed of its selected targets and trying to swap the
// least-backed selected candidate for the strongest excluded one whenever
// that strictly lowers the maximum backing. The loop runs for a fixed budget
// of rounds or until no swap improves the objective. Same fixed tie-break as
// everywhere else: the lexicographically smaller account id wins.

package election

import (
	"context"
	"math/big"
	"sort"
)

// balanceRounds is the swap-loop budget.
const balanceRounds = 50

type balancedPhragmen struct{}

func (a *balancedPhragmen) Name() string { return "balanced-phragmen" }

func (a *balancedPhragmen) Compute(ctx context.Context, data *ElectionData, cfg *ElectionConfiguration) (*RawOutcome, error) {
	el := buildElectorate(data)

	var eligible []int
	for ci := range el.cands {
		if el.cands[ci].approval.Sign() > 0 {
			eligible = append(eligible, ci)
		}
	}
	if len(eligible) == 0 {
		return nil, &AlgorithmError{
			Algorithm: BalancedPhragmen,
			Message:   "no candidate has any backing (zero approval stake everywhere)",
		}
	}

	sort.Slice(eligible, func(a, b int) bool {
		cmp := el.cands[eligible[a]].approval.Cmp(el.cands[eligible[b]].approval)
		if cmp != 0 {
			return cmp > 0
		}
		return el.cands[eligible[a]].who < el.cands[eligible[b]].who
	})

	toElect := int(cfg.ActiveSetSize)
	if len(eligible) < toElect {
		toElect = len(eligible)
	}

	selected := make(map[int]bool, toElect)
	for _, ci := range eligible[:toElect] {
		selected[ci] = true
	}

	// Voter processing order is fixed up front: self votes first (their
	// target is forced), then nominators by account id.
	voterOrder := make([]int, len(el.voters))
	for i := range voterOrder {
		voterOrder[i] = i
	}
	sort.Slice(voterOrder, func(a, b int) bool {
		va, vb := &el.voters[voterOrder[a]], &el.voters[voterOrder[b]]
		if va.selfVote != vb.selfVote {
			return va.selfVote
		}
		return va.who < vb.who
	})

	backing := a.assign(el, selected, voterOrder)
	objective := maxBacking(backing, selected)

	for round := 0; round < balanceRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out := weakestSelected(el, backing, selected)
		in := strongestExcluded(el, eligible, selected)
		if in == -1 || out == -1 {
			break
		}

		trial := make(map[int]bool, len(selected))
		for ci := range selected {
			trial[ci] = true
		}
		delete(trial, out)
		trial[in] = true

		trialBacking := a.assign(el, trial, voterOrder)
		trialObjective := maxBacking(trialBacking, trial)
		if trialObjective.Cmp(objective) >= 0 {
			// Restore the allocations of the incumbent set and stop.
			backing = a.assign(el, selected, voterOrder)
			break
		}

		selected = trial
		backing = trialBacking
		objective = trialObjective
	}

	// Rank by backing, heaviest first.
	var won []int
	for ci := range selected {
		won = append(won, ci)
	}
	sort.Slice(won, func(a, b int) bool {
		cmp := backing[won[a]].Cmp(backing[won[b]])
		if cmp != 0 {
			return cmp > 0
		}
		return el.cands[won[a]].who < el.cands[won[b]].who
	})
	for rank, ci := range won {
		el.cands[ci].elected = true
		el.cands[ci].rank = uint32(rank)
	}

	return el.outcome(), nil
}

// assign gives every voter's full budget to the least-backed of its selected
// targets, processing voters in the fixed order and updating backings as it
// goes. Returns the per-candidate backing table.
func (a *balancedPhragmen) assign(el *electorate, selected map[int]bool, voterOrder []int) []*big.Int {
	backing := make([]*big.Int, len(el.cands))
	for ci := range el.cands {
		backing[ci] = new(big.Int)
	}

	for _, vi := range voterOrder {
		v := &el.voters[vi]
		target := -1
		for ei := range v.edges {
			ci := v.edges[ei].cand
			v.edges[ei].alloc = new(big.Int)
			if !selected[ci] {
				continue
			}
			if target == -1 || backing[ci].Cmp(backing[target]) < 0 ||
				(backing[ci].Cmp(backing[target]) == 0 && el.cands[ci].who < el.cands[target].who) {
				target = ci
			}
		}
		if target == -1 {
			continue
		}
		for ei := range v.edges {
			if v.edges[ei].cand == target {
				v.edges[ei].alloc = new(big.Int).Set(v.budget)
			}
		}
		backing[target].Add(backing[target], v.budget)
	}

	return backing
}

func maxBacking(backing []*big.Int, selected map[int]bool) *big.Int {
	max := new(big.Int)
	for ci := range selected {
		if backing[ci].Cmp(max) > 0 {
			max.Set(backing[ci])
		}
	}
	return max
}

func weakestSelected(el *electorate, backing []*big.Int, selected map[int]bool) int {
	out := -1
	for ci := range selected {
		if out == -1 || backing[ci].Cmp(backing[out]) < 0 ||
			(backing[ci].Cmp(backing[out]) == 0 && el.cands[ci].who < el.cands[out].who) {
			out = ci
		}
	}
	return out
}

func strongestExcluded(el *electorate, eligible []int, selected map[int]bool) int {
	in := -1
	for _, ci := range eligible {
		if selected[ci] {
			continue
		}
		if in == -1 || el.cands[ci].approval.Cmp(el.cands[in].approval) > 0 ||
			(el.cands[ci].approval.Cmp(el.cands[in].approval) == 0 && el.cands[ci].who < el.cands[in].who) {
			in = ci
		}
	}
	return in
}
