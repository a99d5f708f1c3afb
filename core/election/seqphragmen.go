// Sequential Phragmen with post-election stake equalization.
//
// This mirrors the seq-phragmen procedure used by Substrate's staking
// election: each round scores every unelected candidate by
//
//	score(c) = (1 + sum over voters v of load(v) * stake(v)) / approval(c)
//
// elects the minimum-score candidate, then bumps the loads of the voters
// backing it. Edge loads record each voter's fractional commitment, and the
// final stake split is proportional to edge load over voter load. Ties are
// always broken toward the lexicographically smaller account id.

package election

import (
	"context"
	"math/big"
	"sort"
)

const (
	// equalizeMaxIterations caps the post-election balancing passes.
	equalizeMaxIterations = 10
)

// equalizeTolerance ends balancing early once a full pass moves less than
// this much raw stake in total.
var equalizeTolerance = big.NewInt(100)

type seqPhragmen struct {
	// equalize disables the balancing passes when false; the multi-phase
	// fallback runs without them.
	equalize bool
}

func (a *seqPhragmen) Name() string { return "sequential-phragmen" }

func (a *seqPhragmen) Compute(ctx context.Context, data *ElectionData, cfg *ElectionConfiguration) (*RawOutcome, error) {
	el := buildElectorate(data)

	eligible := el.eligibleCount()
	if eligible == 0 {
		return nil, &AlgorithmError{
			Algorithm: SequentialPhragmen,
			Message:   "no candidate has any backing (zero approval stake everywhere)",
		}
	}

	toElect := int(cfg.ActiveSetSize)
	if eligible < toElect {
		toElect = eligible
	}

	for round := 0; round < toElect; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Score accumulators, fixed-point numerators pre-division. The "1" in
		// the numerator is one whole unit, i.e. fixedDenom.
		scores := make([]*big.Int, len(el.cands))
		for ci := range el.cands {
			if !el.cands[ci].elected && el.cands[ci].approval.Sign() > 0 {
				scores[ci] = new(big.Int).Set(fixedDenom)
			}
		}
		for vi := range el.voters {
			v := &el.voters[vi]
			if v.load.IsZero() {
				continue
			}
			contribution := v.load.MulInt(v.budget)
			for _, ed := range v.edges {
				if scores[ed.cand] != nil {
					scores[ed.cand].Add(scores[ed.cand], contribution)
				}
			}
		}

		winner := -1
		var winnerScore Fixed
		for ci := range el.cands {
			if scores[ci] == nil {
				continue
			}
			score := Fixed{n: new(big.Int).Quo(scores[ci], el.cands[ci].approval)}
			if winner == -1 || score.Cmp(winnerScore) < 0 ||
				(score.Cmp(winnerScore) == 0 && el.cands[ci].who < el.cands[winner].who) {
				winner = ci
				winnerScore = score
			}
		}

		el.cands[winner].elected = true
		el.cands[winner].rank = uint32(round)

		for vi := range el.voters {
			v := &el.voters[vi]
			for ei := range v.edges {
				if v.edges[ei].cand == winner {
					v.edges[ei].load = winnerScore.Sub(v.load)
					v.load = winnerScore
					break
				}
			}
		}
	}

	a.assign(el)

	if a.equalize {
		if err := equalize(ctx, el); err != nil {
			return nil, err
		}
	}

	return el.outcome(), nil
}

// assign splits every voter's budget across its elected edges proportionally
// to edge load over voter load. The division remainder goes to the voter's
// last elected edge so allocations sum exactly to the budget.
func (a *seqPhragmen) assign(el *electorate) {
	for vi := range el.voters {
		v := &el.voters[vi]
		if v.load.IsZero() {
			continue
		}

		last := -1
		for ei := range v.edges {
			if el.cands[v.edges[ei].cand].elected && !v.edges[ei].load.IsZero() {
				last = ei
			}
		}
		if last == -1 {
			continue
		}

		spent := new(big.Int)
		for ei := range v.edges {
			ed := &v.edges[ei]
			if !el.cands[ed.cand].elected || ed.load.IsZero() {
				continue
			}
			if ei == last {
				ed.alloc = new(big.Int).Sub(v.budget, spent)
			} else {
				ed.alloc = mulDiv(v.budget, ed.load.n, v.load.n)
				spent.Add(spent, ed.alloc)
			}
		}
	}
}

// equalize runs bounded balancing passes: each voter's budget is
// redistributed across its elected targets so their backings level out as
// much as integer stake allows. A pass that moves less than
// equalizeTolerance raw stake in total ends the loop early.
func equalize(ctx context.Context, el *electorate) error {
	backing := make([]*big.Int, len(el.cands))
	for ci := range el.cands {
		backing[ci] = new(big.Int)
	}
	for vi := range el.voters {
		for _, ed := range el.voters[vi].edges {
			backing[ed.cand].Add(backing[ed.cand], ed.alloc)
		}
	}

	for pass := 0; pass < equalizeMaxIterations; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		moved := new(big.Int)
		for vi := range el.voters {
			v := &el.voters[vi]
			moved.Add(moved, balanceVoter(el, v, backing))
		}

		if moved.Cmp(equalizeTolerance) < 0 {
			break
		}
	}
	return nil
}

// balanceVoter reallocates one voter's budget over its elected targets via
// an integer waterfill against the backings excluding this voter's own
// contribution. Returns the total absolute stake moved.
func balanceVoter(el *electorate, v *voter, backing []*big.Int) *big.Int {
	var elected []int
	for ei := range v.edges {
		if el.cands[v.edges[ei].cand].elected {
			elected = append(elected, ei)
		}
	}
	if len(elected) < 2 {
		return new(big.Int)
	}

	// Backing of each target without this voter's current allocation.
	base := make([]*big.Int, len(elected))
	for i, ei := range elected {
		base[i] = new(big.Int).Sub(backing[v.edges[ei].cand], v.edges[ei].alloc)
	}

	order := make([]int, len(elected))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		cmp := base[order[a]].Cmp(base[order[b]])
		if cmp != 0 {
			return cmp < 0
		}
		return el.cands[v.edges[elected[order[a]]].cand].who < el.cands[v.edges[elected[order[b]]].cand].who
	})

	// Waterfill: find the largest prefix k of the sorted targets whose
	// common level stays at or above the prefix's highest base.
	k := len(order)
	for k > 1 {
		sum := new(big.Int).Set(v.budget)
		for i := 0; i < k; i++ {
			sum.Add(sum, base[order[i]])
		}
		level := new(big.Int).Quo(sum, big.NewInt(int64(k)))
		if level.Cmp(base[order[k-1]]) >= 0 {
			break
		}
		k--
	}

	sum := new(big.Int).Set(v.budget)
	for i := 0; i < k; i++ {
		sum.Add(sum, base[order[i]])
	}
	level := new(big.Int).Quo(sum, big.NewInt(int64(k)))

	newAlloc := make([]*big.Int, len(elected))
	spent := new(big.Int)
	for i := range elected {
		newAlloc[i] = new(big.Int)
	}
	for i := 0; i < k; i++ {
		x := new(big.Int).Sub(level, base[order[i]])
		newAlloc[order[i]] = x
		spent.Add(spent, x)
	}
	// Flooring leaves at most k-1 units unspent; hand them out one by one in
	// waterfill order so the split stays exact and deterministic.
	rem := new(big.Int).Sub(v.budget, spent)
	one := big.NewInt(1)
	for i := 0; rem.Sign() > 0; i = (i + 1) % k {
		newAlloc[order[i]].Add(newAlloc[order[i]], one)
		rem.Sub(rem, one)
	}

	moved := new(big.Int)
	for i, ei := range elected {
		ed := &v.edges[ei]
		diff := new(big.Int).Sub(newAlloc[i], ed.alloc)
		moved.Add(moved, new(big.Int).Abs(diff))
		backing[ed.cand].Add(backing[ed.cand], diff)
		ed.alloc = newAlloc[i]
	}
	return moved
}
