// Diagnostics: per-candidate and per-nominator explanations of an outcome.

package election

import (
	"math/big"
	"sort"
)

// GenerateDiagnostics explains a result against the snapshot it was computed
// from. Selected candidates carry their rank and backing; excluded ones are
// classified by the final loads: no approval stake at all, enough approval to
// have tied near the cutoff (with the rank they would have occupied), or
// simply insufficient backing. Every nominator edge is reported with the
// stake it actually received, zero included.
func GenerateDiagnostics(result *ElectionResult, data *ElectionData) *Diagnostics {
	diag := &Diagnostics{}

	approvals := make(map[AccountID]*big.Int, len(data.Candidates))
	for _, c := range data.Candidates {
		approvals[c.AccountID] = new(big.Int).Set(c.SelfStake)
	}
	for _, n := range data.Nominators {
		for _, t := range n.Targets {
			approvals[t].Add(approvals[t], n.Stake)
		}
	}

	selected := make(map[AccountID]*SelectedValidator, len(result.SelectedValidators))
	minBacking := (*big.Int)(nil)
	for i := range result.SelectedValidators {
		v := &result.SelectedValidators[i]
		selected[v.AccountID] = v
		if minBacking == nil || v.TotalBacking.Cmp(minBacking) < 0 {
			minBacking = v.TotalBacking
		}
	}

	// Rank the excluded-but-backed candidates by approval so cutoff
	// exclusions can report the rank they would have occupied.
	var excluded []AccountID
	for _, c := range data.Candidates {
		if _, ok := selected[c.AccountID]; !ok && approvals[c.AccountID].Sign() > 0 {
			excluded = append(excluded, c.AccountID)
		}
	}
	sort.Slice(excluded, func(a, b int) bool {
		cmp := approvals[excluded[a]].Cmp(approvals[excluded[b]])
		if cmp != 0 {
			return cmp > 0
		}
		return excluded[a] < excluded[b]
	})
	wouldBeRank := make(map[AccountID]uint32, len(excluded))
	for i, who := range excluded {
		wouldBeRank[who] = uint32(len(result.SelectedValidators) + i)
	}

	for _, c := range data.Candidates {
		expl := SelectionExplanation{
			AccountID:     c.AccountID,
			ApprovalStake: approvals[c.AccountID],
		}
		if v, ok := selected[c.AccountID]; ok {
			expl.Selected = true
			expl.Rank = v.Rank
			expl.Backing = v.TotalBacking
		} else {
			expl.Backing = new(big.Int)
			switch {
			case approvals[c.AccountID].Sign() == 0:
				expl.Reason = ReasonNoEligibleVoters
			case minBacking != nil && approvals[c.AccountID].Cmp(minBacking) >= 0:
				expl.Reason = ReasonRankCutoff
				expl.WouldBeRank = wouldBeRank[c.AccountID]
			default:
				expl.Reason = ReasonInsufficientBacking
			}
		}
		diag.Candidates = append(diag.Candidates, expl)
	}

	// Realized allocation per nominator, keyed back onto declared edges.
	realized := make(map[AccountID]map[AccountID]*big.Int, len(result.Allocations))
	for _, va := range result.Allocations {
		if va.SelfVote {
			continue
		}
		m := make(map[AccountID]*big.Int, len(va.Targets))
		for _, alloc := range va.Targets {
			m[alloc.Validator] = alloc.Amount
		}
		realized[va.Voter] = m
	}

	for _, n := range data.Nominators {
		expl := NominatorExplanation{AccountID: n.AccountID, Stake: n.Stake}
		for _, t := range n.Targets {
			out := EdgeOutcome{Target: t, Allocated: new(big.Int)}
			if amount, ok := realized[n.AccountID][t]; ok {
				out.Allocated = amount
			}
			if _, ok := selected[t]; !ok {
				out.Unused = true
			}
			expl.Edges = append(expl.Edges, out)
		}
		diag.Nominators = append(diag.Nominators, expl)
	}

	return diag
}
