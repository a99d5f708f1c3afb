// Result assembly: raw algorithm outcome -> public ElectionResult.

package election

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

func assembleResult(raw *RawOutcome, cfg *ElectionConfiguration, requestedSize uint32) *ElectionResult {
	backing := make(map[AccountID]*big.Int, len(raw.Winners))
	backers := make(map[AccountID]uint32, len(raw.Winners))
	for _, w := range raw.Winners {
		backing[w.Who] = new(big.Int)
	}

	totalStake := new(big.Int)
	allocations := make([]VoterAllocation, 0, len(raw.Assignments))
	for _, vs := range raw.Assignments {
		va := VoterAllocation{Voter: vs.Voter, SelfVote: vs.SelfVote}
		for _, e := range vs.Edges {
			va.Targets = append(va.Targets, Allocation{
				Validator: e.Target,
				Amount:    new(big.Int).Set(e.Amount),
			})
			totalStake.Add(totalStake, e.Amount)
			if b, ok := backing[e.Target]; ok && e.Amount.Sign() > 0 {
				b.Add(b, e.Amount)
				backers[e.Target]++
			}
		}
		allocations = append(allocations, va)
	}

	selected := make([]SelectedValidator, 0, len(raw.Winners))
	for _, w := range raw.Winners {
		selected = append(selected, SelectedValidator{
			AccountID:      w.Who,
			TotalBacking:   backing[w.Who],
			NominatorCount: backers[w.Who],
			Rank:           w.Rank,
		})
	}

	return &ElectionResult{
		SelectedValidators: selected,
		Allocations:        allocations,
		TotalStake:         totalStake,
		AlgorithmUsed:      cfg.Algorithm,
		Undersized:         len(raw.Winners) < int(requestedSize),
		Metadata: ExecutionMetadata{
			RunID:         uuid.NewString(),
			BlockNumber:   cfg.BlockNumber,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			RequestedSize: requestedSize,
			Phase:         raw.Phase,
		},
	}
}

// verifyResult re-checks the result invariants before the engine hands it to
// the caller: set size, exact backing sums, per-voter budgets respected, and
// winners drawn from the input candidate set.
func verifyResult(result *ElectionResult, data *ElectionData, requestedSize uint32, eligible int) error {
	want := int(requestedSize)
	if eligible < want {
		want = eligible
	}
	if len(result.SelectedValidators) != want {
		return &ValidationError{
			Field:   "selected_validators",
			Message: fmt.Sprintf("result has %d validators but expected %d", len(result.SelectedValidators), want),
		}
	}

	candidates := make(map[AccountID]bool, len(data.Candidates))
	for _, c := range data.Candidates {
		candidates[c.AccountID] = true
	}

	sums := make(map[AccountID]*big.Int, len(result.SelectedValidators))
	for _, v := range result.SelectedValidators {
		if !candidates[v.AccountID] {
			return &ValidationError{
				Field:   "selected_validators",
				Message: fmt.Sprintf("selected validator %s is not an input candidate", v.AccountID),
			}
		}
		sums[v.AccountID] = new(big.Int)
	}

	budgets := make(map[AccountID]*big.Int, len(data.Nominators))
	for _, n := range data.Nominators {
		budgets[n.AccountID] = n.Stake
	}
	for _, c := range data.Candidates {
		budgets[c.AccountID] = c.SelfStake
	}

	for _, va := range result.Allocations {
		voterTotal := new(big.Int)
		for _, alloc := range va.Targets {
			if s, ok := sums[alloc.Validator]; ok {
				s.Add(s, alloc.Amount)
			}
			voterTotal.Add(voterTotal, alloc.Amount)
		}
		budget, ok := budgets[va.Voter]
		if !ok {
			return &ValidationError{
				Field:   "allocations",
				Message: fmt.Sprintf("allocation for unknown voter %s", va.Voter),
			}
		}
		if voterTotal.Cmp(budget) > 0 {
			return &ValidationError{
				Field:   "allocations",
				Message: fmt.Sprintf("voter %s allocated %s but only has %s", va.Voter, voterTotal, budget),
			}
		}
	}

	for _, v := range result.SelectedValidators {
		if sums[v.AccountID].Cmp(v.TotalBacking) != 0 {
			return &ValidationError{
				Field:   "selected_validators",
				Message: fmt.Sprintf("validator %s backing %s does not match allocation sum %s", v.AccountID, v.TotalBacking, sums[v.AccountID]),
			}
		}
	}

	return nil
}
