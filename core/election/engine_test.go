package election

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stake(n int64) *big.Int {
	return big.NewInt(n)
}

func newTestSnapshot() *ElectionData {
	// Three candidates with equal self-stake, one nominator backing all of
	// them. The classic near-tie setup.
	return &ElectionData{
		Candidates: []ValidatorCandidate{
			{AccountID: "cand-a", SelfStake: stake(100)},
			{AccountID: "cand-b", SelfStake: stake(100)},
			{AccountID: "cand-c", SelfStake: stake(100)},
		},
		Nominators: []Nominator{
			{AccountID: "nom-1", Stake: stake(300), Targets: []AccountID{"cand-a", "cand-b", "cand-c"}},
		},
	}
}

func findSelected(r *ElectionResult, who AccountID) *SelectedValidator {
	for i := range r.SelectedValidators {
		if r.SelectedValidators[i].AccountID == who {
			return &r.SelectedValidators[i]
		}
	}
	return nil
}

func nominatorAllocation(r *ElectionResult, voter, validator AccountID) *big.Int {
	for _, va := range r.Allocations {
		if va.Voter != voter || va.SelfVote {
			continue
		}
		for _, alloc := range va.Targets {
			if alloc.Validator == validator {
				return alloc.Amount
			}
		}
	}
	return new(big.Int)
}

// Scenario A: one candidate, one nominator fully backing it.
func TestSingleCandidateFullBacking(t *testing.T) {
	assert := assert.New(t)

	data := &ElectionData{
		Candidates: []ValidatorCandidate{{AccountID: "cand-x", SelfStake: stake(100)}},
		Nominators: []Nominator{{AccountID: "nom-1", Stake: stake(500), Targets: []AccountID{"cand-x"}}},
	}
	cfg := &ElectionConfiguration{ActiveSetSize: 1, Algorithm: SequentialPhragmen}

	result, err := NewEngine().Run(context.Background(), data, cfg, false)
	require.NoError(t, err)

	assert.Equal(1, result.ValidatorCount())
	assert.False(result.Undersized)

	winner := findSelected(result, "cand-x")
	require.NotNil(t, winner)
	// Self-stake plus full nominator stake.
	assert.Equal(0, winner.TotalBacking.Cmp(stake(600)))
	assert.Equal(0, nominatorAllocation(result, "nom-1", "cand-x").Cmp(stake(500)))
}

// Scenario B: three equal candidates, one nominator, two seats. Exactly two
// selected; diagnostics classify the third as excluded by rank cutoff.
func TestRankCutoffExclusion(t *testing.T) {
	assert := assert.New(t)

	data := newTestSnapshot()
	cfg := &ElectionConfiguration{ActiveSetSize: 2, Algorithm: SequentialPhragmen}

	result, err := NewEngine().Run(context.Background(), data, cfg, true)
	require.NoError(t, err)
	require.Equal(t, 2, result.ValidatorCount())
	require.NotNil(t, result.Diagnostics)

	// Equalization should have leveled the nominator's stake across both
	// selected targets: 100 self + 150 nominated each.
	for _, v := range result.SelectedValidators {
		assert.Equal(0, v.TotalBacking.Cmp(stake(250)), "validator %s backing %s", v.AccountID, v.TotalBacking)
	}

	excluded := 0
	for _, expl := range result.Diagnostics.Candidates {
		if expl.Selected {
			continue
		}
		excluded++
		assert.Equal(ReasonRankCutoff, expl.Reason)
		assert.Equal(uint32(2), expl.WouldBeRank)
	}
	assert.Equal(1, excluded)
}

// Scenario C: requested size exceeds the eligible pool. Smaller result,
// flagged, no error.
func TestUndersizedResult(t *testing.T) {
	assert := assert.New(t)

	data := &ElectionData{
		Candidates: []ValidatorCandidate{
			{AccountID: "cand-a", SelfStake: stake(0)},
			{AccountID: "cand-b", SelfStake: stake(0)},
			{AccountID: "cand-c", SelfStake: stake(0)},
			{AccountID: "cand-d", SelfStake: stake(0)},
			{AccountID: "cand-e", SelfStake: stake(0)},
			{AccountID: "cand-f", SelfStake: stake(0)},
		},
		Nominators: []Nominator{
			{AccountID: "nom-1", Stake: stake(400), Targets: []AccountID{"cand-a"}},
			{AccountID: "nom-2", Stake: stake(200), Targets: []AccountID{"cand-b"}},
		},
	}
	cfg := &ElectionConfiguration{ActiveSetSize: 5, Algorithm: SequentialPhragmen}

	result, err := NewEngine().Run(context.Background(), data, cfg, false)
	require.NoError(t, err)

	assert.Equal(2, result.ValidatorCount())
	assert.True(result.Undersized)
	assert.Equal(uint32(5), result.Metadata.RequestedSize)
}

// Scenario D: an override flipping a candidate's self-stake from zero to a
// large value flips it from excluded to selected, all else held constant.
func TestOverrideFlipsSelection(t *testing.T) {
	assert := assert.New(t)

	data := &ElectionData{
		Candidates: []ValidatorCandidate{
			{AccountID: "cand-a", SelfStake: stake(100)},
			{AccountID: "cand-b", SelfStake: stake(100)},
			{AccountID: "cand-z", SelfStake: stake(0)},
		},
		Nominators: []Nominator{
			{AccountID: "nom-1", Stake: stake(200), Targets: []AccountID{"cand-a", "cand-b"}},
		},
	}

	cfg := &ElectionConfiguration{ActiveSetSize: 2, Algorithm: SequentialPhragmen}
	result, err := NewEngine().Run(context.Background(), data, cfg, false)
	require.NoError(t, err)
	assert.Nil(findSelected(result, "cand-z"))

	cfgWithOverride := &ElectionConfiguration{
		ActiveSetSize: 2,
		Algorithm:     SequentialPhragmen,
		Overrides: OverrideSet{
			{Kind: SetCandidateStake, Account: "cand-z", Stake: stake(10000)},
		},
	}
	result, err = NewEngine().Run(context.Background(), data, cfgWithOverride, false)
	require.NoError(t, err)
	assert.NotNil(findSelected(result, "cand-z"))
}

func TestDeterminism(t *testing.T) {
	data := newTestSnapshot()
	cfg := &ElectionConfiguration{ActiveSetSize: 2, Algorithm: SequentialPhragmen}

	engine := NewEngine()
	first, err := engine.Run(context.Background(), data, cfg, false)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		next, err := engine.Run(context.Background(), data, cfg, false)
		require.NoError(t, err)
		// Metadata carries a run id and timestamp; everything else must be
		// identical down to the tie-breaks.
		assert.Equal(t, first.SelectedValidators, next.SelectedValidators)
		assert.Equal(t, first.Allocations, next.Allocations)
		assert.Equal(t, 0, first.TotalStake.Cmp(next.TotalStake))
		assert.Equal(t, first.Undersized, next.Undersized)
	}
}

// With no nominator edges at all the election degenerates to selection by
// self-stake.
func TestDisconnectedSnapshotSelectsBySelfStake(t *testing.T) {
	assert := assert.New(t)

	data := &ElectionData{
		Candidates: []ValidatorCandidate{
			{AccountID: "cand-a", SelfStake: stake(10)},
			{AccountID: "cand-b", SelfStake: stake(50)},
			{AccountID: "cand-c", SelfStake: stake(30)},
		},
	}
	cfg := &ElectionConfiguration{ActiveSetSize: 2, Algorithm: SequentialPhragmen}

	result, err := NewEngine().Run(context.Background(), data, cfg, false)
	require.NoError(t, err)

	assert.Equal(2, result.ValidatorCount())
	assert.NotNil(findSelected(result, "cand-b"))
	assert.NotNil(findSelected(result, "cand-c"))
	assert.Nil(findSelected(result, "cand-a"))
}

func TestValidationErrors(t *testing.T) {
	assert := assert.New(t)
	engine := NewEngine()
	ctx := context.Background()

	// Empty candidate set.
	_, err := engine.Run(ctx, &ElectionData{}, &ElectionConfiguration{ActiveSetSize: 1}, false)
	assert.True(IsValidationError(err))

	// Zero active set size.
	data := newTestSnapshot()
	_, err = engine.Run(ctx, data, &ElectionConfiguration{ActiveSetSize: 0}, false)
	assert.True(IsValidationError(err))

	// Dangling edge.
	bad := newTestSnapshot()
	bad.Nominators[0].Targets = append(bad.Nominators[0].Targets, "cand-ghost")
	_, err = engine.Run(ctx, bad, &ElectionConfiguration{ActiveSetSize: 1}, false)
	assert.True(IsValidationError(err))

	// Duplicate candidate.
	dup := newTestSnapshot()
	dup.Candidates = append(dup.Candidates, ValidatorCandidate{AccountID: "cand-a", SelfStake: stake(1)})
	_, err = engine.Run(ctx, dup, &ElectionConfiguration{ActiveSetSize: 1}, false)
	assert.True(IsValidationError(err))

	// Duplicate edge.
	dupEdge := newTestSnapshot()
	dupEdge.Nominators[0].Targets = []AccountID{"cand-a", "cand-a"}
	_, err = engine.Run(ctx, dupEdge, &ElectionConfiguration{ActiveSetSize: 1}, false)
	assert.True(IsValidationError(err))
}

func TestNoBackingAnywhereIsAlgorithmError(t *testing.T) {
	data := &ElectionData{
		Candidates: []ValidatorCandidate{
			{AccountID: "cand-a", SelfStake: stake(0)},
			{AccountID: "cand-b", SelfStake: stake(0)},
		},
	}
	cfg := &ElectionConfiguration{ActiveSetSize: 1, Algorithm: SequentialPhragmen}

	_, err := NewEngine().Run(context.Background(), data, cfg, false)
	assert.True(t, IsAlgorithmError(err))
}

func TestBalancedVariant(t *testing.T) {
	assert := assert.New(t)

	data := newTestSnapshot()
	cfg := &ElectionConfiguration{ActiveSetSize: 2, Algorithm: BalancedPhragmen}

	result, err := NewEngine().Run(context.Background(), data, cfg, false)
	require.NoError(t, err)

	assert.Equal(2, result.ValidatorCount())
	assert.Equal(BalancedPhragmen, result.AlgorithmUsed)

	// Every nominator with a selected target commits its full stake under
	// the balanced variant.
	total := new(big.Int)
	for _, va := range result.Allocations {
		if va.SelfVote {
			continue
		}
		for _, alloc := range va.Targets {
			total.Add(total, alloc.Amount)
		}
	}
	assert.Equal(0, total.Cmp(stake(300)))
}

func TestMultiPhaseRecordsSignedPhase(t *testing.T) {
	data := newTestSnapshot()
	cfg := &ElectionConfiguration{ActiveSetSize: 2, Algorithm: MultiPhase}

	result, err := NewEngine().Run(context.Background(), data, cfg, false)
	require.NoError(t, err)
	assert.Equal(t, PhaseSigned, result.Metadata.Phase)
	assert.False(t, result.Undersized)
}

func TestMultiPhaseFallsBackOnUndersizedPool(t *testing.T) {
	data := &ElectionData{
		Candidates: []ValidatorCandidate{
			{AccountID: "cand-a", SelfStake: stake(100)},
			{AccountID: "cand-b", SelfStake: stake(0)},
			{AccountID: "cand-c", SelfStake: stake(0)},
		},
	}
	cfg := &ElectionConfiguration{ActiveSetSize: 3, Algorithm: MultiPhase}

	result, err := NewEngine().Run(context.Background(), data, cfg, false)
	require.NoError(t, err)
	assert.Equal(t, PhaseFallback, result.Metadata.Phase)
	assert.True(t, result.Undersized)
	assert.Equal(t, 1, result.ValidatorCount())
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := newTestSnapshot()
	cfg := &ElectionConfiguration{ActiveSetSize: 2, Algorithm: SequentialPhragmen}

	_, err := NewEngine().Run(ctx, data, cfg, false)
	assert.ErrorIs(t, err, context.Canceled)
}

// Invariant sweep over a larger synthetic-ish electorate: backing sums match
// allocations exactly and no voter exceeds its budget.
func TestBackingInvariants(t *testing.T) {
	data := &ElectionData{}
	ids := []AccountID{}
	for i := 0; i < 10; i++ {
		id := AccountID(rune('a'+i)) + "-validator"
		data.Candidates = append(data.Candidates, ValidatorCandidate{
			AccountID: id,
			SelfStake: stake(int64(100 * (i + 1))),
		})
		ids = append(ids, id)
	}
	for i := 0; i < 40; i++ {
		targets := []AccountID{ids[i%10], ids[(i*3+1)%10], ids[(i*7+2)%10]}
		seen := map[AccountID]bool{}
		uniq := []AccountID{}
		for _, t := range targets {
			if !seen[t] {
				uniq = append(uniq, t)
				seen[t] = true
			}
		}
		data.Nominators = append(data.Nominators, Nominator{
			AccountID: AccountID(rune('a'+i%26)) + AccountID(rune('a'+i/26)) + "-nominator",
			Stake:     stake(int64(1000 + 37*i)),
			Targets:   uniq,
		})
	}

	for _, kind := range []AlgorithmKind{SequentialPhragmen, BalancedPhragmen, MultiPhase} {
		cfg := &ElectionConfiguration{ActiveSetSize: 4, Algorithm: kind}
		result, err := NewEngine().Run(context.Background(), data, cfg, false)
		require.NoError(t, err, "algorithm %s", kind)
		require.Equal(t, 4, result.ValidatorCount(), "algorithm %s", kind)

		sums := map[AccountID]*big.Int{}
		for _, v := range result.SelectedValidators {
			sums[v.AccountID] = new(big.Int)
		}
		budgets := map[AccountID]*big.Int{}
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
			assert.True(t, voterTotal.Cmp(budgets[va.Voter]) <= 0,
				"%s: voter %s over budget", kind, va.Voter)
		}
		for _, v := range result.SelectedValidators {
			assert.Equal(t, 0, v.TotalBacking.Cmp(sums[v.AccountID]),
				"%s: validator %s backing mismatch", kind, v.AccountID)
		}
	}
}
