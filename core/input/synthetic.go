// Synthetic snapshot generation for testing and what-if work.

package input

import (
	"fmt"
	"math/big"
	"math/rand"

	"github.com/staketools/offline-election-go/core/election"
)

// SyntheticBuilder assembles a snapshot from arbitrary accounts that don't
// need to exist on any chain.
type SyntheticBuilder struct {
	data election.ElectionData
}

func NewSyntheticBuilder() *SyntheticBuilder {
	return &SyntheticBuilder{}
}

func (b *SyntheticBuilder) AddCandidate(accountID string, selfStake uint64) *SyntheticBuilder {
	b.data.Candidates = append(b.data.Candidates, election.ValidatorCandidate{
		AccountID: election.AccountID(accountID),
		SelfStake: new(big.Int).SetUint64(selfStake),
	})
	return b
}

func (b *SyntheticBuilder) AddNominator(accountID string, stake uint64, targets []string) *SyntheticBuilder {
	ts := make([]election.AccountID, len(targets))
	for i, t := range targets {
		ts[i] = election.AccountID(t)
	}
	b.data.Nominators = append(b.data.Nominators, election.Nominator{
		AccountID: election.AccountID(accountID),
		Stake:     new(big.Int).SetUint64(stake),
		Targets:   ts,
	})
	return b
}

// Build validates and returns the snapshot.
func (b *SyntheticBuilder) Build() (*election.ElectionData, error) {
	data := b.data.Clone()
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

// GenerateSnapshot produces a pseudo-random electorate from a seed. The same
// seed always yields the same snapshot.
func GenerateSnapshot(seed int64, nCandidates, nNominators int) (*election.ElectionData, error) {
	if nCandidates < 1 {
		return nil, fmt.Errorf("need at least one candidate, got %d", nCandidates)
	}
	rng := rand.New(rand.NewSource(seed))
	b := NewSyntheticBuilder()

	candidateIDs := make([]string, nCandidates)
	for i := 0; i < nCandidates; i++ {
		candidateIDs[i] = fmt.Sprintf("synthetic-validator-%04d", i)
		// Self stakes between 1k and 1M units.
		b.AddCandidate(candidateIDs[i], 1_000+uint64(rng.Int63n(999_000)))
	}

	for i := 0; i < nNominators; i++ {
		nTargets := 1 + rng.Intn(election.MaxNominations)
		if nTargets > nCandidates {
			nTargets = nCandidates
		}
		seen := make(map[int]bool, nTargets)
		targets := make([]string, 0, nTargets)
		for len(targets) < nTargets {
			ci := rng.Intn(nCandidates)
			if seen[ci] {
				continue
			}
			seen[ci] = true
			targets = append(targets, candidateIDs[ci])
		}
		b.AddNominator(
			fmt.Sprintf("synthetic-nominator-%05d", i),
			10_000+uint64(rng.Int63n(9_990_000)),
			targets,
		)
	}

	return b.Build()
}
