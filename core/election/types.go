// Data model for offline NPoS elections.

package election

import (
	"fmt"
	"math/big"
)

// MaxNominations is the network-defined cap on the number of targets a single
// nominator may declare. Polkadot-family chains use 16.
const MaxNominations = 16

// AccountID is an opaque account handle (SS58 address or similar). The core
// never interprets it beyond equality and ordering.
type AccountID string

type ValidatorCandidate struct {
	AccountID AccountID
	SelfStake *big.Int
}

type Nominator struct {
	AccountID AccountID
	Stake     *big.Int
	// Targets is the nominator's declared edge list, in declaration order.
	Targets []AccountID
}

// ElectionData is a snapshot of the electorate. It is read-only for the
// duration of a computation; the override applier produces a fresh copy.
type ElectionData struct {
	Candidates []ValidatorCandidate
	Nominators []Nominator
}

type AlgorithmKind int

const (
	SequentialPhragmen AlgorithmKind = iota
	BalancedPhragmen
	MultiPhase
)

func (k AlgorithmKind) String() string {
	switch k {
	case SequentialPhragmen:
		return "sequential-phragmen"
	case BalancedPhragmen:
		return "balanced-phragmen"
	case MultiPhase:
		return "multi-phase"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

func ParseAlgorithmKind(s string) (AlgorithmKind, error) {
	switch s {
	case "sequential-phragmen", "seq-phragmen", "sequential":
		return SequentialPhragmen, nil
	case "balanced-phragmen", "balanced", "parallel":
		return BalancedPhragmen, nil
	case "multi-phase", "multiphase":
		return MultiPhase, nil
	}
	return 0, fmt.Errorf("unknown algorithm: %q", s)
}

type ElectionConfiguration struct {
	ActiveSetSize uint32
	Algorithm     AlgorithmKind
	Overrides     OverrideSet
	// BlockNumber is an opaque reference point recorded in result metadata.
	BlockNumber *uint64
}

// OverrideKind enumerates the atomic edits an OverrideSet may contain.
type OverrideKind int

const (
	SetCandidateStake OverrideKind = iota
	SetNominatorStake
	AddEdge
	RemoveEdge
	SetTargets
	SetActiveSetSize
)

func (k OverrideKind) String() string {
	switch k {
	case SetCandidateStake:
		return "set-candidate-stake"
	case SetNominatorStake:
		return "set-nominator-stake"
	case AddEdge:
		return "add-edge"
	case RemoveEdge:
		return "remove-edge"
	case SetTargets:
		return "set-targets"
	case SetActiveSetSize:
		return "set-active-set-size"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// Override is one atomic edit. Which fields are meaningful depends on Kind:
// stake edits use Account+Stake, edge edits use Account+Target, SetTargets
// uses Account+Targets, and SetActiveSetSize uses Size alone.
type Override struct {
	Kind    OverrideKind
	Account AccountID
	Target  AccountID
	Stake   *big.Int
	Targets []AccountID
	Size    uint32
}

// OverrideSet is applied in declaration order. Later edits to the same
// entity win over earlier ones.
type OverrideSet []Override

type SelectedValidator struct {
	AccountID      AccountID
	TotalBacking   *big.Int
	NominatorCount uint32
	Rank           uint32
}

type Allocation struct {
	Validator AccountID
	Amount    *big.Int
}

// VoterAllocation records how one voter's stake was realized. SelfVote marks
// a candidate's own stake backing itself rather than a nominator edge.
type VoterAllocation struct {
	Voter    AccountID
	SelfVote bool
	Targets  []Allocation
}

type ExecutionMetadata struct {
	RunID         string
	BlockNumber   *uint64
	Timestamp     string
	RequestedSize uint32
	// Phase is set by the multi-phase wrapper to the phase whose result was
	// accepted ("signed", "unsigned" or "fallback"); empty otherwise.
	Phase string
}

type ElectionResult struct {
	SelectedValidators []SelectedValidator
	Allocations        []VoterAllocation
	TotalStake         *big.Int
	AlgorithmUsed      AlgorithmKind
	// Undersized is set when fewer eligible candidates existed than the
	// requested active set size. The result is smaller, not padded.
	Undersized  bool
	Metadata    ExecutionMetadata
	Diagnostics *Diagnostics
}

// ValidatorCount returns the size of the selected active set.
func (r *ElectionResult) ValidatorCount() int {
	return len(r.SelectedValidators)
}

type ExclusionReason int

const (
	ReasonInsufficientBacking ExclusionReason = iota
	ReasonRankCutoff
	ReasonNoEligibleVoters
)

func (r ExclusionReason) String() string {
	switch r {
	case ReasonInsufficientBacking:
		return "insufficient total backing"
	case ReasonRankCutoff:
		return "excluded by rank cutoff"
	case ReasonNoEligibleVoters:
		return "no eligible voters"
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// SelectionExplanation covers one candidate. Selected entries carry rank and
// backing; excluded entries carry the reason and, for rank-cutoff exclusions,
// the rank the candidate would have occupied.
type SelectionExplanation struct {
	AccountID     AccountID
	Selected      bool
	Rank          uint32
	Backing       *big.Int
	Reason        ExclusionReason
	WouldBeRank   uint32
	ApprovalStake *big.Int
}

// EdgeOutcome reports how one declared edge was realized.
type EdgeOutcome struct {
	Target    AccountID
	Allocated *big.Int
	// Unused marks edges whose target was not selected.
	Unused bool
}

type NominatorExplanation struct {
	AccountID AccountID
	Stake     *big.Int
	Edges     []EdgeOutcome
}

type Diagnostics struct {
	Candidates []SelectionExplanation
	Nominators []NominatorExplanation
}

// Clone deep-copies the snapshot so overrides never touch the original.
func (d *ElectionData) Clone() *ElectionData {
	out := &ElectionData{
		Candidates: make([]ValidatorCandidate, len(d.Candidates)),
		Nominators: make([]Nominator, len(d.Nominators)),
	}
	for i, c := range d.Candidates {
		out.Candidates[i] = ValidatorCandidate{
			AccountID: c.AccountID,
			SelfStake: new(big.Int).Set(c.SelfStake),
		}
	}
	for i, n := range d.Nominators {
		targets := make([]AccountID, len(n.Targets))
		copy(targets, n.Targets)
		out.Nominators[i] = Nominator{
			AccountID: n.AccountID,
			Stake:     new(big.Int).Set(n.Stake),
			Targets:   targets,
		}
	}
	return out
}

// validStake checks the unsigned-128-bit stake domain.
func validStake(s *big.Int) bool {
	return s != nil && s.Sign() >= 0 && s.BitLen() <= 128
}

// Validate checks the snapshot's referential invariants: unique identifiers,
// stakes inside the unsigned 128-bit domain, and every edge referencing an
// existing candidate with no duplicates and at most MaxNominations entries.
func (d *ElectionData) Validate() error {
	if len(d.Candidates) == 0 {
		return &ValidationError{Field: "candidates", Message: "candidate set is empty"}
	}

	candidateIDs := make(map[AccountID]bool, len(d.Candidates))
	for _, c := range d.Candidates {
		if c.AccountID == "" {
			return &ValidationError{Field: "candidates", Message: "candidate with empty account id"}
		}
		if candidateIDs[c.AccountID] {
			return &ValidationError{Field: "candidates", Message: fmt.Sprintf("duplicate candidate: %s", c.AccountID)}
		}
		if !validStake(c.SelfStake) {
			return &ValidationError{Field: "candidates", Message: fmt.Sprintf("candidate %s: stake outside u128 domain", c.AccountID)}
		}
		candidateIDs[c.AccountID] = true
	}

	nominatorIDs := make(map[AccountID]bool, len(d.Nominators))
	for _, n := range d.Nominators {
		if n.AccountID == "" {
			return &ValidationError{Field: "nominators", Message: "nominator with empty account id"}
		}
		if nominatorIDs[n.AccountID] {
			return &ValidationError{Field: "nominators", Message: fmt.Sprintf("duplicate nominator: %s", n.AccountID)}
		}
		if candidateIDs[n.AccountID] {
			return &ValidationError{Field: "nominators", Message: fmt.Sprintf("account %s is both candidate and nominator", n.AccountID)}
		}
		if !validStake(n.Stake) {
			return &ValidationError{Field: "nominators", Message: fmt.Sprintf("nominator %s: stake outside u128 domain", n.AccountID)}
		}
		if len(n.Targets) > MaxNominations {
			return &ValidationError{Field: "nominators", Message: fmt.Sprintf("nominator %s: %d targets exceeds maximum of %d", n.AccountID, len(n.Targets), MaxNominations)}
		}
		seen := make(map[AccountID]bool, len(n.Targets))
		for _, t := range n.Targets {
			if seen[t] {
				return &ValidationError{Field: "nominators", Message: fmt.Sprintf("nominator %s: duplicate edge to %s", n.AccountID, t)}
			}
			if !candidateIDs[t] {
				return &ValidationError{Field: "nominators", Message: fmt.Sprintf("nominator %s: edge to unknown candidate %s", n.AccountID, t)}
			}
			seen[t] = true
		}
		nominatorIDs[n.AccountID] = true
	}

	return nil
}

// Validate checks configuration bounds. The active set size may exceed the
// candidate count; the engine shrinks it and flags the result as undersized.
func (c *ElectionConfiguration) Validate() error {
	if c.ActiveSetSize == 0 {
		return &ValidationError{Field: "active_set_size", Message: "active set size must be positive"}
	}
	switch c.Algorithm {
	case SequentialPhragmen, BalancedPhragmen, MultiPhase:
	default:
		return &ValidationError{Field: "algorithm", Message: fmt.Sprintf("unknown algorithm kind %d", int(c.Algorithm))}
	}
	return nil
}
