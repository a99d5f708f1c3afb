// Override application: (base snapshot, override set) -> derived snapshot.

package election

import (
	"fmt"
	"math/big"
)

// ApplyOverrides applies the edits in cfg.Overrides in declaration order and
// re-validates the derived snapshot. The base snapshot and configuration are
// never mutated; both returned values are fresh copies. An override naming an
// account that does not exist in the snapshot is a validation error, not a
// silent no-op.
func ApplyOverrides(base *ElectionData, cfg *ElectionConfiguration) (*ElectionData, *ElectionConfiguration, error) {
	derived := base.Clone()
	derivedCfg := *cfg

	for i, ov := range cfg.Overrides {
		if err := applyOne(derived, &derivedCfg, ov); err != nil {
			return nil, nil, &ValidationError{
				Field:   "overrides",
				Message: fmt.Sprintf("override %d (%s): %s", i, ov.Kind, err),
			}
		}
	}

	if err := derived.Validate(); err != nil {
		return nil, nil, err
	}
	if err := derivedCfg.Validate(); err != nil {
		return nil, nil, err
	}
	return derived, &derivedCfg, nil
}

func applyOne(data *ElectionData, cfg *ElectionConfiguration, ov Override) error {
	switch ov.Kind {
	case SetCandidateStake:
		c := findCandidate(data, ov.Account)
		if c == nil {
			return fmt.Errorf("unknown candidate %s", ov.Account)
		}
		if !validStake(ov.Stake) {
			return fmt.Errorf("stake outside u128 domain")
		}
		c.SelfStake = new(big.Int).Set(ov.Stake)

	case SetNominatorStake:
		n := findNominator(data, ov.Account)
		if n == nil {
			return fmt.Errorf("unknown nominator %s", ov.Account)
		}
		if !validStake(ov.Stake) {
			return fmt.Errorf("stake outside u128 domain")
		}
		n.Stake = new(big.Int).Set(ov.Stake)

	case AddEdge:
		n := findNominator(data, ov.Account)
		if n == nil {
			return fmt.Errorf("unknown nominator %s", ov.Account)
		}
		for _, t := range n.Targets {
			if t == ov.Target {
				// Adding an existing edge is idempotent.
				return nil
			}
		}
		n.Targets = append(n.Targets, ov.Target)

	case RemoveEdge:
		n := findNominator(data, ov.Account)
		if n == nil {
			return fmt.Errorf("unknown nominator %s", ov.Account)
		}
		kept := n.Targets[:0]
		for _, t := range n.Targets {
			if t != ov.Target {
				kept = append(kept, t)
			}
		}
		n.Targets = kept

	case SetTargets:
		n := findNominator(data, ov.Account)
		if n == nil {
			return fmt.Errorf("unknown nominator %s", ov.Account)
		}
		targets := make([]AccountID, len(ov.Targets))
		copy(targets, ov.Targets)
		n.Targets = targets

	case SetActiveSetSize:
		if ov.Size == 0 {
			return fmt.Errorf("active set size must be positive")
		}
		cfg.ActiveSetSize = ov.Size

	default:
		return fmt.Errorf("unknown override kind %d", int(ov.Kind))
	}
	return nil
}

func findCandidate(data *ElectionData, id AccountID) *ValidatorCandidate {
	for i := range data.Candidates {
		if data.Candidates[i].AccountID == id {
			return &data.Candidates[i]
		}
	}
	return nil
}

func findNominator(data *ElectionData, id AccountID) *Nominator {
	for i := range data.Nominators {
		if data.Nominators[i].AccountID == id {
			return &data.Nominators[i]
		}
	}
	return nil
}
