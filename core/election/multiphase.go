// Multi-phase wrapper: a staged submission state machine.
//
// Models the signed -> unsigned -> fallback submission flow of an on-chain
// multi-phase election. Every phase's computation delegates to sequential
// Phragmen; the machine only records which phase produced the accepted
// result. A signed or unsigned submission is accepted when the eligible pool
// can fill the requested set; the fallback runs without equalization and is
// always terminal.

package election

import (
	"context"
	"errors"
	"fmt"
)

const (
	PhaseSigned   = "signed"
	PhaseUnsigned = "unsigned"
	PhaseFallback = "fallback"
)

type submissionState int

const (
	statePending submissionState = iota
	stateSignedAttempted
	stateUnsignedAttempted
	stateFallback
	stateAccepted
)

var legalTransitions = map[submissionState][]submissionState{
	statePending:           {stateSignedAttempted},
	stateSignedAttempted:   {stateAccepted, stateUnsignedAttempted},
	stateUnsignedAttempted: {stateAccepted, stateFallback},
	stateFallback:          {stateAccepted},
}

type submissionMachine struct {
	state submissionState
}

func (m *submissionMachine) transition(next submissionState) error {
	for _, s := range legalTransitions[m.state] {
		if s == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("illegal phase transition %d -> %d", m.state, next)
}

type multiPhase struct{}

func (a *multiPhase) Name() string { return "multi-phase" }

func (a *multiPhase) Compute(ctx context.Context, data *ElectionData, cfg *ElectionConfiguration) (*RawOutcome, error) {
	machine := &submissionMachine{state: statePending}

	// Signed phase: full sequential Phragmen with equalization.
	if err := machine.transition(stateSignedAttempted); err != nil {
		return nil, &AlgorithmError{Algorithm: MultiPhase, Message: err.Error()}
	}
	signed := &seqPhragmen{equalize: true}
	out, err := signed.Compute(ctx, data, cfg)
	if accepted(out, err, cfg) {
		if err := machine.transition(stateAccepted); err != nil {
			return nil, &AlgorithmError{Algorithm: MultiPhase, Message: err.Error()}
		}
		out.Phase = PhaseSigned
		return out, nil
	}
	if err != nil && !IsAlgorithmError(err) {
		// Cancellation and other hard failures end the run outright.
		return nil, err
	}

	// Unsigned phase: cheaper submission, no equalization, same acceptance
	// rule.
	if err := machine.transition(stateUnsignedAttempted); err != nil {
		return nil, &AlgorithmError{Algorithm: MultiPhase, Message: err.Error()}
	}
	unsigned := &seqPhragmen{equalize: false}
	out, err = unsigned.Compute(ctx, data, cfg)
	if accepted(out, err, cfg) {
		if err := machine.transition(stateAccepted); err != nil {
			return nil, &AlgorithmError{Algorithm: MultiPhase, Message: err.Error()}
		}
		out.Phase = PhaseUnsigned
		return out, nil
	}
	if err != nil && !IsAlgorithmError(err) {
		return nil, err
	}

	// Fallback phase: accepts whatever the pool supports, undersized or not.
	if err := machine.transition(stateFallback); err != nil {
		return nil, &AlgorithmError{Algorithm: MultiPhase, Message: err.Error()}
	}
	fallback := &seqPhragmen{equalize: false}
	out, err = fallback.Compute(ctx, data, cfg)
	if err != nil {
		if ae, ok := asAlgorithmError(err); ok {
			return nil, &AlgorithmError{Algorithm: MultiPhase, Message: "fallback phase: " + ae.Message}
		}
		return nil, err
	}
	if err := machine.transition(stateAccepted); err != nil {
		return nil, &AlgorithmError{Algorithm: MultiPhase, Message: err.Error()}
	}
	out.Phase = PhaseFallback
	return out, nil
}

// accepted is the signed/unsigned acceptance rule: a full-size result.
func accepted(out *RawOutcome, err error, cfg *ElectionConfiguration) bool {
	return err == nil && len(out.Winners) == int(cfg.ActiveSetSize)
}

func asAlgorithmError(err error) (*AlgorithmError, bool) {
	var ae *AlgorithmError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
