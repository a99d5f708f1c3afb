// The election engine: the sole public entry point of the core.

package election

import (
	"context"
	"log"

	"github.com/staketools/offline-election-go/core"
)

// Engine runs elections. It holds no state between calls; every Run is a
// pure function of its inputs and multiple Runs may proceed concurrently.
type Engine struct {
	log *log.Logger
}

func NewEngine() *Engine {
	return &Engine{
		log: core.NewLogger("election", "engine"),
	}
}

// Run validates the snapshot and configuration, applies overrides, dispatches
// to the configured algorithm, assembles the result and optionally attaches
// diagnostics. Errors are either a *ValidationError (bad input, detected
// before any computation) or an *AlgorithmError (the variant could not
// produce a result); a smaller-than-requested outcome is NOT an error, it
// comes back flagged Undersized.
func (e *Engine) Run(ctx context.Context, data *ElectionData, cfg *ElectionConfiguration, wantDiagnostics bool) (*ElectionResult, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(cfg.Overrides) > 0 {
		derived, derivedCfg, err := ApplyOverrides(data, cfg)
		if err != nil {
			return nil, err
		}
		data = derived
		cfg = derivedCfg
	}

	requestedSize := cfg.ActiveSetSize
	if int(requestedSize) > len(data.Candidates) {
		e.log.Printf("requested %d validators but only %d candidates available; result will be undersized\n",
			requestedSize, len(data.Candidates))
	}

	algorithm := AlgorithmFor(cfg.Algorithm)
	raw, err := algorithm.Compute(ctx, data, cfg)
	if err != nil {
		return nil, err
	}

	result := assembleResult(raw, cfg, requestedSize)
	if err := verifyResult(result, data, requestedSize, raw.EligibleCount); err != nil {
		return nil, err
	}

	if wantDiagnostics {
		result.Diagnostics = GenerateDiagnostics(result, data)
	}

	return result, nil
}
