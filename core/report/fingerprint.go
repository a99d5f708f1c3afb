// Canonical result fingerprinting.
//
// Bencode dictionaries are sorted by key, so encoding the result through
// bencode gives a canonical byte string for free; hashing that yields a
// fingerprint that is stable across runs, platforms and JSON field ordering.
// Execution metadata (run id, timestamp) is deliberately excluded: two runs
// over identical input must fingerprint identically.

package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/jackpal/bencode-go"

	"github.com/staketools/offline-election-go/core/election"
)

func Fingerprint(result *election.ElectionResult) (string, error) {
	validators := make([]interface{}, 0, len(result.SelectedValidators))
	for _, v := range result.SelectedValidators {
		validators = append(validators, map[string]interface{}{
			"account": string(v.AccountID),
			"backing": v.TotalBacking.String(),
			"backers": int64(v.NominatorCount),
			"rank":    int64(v.Rank),
		})
	}

	allocations := make([]interface{}, 0, len(result.Allocations))
	for _, va := range result.Allocations {
		targets := make([]interface{}, 0, len(va.Targets))
		for _, alloc := range va.Targets {
			targets = append(targets, map[string]interface{}{
				"validator": string(alloc.Validator),
				"amount":    alloc.Amount.String(),
			})
		}
		selfVote := int64(0)
		if va.SelfVote {
			selfVote = 1
		}
		allocations = append(allocations, map[string]interface{}{
			"voter":     string(va.Voter),
			"self_vote": selfVote,
			"targets":   targets,
		})
	}

	undersized := int64(0)
	if result.Undersized {
		undersized = 1
	}

	doc := map[string]interface{}{
		"algorithm":   result.AlgorithmUsed.String(),
		"undersized":  undersized,
		"total_stake": result.TotalStake.String(),
		"validators":  validators,
		"allocations": allocations,
	}

	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, doc); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
