// JSON snapshot documents: the interchange format between the loaders, the
// snapshot store, the HTTP API and the CLI.

package input

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/staketools/offline-election-go/core/election"
)

type CandidateDoc struct {
	AccountID string `json:"account_id" validate:"required"`
	SelfStake string `json:"self_stake" validate:"required"`
}

type NominatorDoc struct {
	AccountID string   `json:"account_id" validate:"required"`
	Stake     string   `json:"stake" validate:"required"`
	Targets   []string `json:"targets" validate:"required,min=1,max=16,dive,required"`
}

type SnapshotDoc struct {
	Candidates []CandidateDoc `json:"candidates" validate:"required,min=1,dive"`
	Nominators []NominatorDoc `json:"nominators" validate:"omitempty,dive"`
}

var validate = validator.New()

// ParseSnapshot decodes and validates a snapshot document. Stakes are
// decimal strings so 128-bit amounts survive JSON intact.
func ParseSnapshot(body []byte) (*election.ElectionData, error) {
	var doc SnapshotDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("malformed snapshot document: %w", err)
	}
	return doc.ToElectionData()
}

func (doc *SnapshotDoc) ToElectionData() (*election.ElectionData, error) {
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid snapshot document: %w", err)
	}

	data := &election.ElectionData{}
	for _, c := range doc.Candidates {
		stake, err := parseStake(c.SelfStake)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.AccountID, err)
		}
		data.Candidates = append(data.Candidates, election.ValidatorCandidate{
			AccountID: election.AccountID(c.AccountID),
			SelfStake: stake,
		})
	}
	for _, n := range doc.Nominators {
		stake, err := parseStake(n.Stake)
		if err != nil {
			return nil, fmt.Errorf("nominator %s: %w", n.AccountID, err)
		}
		targets := make([]election.AccountID, len(n.Targets))
		for i, t := range n.Targets {
			targets[i] = election.AccountID(t)
		}
		data.Nominators = append(data.Nominators, election.Nominator{
			AccountID: election.AccountID(n.AccountID),
			Stake:     stake,
			Targets:   targets,
		})
	}

	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

// SnapshotDocument converts election data back to its interchange form.
func SnapshotDocument(data *election.ElectionData) *SnapshotDoc {
	doc := &SnapshotDoc{}
	for _, c := range data.Candidates {
		doc.Candidates = append(doc.Candidates, CandidateDoc{
			AccountID: string(c.AccountID),
			SelfStake: c.SelfStake.String(),
		})
	}
	for _, n := range data.Nominators {
		targets := make([]string, len(n.Targets))
		for i, t := range n.Targets {
			targets[i] = string(t)
		}
		doc.Nominators = append(doc.Nominators, NominatorDoc{
			AccountID: string(n.AccountID),
			Stake:     n.Stake.String(),
			Targets:   targets,
		})
	}
	return doc
}

// LoadSnapshotFile reads a snapshot document from disk.
func LoadSnapshotFile(path string) (*election.ElectionData, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	return ParseSnapshot(body)
}

// WriteSnapshotFile writes a snapshot document to disk, indented for humans.
func WriteSnapshotFile(path string, data *election.ElectionData) error {
	body, err := json.MarshalIndent(SnapshotDocument(data), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0644)
}

func parseStake(s string) (*big.Int, error) {
	stake, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("stake %q is not a decimal integer", s)
	}
	if stake.Sign() < 0 || stake.BitLen() > 128 {
		return nil, fmt.Errorf("stake %q outside the u128 domain", s)
	}
	return stake, nil
}
