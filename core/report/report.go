// Human-readable and machine-readable renderings of an election result.

package report

import (
	"fmt"
	"io"
	"math/big"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/staketools/offline-election-go/core/election"
)

// WriteReport renders a result as a human-readable report.
func WriteReport(w io.Writer, result *election.ElectionResult) error {
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "%s\n", color.HiWhiteString("=== Election result ==="))
	fmt.Fprintf(w, "algorithm:   %s\n", result.AlgorithmUsed)
	if result.Metadata.Phase != "" {
		fmt.Fprintf(w, "phase:       %s\n", result.Metadata.Phase)
	}
	if result.Metadata.BlockNumber != nil {
		fmt.Fprintf(w, "block:       %d\n", *result.Metadata.BlockNumber)
	}
	fmt.Fprintf(w, "run:         %s (%s)\n", result.Metadata.RunID, result.Metadata.Timestamp)

	if fp, err := Fingerprint(result); err == nil {
		fmt.Fprintf(w, "fingerprint: %s\n", fp)
	}

	if result.Undersized {
		fmt.Fprintf(w, "%s\n", color.HiYellowString(
			"warning: requested %d validators but only %d were eligible",
			result.Metadata.RequestedSize, result.ValidatorCount()))
	}

	fmt.Fprintf(w, "\nselected %d validators, %s total stake:\n",
		result.ValidatorCount(), formatStake(p, result.TotalStake))
	for _, v := range result.SelectedValidators {
		fmt.Fprintf(w, "  %3d. %-50s backing %-24s %s\n",
			v.Rank+1, v.AccountID, formatStake(p, v.TotalBacking),
			p.Sprintf("(%d backers)", v.NominatorCount))
	}

	if result.Diagnostics != nil {
		writeDiagnostics(w, p, result.Diagnostics)
	}
	return nil
}

func writeDiagnostics(w io.Writer, p *message.Printer, diag *election.Diagnostics) {
	fmt.Fprintf(w, "\n%s\n", color.HiWhiteString("=== Diagnostics ==="))

	fmt.Fprintf(w, "excluded candidates:\n")
	excluded := 0
	for _, expl := range diag.Candidates {
		if expl.Selected {
			continue
		}
		excluded++
		line := fmt.Sprintf("  %-50s %s (approval %s", expl.AccountID, expl.Reason,
			formatStake(p, expl.ApprovalStake))
		if expl.Reason == election.ReasonRankCutoff {
			line += fmt.Sprintf(", would rank %d", expl.WouldBeRank+1)
		}
		fmt.Fprintf(w, "%s)\n", line)
	}
	if excluded == 0 {
		fmt.Fprintf(w, "  (none)\n")
	}

	fmt.Fprintf(w, "nominators:\n")
	for _, nom := range diag.Nominators {
		fmt.Fprintf(w, "  %-50s stake %s\n", nom.AccountID, formatStake(p, nom.Stake))
		for _, edge := range nom.Edges {
			note := ""
			if edge.Unused {
				note = color.YellowString(" (unused: target not selected)")
			}
			fmt.Fprintf(w, "    -> %-47s allocated %s%s\n",
				edge.Target, formatStake(p, edge.Allocated), note)
		}
	}
}

func formatStake(p *message.Printer, s *big.Int) string {
	// Grouped digits when the amount fits; beyond uint64 print it raw.
	if s.IsUint64() {
		return p.Sprintf("%d", s.Uint64())
	}
	return s.String()
}

// ResultDoc is the machine-readable rendering used by the HTTP API and the
// CLI's --out flag. Stakes are decimal strings, same as snapshot documents.
type ResultDoc struct {
	Validators  []ValidatorDoc  `json:"validators"`
	Allocations []AllocationDoc `json:"allocations"`
	TotalStake  string          `json:"total_stake"`
	Algorithm   string          `json:"algorithm"`
	Undersized  bool            `json:"undersized"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Metadata    MetadataDoc     `json:"metadata"`
	Diagnostics *DiagnosticsDoc `json:"diagnostics,omitempty"`
}

type ValidatorDoc struct {
	AccountID      string `json:"account_id"`
	TotalBacking   string `json:"total_backing"`
	NominatorCount uint32 `json:"nominator_count"`
	Rank           uint32 `json:"rank"`
}

type AllocationDoc struct {
	Voter    string            `json:"voter"`
	SelfVote bool              `json:"self_vote,omitempty"`
	Targets  map[string]string `json:"targets"`
}

type MetadataDoc struct {
	RunID         string  `json:"run_id"`
	BlockNumber   *uint64 `json:"block_number,omitempty"`
	Timestamp     string  `json:"timestamp"`
	RequestedSize uint32  `json:"requested_size"`
	Phase         string  `json:"phase,omitempty"`
}

type DiagnosticsDoc struct {
	Candidates []CandidateExplanationDoc `json:"candidates"`
	Nominators []NominatorExplanationDoc `json:"nominators"`
}

type CandidateExplanationDoc struct {
	AccountID     string `json:"account_id"`
	Selected      bool   `json:"selected"`
	Rank          uint32 `json:"rank,omitempty"`
	Backing       string `json:"backing"`
	ApprovalStake string `json:"approval_stake"`
	Reason        string `json:"reason,omitempty"`
	WouldBeRank   uint32 `json:"would_be_rank,omitempty"`
}

type NominatorExplanationDoc struct {
	AccountID string           `json:"account_id"`
	Stake     string           `json:"stake"`
	Edges     []EdgeOutcomeDoc `json:"edges"`
}

type EdgeOutcomeDoc struct {
	Target    string `json:"target"`
	Allocated string `json:"allocated"`
	Unused    bool   `json:"unused,omitempty"`
}

// ResultDocument converts a result to its machine-readable form.
func ResultDocument(result *election.ElectionResult) *ResultDoc {
	doc := &ResultDoc{
		TotalStake: result.TotalStake.String(),
		Algorithm:  result.AlgorithmUsed.String(),
		Undersized: result.Undersized,
		Metadata: MetadataDoc{
			RunID:         result.Metadata.RunID,
			BlockNumber:   result.Metadata.BlockNumber,
			Timestamp:     result.Metadata.Timestamp,
			RequestedSize: result.Metadata.RequestedSize,
			Phase:         result.Metadata.Phase,
		},
	}
	if fp, err := Fingerprint(result); err == nil {
		doc.Fingerprint = fp
	}

	for _, v := range result.SelectedValidators {
		doc.Validators = append(doc.Validators, ValidatorDoc{
			AccountID:      string(v.AccountID),
			TotalBacking:   v.TotalBacking.String(),
			NominatorCount: v.NominatorCount,
			Rank:           v.Rank,
		})
	}

	for _, va := range result.Allocations {
		targets := make(map[string]string, len(va.Targets))
		for _, alloc := range va.Targets {
			targets[string(alloc.Validator)] = alloc.Amount.String()
		}
		doc.Allocations = append(doc.Allocations, AllocationDoc{
			Voter:    string(va.Voter),
			SelfVote: va.SelfVote,
			Targets:  targets,
		})
	}

	if result.Diagnostics != nil {
		doc.Diagnostics = &DiagnosticsDoc{}
		for _, expl := range result.Diagnostics.Candidates {
			cd := CandidateExplanationDoc{
				AccountID:     string(expl.AccountID),
				Selected:      expl.Selected,
				Backing:       expl.Backing.String(),
				ApprovalStake: expl.ApprovalStake.String(),
			}
			if expl.Selected {
				cd.Rank = expl.Rank
			} else {
				cd.Reason = expl.Reason.String()
				if expl.Reason == election.ReasonRankCutoff {
					cd.WouldBeRank = expl.WouldBeRank
				}
			}
			doc.Diagnostics.Candidates = append(doc.Diagnostics.Candidates, cd)
		}
		for _, nom := range result.Diagnostics.Nominators {
			nd := NominatorExplanationDoc{
				AccountID: string(nom.AccountID),
				Stake:     nom.Stake.String(),
			}
			for _, edge := range nom.Edges {
				nd.Edges = append(nd.Edges, EdgeOutcomeDoc{
					Target:    string(edge.Target),
					Allocated: edge.Allocated.String(),
					Unused:    edge.Unused,
				})
			}
			doc.Diagnostics.Nominators = append(doc.Diagnostics.Nominators, nd)
		}
	}

	return doc
}
