// Algorithm dispatch and the shared electorate representation.

package election

import (
	"context"
	"math/big"
	"sort"
)

// RawWinner is one elected candidate before result assembly.
type RawWinner struct {
	Who      AccountID
	Approval *big.Int
	Rank     uint32
}

type RawEdgeStake struct {
	Target AccountID
	Amount *big.Int
}

type RawVoterStake struct {
	Voter    AccountID
	SelfVote bool
	Edges    []RawEdgeStake
}

// RawOutcome is what an algorithm produces: the winners in rank order and
// every voter's realized stake split, sorted by voter id.
type RawOutcome struct {
	Winners     []RawWinner
	Assignments []RawVoterStake
	// EligibleCount is the number of candidates with any backing at all.
	EligibleCount int
	// Phase is set by the multi-phase wrapper, empty for plain algorithms.
	Phase string
}

// ElectionAlgorithm is the capability shared by the three variants. Compute
// must be deterministic: identical inputs give identical outcomes, including
// tie-breaks. The context is checked between outer iterations so callers can
// cancel long runs.
type ElectionAlgorithm interface {
	Name() string
	Compute(ctx context.Context, data *ElectionData, cfg *ElectionConfiguration) (*RawOutcome, error)
}

// AlgorithmFor maps a configuration's algorithm kind to an implementation.
func AlgorithmFor(kind AlgorithmKind) ElectionAlgorithm {
	switch kind {
	case BalancedPhragmen:
		return &balancedPhragmen{}
	case MultiPhase:
		return &multiPhase{}
	default:
		return &seqPhragmen{equalize: true}
	}
}

// Internal electorate representation shared by the algorithms. Candidate
// self-stake is modeled as a synthetic voter with a single edge to itself,
// which is what lets a disconnected snapshot (no nominator edges at all)
// degenerate to selection purely by self-stake.

type edge struct {
	cand  int
	load  Fixed
	alloc *big.Int
}

type voter struct {
	who      AccountID
	selfVote bool
	budget   *big.Int
	load     Fixed
	edges    []edge
}

type candidate struct {
	who      AccountID
	approval *big.Int
	elected  bool
	rank     uint32
}

type electorate struct {
	cands  []candidate
	voters []voter
	index  map[AccountID]int
}

func buildElectorate(data *ElectionData) *electorate {
	e := &electorate{
		cands: make([]candidate, len(data.Candidates)),
		index: make(map[AccountID]int, len(data.Candidates)),
	}
	for i, c := range data.Candidates {
		e.cands[i] = candidate{who: c.AccountID, approval: new(big.Int)}
		e.index[c.AccountID] = i
	}

	for _, n := range data.Nominators {
		if n.Stake.Sign() == 0 || len(n.Targets) == 0 {
			continue
		}
		v := voter{who: n.AccountID, budget: n.Stake, load: fixedZero()}
		for _, t := range n.Targets {
			ci := e.index[t]
			v.edges = append(v.edges, edge{cand: ci, alloc: new(big.Int)})
			e.cands[ci].approval.Add(e.cands[ci].approval, n.Stake)
		}
		e.voters = append(e.voters, v)
	}

	for i, c := range data.Candidates {
		if c.SelfStake.Sign() == 0 {
			continue
		}
		e.voters = append(e.voters, voter{
			who:      c.AccountID,
			selfVote: true,
			budget:   c.SelfStake,
			load:     fixedZero(),
			edges:    []edge{{cand: i, alloc: new(big.Int)}},
		})
		e.cands[i].approval.Add(e.cands[i].approval, c.SelfStake)
	}

	return e
}

func (e *electorate) eligibleCount() int {
	n := 0
	for i := range e.cands {
		if e.cands[i].approval.Sign() > 0 {
			n++
		}
	}
	return n
}

// outcome assembles the RawOutcome from the electorate's elected flags and
// per-edge allocations. Winners come out in rank order, assignments sorted
// by voter id.
func (e *electorate) outcome() *RawOutcome {
	out := &RawOutcome{EligibleCount: e.eligibleCount()}

	for i := range e.cands {
		if e.cands[i].elected {
			out.Winners = append(out.Winners, RawWinner{
				Who:      e.cands[i].who,
				Approval: new(big.Int).Set(e.cands[i].approval),
				Rank:     e.cands[i].rank,
			})
		}
	}
	sort.Slice(out.Winners, func(a, b int) bool {
		return out.Winners[a].Rank < out.Winners[b].Rank
	})

	for vi := range e.voters {
		v := &e.voters[vi]
		var edges []RawEdgeStake
		for _, ed := range v.edges {
			if ed.alloc.Sign() > 0 {
				edges = append(edges, RawEdgeStake{
					Target: e.cands[ed.cand].who,
					Amount: new(big.Int).Set(ed.alloc),
				})
			}
		}
		if len(edges) == 0 {
			continue
		}
		sort.Slice(edges, func(a, b int) bool { return edges[a].Target < edges[b].Target })
		out.Assignments = append(out.Assignments, RawVoterStake{
			Voter:    v.who,
			SelfVote: v.selfVote,
			Edges:    edges,
		})
	}
	sort.Slice(out.Assignments, func(a, b int) bool {
		return out.Assignments[a].Voter < out.Assignments[b].Voter
	})

	return out
}
