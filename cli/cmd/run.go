package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/staketools/offline-election-go/core/election"
	"github.com/staketools/offline-election-go/core/input"
	"github.com/staketools/offline-election-go/core/report"
)

func RunElection(cmdCtx *cli.Context) error {
	data, err := loadSnapshot(cmdCtx)
	if err != nil {
		return err
	}

	algorithm, err := election.ParseAlgorithmKind(cmdCtx.String("algorithm"))
	if err != nil {
		return err
	}

	overrides, err := parseOverrideFlags(cmdCtx.StringSlice("override"))
	if err != nil {
		return err
	}

	cfg := &election.ElectionConfiguration{
		ActiveSetSize: uint32(cmdCtx.Uint("size")),
		Algorithm:     algorithm,
		Overrides:     overrides,
	}
	if cmdCtx.IsSet("block") {
		block := cmdCtx.Uint64("block")
		cfg.BlockNumber = &block
	}

	// Ctrl-C aborts the computation cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()

	result, err := election.NewEngine().Run(ctx, data, cfg, cmdCtx.Bool("diagnostics"))
	if err != nil {
		return err
	}

	if err := report.WriteReport(os.Stdout, result); err != nil {
		return err
	}

	if outPath := cmdCtx.String("out"); outPath != "" {
		body, err := json.MarshalIndent(report.ResultDocument(result), "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, body, 0644); err != nil {
			return err
		}
		fmt.Printf("Wrote result to %s\n", outPath)
	}

	return nil
}

func loadSnapshot(cmdCtx *cli.Context) (*election.ElectionData, error) {
	var data *election.ElectionData
	var err error
	var block *uint64

	switch {
	case cmdCtx.String("snapshot") != "":
		data, err = input.LoadSnapshotFile(cmdCtx.String("snapshot"))
	case cmdCtx.String("rpc") != "":
		if cmdCtx.IsSet("block") {
			b := cmdCtx.Uint64("block")
			block = &b
		}
		data, err = input.NewRPCLoader(cmdCtx.String("rpc")).LoadAtBlock(context.Background(), block)
	case cmdCtx.String("from-store") != "":
		var store *input.SnapshotStore
		store, err = input.OpenSnapshotStore(cmdCtx.String("db"))
		if err != nil {
			return nil, err
		}
		defer store.Close()
		data, err = store.Load(cmdCtx.String("from-store"))
	default:
		return nil, fmt.Errorf("one of --snapshot, --rpc or --from-store is required")
	}
	if err != nil {
		return nil, err
	}

	if name := cmdCtx.String("save-snapshot"); name != "" {
		store, err := input.OpenSnapshotStore(cmdCtx.String("db"))
		if err != nil {
			return nil, err
		}
		defer store.Close()
		if err := store.Save(name, block, data); err != nil {
			return nil, err
		}
		fmt.Printf("Cached snapshot as %q\n", name)
	}

	return data, nil
}

// parseOverrideFlags turns --override flags into an OverrideSet. Formats:
//
//	candidate-stake:ACCOUNT=AMOUNT
//	nominator-stake:ACCOUNT=AMOUNT
//	add-edge:NOMINATOR=CANDIDATE
//	remove-edge:NOMINATOR=CANDIDATE
//	set-targets:NOMINATOR=CAND1,CAND2
//	size=N
func parseOverrideFlags(flags []string) (election.OverrideSet, error) {
	var out election.OverrideSet
	for _, flag := range flags {
		kind, rest, found := strings.Cut(flag, ":")
		if !found {
			kind, rest = "", flag
		}

		key, value, found := strings.Cut(rest, "=")
		if !found {
			return nil, fmt.Errorf("invalid override %q: missing '='", flag)
		}

		switch kind {
		case "":
			if key != "size" {
				return nil, fmt.Errorf("invalid override %q", flag)
			}
			var size uint32
			if _, err := fmt.Sscanf(value, "%d", &size); err != nil {
				return nil, fmt.Errorf("invalid override %q: %w", flag, err)
			}
			out = append(out, election.Override{Kind: election.SetActiveSetSize, Size: size})

		case "candidate-stake", "nominator-stake":
			stake, ok := new(big.Int).SetString(value, 10)
			if !ok {
				return nil, fmt.Errorf("invalid override %q: %q is not a decimal integer", flag, value)
			}
			ovKind := election.SetCandidateStake
			if kind == "nominator-stake" {
				ovKind = election.SetNominatorStake
			}
			out = append(out, election.Override{
				Kind:    ovKind,
				Account: election.AccountID(key),
				Stake:   stake,
			})

		case "add-edge", "remove-edge":
			ovKind := election.AddEdge
			if kind == "remove-edge" {
				ovKind = election.RemoveEdge
			}
			out = append(out, election.Override{
				Kind:    ovKind,
				Account: election.AccountID(key),
				Target:  election.AccountID(value),
			})

		case "set-targets":
			var targets []election.AccountID
			for _, t := range strings.Split(value, ",") {
				targets = append(targets, election.AccountID(strings.TrimSpace(t)))
			}
			out = append(out, election.Override{
				Kind:    election.SetTargets,
				Account: election.AccountID(key),
				Targets: targets,
			})

		default:
			return nil, fmt.Errorf("unknown override kind %q in %q", kind, flag)
		}
	}
	return out, nil
}
