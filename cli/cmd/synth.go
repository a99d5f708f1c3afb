package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/staketools/offline-election-go/core/input"
)

func Synth(cmdCtx *cli.Context) error {
	data, err := input.GenerateSnapshot(
		cmdCtx.Int64("seed"),
		cmdCtx.Int("candidates"),
		cmdCtx.Int("nominators"),
	)
	if err != nil {
		return err
	}

	outPath := cmdCtx.String("out")
	if err := input.WriteSnapshotFile(outPath, data); err != nil {
		return err
	}

	fmt.Printf("Wrote snapshot with %d candidates and %d nominators to %s\n",
		len(data.Candidates), len(data.Nominators), outPath)
	return nil
}

func ListSnapshots(cmdCtx *cli.Context) error {
	store, err := input.OpenSnapshotStore(cmdCtx.String("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := store.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No cached snapshots.")
		return nil
	}
	for _, info := range infos {
		block := "-"
		if info.Block != nil {
			block = fmt.Sprintf("%d", *info.Block)
		}
		fmt.Printf("%-30s block %-12s cached %s\n", info.Name, block, info.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
