package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/staketools/offline-election-go/cli/cmd"
)

func main() {
	app := &cli.App{
		Name:                 "electiond",
		Usage:                "offline NPoS election simulator",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "runs an election over a snapshot",
				Action: cmd.RunElection,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "snapshot",
						Usage: "Path to a snapshot JSON file",
					},
					&cli.StringFlag{
						Name:  "rpc",
						Usage: "JSON-RPC endpoint to fetch the snapshot from",
					},
					&cli.Uint64Flag{
						Name:  "block",
						Usage: "Block number to fetch the snapshot at (with --rpc)",
					},
					&cli.StringFlag{
						Name:  "from-store",
						Usage: "Name of a cached snapshot to load",
					},
					&cli.StringFlag{
						Name:  "save-snapshot",
						Usage: "Cache the loaded snapshot under this name",
					},
					&cli.StringFlag{
						Name:  "db",
						Usage: "Path to the snapshot cache database",
						Value: "electiond.db",
					},
					&cli.StringFlag{
						Name:  "algorithm",
						Usage: "Election algorithm: sequential-phragmen, balanced-phragmen or multi-phase",
						Value: "sequential-phragmen",
					},
					&cli.UintFlag{
						Name:  "size",
						Usage: "Active set size",
						Value: 100,
					},
					&cli.BoolFlag{
						Name:  "diagnostics",
						Usage: "Explain selections and rejections",
					},
					&cli.StringSliceFlag{
						Name:  "override",
						Usage: "Parameter override, e.g. candidate-stake:ACCOUNT=AMOUNT (repeatable)",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Write the machine-readable result to this file",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "runs the election HTTP API",
				Action: cmd.Serve,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "host",
						Usage: "The host to bind to",
						Value: "0.0.0.0",
					},
					&cli.IntFlag{
						Name:  "port",
						Usage: "The port to listen on",
						Value: 8080,
					},
				},
			},
			{
				Name:   "synth",
				Usage:  "generates a synthetic snapshot",
				Action: cmd.Synth,
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "seed",
						Usage: "PRNG seed; the same seed always gives the same snapshot",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "candidates",
						Usage: "Number of candidates to generate",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "nominators",
						Usage: "Number of nominators to generate",
						Value: 1000,
					},
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Output snapshot file",
						Required: true,
					},
				},
			},
			{
				Name:   "snapshots",
				Usage:  "lists cached snapshots",
				Action: cmd.ListSnapshots,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "db",
						Usage: "Path to the snapshot cache database",
						Value: "electiond.db",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
