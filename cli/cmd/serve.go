package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/staketools/offline-election-go/server"
)

func Serve(cmdCtx *cli.Context) error {
	s := server.NewElectionAPIServer(cmdCtx.String("host"), cmdCtx.Int("port"))
	return s.Start()
}
