// Package main provides the LexFlow server: guided flows, walkthroughs and
// session state for the marketing site and dashboard.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "lexflow",
		Usage:                 "Run guided flows and walkthroughs for the LexFlow web app",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			ServeCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
