// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// partition is the management CLI for partition-daemon. Every command
// except "config validate" talks to the daemon over its management
// socket.
package main

import (
	"os"

	"github.com/bureau-foundation/partition/cmd/partition/cli"
	"github.com/bureau-foundation/partition/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	return root().Execute(os.Args[1:])
}

func root() *cli.Command {
	return &cli.Command{
		Name:        "partition",
		Summary:     "Manage a running partition daemon",
		Description: "Inspect and manage the isolated domains of a running partition daemon.",
		Subcommands: []*cli.Command{
			statusCommand(),
			domainCommand(),
			imagesCommand(),
			crashesCommand(),
			heapCommand(),
			configCommand(),
			versionCommand(),
		},
	}
}
