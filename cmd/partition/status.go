// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/partition/cmd/partition/cli"
	"github.com/bureau-foundation/partition/kernel"
	"github.com/bureau-foundation/partition/lib/process"
	"github.com/bureau-foundation/partition/lib/version"
)

type statusParams struct {
	cli.JSONOutput
	cli.ConnectFlags
	Check bool `flag:"check" desc:"exit with status 1 when any domain is inactive"`
}

func statusCommand() *cli.Command {
	var params statusParams
	return &cli.Command{
		Name:    "status",
		Summary: "Show daemon status",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("status", &params) },
		Examples: []cli.Example{
			{Description: "Fail a health check when a domain is down", Command: "partition status --check"},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			client, err := params.Client()
			if err != nil {
				return err
			}
			ctx, cancel := params.Context()
			defer cancel()

			var status kernel.StatusResponse
			if err := client.Call(ctx, kernel.ActionStatus, nil, &status); err != nil {
				return err
			}
			if done, err := params.EmitJSON(status); !done {
				uptime := time.Duration(status.UptimeSeconds * float64(time.Second)).Round(time.Second)
				fmt.Fprintf(cli.Stdout, "daemon:   %s\n", status.Version)
				fmt.Fprintf(cli.Stdout, "cli:      %s\n", version.Info())
				fmt.Fprintf(cli.Stdout, "uptime:   %s\n", uptime)
				fmt.Fprintf(cli.Stdout, "domains:  %d (%d inactive)\n", status.Domains, status.Inactive)
				fmt.Fprintf(cli.Stdout, "harts:    %d, continuation depths %v\n", status.Harts, status.HartDepths)
				fmt.Fprintf(cli.Stdout, "journal:  %s\n", enabled(status.Journal))
			} else if err != nil {
				return err
			}

			if params.Check && status.Inactive > 0 {
				return &process.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
