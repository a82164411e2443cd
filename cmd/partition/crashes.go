// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/partition/cmd/partition/cli"
	"github.com/bureau-foundation/partition/kernel"
)

type crashesParams struct {
	cli.JSONOutput
	cli.ConnectFlags
	Domain    string        `flag:"domain,d" desc:"only crashes of this domain"`
	Since     time.Duration `flag:"since" desc:"only crashes within this long ago, e.g. 24h"`
	Limit     int           `flag:"limit,l" desc:"maximum number of crashes" default:"20"`
	Backtrace bool          `flag:"backtrace" desc:"print each crash's backtrace"`
}

func crashesCommand() *cli.Command {
	var params crashesParams
	return &cli.Command{
		Name:    "crashes",
		Summary: "Show recorded domain crashes, newest first",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("crashes", &params) },
		Examples: []cli.Example{
			{Description: "Crashes of disk0 in the last day", Command: "partition crashes --domain disk0 --since 24h"},
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

			fields := map[string]any{"limit": params.Limit}
			if params.Domain != "" {
				fields["domain"] = params.Domain
			}
			if params.Since > 0 {
				fields["since"] = time.Now().Add(-params.Since)
			}
			var crashes []kernel.CrashEntry
			if err := client.Call(ctx, kernel.ActionListCrashes, fields, &crashes); err != nil {
				return err
			}
			if done, err := params.EmitJSON(crashes); done {
				return err
			}
			if len(crashes) == 0 {
				fmt.Fprintln(cli.Stdout, "no crashes recorded")
				return nil
			}
			for _, entry := range crashes {
				record := entry.Record
				fmt.Fprintf(cli.Stdout, "%s  %s (%s, id %d) in %s on hart %d\n",
					record.Time.Format(time.RFC3339), record.Domain, record.Kind, record.DomainID, record.Method, record.Hart)
				fmt.Fprintf(cli.Stdout, "    %s\n", record.Message)
				if record.Location != "" {
					fmt.Fprintf(cli.Stdout, "    at %s\n", record.Location)
				}
				if params.Backtrace {
					for _, frame := range record.Backtrace {
						fmt.Fprintf(cli.Stdout, "      %s\n", frame)
					}
				}
			}
			return nil
		},
	}
}
