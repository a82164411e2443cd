// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/partition/cmd/partition/cli"
	"github.com/bureau-foundation/partition/kernel"
)

func heapCommand() *cli.Command {
	var params domainListParams
	return &cli.Command{
		Name:    "heap",
		Summary: "Show shared heap usage by owning domain",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("heap", &params) },
		Run: func(args []string) error {
			client, err := params.Client()
			if err != nil {
				return err
			}
			ctx, cancel := params.Context()
			defer cancel()

			var heap kernel.HeapResponse
			if err := client.Call(ctx, kernel.ActionHeapStats, nil, &heap); err != nil {
				return err
			}
			if done, err := params.EmitJSON(heap); done {
				return err
			}

			stats := heap.Stats
			capacity := "unlimited"
			if stats.Capacity > 0 {
				capacity = fmt.Sprintf("%d bytes", stats.Capacity)
			}
			fmt.Fprintf(cli.Stdout, "allocations: %d (%d bytes, capacity %s)\n", stats.Allocations, stats.Bytes, capacity)
			fmt.Fprintf(cli.Stdout, "borrowed:    %d\n", stats.Borrowed)
			fmt.Fprintf(cli.Stdout, "orphans:     %d\n", stats.Orphans)
			if len(heap.ByOwner) == 0 {
				return nil
			}

			owners := make([]uint64, 0, len(heap.ByOwner))
			for owner := range heap.ByOwner {
				owners = append(owners, owner)
			}
			slices.Sort(owners)
			fmt.Fprintln(cli.Stdout)
			writer := tabwriter.NewWriter(cli.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "OWNER\tID\tALLOCATIONS")
			for _, owner := range owners {
				fmt.Fprintf(writer, "%s\t%d\t%d\n", orDash(heap.Names[owner]), owner, heap.ByOwner[owner])
			}
			return writer.Flush()
		},
	}
}
