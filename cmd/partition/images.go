// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/partition/cmd/partition/cli"
	"github.com/bureau-foundation/partition/kernel"
)

func imagesCommand() *cli.Command {
	var params domainListParams
	return &cli.Command{
		Name:    "images",
		Summary: "List the images domains can be loaded from",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("images", &params) },
		Run: func(args []string) error {
			client, err := params.Client()
			if err != nil {
				return err
			}
			ctx, cancel := params.Context()
			defer cancel()

			var images []kernel.ImageInfo
			if err := client.Call(ctx, kernel.ActionListImages, nil, &images); err != nil {
				return err
			}
			if done, err := params.EmitJSON(images); done {
				return err
			}
			writer := tabwriter.NewWriter(cli.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "IMAGE\tKIND\tDESCRIPTION")
			for _, image := range images {
				fmt.Fprintf(writer, "%s\t%s\t%s\n", image.Name, image.Kind, image.Description)
			}
			return writer.Flush()
		},
	}
}
