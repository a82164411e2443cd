// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/partition/cmd/partition/cli"
	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/kernel"
)

func domainCommand() *cli.Command {
	return &cli.Command{
		Name:    "domain",
		Summary: "List, register, update and reload domains",
		Subcommands: []*cli.Command{
			domainListCommand(),
			domainShowCommand(),
			domainRegisterCommand(),
			domainUpdateCommand(),
			domainReloadCommand(),
		},
	}
}

type domainListParams struct {
	cli.JSONOutput
	cli.ConnectFlags
}

func domainListCommand() *cli.Command {
	var params domainListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List registered domains",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("list", &params) },
		Run: func(args []string) error {
			domains, err := listDomains(&params.ConnectFlags)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(domains); done {
				return err
			}
			writer := tabwriter.NewWriter(cli.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "NAME\tID\tKIND\tSTATE\tGEN\tIMAGE\tCALLS\tCRASHES")
			for _, info := range domains {
				calls, crashes := "-", "-"
				if info.Stats != nil {
					calls = fmt.Sprint(info.Stats.Calls)
					crashes = fmt.Sprint(info.Stats.Crashes)
				}
				fmt.Fprintf(writer, "%s\t%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
					info.Name, info.ID, info.Kind, domainState(info), info.Generation, orDash(info.Image), calls, crashes)
			}
			return writer.Flush()
		},
	}
}

func listDomains(connect *cli.ConnectFlags) ([]kernel.DomainInfo, error) {
	client, err := connect.Client()
	if err != nil {
		return nil, err
	}
	ctx, cancel := connect.Context()
	defer cancel()
	var domains []kernel.DomainInfo
	if err := client.Call(ctx, kernel.ActionListDomains, nil, &domains); err != nil {
		return nil, err
	}
	return domains, nil
}

func domainShowCommand() *cli.Command {
	var params domainListParams
	return &cli.Command{
		Name:    "show",
		Summary: "Show one domain in detail",
		Usage:   "partition domain show <name> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("show", &params) },
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one domain name")
			}
			domains, err := listDomains(&params.ConnectFlags)
			if err != nil {
				return err
			}
			for _, info := range domains {
				if info.Name != args[0] {
					continue
				}
				if done, err := params.EmitJSON(info); done {
					return err
				}
				printDomain(info)
				return nil
			}
			return fmt.Errorf("domain %q is not registered", args[0])
		},
	}
}

func printDomain(info kernel.DomainInfo) {
	writer := tabwriter.NewWriter(cli.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintf(writer, "name:\t%s\n", info.Name)
	fmt.Fprintf(writer, "id:\t%d\n", info.ID)
	fmt.Fprintf(writer, "kind:\t%s\n", info.Kind)
	fmt.Fprintf(writer, "state:\t%s\n", domainState(info))
	fmt.Fprintf(writer, "generation:\t%d\n", info.Generation)
	fmt.Fprintf(writer, "created:\t%s\n", info.Created.Format(time.RFC3339))
	fmt.Fprintf(writer, "updated:\t%s\n", info.Updated.Format(time.RFC3339))
	fmt.Fprintf(writer, "image:\t%s\n", orDash(info.Image))
	if info.Source != "" && info.Source != info.Image {
		fmt.Fprintf(writer, "source:\t%s\n", info.Source)
	}
	if info.Digest != "" {
		fmt.Fprintf(writer, "digest:\t%s\n", info.Digest)
	}
	fmt.Fprintf(writer, "heap allocations:\t%d\n", info.Owned)
	if stats := info.Stats; stats != nil {
		fmt.Fprintf(writer, "calls:\t%d (%d refused, %d in flight)\n", stats.Calls, stats.Refused, stats.InFlight)
		fmt.Fprintf(writer, "crashes:\t%d\n", stats.Crashes)
		fmt.Fprintf(writer, "restarts:\t%d (%d instances retired)\n", stats.Restarts, stats.Retired)
	}
	writer.Flush()
}

func domainState(info kernel.DomainInfo) string {
	if info.Stats != nil {
		return info.Stats.State.String()
	}
	if info.Active {
		return "active"
	}
	return "inactive"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type domainRegisterParams struct {
	cli.JSONOutput
	cli.ConnectFlags
	Kind string `flag:"kind,k" desc:"domain kind, e.g. block_device (required)"`
	Name string `flag:"name,n" desc:"registry name (default: the image name, suffixed when taken)"`
}

func domainRegisterCommand() *cli.Command {
	var params domainRegisterParams
	return &cli.Command{
		Name:    "register",
		Summary: "Load a domain from a built-in image or manifest",
		Usage:   "partition domain register <image-or-manifest> --kind <kind> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("register", &params) },
		Examples: []cli.Example{
			{Description: "A RAM block device", Command: "partition domain register memblk --kind block_device --name disk0"},
			{Description: "From a manifest in the manifest directory", Command: "partition domain register disk1.jsonc --kind block_device"},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one image name or manifest path")
			}
			kind, err := parseKindFlag(params.Kind)
			if err != nil {
				return err
			}
			client, err := params.Client()
			if err != nil {
				return err
			}
			ctx, cancel := params.Context()
			defer cancel()

			fields := map[string]any{"source": args[0], "kind": kind}
			if params.Name != "" {
				fields["name"] = params.Name
			}
			var registered kernel.RegisterResponse
			if err := client.Call(ctx, kernel.ActionRegisterDomain, fields, &registered); err != nil {
				return err
			}
			if done, err := params.EmitJSON(registered); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "registered %s (id %d)\n", registered.Name, registered.ID)
			return nil
		},
	}
}

type domainUpdateParams struct {
	cli.JSONOutput
	cli.ConnectFlags
	Kind string `flag:"kind,k" desc:"kind both domains share (required)"`
}

func domainUpdateCommand() *cli.Command {
	var params domainUpdateParams
	return &cli.Command{
		Name:    "update",
		Summary: "Replace a domain's implementation with another registered domain",
		Usage:   "partition domain update <target> <replacement> --kind <kind> [flags]",
		Description: "Hot update: lookups of <target> resolve to the instance registered as <replacement>,\n" +
			"and the shared data <target> owned moves to it. Handles obtained before the update\n" +
			"keep calling the outgoing implementation.",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("update", &params) },
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected a target and a replacement domain name")
			}
			kind, err := parseKindFlag(params.Kind)
			if err != nil {
				return err
			}
			client, err := params.Client()
			if err != nil {
				return err
			}
			ctx, cancel := params.Context()
			defer cancel()

			var info kernel.DomainInfo
			fields := map[string]any{"target": args[0], "replacement": args[1], "kind": kind}
			if err := client.Call(ctx, kernel.ActionUpdateDomain, fields, &info); err != nil {
				return err
			}
			if done, err := params.EmitJSON(info); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "updated %s to %s (generation %d)\n", info.Name, orDash(info.Image), info.Generation)
			return nil
		},
	}
}

func domainReloadCommand() *cli.Command {
	var params domainListParams
	return &cli.Command{
		Name:    "reload",
		Summary: "Restart a domain from its image",
		Usage:   "partition domain reload <name> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("reload", &params) },
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one domain name")
			}
			client, err := params.Client()
			if err != nil {
				return err
			}
			ctx, cancel := params.Context()
			defer cancel()

			var info kernel.DomainInfo
			if err := client.Call(ctx, kernel.ActionReloadDomain, map[string]any{"name": args[0]}, &info); err != nil {
				return err
			}
			if done, err := params.EmitJSON(info); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "reloaded %s (%s)\n", info.Name, domainState(info))
			return nil
		},
	}
}

func parseKindFlag(value string) (domain.Kind, error) {
	if value == "" {
		return 0, fmt.Errorf("--kind is required")
	}
	return domain.ParseKind(value)
}
