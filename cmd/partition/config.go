// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/partition/cmd/partition/cli"
	"github.com/bureau-foundation/partition/lib/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:        "config",
		Summary:     "Work with daemon configuration files",
		Subcommands: []*cli.Command{configValidateCommand()},
	}
}

type configValidateParams struct {
	cli.JSONOutput
	Config string `flag:"config,c" desc:"config file (default: $PARTITION_CONFIG)"`
}

func configValidateCommand() *cli.Command {
	var params configValidateParams
	return &cli.Command{
		Name:        "validate",
		Summary:     "Check a configuration file without starting the daemon",
		Description: "Parse the file, apply the environment section, expand paths, and report every problem found.",
		Flags:       func() *pflag.FlagSet { return cli.FlagsFromParams("validate", &params) },
		Run: func(args []string) error {
			var (
				cfg *config.Config
				err error
			)
			if params.Config != "" {
				cfg, err = config.LoadFile(params.Config)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}
			if done, err := params.EmitJSON(cfg); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "configuration is valid (%s environment, %d boot domains)\n", cfg.Environment, len(cfg.Boot))
			fmt.Fprintf(cli.Stdout, "socket:  %s\n", cfg.Paths.Socket)
			if cfg.Journal.Disabled {
				fmt.Fprintln(cli.Stdout, "journal: disabled")
			} else {
				fmt.Fprintf(cli.Stdout, "journal: %s\n", cfg.Paths.Journal)
			}
			return nil
		},
	}
}
