package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/synchronize"
	"github.com/alfredjeanlab/graphsync/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:     "verify",
	Short:   "Validate configuration and check provider credentials",
	GroupID: "pipeline",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := verify.ValidateConfig(cfg); err != nil {
			return err
		}
		client := newClient(cfg)
		units := synchronize.Units(cfg.Collections)

		var checked []string
		if slices.Contains(units, model.CollectionIssues) {
			if err := verify.New(client, cfg.Projects).VerifyAuthentication(cmd.Context()); err != nil {
				return err
			}
			checked = append(checked, "tracker")
		}
		if slices.Contains(units, synchronize.Directory) {
			if err := verify.New(client, nil).VerifyDirectory(cmd.Context()); err != nil {
				return err
			}
			checked = append(checked, "directory")
		}

		if jsonOutput {
			return printJSON(map[string]any{"status": "ok", "verified": checked})
		}
		for _, c := range checked {
			fmt.Printf("%s: ok\n", c)
		}
		return nil
	},
}
