package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/graphsync/internal/model"
)

var syncCmd = &cobra.Command{
	Use:     "sync [collection...]",
	Short:   "Convert cached collections and publish the changes to the graph",
	GroupID: "pipeline",
	Long: `Synchronize replays the resource cache and publishes the resulting
entities and relationships. It refuses to run for a collection whose last
fetch did not complete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		units := unitsFor(args)
		summaries := make(map[string]model.OperationSummary)
		errs := make(map[string]error)
		for _, unit := range units {
			s, err := p.synchronizer.Synchronize(cmd.Context(), unit)
			if err != nil {
				errs[unit] = err
				continue
			}
			summaries[unit] = s
		}
		return printSummaries(units, summaries, errs)
	},
}
