package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/synchronize"
)

var fetchCmd = &cobra.Command{
	Use:     "fetch [collection...]",
	Short:   "Copy provider collections into the resource cache",
	GroupID: "pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		counts := make(map[string]int)
		for _, unit := range unitsFor(args) {
			switch unit {
			case model.CollectionIssues:
				n, err := p.fetcher.FetchIssues(cmd.Context())
				if err != nil {
					return fmt.Errorf("fetch issues: %w", err)
				}
				counts[model.CollectionIssues] = n
			case synchronize.Directory:
				dir, err := p.fetcher.FetchDirectory(cmd.Context())
				if err != nil {
					return fmt.Errorf("fetch directory: %w", err)
				}
				for k, v := range dir {
					counts[k] = v
				}
			default:
				return model.ConfigValidationError("unknown collection "+unit, unit)
			}
		}

		if jsonOutput {
			return printJSON(counts)
		}
		st := styler()
		for coll, n := range counts {
			fmt.Printf("%s %s\n", coll, st.Muted(fmt.Sprintf("%d fetched", n)))
		}
		return nil
	},
}
