package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/graphsync/internal/synchronize"
)

var runCmd = &cobra.Command{
	Use:     "run [collection...]",
	Short:   "Fetch and synchronize once, then export",
	GroupID: "pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		p, err := openPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		publisher := newPublisher(cfg)
		defer publisher.Close()

		collections := cfg.Collections
		if len(args) > 0 {
			collections = args
		}
		sched := synchronize.NewScheduler(synchronize.SchedulerOptions{
			Fetcher:      p.fetcher,
			Runner:       p.synchronizer,
			Publisher:    publisher,
			Source:       p.store,
			Destinations: destinations(cmd.Context(), cfg, out),
			Collections:  collections,
			Logger:       logger,
		})
		report := sched.RunOnce(cmd.Context())
		return printSummaries(synchronize.Units(collections), report.Summaries, report.Errors)
	},
}

func init() {
	runCmd.Flags().String("out", "", "also export the graph as JSONL to this file")
}
