package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/graphsync/internal/export"
	"github.com/alfredjeanlab/graphsync/internal/idgen"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write the persisted graph as JSONL",
	GroupID: "pipeline",
	Long: `Export writes a header line followed by every entity and relationship.

Without --out the graph is written to stdout. When GRAPHSYNC_EXPORT_S3_BUCKET
is set the snapshot is uploaded as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err := idgen.RunID()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := export.ExportJSONL(cmd.Context(), store, runID, &buf); err != nil {
			return fmt.Errorf("export: %w", err)
		}

		dests := destinations(cmd.Context(), cfg, out)
		for _, d := range dests {
			if err := d.Write(cmd.Context(), buf.Bytes()); err != nil {
				return err
			}
		}
		if out == "" {
			_, err := os.Stdout.Write(buf.Bytes())
			return err
		}
		logger.Info("export written", "path", out, "bytes", buf.Len())
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "write to this file instead of stdout")
}
