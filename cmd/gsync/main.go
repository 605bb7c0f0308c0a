package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/graphsync/internal/config"
	"github.com/alfredjeanlab/graphsync/internal/events"
	"github.com/alfredjeanlab/graphsync/internal/export"
	"github.com/alfredjeanlab/graphsync/internal/provider"
	"github.com/alfredjeanlab/graphsync/internal/store/postgres"
	"github.com/alfredjeanlab/graphsync/internal/ui"
)

var (
	jsonOutput bool
	noColor    bool
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "gsync <command>",
	Short:         "Synchronize issue tracker and directory resources into an entity graph",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "pipeline", Title: "Pipeline:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	// Pipeline
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(exportCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func newClient(c *config.Config) *provider.HTTPClient {
	return provider.NewHTTPClient(provider.Options{
		TrackerURL:     c.TrackerURL,
		TrackerUser:    c.TrackerUser,
		TrackerToken:   c.TrackerToken,
		DirectoryURL:   c.DirectoryURL,
		DirectoryToken: c.DirectoryToken,
		Organization:   c.Organization,
		InstallationID: c.InstallationID,
	})
}

// openStore connects to the database that holds both the resource cache
// and the graph.
func openStore(c *config.Config) (*postgres.PostgresStore, error) {
	if c.DatabaseURL == "" {
		return nil, errors.New("GRAPHSYNC_DATABASE_URL is required")
	}
	return postgres.New(c.DatabaseURL)
}

func newPublisher(c *config.Config) events.Publisher {
	if c.NATSURL == "" {
		logger.Debug("events disabled (GRAPHSYNC_NATS_URL not set)")
		return &events.NoopPublisher{}
	}
	pub, err := events.NewNATSPublisher(c.NATSURL)
	if err != nil {
		logger.Error("events disabled", "err", err)
		return &events.NoopPublisher{}
	}
	logger.Info("events enabled", "nats_url", c.NATSURL)
	return pub
}

// destinations returns the configured export destinations plus a file
// destination when outPath is set.
func destinations(ctx context.Context, c *config.Config, outPath string) []export.Destination {
	var dests []export.Destination
	if c.ExportS3Bucket != "" {
		d, err := export.NewS3Destination(ctx, export.S3Options{
			Bucket:   c.ExportS3Bucket,
			Key:      c.ExportS3Key,
			Region:   c.ExportS3Region,
			Endpoint: c.ExportS3Endpoint,
		})
		if err != nil {
			logger.Error("S3 export disabled", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("S3 export enabled", "bucket", c.ExportS3Bucket, "key", c.ExportS3Key)
		}
	}
	if outPath != "" {
		dests = append(dests, export.NewFileDestination(outPath))
	}
	return dests
}

func styler() ui.Styler {
	return ui.Styler{Color: !noColor && ui.ShouldUseColor(os.Stdout)}
}
