package synchronize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/alfredjeanlab/graphsync/internal/events"
	"github.com/alfredjeanlab/graphsync/internal/export"
	"github.com/alfredjeanlab/graphsync/internal/idgen"
	"github.com/alfredjeanlab/graphsync/internal/model"
)

// Fetcher is the fetch phase as the scheduler drives it.
type Fetcher interface {
	FetchIssues(ctx context.Context) (int, error)
	FetchDirectory(ctx context.Context) (map[string]int, error)
}

// Runner is the synchronize phase as the scheduler drives it.
type Runner interface {
	Synchronize(ctx context.Context, collection string) (model.OperationSummary, error)
}

// Report is the outcome of one scheduled cycle, keyed by unit (issues or
// directory).
type Report struct {
	RunID     string
	Summaries map[string]model.OperationSummary
	Errors    map[string]error
}

// Err joins every unit error, or returns nil when all units succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, unit := range slices.Sorted(maps.Keys(r.Errors)) {
		errs = append(errs, fmt.Errorf("%s: %w", unit, r.Errors[unit]))
	}
	return errors.Join(errs...)
}

// Scheduler runs fetch and synchronize cycles for the configured
// collections, then exports the graph to each destination.
type Scheduler struct {
	fetcher      Fetcher
	runner       Runner
	publisher    events.Publisher
	source       export.Source
	destinations []export.Destination
	units        []string
	interval     time.Duration
	logger       *slog.Logger

	mu   sync.Mutex
	last *Report

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SchedulerOptions configures a Scheduler. Publisher and Source may be nil.
type SchedulerOptions struct {
	Fetcher      Fetcher
	Runner       Runner
	Publisher    events.Publisher
	Source       export.Source
	Destinations []export.Destination
	Collections  []string
	Interval     time.Duration
	Logger       *slog.Logger
}

// NewScheduler creates a scheduler. Collections are grouped into units:
// "issues" and, when any directory collection is listed, "directory".
func NewScheduler(opts SchedulerOptions) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Scheduler{
		fetcher:      opts.Fetcher,
		runner:       opts.Runner,
		publisher:    publisher,
		source:       opts.Source,
		destinations: opts.Destinations,
		units:        Units(opts.Collections),
		interval:     opts.Interval,
		logger:       logger,
	}
}

// Units maps collection names onto the units the scheduler runs, in a
// stable order. Unknown names are passed through so that Synchronize can
// reject them.
func Units(collections []string) []string {
	var units []string
	add := func(u string) {
		if !slices.Contains(units, u) {
			units = append(units, u)
		}
	}
	for _, c := range collections {
		switch {
		case c == model.CollectionIssues:
			add(model.CollectionIssues)
		case c == Directory, slices.Contains(directoryCollections, c):
			add(Directory)
		default:
			add(c)
		}
	}
	return units
}

// Start begins periodic cycles. It runs one cycle immediately, then on
// each tick. A zero interval runs the single initial cycle.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current cycle (if any) to
// finish. A cycle in flight completes; no new cycle starts.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// run checks ctx only between cycles. Each cycle gets a context that
// carries ctx's values but not its cancellation.
func (s *Scheduler) run(ctx context.Context) {
	cycleCtx := context.WithoutCancel(ctx)
	s.RunOnce(cycleCtx)
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.RunOnce(cycleCtx)
		}
	}
}

// RunOnce runs one fetch and synchronize cycle for every unit, then
// exports. A failing unit does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) *Report {
	runID, err := idgen.RunID()
	if err != nil {
		s.logger.Warn("run id generation failed", "err", err)
	}
	report := &Report{
		RunID:     runID,
		Summaries: make(map[string]model.OperationSummary),
		Errors:    make(map[string]error),
	}
	logger := s.logger.With("run_id", runID)

	for _, unit := range s.units {
		start := time.Now()
		summary, err := s.runUnit(ctx, runID, unit)
		if err != nil {
			report.Errors[unit] = err
			logger.Error("cycle failed", "unit", unit, "kind", model.KindOf(err), "err", err)
			s.emit(ctx, events.TopicSyncFailed, events.SyncFailed{
				RunID:      runID,
				Collection: unit,
				Kind:       model.KindOf(err),
				Error:      err.Error(),
			})
			continue
		}
		report.Summaries[unit] = summary
		s.emit(ctx, events.TopicSyncCompleted, events.SyncCompleted{
			RunID:      runID,
			Collection: unit,
			Summary:    summary,
			Duration:   time.Since(start),
		})
	}

	s.export(ctx, runID, logger)

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	return report
}

// LastReport returns the report of the most recent cycle, or nil before
// the first cycle finishes.
func (s *Scheduler) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) runUnit(ctx context.Context, runID, unit string) (model.OperationSummary, error) {
	switch unit {
	case model.CollectionIssues:
		n, err := s.fetcher.FetchIssues(ctx)
		if err != nil {
			return model.OperationSummary{}, err
		}
		s.emit(ctx, events.TopicFetchCompleted, events.FetchCompleted{RunID: runID, Collection: unit, Count: n})
	case Directory:
		counts, err := s.fetcher.FetchDirectory(ctx)
		if err != nil {
			return model.OperationSummary{}, err
		}
		for _, coll := range directoryCollections {
			s.emit(ctx, events.TopicFetchCompleted, events.FetchCompleted{RunID: runID, Collection: coll, Count: counts[coll]})
		}
	}
	return s.runner.Synchronize(ctx, unit)
}

func (s *Scheduler) emit(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("event publish failed", "topic", topic, "err", err)
	}
}

func (s *Scheduler) export(ctx context.Context, runID string, logger *slog.Logger) {
	if s.source == nil || len(s.destinations) == 0 {
		return
	}
	var buf bytes.Buffer
	if err := export.ExportJSONL(ctx, s.source, runID, &buf); err != nil {
		logger.Error("export failed", "err", err)
		return
	}
	data := buf.Bytes()
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			logger.Error("export destination write failed", "destination", i, "err", err)
		}
	}
	logger.Info("export completed", "destinations", len(s.destinations), "bytes", len(data))
}
