// Package ops drives the operational loop of serve mode: it watches each
// configured model's issuance schedule and processes every new cycle once.
package ops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/ofs-s111/internal/adapter/httpserver"
	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/grid"
	"github.com/couchcryptid/ofs-s111/internal/pipeline"
	"github.com/couchcryptid/ofs-s111/internal/s111"
)

// CycleRunner processes one forecast cycle end to end.
type CycleRunner interface {
	ProcessCycle(ctx context.Context, m domain.Model, cycle domain.Cycle, opts pipeline.Options) (*pipeline.Report, error)
}

// Notifier publishes completed cycles downstream.
type Notifier interface {
	Notify(ctx context.Context, report *pipeline.Report) error
}

// Settings holds the per-run parameters of the scheduler.
type Settings struct {
	DownloadDir string
	OutputDir   string
	IndexDir    string
	TargetDepth float64
}

// Scheduler polls the issuance schedule of each model and runs every newly
// available cycle exactly once.
type Scheduler struct {
	models   []domain.Model
	runner   CycleRunner
	notifier Notifier // nil disables notifications
	settings Settings
	clock    clockwork.Clock
	logger   *slog.Logger

	mu        sync.Mutex
	lastCycle map[string]domain.Cycle
	statuses  map[string]httpserver.CycleStatus
}

// NewScheduler creates a scheduler over the given models.
func NewScheduler(models []domain.Model, runner CycleRunner, notifier Notifier, settings Settings, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		models:    models,
		runner:    runner,
		notifier:  notifier,
		settings:  settings,
		clock:     clock,
		logger:    logger,
		lastCycle: make(map[string]domain.Cycle),
		statuses:  make(map[string]httpserver.CycleStatus),
	}
}

// Run polls until the context is cancelled. Each pass checks every model for
// a newly available cycle and processes it.
func (s *Scheduler) Run(ctx context.Context, pollInterval time.Duration) error {
	s.logger.Info("scheduler started", "models", len(s.models), "poll_interval", pollInterval.String())
	for {
		s.poll(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return ctx.Err()
		case <-s.clock.After(pollInterval):
		}
	}
}

// Status implements httpserver.StatusSource.
func (s *Scheduler) Status() map[string]httpserver.CycleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]httpserver.CycleStatus, len(s.statuses))
	for k, v := range s.statuses {
		out[k] = v
	}
	return out
}

// poll runs one pass over all models.
func (s *Scheduler) poll(ctx context.Context) {
	for _, m := range s.models {
		if ctx.Err() != nil {
			return
		}
		s.pollModel(ctx, m)
	}
}

func (s *Scheduler) pollModel(ctx context.Context, m domain.Model) {
	cycle, err := domain.LatestCycle(m, s.clock.Now())
	if err != nil {
		if errors.Is(err, domain.ErrNoCycleAvailable) {
			s.logger.Debug("no cycle available yet", "model", m.ID)
			return
		}
		s.logger.Error("cycle lookup failed", "model", m.ID, "error", err)
		return
	}

	s.mu.Lock()
	done := s.lastCycle[m.ID] == cycle
	s.mu.Unlock()
	if done {
		return
	}

	opts, err := s.resolveOptions(m)
	if err != nil {
		s.logger.Error("options resolution failed", "model", m.ID, "error", err)
		s.record(m.ID, cycle, nil, err)
		return
	}

	s.logger.Info("processing new cycle", "model", m.ID, "cycle", cycle.String(), "format", opts.Format)
	report, err := s.runner.ProcessCycle(ctx, m, cycle, opts)
	if err != nil {
		s.logger.Error("cycle processing failed", "model", m.ID, "cycle", cycle.String(), "error", err)
		s.record(m.ID, cycle, nil, err)
		return
	}

	s.mu.Lock()
	s.lastCycle[m.ID] = cycle
	s.mu.Unlock()
	s.record(m.ID, cycle, report, nil)

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, report); err != nil {
			s.logger.Error("cycle notification failed", "model", m.ID, "cycle", cycle.String(), "error", err)
		}
	}
}

// resolveOptions picks the output format per model: a grid index at
// <IndexDir>/<model>_index.nc selects georectified output, with chopping when
// the index carries subgrids. Without an index the model falls back to native
// point output.
func (s *Scheduler) resolveOptions(m domain.Model) (pipeline.Options, error) {
	opts := pipeline.Options{
		DownloadDir: s.settings.DownloadDir,
		OutputDir:   s.settings.OutputDir,
		TargetDepth: s.settings.TargetDepth,
		Format:      s111.FormatUngeorectified,
	}

	indexPath := filepath.Join(s.settings.IndexDir, m.ID+"_index.nc")
	if _, err := os.Stat(indexPath); err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, fmt.Errorf("checking grid index %s: %w", indexPath, err)
	}

	ix, err := grid.Load(indexPath)
	if err != nil {
		return opts, fmt.Errorf("loading grid index %s: %w", indexPath, err)
	}
	opts.Format = s111.FormatRegular
	opts.Index = ix
	opts.Chop = len(ix.Subgrids) > 0
	return opts, nil
}

func (s *Scheduler) record(modelID string, cycle domain.Cycle, report *pipeline.Report, err error) {
	status := httpserver.CycleStatus{
		Cycle:       cycle.String(),
		CompletedAt: s.clock.Now().UTC(),
	}
	if report != nil {
		status.Artifacts = report.Artifacts
		status.GapHours = report.GapHours
		status.Available = report.Available
	}
	if err != nil {
		status.Error = err.Error()
	}
	s.mu.Lock()
	s.statuses[modelID] = status
	s.mu.Unlock()
}
