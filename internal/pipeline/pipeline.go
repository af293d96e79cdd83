// Package pipeline orchestrates one forecast cycle: acquire the hour files,
// read and interpolate each native field, and encode the S-111 artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/grid"
	"github.com/couchcryptid/ofs-s111/internal/interp"
	"github.com/couchcryptid/ofs-s111/internal/model"
	"github.com/couchcryptid/ofs-s111/internal/observability"
	"github.com/couchcryptid/ofs-s111/internal/s111"
)

// Acquirer downloads every forecast hour of a cycle, returning one entry per
// hour in ascending order with failures carried as gaps.
type Acquirer interface {
	FetchCycle(ctx context.Context, m domain.Model, cycle domain.Cycle, dir string) ([]domain.HourFile, error)
}

// FieldReader reads one native fields file at a target depth.
type FieldReader interface {
	ReadField(path string, targetDepth float64) (*model.Field, error)
}

// Encoder writes S-111 artifacts.
type Encoder interface {
	EncodeRegular(path string, ix *grid.Index, md s111.Metadata, hours []s111.Hour) error
	EncodeNative(path string, geo *model.Geometry, md s111.Metadata, hours []s111.Hour) error
	Chop(fullPath, outDir string, ix *grid.Index, md s111.Metadata, logger *slog.Logger) ([]string, error)
}

// S111Encoder is the production Encoder backed by the s111 package.
type S111Encoder struct{}

func (S111Encoder) EncodeRegular(path string, ix *grid.Index, md s111.Metadata, hours []s111.Hour) error {
	return s111.EncodeRegular(path, ix, md, hours)
}

func (S111Encoder) EncodeNative(path string, geo *model.Geometry, md s111.Metadata, hours []s111.Hour) error {
	return s111.EncodeNative(path, geo, md, hours)
}

func (S111Encoder) Chop(fullPath, outDir string, ix *grid.Index, md s111.Metadata, logger *slog.Logger) ([]string, error) {
	return s111.Chop(fullPath, outDir, ix, md, logger)
}

// Options selects the output of one cycle run.
type Options struct {
	DownloadDir string
	OutputDir   string
	TargetDepth float64
	Format      int32       // s111.FormatRegular or s111.FormatUngeorectified
	Index       *grid.Index // required for FormatRegular
	Chop        bool        // additionally write per-subgrid artifacts
}

// Report summarises one processed cycle.
type Report struct {
	Model     string
	Cycle     domain.Cycle
	Artifacts []string
	GapHours  []int
	Available int
	Elapsed   time.Duration
}

// Pipeline runs forecast cycles through the acquire-read-encode stages.
type Pipeline struct {
	acquirer Acquirer
	reader   FieldReader
	encoder  Encoder
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(a Acquirer, r FieldReader, e Encoder, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		acquirer: a,
		reader:   r,
		encoder:  e,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once at least one cycle has been processed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no forecast cycle processed yet")
	}
	return nil
}

// ProcessCycle runs one cycle end to end. Configuration problems are
// reported before any download starts; zero acquired hours is fatal; a
// subset of missing hours is carried through as fill-value records and
// listed in the report.
func (p *Pipeline) ProcessCycle(ctx context.Context, m domain.Model, cycle domain.Cycle, opts Options) (*Report, error) {
	if err := validate(m, opts); err != nil {
		return nil, err
	}

	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.logger.Info("processing cycle", "model", m.ID, "cycle", cycle.String())

	files, err := p.acquire(ctx, m, cycle, opts.DownloadDir)
	if err != nil {
		p.metrics.CyclesFailed.Inc()
		return nil, err
	}

	hours, geo, err := p.readFields(m, files, opts)
	if err != nil {
		p.metrics.CyclesFailed.Inc()
		return nil, err
	}

	md := s111.Metadata{Model: m, Cycle: cycle, TargetDepth: opts.TargetDepth}
	artifacts, err := p.encode(md, geo, hours, opts)
	if err != nil {
		p.metrics.CyclesFailed.Inc()
		return nil, err
	}

	elapsed := time.Since(start)
	p.metrics.CyclesProcessed.Inc()
	p.metrics.ArtifactsWritten.Add(float64(len(artifacts)))
	p.metrics.CycleProcessingDuration.Observe(elapsed.Seconds())
	p.ready.Store(true)

	report := &Report{
		Model:     m.ID,
		Cycle:     cycle,
		Artifacts: artifacts,
		GapHours:  domain.GapHours(files),
		Available: domain.Available(files),
		Elapsed:   elapsed,
	}
	p.logger.Info("cycle processed",
		"model", m.ID, "cycle", cycle.String(),
		"artifacts", len(artifacts), "gap_hours", report.GapHours,
		"elapsed", elapsed.Round(time.Second))
	return report, nil
}

// validate rejects configurations that could only fail after an expensive
// download.
func validate(m domain.Model, opts Options) error {
	switch opts.Format {
	case s111.FormatRegular:
		if opts.Index == nil {
			return fmt.Errorf("georectified output needs a grid index; build one first")
		}
		if opts.Index.ModelID != m.ID {
			return fmt.Errorf("grid index was built for %s, not %s", opts.Index.ModelID, m.ID)
		}
		if opts.Chop && len(opts.Index.Subgrids) == 0 {
			return fmt.Errorf("grid index has no subgrids to chop by")
		}
	case s111.FormatUngeorectified:
		if opts.Chop {
			return fmt.Errorf("chopping requires georectified output")
		}
	default:
		return fmt.Errorf("unsupported data coding format %d", opts.Format)
	}
	if opts.TargetDepth <= 0 {
		return fmt.Errorf("target depth must be positive, got %g", opts.TargetDepth)
	}
	return nil
}

func (p *Pipeline) acquire(ctx context.Context, m domain.Model, cycle domain.Cycle, dir string) ([]domain.HourFile, error) {
	start := time.Now()
	files, err := p.acquirer.FetchCycle(ctx, m, cycle, dir)
	if err != nil {
		return nil, fmt.Errorf("acquire cycle %s: %w", cycle, err)
	}
	p.metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	p.metrics.HoursDownloaded.Add(float64(domain.Available(files)))
	p.metrics.HourGaps.Add(float64(len(domain.GapHours(files))))

	if domain.Available(files) == 0 {
		return nil, fmt.Errorf("cycle %s: no forecast hours available", cycle)
	}
	return files, nil
}

// readFields turns hour files into encoder records. Acquisition gaps stay
// gaps; a file that downloaded but cannot be read becomes one too. The
// geometry of the first readable field describes the native grid.
func (p *Pipeline) readFields(m domain.Model, files []domain.HourFile, opts Options) ([]s111.Hour, *model.Geometry, error) {
	hours := make([]s111.Hour, len(files))
	var geo *model.Geometry

	for i, hf := range files {
		hours[i] = s111.Hour{Hour: hf.Hour}
		if hf.Gap() {
			continue
		}

		field, err := p.reader.ReadField(hf.Path, opts.TargetDepth)
		if err != nil {
			p.logger.Warn("unreadable fields file, treating hour as gap",
				"model", m.ID, "hour", hf.Hour, "path", hf.Path, "error", err)
			p.metrics.HourGaps.Inc()
			continue
		}
		if geo == nil {
			g := field.Geometry
			geo = &g
		}

		if opts.Format == s111.FormatRegular {
			data, err := interp.Regrid(opts.Index, field)
			if err != nil {
				return nil, nil, fmt.Errorf("hour %d: %w", hf.Hour, err)
			}
			hours[i].Data = data
		} else {
			hours[i].Data = interp.Native(field)
		}
	}

	if geo == nil {
		return nil, nil, fmt.Errorf("no readable fields file in cycle")
	}
	return hours, geo, nil
}

func (p *Pipeline) encode(md s111.Metadata, geo *model.Geometry, hours []s111.Hour, opts Options) ([]string, error) {
	full := filepath.Join(opts.OutputDir, s111.ArtifactName(md.Model, md.Cycle, ""))

	if opts.Format == s111.FormatUngeorectified {
		if err := p.encoder.EncodeNative(full, geo, md, hours); err != nil {
			return nil, fmt.Errorf("encode artifact: %w", err)
		}
		return []string{full}, nil
	}

	if err := p.encoder.EncodeRegular(full, opts.Index, md, hours); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	artifacts := []string{full}

	if opts.Chop {
		subs, err := p.encoder.Chop(full, opts.OutputDir, opts.Index, md, p.logger)
		if err != nil {
			return nil, fmt.Errorf("chop artifact: %w", err)
		}
		artifacts = append(artifacts, subs...)
	}
	return artifacts, nil
}
