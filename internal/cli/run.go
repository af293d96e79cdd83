package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ofs-s111/internal/adapter/nomads"
	"github.com/couchcryptid/ofs-s111/internal/config"
	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/grid"
	"github.com/couchcryptid/ofs-s111/internal/model"
	"github.com/couchcryptid/ofs-s111/internal/observability"
	"github.com/couchcryptid/ofs-s111/internal/pipeline"
	"github.com/couchcryptid/ofs-s111/internal/s111"
)

func newRunCmd() *cobra.Command {
	var cfg config.RunConfig

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download one forecast cycle and encode S-111 artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger()

			m, err := domain.Lookup(cfg.Model)
			if err != nil {
				return err
			}

			var cycle domain.Cycle
			if cfg.Cycle == "" {
				cycle, err = domain.LatestCycle(m, time.Now())
			} else {
				cycle, err = domain.ParseCycle(cfg.Cycle)
			}
			if err != nil {
				return err
			}

			opts := pipeline.Options{
				DownloadDir: cfg.DownloadDir,
				OutputDir:   cfg.OutputDir,
				TargetDepth: cfg.TargetDepth,
				Format:      int32(cfg.Format),
			}
			if opts.Format == s111.FormatRegular {
				ix, err := grid.Load(cfg.IndexPath)
				if err != nil {
					return err
				}
				opts.Index = ix
				opts.Chop = cfg.Chop
			}

			reader, err := model.ReaderFor(m.Scheme)
			if err != nil {
				return err
			}
			clientOpts := []nomads.Option{nomads.WithWorkers(cfg.Workers)}
			if cfg.BaseURL != "" {
				clientOpts = append(clientOpts, nomads.WithBaseURL(cfg.BaseURL))
			}
			client := nomads.NewClient(cfg.Timeout, logger, clientOpts...)
			p := pipeline.New(client, reader, pipeline.S111Encoder{}, logger, observability.NewMetrics())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := p.ProcessCycle(ctx, m, cycle, opts)
			if err != nil {
				return err
			}
			if len(report.Artifacts) == 0 {
				return fmt.Errorf("cycle %s produced no artifact", cycle)
			}
			for _, a := range report.Artifacts {
				fmt.Fprintln(cmd.OutOrStdout(), a)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Model, "model", "", "model identifier (see 'ofs111 models')")
	cmd.Flags().StringVar(&cfg.Cycle, "cycle", "", "cycle time YYYYMMDDHH; default is the latest available")
	cmd.Flags().IntVar(&cfg.Format, "format", 2, "data coding format: 2 (regular grid) or 3 (native points)")
	cmd.Flags().StringVar(&cfg.IndexPath, "index", "", "grid index path (required for format 2)")
	cmd.Flags().StringVar(&cfg.DownloadDir, "download-dir", ".", "directory for downloaded fields files")
	cmd.Flags().StringVar(&cfg.OutputDir, "out-dir", ".", "directory for S-111 artifacts")
	cmd.Flags().Float64Var(&cfg.TargetDepth, "depth", model.DefaultTargetDepth, "target depth below surface in metres")
	cmd.Flags().BoolVar(&cfg.Chop, "chop", false, "additionally write one artifact per subgrid")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 10*time.Minute, "per-file download timeout")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 4, "concurrent downloads")
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "", "archive base URL override")
	cmd.MarkFlagRequired("model") //nolint:errcheck

	return cmd
}
