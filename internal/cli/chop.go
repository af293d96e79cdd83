package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ofs-s111/internal/config"
	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/grid"
	"github.com/couchcryptid/ofs-s111/internal/model"
	"github.com/couchcryptid/ofs-s111/internal/s111"
)

func newChopCmd() *cobra.Command {
	var cfg config.ChopConfig

	cmd := &cobra.Command{
		Use:   "chop",
		Short: "Split an existing full-domain artifact into per-subgrid artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger()

			m, err := domain.Lookup(cfg.Model)
			if err != nil {
				return err
			}
			cycle, err := domain.ParseCycle(cfg.Cycle)
			if err != nil {
				return err
			}
			ix, err := grid.Load(cfg.IndexPath)
			if err != nil {
				return err
			}

			md := s111.Metadata{Model: m, Cycle: cycle, TargetDepth: cfg.TargetDepth}
			paths, err := s111.Chop(cfg.Artifact, cfg.OutputDir, ix, md, logger)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Model, "model", "", "model identifier (see 'ofs111 models')")
	cmd.Flags().StringVar(&cfg.Cycle, "cycle", "", "cycle time YYYYMMDDHH of the artifact")
	cmd.Flags().StringVar(&cfg.Artifact, "artifact", "", "full-domain S-111 artifact to split")
	cmd.Flags().StringVar(&cfg.IndexPath, "index", "", "grid index with subgrid definitions")
	cmd.Flags().StringVar(&cfg.OutputDir, "out-dir", ".", "directory for subgrid artifacts")
	cmd.Flags().Float64Var(&cfg.TargetDepth, "depth", model.DefaultTargetDepth, "target depth recorded in artifact metadata")
	cmd.MarkFlagRequired("model")    //nolint:errcheck
	cmd.MarkFlagRequired("cycle")    //nolint:errcheck
	cmd.MarkFlagRequired("artifact") //nolint:errcheck
	cmd.MarkFlagRequired("index")    //nolint:errcheck

	return cmd
}
