package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ofs-s111/internal/config"
	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/grid"
	"github.com/couchcryptid/ofs-s111/internal/model"
)

func newIndexCmd() *cobra.Command {
	var cfg config.IndexConfig

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the grid index for a model",
		Long: "Derive a regular output grid from the native geometry of a sample " +
			"fields file and store the interpolation index. The same sample file " +
			"and parameters always produce the same index.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger()

			m, err := domain.Lookup(cfg.Model)
			if err != nil {
				return err
			}
			reader, err := model.ReaderFor(m.Scheme)
			if err != nil {
				return err
			}
			field, err := reader.ReadField(cfg.SampleFile, cfg.TargetDepth)
			if err != nil {
				return fmt.Errorf("reading sample file: %w", err)
			}

			ix, err := grid.Build(grid.BuildParams{
				Model:           m,
				CellSize:        cfg.CellSize,
				ShorelinePath:   cfg.Shoreline,
				SubgridPath:     cfg.Subgrid,
				SubgridNameAttr: cfg.SubgridNameAttr,
			}, &field.Geometry, logger)
			if err != nil {
				return err
			}
			if err := ix.Save(cfg.IndexPath); err != nil {
				return err
			}

			logger.Info("grid index written",
				"path", cfg.IndexPath,
				"rows", ix.NRows, "cols", ix.NCols,
				"subgrids", len(ix.Subgrids))
			fmt.Fprintln(cmd.OutOrStdout(), cfg.IndexPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Model, "model", "", "model identifier (see 'ofs111 models')")
	cmd.Flags().StringVar(&cfg.SampleFile, "sample", "", "native fields file providing the grid geometry")
	cmd.Flags().Float64Var(&cfg.CellSize, "cell-size", 500, "output cell size in metres")
	cmd.Flags().StringVar(&cfg.Shoreline, "shoreline", "", "shoreline shapefile for land masking (optional)")
	cmd.Flags().StringVar(&cfg.Subgrid, "subgrid", "", "subgrid polygon shapefile (optional)")
	cmd.Flags().StringVar(&cfg.SubgridNameAttr, "subgrid-name-attr", "", "attribute naming each subgrid polygon")
	cmd.Flags().StringVar(&cfg.IndexPath, "out", "", "index output path")
	cmd.Flags().Float64Var(&cfg.TargetDepth, "depth", model.DefaultTargetDepth, "target depth below surface in metres")
	cmd.MarkFlagRequired("model")  //nolint:errcheck
	cmd.MarkFlagRequired("sample") //nolint:errcheck
	cmd.MarkFlagRequired("out")    //nolint:errcheck

	return cmd
}
