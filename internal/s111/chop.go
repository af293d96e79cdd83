package s111

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"gonum.org/v1/hdf5"

	"github.com/couchcryptid/ofs-s111/internal/grid"
	"github.com/couchcryptid/ofs-s111/internal/interp"
)

// Chop splits a full-domain format-2 artifact into one artifact per subgrid
// of the index. Every water cell lands in exactly one output file: the
// window of its assigned subgrid, with cells belonging to other subgrids
// carried as fill values. Subgrids that received no cells are skipped.
// Returns the paths written.
func Chop(fullPath, outDir string, ix *grid.Index, md Metadata, logger *slog.Logger) ([]string, error) {
	if len(ix.Subgrids) == 0 {
		return nil, fmt.Errorf("grid index has no subgrids to chop by")
	}

	hours, err := readArtifactHours(fullPath, md, ix.NRows, ix.NCols)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, sg := range ix.Subgrids {
		if sg.MinRow < 0 {
			logger.Warn("subgrid received no cells, skipping", "subgrid", sg.Name)
			continue
		}
		rows := int(sg.MaxRow-sg.MinRow) + 1
		cols := int(sg.MaxCol-sg.MinCol) + 1

		sub := make([]Hour, len(hours))
		for i, h := range hours {
			sub[i] = Hour{Hour: h.Hour, Data: window(h.Data, ix, sg, rows, cols)}
		}

		rg := regularGrid{
			Lon0: ix.CellLon(int(sg.MinCol)), Lat0: ix.CellLat(int(sg.MinRow)),
			DLon: ix.DLon, DLat: ix.DLat,
			NRows: rows, NCols: cols,
		}
		path := filepath.Join(outDir, ArtifactName(md.Model, md.Cycle, sg.Name))
		if err := encodeRegularGrid(path, rg, md, sub); err != nil {
			return written, fmt.Errorf("encode subgrid %s: %w", sg.Name, err)
		}
		logger.Info("subgrid artifact written", "subgrid", sg.Name, "path", path, "rows", rows, "cols", cols)
		written = append(written, path)
	}
	return written, nil
}

// window extracts a subgrid's rectangular slice of the full grid, keeping
// only the cells assigned to that subgrid.
func window(full *interp.Grids, ix *grid.Index, sg grid.Subgrid, rows, cols int) *interp.Grids {
	out := interp.Fill(rows * cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cell := (int(sg.MinRow)+r)*ix.NCols + int(sg.MinCol) + c
			if ix.Mask[cell] != sg.ID {
				continue
			}
			out.Speed[r*cols+c] = full.Speed[cell]
			out.Direction[r*cols+c] = full.Direction[cell]
		}
	}
	return out
}

// readArtifactHours reads every time record of a format-2 artifact. The
// artifact must carry one group per configured forecast hour of the model.
func readArtifactHours(path string, md Metadata, nRows, nCols int) ([]Hour, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	leadHours := md.Model.ForecastHours()
	out := make([]Hour, len(leadHours))
	for i, hour := range leadHours {
		g, err := f.OpenGroup(groupName(i))
		if err != nil {
			return nil, fmt.Errorf("artifact lacks %s (hour %d): %w", groupName(i), hour, err)
		}
		speed, err := readFloat32Dataset(g, "surfaceCurrentSpeed", nRows, nCols)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("%s: %w", groupName(i), err)
		}
		dir, err := readFloat32Dataset(g, "surfaceCurrentDirection", nRows, nCols)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("%s: %w", groupName(i), err)
		}
		g.Close()
		out[i] = Hour{Hour: hour, Data: &interp.Grids{Speed: speed, Direction: dir}}
	}
	return out, nil
}

func readFloat32Dataset(g *hdf5.Group, name string, nRows, nCols int) ([]float32, error) {
	dset, err := g.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", name, err)
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, fmt.Errorf("dataset %s extent: %w", name, err)
	}
	if len(dims) != 2 || int(dims[0]) != nRows || int(dims[1]) != nCols {
		return nil, fmt.Errorf("dataset %s is %v, grid index is %dx%d", name, dims, nRows, nCols)
	}

	data := make([]float32, nRows*nCols)
	if err := dset.Read(&data); err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", name, err)
	}
	return data, nil
}
