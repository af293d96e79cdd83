package s111

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/hdf5"

	"github.com/couchcryptid/ofs-s111/internal/grid"
	"github.com/couchcryptid/ofs-s111/internal/interp"
)

func TestChop_PartitionsWithoutLossOrDuplication(t *testing.T) {
	ix := miniIndex()
	md := miniMetadata(t)
	dir := t.TempDir()

	full := filepath.Join(dir, ArtifactName(md.Model, md.Cycle, ""))
	hours := []Hour{
		{Hour: 0, Data: cellGrids(ix.Cells())},
		{Hour: 1, Data: cellGrids(ix.Cells())},
		{Hour: 2, Data: cellGrids(ix.Cells())},
	}
	require.NoError(t, EncodeRegular(full, ix, md, hours))

	written, err := Chop(full, dir, ix, md, slog.Default())
	require.NoError(t, err)
	require.Len(t, written, 2)
	assert.Equal(t, filepath.Join(dir, "S111US_20190701T00Z_MINIOFS_west.h5"), written[0])
	assert.Equal(t, filepath.Join(dir, "S111US_20190701T00Z_MINIOFS_east.h5"), written[1])

	// Collect every non-fill value across both outputs for hour 0.
	found := map[float32]int{}
	for _, path := range written {
		f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
		require.NoError(t, err)
		rows := int(readI32Meta(t, f, "numPointsLatitudinal"))
		cols := int(readI32Meta(t, f, "numPointsLongitudinal"))
		assert.Equal(t, 2, rows)
		assert.Equal(t, 2, cols)
		for _, v := range readF32Grid(t, f, "Group_001", "surfaceCurrentSpeed", rows*cols) {
			if v != interp.FillValue {
				found[v]++
			}
		}
		f.Close()
	}

	// Cells 0,1,4 belong to west and 2,3,6 to east; cell 5 is excluded and
	// cell 7 lies outside all subgrids, so neither appears anywhere.
	for _, cell := range []float32{0, 1, 2, 3, 4, 6} {
		assert.Equal(t, 1, found[cell], "cell %v must appear exactly once", cell)
	}
	assert.NotContains(t, found, float32(5))
	assert.NotContains(t, found, float32(7))
}

func TestChop_SubgridOrigins(t *testing.T) {
	ix := miniIndex()
	md := miniMetadata(t)
	dir := t.TempDir()

	full := filepath.Join(dir, "full.h5")
	hours := []Hour{
		{Hour: 0, Data: cellGrids(ix.Cells())},
		{Hour: 1, Data: cellGrids(ix.Cells())},
		{Hour: 2, Data: cellGrids(ix.Cells())},
	}
	require.NoError(t, EncodeRegular(full, ix, md, hours))

	written, err := Chop(full, dir, ix, md, slog.Default())
	require.NoError(t, err)

	east, err := hdf5.OpenFile(written[1], hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer east.Close()
	// East subgrid starts at column 2.
	assert.InDelta(t, ix.CellLon(2), readF64Meta(t, east, "gridOriginLongitude"), 1e-12)
	assert.InDelta(t, ix.CellLat(0), readF64Meta(t, east, "gridOriginLatitude"), 1e-12)
}

func TestChop_NoSubgrids(t *testing.T) {
	ix := miniIndex()
	ix.Subgrids = nil
	_, err := Chop("unused.h5", t.TempDir(), ix, miniMetadata(t), slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no subgrids")
}

func TestChop_MissingGroupFails(t *testing.T) {
	ix := miniIndex()
	md := miniMetadata(t)
	dir := t.TempDir()

	// Artifact with fewer records than the model's forecast hours.
	full := filepath.Join(dir, "short.h5")
	require.NoError(t, EncodeRegular(full, ix, md, []Hour{{Hour: 0, Data: cellGrids(ix.Cells())}}))

	_, err := Chop(full, dir, ix, md, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Group_002")
}

func TestChop_SkipsEmptySubgrid(t *testing.T) {
	ix := miniIndex()
	// Third subgrid never received a cell.
	ix.Subgrids = append(ix.Subgrids, grid.Subgrid{ID: 3, Name: "empty", MinRow: -1, MaxRow: -1, MinCol: -1, MaxCol: -1})
	md := miniMetadata(t)
	dir := t.TempDir()

	full := filepath.Join(dir, "full.h5")
	hours := []Hour{
		{Hour: 0, Data: cellGrids(ix.Cells())},
		{Hour: 1, Data: cellGrids(ix.Cells())},
		{Hour: 2, Data: cellGrids(ix.Cells())},
	}
	require.NoError(t, EncodeRegular(full, ix, md, hours))

	written, err := Chop(full, dir, ix, md, slog.Default())
	require.NoError(t, err)
	assert.Len(t, written, 2)
}
