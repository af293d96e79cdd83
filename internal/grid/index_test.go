package grid

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/model"
)

// testGeometry is an 11x11 lattice of native water points spanning
// (0..0.1, 30..30.1) degrees, with the south-west corner marked as land.
func testGeometry() *model.Geometry {
	g := &model.Geometry{}
	for i := 0; i <= 10; i++ {
		for j := 0; j <= 10; j++ {
			g.Lon = append(g.Lon, float64(j)*0.01)
			g.Lat = append(g.Lat, 30+float64(i)*0.01)
			g.Mask = append(g.Mask, !(i == 0 && j == 0))
		}
	}
	return g
}

func testModel(t *testing.T) domain.Model {
	t.Helper()
	m, err := domain.Lookup("cbofs")
	require.NoError(t, err)
	return m
}

type namedRec struct {
	geom.Polygon
	Name string `shp:"NAME"`
}

// writeShapefile writes polygon records with a NAME attribute.
func writeShapefile(t *testing.T, path string, recs []namedRec) {
	t.Helper()
	e, err := shp.NewEncoder(path, namedRec{})
	require.NoError(t, err)
	for i := range recs {
		require.NoError(t, e.Encode(&recs[i]))
	}
	e.Close()
}

func rect(minX, minY, maxX, maxY float64) geom.Polygon {
	return geom.Polygon{{
		{X: minX, Y: minY}, {X: maxX, Y: minY},
		{X: maxX, Y: maxY}, {X: minX, Y: maxY},
		{X: minX, Y: minY},
	}}
}

func TestBuild_GridGeometryAndWeights(t *testing.T) {
	ix, err := Build(BuildParams{Model: testModel(t), CellSize: 500}, testGeometry(), slog.Default())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, ix.NRows, 2)
	assert.GreaterOrEqual(t, ix.NCols, 2)
	assert.Equal(t, "cbofs", ix.ModelID)
	assert.Equal(t, domain.SchemeROMS, ix.Scheme)
	require.NoError(t, ix.Validate())

	water := 0
	for cell := 0; cell < ix.Cells(); cell++ {
		if !ix.Water(cell) {
			continue
		}
		water++
		sum := 0.0
		for s := 0; s < sourcesPerCell; s++ {
			if ix.SrcIdx[cell*sourcesPerCell+s] >= 0 {
				sum += ix.SrcW[cell*sourcesPerCell+s]
			}
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "weights of cell %d must normalise", cell)
	}
	assert.Greater(t, water, 0)
}

func TestBuild_Idempotent(t *testing.T) {
	p := BuildParams{Model: testModel(t), CellSize: 500}
	a, err := Build(p, testGeometry(), slog.Default())
	require.NoError(t, err)
	b, err := Build(p, testGeometry(), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuild_DegenerateGrid(t *testing.T) {
	_, err := Build(BuildParams{Model: testModel(t), CellSize: 0}, testGeometry(), slog.Default())
	require.Error(t, err)

	// A cell size far larger than the whole envelope leaves fewer than 2x2 cells.
	_, err = Build(BuildParams{Model: testModel(t), CellSize: 5e6}, testGeometry(), slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degenerate")
}

func TestBuild_ShorelineMasksCells(t *testing.T) {
	dir := t.TempDir()
	shore := filepath.Join(dir, "shore.shp")
	// Land covers the western third of the domain.
	writeShapefile(t, shore, []namedRec{{Polygon: rect(-0.01, 29.99, 0.03, 30.11), Name: "land"}})

	p := BuildParams{Model: testModel(t), CellSize: 500, ShorelinePath: shore}
	ix, err := Build(p, testGeometry(), slog.Default())
	require.NoError(t, err)

	open, err := Build(BuildParams{Model: testModel(t), CellSize: 500}, testGeometry(), slog.Default())
	require.NoError(t, err)

	maskedWest, waterEast := false, false
	for row := 0; row < ix.NRows; row++ {
		for col := 0; col < ix.NCols; col++ {
			cell := row*ix.NCols + col
			if ix.CellLon(col) < 0.03 && !ix.Water(cell) && open.Water(cell) {
				maskedWest = true
			}
			if ix.CellLon(col) > 0.05 && ix.Water(cell) {
				waterEast = true
			}
		}
	}
	assert.True(t, maskedWest, "cells inside the shoreline polygon must be excluded")
	assert.True(t, waterEast, "cells outside the shoreline polygon stay water")
}

func TestBuild_SubgridPartition(t *testing.T) {
	dir := t.TempDir()
	subs := filepath.Join(dir, "subgrids.shp")
	// Two half-domain polygons overlapping slightly around lon 0.05; the
	// first record wins in the overlap.
	writeShapefile(t, subs, []namedRec{
		{Polygon: rect(-0.01, 29.99, 0.055, 30.11), Name: "west"},
		{Polygon: rect(0.045, 29.99, 0.11, 30.11), Name: "east"},
	})

	ix, err := Build(BuildParams{
		Model: testModel(t), CellSize: 500,
		SubgridPath: subs, SubgridNameAttr: "NAME",
	}, testGeometry(), slog.Default())
	require.NoError(t, err)

	require.Len(t, ix.Subgrids, 2)
	assert.Equal(t, "west", ix.Subgrids[0].Name)
	assert.Equal(t, "east", ix.Subgrids[1].Name)

	counts := map[int32]int{}
	for cell := 0; cell < ix.Cells(); cell++ {
		if ix.Water(cell) {
			counts[ix.Mask[cell]]++
		}
	}
	assert.Greater(t, counts[1], 0, "west subgrid must receive cells")
	assert.Greater(t, counts[2], 0, "east subgrid must receive cells")
	assert.Zero(t, counts[0], "every water cell lies inside a polygon here")

	// Overlap cells went to the first record, so the partitions are disjoint
	// by construction; check the recorded bounds frame the assignment.
	west := ix.Subgrids[0]
	for row := int32(0); row < int32(ix.NRows); row++ {
		for col := int32(0); col < int32(ix.NCols); col++ {
			if ix.Mask[row*int32(ix.NCols)+col] == west.ID {
				assert.GreaterOrEqual(t, row, west.MinRow)
				assert.LessOrEqual(t, row, west.MaxRow)
				assert.GreaterOrEqual(t, col, west.MinCol)
				assert.LessOrEqual(t, col, west.MaxCol)
			}
		}
	}
}

func TestBuild_RecordNumberNamesWithoutAttr(t *testing.T) {
	dir := t.TempDir()
	subs := filepath.Join(dir, "subgrids.shp")
	writeShapefile(t, subs, []namedRec{
		{Polygon: rect(-0.01, 29.99, 0.11, 30.11), Name: "ignored"},
	})

	ix, err := Build(BuildParams{
		Model: testModel(t), CellSize: 500, SubgridPath: subs,
	}, testGeometry(), slog.Default())
	require.NoError(t, err)
	require.Len(t, ix.Subgrids, 1)
	assert.Equal(t, "0", ix.Subgrids[0].Name)
}

func TestBuild_RejectsDuplicateSubgridNames(t *testing.T) {
	dir := t.TempDir()
	subs := filepath.Join(dir, "subgrids.shp")
	writeShapefile(t, subs, []namedRec{
		{Polygon: rect(-0.01, 29.99, 0.05, 30.11), Name: "same"},
		{Polygon: rect(0.05, 29.99, 0.11, 30.11), Name: "same"},
	})

	_, err := Build(BuildParams{
		Model: testModel(t), CellSize: 500,
		SubgridPath: subs, SubgridNameAttr: "NAME",
	}, testGeometry(), slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"same"`)
}

func TestBuild_RejectsEmptySubgridName(t *testing.T) {
	dir := t.TempDir()
	subs := filepath.Join(dir, "subgrids.shp")
	writeShapefile(t, subs, []namedRec{
		{Polygon: rect(-0.01, 29.99, 0.11, 30.11), Name: ""},
	})

	_, err := Build(BuildParams{
		Model: testModel(t), CellSize: 500,
		SubgridPath: subs, SubgridNameAttr: "NAME",
	}, testGeometry(), slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty name")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	subs := filepath.Join(dir, "subgrids.shp")
	writeShapefile(t, subs, []namedRec{
		{Polygon: rect(-0.01, 29.99, 0.055, 30.11), Name: "west"},
		{Polygon: rect(0.045, 29.99, 0.11, 30.11), Name: "east"},
	})

	ix, err := Build(BuildParams{
		Model: testModel(t), CellSize: 500,
		SubgridPath: subs, SubgridNameAttr: "NAME",
	}, testGeometry(), slog.Default())
	require.NoError(t, err)

	path := filepath.Join(dir, "index.nc")
	require.NoError(t, ix.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ix, loaded)
}

func TestSaveLoad_NoSubgrids(t *testing.T) {
	ix, err := Build(BuildParams{Model: testModel(t), CellSize: 500}, testGeometry(), slog.Default())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "index.nc")
	require.NoError(t, ix.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ix, loaded)
	assert.Empty(t, loaded.Subgrids)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.nc"))
	require.Error(t, err)
}
