package interp

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/grid"
	"github.com/couchcryptid/ofs-s111/internal/model"
)

func testIndex(t *testing.T) (*grid.Index, *model.Geometry) {
	t.Helper()
	g := &model.Geometry{}
	for i := 0; i <= 10; i++ {
		for j := 0; j <= 10; j++ {
			g.Lon = append(g.Lon, float64(j)*0.01)
			g.Lat = append(g.Lat, 30+float64(i)*0.01)
			g.Mask = append(g.Mask, true)
		}
	}
	m, err := domain.Lookup("cbofs")
	require.NoError(t, err)
	ix, err := grid.Build(grid.BuildParams{Model: m, CellSize: 500}, g, slog.Default())
	require.NoError(t, err)
	return ix, g
}

func TestRegrid_UniformField(t *testing.T) {
	ix, g := testIndex(t)

	// A uniform 1 m/s eastward current regrids to the same value everywhere:
	// speed 1.944 kn, direction 90 degrees.
	f := &model.Field{Geometry: *g, U: make([]float64, g.Points()), V: make([]float64, g.Points())}
	for p := range f.U {
		f.U[p] = 1.0
	}

	out, err := Regrid(ix, f)
	require.NoError(t, err)
	require.Len(t, out.Speed, ix.Cells())

	for cell := 0; cell < ix.Cells(); cell++ {
		if !ix.Water(cell) {
			assert.Equal(t, FillValue, out.Speed[cell])
			continue
		}
		assert.InDelta(t, 1.9438, out.Speed[cell], 1e-3, "cell %d", cell)
		assert.InDelta(t, 90.0, out.Direction[cell], 1e-6, "cell %d", cell)
	}
}

func TestRegrid_FieldTooSmall(t *testing.T) {
	ix, _ := testIndex(t)
	f := &model.Field{
		Geometry: model.Geometry{Lat: []float64{30}, Lon: []float64{0}, Mask: []bool{true}},
		U:        []float64{1},
		V:        []float64{0},
	}
	_, err := Regrid(ix, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regenerate the index")
}

func TestNative(t *testing.T) {
	f := &model.Field{
		Geometry: model.Geometry{
			Lat:  []float64{30, 30.1},
			Lon:  []float64{-80, -80.1},
			Mask: []bool{true, false},
		},
		U: []float64{0, 5},
		V: []float64{1, 5},
	}
	out := Native(f)

	assert.InDelta(t, 1.9438, out.Speed[0], 1e-3)
	assert.InDelta(t, 0.0, out.Direction[0], 1e-6) // due north
	assert.Equal(t, FillValue, out.Speed[1])
	assert.Equal(t, FillValue, out.Direction[1])
}

func TestFill(t *testing.T) {
	g := Fill(3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, FillValue, g.Speed[i])
		assert.Equal(t, FillValue, g.Direction[i])
	}
}
