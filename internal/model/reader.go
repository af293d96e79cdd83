// Package model reads native OFS NetCDF fields files (ROMS and FVCOM) into a
// scheme-independent snapshot of surface currents at the native grid points.
package model

import (
	"fmt"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/couchcryptid/ofs-s111/internal/domain"
)

// DefaultTargetDepth is the interpolation depth below the sea surface, in
// metres, used when the operator does not specify one.
const DefaultTargetDepth = 4.5

// Geometry describes the native grid points of a model domain.
type Geometry struct {
	Lat  []float64
	Lon  []float64
	Mask []bool // true = water point
}

// Points returns the number of native points.
func (g *Geometry) Points() int { return len(g.Lat) }

// Field is one hour of native model output: eastward/northward velocity in
// m/s at each native point, already de-staggered and rotated to true
// east/north where the scheme requires it.
type Field struct {
	Geometry
	U []float64
	V []float64
}

// Reader reads a native fields file at a target depth below the surface.
type Reader interface {
	ReadField(path string, targetDepth float64) (*Field, error)
}

// ReaderFor returns the reader for a model's grid scheme.
func ReaderFor(scheme domain.GridScheme) (Reader, error) {
	switch scheme {
	case domain.SchemeROMS:
		return &ROMSReader{}, nil
	case domain.SchemeFVCOM:
		return &FVCOMReader{}, nil
	default:
		return nil, fmt.Errorf("unsupported grid scheme %q", scheme)
	}
}

// AutoReader dispatches to the ROMS or FVCOM reader by inspecting the file
// itself, so one reader instance can serve models of both schemes.
type AutoReader struct{}

// ReadField detects the grid scheme from the file's coordinate variables and
// delegates to the matching reader.
func (AutoReader) ReadField(path string, targetDepth float64) (*Field, error) {
	scheme, err := detectScheme(path)
	if err != nil {
		return nil, err
	}
	r, err := ReaderFor(scheme)
	if err != nil {
		return nil, err
	}
	return r.ReadField(path, targetDepth)
}

func detectScheme(path string) (domain.GridScheme, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer nc.Close()

	if _, err := nc.Var("lonc"); err == nil {
		return domain.SchemeFVCOM, nil
	}
	if _, err := nc.Var("lon_rho"); err == nil {
		return domain.SchemeROMS, nil
	}
	return "", fmt.Errorf("%s: neither a ROMS nor an FVCOM fields file", path)
}

// readFloat64Var reads any numeric variable as float64, returning its
// dimension lengths alongside the flattened row-major data.
func readFloat64Var(nc netcdf.Dataset, name string) ([]float64, []int, error) {
	v, err := nc.Var(name)
	if err != nil {
		return nil, nil, fmt.Errorf("variable %q not found: %w", name, err)
	}

	dims, err := v.Dims()
	if err != nil {
		return nil, nil, fmt.Errorf("variable %q dimensions: %w", name, err)
	}
	shape := make([]int, len(dims))
	n := 1
	for i, d := range dims {
		l, err := d.Len()
		if err != nil {
			return nil, nil, fmt.Errorf("variable %q dimension %d: %w", name, i, err)
		}
		shape[i] = int(l)
		n *= int(l)
	}

	t, err := v.Type()
	if err != nil {
		return nil, nil, fmt.Errorf("variable %q type: %w", name, err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, n)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, nil, fmt.Errorf("read %q: %w", name, err)
		}
		return data, shape, nil
	case netcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, nil, fmt.Errorf("read %q: %w", name, err)
		}
		data := make([]float64, n)
		for i, x := range tmp {
			data[i] = float64(x)
		}
		return data, shape, nil
	case netcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, nil, fmt.Errorf("read %q: %w", name, err)
		}
		data := make([]float64, n)
		for i, x := range tmp {
			data[i] = float64(x)
		}
		return data, shape, nil
	default:
		return nil, nil, fmt.Errorf("variable %q has unsupported type %v", name, t)
	}
}

// interpAtDepth linearly interpolates (u, v) between the two sigma layers
// bracketing target. depths, us and vs are ordered surface first; depths are
// positive metres below surface and increase monotonically. Targets above the
// first layer or below the last clamp to the nearest layer.
func interpAtDepth(depths, us, vs []float64, target float64) (float64, float64) {
	if len(depths) == 0 {
		return 0, 0
	}
	if target <= depths[0] {
		return us[0], vs[0]
	}
	last := len(depths) - 1
	if target >= depths[last] {
		return us[last], vs[last]
	}
	for k := 1; k <= last; k++ {
		if target <= depths[k] {
			span := depths[k] - depths[k-1]
			if span <= 0 {
				return us[k], vs[k]
			}
			frac := (target - depths[k-1]) / span
			return us[k-1] + frac*(us[k]-us[k-1]), vs[k-1] + frac*(vs[k]-vs[k-1])
		}
	}
	return us[last], vs[last]
}

// normalizeLon maps longitudes published on a 0–360 axis into (-180, 180].
func normalizeLon(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}
