package model

import (
	"fmt"
	"math"

	"github.com/fhs/go-netcdf/netcdf"
)

// ROMSReader reads ROMS fields files. ROMS uses a curvilinear rho grid with
// u/v staggered between rho points and rotated into grid-local coordinates;
// reading de-staggers both components onto rho points and rotates them to
// true east/north using the grid angle.
type ROMSReader struct{}

// ReadField implements Reader.
func (r *ROMSReader) ReadField(path string, targetDepth float64) (*Field, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open ROMS file: %w", err)
	}
	defer func() { _ = nc.Close() }()

	lon, lonShape, err := readFloat64Var(nc, "lon_rho")
	if err != nil {
		return nil, err
	}
	lat, latShape, err := readFloat64Var(nc, "lat_rho")
	if err != nil {
		return nil, err
	}
	if len(lonShape) != 2 || len(latShape) != 2 || lonShape[0] != latShape[0] || lonShape[1] != latShape[1] {
		return nil, fmt.Errorf("lon_rho/lat_rho dimension mismatch: %v vs %v", lonShape, latShape)
	}
	eta, xi := lonShape[0], lonShape[1]

	maskVals, maskShape, err := readFloat64Var(nc, "mask_rho")
	if err != nil {
		return nil, err
	}
	if maskShape[0] != eta || maskShape[1] != xi {
		return nil, fmt.Errorf("mask_rho dimensions %v do not match rho grid [%d %d]", maskShape, eta, xi)
	}

	angle, angleShape, err := readFloat64Var(nc, "angle")
	if err != nil {
		return nil, err
	}
	if angleShape[0] != eta || angleShape[1] != xi {
		return nil, fmt.Errorf("angle dimensions %v do not match rho grid [%d %d]", angleShape, eta, xi)
	}

	h, hShape, err := readFloat64Var(nc, "h")
	if err != nil {
		return nil, err
	}
	if hShape[0] != eta || hShape[1] != xi {
		return nil, fmt.Errorf("h dimensions %v do not match rho grid [%d %d]", hShape, eta, xi)
	}

	sRho, sShape, err := readFloat64Var(nc, "s_rho")
	if err != nil {
		return nil, err
	}
	if len(sShape) != 1 {
		return nil, fmt.Errorf("s_rho must be one-dimensional, got %v", sShape)
	}
	nLayers := sShape[0]

	u, uShape, err := readFloat64Var(nc, "u")
	if err != nil {
		return nil, err
	}
	v, vShape, err := readFloat64Var(nc, "v")
	if err != nil {
		return nil, err
	}
	// u: [ocean_time, s_rho, eta_u, xi_u] with eta_u == eta, xi_u == xi-1.
	// v: [ocean_time, s_rho, eta_v, xi_v] with eta_v == eta-1, xi_v == xi.
	if len(uShape) != 4 || uShape[1] != nLayers || uShape[2] != eta || uShape[3] != xi-1 {
		return nil, fmt.Errorf("u dimensions %v do not match grid [%d %d] with %d layers", uShape, eta, xi, nLayers)
	}
	if len(vShape) != 4 || vShape[1] != nLayers || vShape[2] != eta-1 || vShape[3] != xi {
		return nil, fmt.Errorf("v dimensions %v do not match grid [%d %d] with %d layers", vShape, eta, xi, nLayers)
	}

	if targetDepth < 0 {
		targetDepth = DefaultTargetDepth
	}

	n := eta * xi
	field := &Field{
		Geometry: Geometry{
			Lat:  make([]float64, n),
			Lon:  make([]float64, n),
			Mask: make([]bool, n),
		},
		U: make([]float64, n),
		V: make([]float64, n),
	}

	// s_rho ascends from near -1 (bottom) to near 0 (surface); iterate from
	// the surface down so interpAtDepth sees increasing depths.
	depths := make([]float64, nLayers)
	us := make([]float64, nLayers)
	vs := make([]float64, nLayers)

	for i := 0; i < eta; i++ {
		for j := 0; j < xi; j++ {
			p := i*xi + j
			field.Lat[p] = lat[p]
			field.Lon[p] = normalizeLon(lon[p])
			field.Mask[p] = maskVals[p] > 0
			if !field.Mask[p] {
				continue
			}

			for k := 0; k < nLayers; k++ {
				layer := nLayers - 1 - k // surface first
				depths[k] = -sRho[layer] * h[p]
				us[k] = rhoU(u, nLayers, eta, xi, layer, i, j)
				vs[k] = rhoV(v, nLayers, eta, xi, layer, i, j)
			}
			ug, vg := interpAtDepth(depths, us, vs, targetDepth)

			// Rotate from grid-local to true east/north.
			sin, cos := math.Sin(angle[p]), math.Cos(angle[p])
			field.U[p] = ug*cos - vg*sin
			field.V[p] = ug*sin + vg*cos
		}
	}
	return field, nil
}

// rhoU averages the staggered u component onto rho point (i, j) for one layer.
func rhoU(u []float64, nLayers, eta, xi, layer, i, j int) float64 {
	xiU := xi - 1
	at := func(jj int) float64 {
		return u[(layer*eta+i)*xiU+jj]
	}
	switch {
	case j == 0:
		return at(0)
	case j == xi-1:
		return at(xiU - 1)
	default:
		return 0.5 * (at(j-1) + at(j))
	}
}

// rhoV averages the staggered v component onto rho point (i, j) for one layer.
func rhoV(v []float64, nLayers, eta, xi, layer, i, j int) float64 {
	etaV := eta - 1
	at := func(ii int) float64 {
		return v[(layer*etaV+ii)*xi+j]
	}
	switch {
	case i == 0:
		return at(0)
	case i == eta-1:
		return at(etaV - 1)
	default:
		return 0.5 * (at(i-1) + at(i))
	}
}
