package model

import (
	"fmt"

	"github.com/fhs/go-netcdf/netcdf"
)

// FVCOMReader reads FVCOM fields files. FVCOM is an unstructured triangular
// mesh; velocities live at element centres and are already oriented to true
// east/north, so no de-staggering or rotation is needed.
type FVCOMReader struct{}

// ReadField implements Reader.
func (r *FVCOMReader) ReadField(path string, targetDepth float64) (*Field, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open FVCOM file: %w", err)
	}
	defer func() { _ = nc.Close() }()

	lon, lonShape, err := readFloat64Var(nc, "lonc")
	if err != nil {
		return nil, err
	}
	lat, latShape, err := readFloat64Var(nc, "latc")
	if err != nil {
		return nil, err
	}
	if len(lonShape) != 1 || len(latShape) != 1 || lonShape[0] != latShape[0] {
		return nil, fmt.Errorf("lonc/latc dimension mismatch: %v vs %v", lonShape, latShape)
	}
	nele := lonShape[0]

	u, uShape, err := readFloat64Var(nc, "u")
	if err != nil {
		return nil, err
	}
	v, vShape, err := readFloat64Var(nc, "v")
	if err != nil {
		return nil, err
	}
	// u, v: [time, siglay, nele].
	if len(uShape) != 3 || uShape[2] != nele {
		return nil, fmt.Errorf("u dimensions %v do not match %d elements", uShape, nele)
	}
	if len(vShape) != 3 || vShape[1] != uShape[1] || vShape[2] != nele {
		return nil, fmt.Errorf("v dimensions %v do not match u dimensions %v", vShape, uShape)
	}
	nLayers := uShape[1]

	sig, hc, err := readSigma(nc, nLayers, nele)
	if err != nil {
		return nil, err
	}

	if targetDepth < 0 {
		targetDepth = DefaultTargetDepth
	}

	field := &Field{
		Geometry: Geometry{
			Lat:  make([]float64, nele),
			Lon:  make([]float64, nele),
			Mask: make([]bool, nele),
		},
		U: make([]float64, nele),
		V: make([]float64, nele),
	}

	depths := make([]float64, nLayers)
	us := make([]float64, nLayers)
	vs := make([]float64, nLayers)

	for e := 0; e < nele; e++ {
		field.Lat[e] = lat[e]
		field.Lon[e] = normalizeLon(lon[e])
		field.Mask[e] = true // every mesh element is a water element

		for k := 0; k < nLayers; k++ {
			// siglay descends from near 0 (surface) to near -1 (bottom), so
			// layer order is already surface first.
			depths[k] = -sig.at(k, e) * hc[e]
			us[k] = u[(k * nele) + e]
			vs[k] = v[(k * nele) + e]
		}
		field.U[e], field.V[e] = interpAtDepth(depths, us, vs, targetDepth)
	}
	return field, nil
}

// sigmaLayers holds per-layer sigma values, either shared across elements
// (1D siglay) or per element (2D siglay_center).
type sigmaLayers struct {
	vals    []float64
	perElem bool
	nele    int
}

func (s sigmaLayers) at(layer, elem int) float64 {
	if s.perElem {
		return s.vals[layer*s.nele+elem]
	}
	return s.vals[layer]
}

// readSigma loads the sigma-layer coordinate and element-centre bathymetry.
func readSigma(nc netcdf.Dataset, nLayers, nele int) (sigmaLayers, []float64, error) {
	hc, hShape, err := readFloat64Var(nc, "h_center")
	if err != nil {
		return sigmaLayers{}, nil, err
	}
	if len(hShape) != 1 || hShape[0] != nele {
		return sigmaLayers{}, nil, fmt.Errorf("h_center dimensions %v do not match %d elements", hShape, nele)
	}

	for _, name := range []string{"siglay_center", "siglay"} {
		vals, shape, err := readFloat64Var(nc, name)
		if err != nil {
			continue
		}
		switch {
		case len(shape) == 2 && shape[0] == nLayers && shape[1] == nele:
			return sigmaLayers{vals: vals, perElem: true, nele: nele}, hc, nil
		case len(shape) == 1 && shape[0] == nLayers:
			return sigmaLayers{vals: vals}, hc, nil
		}
	}
	return sigmaLayers{}, nil, fmt.Errorf("no usable siglay/siglay_center variable with %d layers", nLayers)
}
