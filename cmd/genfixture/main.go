// Command genfixture writes a synthetic OFS fields file in either the ROMS or
// the FVCOM layout. The output is small but structurally faithful, so it can
// feed 'ofs111 index --sample' and local pipeline runs without pulling real
// model output from the archive.
//
// Usage:
//
//	go run ./cmd/genfixture -scheme roms -out cbofs_sample.nc -size 40
package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/fhs/go-netcdf/netcdf"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	scheme := flag.String("scheme", "roms", "grid scheme: roms or fvcom")
	out := flag.String("out", "", "output NetCDF path")
	size := flag.Int("size", 40, "points per side of the synthetic domain")
	layers := flag.Int("layers", 8, "vertical layers")
	depth := flag.Float64("depth", 12, "bathymetry in metres")
	speed := flag.Float64("speed", 0.8, "surface current speed in m/s")
	lon0 := flag.Float64("lon", -76.2, "south-west corner longitude")
	lat0 := flag.Float64("lat", 37.0, "south-west corner latitude")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *size < 3 || *layers < 2 {
		return fmt.Errorf("need at least a 3x3 domain with 2 layers")
	}

	switch *scheme {
	case "roms":
		return writeROMS(*out, *size, *layers, *depth, *speed, *lon0, *lat0)
	case "fvcom":
		return writeFVCOM(*out, *size, *layers, *depth, *speed, *lon0, *lat0)
	default:
		return fmt.Errorf("unknown scheme %q (want roms or fvcom)", *scheme)
	}
}

// eddy returns a synthetic east/north current at a fractional position in the
// unit square: a single gyre, strongest mid-domain, calm at the edges.
func eddy(fx, fy, speed float64) (u, v float64) {
	u = speed * math.Sin(math.Pi*fy) * math.Cos(math.Pi*fx/2)
	v = -speed * math.Sin(math.Pi*fx) * math.Cos(math.Pi*fy/2)
	return u, v
}

func writeROMS(path string, n, nLayers int, depth, speed, lon0, lat0 float64) error {
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		return err
	}
	defer f.Close()

	timeDim, err := f.AddDim("ocean_time", 1)
	if err != nil {
		return err
	}
	sDim, err := f.AddDim("s_rho", uint64(nLayers))
	if err != nil {
		return err
	}
	etaDim, err := f.AddDim("eta_rho", uint64(n))
	if err != nil {
		return err
	}
	xiDim, err := f.AddDim("xi_rho", uint64(n))
	if err != nil {
		return err
	}
	etaVDim, err := f.AddDim("eta_v", uint64(n-1))
	if err != nil {
		return err
	}
	xiUDim, err := f.AddDim("xi_u", uint64(n-1))
	if err != nil {
		return err
	}

	rho2d := []netcdf.Dim{etaDim, xiDim}
	vars := map[string]netcdf.Var{}
	for _, name := range []string{"lon_rho", "lat_rho", "mask_rho", "angle", "h"} {
		v, err := f.AddVar(name, netcdf.DOUBLE, rho2d)
		if err != nil {
			return err
		}
		vars[name] = v
	}
	vS, err := f.AddVar("s_rho", netcdf.DOUBLE, []netcdf.Dim{sDim})
	if err != nil {
		return err
	}
	vU, err := f.AddVar("u", netcdf.FLOAT, []netcdf.Dim{timeDim, sDim, etaDim, xiUDim})
	if err != nil {
		return err
	}
	vV, err := f.AddVar("v", netcdf.FLOAT, []netcdf.Dim{timeDim, sDim, etaVDim, xiDim})
	if err != nil {
		return err
	}
	if err := f.EndDef(); err != nil {
		return err
	}

	step := 0.005
	lon := make([]float64, n*n)
	lat := make([]float64, n*n)
	mask := make([]float64, n*n)
	h := make([]float64, n*n)
	angle := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p := i*n + j
			lon[p] = lon0 + step*float64(j)
			lat[p] = lat0 + step*float64(i)
			mask[p] = 1
			h[p] = depth
			// Land along the western edge, like a shoreline.
			if j == 0 {
				mask[p] = 0
			}
		}
	}
	for _, w := range []struct {
		v    netcdf.Var
		data []float64
	}{
		{vars["lon_rho"], lon}, {vars["lat_rho"], lat}, {vars["mask_rho"], mask},
		{vars["angle"], angle}, {vars["h"], h},
	} {
		if err := w.v.WriteFloat64s(w.data); err != nil {
			return err
		}
	}

	// Ascending from bottom to surface.
	sRho := make([]float64, nLayers)
	for k := 0; k < nLayers; k++ {
		sRho[k] = -1 + (float64(k)+0.5)/float64(nLayers)
	}
	if err := vS.WriteFloat64s(sRho); err != nil {
		return err
	}

	// Currents weaken with depth; layer k sits at fraction -sRho[k] of the column.
	u := make([]float32, nLayers*n*(n-1))
	v := make([]float32, nLayers*(n-1)*n)
	for k := 0; k < nLayers; k++ {
		shear := 1 + sRho[k] // 1 at surface, ~0 at bottom
		for i := 0; i < n; i++ {
			for j := 0; j < n-1; j++ {
				ue, _ := eddy(float64(j)/float64(n-1), float64(i)/float64(n-1), speed)
				u[k*n*(n-1)+i*(n-1)+j] = float32(ue * shear)
			}
		}
		for i := 0; i < n-1; i++ {
			for j := 0; j < n; j++ {
				_, vn := eddy(float64(j)/float64(n-1), float64(i)/float64(n-1), speed)
				v[k*(n-1)*n+i*n+j] = float32(vn * shear)
			}
		}
	}
	if err := vU.WriteFloat32s(u); err != nil {
		return err
	}
	return vV.WriteFloat32s(v)
}

func writeFVCOM(path string, n, nLayers int, depth, speed, lon0, lat0 float64) error {
	nele := n * n

	f, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		return err
	}
	defer f.Close()

	timeDim, err := f.AddDim("time", 1)
	if err != nil {
		return err
	}
	layDim, err := f.AddDim("siglay", uint64(nLayers))
	if err != nil {
		return err
	}
	neleDim, err := f.AddDim("nele", uint64(nele))
	if err != nil {
		return err
	}

	vLonc, err := f.AddVar("lonc", netcdf.DOUBLE, []netcdf.Dim{neleDim})
	if err != nil {
		return err
	}
	vLatc, err := f.AddVar("latc", netcdf.DOUBLE, []netcdf.Dim{neleDim})
	if err != nil {
		return err
	}
	vH, err := f.AddVar("h_center", netcdf.DOUBLE, []netcdf.Dim{neleDim})
	if err != nil {
		return err
	}
	vSig, err := f.AddVar("siglay", netcdf.DOUBLE, []netcdf.Dim{layDim})
	if err != nil {
		return err
	}
	vU, err := f.AddVar("u", netcdf.FLOAT, []netcdf.Dim{timeDim, layDim, neleDim})
	if err != nil {
		return err
	}
	vV, err := f.AddVar("v", netcdf.FLOAT, []netcdf.Dim{timeDim, layDim, neleDim})
	if err != nil {
		return err
	}
	if err := f.EndDef(); err != nil {
		return err
	}

	step := 0.005
	lonc := make([]float64, nele)
	latc := make([]float64, nele)
	h := make([]float64, nele)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			e := i*n + j
			lonc[e] = lon0 + step*float64(j)
			latc[e] = lat0 + step*float64(i)
			h[e] = depth
		}
	}
	if err := vLonc.WriteFloat64s(lonc); err != nil {
		return err
	}
	if err := vLatc.WriteFloat64s(latc); err != nil {
		return err
	}
	if err := vH.WriteFloat64s(h); err != nil {
		return err
	}

	// Surface first, matching the published layer ordering.
	sig := make([]float64, nLayers)
	for k := 0; k < nLayers; k++ {
		sig[k] = -(float64(k) + 0.5) / float64(nLayers)
	}
	if err := vSig.WriteFloat64s(sig); err != nil {
		return err
	}

	u := make([]float32, nLayers*nele)
	v := make([]float32, nLayers*nele)
	for k := 0; k < nLayers; k++ {
		shear := 1 + sig[k]
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				e := i*n + j
				ue, vn := eddy(float64(j)/float64(n-1), float64(i)/float64(n-1), speed)
				u[k*nele+e] = float32(ue * shear)
				v[k*nele+e] = float32(vn * shear)
			}
		}
	}
	if err := vU.WriteFloat32s(u); err != nil {
		return err
	}
	return vV.WriteFloat32s(v)
}
