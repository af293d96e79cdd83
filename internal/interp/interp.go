// Package interp applies grid-index weights to native current fields,
// producing the speed and direction arrays that feed encoding. No I/O.
package interp

import (
	"fmt"

	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/grid"
	"github.com/couchcryptid/ofs-s111/internal/model"
)

// FillValue marks cells and points with no current value.
const FillValue float32 = -9999.0

// Grids holds one hour of output-ready surface currents: speed in knots and
// direction in degrees clockwise from true north, row-major for regular
// grids, point-ordered for native output.
type Grids struct {
	Speed     []float32
	Direction []float32
}

// Fill returns grids of the given size holding only fill values, used for
// forecast hours that could not be acquired.
func Fill(n int) *Grids {
	g := &Grids{
		Speed:     make([]float32, n),
		Direction: make([]float32, n),
	}
	for i := 0; i < n; i++ {
		g.Speed[i] = FillValue
		g.Direction[i] = FillValue
	}
	return g
}

// Regrid interpolates a native field onto the regular grid of the index.
// The field must cover every native point the index references; a smaller
// field means the index was built against a different grid revision.
func Regrid(ix *grid.Index, f *model.Field) (*Grids, error) {
	n := f.Points()
	out := Fill(ix.Cells())

	for cell := 0; cell < ix.Cells(); cell++ {
		if !ix.Water(cell) {
			continue
		}
		var u, v float64
		for s := 0; s < 4; s++ {
			idx := ix.SrcIdx[cell*4+s]
			if idx < 0 {
				continue
			}
			if int(idx) >= n {
				return nil, fmt.Errorf(
					"grid index references native point %d but the field has %d points; regenerate the index", idx, n)
			}
			w := ix.SrcW[cell*4+s]
			u += w * f.U[idx]
			v += w * f.V[idx]
		}
		out.Speed[cell] = float32(domain.SpeedKnots(u, v))
		out.Direction[cell] = float32(domain.DirectionDeg(u, v))
	}
	return out, nil
}

// Native converts a field to speed and direction at the native points
// themselves, for ungeorectified output. Land points get fill values.
func Native(f *model.Field) *Grids {
	out := Fill(f.Points())
	for p := 0; p < f.Points(); p++ {
		if !f.Mask[p] {
			continue
		}
		out.Speed[p] = float32(domain.SpeedKnots(f.U[p], f.V[p]))
		out.Direction[p] = float32(domain.DirectionDeg(f.U[p], f.V[p]))
	}
	return out
}
