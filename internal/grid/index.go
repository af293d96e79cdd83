// Package grid builds and persists the regular output grid used for
// georectified encoding: a lat/lon grid covering the native model envelope,
// with per-cell land masking, subgrid assignment and interpolation weights
// onto the native points.
package grid

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/model"
)

// metersPerDegree is the meridional length of one degree of latitude.
// Longitude degrees are scaled by cos(latitude) at the grid's mid latitude.
const metersPerDegree = 111195.0

// sourcesPerCell is the number of native points blended into one output cell.
const sourcesPerCell = 4

// CellExcluded marks a cell that is land or out of the native domain's reach.
const CellExcluded int32 = -1

// Subgrid is one output partition, carrying the cell-index bounding box of
// the cells assigned to it. Bounds are -1 when no cell was assigned.
type Subgrid struct {
	ID     int32
	Name   string
	MinRow int32
	MaxRow int32
	MinCol int32
	MaxCol int32
}

// Index is the persistent grid definition: geometry of the regular output
// grid, per-cell mask and subgrid assignment, and per-cell interpolation
// sources into the flattened native point array. Cells are stored row-major;
// SrcIdx and SrcW hold sourcesPerCell entries per cell, with -1 indices
// padding cells that have fewer usable sources.
type Index struct {
	ModelID  string
	Scheme   domain.GridScheme
	CellSize float64 // metres

	Lon0 float64 // centre of cell (0, 0)
	Lat0 float64
	DLon float64
	DLat float64

	NRows int
	NCols int

	Mask   []int32 // CellExcluded, 0 = water outside all subgrids, >0 = subgrid id
	SrcIdx []int32
	SrcW   []float64

	Subgrids []Subgrid
}

// Cells returns the total cell count.
func (ix *Index) Cells() int { return ix.NRows * ix.NCols }

// Water reports whether cell is an includable water cell.
func (ix *Index) Water(cell int) bool { return ix.Mask[cell] != CellExcluded }

// CellLon returns the longitude of a cell-centre column.
func (ix *Index) CellLon(col int) float64 { return ix.Lon0 + float64(col)*ix.DLon }

// CellLat returns the latitude of a cell-centre row.
func (ix *Index) CellLat(row int) float64 { return ix.Lat0 + float64(row)*ix.DLat }

// Validate checks internal consistency after loading.
func (ix *Index) Validate() error {
	if ix.NRows < 2 || ix.NCols < 2 {
		return fmt.Errorf("grid index %dx%d is degenerate", ix.NRows, ix.NCols)
	}
	n := ix.Cells()
	if len(ix.Mask) != n || len(ix.SrcIdx) != n*sourcesPerCell || len(ix.SrcW) != n*sourcesPerCell {
		return fmt.Errorf("grid index arrays do not match %d cells", n)
	}
	for _, sg := range ix.Subgrids {
		if sg.ID <= 0 {
			return fmt.Errorf("subgrid %q has invalid id %d", sg.Name, sg.ID)
		}
	}
	return nil
}

// SubgridByID returns the subgrid with the given mask id.
func (ix *Index) SubgridByID(id int32) (Subgrid, bool) {
	for _, sg := range ix.Subgrids {
		if sg.ID == id {
			return sg, true
		}
	}
	return Subgrid{}, false
}

// BuildParams are the inputs to grid index generation. ShorelinePath and
// SubgridPath are optional shapefiles; SubgridNameAttr selects the attribute
// naming each subgrid polygon and may be empty, in which case record numbers
// are used.
type BuildParams struct {
	Model           domain.Model
	CellSize        float64
	ShorelinePath   string
	SubgridPath     string
	SubgridNameAttr string
}

// nativePoint is a water point of the native grid stored in the spatial index.
type nativePoint struct {
	geom.Point
	idx int32
}

// Build derives the output grid from the native geometry of a sample fields
// file. The same geometry and parameters always produce the same grid
// definition.
func Build(p BuildParams, g *model.Geometry, logger *slog.Logger) (*Index, error) {
	if p.CellSize <= 0 {
		return nil, fmt.Errorf("cell size must be positive, got %g", p.CellSize)
	}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	water := 0
	for i := range g.Lat {
		if !g.Mask[i] {
			continue
		}
		water++
		minLon = math.Min(minLon, g.Lon[i])
		maxLon = math.Max(maxLon, g.Lon[i])
		minLat = math.Min(minLat, g.Lat[i])
		maxLat = math.Max(maxLat, g.Lat[i])
	}
	if water == 0 {
		return nil, fmt.Errorf("native geometry has no water points")
	}

	midLat := (minLat + maxLat) / 2
	dLat := p.CellSize / metersPerDegree
	dLon := p.CellSize / (metersPerDegree * math.Cos(midLat*math.Pi/180))

	nRows := int(math.Ceil((maxLat-minLat)/dLat)) + 1
	nCols := int(math.Ceil((maxLon-minLon)/dLon)) + 1
	if nRows < 2 || nCols < 2 {
		return nil, fmt.Errorf("cell size %g m yields a degenerate %dx%d grid", p.CellSize, nRows, nCols)
	}

	ix := &Index{
		ModelID:  p.Model.ID,
		Scheme:   p.Model.Scheme,
		CellSize: p.CellSize,
		Lon0:     minLon,
		Lat0:     minLat,
		DLon:     dLon,
		DLat:     dLat,
		NRows:    nRows,
		NCols:    nCols,
		Mask:     make([]int32, nRows*nCols),
		SrcIdx:   make([]int32, nRows*nCols*sourcesPerCell),
		SrcW:     make([]float64, nRows*nCols*sourcesPerCell),
	}

	points := rtree.NewTree(25, 50)
	for i := range g.Lat {
		if g.Mask[i] {
			points.Insert(&nativePoint{Point: geom.Point{X: g.Lon[i], Y: g.Lat[i]}, idx: int32(i)})
		}
	}

	var land *rtree.Rtree
	if p.ShorelinePath != "" {
		polys, err := loadPolygons(p.ShorelinePath, "", logger)
		if err != nil {
			return nil, fmt.Errorf("load shoreline shapefile: %w", err)
		}
		land = rtree.NewTree(25, 50)
		for _, poly := range polys {
			land.Insert(poly)
		}
	}

	var subgrids []*namedPolygon
	if p.SubgridPath != "" {
		polys, err := loadPolygons(p.SubgridPath, p.SubgridNameAttr, logger)
		if err != nil {
			return nil, fmt.Errorf("load subgrid shapefile: %w", err)
		}
		if err := validateSubgridNames(polys); err != nil {
			return nil, err
		}
		subgrids = polys
		ix.Subgrids = make([]Subgrid, len(polys))
		for i, poly := range polys {
			ix.Subgrids[i] = Subgrid{
				ID: int32(i + 1), Name: poly.name,
				MinRow: -1, MaxRow: -1, MinCol: -1, MaxCol: -1,
			}
		}
	}

	// Cells out of reach of any native water point are excluded along with
	// cells inside the shoreline.
	reach := 2 * math.Hypot(dLon, dLat)
	lonScale := math.Cos(midLat * math.Pi / 180)

	excluded, assigned := 0, 0
	for row := 0; row < nRows; row++ {
		for col := 0; col < nCols; col++ {
			cell := row*nCols + col
			centre := geom.Point{X: ix.CellLon(col), Y: ix.CellLat(row)}

			srcs, ok := cellSources(points, centre, lonScale, reach)
			if !ok || insideAny(land, centre) {
				ix.Mask[cell] = CellExcluded
				for s := 0; s < sourcesPerCell; s++ {
					ix.SrcIdx[cell*sourcesPerCell+s] = -1
				}
				excluded++
				continue
			}
			for s, src := range srcs {
				ix.SrcIdx[cell*sourcesPerCell+s] = src.idx
				ix.SrcW[cell*sourcesPerCell+s] = src.w
			}

			if id := assignSubgrid(subgrids, centre); id > 0 {
				ix.Mask[cell] = id
				ix.Subgrids[id-1].extend(int32(row), int32(col))
				assigned++
			}
		}
	}

	logger.Info("grid index built",
		"model", p.Model.ID, "rows", nRows, "cols", nCols,
		"excluded", excluded, "subgrids", len(ix.Subgrids), "assigned", assigned)
	return ix, nil
}

type cellSource struct {
	idx int32
	w   float64
}

// cellSources finds up to sourcesPerCell nearest native points and computes
// normalised inverse-distance weights. A cell whose nearest point is beyond
// reach has no sources.
func cellSources(points *rtree.Rtree, centre geom.Point, lonScale, reach float64) ([sourcesPerCell]cellSource, bool) {
	var out [sourcesPerCell]cellSource
	for s := range out {
		out[s].idx = -1
	}

	neighbors := points.NearestNeighbors(sourcesPerCell, centre)
	if len(neighbors) == 0 {
		return out, false
	}

	const eps = 1e-9
	total := 0.0
	n := 0
	for _, nb := range neighbors {
		np, ok := nb.(*nativePoint)
		if !ok {
			continue
		}
		d := math.Hypot((np.X-centre.X)*lonScale, np.Y-centre.Y)
		if n == 0 && d > reach {
			return out, false
		}
		if d < eps {
			// Coincident point carries the full weight.
			out[0] = cellSource{idx: np.idx, w: 1}
			for s := 1; s < sourcesPerCell; s++ {
				out[s] = cellSource{idx: -1}
			}
			return out, true
		}
		out[n] = cellSource{idx: np.idx, w: 1 / d}
		total += out[n].w
		n++
	}
	if n == 0 {
		return out, false
	}
	for s := 0; s < n; s++ {
		out[s].w /= total
	}
	return out, true
}

// insideAny reports whether the point lies inside any polygon of the index.
func insideAny(tree *rtree.Rtree, p geom.Point) bool {
	if tree == nil {
		return false
	}
	for _, item := range tree.SearchIntersect(p.Bounds()) {
		poly, ok := item.(*namedPolygon)
		if !ok {
			continue
		}
		if p.Within(poly.Polygonal) != geom.Outside {
			return true
		}
	}
	return false
}

// assignSubgrid returns the id of the first subgrid polygon, in record order,
// containing the point, or 0 when the point lies outside all polygons.
func assignSubgrid(polys []*namedPolygon, p geom.Point) int32 {
	for i, poly := range polys {
		if p.Within(poly.Polygonal) != geom.Outside {
			return int32(i + 1)
		}
	}
	return 0
}

func (sg *Subgrid) extend(row, col int32) {
	if sg.MinRow == -1 {
		sg.MinRow, sg.MaxRow, sg.MinCol, sg.MaxCol = row, row, col, col
		return
	}
	if row < sg.MinRow {
		sg.MinRow = row
	}
	if row > sg.MaxRow {
		sg.MaxRow = row
	}
	if col < sg.MinCol {
		sg.MinCol = col
	}
	if col > sg.MaxCol {
		sg.MaxCol = col
	}
}
