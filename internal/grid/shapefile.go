package grid

import (
	"fmt"
	"log/slog"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
)

// namedPolygon is one shapefile record reprojected to WGS84 lon/lat.
type namedPolygon struct {
	geom.Polygonal
	name  string
	order int
}

// loadPolygons reads every polygonal record of a shapefile. When nameAttr is
// non-empty its value names each record; otherwise records are named by their
// zero-based position. Geometries are reprojected to lon/lat when the
// shapefile declares a spatial reference.
func loadPolygons(path, nameAttr string, logger *slog.Logger) ([]*namedPolygon, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer d.Close()

	transform := lonLatTransform(d, path, logger)

	var attrs []string
	if nameAttr != "" {
		attrs = []string{nameAttr}
	}

	var out []*namedPolygon
	for i := 0; ; i++ {
		g, fields, more := d.DecodeRowFields(attrs...)
		if !more {
			break
		}
		if transform != nil {
			if g, err = g.Transform(transform); err != nil {
				return nil, fmt.Errorf("reproject record %d of %s: %w", i, path, err)
			}
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("record %d of %s is %T, want a polygon", i, path, g)
		}

		name := fmt.Sprintf("%d", i)
		if nameAttr != "" {
			name = fields[nameAttr]
		}
		out = append(out, &namedPolygon{Polygonal: poly, name: name, order: i})
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("shapefile %s has no polygon records", path)
	}
	return out, nil
}

// lonLatTransform builds a transform from the shapefile's spatial reference
// to WGS84 lon/lat. Shapefiles without a readable .prj are taken to already
// be in lon/lat.
func lonLatTransform(d *shp.Decoder, path string, logger *slog.Logger) proj.Transformer {
	sr, err := d.SR()
	if err != nil {
		logger.Debug("no spatial reference, assuming lon/lat", "path", path, "error", err)
		return nil
	}
	lonLat, err := proj.Parse("+proj=longlat +datum=WGS84 +no_defs")
	if err != nil {
		return nil
	}
	t, err := sr.NewTransform(lonLat)
	if err != nil {
		logger.Warn("cannot reproject shapefile, assuming lon/lat", "path", path, "error", err)
		return nil
	}
	return t
}

// validateSubgridNames rejects subgrid shapefiles with missing or duplicate
// names, which would make output artifact names ambiguous.
func validateSubgridNames(polys []*namedPolygon) error {
	seen := make(map[string]int, len(polys))
	for _, p := range polys {
		if p.name == "" {
			return fmt.Errorf("subgrid record %d has an empty name", p.order)
		}
		if prev, dup := seen[p.name]; dup {
			return fmt.Errorf("subgrid name %q used by records %d and %d", p.name, prev, p.order)
		}
		seen[p.name] = p.order
	}
	return nil
}
