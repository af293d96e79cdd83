package s111

import (
	"fmt"
	"time"

	"gonum.org/v1/hdf5"

	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/grid"
	"github.com/couchcryptid/ofs-s111/internal/interp"
	"github.com/couchcryptid/ofs-s111/internal/model"
)

// Hour is one time record heading into an artifact. A nil Data marks a
// forecast hour that could not be acquired; it is encoded as fill values so
// record positions always match lead hours.
type Hour struct {
	Hour int
	Data *interp.Grids
}

// Metadata describes the forecast being encoded.
type Metadata struct {
	Model       domain.Model
	Cycle       domain.Cycle
	TargetDepth float64
}

// regularGrid is the geometry of a format-2 artifact: the full output grid
// or one subgrid window of it.
type regularGrid struct {
	Lon0, Lat0 float64
	DLon, DLat float64
	NRows      int
	NCols      int
}

func (rg regularGrid) cells() int { return rg.NRows * rg.NCols }

// EncodeRegular writes a data-coding-format-2 artifact: one 2D speed and
// direction dataset per forecast hour on the index's regular grid.
func EncodeRegular(path string, ix *grid.Index, md Metadata, hours []Hour) error {
	rg := regularGrid{
		Lon0: ix.Lon0, Lat0: ix.Lat0,
		DLon: ix.DLon, DLat: ix.DLat,
		NRows: ix.NRows, NCols: ix.NCols,
	}
	return encodeRegularGrid(path, rg, md, hours)
}

func encodeRegularGrid(path string, rg regularGrid, md Metadata, hours []Hour) error {
	if len(hours) == 0 {
		return fmt.Errorf("no time records to encode")
	}
	for _, h := range hours {
		if h.Data != nil && len(h.Data.Speed) != rg.cells() {
			return fmt.Errorf("hour %d has %d cells, grid has %d", h.Hour, len(h.Data.Speed), rg.cells())
		}
	}

	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	w := metaWriter{parent: f}
	w.str("productSpecification", productSpecification)
	w.str("geographicIdentifier", md.Model.Region)
	w.str("methodCurrentsProduct", md.Model.Product)
	w.str("dateTimeOfIssue", md.Cycle.Time().Format(timeFormat))
	w.i32("dataCodingFormat", FormatRegular)
	w.f64("surfaceCurrentDepth", md.TargetDepth)
	w.f64("gridOriginLongitude", rg.Lon0)
	w.f64("gridOriginLatitude", rg.Lat0)
	w.f64("gridSpacingLongitudinal", rg.DLon)
	w.f64("gridSpacingLatitudinal", rg.DLat)
	w.i32("numPointsLongitudinal", int32(rg.NCols))
	w.i32("numPointsLatitudinal", int32(rg.NRows))
	w.i32("numberOfTimes", int32(len(hours)))
	w.i32("timeRecordInterval", int32(md.Model.HourStep)*3600)
	w.f64("fillValue", float64(interp.FillValue))
	if w.err != nil {
		return fmt.Errorf("write root metadata: %w", w.err)
	}

	dims := []uint{uint(rg.NRows), uint(rg.NCols)}
	for i, h := range hours {
		data := h.Data
		if data == nil {
			data = interp.Fill(rg.cells())
		}
		if err := writeHourGroup(f, i, md, h.Hour, dims, data); err != nil {
			return err
		}
	}
	return nil
}

// EncodeNative writes a data-coding-format-3 artifact: speed and direction
// at the native model points, plus their coordinates as root datasets.
func EncodeNative(path string, geo *model.Geometry, md Metadata, hours []Hour) error {
	if len(hours) == 0 {
		return fmt.Errorf("no time records to encode")
	}
	n := geo.Points()
	for _, h := range hours {
		if h.Data != nil && len(h.Data.Speed) != n {
			return fmt.Errorf("hour %d has %d points, geometry has %d", h.Hour, len(h.Data.Speed), n)
		}
	}

	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	w := metaWriter{parent: f}
	w.str("productSpecification", productSpecification)
	w.str("geographicIdentifier", md.Model.Region)
	w.str("methodCurrentsProduct", md.Model.Product)
	w.str("dateTimeOfIssue", md.Cycle.Time().Format(timeFormat))
	w.i32("dataCodingFormat", FormatUngeorectified)
	w.f64("surfaceCurrentDepth", md.TargetDepth)
	w.i32("numberOfNodes", int32(n))
	w.i32("numberOfTimes", int32(len(hours)))
	w.i32("timeRecordInterval", int32(md.Model.HourStep)*3600)
	w.f64("fillValue", float64(interp.FillValue))
	if w.err != nil {
		return fmt.Errorf("write root metadata: %w", w.err)
	}

	dims := []uint{uint(n)}
	if err := writeFloat64Dataset(f, "longitude", dims, geo.Lon); err != nil {
		return err
	}
	if err := writeFloat64Dataset(f, "latitude", dims, geo.Lat); err != nil {
		return err
	}

	for i, h := range hours {
		data := h.Data
		if data == nil {
			data = interp.Fill(n)
		}
		if err := writeHourGroup(f, i, md, h.Hour, dims, data); err != nil {
			return err
		}
	}
	return nil
}

// writeHourGroup writes Group_NNN with the hour's valid time and datasets.
func writeHourGroup(f *hdf5.File, i int, md Metadata, hour int, dims []uint, data *interp.Grids) error {
	g, err := f.CreateGroup(groupName(i))
	if err != nil {
		return fmt.Errorf("create %s: %w", groupName(i), err)
	}
	defer g.Close()

	valid := md.Cycle.Time().Add(time.Duration(hour) * time.Hour)
	w := metaWriter{parent: g}
	w.str("DateTime", valid.Format(timeFormat))
	w.i32("forecastHour", int32(hour))
	if w.err != nil {
		return fmt.Errorf("write %s metadata: %w", groupName(i), w.err)
	}

	if err := writeFloat32Dataset(g, "surfaceCurrentSpeed", dims, data.Speed); err != nil {
		return err
	}
	return writeFloat32Dataset(g, "surfaceCurrentDirection", dims, data.Direction)
}

// datasetParent is satisfied by *hdf5.File and *hdf5.Group.
type datasetParent interface {
	CreateDataset(name string, dtype *hdf5.Datatype, dspace *hdf5.Dataspace) (*hdf5.Dataset, error)
}

func writeFloat32Dataset(parent datasetParent, name string, dims []uint, data []float32) error {
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	dset, err := parent.CreateDataset(name, hdf5.T_NATIVE_FLOAT, space)
	if err != nil {
		return fmt.Errorf("create dataset %s: %w", name, err)
	}
	defer dset.Close()

	if err := dset.Write(&data); err != nil {
		return fmt.Errorf("write dataset %s: %w", name, err)
	}
	return nil
}

func writeFloat64Dataset(parent datasetParent, name string, dims []uint, data []float64) error {
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	dset, err := parent.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return fmt.Errorf("create dataset %s: %w", name, err)
	}
	defer dset.Close()

	if err := dset.Write(&data); err != nil {
		return fmt.Errorf("write dataset %s: %w", name, err)
	}
	return nil
}

// metaWriter writes scalar metadata datasets, accumulating the first error
// across a run of writes.
type metaWriter struct {
	parent datasetParent
	err    error
}

func (w *metaWriter) scalar(name string, dtype *hdf5.Datatype, val interface{}) {
	if w.err != nil {
		return
	}
	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		w.err = err
		return
	}
	defer space.Close()

	dset, err := w.parent.CreateDataset(name, dtype, space)
	if err != nil {
		w.err = fmt.Errorf("metadata %s: %w", name, err)
		return
	}
	defer dset.Close()
	if err := dset.Write(val); err != nil {
		w.err = fmt.Errorf("metadata %s: %w", name, err)
	}
}

func (w *metaWriter) str(name, val string) { w.scalar(name, hdf5.T_GO_STRING, &val) }

func (w *metaWriter) i32(name string, val int32) { w.scalar(name, hdf5.T_NATIVE_INT32, &val) }

func (w *metaWriter) f64(name string, val float64) { w.scalar(name, hdf5.T_NATIVE_DOUBLE, &val) }
