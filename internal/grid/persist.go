package grid

import (
	"bytes"
	"fmt"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/couchcryptid/ofs-s111/internal/domain"
)

// nameStrLen is the fixed width of subgrid names in the index file.
const nameStrLen = 64

// Save writes the index as a NetCDF file.
func (ix *Index) Save(path string) error {
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	yDim, err := f.AddDim("y", uint64(ix.NRows))
	if err != nil {
		return err
	}
	xDim, err := f.AddDim("x", uint64(ix.NCols))
	if err != nil {
		return err
	}
	cornerDim, err := f.AddDim("corner", sourcesPerCell)
	if err != nil {
		return err
	}

	vMask, err := f.AddVar("mask", netcdf.INT, []netcdf.Dim{yDim, xDim})
	if err != nil {
		return err
	}
	vSrcIdx, err := f.AddVar("source_index", netcdf.INT, []netcdf.Dim{yDim, xDim, cornerDim})
	if err != nil {
		return err
	}
	vSrcW, err := f.AddVar("source_weight", netcdf.DOUBLE, []netcdf.Dim{yDim, xDim, cornerDim})
	if err != nil {
		return err
	}

	var vNames, vBounds netcdf.Var
	if len(ix.Subgrids) > 0 {
		sgDim, err := f.AddDim("subgrid", uint64(len(ix.Subgrids)))
		if err != nil {
			return err
		}
		strDim, err := f.AddDim("name_strlen", nameStrLen)
		if err != nil {
			return err
		}
		boundDim, err := f.AddDim("bound", 4)
		if err != nil {
			return err
		}
		if vNames, err = f.AddVar("subgrid_name", netcdf.CHAR, []netcdf.Dim{sgDim, strDim}); err != nil {
			return err
		}
		if vBounds, err = f.AddVar("subgrid_bounds", netcdf.INT, []netcdf.Dim{sgDim, boundDim}); err != nil {
			return err
		}
	}

	if err := f.Attr("model").WriteBytes([]byte(ix.ModelID)); err != nil {
		return err
	}
	if err := f.Attr("grid_scheme").WriteBytes([]byte(ix.Scheme)); err != nil {
		return err
	}
	if err := f.Attr("cell_size_m").WriteFloat64s([]float64{ix.CellSize}); err != nil {
		return err
	}
	if err := f.Attr("origin").WriteFloat64s([]float64{ix.Lon0, ix.Lat0}); err != nil {
		return err
	}
	if err := f.Attr("spacing").WriteFloat64s([]float64{ix.DLon, ix.DLat}); err != nil {
		return err
	}

	if err := f.EndDef(); err != nil {
		return fmt.Errorf("finish index definition: %w", err)
	}

	if err := vMask.WriteInt32s(ix.Mask); err != nil {
		return err
	}
	if err := vSrcIdx.WriteInt32s(ix.SrcIdx); err != nil {
		return err
	}
	if err := vSrcW.WriteFloat64s(ix.SrcW); err != nil {
		return err
	}

	if len(ix.Subgrids) > 0 {
		names := make([]byte, len(ix.Subgrids)*nameStrLen)
		bounds := make([]int32, len(ix.Subgrids)*4)
		for i, sg := range ix.Subgrids {
			if len(sg.Name) > nameStrLen {
				return fmt.Errorf("subgrid name %q exceeds %d bytes", sg.Name, nameStrLen)
			}
			copy(names[i*nameStrLen:], sg.Name)
			bounds[i*4+0] = sg.MinRow
			bounds[i*4+1] = sg.MaxRow
			bounds[i*4+2] = sg.MinCol
			bounds[i*4+3] = sg.MaxCol
		}
		if err := vNames.WriteBytes(names); err != nil {
			return err
		}
		if err := vBounds.WriteInt32s(bounds); err != nil {
			return err
		}
	}
	return nil
}

// Load reads an index file written by Save and validates it.
func Load(path string) (*Index, error) {
	f, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	ix := &Index{}
	if ix.ModelID, err = readStringAttr(f, "model"); err != nil {
		return nil, err
	}
	scheme, err := readStringAttr(f, "grid_scheme")
	if err != nil {
		return nil, err
	}
	ix.Scheme = domain.GridScheme(scheme)

	cellSize, err := readFloatAttr(f, "cell_size_m", 1)
	if err != nil {
		return nil, err
	}
	ix.CellSize = cellSize[0]
	origin, err := readFloatAttr(f, "origin", 2)
	if err != nil {
		return nil, err
	}
	ix.Lon0, ix.Lat0 = origin[0], origin[1]
	spacing, err := readFloatAttr(f, "spacing", 2)
	if err != nil {
		return nil, err
	}
	ix.DLon, ix.DLat = spacing[0], spacing[1]

	if ix.Mask, ix.NRows, ix.NCols, err = readMask(f); err != nil {
		return nil, err
	}
	n := ix.NRows * ix.NCols

	vSrcIdx, err := f.Var("source_index")
	if err != nil {
		return nil, fmt.Errorf("index file has no source_index: %w", err)
	}
	ix.SrcIdx = make([]int32, n*sourcesPerCell)
	if err := vSrcIdx.ReadInt32s(ix.SrcIdx); err != nil {
		return nil, fmt.Errorf("read source_index: %w", err)
	}

	vSrcW, err := f.Var("source_weight")
	if err != nil {
		return nil, fmt.Errorf("index file has no source_weight: %w", err)
	}
	ix.SrcW = make([]float64, n*sourcesPerCell)
	if err := vSrcW.ReadFloat64s(ix.SrcW); err != nil {
		return nil, fmt.Errorf("read source_weight: %w", err)
	}

	if ix.Subgrids, err = readSubgrids(f); err != nil {
		return nil, err
	}
	if err := ix.Validate(); err != nil {
		return nil, fmt.Errorf("index file %s: %w", path, err)
	}
	return ix, nil
}

func readMask(f netcdf.Dataset) ([]int32, int, int, error) {
	v, err := f.Var("mask")
	if err != nil {
		return nil, 0, 0, fmt.Errorf("index file has no mask: %w", err)
	}
	dims, err := v.Dims()
	if err != nil || len(dims) != 2 {
		return nil, 0, 0, fmt.Errorf("mask must be two-dimensional")
	}
	ny, err := dims[0].Len()
	if err != nil {
		return nil, 0, 0, err
	}
	nx, err := dims[1].Len()
	if err != nil {
		return nil, 0, 0, err
	}
	mask := make([]int32, ny*nx)
	if err := v.ReadInt32s(mask); err != nil {
		return nil, 0, 0, fmt.Errorf("read mask: %w", err)
	}
	return mask, int(ny), int(nx), nil
}

func readSubgrids(f netcdf.Dataset) ([]Subgrid, error) {
	vNames, err := f.Var("subgrid_name")
	if err != nil {
		return nil, nil // no subgrids in this index
	}
	dims, err := vNames.Dims()
	if err != nil || len(dims) != 2 {
		return nil, fmt.Errorf("subgrid_name must be two-dimensional")
	}
	count, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	width, err := dims[1].Len()
	if err != nil {
		return nil, err
	}

	names := make([]byte, count*width)
	if err := vNames.ReadBytes(names); err != nil {
		return nil, fmt.Errorf("read subgrid_name: %w", err)
	}
	vBounds, err := f.Var("subgrid_bounds")
	if err != nil {
		return nil, fmt.Errorf("index file has no subgrid_bounds: %w", err)
	}
	bounds := make([]int32, count*4)
	if err := vBounds.ReadInt32s(bounds); err != nil {
		return nil, fmt.Errorf("read subgrid_bounds: %w", err)
	}

	out := make([]Subgrid, count)
	for i := range out {
		raw := names[uint64(i)*width : uint64(i+1)*width]
		out[i] = Subgrid{
			ID:     int32(i + 1),
			Name:   string(bytes.TrimRight(raw, "\x00")),
			MinRow: bounds[i*4+0],
			MaxRow: bounds[i*4+1],
			MinCol: bounds[i*4+2],
			MaxCol: bounds[i*4+3],
		}
	}
	return out, nil
}

func readStringAttr(f netcdf.Dataset, name string) (string, error) {
	a := f.Attr(name)
	n, err := a.Len()
	if err != nil {
		return "", fmt.Errorf("index file missing attribute %q: %w", name, err)
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", fmt.Errorf("read attribute %q: %w", name, err)
	}
	return string(bytes.TrimRight(buf, "\x00")), nil
}

func readFloatAttr(f netcdf.Dataset, name string, want int) ([]float64, error) {
	a := f.Attr(name)
	n, err := a.Len()
	if err != nil {
		return nil, fmt.Errorf("index file missing attribute %q: %w", name, err)
	}
	if int(n) != want {
		return nil, fmt.Errorf("attribute %q has %d values, want %d", name, n, want)
	}
	buf := make([]float64, n)
	if err := a.ReadFloat64s(buf); err != nil {
		return nil, fmt.Errorf("read attribute %q: %w", name, err)
	}
	return buf, nil
}
