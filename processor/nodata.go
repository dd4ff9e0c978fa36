package processor

import "math"

// MaskMissing returns a copy of g in which every cell equal to sentinel
// is marked missing. A NaN sentinel matches NaN cells. Cells already
// missing in g stay missing. Data is left untouched so RestoreMissing
// is an exact inverse.
func MaskMissing(g *Grid, sentinel float64) *Grid {
	out := g.Clone()
	nan := math.IsNaN(sentinel)
	for i, v := range out.Data {
		if v == sentinel || (nan && math.IsNaN(v)) {
			out.SetMissing(i)
		}
	}
	return out
}

// RestoreMissing returns a copy of g with sentinel written into every
// missing cell and no validity mask.
func RestoreMissing(g *Grid, sentinel float64) *Grid {
	out := &Grid{Data: make([]float64, len(g.Data)), Height: g.Height, Width: g.Width}
	copy(out.Data, g.Data)
	for i, ok := range g.Valid {
		if !ok {
			out.Data[i] = sentinel
		}
	}
	return out
}

// Masked applies MaskMissing to every band. A nil sentinel leaves the
// raster as is.
func (r *Raster) Masked(sentinel *float64) *Raster {
	if sentinel == nil {
		return r
	}
	out := *r
	out.Bands = make([]*Grid, len(r.Bands))
	for i, b := range r.Bands {
		out.Bands[i] = MaskMissing(b, *sentinel)
	}
	nd := *sentinel
	out.NoData = &nd
	return &out
}

// Restored applies RestoreMissing to every band with the raster's
// NoData value. Without one, missing cells get NaN for float types and
// an extreme of the range for integer types, which then becomes the
// raster's NoData.
func (r *Raster) Restored() *Raster {
	hasMissing := false
	for _, b := range r.Bands {
		if b.Valid != nil {
			hasMissing = true
			break
		}
	}
	if !hasMissing {
		return r
	}

	out := *r
	if out.NoData == nil {
		nd := defaultNoData(r.DataType)
		out.NoData = &nd
	}
	out.Bands = make([]*Grid, len(r.Bands))
	for i, b := range r.Bands {
		out.Bands[i] = RestoreMissing(b, *out.NoData)
	}
	return &out
}

func defaultNoData(dataType string) float64 {
	switch dataType {
	case "Byte":
		return math.MaxUint8
	case "UInt16":
		return math.MaxUint16
	case "Int16":
		return math.MinInt16
	case "UInt32":
		return math.MaxUint32
	case "Int32":
		return math.MinInt32
	default:
		return math.NaN()
	}
}
