package processor

import (
	"fmt"

	"github.com/nci/lulcagg/utils"
)

const (
	maskNoData = 255
	maskType   = "Byte"
)

// ExtractClasses isolates each class of band 1 of r as a Byte raster
// holding 1 for member cells and 0 elsewhere. Missing input cells stay
// missing and are persisted as 255. Transform and CRS are copied.
func ExtractClasses(r *Raster, classes []*utils.ClassSpec) ([]*Raster, error) {
	if len(r.Bands) == 0 {
		return nil, fmt.Errorf("%w: raster has no bands", utils.ErrInvalidShape)
	}
	band := r.Bands[0]

	out := make([]*Raster, len(classes))
	for ic, cls := range classes {
		m := cls.Matcher()
		mask := NewGrid(band.Height, band.Width)
		for i, v := range band.Data {
			if !band.IsValid(i) {
				mask.SetMissing(i)
				continue
			}
			ok, err := m.Match(v)
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", cls.Name, err)
			}
			if ok {
				mask.Data[i] = 1
			}
		}

		cr := &Raster{
			Bands:        []*Grid{mask},
			GeoTransform: r.GeoTransform,
			CRS:          r.CRS,
			DataType:     maskType,
		}
		if r.NoData != nil || mask.Valid != nil {
			nd := float64(maskNoData)
			cr.NoData = &nd
		}
		out[ic] = cr
	}
	return out, nil
}
