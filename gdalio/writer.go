package gdalio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/nci/lulcagg/processor"
	"github.com/nci/lulcagg/utils"
)

var GDALTypes = map[string]godal.DataType{
	"Byte":    godal.Byte,
	"UInt16":  godal.UInt16,
	"Int16":   godal.Int16,
	"UInt32":  godal.UInt32,
	"Int32":   godal.Int32,
	"Float32": godal.Float32,
	"Float64": godal.Float64,
}

var typeRanges = map[string][2]float64{
	"Byte":   {0, math.MaxUint8},
	"UInt16": {0, math.MaxUint16},
	"Int16":  {math.MinInt16, math.MaxInt16},
	"UInt32": {0, math.MaxUint32},
	"Int32":  {math.MinInt32, math.MaxInt32},
}

// Writer writes compressed GeoTIFFs. Each raster is first written to a
// hidden staging file next to its destination and renamed into place
// once GDAL has flushed it.
type Writer struct {
	CreationOptions []string
}

func NewWriter() *Writer {
	InitGdal()
	return &Writer{CreationOptions: []string{"COMPRESS=DEFLATE", "TILED=YES", "BIGTIFF=IF_SAFER"}}
}

func (w *Writer) Write(path string, r *processor.Raster) (err error) {
	if err := r.Validate(); err != nil {
		return err
	}
	dtype, ok := GDALTypes[r.DataType]
	if !ok {
		return fmt.Errorf("%w: %s", utils.ErrUnsupportedType, r.DataType)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	staging := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp.tif", filepath.Base(path), uuid.NewString()))
	defer func() {
		if err != nil {
			os.Remove(staging)
		}
	}()

	ds, err := godal.Create(godal.GTiff, staging, len(r.Bands), dtype, r.Width(), r.Height(), godal.CreationOption(w.CreationOptions...))
	if err != nil {
		return fmt.Errorf("error creating raster %s: %v", path, err)
	}
	if err = writeDataset(ds, r); err != nil {
		return multierr.Append(err, ds.Close())
	}
	if err = ds.Close(); err != nil {
		return fmt.Errorf("error flushing raster %s: %v", path, err)
	}
	return os.Rename(staging, path)
}

func writeDataset(ds *godal.Dataset, r *processor.Raster) error {
	if err := ds.SetGeoTransform([6]float64(r.GeoTransform)); err != nil {
		return err
	}
	if r.CRS != "" {
		if err := ds.SetProjection(r.CRS); err != nil {
			return err
		}
	}

	for i, band := range ds.Bands() {
		if r.NoData != nil {
			if err := band.SetNoData(*r.NoData); err != nil {
				return err
			}
		}
		buf := encodeBand(r.Bands[i].Data, r.DataType)
		if err := band.Write(0, 0, buf, r.Width(), r.Height()); err != nil {
			return fmt.Errorf("error writing raster band: %d: %v", i+1, err)
		}
	}
	return nil
}

// encodeBand rounds and clamps values bound for an integer type.
// Floating point data is passed through untouched.
func encodeBand(data []float64, dataType string) []float64 {
	rng, ok := typeRanges[dataType]
	if !ok {
		return data
	}
	out := make([]float64, len(data))
	for i, v := range data {
		if math.IsNaN(v) {
			continue
		}
		out[i] = math.Min(math.Max(math.Round(v), rng[0]), rng[1])
	}
	return out
}
