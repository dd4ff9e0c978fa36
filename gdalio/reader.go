package gdalio

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/nci/lulcagg/processor"
	"github.com/nci/lulcagg/utils"
)

// Reader loads rasters through GDAL. Every band is read into float64
// regardless of its storage type.
type Reader struct{}

func NewReader() *Reader {
	InitGdal()
	return &Reader{}
}

func open(path string) (*godal.Dataset, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", utils.ErrInvalidInput, path, err)
	}
	return ds, nil
}

func (rd *Reader) Info(path string) (*processor.RasterInfo, error) {
	ds, err := open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	return info(path, ds)
}

func info(path string, ds *godal.Dataset) (*processor.RasterInfo, error) {
	st := ds.Structure()
	if st.NBands == 0 {
		return nil, fmt.Errorf("%w: %s has no bands", utils.ErrInvalidInput, path)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		gt = [6]float64{0, 1, 0, 0, 0, 1}
	}
	ri := &processor.RasterInfo{
		Height:       st.SizeY,
		Width:        st.SizeX,
		Bands:        st.NBands,
		DataType:     st.DataType.String(),
		GeoTransform: processor.GeoTransform(gt),
		CRS:          ds.Projection(),
	}
	if nd, ok := ds.Bands()[0].NoData(); ok {
		ri.NoData = &nd
	}
	return ri, nil
}

func (rd *Reader) Read(path string) (*processor.Raster, error) {
	ds, err := open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	ri, err := info(path, ds)
	if err != nil {
		return nil, err
	}
	return readBands(path, ds, ri, ri.Height, ri.Width)
}

// ReadShape lets GDAL resample every band to (height, width) while
// reading. The returned transform is the source one; callers derive
// the output transform from the shrink ratio.
func (rd *Reader) ReadShape(path string, height, width int, policy processor.ResamplingPolicy) (*processor.Raster, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", utils.ErrInvalidShape, height, width)
	}
	ds, err := open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	ri, err := info(path, ds)
	if err != nil {
		return nil, err
	}
	opts := []godal.BandIOOption{godal.Window(ri.Width, ri.Height), godal.Resampling(resamplingAlg(policy))}
	return readBands(path, ds, ri, height, width, opts...)
}

func resamplingAlg(policy processor.ResamplingPolicy) godal.ResamplingAlg {
	switch policy {
	case processor.Average:
		return godal.Average
	default:
		return godal.Nearest
	}
}

func readBands(path string, ds *godal.Dataset, ri *processor.RasterInfo, height, width int, opts ...godal.BandIOOption) (*processor.Raster, error) {
	if !utils.IsSupportedType(ri.DataType) {
		return nil, fmt.Errorf("%w: %s is %s", utils.ErrUnsupportedType, path, ri.DataType)
	}
	r := &processor.Raster{
		GeoTransform: ri.GeoTransform,
		CRS:          ri.CRS,
		DataType:     ri.DataType,
		NoData:       ri.NoData,
	}
	for i, band := range ds.Bands() {
		g := processor.NewGrid(height, width)
		if err := band.Read(0, 0, g.Data, width, height, opts...); err != nil {
			return nil, fmt.Errorf("%w: reading band %d of %s: %v", utils.ErrInvalidInput, i+1, path, err)
		}
		r.Bands = append(r.Bands, g)
	}
	return r, nil
}
