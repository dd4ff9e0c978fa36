package processor

import "context"

// RasterReader loads rasters fully into memory.
type RasterReader interface {
	Info(path string) (*RasterInfo, error)
	Read(path string) (*Raster, error)
	// ReadShape reads every band resampled to (height, width) by the
	// reader itself. It is equivalent to Read followed by Resample.
	ReadShape(path string, height, width int, policy ResamplingPolicy) (*Raster, error)
}

// RasterWriter persists a raster. A write is all or nothing: on error
// no file is left at path.
type RasterWriter interface {
	Write(path string, r *Raster) error
}

// OutputRecord describes a persisted output for the catalogue.
type OutputRecord struct {
	Path         string
	Source       string
	Job          string
	Operation    string
	ClassName    string
	Width        int
	Height       int
	DataType     string
	GeoTransform GeoTransform
	CRS          string
}

// OutputCatalogue registers persisted outputs.
type OutputCatalogue interface {
	Register(ctx context.Context, rec *OutputRecord) error
}
