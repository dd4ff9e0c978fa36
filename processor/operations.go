package processor

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/nci/lulcagg/metrics"
	"github.com/nci/lulcagg/utils"
)

// extractOp writes one binary mask per class at the input resolution.
func (p *JobPipeline) extractOp(opts *jobOptions) fileOp {
	return func(input string, mc *metrics.MetricsCollector) ([]*output, error) {
		r, err := p.read(opts, input, mc)
		if err != nil {
			return nil, err
		}
		masks, err := ExtractClasses(r, opts.job.Classes)
		if err != nil {
			return nil, err
		}

		outs := make([]*output, len(masks))
		for i, m := range masks {
			cls := opts.job.Classes[i]
			outs[i] = &output{Path: opts.job.ClassOutputPath(input, cls), ClassName: cls.Name, Raster: m}
		}
		return outs, nil
	}
}

// fractionOp writes, per class, the share of each scale_factor block
// covered by the class.
func (p *JobPipeline) fractionOp(opts *jobOptions) fileOp {
	return func(input string, mc *metrics.MetricsCollector) ([]*output, error) {
		r, err := p.read(opts, input, mc)
		if err != nil {
			return nil, err
		}

		s := opts.job.ScaleFactor
		grids := make([]*Grid, len(opts.job.Classes))
		var trunc Truncation
		for i, cls := range opts.job.Classes {
			grids[i], trunc, err = AggregateBlocks(r.Bands[0], s, FractionOf(cls.Matcher()), opts.missing)
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", cls.Name, err)
			}
		}
		if err := p.checkTruncation(opts, input, r, trunc, mc); err != nil {
			return nil, err
		}

		gt := r.GeoTransform.Scale(float64(s), float64(s))
		nodata := reducedNoData(r.NoData, opts.job.OutputType, 0, 1)
		outs := make([]*output, len(grids))
		for i, cls := range opts.job.Classes {
			outs[i] = &output{
				Path:      opts.job.ClassOutputPath(input, cls),
				ClassName: cls.Name,
				Raster: &Raster{
					Bands:        []*Grid{grids[i]},
					GeoTransform: gt,
					CRS:          r.CRS,
					DataType:     opts.job.OutputType,
					NoData:       nodata,
				},
			}
		}
		return outs, nil
	}
}

// meanOp writes the scale_factor block mean of every band.
func (p *JobPipeline) meanOp(opts *jobOptions) fileOp {
	return func(input string, mc *metrics.MetricsCollector) ([]*output, error) {
		r, err := p.read(opts, input, mc)
		if err != nil {
			return nil, err
		}

		s := opts.job.ScaleFactor
		out := &Raster{
			GeoTransform: r.GeoTransform.Scale(float64(s), float64(s)),
			CRS:          r.CRS,
			DataType:     opts.job.OutputType,
			NoData:       reducedNoData(r.NoData, opts.job.OutputType, math.Inf(1), math.Inf(-1)),
		}
		var trunc Truncation
		for i, b := range r.Bands {
			g, t, err := AggregateBlocks(b, s, Mean(), opts.missing)
			if err != nil {
				return nil, fmt.Errorf("band %d: %w", i+1, err)
			}
			out.Bands = append(out.Bands, g)
			trunc = t
		}
		if err := p.checkTruncation(opts, input, r, trunc, mc); err != nil {
			return nil, err
		}
		return []*output{{Path: opts.job.OutputPath(input), Raster: out}}, nil
	}
}

// reducedNoData picks the NoData of a block reduction output. The input
// sentinel is a class code or measurement of the input and may be a
// legitimate output value, so float outputs always fall back to NaN.
// Integer outputs keep the sentinel unless it lies in [lo, hi], the
// range the reduction can produce.
func reducedNoData(sentinel *float64, dataType string, lo, hi float64) *float64 {
	if sentinel == nil || isFloatType(dataType) {
		return nil
	}
	if *sentinel >= lo && *sentinel <= hi {
		return nil
	}
	nd := *sentinel
	return &nd
}

func isFloatType(dataType string) bool {
	return dataType == "Float32" || dataType == "Float64"
}

// resampleOp brings every input onto the reference grid shape, or onto
// its own shape divided by scale_factor when there is no reference. The
// output keeps the input footprint: its transform is the input
// transform scaled by the shrink ratio.
func (p *JobPipeline) resampleOp(opts *jobOptions, ref *RasterInfo) fileOp {
	return func(input string, mc *metrics.MetricsCollector) ([]*output, error) {
		info, err := p.Reader.Info(input)
		if err != nil {
			return nil, err
		}

		var height, width int
		if ref != nil {
			if err := p.checkReference(input, ref, info); err != nil {
				return nil, err
			}
			height, width = ref.Height, ref.Width
		} else {
			s := opts.job.ScaleFactor
			if s <= 0 {
				return nil, fmt.Errorf("%w: %d", utils.ErrInvalidScaleFactor, s)
			}
			height, width = info.Height/s, info.Width/s
		}
		if height <= 0 || width <= 0 {
			return nil, fmt.Errorf("%w: %dx%d raster resampled to %dx%d", utils.ErrInvalidShape, info.Height, info.Width, height, width)
		}

		var bands []*Grid
		var src *Raster
		if p.readerResamples(opts, input, info) {
			src, err = p.Reader.ReadShape(input, height, width, opts.resampling)
			if err != nil {
				return nil, err
			}
			if src, err = p.prepare(opts, input, src, mc); err != nil {
				return nil, err
			}
			bands = src.Bands
			mc.Info.Input.Width, mc.Info.Input.Height = info.Width, info.Height
		} else {
			if src, err = p.read(opts, input, mc); err != nil {
				return nil, err
			}
			for i, b := range src.Bands {
				g, err := Resample(b, height, width, opts.resampling, opts.missing)
				if err != nil {
					return nil, fmt.Errorf("band %d: %w", i+1, err)
				}
				bands = append(bands, g)
			}
		}

		dataType := opts.job.OutputType
		if dataType == "" {
			dataType = info.DataType
		}
		out := &Raster{
			Bands:        bands,
			GeoTransform: DeriveTransform(info.GeoTransform, info.Height, info.Width, height, width),
			CRS:          src.CRS,
			DataType:     dataType,
			NoData:       src.NoData,
		}
		return []*output{{Path: opts.job.OutputPath(input), Raster: out}}, nil
	}
}

// readerResamples reports whether the reader may resample on its own.
// A reader averaging with GDAL only skips the file's NoData, so a job
// sentinel that differs from it, or counting missing cells as zero,
// needs the in-process resampler.
func (p *JobPipeline) readerResamples(opts *jobOptions, input string, info *RasterInfo) bool {
	if !opts.job.GdalResample {
		return false
	}
	if opts.resampling != Average {
		return true
	}
	sentinel := opts.job.NoDataValue
	switch {
	case opts.missing == MissingAsZero:
	case sentinel != nil && (info.NoData == nil || !sameValue(*sentinel, *info.NoData)):
	default:
		return true
	}
	p.Log.Debug("average resampling done in process, the reader cannot honour the no-data settings",
		zap.String("input", input))
	return false
}

func sameValue(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// checkReference rejects sources that cannot be written on the
// reference grid without coercion.
func (p *JobPipeline) checkReference(input string, ref, info *RasterInfo) error {
	if ref.Bands != info.Bands {
		return fmt.Errorf("%w: %s has %d bands, reference has %d", utils.ErrShapeMismatch, input, info.Bands, ref.Bands)
	}
	if !utils.IsSupportedType(ref.DataType) {
		return fmt.Errorf("%w: reference data type %s", utils.ErrShapeMismatch, ref.DataType)
	}
	if !utils.IsSupportedType(info.DataType) {
		return fmt.Errorf("%w: %s data type %s", utils.ErrShapeMismatch, input, info.DataType)
	}
	if ref.CRS != "" && info.CRS != "" && ref.CRS != info.CRS {
		p.Log.Warn("source and reference CRS differ, no reprojection is done",
			zap.String("input", input))
	}
	return nil
}
