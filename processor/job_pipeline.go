package processor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nci/lulcagg/metrics"
	"github.com/nci/lulcagg/utils"
)

// JobPipeline runs configured jobs over rasters read and written by its
// collaborators. Catalogue and Metrics are optional.
type JobPipeline struct {
	Context   context.Context
	Reader    RasterReader
	Writer    RasterWriter
	Catalogue OutputCatalogue
	Metrics   metrics.Logger
	Log       *zap.Logger
}

func InitJobPipeline(ctx context.Context, reader RasterReader, writer RasterWriter, log *zap.Logger) *JobPipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &JobPipeline{
		Context: ctx,
		Reader:  reader,
		Writer:  writer,
		Log:     log,
	}
}

type output struct {
	Path      string
	ClassName string
	Raster    *Raster
}

// fileOp turns one input raster into its outputs.
type fileOp func(input string, mc *metrics.MetricsCollector) ([]*output, error)

// jobOptions are the parsed, typed settings of a job.
type jobOptions struct {
	job        *utils.Job
	resampling ResamplingPolicy
	missing    MissingPolicy
}

// Process runs one job. Per-file failures do not stop the job; they are
// logged and returned together once every input has been handled.
func (p *JobPipeline) Process(job *utils.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	opts := &jobOptions{job: job}
	var err error
	if opts.resampling, err = ParseResamplingPolicy(job.ResamplingPolicy); err != nil {
		return err
	}
	if opts.missing, err = ParseMissingPolicy(job.MissingPolicy); err != nil {
		return err
	}

	log := p.Log.With(zap.String("job", job.Name), zap.String("operation", job.Operation))
	log.Info("start job")

	switch job.Operation {
	case utils.OpExtract:
		return p.processFile(opts, job.InputPath, p.extractOp(opts))
	case utils.OpFraction:
		return p.processFile(opts, job.InputPath, p.fractionOp(opts))
	case utils.OpMean:
		inputs, err := job.Inputs()
		if err != nil {
			return err
		}
		return p.runBatch(opts, inputs, p.meanOp(opts))
	case utils.OpResample:
		var ref *RasterInfo
		if job.ReferencePath != "" {
			ref, err = p.Reader.Info(job.ReferencePath)
			if err != nil {
				return fmt.Errorf("reference %s: %w", job.ReferencePath, err)
			}
		}
		inputs, err := job.Inputs()
		if err != nil {
			return err
		}
		return p.runBatch(opts, inputs, p.resampleOp(opts, ref))
	}
	return fmt.Errorf("%w: unknown operation %q", utils.ErrInvalidConfig, job.Operation)
}

// runBatch processes inputs with at most job.Concurrency files in
// flight. Files share no state, so their order does not matter.
func (p *JobPipeline) runBatch(opts *jobOptions, inputs []string, op fileOp) error {
	var (
		mu   sync.Mutex
		errs error
	)
	appendErr := func(err error) {
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(opts.job.Concurrency)
	for _, input := range inputs {
		if err := p.Context.Err(); err != nil {
			appendErr(fmt.Errorf("job %s cancelled before %s: %w", opts.job.Name, input, err))
			break
		}
		input := input
		g.Go(func() error {
			if err := p.processFile(opts, input, op); err != nil {
				appendErr(err)
			}
			return nil
		})
	}
	g.Wait()

	if n := len(multierr.Errors(errs)); n > 0 {
		p.Log.Warn("job finished with errors", zap.String("job", opts.job.Name), zap.Int("files", len(inputs)), zap.Int("errors", n))
	}
	return errs
}

func (p *JobPipeline) processFile(opts *jobOptions, input string, op fileOp) (err error) {
	job := opts.job
	mc := metrics.NewMetricsCollector(p.Metrics, job.Name, job.Operation)
	mc.Info.Input.Path = input
	mc.Info.ScaleFactor = job.ScaleFactor
	log := p.Log.With(zap.String("job", job.Name), zap.String("input", input))
	defer func() {
		mc.Log(err)
		if err != nil {
			log.Error("failed to process raster", zap.Error(err))
		}
	}()

	outputs, err := op(input, mc)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	for _, o := range outputs {
		if werr := p.persist(opts, input, o, mc); werr != nil {
			err = multierr.Append(err, fmt.Errorf("%s -> %s: %w", input, o.Path, werr))
			continue
		}
		log.Info("wrote raster", zap.String("output", o.Path), zap.Int("width", o.Raster.Width()), zap.Int("height", o.Raster.Height()))
	}
	return err
}

func (p *JobPipeline) persist(opts *jobOptions, input string, o *output, mc *metrics.MetricsCollector) error {
	r := o.Raster.Restored()
	if err := r.Validate(); err != nil {
		return err
	}
	if err := p.Writer.Write(o.Path, r); err != nil {
		return err
	}
	mc.Info.Outputs = append(mc.Info.Outputs, rasterMetrics(o.Path, r))

	if p.Catalogue == nil {
		return nil
	}
	return p.Catalogue.Register(p.Context, &OutputRecord{
		Path:         o.Path,
		Source:       input,
		Job:          opts.job.Name,
		Operation:    opts.job.Operation,
		ClassName:    o.ClassName,
		Width:        r.Width(),
		Height:       r.Height(),
		DataType:     r.DataType,
		GeoTransform: r.GeoTransform,
		CRS:          r.CRS,
	})
}

// read loads an input raster and masks its sentinel. The job's
// nodata_value takes precedence over the file's own NoData.
func (p *JobPipeline) read(opts *jobOptions, input string, mc *metrics.MetricsCollector) (*Raster, error) {
	r, err := p.Reader.Read(input)
	if err != nil {
		return nil, err
	}
	return p.prepare(opts, input, r, mc)
}

func (p *JobPipeline) prepare(opts *jobOptions, input string, r *Raster, mc *metrics.MetricsCollector) (*Raster, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidInput, err)
	}
	mc.Info.Input = rasterMetrics(input, r)

	sentinel := opts.job.NoDataValue
	if sentinel == nil {
		sentinel = r.NoData
	}
	r = r.Masked(sentinel)
	for _, b := range r.Bands {
		mc.Info.MissingCells += b.MissingCount()
	}
	return r, nil
}

// checkTruncation records the cells a block reduction dropped,
// rejecting the file when the job asks for strict divisibility.
func (p *JobPipeline) checkTruncation(opts *jobOptions, input string, r *Raster, t Truncation, mc *metrics.MetricsCollector) error {
	mc.Info.TruncatedRows, mc.Info.TruncatedCols = t.Rows, t.Cols
	if !t.Any() {
		return nil
	}
	s := opts.job.ScaleFactor
	if opts.job.StrictDivisibility {
		return fmt.Errorf("%w: %dx%d at factor %d drops %d rows and %d cols",
			utils.ErrTruncation, r.Height(), r.Width(), s, t.Rows, t.Cols)
	}
	p.Log.Warn("trailing cells dropped by block aggregation",
		zap.String("input", input),
		zap.Int("scale_factor", s),
		zap.Int("rows", t.Rows),
		zap.Int("cols", t.Cols))
	return nil
}

func rasterMetrics(path string, r *Raster) *metrics.RasterInfo {
	return &metrics.RasterInfo{
		Path:     path,
		Width:    r.Width(),
		Height:   r.Height(),
		Bands:    len(r.Bands),
		DataType: r.DataType,
		BBox:     Footprint(r.GeoTransform, r.Height(), r.Width()),
	}
}
