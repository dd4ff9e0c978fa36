package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nci/lulcagg/utils"
)

type jobFlags struct {
	name       string
	nodata     float64
	classes    []string
	classExprs []string
	job        utils.Job
}

// newJobCmd builds a subcommand running a single job described by flags.
func newJobCmd(operation, short string) *cobra.Command {
	var f *jobFlags
	cmd := &cobra.Command{
		Use:   operation,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := f.toJob(cmd, operation)
			if err != nil {
				return err
			}
			return runJobs(cmd.Context(), &utils.ServiceConfig{MaxMetricsLogs: utils.DefaultMetricsFiles}, []*utils.Job{job})
		},
	}
	f = bindJobFlags(cmd, operation)
	return cmd
}

func bindJobFlags(cmd *cobra.Command, operation string) *jobFlags {
	f := &jobFlags{}
	fs := cmd.Flags()
	fs.StringVar(&f.name, "name", operation, "job name used in logs and metrics")
	fs.StringVarP(&f.job.InputPath, "input", "i", "", "input raster")
	fs.StringVarP(&f.job.OutputDir, "output-dir", "o", "", "output directory, defaults to the input directory")
	fs.StringVar(&f.job.OutputType, "output-type", "", "GDAL data type of the outputs")
	fs.Float64Var(&f.nodata, "nodata", 0, "no-data sentinel, overrides the value stored in the rasters")
	fs.StringSliceVar(&f.classes, "class", nil, "class as value=output_name, repeatable")
	fs.StringArrayVar(&f.classExprs, "class-expr", nil, "class as output_name=expression over 'value', repeatable")
	fs.IntVarP(&f.job.ScaleFactor, "scale", "s", 0, "block edge length in input pixels")
	fs.StringVar(&f.job.MissingPolicy, "missing", utils.MissingExclude, "no-data handling in reductions: exclude or zero")
	fs.BoolVar(&f.job.StrictDivisibility, "strict", false, "fail files whose size is not a multiple of the scale factor")

	switch operation {
	case utils.OpResample, utils.OpMean:
		fs.StringVarP(&f.job.Directory, "dir", "d", "", "directory of input rasters")
		fs.StringVar(&f.job.FilePattern, "pattern", "", "file selection expression over 'path'")
		fs.StringSliceVar(&f.job.InputPaths, "inputs", nil, "additional input rasters")
		fs.IntVar(&f.job.Concurrency, "concurrency", utils.DefaultConcurrency, "files processed in parallel")
	}
	switch operation {
	case utils.OpResample:
		fs.StringVarP(&f.job.ReferencePath, "reference", "r", "", "raster defining the target grid")
		fs.StringVar(&f.job.ResamplingPolicy, "policy", utils.PolicyNearest, "resampling policy: nearest or average")
		fs.StringVar(&f.job.OutputSuffix, "suffix", utils.DefaultResSuffix, "output name suffix")
		fs.BoolVar(&f.job.GdalResample, "gdal-resample", false, "let GDAL resample while reading")
	case utils.OpMean:
		fs.StringVar(&f.job.OutputPattern, "output-pattern", utils.DefaultMeanPattern, "output name, {name} and {prefix} are replaced")
	}
	return f
}

func (f *jobFlags) toJob(cmd *cobra.Command, operation string) (*utils.Job, error) {
	job := f.job
	job.Name = f.name
	job.Operation = operation
	if cmd.Flags().Changed("nodata") {
		nd := f.nodata
		job.NoDataValue = &nd
	}

	for _, c := range f.classes {
		value, name, ok := strings.Cut(c, "=")
		if !ok {
			return nil, fmt.Errorf("%w: class %q is not value=name", utils.ErrInvalidConfig, c)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: class %q: %v", utils.ErrInvalidConfig, c, err)
		}
		job.Classes = append(job.Classes, &utils.ClassSpec{Value: &v, Name: strings.TrimSpace(name)})
	}
	for _, c := range f.classExprs {
		name, expr, ok := strings.Cut(c, "=")
		if !ok {
			return nil, fmt.Errorf("%w: class expression %q is not name=expression", utils.ErrInvalidConfig, c)
		}
		job.Classes = append(job.Classes, &utils.ClassSpec{Expression: expr, Name: strings.TrimSpace(name)})
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}
