package utils

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

// Operations understood by the job runner.
const (
	OpResample = "resample"
	OpExtract  = "extract"
	OpFraction = "fraction"
	OpMean     = "mean"
)

const (
	PolicyNearest = "nearest"
	PolicyAverage = "average"

	MissingExclude = "exclude"
	MissingZero    = "zero"
)

const (
	DefaultRasterExt    = ".tif"
	DefaultResSuffix    = "_res"
	DefaultMeanPattern  = "{prefix}_mean.tif"
	DefaultConcurrency  = 1
	DefaultFractionType = "Float32"
	DefaultMetricsFiles = 10
)

// ServiceConfig holds the settings shared by every job of a config file.
type ServiceConfig struct {
	CatalogueDSN   string `yaml:"catalogue_dsn"`
	MetricsLogDir  string `yaml:"metrics_log_dir"`
	MaxMetricsSize int64  `yaml:"max_metrics_file_size"`
	MaxMetricsLogs int    `yaml:"max_metrics_files"`
}

// Job describes one pass over a dataset. Every field maps to a key of
// the job entry in the YAML document.
type Job struct {
	Name               string         `yaml:"name"`
	Operation          string         `yaml:"operation"`
	Directory          string         `yaml:"directory"`
	FilePattern        string         `yaml:"file_pattern"`
	InputPath          string         `yaml:"input_path"`
	InputPaths         []string       `yaml:"input_paths"`
	OutputDir          string         `yaml:"output_dir"`
	OutputSuffix       string         `yaml:"output_suffix"`
	OutputPattern      string         `yaml:"output_pattern"`
	OutputType         string         `yaml:"output_type"`
	ReferencePath      string         `yaml:"reference_path"`
	NoDataValue        *float64       `yaml:"nodata_value"`
	ScaleFactor        int            `yaml:"scale_factor"`
	ResamplingPolicy   string         `yaml:"resampling_policy"`
	MissingPolicy      string         `yaml:"missing_policy"`
	StrictDivisibility bool           `yaml:"strict_divisibility"`
	Concurrency        int            `yaml:"concurrency"`
	GdalResample       bool           `yaml:"gdal_resample"`
	ClassMap           map[int]string `yaml:"class_map"`
	Classes            []*ClassSpec   `yaml:"classes"`
}

// Config is the document driving a lulc-agg run.
type Config struct {
	ServiceConfig ServiceConfig `yaml:"service_config"`
	Jobs          []*Job        `yaml:"jobs"`
}

// LoadConfigFile unmarshals a YAML job document, applies defaults and
// validates every job.
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	err = yaml.Unmarshal(cfg, config)
	if err != nil {
		return fmt.Errorf("Error at YAML parsing config document: %s. Error: %v", configFile, err)
	}

	if config.ServiceConfig.MaxMetricsLogs <= 0 {
		config.ServiceConfig.MaxMetricsLogs = DefaultMetricsFiles
	}

	if len(config.Jobs) == 0 {
		return fmt.Errorf("%w: %s has no jobs", ErrInvalidConfig, configFile)
	}

	baseDir := filepath.Dir(configFile)
	for i, job := range config.Jobs {
		if job.Name == "" {
			job.Name = fmt.Sprintf("job%d", i)
		}
		job.resolvePaths(baseDir)
		if err := job.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// resolvePaths makes relative paths relative to the directory holding
// the config file.
func (job *Job) resolvePaths(baseDir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	job.Directory = resolve(job.Directory)
	job.InputPath = resolve(job.InputPath)
	job.OutputDir = resolve(job.OutputDir)
	job.ReferencePath = resolve(job.ReferencePath)
	for i := range job.InputPaths {
		job.InputPaths[i] = resolve(job.InputPaths[i])
	}
}

// Validate fills defaults and checks the job is runnable. It also
// compiles class and file pattern expressions.
func (job *Job) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: job %s: %s", ErrInvalidConfig, job.Name, fmt.Sprintf(format, args...))
	}

	job.Operation = strings.ToLower(strings.TrimSpace(job.Operation))
	job.ResamplingPolicy = strings.ToLower(strings.TrimSpace(job.ResamplingPolicy))
	job.MissingPolicy = strings.ToLower(strings.TrimSpace(job.MissingPolicy))

	if job.ResamplingPolicy == "" {
		job.ResamplingPolicy = PolicyNearest
	}
	if job.ResamplingPolicy != PolicyNearest && job.ResamplingPolicy != PolicyAverage {
		return invalid("unknown resampling_policy %q", job.ResamplingPolicy)
	}

	if job.MissingPolicy == "" {
		job.MissingPolicy = MissingExclude
	}
	if job.MissingPolicy != MissingExclude && job.MissingPolicy != MissingZero {
		return invalid("unknown missing_policy %q", job.MissingPolicy)
	}

	if job.Concurrency <= 0 {
		job.Concurrency = DefaultConcurrency
	}

	if job.OutputType != "" && !IsSupportedType(job.OutputType) {
		return invalid("unsupported output_type %q", job.OutputType)
	}

	if job.ScaleFactor < 0 {
		return invalid("scale_factor %d", job.ScaleFactor)
	}

	if job.FilePattern != "" {
		if _, err := ParsePatternExpression(job.FilePattern); err != nil {
			return invalid("file_pattern: %v", err)
		}
	}

	for value, name := range job.ClassMap {
		v := float64(value)
		job.Classes = append(job.Classes, &ClassSpec{Value: &v, Name: name})
	}
	job.ClassMap = nil
	sort.SliceStable(job.Classes, func(i, j int) bool { return job.Classes[i].less(job.Classes[j]) })
	for _, cls := range job.Classes {
		if err := cls.Compile(); err != nil {
			return invalid("%v", err)
		}
	}

	switch job.Operation {
	case OpResample:
		if job.Directory == "" && job.InputPath == "" && len(job.InputPaths) == 0 {
			return invalid("resample needs directory, input_path or input_paths")
		}
		if job.ReferencePath == "" && job.ScaleFactor == 0 {
			return invalid("resample needs reference_path or scale_factor")
		}
		if job.OutputSuffix == "" {
			job.OutputSuffix = DefaultResSuffix
		}
		if job.OutputType == "" && (job.ReferencePath == "" || job.ResamplingPolicy == PolicyAverage) {
			job.OutputType = DefaultFractionType
		}
	case OpExtract:
		if job.InputPath == "" {
			return invalid("extract needs input_path")
		}
		if len(job.Classes) == 0 {
			return invalid("extract needs at least one class")
		}
	case OpFraction:
		if job.InputPath == "" {
			return invalid("fraction needs input_path")
		}
		if len(job.Classes) == 0 {
			return invalid("fraction needs at least one class")
		}
		if job.ScaleFactor == 0 {
			return invalid("fraction needs scale_factor")
		}
	case OpMean:
		if job.Directory == "" && job.InputPath == "" && len(job.InputPaths) == 0 {
			return invalid("mean needs directory, input_path or input_paths")
		}
		if job.ScaleFactor == 0 {
			return invalid("mean needs scale_factor")
		}
		if job.OutputPattern == "" {
			job.OutputPattern = DefaultMeanPattern
		}
	default:
		return invalid("unknown operation %q", job.Operation)
	}

	if job.OutputType == "" && (job.Operation == OpFraction || job.Operation == OpMean) {
		job.OutputType = DefaultFractionType
	}
	return nil
}

// Inputs lists the rasters a job reads, in a stable order. The
// reference raster is never part of the list.
func (job *Job) Inputs() ([]string, error) {
	var inputs []string
	if job.InputPath != "" {
		inputs = append(inputs, job.InputPath)
	}
	inputs = append(inputs, job.InputPaths...)
	if job.Directory != "" {
		if _, err := os.Stat(job.Directory); err != nil {
			return nil, fmt.Errorf("%w: directory %s: %v", ErrInvalidInput, job.Directory, err)
		}
		files, err := ListRasters(job.Directory, DefaultRasterExt, job.FilePattern)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, files...)
	}

	out := inputs[:0]
	for _, p := range inputs {
		if job.ReferencePath != "" && filepath.Clean(p) == filepath.Clean(job.ReferencePath) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// OutputPath derives the destination of one input raster.
func (job *Job) OutputPath(input string) string {
	dir := job.OutputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	switch job.Operation {
	case OpMean:
		prefix := name
		if idx := strings.Index(name, "_"); idx > 0 {
			prefix = name[:idx]
		}
		r := strings.NewReplacer("{name}", name, "{prefix}", prefix)
		return filepath.Join(dir, r.Replace(job.OutputPattern))
	default:
		return filepath.Join(dir, name+job.OutputSuffix+DefaultRasterExt)
	}
}

var supportedTypes = map[string]struct{}{
	"Byte": {}, "Int16": {}, "UInt16": {}, "Int32": {}, "UInt32": {}, "Float32": {}, "Float64": {},
}

// IsSupportedType reports whether a GDAL data type name can be read
// into and written from a float64 grid without loss.
func IsSupportedType(name string) bool {
	_, ok := supportedTypes[name]
	return ok
}

// ClassOutputPath derives the destination of one class artifact of an
// input raster.
func (job *Job) ClassOutputPath(input string, cls *ClassSpec) string {
	dir := job.OutputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, cls.Name)
}
