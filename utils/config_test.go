package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
service_config:
  metrics_log_dir: /var/log/lulcagg
jobs:
  - name: to-modis
    operation: resample
    directory: tiles
    reference_path: tiles/modis_ref.tif
    nodata_value: -9999
    resampling_policy: Average
    concurrency: 4
  - operation: fraction
    input_path: /data/lc_2015.tif
    output_dir: fractions
    scale_factor: 10
    class_map:
      5: forest.tif
      2: crop.tif
    classes:
      - name: wet.tif
        expression: value == 7 || value == 8
  - operation: mean
    input_paths: [a_1.tif, /abs/b_2.tif]
    scale_factor: 4
    missing_policy: zero
`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, testConfig)
	base := filepath.Dir(path)

	config := &Config{}
	require.NoError(t, config.LoadConfigFile(path))
	assert.Equal(t, "/var/log/lulcagg", config.ServiceConfig.MetricsLogDir)
	assert.Equal(t, DefaultMetricsFiles, config.ServiceConfig.MaxMetricsLogs)
	require.Len(t, config.Jobs, 3)

	res := config.Jobs[0]
	assert.Equal(t, OpResample, res.Operation)
	assert.Equal(t, filepath.Join(base, "tiles"), res.Directory)
	assert.Equal(t, filepath.Join(base, "tiles/modis_ref.tif"), res.ReferencePath)
	require.NotNil(t, res.NoDataValue)
	assert.Equal(t, -9999.0, *res.NoDataValue)
	assert.Equal(t, PolicyAverage, res.ResamplingPolicy)
	assert.Equal(t, MissingExclude, res.MissingPolicy)
	assert.Equal(t, DefaultResSuffix, res.OutputSuffix)
	assert.Equal(t, DefaultFractionType, res.OutputType)
	assert.Equal(t, 4, res.Concurrency)

	frac := config.Jobs[1]
	assert.Equal(t, "job1", frac.Name)
	assert.Equal(t, "/data/lc_2015.tif", frac.InputPath)
	assert.Equal(t, filepath.Join(base, "fractions"), frac.OutputDir)
	assert.Nil(t, frac.ClassMap)
	require.Len(t, frac.Classes, 3)
	assert.Equal(t, "crop.tif", frac.Classes[0].Name)
	assert.Equal(t, "forest.tif", frac.Classes[1].Name)
	assert.Equal(t, "wet.tif", frac.Classes[2].Name)
	assert.Equal(t, DefaultFractionType, frac.OutputType)
	assert.Equal(t, DefaultConcurrency, frac.Concurrency)

	mean := config.Jobs[2]
	assert.Equal(t, MissingZero, mean.MissingPolicy)
	assert.Equal(t, []string{filepath.Join(base, "a_1.tif"), "/abs/b_2.tif"}, mean.InputPaths)
	assert.Equal(t, DefaultMeanPattern, mean.OutputPattern)
}

func TestLoadConfigFileErrors(t *testing.T) {
	tests := map[string]string{
		"no jobs":         "jobs: []\n",
		"bad operation":   "jobs:\n  - operation: sum\n    input_path: a.tif\n",
		"bad policy":      "jobs:\n  - operation: resample\n    input_path: a.tif\n    scale_factor: 2\n    resampling_policy: bilinear\n",
		"bad missing":     "jobs:\n  - operation: mean\n    input_path: a.tif\n    scale_factor: 2\n    missing_policy: skip\n",
		"no scale":        "jobs:\n  - operation: fraction\n    input_path: a.tif\n    class_map: {1: a.tif}\n",
		"negative scale":  "jobs:\n  - operation: mean\n    input_path: a.tif\n    scale_factor: -2\n",
		"no classes":      "jobs:\n  - operation: extract\n    input_path: a.tif\n",
		"no target":       "jobs:\n  - operation: resample\n    directory: tiles\n",
		"bad output type": "jobs:\n  - operation: mean\n    input_path: a.tif\n    scale_factor: 2\n    output_type: CInt16\n",
		"bad pattern":     "jobs:\n  - operation: mean\n    directory: d\n    scale_factor: 2\n    file_pattern: 'year == 2015'\n",
	}
	for name, doc := range tests {
		config := &Config{}
		err := config.LoadConfigFile(writeConfig(t, doc))
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInvalidConfig), "%s: %v", name, err)
	}

	config := &Config{}
	assert.Error(t, config.LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Error(t, config.LoadConfigFile(writeConfig(t, "jobs: [")))
}

func TestJobInputs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.tif", "a.tif", "ref.tif", "c.txt")

	job := &Job{
		InputPaths:    []string{"/extra/x.tif"},
		Directory:     dir,
		ReferencePath: filepath.Join(dir, "ref.tif"),
	}
	inputs, err := job.Inputs()
	require.NoError(t, err)
	assert.Equal(t, []string{"/extra/x.tif", filepath.Join(dir, "a.tif"), filepath.Join(dir, "b.tif")}, inputs)

	job.Directory = filepath.Join(dir, "missing")
	_, err = job.Inputs()
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestJobOutputPath(t *testing.T) {
	res := &Job{Operation: OpResample, OutputSuffix: "_res"}
	assert.Equal(t, "/data/lc_2015_res.tif", res.OutputPath("/data/lc_2015.tif"))
	res.OutputDir = "/out"
	assert.Equal(t, "/out/lc_2015_res.tif", res.OutputPath("/data/lc_2015.tif"))

	mean := &Job{Operation: OpMean, OutputPattern: DefaultMeanPattern}
	assert.Equal(t, "/data/ndvi_mean.tif", mean.OutputPath("/data/ndvi_2015_q1.tif"))
	assert.Equal(t, "/data/ndvi_mean.tif", mean.OutputPath("/data/ndvi.tif"))
	mean.OutputPattern = "{name}_coarse.tif"
	assert.Equal(t, "/data/ndvi_2015_coarse.tif", mean.OutputPath("/data/ndvi_2015.tif"))

	frac := &Job{Operation: OpFraction, OutputDir: "/out"}
	assert.Equal(t, "/out/forest.tif", frac.ClassOutputPath("/data/lc.tif", &ClassSpec{Name: "forest.tif"}))
}
