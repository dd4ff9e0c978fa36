package main

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nci/lulcagg/utils"
)

func parseJob(t *testing.T, operation string, args ...string) (*utils.Job, error) {
	t.Helper()
	cmd := &cobra.Command{Use: operation}
	f := bindJobFlags(cmd, operation)
	require.NoError(t, cmd.ParseFlags(args))
	return f.toJob(cmd, operation)
}

func TestFractionFlags(t *testing.T) {
	job, err := parseJob(t, utils.OpFraction,
		"-i", "/data/lc.tif",
		"-o", "/out",
		"-s", "10",
		"--nodata", "0",
		"--class", "7=water.tif,2=crop.tif",
		"--class-expr", "forest.tif=value == 5 || value == 6",
	)
	require.NoError(t, err)

	assert.Equal(t, utils.OpFraction, job.Name)
	assert.Equal(t, "/data/lc.tif", job.InputPath)
	assert.Equal(t, 10, job.ScaleFactor)
	require.NotNil(t, job.NoDataValue)
	assert.Equal(t, 0.0, *job.NoDataValue)
	assert.Equal(t, utils.DefaultFractionType, job.OutputType)

	require.Len(t, job.Classes, 3)
	assert.Equal(t, "crop.tif", job.Classes[0].Name)
	assert.Equal(t, "water.tif", job.Classes[1].Name)
	assert.Equal(t, "forest.tif", job.Classes[2].Name)
	assert.Equal(t, "value == 5 || value == 6", job.Classes[2].Expression)
}

func TestNoDataUnsetByDefault(t *testing.T) {
	job, err := parseJob(t, utils.OpMean, "-d", "/data", "-s", "4")
	require.NoError(t, err)
	assert.Nil(t, job.NoDataValue)
	assert.Equal(t, utils.DefaultMeanPattern, job.OutputPattern)
	assert.Equal(t, utils.DefaultConcurrency, job.Concurrency)
}

func TestResampleFlags(t *testing.T) {
	job, err := parseJob(t, utils.OpResample, "-d", "/data", "-r", "/data/ref.tif", "--policy", "average", "--concurrency", "4")
	require.NoError(t, err)
	assert.Equal(t, utils.PolicyAverage, job.ResamplingPolicy)
	assert.Equal(t, utils.DefaultResSuffix, job.OutputSuffix)
	assert.Equal(t, 4, job.Concurrency)
	assert.Equal(t, utils.DefaultFractionType, job.OutputType)
}

func TestBadClassFlags(t *testing.T) {
	for _, args := range [][]string{
		{"-i", "lc.tif", "--class", "forest.tif"},
		{"-i", "lc.tif", "--class", "five=forest.tif"},
		{"-i", "lc.tif", "--class-expr", "value == 5"},
		{"-i", "lc.tif", "--class-expr", "forest.tif=band == 5"},
		{"-i", "lc.tif"},
	} {
		_, err := parseJob(t, utils.OpExtract, args...)
		require.Error(t, err, "%v", args)
		assert.True(t, errors.Is(err, utils.ErrInvalidConfig), "%v: %v", args, err)
	}
}
