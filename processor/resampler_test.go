package processor

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nci/lulcagg/utils"
)

func TestResampleShapeLaw(t *testing.T) {
	g := NewGrid(17, 23)
	for _, policy := range []ResamplingPolicy{Nearest, Average} {
		for _, shape := range [][2]int{{1, 1}, {5, 7}, {17, 23}, {34, 46}, {3, 40}} {
			out, err := Resample(g, shape[0], shape[1], policy, MissingExclude)
			require.NoError(t, err)
			assert.Equal(t, shape[0], out.Height)
			assert.Equal(t, shape[1], out.Width)
			assert.Len(t, out.Data, shape[0]*shape[1])
		}
	}
}

func TestResampleNearestConstant(t *testing.T) {
	data := make([]float64, 9*13)
	for i := range data {
		data[i] = 4
	}
	g := grid(t, 9, 13, data...)
	for _, shape := range [][2]int{{3, 3}, {4, 5}, {18, 26}, {1, 1}} {
		out, err := Resample(g, shape[0], shape[1], Nearest, MissingExclude)
		require.NoError(t, err)
		for _, v := range out.Data {
			assert.Equal(t, 4.0, v)
		}
	}
}

func TestResampleNearestPicksCentres(t *testing.T) {
	g := grid(t, 4, 4,
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	)
	out, err := ResampleByFactor(g, 2, Nearest, MissingExclude)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 8, 14, 16}, out.Data)

	up, err := Resample(grid(t, 1, 2, 1, 2), 2, 4, Nearest, MissingExclude)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 2, 2, 1, 1, 2, 2}, up.Data)
}

func TestResampleAverageIntegerRatio(t *testing.T) {
	g := grid(t, 4, 4,
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	)
	out, err := ResampleByFactor(g, 2, Average, MissingExclude)
	require.NoError(t, err)
	mean, _, err := AggregateBlocks(g, 2, Mean(), MissingExclude)
	require.NoError(t, err)
	if diff := cmp.Diff(mean.Data, out.Data, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("average differs from block mean (-want +got):\n%s", diff)
	}
}

func TestResampleAverageAreaWeights(t *testing.T) {
	out, err := Resample(grid(t, 1, 3, 0, 3, 6), 1, 2, Average, MissingExclude)
	require.NoError(t, err)
	// output cells cover 1.5 input cells: [0, 1.5) and [1.5, 3)
	want := []float64{(0*1 + 3*0.5) / 1.5, (3*0.5 + 6*1) / 1.5}
	if diff := cmp.Diff(want, out.Data, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestResampleMissing(t *testing.T) {
	g := MaskMissing(grid(t, 2, 2, 0, 4, 0, 0), 0)

	out, err := Resample(g, 1, 1, Average, MissingExclude)
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, out.Data)

	out, err = Resample(g, 1, 1, Average, MissingAsZero)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, out.Data)

	empty := MaskMissing(grid(t, 2, 2, 0, 0, 0, 0), 0)
	out, err = Resample(empty, 1, 1, Average, MissingExclude)
	require.NoError(t, err)
	assert.False(t, out.IsValid(0))

	out, err = Resample(g, 2, 2, Nearest, MissingExclude)
	require.NoError(t, err)
	assert.Equal(t, 3, out.MissingCount())
}

func TestResampleErrors(t *testing.T) {
	g := NewGrid(4, 4)
	_, err := Resample(g, 0, 3, Nearest, MissingExclude)
	assert.True(t, errors.Is(err, utils.ErrInvalidShape))

	_, err = Resample(NewGrid(0, 0), 2, 2, Average, MissingExclude)
	assert.True(t, errors.Is(err, utils.ErrInvalidShape))

	_, err = ResampleByFactor(g, 0, Nearest, MissingExclude)
	assert.True(t, errors.Is(err, utils.ErrInvalidScaleFactor))

	_, err = ResampleByFactor(g, 5, Nearest, MissingExclude)
	assert.True(t, errors.Is(err, utils.ErrInvalidShape))
}

func TestAxisSpans(t *testing.T) {
	spans := axisSpans(3, 2)
	assert.Equal(t, [][]span{
		{{idx: 0, weight: 2}, {idx: 1, weight: 1}},
		{{idx: 1, weight: 1}, {idx: 2, weight: 2}},
	}, spans)

	for _, nm := range [][2]int{{10, 3}, {3, 10}, {7, 7}, {1, 5}} {
		for _, s := range axisSpans(nm[0], nm[1]) {
			total := 0
			for _, sp := range s {
				total += sp.weight
			}
			assert.Equal(t, nm[0], total, "n=%d m=%d", nm[0], nm[1])
		}
	}
}
