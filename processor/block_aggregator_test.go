package processor

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nci/lulcagg/utils"
)

func TestAggregateMean4x4(t *testing.T) {
	g := grid(t, 4, 4,
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	)
	out, trunc, err := AggregateBlocks(g, 2, Mean(), MissingExclude)
	require.NoError(t, err)
	assert.False(t, trunc.Any())
	assert.Equal(t, 2, out.Height)
	assert.Equal(t, 2, out.Width)
	assert.Equal(t, []float64{3.5, 5.5, 11.5, 13.5}, out.Data)
	assert.Nil(t, out.Valid)
}

func TestAggregateFractionWholeGrid(t *testing.T) {
	data := make([]float64, 100)
	for i := range data {
		switch {
		case i < 30:
			data[i] = 2
		case i < 75:
			data[i] = 5
		default:
			data[i] = 7
		}
	}
	g := grid(t, 10, 10, data...)

	want := map[float64]float64{2: 0.30, 5: 0.45, 7: 0.25, 9: 0}
	total := 0.0
	for class, fraction := range want {
		out, _, err := AggregateBlocks(g, 10, Fraction(class), MissingExclude)
		require.NoError(t, err)
		require.Len(t, out.Data, 1)
		assert.InDelta(t, fraction, out.Data[0], 1e-12, "class %v", class)
		total += out.Data[0]
	}
	assert.InDelta(t, 1.0, total, 1e-12)
}

func TestAggregateFractionBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := make([]float64, 12*18)
	for i := range data {
		data[i] = float64(rng.Intn(4))
	}
	g := grid(t, 12, 18, data...)

	for _, factor := range []int{1, 2, 3, 6} {
		out, _, err := AggregateBlocks(g, factor, Fraction(1), MissingExclude)
		require.NoError(t, err)
		for i, v := range out.Data {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)

			by, bx := (i/out.Width)*factor, (i%out.Width)*factor
			all, none := true, true
			for y := by; y < by+factor; y++ {
				for x := bx; x < bx+factor; x++ {
					if g.At(y, x) == 1 {
						none = false
					} else {
						all = false
					}
				}
			}
			assert.Equal(t, all, v == 1, "block %d at factor %d", i, factor)
			assert.Equal(t, none, v == 0, "block %d at factor %d", i, factor)
		}
	}
}

func TestAggregateShapeAndTruncation(t *testing.T) {
	tests := []struct {
		h, w, factor   int
		oh, ow         int
		truncR, truncC int
	}{
		{10, 10, 10, 1, 1, 0, 0},
		{10, 10, 3, 3, 3, 1, 1},
		{7, 12, 4, 1, 3, 3, 0},
		{5, 5, 1, 5, 5, 0, 0},
		{3, 9, 5, 0, 1, 3, 4},
	}
	for _, tc := range tests {
		g := NewGrid(tc.h, tc.w)
		out, trunc, err := AggregateBlocks(g, tc.factor, Mean(), MissingExclude)
		require.NoError(t, err)
		assert.Equal(t, tc.oh, out.Height)
		assert.Equal(t, tc.ow, out.Width)
		assert.Len(t, out.Data, tc.oh*tc.ow)
		assert.Equal(t, Truncation{Rows: tc.truncR, Cols: tc.truncC}, trunc)
	}
}

func TestAggregateDropsTrailingCells(t *testing.T) {
	g := grid(t, 3, 3,
		1, 1, 9,
		1, 1, 9,
		9, 9, 9,
	)
	out, trunc, err := AggregateBlocks(g, 2, Mean(), MissingExclude)
	require.NoError(t, err)
	assert.Equal(t, Truncation{Rows: 1, Cols: 1}, trunc)
	assert.Equal(t, []float64{1}, out.Data)
}

func TestAggregateMissingPolicies(t *testing.T) {
	g := grid(t, 2, 4,
		0, 3, 0, 0,
		3, 3, 0, 0,
	)
	masked := MaskMissing(g, 0)

	out, _, err := AggregateBlocks(masked, 2, Fraction(3), MissingExclude)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Data[0])
	assert.True(t, out.IsValid(0))
	assert.False(t, out.IsValid(1))

	out, _, err = AggregateBlocks(masked, 2, Fraction(3), MissingAsZero)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.75, 0}, out.Data)
	assert.Nil(t, out.Valid)

	out, _, err = AggregateBlocks(masked, 2, Mean(), MissingExclude)
	require.NoError(t, err)
	assert.Equal(t, 3.0, out.Data[0])
	assert.Equal(t, 1, out.MissingCount())
}

func TestAggregateClassExpression(t *testing.T) {
	g := grid(t, 2, 2, 5, 6, 7, 5)
	cls := &utils.ClassSpec{Expression: "value == 5 || value == 6", Name: "forest.tif"}
	require.NoError(t, cls.Compile())

	out, _, err := AggregateBlocks(g, 2, FractionOf(cls.Matcher()), MissingExclude)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.75}, out.Data)
}

func TestAggregateInvalidFactor(t *testing.T) {
	g := NewGrid(4, 4)
	for _, f := range []int{0, -2} {
		_, _, err := AggregateBlocks(g, f, Mean(), MissingExclude)
		assert.True(t, errors.Is(err, utils.ErrInvalidScaleFactor), "factor %d", f)
	}
}
