package processor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/nci/lulcagg/utils"
)

// Matcher tests class membership of a cell value.
type Matcher interface {
	Match(v float64) (bool, error)
}

type valueMatcher float64

func (m valueMatcher) Match(v float64) (bool, error) {
	return v == float64(m), nil
}

// Reducer turns every valid cell of a block into its contribution to
// the block total. The block value is the total over the cell count.
type Reducer struct {
	Name    string
	contrib func(v float64) (float64, error)
}

// Mean reduces a block to the average of its cell values.
func Mean() Reducer {
	return Reducer{Name: "mean", contrib: func(v float64) (float64, error) { return v, nil }}
}

// Fraction reduces a block to the share of cells equal to classValue.
func Fraction(classValue float64) Reducer {
	r := FractionOf(valueMatcher(classValue))
	r.Name = fmt.Sprintf("fraction(%v)", classValue)
	return r
}

// FractionOf reduces a block to the share of cells accepted by m.
func FractionOf(m Matcher) Reducer {
	return Reducer{Name: "fraction", contrib: func(v float64) (float64, error) {
		ok, err := m.Match(v)
		if ok {
			return 1, err
		}
		return 0, err
	}}
}

// AggregateBlocks partitions g into non-overlapping factor x factor
// blocks and reduces each to one cell of a (H/factor, W/factor) grid.
// Trailing rows and columns that do not fill a block are dropped and
// reported in the returned Truncation.
//
// The grid is walked once, row by row: each row is mapped to per-cell
// contributions and every factor-wide segment is summed into its block,
// so cell (i, j) accumulates rows [i*f, (i+1)*f) of columns
// [j*f, (j+1)*f) with no per-block window bookkeeping.
func AggregateBlocks(g *Grid, factor int, reducer Reducer, missing MissingPolicy) (*Grid, Truncation, error) {
	if factor <= 0 {
		return nil, Truncation{}, fmt.Errorf("%w: %d", utils.ErrInvalidScaleFactor, factor)
	}

	oh, ow := g.Height/factor, g.Width/factor
	trunc := Truncation{Rows: g.Height - oh*factor, Cols: g.Width - ow*factor}
	out := NewGrid(oh, ow)
	if oh == 0 || ow == 0 {
		return out, trunc, nil
	}

	counts := make([]int, oh*ow)
	contrib := make([]float64, ow*factor)
	for y := 0; y < oh*factor; y++ {
		base := y * g.Width
		outRow := (y / factor) * ow
		for x := range contrib {
			i := base + x
			if !g.IsValid(i) {
				contrib[x] = 0
				continue
			}
			c, err := reducer.contrib(g.Data[i])
			if err != nil {
				return nil, trunc, fmt.Errorf("%s at row %d col %d: %w", reducer.Name, y, x, err)
			}
			contrib[x] = c
			counts[outRow+x/factor]++
		}
		for j := 0; j < ow; j++ {
			out.Data[outRow+j] += floats.Sum(contrib[j*factor : (j+1)*factor])
		}
	}

	full := factor * factor
	for i := range out.Data {
		n := counts[i]
		if missing == MissingAsZero {
			n = full
		}
		if n == 0 {
			out.Data[i] = 0
			out.SetMissing(i)
			continue
		}
		out.Data[i] /= float64(n)
	}
	return out, trunc, nil
}
