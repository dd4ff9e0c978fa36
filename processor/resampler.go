package processor

import (
	"fmt"

	"github.com/nci/lulcagg/utils"
)

// Resample brings g to a (height, width) grid with the given policy.
//
// Nearest samples the input cell under each output cell centre, so
// categorical values pass through unchanged. Average takes the
// area-weighted mean of every input cell overlapping the output cell;
// for integer ratios this is the plain block mean.
func Resample(g *Grid, height, width int, policy ResamplingPolicy, missing MissingPolicy) (*Grid, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", utils.ErrInvalidShape, height, width)
	}
	if g.Height <= 0 || g.Width <= 0 {
		return nil, fmt.Errorf("%w: empty input grid", utils.ErrInvalidShape)
	}

	switch policy {
	case Nearest:
		return resampleNearest(g, height, width), nil
	case Average:
		return resampleAverage(g, height, width, missing), nil
	}
	return nil, fmt.Errorf("%w: unknown resampling policy %v", utils.ErrInvalidConfig, policy)
}

// ResampleByFactor resamples g to (H/factor, W/factor).
func ResampleByFactor(g *Grid, factor int, policy ResamplingPolicy, missing MissingPolicy) (*Grid, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("%w: %d", utils.ErrInvalidScaleFactor, factor)
	}
	return Resample(g, g.Height/factor, g.Width/factor, policy, missing)
}

// nearestIndex maps output index k of m cells onto n input cells through
// the cell centre: floor((k+0.5)*n/m), kept in integers.
func nearestIndex(k, n, m int) int {
	idx := (2*k + 1) * n / (2 * m)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func resampleNearest(g *Grid, height, width int) *Grid {
	out := NewGrid(height, width)
	cols := make([]int, width)
	for j := range cols {
		cols[j] = nearestIndex(j, g.Width, width)
	}
	for i := 0; i < height; i++ {
		srcRow := nearestIndex(i, g.Height, height) * g.Width
		for j, c := range cols {
			src := srcRow + c
			out.Data[i*width+j] = g.Data[src]
			if !g.IsValid(src) {
				out.SetMissing(i*width + j)
			}
		}
	}
	return out
}

type span struct {
	idx    int
	weight int
}

// axisSpans lists, for each of m output cells, the input cells of an
// n-cell axis it overlaps with their overlap length. Lengths are
// measured in units of 1/(n*m) of the axis so they are exact integers:
// input cell t covers [t*m, (t+1)*m) and output cell k covers
// [k*n, (k+1)*n).
func axisSpans(n, m int) [][]span {
	out := make([][]span, m)
	for k := 0; k < m; k++ {
		lo, hi := k*n, (k+1)*n
		for t := lo / m; t < n && t*m < hi; t++ {
			w := min((t+1)*m, hi) - max(t*m, lo)
			if w > 0 {
				out[k] = append(out[k], span{idx: t, weight: w})
			}
		}
	}
	return out
}

func resampleAverage(g *Grid, height, width int, missing MissingPolicy) *Grid {
	out := NewGrid(height, width)
	rows := axisSpans(g.Height, height)
	cols := axisSpans(g.Width, width)

	for i, rs := range rows {
		for j, cs := range cols {
			var sum float64
			var wsum, wall int
			for _, r := range rs {
				base := r.idx * g.Width
				for _, c := range cs {
					w := r.weight * c.weight
					wall += w
					src := base + c.idx
					if !g.IsValid(src) {
						continue
					}
					sum += float64(w) * g.Data[src]
					wsum += w
				}
			}
			if missing == MissingAsZero {
				wsum = wall
			}
			if wsum == 0 {
				out.SetMissing(i*width + j)
				continue
			}
			out.Data[i*width+j] = sum / float64(wsum)
		}
	}
	return out
}
