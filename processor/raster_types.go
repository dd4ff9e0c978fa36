package processor

import (
	"fmt"
	"strings"

	"github.com/nci/lulcagg/utils"
)

// Grid is a single band of samples stored row-major as float64, which
// holds every supported integer type exactly. Valid is nil when every
// cell carries data, otherwise Valid[i] is false for missing cells.
type Grid struct {
	Data          []float64
	Valid         []bool
	Height, Width int
}

func NewGrid(height, width int) *Grid {
	return &Grid{Data: make([]float64, height*width), Height: height, Width: width}
}

// NewGridFrom wraps data of the given shape without copying it.
func NewGridFrom(height, width int, data []float64) (*Grid, error) {
	if len(data) != height*width {
		return nil, fmt.Errorf("%w: %d samples for a %dx%d grid", utils.ErrInvalidShape, len(data), height, width)
	}
	return &Grid{Data: data, Height: height, Width: width}, nil
}

func (g *Grid) At(y, x int) float64 {
	return g.Data[y*g.Width+x]
}

func (g *Grid) IsValid(i int) bool {
	return g.Valid == nil || g.Valid[i]
}

// SetMissing marks cell i missing, allocating the mask on first use.
func (g *Grid) SetMissing(i int) {
	if g.Valid == nil {
		g.Valid = make([]bool, len(g.Data))
		for j := range g.Valid {
			g.Valid[j] = true
		}
	}
	g.Valid[i] = false
}

// MissingCount returns the number of cells without data.
func (g *Grid) MissingCount() int {
	n := 0
	for _, ok := range g.Valid {
		if !ok {
			n++
		}
	}
	return n
}

func (g *Grid) Clone() *Grid {
	out := &Grid{Data: make([]float64, len(g.Data)), Height: g.Height, Width: g.Width}
	copy(out.Data, g.Data)
	if g.Valid != nil {
		out.Valid = make([]bool, len(g.Valid))
		copy(out.Valid, g.Valid)
	}
	return out
}

// Raster is a band-major stack of grids with its georeferencing. CRS is
// an opaque WKT string passed through unchanged; DataType is the GDAL
// type name used when the raster is persisted.
type Raster struct {
	Bands        []*Grid
	GeoTransform GeoTransform
	CRS          string
	DataType     string
	NoData       *float64
}

func (r *Raster) Height() int {
	if len(r.Bands) == 0 {
		return 0
	}
	return r.Bands[0].Height
}

func (r *Raster) Width() int {
	if len(r.Bands) == 0 {
		return 0
	}
	return r.Bands[0].Width
}

// Validate checks every band shares one shape and its sample count.
func (r *Raster) Validate() error {
	if len(r.Bands) == 0 {
		return fmt.Errorf("%w: raster has no bands", utils.ErrInvalidShape)
	}
	h, w := r.Height(), r.Width()
	for i, b := range r.Bands {
		if b.Height != h || b.Width != w {
			return fmt.Errorf("%w: band %d is %dx%d, band 0 is %dx%d", utils.ErrInvalidShape, i+1, b.Height, b.Width, h, w)
		}
		if len(b.Data) != h*w || (b.Valid != nil && len(b.Valid) != h*w) {
			return fmt.Errorf("%w: band %d sample count does not match %dx%d", utils.ErrInvalidShape, i+1, h, w)
		}
	}
	if !utils.IsSupportedType(r.DataType) {
		return fmt.Errorf("%w: %q", utils.ErrUnsupportedType, r.DataType)
	}
	return nil
}

// RasterInfo is the metadata of a raster file, read without its pixels.
type RasterInfo struct {
	Height, Width int
	Bands         int
	DataType      string
	GeoTransform  GeoTransform
	CRS           string
	NoData        *float64
}

// ResamplingPolicy selects how a grid is brought to a new shape.
type ResamplingPolicy int

const (
	Nearest ResamplingPolicy = iota
	Average
)

func (p ResamplingPolicy) String() string {
	switch p {
	case Nearest:
		return utils.PolicyNearest
	case Average:
		return utils.PolicyAverage
	default:
		return fmt.Sprintf("ResamplingPolicy(%d)", int(p))
	}
}

func ParseResamplingPolicy(s string) (ResamplingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", utils.PolicyNearest:
		return Nearest, nil
	case utils.PolicyAverage:
		return Average, nil
	}
	return Nearest, fmt.Errorf("%w: unknown resampling policy %q", utils.ErrInvalidConfig, s)
}

// MissingPolicy decides how missing cells take part in block and
// average reductions. MissingExclude drops them from the denominator
// and yields a missing output cell when nothing valid remains.
// MissingAsZero counts them as zero-valued, non-member cells over the
// full block.
type MissingPolicy int

const (
	MissingExclude MissingPolicy = iota
	MissingAsZero
)

func (p MissingPolicy) String() string {
	if p == MissingAsZero {
		return utils.MissingZero
	}
	return utils.MissingExclude
}

func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", utils.MissingExclude:
		return MissingExclude, nil
	case utils.MissingZero:
		return MissingAsZero, nil
	}
	return MissingExclude, fmt.Errorf("%w: unknown missing policy %q", utils.ErrInvalidConfig, s)
}

// Truncation reports the trailing rows and columns a block reduction
// dropped because they did not fill a whole block.
type Truncation struct {
	Rows, Cols int
}

func (t Truncation) Any() bool {
	return t.Rows > 0 || t.Cols > 0
}
