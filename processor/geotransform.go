package processor

import "math"

// GeoTransform holds affine coefficients in GDAL order:
//
//	X = gt[0] + col*gt[1] + row*gt[2]
//	Y = gt[3] + col*gt[4] + row*gt[5]
type GeoTransform [6]float64

// Apply maps a pixel (col, row) corner to world coordinates.
func (gt GeoTransform) Apply(col, row float64) (x, y float64) {
	return gt[0] + col*gt[1] + row*gt[2], gt[3] + col*gt[4] + row*gt[5]
}

// Scale composes gt with a pixel scaling, T ∘ scale(sx, sy): the column
// coefficients grow by sx, the row coefficients by sy and the origin
// stays where it is.
func (gt GeoTransform) Scale(sx, sy float64) GeoTransform {
	return GeoTransform{gt[0], gt[1] * sx, gt[2] * sy, gt[3], gt[4] * sx, gt[5] * sy}
}

// DeriveTransform returns the transform of a (height, width) grid
// resampled from a (srcHeight, srcWidth) grid covering the same area.
func DeriveTransform(gt GeoTransform, srcHeight, srcWidth, height, width int) GeoTransform {
	return gt.Scale(float64(srcWidth)/float64(width), float64(srcHeight)/float64(height))
}

// Footprint returns the world bounding box [minX, minY, maxX, maxY] of a
// (height, width) grid.
func Footprint(gt GeoTransform, height, width int) [4]float64 {
	corners := [4][2]float64{{0, 0}, {float64(width), 0}, {0, float64(height)}, {float64(width), float64(height)}}
	bbox := [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, c := range corners {
		x, y := gt.Apply(c[0], c[1])
		bbox[0] = math.Min(bbox[0], x)
		bbox[1] = math.Min(bbox[1], y)
		bbox[2] = math.Max(bbox[2], x)
		bbox[3] = math.Max(bbox[3], y)
	}
	return bbox
}
