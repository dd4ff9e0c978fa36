package utils

import "errors"

var (
	// ErrInvalidInput marks an input path that does not exist or is not a
	// readable raster. It aborts only the file it was raised for.
	ErrInvalidInput = errors.New("invalid input raster")
	// ErrShapeMismatch marks a reference raster whose band count or data
	// type cannot be matched by the source raster.
	ErrShapeMismatch = errors.New("reference raster shape mismatch")
	// ErrTruncation is returned when a grid is not evenly divisible by the
	// scale factor and the job asked for strict divisibility.
	ErrTruncation = errors.New("grid not divisible by scale factor")

	ErrInvalidScaleFactor = errors.New("scale factor must be a positive integer")
	ErrInvalidShape       = errors.New("target shape must be positive")
	ErrInvalidConfig      = errors.New("invalid job configuration")
	ErrUnsupportedType    = errors.New("unsupported raster data type")
)
