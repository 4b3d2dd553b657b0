package flatmap

import "github.com/pkg/errors"

var (
	// ErrNotAccumulated is returned by rasterization and point mapping before contour
	// accumulation has completed.
	ErrNotAccumulated = errors.New("contours have not been accumulated")

	// ErrExtentMismatch means the intensity volume's extents differ from the label
	// volume's while matching extents are required.
	ErrExtentMismatch = errors.New("intensity volume extents do not match label volume")

	// ErrNoIntensity means the intensity channel was requested without an intensity volume.
	ErrNoIntensity = errors.New("no intensity volume configured")

	// ErrUnknownChannel is returned by RuleByName for unrecognised channel names.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrValueRange means a discrete value does not fit the raster's integer type.
	ErrValueRange = errors.New("value does not fit discrete raster")
)
