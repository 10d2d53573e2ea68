package explorer

import "errors"

var (
	// ErrEmptyDomain is returned when a distribution produces no bins.
	ErrEmptyDomain = errors.New("empty bin domain")
	// ErrInvalidBinSize is returned for a distribution with a non-positive bin size.
	ErrInvalidBinSize = errors.New("invalid bin size")
	// ErrNotLoaded is returned when a histogram is built before the distribution arrived.
	ErrNotLoaded = errors.New("distribution is not loaded")

	ErrInvalidAssignment  = errors.New("assignment needs a zone or a dimension")
	ErrUnknownZone        = errors.New("unknown zone")
	ErrUnknownDimension   = errors.New("unknown dimension")
	ErrDuplicateDimension = errors.New("duplicate dimension key")
	ErrInvalidDescriptor  = errors.New("invalid dimension descriptor")
	ErrBrokenBijection    = errors.New("zone and dimension disagree")
)
