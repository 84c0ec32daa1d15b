package tempo

import "errors"

// Sentinel errors returned (wrapped with a stack trace) by TempoMap operations.
// Compare with errors.IsError from github.com/gruntwork-io/go-commons/errors.
var (
	// ErrFirstSection indicates an attempt to move or remove the initial tempo or meter.
	ErrFirstSection = errors.New("tempo: the initial section cannot be moved or removed")

	// ErrUnknownSection indicates a section that does not belong to the current map state.
	ErrUnknownSection = errors.New("tempo: section is not part of this map")

	// ErrNotBarAligned indicates a meter position that is not on a bar line.
	ErrNotBarAligned = errors.New("tempo: meter must start on a bar")

	// ErrUnsolvable indicates an edit that would leave the map inconsistent.
	ErrUnsolvable = errors.New("tempo: map cannot be solved")

	// ErrDivergence indicates that a ramp coefficient iteration did not converge.
	ErrDivergence = errors.New("tempo: ramp solver did not converge")

	// ErrNegativePosition indicates a negative frame or pulse.
	ErrNegativePosition = errors.New("tempo: negative position")

	// ErrOverflow indicates a frame that does not fit in 63 bits.
	ErrOverflow = errors.New("tempo: frame overflow")

	// ErrInvalidValue indicates a non-positive or non-finite tempo, meter or length.
	ErrInvalidValue = errors.New("tempo: invalid value")

	// ErrInvalidState indicates a serialized map that cannot be loaded.
	ErrInvalidState = errors.New("tempo: invalid state")

	// ErrUnsupportedVersion indicates a serialized map version this code cannot read.
	ErrUnsupportedVersion = errors.New("tempo: unsupported state version")
)
