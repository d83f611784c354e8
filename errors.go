package pngopt

import (
	"errors"
	"fmt"

	"github.com/deepteams/pngopt/internal/container"
	"github.com/deepteams/pngopt/internal/deflate"
	"github.com/deepteams/pngopt/internal/filter"
	"github.com/deepteams/pngopt/internal/palette"
	"github.com/deepteams/pngopt/internal/raster"
)

// Errors returned by Optimize. Errors from the internal layers are wrapped
// so errors.Is matches both the sentinel here and the underlying cause.
var (
	// ErrMalformedInput means the input is not a valid PNG.
	ErrMalformedInput = errors.New("pngopt: malformed input")
	// ErrUnsupportedColor means the pixels cannot be represented.
	ErrUnsupportedColor = errors.New("pngopt: unsupported color configuration")
	// ErrResourceExhausted means the options leave a search with no budget.
	ErrResourceExhausted = errors.New("pngopt: search budget exhausted")
	// ErrInternal reports a broken invariant. It always aborts the call.
	ErrInternal = errors.New("pngopt: internal invariant violated")
	// ErrInvalidOptions means an option is outside its documented range.
	ErrInvalidOptions = errors.New("pngopt: invalid options")
)

// classify attaches the matching root sentinel to an error from an
// internal package.
func classify(err error) error {
	var kind error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMalformedInput), errors.Is(err, ErrUnsupportedColor),
		errors.Is(err, ErrResourceExhausted), errors.Is(err, ErrInternal):
		return err
	case errors.Is(err, deflate.ErrInvariant), errors.Is(err, filter.ErrNoEvaluator),
		errors.Is(err, filter.ErrImage):
		kind = ErrInternal
	case errors.Is(err, filter.ErrBudget):
		kind = ErrResourceExhausted
	case errors.Is(err, raster.ErrUnsupported), errors.Is(err, palette.ErrTooManyColors):
		kind = ErrUnsupportedColor
	case errors.Is(err, raster.ErrDecode), isContainerError(err):
		kind = ErrMalformedInput
	default:
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func isContainerError(err error) bool {
	for _, e := range []error{
		container.ErrInvalidSignature, container.ErrTruncated, container.ErrBadCRC,
		container.ErrInvalidChunk, container.ErrInvalidHeader, container.ErrMissingChunk,
		container.ErrTooLarge,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// errorRank orders candidate failures by how specific they are; the most
// specific one is reported when no candidate succeeds.
func errorRank(err error) int {
	switch {
	case errors.Is(err, ErrResourceExhausted):
		return 4
	case errors.Is(err, ErrUnsupportedColor):
		return 3
	case errors.Is(err, ErrInternal):
		return 2
	default:
		return 1
	}
}
