// Package errs holds the sentinel errors shared by the droneseg packages.
//
// Errors are wrapped with github.com/pkg/errors and matched with errors.Is.
package errs

import "github.com/pkg/errors"

var (
	// ErrNotFound reports a missing image, mask or label file.
	ErrNotFound = errors.New("not found")
	// ErrParse reports a malformed label CSV row or config value.
	ErrParse = errors.New("parse error")
	// ErrShapeMismatch reports disagreeing image/mask dimensions or list lengths.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrUnsupportedFormat reports an image extension with no codec.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrInvalidConfig reports a setting out of its valid range.
	ErrInvalidConfig = errors.New("invalid config")
)
