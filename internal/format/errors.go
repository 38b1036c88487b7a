package format

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is matched by every *UnsupportedFormatError.
var ErrUnsupportedFormat = errors.New("unsupported format")

// UnsupportedFormatError reports a file rejected at intake.
type UnsupportedFormatError struct {
	Name      string
	MediaType string
}

func (e *UnsupportedFormatError) Error() string {
	mt := e.MediaType
	if mt == "" {
		mt = "unknown media type"
	}
	if e.Name == "" {
		return fmt.Sprintf("unsupported format: %s", mt)
	}
	return fmt.Sprintf("unsupported format: %s (%s)", e.Name, mt)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// ConfigurationError reports an output format with no encoder path and no
// defined fallback. It is raised before any work is dispatched.
type ConfigurationError struct {
	Format string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: output format %q: %s", e.Format, e.Reason)
}
