package common

import (
	"fmt"
	"slices"

	"resumerank/internal/errors"
	"resumerank/internal/formatters"
)

// ValidateOutputFormat checks format against the configured output formats.
// An empty configuration allows every registered formatter.
func ValidateOutputFormat(format string, configured []string) error {
	allowed := configured
	if len(allowed) == 0 {
		allowed = formatters.GlobalRegistry.GetSupportedFormats()
	}
	if slices.Contains(allowed, format) {
		return nil
	}
	return errors.NewValidationError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported output format '%s'. Supported formats: %v", format, allowed), nil)
}
