package config

import (
	"fmt"
	"strings"

	"bldc-go/pkg/errors"
)

// ErrMissingSection reports a section that does not exist.
func ErrMissingSection(section string) error {
	return errors.ConfigSectionError(section)
}

// ErrMissingOption reports an option that does not exist.
func ErrMissingOption(section, option string) error {
	return errors.ConfigOptionError(section, option)
}

// ErrInvalidValue reports an option that failed type conversion.
func ErrInvalidValue(section, option, value, targetType string) error {
	return errors.ConfigTypeError(section, option, value, targetType, nil)
}

// ErrOutOfRange reports an option outside its allowed bounds.
func ErrOutOfRange(section, option string, value interface{}, reason string) error {
	return errors.ConfigValidationError(section, option,
		fmt.Sprintf("value %v out of range: %s", value, reason))
}

// ErrInvalidChoice reports an option that is not one of the allowed values.
func ErrInvalidChoice(section, option, value string, choices []string) error {
	return errors.ConfigValidationError(section, option,
		fmt.Sprintf("'%s' is not one of: %s", value, strings.Join(choices, ", ")))
}
