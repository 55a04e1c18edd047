// Unified error handling for the BLDC controller host

package errors

import (
	"fmt"
)

// ErrorCode categorizes an error for logging and handling decisions.
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"

	// Motor controller errors
	ErrMotorStall   ErrorCode = "MOTOR_STALL"
	ErrMotorCommand ErrorCode = "MOTOR_COMMAND"

	// Drive link errors
	ErrLinkOpen     ErrorCode = "LINK_OPEN"
	ErrLinkIO       ErrorCode = "LINK_IO"
	ErrLinkProtocol ErrorCode = "LINK_PROTOCOL"

	// Runtime errors
	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"
)

// HostError is the unified error type for the host.
type HostError struct {
	// Code is the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Section and Option identify config context, when applicable.
	Section string
	Option  string

	// Err is the wrapped underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *HostError) Error() string {
	if e.Section != "" || e.Option != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Section, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetSection sets the config section context.
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption sets the config option context.
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// New creates a HostError.
func New(code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message}
}

// Newf creates a HostError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *HostError {
	return &HostError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message, Err: err}
}

// Is reports whether err is a HostError carrying the given code.
func Is(err error, code ErrorCode) bool {
	if he, ok := err.(*HostError); ok {
		return he.Code == code
	}
	return false
}

// IsConfig reports whether err is any configuration error.
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType)
}

// Constructors for the common cases.

// ConfigSectionError reports a missing config section.
func ConfigSectionError(section string) *HostError {
	return New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section)).
		SetSection(section)
}

// ConfigOptionError reports a missing config option.
func ConfigOptionError(section, option string) *HostError {
	return New(ErrConfigOption, fmt.Sprintf("option '%s' not found in section '%s'", option, section)).
		SetSection(section).
		SetOption(option)
}

// ConfigValidationError reports an out-of-range or inconsistent option.
func ConfigValidationError(section, option, reason string) *HostError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetSection(section).
		SetOption(option)
}

// ConfigTypeError reports a failed option conversion.
func ConfigTypeError(section, option, value, targetType string, err error) *HostError {
	return Wrap(err, ErrConfigType,
		fmt.Sprintf("option '%s' in section '%s': failed to parse '%s' as %s", option, section, value, targetType)).
		SetSection(section).
		SetOption(option)
}

// MotorStallError reports a lost-synchronization shutdown.
func MotorStallError(motor string, lastPeriod uint32) *HostError {
	return Newf(ErrMotorStall, "motor '%s' stalled or lost back-EMF (last period %d ticks)", motor, lastPeriod)
}

// LinkOpenError reports a drive-board link that could not be opened.
func LinkOpenError(device string, err error) *HostError {
	return Wrap(err, ErrLinkOpen, fmt.Sprintf("cannot open drive link '%s'", device))
}

// LinkProtocolError reports a malformed frame on the drive link.
func LinkProtocolError(reason string) *HostError {
	return New(ErrLinkProtocol, reason)
}

// RuntimeInitError reports a component that failed to initialize.
func RuntimeInitError(component, reason string) *HostError {
	return Newf(ErrRuntimeInit, "failed to initialize %s: %s", component, reason)
}
