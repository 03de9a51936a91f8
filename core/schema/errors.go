package schema

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a ConfigurationError.
type ErrorCode string

const (
	CodeUnknownAttribute ErrorCode = "UNKNOWN_ATTRIBUTE"
	CodeUnknownOperator  ErrorCode = "UNKNOWN_OPERATOR"
	CodeMissingAggregate ErrorCode = "GROUP_BY_WITHOUT_AGGREGATE"
	CodeInvalidValue     ErrorCode = "INVALID_VALUE"
	CodeInvalidOptions   ErrorCode = "INVALID_OPTIONS"
	CodeInvalidSchema    ErrorCode = "INVALID_SCHEMA"
	CodeUnknownSchema    ErrorCode = "UNKNOWN_COLLECTION"
)

// ConfigurationError is raised while compiling a statement. It is always
// fatal and is never sent to the store.
type ConfigurationError struct {
	Code      ErrorCode
	Attribute string
	Message   string
}

// NewConfigurationError builds a ConfigurationError with a formatted message.
func NewConfigurationError(code ErrorCode, attribute string, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Code:      code,
		Attribute: attribute,
		Message:   fmt.Sprintf(format, args...),
	}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error [%s]: %s", e.Code, e.Message)
}

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Issue represents a single validation problem found in a document.
type Issue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Path     string `json:"path,omitempty"`
	Severity string `json:"severity,omitempty"`
}
