package api

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid pipeline definition: a malformed matrix,
// an include collision, or an unresolvable variable reference. It is
// fatal for the part of the run that depends on the offending definition.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
