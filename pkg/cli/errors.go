package cli

import (
	"errors"
	"fmt"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitConfig     = 2
	ExitRunBlocked = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// ExitCode maps a command error to the process exit code. A cleanup
// refused because another run holds the lock exits with ExitRunBlocked so
// cron wrappers can tell it apart from a failure.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.Is(err, mailbox.ErrRunInProgress):
		return ExitRunBlocked
	default:
		return ExitFailure
	}
}
