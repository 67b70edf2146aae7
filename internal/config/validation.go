package config

import (
	"fmt"
	"strings"

	"berth/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the configuration and returns every problem found, or nil.
func (c BerthConfig) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.Home) == "" {
		errs.Add("home", "is required")
	}
	if strings.TrimSpace(c.Workspace.Root) == "" {
		errs.Add("workspace.root", "is required")
	}
	if c.Workspace.SettingsFile != "" && strings.ContainsAny(c.Workspace.SettingsFile, `/\`) {
		errs.Add("workspace.settingsFile", "must be a file name, not a path", c.Workspace.SettingsFile)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535", c.Server.Port)
	}
	if c.Server.MaxBundleSize < 0 {
		errs.Add("server.maxBundleSize", "must not be negative", c.Server.MaxBundleSize)
	}
	if c.Workers.Size < 1 {
		errs.Add("workers.size", "must be at least 1", c.Workers.Size)
	}
	if c.Lifecycle.StartTimeout <= 0 {
		errs.Add("lifecycle.startTimeout", "must be positive", c.Lifecycle.StartTimeout)
	}
	if c.Lifecycle.StopTimeout <= 0 {
		errs.Add("lifecycle.stopTimeout", "must be positive", c.Lifecycle.StopTimeout)
	}
	if c.Lifecycle.StuckThreshold < 1 {
		errs.Add("lifecycle.stuckThreshold", "must be at least 1", c.Lifecycle.StuckThreshold)
	}
	if c.Lifecycle.GuardTTL < c.Lifecycle.StartTimeout || c.Lifecycle.GuardTTL < c.Lifecycle.StopTimeout {
		errs.Add("lifecycle.guardTTL", "must not be shorter than the start and stop timeouts", c.Lifecycle.GuardTTL)
	}
	if c.Lifecycle.SweepInterval <= 0 {
		errs.Add("lifecycle.sweepInterval", "must be positive", c.Lifecycle.SweepInterval)
	}
	if c.Notify.SessionBuffer < 1 {
		errs.Add("notify.sessionBuffer", "must be at least 1", c.Notify.SessionBuffer)
	}
	if c.Notify.MaxTextLength < 0 {
		errs.Add("notify.maxTextLength", "must not be negative", c.Notify.MaxTextLength)
	}
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		errs.Add("logging.level", "must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON, "":
	default:
		errs.Add("logging.format", "must be text or json", c.Logging.Format)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
