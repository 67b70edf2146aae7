package api

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an unusable workspace root or configuration.
// It is fatal and surfaced to the operator at startup.
type ConfigurationError struct {
	// Path is the file or directory that could not be used.
	Path string

	// Message describes the problem.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "configuration error: " + msg
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError for path.
func NewConfigurationError(path, message string, err error) *ConfigurationError {
	return &ConfigurationError{Path: path, Message: message, Err: err}
}

// IsConfiguration checks if err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// ConflictError reports a duplicate operation for the same key: a second
// start or stop of a service, or a second import of the same bundle.
// The request is rejected without any state change.
type ConflictError struct {
	// Resource categorizes the key (e.g., "service", "bundle").
	Resource string

	// Key is the sid, service name or operation id in conflict.
	Key string

	// Message provides a custom message if the default is insufficient.
	Message string
}

// Error implements the error interface for ConflictError.
func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s: operation already in progress", e.Resource, e.Key)
}

// NewConflictError creates a ConflictError with an optional custom message.
func NewConflictError(resource, key, message string) *ConflictError {
	return &ConflictError{Resource: resource, Key: key, Message: message}
}

// IsConflict checks if err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// ValidationError reports malformed input, typically a bundle whose layout
// is not a single top-level service directory.
type ValidationError struct {
	Resource string
	Key      string
	Message  string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid %s: %s", e.Resource, e.Message)
	}
	return fmt.Sprintf("invalid %s %s: %s", e.Resource, e.Key, e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(resource, key, message string) *ValidationError {
	return &ValidationError{Resource: resource, Key: key, Message: message}
}

// IsValidation checks if err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// NotFoundError represents a resource not found error with contextual information.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	ResourceType string

	// ResourceName is the specific identifier of the resource that was not found
	ResourceName string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceName: resourceName}
}

// NewServiceNotFoundError creates a service not found error.
func NewServiceNotFoundError(key string) *NotFoundError {
	return NewNotFoundError("service", key)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
