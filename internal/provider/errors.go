package provider

import (
	"errors"
	"fmt"
)

// UnknownBindingError indicates that a capability binding id is absent from
// the knowledge slice's provider list. This is a configuration error and
// aborts the run.
type UnknownBindingError struct {
	BindingID string
}

// NewUnknownBindingError creates a new UnknownBindingError.
func NewUnknownBindingError(bindingID string) *UnknownBindingError {
	return &UnknownBindingError{BindingID: bindingID}
}

// Error returns the error message.
func (e *UnknownBindingError) Error() string {
	return fmt.Sprintf("provider binding %q not found in knowledge slice", e.BindingID)
}

// UnregisteredProviderTypeError indicates that no factory is registered for a
// provider's (category, type) pair. This is a configuration error and aborts
// the run.
type UnregisteredProviderTypeError struct {
	Category Category
	Type     string
}

// NewUnregisteredProviderTypeError creates a new UnregisteredProviderTypeError.
func NewUnregisteredProviderTypeError(category Category, providerType string) *UnregisteredProviderTypeError {
	return &UnregisteredProviderTypeError{Category: category, Type: providerType}
}

// Error returns the error message.
func (e *UnregisteredProviderTypeError) Error() string {
	return fmt.Sprintf("no provider factory registered for %s:%s", e.Category, e.Type)
}

// IsConfigurationError reports whether the error belongs to the class that
// must abort a run before any evidence is gathered.
func IsConfigurationError(err error) bool {
	var unknown *UnknownBindingError
	var unregistered *UnregisteredProviderTypeError
	return errors.As(err, &unknown) || errors.As(err, &unregistered)
}
