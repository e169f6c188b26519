package utils

import (
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a helpful suggestion for the user
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// Common error constructors with suggestions

// ErrEventNotFound creates an error when an event is not found
func ErrEventNotFound(searchTerm string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("no events found matching '%s'", searchTerm),
		Suggestion: "Try a different search term or run 'calsync events' to see all events",
	}
}

// ErrProviderNotConfigured creates an error when a provider is not configured
func ErrProviderNotConfigured(providerName string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("provider '%s' is not configured", providerName),
		Suggestion: fmt.Sprintf("Add provider configuration to ~/.config/calsync/config.json under 'providers.%s'", providerName),
	}
}

// ErrProviderOffline creates an error when a provider is unreachable
func ErrProviderOffline(providerName, reason string) error {
	suggestion := "Check your internet connection and try again; queued changes will sync on reconnect"
	if strings.Contains(reason, "DNS") {
		suggestion = "Check your DNS settings and internet connection"
	} else if strings.Contains(reason, "refused") {
		suggestion = "Check if the server is running and accessible"
	} else if strings.Contains(reason, "timeout") {
		suggestion = "The server may be slow or unreachable. Try again later"
	}

	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("provider '%s' is offline: %s", providerName, reason),
		Suggestion: suggestion,
	}
}

// ErrConflictNotFound creates an error when a conflict id does not exist
func ErrConflictNotFound(conflictID string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("conflict '%s' not found", conflictID),
		Suggestion: "Run 'calsync conflicts' to see open conflicts",
	}
}

// ErrInvalidStrategy creates an error for unknown resolution strategies
func ErrInvalidStrategy(strategy string, validStrategies []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid resolution strategy: %s", strategy),
		Suggestion: fmt.Sprintf("Valid strategies: %s", strings.Join(validStrategies, ", ")),
	}
}

// ErrInvalidDate creates an error for invalid date formats
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date format: %s", dateStr),
		Suggestion: "Use YYYY-MM-DD format (e.g., 2026-01-15)",
	}
}

// ErrCredentialsNotFound creates an error when credentials are not found
func ErrCredentialsNotFound(providerName, username string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("credentials not found for %s (user: %s)", providerName, username),
		Suggestion: fmt.Sprintf("Store credentials with 'calsync credentials set %s %s --prompt'", providerName, username),
	}
}

// ErrAuthenticationFailed creates an error when authentication fails
func ErrAuthenticationFailed(providerName string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("authentication failed for %s", providerName),
		Suggestion: "Check your credentials with 'calsync credentials get <provider> <user>' and update if needed",
	}
}

// ErrConfigFileNotFound creates an error when config file is not found
func ErrConfigFileNotFound(path string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("config file not found at %s", path),
		Suggestion: "Run calsync to create a default configuration file",
	}
}

// ErrInvalidConfig creates an error for invalid configuration
func ErrInvalidConfig(field string, reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid configuration for '%s': %s", field, reason),
		Suggestion: fmt.Sprintf("Check ~/.config/calsync/config.json and fix the '%s' field", field),
	}
}

// WrapWithSuggestion wraps an existing error with a suggestion
func WrapWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}
