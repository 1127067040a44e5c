package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrTaskNotFound returns an error for when a task is not found.
func ErrTaskNotFound(id string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("task not found: %s", id),
		Suggestion: "Check the task id or use 'todokeep list' to see all tasks",
	}
}

// ErrEmptyTitle returns an error for an empty task title.
func ErrEmptyTitle() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("task title must not be empty"),
		Suggestion: "Provide a title, e.g. 'todokeep add \"Buy milk\"'",
	}
}

// ErrNoLocalBackup returns an error when the local backup slot was never written.
func ErrNoLocalBackup() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("no local backup exists"),
		Suggestion: "Create one with 'todokeep backup'",
	}
}

// ErrNotAuthenticated returns an error when no Drive token could be obtained.
func ErrNotAuthenticated(reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("not authenticated with Google Drive: %s", reason),
		Suggestion: "Re-run the command to retry authorization, or set TODOKEEP_DRIVE_TOKEN",
	}
}

// ErrBackupCorrupt returns an error when a snapshot cannot be decoded.
func ErrBackupCorrupt(reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("backup is not usable: %s", reason),
		Suggestion: "Pick a different backup with 'todokeep backups'",
	}
}

// ErrProviderOffline returns an error when Drive is unreachable with smart suggestions.
func ErrProviderOffline(reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("Google Drive is unreachable: %s", reason),
		Suggestion: getSmartSuggestion(reason),
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running and accessible"
	}

	if strings.Contains(lowerReason, "timeout") || strings.Contains(lowerReason, "i/o timeout") {
		return "The server may be slow or unreachable. Try again later"
	}

	return "Check your internet connection and try again"
}
