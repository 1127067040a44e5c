package drive

import (
	"errors"
	"fmt"
)

// AuthError reports that no usable bearer token could be obtained: the
// authorization flow failed or was cancelled, or the provider rejected the
// token even after the single re-authentication attempt.
type AuthError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("not authenticated: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("not authenticated: %s", e.Reason)
}

// Unwrap returns the underlying error for error chain support.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// UploadError reports a failed snapshot upload. Status is the non-2xx HTTP
// status when the provider rejected the request; Err carries transport
// failures such as timeouts.
type UploadError struct {
	Status int
	Err    error
}

// Error implements the error interface.
func (e *UploadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upload rejected by provider: status %d", e.Status)
	}
	return fmt.Sprintf("upload failed: %v", e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *UploadError) Unwrap() error {
	return e.Err
}

// ListError reports a failed backup listing.
type ListError struct {
	Status int
	Err    error
}

// Error implements the error interface.
func (e *ListError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("listing rejected by provider: status %d", e.Status)
	}
	return fmt.Sprintf("listing failed: %v", e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *ListError) Unwrap() error {
	return e.Err
}

// DownloadError reports a failed snapshot download.
type DownloadError struct {
	FileID string
	Status int
	Err    error
}

// Error implements the error interface.
func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download of %s rejected by provider: status %d", e.FileID, e.Status)
	}
	return fmt.Sprintf("download of %s failed: %v", e.FileID, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *DownloadError) Unwrap() error {
	return e.Err
}

// isAuthErr reports whether err is an AuthError anywhere in its chain
func isAuthErr(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
