package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned before any network call when the Jira URL, email or API token is missing.
	ErrNotConfigured = errors.New("jira connection is not configured")
	// ErrAuthFailed is returned when the credentials are rejected by Jira.
	ErrAuthFailed        = errors.New("jira authentication failed")
	ErrMissingSummary    = errors.New("missing summary")
	ErrMissingProjectKey = errors.New("missing project key")
	ErrEmptyRow          = errors.New("row is empty")
	ErrTemplateNotFound  = errors.New("ticket template not found")
	ErrInvalidMapping    = errors.New("invalid column mapping")
)

// CreateFailedError is returned when Jira answers an issue create with anything other than 201 Created.
// The response body is kept so the user can see Jira's own explanation.
type CreateFailedError struct {
	StatusCode int
	Body       string
}

func (e *CreateFailedError) Error() string {
	return fmt.Sprintf("failed to create issue, status %d: %s", e.StatusCode, e.Body)
}

// FetchFailedError is returned when an issue cannot be read back from Jira.
// StatusCode is zero when the request never got a response.
type FetchFailedError struct {
	Key        string
	StatusCode int
	Err        error
}

func (e *FetchFailedError) Error() string {
	if e.StatusCode == 0 && e.Err != nil {
		return fmt.Sprintf("failed to fetch issue %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("failed to fetch issue %s, status %d", e.Key, e.StatusCode)
}

func (e *FetchFailedError) Unwrap() error { return e.Err }

type MissingRequiredFieldError struct {
	Column string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Column)
}
