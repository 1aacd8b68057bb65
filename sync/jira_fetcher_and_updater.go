package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"
)

// CreatedTicket is what Jira returns for a created issue.
type CreatedTicket struct {
	ID   string
	Key  string
	Self string
}

// FetchedTicket is the part of an issue the sync reads back.
type FetchedTicket struct {
	Key     string
	Status  string
	Summary string
}

// Tracker is the issue tracker the controller talks to.
type Tracker interface {
	CreateTicket(ctx context.Context, payload TicketPayload) (CreatedTicket, error)
	GetTicket(ctx context.Context, key string) (FetchedTicket, error)
}

// JiraFetcherAndUpdater handles all Jira REST API operations.
// It embeds *SyncContext for the connection settings of the run.
type JiraFetcherAndUpdater struct {
	*SyncContext
}

// JiraAPIBuilder returns a new requests.Builder authenticated against the configured Jira instance.
// It fails with ErrNotConfigured before any network activity when the connection is incomplete.
func (j JiraFetcherAndUpdater) JiraAPIBuilder() (*requests.Builder, error) {
	conn := j.Config.Settings.Connection
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	base := strings.TrimRight(conn.BaseURL, "/") + "/"
	result := requests.
		URL(base).
		Client(&http.Client{Timeout: HTTPRequestTimeout}).
		BasicAuth(conn.AccountEmail, conn.APIToken).
		Header("User-Agent", UserAgent).
		Accept("application/json")
	if j.RecordRequests {
		tab := j.Tab
		if tab == "" {
			tab = "default"
		}
		result = result.Transport(requests.Record(nil, filepath.Join("testdata", ".requests", tab)))
	}
	return result, nil
}

// captureFailure records the status and body of a response that failed validation.
func captureFailure(status *int, body *string) requests.ResponseHandler {
	return func(res *http.Response) error {
		*status = res.StatusCode
		return requests.ToString(body)(res)
	}
}

// CreateTicket posts the payload to /rest/api/2/issue. Anything but 201 Created is a CreateFailedError
// carrying Jira's response body.
func (j JiraFetcherAndUpdater) CreateTicket(ctx context.Context, payload TicketPayload) (CreatedTicket, error) {
	var result CreatedTicket
	builder, err := j.JiraAPIBuilder()
	if err != nil {
		return result, err
	}

	var status int
	var failure string
	var buf bytes.Buffer
	err = builder.
		Path("rest/api/2/issue").
		BodyJSON(payload).
		Post().
		AddValidator(requests.ValidatorHandler(
			requests.CheckStatus(http.StatusCreated),
			captureFailure(&status, &failure),
		)).
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		if status != 0 {
			return result, &CreateFailedError{StatusCode: status, Body: strings.TrimSpace(failure)}
		}
		return result, fmt.Errorf("failed to create issue %w", err)
	}

	res := gjson.ParseBytes(buf.Bytes())
	result.ID = res.Get("id").String()
	result.Key = res.Get("key").String()
	result.Self = res.Get("self").String()
	if result.Key == "" {
		return result, &CreateFailedError{StatusCode: http.StatusCreated, Body: "response has no issue key: " + buf.String()}
	}
	return result, nil
}

// GetTicket reads an issue's status and summary.
func (j JiraFetcherAndUpdater) GetTicket(ctx context.Context, key string) (FetchedTicket, error) {
	result := FetchedTicket{Key: key}
	builder, err := j.JiraAPIBuilder()
	if err != nil {
		return result, err
	}

	var status int
	var failure string
	var buf bytes.Buffer
	err = builder.
		Path("rest/api/2/issue/"+url.PathEscape(key)).
		Param("fields", "status,summary").
		AddValidator(requests.ValidatorHandler(
			requests.CheckStatus(http.StatusOK),
			captureFailure(&status, &failure),
		)).
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		return result, &FetchFailedError{Key: key, StatusCode: status, Err: err}
	}

	res := gjson.ParseBytes(buf.Bytes())
	result.Status = res.Get("fields.status.name").String()
	result.Summary = res.Get("fields.summary").String()
	return result, nil
}

// TestAuth calls /rest/api/2/myself and returns the display name of the authenticated account.
func (j JiraFetcherAndUpdater) TestAuth(ctx context.Context) (string, error) {
	builder, err := j.JiraAPIBuilder()
	if err != nil {
		return "", err
	}

	var status int
	var failure string
	var buf bytes.Buffer
	err = builder.
		Path("rest/api/2/myself").
		AddValidator(requests.ValidatorHandler(
			requests.CheckStatus(http.StatusOK),
			captureFailure(&status, &failure),
		)).
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		if status != 0 {
			return "", fmt.Errorf("%w: status %d", ErrAuthFailed, status)
		}
		return "", errors.Join(ErrAuthFailed, err)
	}
	return gjson.GetBytes(buf.Bytes(), "displayName").String(), nil
}
