package sync

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tidwall/gjson"
)

func newTestJira(t *testing.T, handler http.HandlerFunc) (JiraFetcherAndUpdater, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "me@acme.com" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	sc := &SyncContext{Config: Configuration{Settings: Settings{Connection: Connection{
		BaseURL:      srv.URL + "/",
		AccountEmail: "me@acme.com",
		APIToken:     "secret",
	}}}}
	return JiraFetcherAndUpdater{SyncContext: sc}, &hits
}

func TestJiraFetcherAndUpdater_CreateTicket(t *testing.T) {
	var body string
	jira, _ := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/api/2/issue" {
			t.Errorf("Expected POST /rest/api/2/issue but have: %s %s", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"10001","key":"PROJ-1","self":"https://acme.atlassian.net/rest/api/2/issue/10001"}`)
	})

	created, err := jira.CreateTicket(context.Background(), TicketPayload{ProjectKey: "PROJ", Summary: "Fix", IssueType: "Task"})
	if err != nil {
		t.Fatal(err)
	}
	if created.Key != "PROJ-1" || created.ID != "10001" {
		t.Errorf("Expected PROJ-1 / 10001 but have: %+v", created)
	}
	if gjson.Get(body, "fields.project.key").String() != "PROJ" || gjson.Get(body, "fields.summary").String() != "Fix" {
		t.Errorf("Expected the payload to be sent but have: %s", body)
	}
}

func TestJiraFetcherAndUpdater_CreateTicketRejected(t *testing.T) {
	jira, _ := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"errorMessages":[],"errors":{"components":"Component name 'Nope' is not valid"}}`)
	})

	_, err := jira.CreateTicket(context.Background(), TicketPayload{ProjectKey: "PROJ", Summary: "Fix"})
	var failed *CreateFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Expected a CreateFailedError but have: %v", err)
	}
	if failed.StatusCode != http.StatusBadRequest || !strings.Contains(failed.Body, "Component name 'Nope'") {
		t.Errorf("Expected status 400 with Jira's body but have: %d %s", failed.StatusCode, failed.Body)
	}
}

func TestJiraFetcherAndUpdater_NotConfiguredMakesNoRequest(t *testing.T) {
	jira, hits := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {})
	jira.Config.Settings.Connection.APIToken = ""

	_, err := jira.CreateTicket(context.Background(), TicketPayload{ProjectKey: "PROJ", Summary: "Fix"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured but have: %v", err)
	}
	if _, err := jira.GetTicket(context.Background(), "PROJ-1"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured but have: %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 0 {
		t.Errorf("Expected no requests but have: %d", n)
	}
}

func TestJiraFetcherAndUpdater_GetTicket(t *testing.T) {
	jira, _ := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/PROJ-7" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if fields := r.URL.Query().Get("fields"); fields != "status,summary" {
			t.Errorf("Expected fields=status,summary but have: %s", fields)
		}
		io.WriteString(w, `{"key":"PROJ-7","fields":{"summary":"Fix","status":{"name":"In Progress"}}}`)
	})

	fetched, err := jira.GetTicket(context.Background(), "PROJ-7")
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != "In Progress" || fetched.Summary != "Fix" {
		t.Errorf("Expected In Progress / Fix but have: %+v", fetched)
	}

	_, err = jira.GetTicket(context.Background(), "PROJ-404")
	var failed *FetchFailedError
	if !errors.As(err, &failed) || failed.StatusCode != http.StatusNotFound || failed.Key != "PROJ-404" {
		t.Errorf("Expected a 404 FetchFailedError for PROJ-404 but have: %v", err)
	}
}

func TestJiraFetcherAndUpdater_TestAuth(t *testing.T) {
	jira, _ := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"accountId":"abc","displayName":"Jo Doe"}`)
	})
	name, err := jira.TestAuth(context.Background())
	if err != nil || name != "Jo Doe" {
		t.Errorf("Expected Jo Doe but have: %q %v", name, err)
	}

	jira.Config.Settings.Connection.APIToken = "wrong"
	if _, err := jira.TestAuth(context.Background()); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed but have: %v", err)
	}
}
