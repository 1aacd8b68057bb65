package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAuth struct {
	tested []Connection
}

func (a *testAuth) TestAuth(ctx context.Context, conn Connection) (string, error) {
	a.tested = append(a.tested, conn)
	if err := conn.Validate(); err != nil {
		return "", err
	}
	if conn.APIToken != "secret" {
		return "", ErrAuthFailed
	}
	return "Jo Doe", nil
}

func newTestConfigServer(t *testing.T) (*ConfigServer, *testAuth) {
	t.Helper()
	auth := &testAuth{}
	store := SettingsStore{Properties: NewMemoryPropertyStore()}
	return NewConfigServer(store, auth.TestAuth), auth
}

func serve(s *ConfigServer, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestConfigServer_Connection(t *testing.T) {
	s, auth := newTestConfigServer(t)

	w := serve(s, http.MethodPost, "/api/connection/test", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unconfigured connection but have: %d %s", w.Code, w.Body)
	}

	w = serve(s, http.MethodPut, "/api/connection", `{"jiraUrl":"https://acme.atlassian.net/","jiraEmail":"me@acme.com","jiraApiToken":"secret"}`)
	if w.Code != http.StatusOK || gjson.Get(w.Body.String(), "jiraApiToken").String() != MaskedToken {
		t.Errorf("Expected 200 with a masked token but have: %d %s", w.Code, w.Body)
	}

	// a masked token sent back keeps the stored one
	serve(s, http.MethodPut, "/api/connection", `{"jiraEmail":"ops@acme.com","jiraApiToken":"********"}`)
	w = serve(s, http.MethodPost, "/api/connection/test", "")
	if w.Code != http.StatusOK || gjson.Get(w.Body.String(), "displayName").String() != "Jo Doe" {
		t.Errorf("Expected 200 with the display name but have: %d %s", w.Code, w.Body)
	}
	last := auth.tested[len(auth.tested)-1]
	if last.BaseURL != "https://acme.atlassian.net" || last.AccountEmail != "ops@acme.com" || last.APIToken != "secret" {
		t.Errorf("Expected the stored connection to be tested but have: %+v", last)
	}

	w = serve(s, http.MethodPost, "/api/connection/test", `{"jiraApiToken":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a rejected token but have: %d %s", w.Code, w.Body)
	}
	w = serve(s, http.MethodGet, "/api/connection", "")
	if gjson.Get(w.Body.String(), "jiraEmail").String() != "ops@acme.com" || strings.Contains(w.Body.String(), "secret") {
		t.Errorf("Expected the saved, masked connection but have: %s", w.Body)
	}

	if w := serve(s, http.MethodPut, "/api/connection", `{"jiraUrl":`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed json but have: %d", w.Code)
	}
}

func TestConfigServer_Tabs(t *testing.T) {
	s, _ := newTestConfigServer(t)

	w := serve(s, http.MethodPut, "/api/tabs/Bugs", `{"jiraProject":" BUG ","headerRow":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 but have: %d %s", w.Code, w.Body)
	}
	w = serve(s, http.MethodGet, "/api/tabs/Bugs", "")
	res := gjson.Parse(w.Body.String())
	if res.Get("jiraProject").String() != "BUG" || res.Get("headerRow").Int() != 2 || res.Get("defaultIssueType").String() != "Task" {
		t.Errorf("Expected BUG with header row 2 and defaults but have: %s", w.Body)
	}
	if w := serve(s, http.MethodPut, "/api/tabs/Bugs", `{"headerRow":3}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for header row 3 but have: %d", w.Code)
	}
}

func TestConfigServer_Mapping(t *testing.T) {
	s, _ := newTestConfigServer(t)

	w := serve(s, http.MethodPut, "/api/mapping", `{"Title":"summary","Urgency":{"mapped":"prependSummary","separator":" - "}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 but have: %d %s", w.Code, w.Body)
	}
	if w := serve(s, http.MethodPut, "/api/mapping", `{"Title":"headline"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown target but have: %d", w.Code)
	}
	w = serve(s, http.MethodPut, "/api/mapping/Owner", `{"mapped":"assignee","required":true}`)
	if w.Code != http.StatusOK || !gjson.Get(w.Body.String(), "Owner.required").Bool() {
		t.Errorf("Expected Owner to be added as required but have: %d %s", w.Code, w.Body)
	}
	if w := serve(s, http.MethodDelete, "/api/mapping/Title", ""); w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 but have: %d", w.Code)
	}
	if w := serve(s, http.MethodDelete, "/api/mapping/Title", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a deleted header but have: %d", w.Code)
	}

	w = serve(s, http.MethodGet, "/api/mapping", "")
	res := gjson.Parse(w.Body.String())
	if res.Get("Title").Exists() || res.Get("Urgency.separator").String() != " - " || res.Get("Owner.mapped").String() != "assignee" {
		t.Errorf("Expected Urgency and Owner only but have: %s", w.Body)
	}
}

func TestConfigServer_Templates(t *testing.T) {
	s, _ := newTestConfigServer(t)

	w := serve(s, http.MethodPut, "/api/templates/incident", `{"summary":"Incident: ${Title|upper}","issuetype":{"name":"Bug"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 but have: %d %s", w.Code, w.Body)
	}
	if w := serve(s, http.MethodPut, "/api/templates/broken", `{"summary":"${Title|shout}"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown transform but have: %d", w.Code)
	}
	w = serve(s, http.MethodGet, "/api/templates", "")
	res := gjson.Parse(w.Body.String())
	if res.Get("incident.issuetype.name").String() != "Bug" || res.Get("broken").Exists() {
		t.Errorf("Expected only the incident template but have: %s", w.Body)
	}
	if w := serve(s, http.MethodDelete, "/api/templates/incident", ""); w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 but have: %d", w.Code)
	}
	if w := serve(s, http.MethodDelete, "/api/templates/incident", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a deleted template but have: %d", w.Code)
	}
}
