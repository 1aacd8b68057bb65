package sync

import (
	"errors"
	"testing"
	"time"
)

func TestTemplateVariables_HeaderAndCamelCase(t *testing.T) {
	headers := []string{"Due Date", "summary", ""}
	vars := TemplateVariables(headers, Row{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "Crash", "ignored"})
	if vars["Due Date"] != "2024-01-02" || vars["DueDate"] != "2024-01-02" {
		t.Errorf("Expected Due Date under both names but have: %v", vars)
	}
	if vars["Summary"] != "Crash" || vars["summary"] != "Crash" {
		t.Errorf("Expected summary under both names but have: %v", vars)
	}
	if _, ok := vars[""]; ok {
		t.Error("Expected columns without a header to be left out")
	}
}

func TestExpandTemplate(t *testing.T) {
	vars := map[string]string{
		"Title": "Hello world",
		"Area":  "User Login",
		"Due":   "2024-03-01",
		"Owner": "",
	}
	cases := map[string]string{
		"${Title}":                         "Hello world",
		"[${ Title }]":                     "[Hello world]",
		"${Missing} x":                     " x",
		"${Owner|default:unassigned}":      "unassigned",
		"${Title|truncate:5}":              "Hello",
		"${Title|upper|replace:WORLD,ALL}": "HELLO ALL",
		"${Area|snake}":                    "user_login",
		"${Area|kebab}":                    "user-login",
		"${Due|date:02 Jan 2006}":          "01 Mar 2024",
		"${Title|date:2006}":               "Hello world",
		"${Title|shout}":                   "Hello world",
		"cost $5":                          "cost $5",
	}
	for template, expected := range cases {
		if have := ExpandTemplate(template, vars); have != expected {
			t.Errorf("Expected %q to expand to %q but have: %q", template, expected, have)
		}
	}
}

func TestTicketTemplate_Apply(t *testing.T) {
	tpl := TicketTemplate{
		IssueType:   TemplateIssueType{Name: " ${Kind|default:Task} "},
		Summary:     " ${Summary} ",
		Description: "Found in ${Version}\n",
	}
	summary, description, issueType := tpl.Apply([]string{"Summary", "Version", "Kind"}, Row{"Crash", "1.2", ""})
	if summary != "Crash" || description != "Found in 1.2\n" || issueType != "Task" {
		t.Errorf("Expected Crash / Found in 1.2 / Task but have: %q / %q / %q", summary, description, issueType)
	}
}

func TestValidateTemplate(t *testing.T) {
	valid := TicketTemplate{Summary: "${Title|upper|truncate:40}", Description: "${Due|date:2006-01-02}"}
	if err := ValidateTemplate(valid); err != nil {
		t.Errorf("Expected a valid template but have: %v", err)
	}
	invalid := TicketTemplate{
		Summary:     "${Title|shout}",
		Description: "${Title|truncate:many} ${Due|date}",
		IssueType:   TemplateIssueType{Name: "${ |upper}"},
	}
	err := ValidateTemplate(invalid)
	if !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("Expected ErrInvalidTemplate but have: %v", err)
	}
	if n := len(err.(interface{ Unwrap() []error }).Unwrap()); n != 4 {
		t.Errorf("Expected 4 problems but have %d: %v", n, err)
	}
}
