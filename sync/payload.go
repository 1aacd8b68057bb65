package sync

import (
	"errors"
	"strings"
	"time"

	"github.com/tidwall/sjson"
)

// TicketPayload is the issue-create request built from one row. It lives for a single call.
type TicketPayload struct {
	ProjectKey  string
	Summary     string
	IssueType   string
	Description string
	Priority    string
	Labels      []string
	Components  []string
	Assignee    string
	Reporter    string
	// DueDate is YYYY-MM-DD for date cells, otherwise the raw cell value.
	DueDate  interface{}
	EpicLink string
	// CustomFields are written verbatim under fields.<id>, the epic link included.
	CustomFields map[string]interface{}
	// OutputColumns are the 0-based columns mapped to ticketId; they receive the key after creation.
	OutputColumns []int
}

// BuildPayload converts a row into an issue-create payload. It repeats the summary and project key
// checks of ValidateRow so it is safe to call on an unvalidated row.
func BuildPayload(headers []string, row Row, mapping ColumnMapping, tab TabSettings) (TicketPayload, error) {
	return buildPayload(headers, row, mapping, tab, nil)
}

// BuildPayloadFromTemplate builds a payload whose summary, description and issue type come from the
// template when the template yields a value for them.
func BuildPayloadFromTemplate(tpl TicketTemplate, headers []string, row Row, mapping ColumnMapping, tab TabSettings) (TicketPayload, error) {
	return buildPayload(headers, row, mapping, tab, &tpl)
}

func buildPayload(headers []string, row Row, mapping ColumnMapping, tab TabSettings, tpl *TicketTemplate) (TicketPayload, error) {
	tab = tab.WithDefaults(TabSettings{})
	columns := ResolveColumns(headers, mapping)
	p := TicketPayload{
		ProjectKey: strings.TrimSpace(tab.ProjectKey),
		IssueType:  tab.DefaultIssueType,
	}

	// direct assignments first so that modifiers always see their base value
	for _, c := range columns {
		if c.Entry.Target == TargetTicketID {
			p.OutputColumns = append(p.OutputColumns, c.Index)
			continue
		}
		if c.Entry.Target.IsModifier() {
			continue
		}
		value := row.Cell(c.Index)
		if isEmptyCell(value) {
			continue
		}
		p.assign(c.Entry, value, tab)
	}

	if tpl != nil {
		summary, description, issueType := tpl.Apply(headers, row)
		if summary != "" {
			p.Summary = summary
		}
		if strings.TrimSpace(description) != "" {
			p.Description = description
		}
		if issueType != "" {
			p.IssueType = issueType
		}
	}

	var errs []error
	if p.Summary == "" {
		errs = append(errs, ErrMissingSummary)
	}
	if p.ProjectKey == "" {
		errs = append(errs, ErrMissingProjectKey)
	}
	if len(errs) > 0 {
		return p, errors.Join(errs...)
	}

	for _, c := range columns {
		if !c.Entry.Target.IsModifier() {
			continue
		}
		value := row.Text(c.Index)
		if value == "" {
			continue
		}
		p.modify(c.Entry, value)
	}
	return p, nil
}

func (p *TicketPayload) assign(entry MappingEntry, value interface{}, tab TabSettings) {
	text := CellString(value)
	switch entry.Target {
	case TargetSummary:
		p.Summary = text
	case TargetDescription:
		p.Description = text
	case TargetIssueType:
		p.IssueType = text
	case TargetPriority:
		p.Priority = text
	case TargetLabels:
		p.Labels = appendUnique(p.Labels, splitList(value)...)
	case TargetComponents:
		p.Components = appendUnique(p.Components, splitList(value)...)
	case TargetEpicLink:
		p.EpicLink = text
		p.SetField(tab.EpicFieldID, text)
		// every epic column gets a chance, the last parseable one decides the project
		if key, ok := ProjectKeyFromEpic(text); ok {
			p.ProjectKey = key
		}
	case TargetAssignee:
		p.Assignee = text
	case TargetReporter:
		p.Reporter = text
	case TargetDueDate:
		if t, ok := value.(time.Time); ok {
			p.DueDate = t.Format(DateLayout)
		} else {
			p.DueDate = value
		}
	case TargetCustomField:
		mapCustomField(p, entry.FieldID, value)
	}
}

func (p *TicketPayload) modify(entry MappingEntry, value string) {
	sep := entry.JoinSeparator()
	switch entry.Target {
	case TargetPrependSummary:
		p.Summary = prependTo(p.Summary, value, sep)
	case TargetAppendSummary:
		p.Summary = appendTo(p.Summary, value, sep)
	case TargetPrependDescription:
		p.Description = prependTo(p.Description, value, sep)
	case TargetAppendDescription:
		p.Description = appendTo(p.Description, value, sep)
	}
}

func prependTo(base, value, sep string) string {
	if base == "" {
		return value
	}
	return value + sep + base
}

func appendTo(base, value, sep string) string {
	if base == "" {
		return value
	}
	return base + sep + value
}

// splitList turns "Auth, UI" into ["Auth", "UI"]. A cell that already holds a list is used as is.
func splitList(value interface{}) []string {
	if list, ok := value.([]string); ok {
		return list
	}
	var result []string
	for _, piece := range strings.Split(CellString(value), ",") {
		if piece = strings.TrimSpace(piece); piece != "" {
			result = append(result, piece)
		}
	}
	return result
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}

func isEmptyCell(v interface{}) bool {
	if list, ok := v.([]string); ok {
		return len(list) == 0
	}
	return CellString(v) == ""
}

// MarshalJSON renders the {"fields": {...}} body of POST /rest/api/2/issue.
func (p TicketPayload) MarshalJSON() ([]byte, error) {
	body := []byte(`{"fields":{}}`)
	var err error
	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		body, err = sjson.SetBytes(body, path, value)
	}
	set("fields.project.key", p.ProjectKey)
	set("fields.summary", p.Summary)
	set("fields.issuetype.name", p.IssueType)
	if p.Description != "" {
		set("fields.description", p.Description)
	}
	if p.Priority != "" {
		set("fields.priority.name", p.Priority)
	}
	if len(p.Labels) > 0 {
		set("fields.labels", p.Labels)
	}
	if len(p.Components) > 0 {
		components := make([]map[string]string, len(p.Components))
		for i, c := range p.Components {
			components[i] = map[string]string{"name": c}
		}
		set("fields.components", components)
	}
	if p.Assignee != "" {
		set("fields.assignee.name", p.Assignee)
	}
	if p.Reporter != "" {
		set("fields.reporter.name", p.Reporter)
	}
	if p.DueDate != nil {
		set("fields.duedate", p.DueDate)
	}
	for id, value := range p.CustomFields {
		set("fields."+escapePathComponent(id), value)
	}
	return body, err
}

// escapePathComponent escapes characters that sjson would read as path syntax.
func escapePathComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
