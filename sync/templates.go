package sync

import (
	"log"
	"regexp"
	"strings"

	"github.com/iancoleman/strcase"
)

// TicketTemplate is a named preset for templated ticket creation. Summary and description may hold
// ${VarName} placeholders filled from the row being created.
type TicketTemplate struct {
	IssueType   TemplateIssueType `yaml:"issuetype" json:"issuetype"`
	Summary     string            `yaml:"summary" json:"summary"`
	Description string            `yaml:"description" json:"description"`
}

type TemplateIssueType struct {
	Name string `yaml:"name" json:"name"`
}

var placeholderPattern = regexp.MustCompile(`\$\{([^{}]+)\}`)

// TemplateVariables exposes every non-empty cell of a row under its header text and under the
// CamelCase form of the header, so "Due Date" is reachable as ${Due Date} and ${DueDate}.
func TemplateVariables(headers []string, row Row) map[string]string {
	vars := make(map[string]string)
	for i, h := range headers {
		header := strings.TrimSpace(h)
		if header == "" {
			continue
		}
		value := row.Text(i)
		vars[header] = value
		if camel := strcase.ToCamel(header); camel != "" {
			if _, exists := vars[camel]; !exists {
				vars[camel] = value
			}
		}
	}
	return vars
}

// ExpandTemplate replaces ${VarName} placeholders, applying any |transform that follows the name.
// Unknown variables expand to an empty string.
func ExpandTemplate(s string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		name, transforms := parsePlaceholder(m[2 : len(m)-1])
		value := vars[name]
		for _, transform := range transforms {
			var err error
			if value, err = applyTransform(value, transform); err != nil {
				log.Printf("Warning: %s in %s", err, m)
			}
		}
		return value
	})
}

// Apply expands the template against a row.
func (t TicketTemplate) Apply(headers []string, row Row) (summary, description, issueType string) {
	vars := TemplateVariables(headers, row)
	return strings.TrimSpace(ExpandTemplate(t.Summary, vars)),
		ExpandTemplate(t.Description, vars),
		strings.TrimSpace(ExpandTemplate(t.IssueType.Name, vars))
}
