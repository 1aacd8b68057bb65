package sync

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type exportedEntry struct {
	Mapped    string `yaml:"mapped"`
	Required  bool   `yaml:"required,omitempty"`
	Separator string `yaml:"separator,omitempty"`
}

type exportedConfiguration struct {
	Connection      Connection                `yaml:"connection"`
	TabSettings     map[string]TabSettings    `yaml:"tabSettings,omitempty"`
	ColumnMapping   map[string]exportedEntry  `yaml:"columnMapping,omitempty"`
	TicketTemplates map[string]TicketTemplate `yaml:"ticketTemplates,omitempty"`
}

// ExportYAML writes the configuration in the layout LoadConfigurationFromYAML reads. The API token is
// masked and every literal $ is doubled so placeholders survive the import's variable expansion.
func ExportYAML(w io.Writer, c Configuration) error {
	out := exportedConfiguration{
		Connection:      c.Settings.Connection.Masked(),
		TabSettings:     c.Settings.Tabs,
		ColumnMapping:   make(map[string]exportedEntry, len(c.Mapping)),
		TicketTemplates: make(map[string]TicketTemplate, len(c.Templates)),
	}
	for header, entry := range c.Mapping {
		e := exportedEntry{Mapped: entry.TargetName(), Required: entry.Required}
		if entry.Target.IsModifier() {
			e.Separator = escapeDollar(entry.Separator)
		}
		out.ColumnMapping[header] = e
	}
	for name, t := range c.Templates {
		out.TicketTemplates[name] = TicketTemplate{
			IssueType:   TemplateIssueType{Name: escapeDollar(t.IssueType.Name)},
			Summary:     escapeDollar(t.Summary),
			Description: escapeDollar(t.Description),
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write yaml %w", err)
	}
	return enc.Close()
}

func escapeDollar(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
