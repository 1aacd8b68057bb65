package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/config"
)

const (
	DefaultIssueType   = "Task"
	DefaultEpicFieldID = "customfield_10014"
	DefaultHeaderRow   = 1
)

// Connection holds the Jira instance and the credentials used for every call.
type Connection struct {
	BaseURL      string `yaml:"jiraUrl" json:"jiraUrl"`
	AccountEmail string `yaml:"jiraEmail" json:"jiraEmail"`
	APIToken     string `yaml:"jiraApiToken" json:"jiraApiToken"`
}

// Validate fails with ErrNotConfigured naming every missing setting.
func (c Connection) Validate() error {
	var missing []string
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "jiraUrl")
	}
	if strings.TrimSpace(c.AccountEmail) == "" {
		missing = append(missing, "jiraEmail")
	}
	if strings.TrimSpace(c.APIToken) == "" {
		missing = append(missing, "jiraApiToken")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// BrowseURL is the link written next to a created ticket.
func (c Connection) BrowseURL(key string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/browse/" + key
}

// MaskedToken stands in for the API token wherever the connection is shown or exported.
const MaskedToken = "********"

// Masked returns a copy safe to show or export.
func (c Connection) Masked() Connection {
	if c.APIToken != "" {
		c.APIToken = MaskedToken
	}
	return c
}

// Merge overlays the non-empty values of update. A masked token keeps the current one.
func (c Connection) Merge(update Connection) Connection {
	if v := strings.TrimRight(strings.TrimSpace(update.BaseURL), "/"); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(update.AccountEmail); v != "" {
		c.AccountEmail = v
	}
	if v := strings.TrimSpace(update.APIToken); v != "" && v != MaskedToken {
		c.APIToken = v
	}
	return c
}

// TabSettings are the per sheet-tab parameters.
type TabSettings struct {
	ProjectKey       string `yaml:"jiraProject" json:"jiraProject"`
	DefaultIssueType string `yaml:"defaultIssueType" json:"defaultIssueType"`
	EpicFieldID      string `yaml:"epicFieldId" json:"epicFieldId"`
	// HeaderRow is the 1-based row holding the column headers (1 or 2).
	HeaderRow int `yaml:"headerRow,omitempty" json:"headerRow,omitempty"`
}

// WithDefaults fills unset values from defaults, then from the package defaults.
func (t TabSettings) WithDefaults(defaults TabSettings) TabSettings {
	if t.DefaultIssueType == "" {
		t.DefaultIssueType = defaults.DefaultIssueType
	}
	if t.EpicFieldID == "" {
		t.EpicFieldID = defaults.EpicFieldID
	}
	if t.HeaderRow == 0 {
		t.HeaderRow = defaults.HeaderRow
	}
	if t.DefaultIssueType == "" {
		t.DefaultIssueType = DefaultIssueType
	}
	if t.EpicFieldID == "" {
		t.EpicFieldID = DefaultEpicFieldID
	}
	if t.HeaderRow < 1 {
		t.HeaderRow = DefaultHeaderRow
	}
	return t
}

// Settings is the connection plus the settings of every tab.
type Settings struct {
	Connection Connection
	Tabs       map[string]TabSettings
}

// Tab returns the settings for a tab with defaults applied. Unknown tabs get defaults only.
func (s Settings) Tab(name string) TabSettings {
	return s.Tabs[name].WithDefaults(TabSettings{})
}

// Configuration is everything an operation needs, passed explicitly rather than read from globals.
type Configuration struct {
	Settings  Settings
	Mapping   ColumnMapping
	Templates map[string]TicketTemplate
}

// Template looks up a ticket template by name.
func (c Configuration) Template(name string) (TicketTemplate, error) {
	t, ok := c.Templates[name]
	if !ok {
		return TicketTemplate{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return t, nil
}

type CompositeEnvVar interface {
	LookupEnv(child string) (string, bool)
}

// JSONCompositeEnvVar looks values up inside a single environment variable holding a JSON object,
// falling back to the plain environment.
type JSONCompositeEnvVar struct {
	Parent string
}

func (c JSONCompositeEnvVar) LookupEnv(child string) (string, bool) {
	if c.Parent != "" {
		s := os.Getenv(c.Parent)
		if s != "" {
			m := make(map[string]string)
			err := json.Unmarshal([]byte(s), &m)
			if err == nil {
				if v, exists := m[child]; exists {
					return v, true
				}
			}
		}
	}
	return os.LookupEnv(child)
}

// yamlMappingEntry accepts either a bare target name or the {mapped, required, separator} object.
type yamlMappingEntry struct {
	Mapped    string
	Required  bool
	Separator string
}

func (e *yamlMappingEntry) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		e.Mapped = s
		return nil
	}
	var obj struct {
		Mapped    string `yaml:"mapped"`
		Required  bool   `yaml:"required"`
		Separator string `yaml:"separator"`
	}
	if err := unmarshal(&obj); err != nil {
		return err
	}
	e.Mapped, e.Required, e.Separator = obj.Mapped, obj.Required, obj.Separator
	return nil
}

type YAMLSettingsUnmarshaler struct{}

// Unmarshal layers the sources in order (later sources win) and expands ${VAR} references
// through compev. Tabs inherit anything they leave unset from the tabDefaults section.
func (u YAMLSettingsUnmarshaler) Unmarshal(compev CompositeEnvVar, sources ...SettingsFile) (Configuration, error) {
	var result Configuration
	var options []config.YAMLOption
	for _, s := range sources {
		if s.Length > 0 {
			options = append(options, config.Source(s.Reader))
		}
	}
	options = append(options, config.Expand(compev.LookupEnv))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml config %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml config %w", key, cause)
	}

	key := "connection"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Settings.Connection)
		if err != nil {
			return result, readError(key, err)
		}
	}
	result.Settings.Connection.BaseURL = strings.TrimRight(result.Settings.Connection.BaseURL, "/")

	var tabDefaults TabSettings
	key = "tabDefaults"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&tabDefaults)
		if err != nil {
			return result, readError(key, err)
		}
	}
	key = "tabSettings"
	result.Settings.Tabs = make(map[string]TabSettings)
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Settings.Tabs)
		if err != nil {
			return result, readError(key, err)
		}
	}
	for name, tab := range result.Settings.Tabs {
		result.Settings.Tabs[name] = tab.WithDefaults(tabDefaults)
	}

	key = "columnMapping"
	result.Mapping = make(ColumnMapping)
	if yaml.Get(key).HasValue() {
		raw := make(map[string]yamlMappingEntry)
		err = yaml.Get(key).Populate(&raw)
		if err != nil {
			return result, readError(key, err)
		}
		for header, e := range raw {
			entry := MappingEntry{Required: e.Required, Separator: e.Separator}
			entry.Target, entry.FieldID, err = ParseTarget(e.Mapped)
			if err != nil {
				return result, readError(key, fmt.Errorf("column %q: %w", header, err))
			}
			result.Mapping[strings.TrimSpace(header)] = entry
		}
	}

	key = "ticketTemplates"
	result.Templates = make(map[string]TicketTemplate)
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Templates)
		if err != nil {
			return result, readError(key, err)
		}
	}

	return result, nil
}
