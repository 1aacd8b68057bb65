package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/homemade/sheetjira/sync"
)

const configUsage = `Usage:
  sheetjira config show
  sheetjira config import FILE.yaml
  sheetjira config export [FILE.yaml]
  sheetjira config set-connection [--url URL] [--email EMAIL] [--token TOKEN]
  sheetjira config set-tab TAB [--project KEY] [--issue-type NAME] [--epic-field ID] [--header-row 1|2]
  sheetjira config map HEADER TARGET [--required] [--separator SEP]
  sheetjira config unmap HEADER
  sheetjira config template NAME [--summary S] [--description D] [--issue-type T] [--delete]
  sheetjira config doc [--tab TAB] [--workbook FILE.xlsx]
`

func runConfig(opts globalOptions, args []string) error {
	if len(args) == 0 || args[0] == "help" {
		fmt.Fprint(os.Stderr, configUsage)
		return nil
	}
	store, props, err := openSettings(opts)
	if err != nil {
		return err
	}
	defer props.Close()

	command, args := args[0], args[1:]
	switch command {
	case "show":
		return configShow(store, os.Stdout)
	case "import":
		return configImport(store, args)
	case "export":
		return configExport(store, args)
	case "set-connection":
		return configSetConnection(store, args)
	case "set-tab":
		return configSetTab(store, args)
	case "map":
		return configMap(store, args)
	case "unmap":
		return configUnmap(store, args)
	case "template":
		return configTemplate(store, args)
	case "doc":
		return configDoc(store, args)
	}
	fmt.Fprint(os.Stderr, configUsage)
	return fmt.Errorf("unknown config command %q", command)
}

func configShow(store sync.SettingsStore, w io.Writer) error {
	config, err := store.Load()
	if err != nil {
		return err
	}
	config.Settings.Connection = sync.ConnectionFromEnvironment(config.Settings.Connection)
	out := map[string]interface{}{
		"connection":      config.Settings.Connection.Masked(),
		"tabSettings":     config.Settings.Tabs,
		"columnMapping":   config.Mapping,
		"ticketTemplates": config.Templates,
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// configImport merges a YAML configuration into the store. Imported values win; a masked token
// keeps the stored one.
func configImport(store sync.SettingsStore, args []string) error {
	if len(args) != 1 {
		return errors.New("import needs exactly one YAML file")
	}
	file, err := sync.ReadSettingsFile(args[0])
	if err != nil {
		return err
	}
	imported, err := sync.LoadConfigurationFromYAML(sync.DefaultEmbeddedSettings, file)
	if err != nil {
		return err
	}
	return store.Update(func(config *sync.Configuration) error {
		config.Settings.Connection = config.Settings.Connection.Merge(imported.Settings.Connection)
		for name, tab := range imported.Settings.Tabs {
			config.Settings.Tabs[name] = tab
		}
		for header, entry := range imported.Mapping {
			config.Mapping[header] = entry
		}
		for name, tpl := range imported.Templates {
			config.Templates[name] = tpl
		}
		return nil
	})
}

func configExport(store sync.SettingsStore, args []string) error {
	config, err := store.Load()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return sync.ExportYAML(os.Stdout, config)
	}
	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create %s %w", args[0], err)
	}
	if err := sync.ExportYAML(f, config); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func configSetConnection(store sync.SettingsStore, args []string) error {
	flags := pflag.NewFlagSet("set-connection", pflag.ContinueOnError)
	var update sync.Connection
	flags.StringVar(&update.BaseURL, "url", "", "Jira base URL, e.g. https://acme.atlassian.net")
	flags.StringVar(&update.AccountEmail, "email", "", "Jira account email")
	flags.StringVar(&update.APIToken, "token", "", "Jira API token")
	if err := flags.Parse(args); err != nil {
		return err
	}
	return store.Update(func(config *sync.Configuration) error {
		config.Settings.Connection = config.Settings.Connection.Merge(update)
		return nil
	})
}

func configSetTab(store sync.SettingsStore, args []string) error {
	flags := pflag.NewFlagSet("set-tab", pflag.ContinueOnError)
	project := flags.String("project", "", "Jira project key")
	issueType := flags.String("issue-type", "", "default issue type")
	epicField := flags.String("epic-field", "", "epic link custom field id")
	headerRow := flags.Int("header-row", 0, "row holding the headers (1 or 2)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("set-tab needs the tab name")
	}
	if *headerRow < 0 || *headerRow > 2 {
		return errors.New("--header-row must be 1 or 2")
	}
	name := flags.Arg(0)
	return store.Update(func(config *sync.Configuration) error {
		tab := config.Settings.Tabs[name]
		if flags.Changed("project") {
			tab.ProjectKey = strings.TrimSpace(*project)
		}
		if flags.Changed("issue-type") {
			tab.DefaultIssueType = *issueType
		}
		if flags.Changed("epic-field") {
			tab.EpicFieldID = *epicField
		}
		if flags.Changed("header-row") {
			tab.HeaderRow = *headerRow
		}
		config.Settings.Tabs[name] = tab
		return nil
	})
}

func configMap(store sync.SettingsStore, args []string) error {
	flags := pflag.NewFlagSet("map", pflag.ContinueOnError)
	required := flags.Bool("required", false, "rows must fill this column")
	separator := flags.String("separator", "", "separator for prepend/append targets")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 2 {
		return errors.New("map needs HEADER and TARGET")
	}
	target, fieldID, err := sync.ParseTarget(flags.Arg(1))
	if err != nil {
		return err
	}
	header := strings.TrimSpace(flags.Arg(0))
	entry := sync.MappingEntry{Target: target, FieldID: fieldID, Required: *required, Separator: *separator}
	return store.Update(func(config *sync.Configuration) error {
		config.Mapping[header] = entry
		return nil
	})
}

func configUnmap(store sync.SettingsStore, args []string) error {
	if len(args) != 1 {
		return errors.New("unmap needs HEADER")
	}
	header := strings.TrimSpace(args[0])
	return store.Update(func(config *sync.Configuration) error {
		if _, ok := config.Mapping[header]; !ok {
			return fmt.Errorf("column %q is not mapped", header)
		}
		delete(config.Mapping, header)
		return nil
	})
}

func configTemplate(store sync.SettingsStore, args []string) error {
	flags := pflag.NewFlagSet("template", pflag.ContinueOnError)
	summary := flags.String("summary", "", "summary, may use ${Header} placeholders")
	description := flags.String("description", "", "description, may use ${Header} placeholders")
	issueType := flags.String("issue-type", "", "issue type name")
	remove := flags.Bool("delete", false, "delete the template")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("template needs NAME")
	}
	name := flags.Arg(0)
	return store.Update(func(config *sync.Configuration) error {
		if *remove {
			if _, err := config.Template(name); err != nil {
				return err
			}
			delete(config.Templates, name)
			return nil
		}
		tpl := config.Templates[name]
		if flags.Changed("summary") {
			tpl.Summary = *summary
		}
		if flags.Changed("description") {
			tpl.Description = *description
		}
		if flags.Changed("issue-type") {
			tpl.IssueType.Name = *issueType
		}
		if err := sync.ValidateTemplate(tpl); err != nil {
			return err
		}
		config.Templates[name] = tpl
		return nil
	})
}

func configDoc(store sync.SettingsStore, args []string) error {
	flags := pflag.NewFlagSet("doc", pflag.ContinueOnError)
	var s sheetFlags
	s.register(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}
	config, err := store.Load()
	if err != nil {
		return err
	}
	var headers []string
	if s.workbook != "" {
		wb, sheet, err := s.open()
		if err != nil {
			return err
		}
		defer wb.Close()
		rows, err := sheet.Rows()
		if err != nil {
			return err
		}
		headerRow := config.Settings.Tab(s.tab).HeaderRow
		if len(rows) >= headerRow {
			for _, v := range rows[headerRow-1] {
				headers = append(headers, sync.CellString(v))
			}
		}
	}
	out, err := sync.GenerateMappingDocumentation(config, s.tab, headers).FormatCSV()
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
