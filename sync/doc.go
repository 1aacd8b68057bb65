package sync

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
)

// MappingDocRow represents a single row in the column mapping documentation.
type MappingDocRow struct {
	Header    string // Column header as it appears in the sheet
	Target    string // Persisted target name (e.g., "summary", "customfield_10020")
	Required  bool
	Separator string // Only set for prepend/append targets
	Implicit  bool   // Resolved from the literal header rather than a mapping entry
	Notes     string
}

// MappingDocumentation contains the mapping documentation for one tab.
type MappingDocumentation struct {
	Tab  string
	Rows []MappingDocRow
}

// GenerateMappingDocumentation documents how every column reaches Jira. When headers are given, the
// rows follow the sheet and include implicit and reserved columns; otherwise every mapping entry is
// listed alphabetically.
func GenerateMappingDocumentation(config Configuration, tab string, headers []string) MappingDocumentation {
	doc := MappingDocumentation{Tab: tab, Rows: []MappingDocRow{}}
	settings := config.Settings.Tab(tab)

	if len(headers) == 0 {
		for _, header := range config.Mapping.Headers() {
			doc.Rows = append(doc.Rows, createMappingDocRow(header, config.Mapping[header], false, settings))
		}
		return doc
	}

	resolved := make(map[int]ResolvedColumn)
	for _, c := range ResolveColumns(headers, config.Mapping) {
		resolved[c.Index] = c
	}
	for i, raw := range headers {
		header := strings.TrimSpace(raw)
		if header == "" {
			continue
		}
		if isReservedHeader(header) {
			doc.Rows = append(doc.Rows, MappingDocRow{Header: header, Target: TargetNone.String(), Notes: reservedNote(header)})
			continue
		}
		c, ok := resolved[i]
		if !ok {
			doc.Rows = append(doc.Rows, MappingDocRow{Header: header, Target: TargetNone.String(), Notes: "Not sent to Jira"})
			continue
		}
		explicit, hasEntry := config.Mapping[header]
		implicit := !hasEntry || explicit.Target == TargetNone
		doc.Rows = append(doc.Rows, createMappingDocRow(header, c.Entry, implicit, settings))
	}

	// mapping entries without a column in this sheet
	var missing []string
	for _, header := range config.Mapping.Headers() {
		if headerIndex(headers, header) < 0 {
			missing = append(missing, header)
		}
	}
	sort.Strings(missing)
	for _, header := range missing {
		row := createMappingDocRow(header, config.Mapping[header], false, settings)
		row.Notes = joinNotes(row.Notes, "Column not in sheet")
		doc.Rows = append(doc.Rows, row)
	}
	return doc
}

func createMappingDocRow(header string, entry MappingEntry, implicit bool, tab TabSettings) MappingDocRow {
	row := MappingDocRow{
		Header:   header,
		Target:   entry.TargetName(),
		Required: entry.EnforcesRequired(),
		Implicit: implicit,
	}
	if entry.Target.IsModifier() {
		row.Separator = entry.JoinSeparator()
	}

	var notes []string
	if implicit {
		notes = append(notes, "Mapped by header name")
	}
	switch entry.Target {
	case TargetTicketID:
		notes = append(notes, "Receives the created ticket key")
	case TargetEpicLink:
		notes = append(notes, fmt.Sprintf("Written to %s; PREFIX-NUMBER sets the project", tab.EpicFieldID))
	case TargetLabels, TargetComponents:
		notes = append(notes, "Comma separated")
	case TargetDueDate:
		notes = append(notes, "Dates are sent as YYYY-MM-DD")
	case TargetPrependSummary, TargetPrependDescription:
		notes = append(notes, fmt.Sprintf("Prepended with %q", row.Separator))
	case TargetAppendSummary, TargetAppendDescription:
		notes = append(notes, fmt.Sprintf("Appended with %q", row.Separator))
	}
	if entry.Required && !row.Required {
		notes = append(notes, "Required flag ignored")
	}
	row.Notes = joinNotes(notes...)
	return row
}

func reservedNote(header string) string {
	switch header {
	case HeaderStatus:
		return "Written with the ticket status"
	case HeaderProcess:
		return "Selects rows for a whole-sheet run"
	}
	return "Ignored"
}

func joinNotes(notes ...string) string {
	var kept []string
	for _, n := range notes {
		if n != "" {
			kept = append(kept, n)
		}
	}
	return strings.Join(kept, " | ")
}

// FormatCSV formats the mapping documentation as CSV.
func (d MappingDocumentation) FormatCSV() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{fmt.Sprintf("# Tab: %s", d.Tab)}); err != nil {
		return "", err
	}
	if err := writer.Write([]string{"Column", "Jira Target", "Required", "Separator", "Notes"}); err != nil {
		return "", err
	}
	for _, row := range d.Rows {
		requiredMark := ""
		if row.Required {
			requiredMark = "✓"
		}
		if err := writer.Write([]string{row.Header, row.Target, requiredMark, row.Separator, row.Notes}); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
