package sync

import (
	"sort"
	"strings"
)

// ValidationResult lists every defect of a row; OK is true only when Errors is empty.
type ValidationResult struct {
	OK     bool
	Errors []error
}

// Messages renders the errors for a report.
func (v ValidationResult) Messages() []string {
	result := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		result[i] = err.Error()
	}
	return result
}

// ValidateRow decides whether a row carries enough data to create a ticket. It never stops at the
// first defect so the caller can report all of them at once. An empty row reports only ErrEmptyRow.
func ValidateRow(row Row, headers []string, mapping ColumnMapping, tab TabSettings) ValidationResult {
	return validateRow(row, headers, mapping, tab, nil)
}

// ValidateRowForTemplate is ValidateRow for templated creation, where the template may supply the summary.
func ValidateRowForTemplate(tpl TicketTemplate, row Row, headers []string, mapping ColumnMapping, tab TabSettings) ValidationResult {
	return validateRow(row, headers, mapping, tab, &tpl)
}

func validateRow(row Row, headers []string, mapping ColumnMapping, tab TabSettings, tpl *TicketTemplate) ValidationResult {
	columns := ResolveColumns(headers, mapping)
	if isDataEmpty(row, headers, columns) {
		return ValidationResult{Errors: []error{ErrEmptyRow}}
	}

	var errs []error
	if EffectiveProjectKey(row, columns, tab) == "" {
		errs = append(errs, ErrMissingProjectKey)
	}

	for _, header := range requiredHeaders(headers, mapping) {
		i := headerIndex(headers, header)
		if i < 0 || isEmptyCell(row.Cell(i)) {
			errs = append(errs, &MissingRequiredFieldError{Column: header})
		}
	}

	hasSummary := false
	for _, c := range columns {
		if c.Entry.Target == TargetSummary && !isEmptyCell(row.Cell(c.Index)) {
			hasSummary = true
			break
		}
	}
	if !hasSummary && tpl != nil {
		summary, _, _ := tpl.Apply(headers, row)
		hasSummary = summary != ""
	}
	if !hasSummary {
		errs = append(errs, ErrMissingSummary)
	}

	return ValidationResult{OK: len(errs) == 0, Errors: errs}
}

// EffectiveProjectKey is the project a row's ticket lands in: the prefix of the last epic column
// holding a PREFIX-NUMBER key, otherwise the tab's configured project.
func EffectiveProjectKey(row Row, columns []ResolvedColumn, tab TabSettings) string {
	key := strings.TrimSpace(tab.ProjectKey)
	for _, c := range columns {
		if c.Entry.Target != TargetEpicLink {
			continue
		}
		if derived, ok := ProjectKeyFromEpic(row.Text(c.Index)); ok {
			key = derived
		}
	}
	return key
}

// requiredHeaders lists headers whose entries enforce required: those present in sheet order first,
// then the absent ones alphabetically, so repeated validation reports identically.
func requiredHeaders(headers []string, mapping ColumnMapping) []string {
	var present, absent []string
	seen := make(map[string]bool)
	for _, h := range headers {
		header := strings.TrimSpace(h)
		if entry, ok := mapping[header]; ok && entry.EnforcesRequired() && !seen[header] {
			present = append(present, header)
			seen[header] = true
		}
	}
	for header, entry := range mapping {
		if entry.EnforcesRequired() && !seen[header] {
			absent = append(absent, header)
		}
	}
	sort.Strings(absent)
	return append(present, absent...)
}

// isDataEmpty ignores reserved columns and ticket id sinks, which hold sync output rather than input.
func isDataEmpty(row Row, headers []string, columns []ResolvedColumn) bool {
	sinks := make(map[int]bool)
	for _, c := range columns {
		if c.Entry.Target == TargetTicketID {
			sinks[c.Index] = true
		}
	}
	for i := range row {
		if sinks[i] {
			continue
		}
		if i < len(headers) && isReservedHeader(strings.TrimSpace(headers[i])) {
			continue
		}
		if !isEmptyCell(row[i]) {
			return false
		}
	}
	return true
}
