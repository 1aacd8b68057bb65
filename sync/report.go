package sync

import (
	"fmt"
	"strings"
)

// RowError ties errors to the 1-based sheet row they came from.
type RowError struct {
	Row    int
	Errors []error
}

func (e RowError) Message() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("row %d: %s", e.Row, strings.Join(msgs, "; "))
}

// CreatedRow is a ticket created for a sheet row.
type CreatedRow struct {
	Row int
	Key string
}

// ValidationReport is what the user sees before deciding to continue with the valid rows.
type ValidationReport struct {
	Tab       string
	ValidRows []int
	Invalid   []RowError
}

func (v ValidationReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d row(s) ready, %d row(s) with problems:\n", len(v.ValidRows), len(v.Invalid))
	for _, e := range v.Invalid {
		fmt.Fprintf(&b, "  %s\n", e.Message())
	}
	b.WriteString("Create tickets for the valid rows only?")
	return b.String()
}

// Report summarises a ticket creation batch.
type Report struct {
	RunID             string
	Tab               string
	Created           []CreatedRow
	Skipped           int
	ValidationSkipped int
	Errored           int
	Aborted           bool
	ValidationErrors  []RowError
	Errors            []RowError
	// Warnings are problems after a ticket was created, such as a failed write-back.
	Warnings []RowError
}

func (r Report) Summary() string {
	var b strings.Builder
	if r.Aborted {
		fmt.Fprintf(&b, "Cancelled, no tickets were created (%d row(s) failed validation).\n", r.ValidationSkipped)
	} else {
		fmt.Fprintf(&b, "Created: %d\nSkipped: %d\nSkipped (validation): %d\nErrors: %d\n",
			len(r.Created), r.Skipped, r.ValidationSkipped, r.Errored)
	}
	for _, c := range r.Created {
		fmt.Fprintf(&b, "  row %d: %s\n", c.Row, c.Key)
	}
	for _, section := range []struct {
		title string
		rows  []RowError
	}{
		{"Validation problems", r.ValidationErrors},
		{"Errors", r.Errors},
		{"Warnings", r.Warnings},
	} {
		if len(section.rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", section.title)
		for _, e := range section.rows {
			fmt.Fprintf(&b, "  %s\n", e.Message())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// StatusReport summarises a status sync.
type StatusReport struct {
	RunID   string
	Tab     string
	Checked int
	Updated int
	Errored int
	Errors  []RowError
}

func (r StatusReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checked: %d\nUpdated: %d\nErrors: %d\n", r.Checked, r.Updated, r.Errored)
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  %s\n", e.Message())
	}
	return strings.TrimRight(b.String(), "\n")
}
