package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// State is the phase of a batch run.
type State int

const (
	StateIdle State = iota
	StateValidating
	StatePartiallyInvalid
	StateAllValid
	StateCreating
	StateReporting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StatePartiallyInvalid:
		return "partially-invalid"
	case StateAllValid:
		return "all-valid"
	case StateCreating:
		return "creating"
	case StateReporting:
		return "reporting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Prompter asks the user whether a batch with invalid rows should go ahead with the valid ones.
type Prompter interface {
	ConfirmPartial(report ValidationReport) bool
}

type PrompterFunc func(report ValidationReport) bool

func (f PrompterFunc) ConfirmPartial(report ValidationReport) bool { return f(report) }

// CreateOptions selects the rows of a batch.
type CreateOptions struct {
	// Rows are 1-based sheet rows. Empty means the whole sheet, where rows must opt in through
	// the Process column when the sheet has one.
	Rows []int
	// Template names a ticket template to create from.
	Template string
}

// SheetSyncController runs ticket creation and status syncs against one sheet tab. Rows are
// processed one after another; a failing row never stops the batch.
type SheetSyncController struct {
	Context  *SyncContext
	Tracker  Tracker
	Prompter Prompter
	// OnStateChange, when set, observes every transition.
	OnStateChange func(State)

	state State
}

func NewSheetSyncController(sc *SyncContext, tracker Tracker, prompter Prompter) *SheetSyncController {
	if sc.RunID == "" {
		sc.RunID = uuid.NewString()
	}
	return &SheetSyncController{Context: sc, Tracker: tracker, Prompter: prompter}
}

func (c *SheetSyncController) State() State { return c.state }

func (c *SheetSyncController) enter(s State) {
	c.state = s
	if c.OnStateChange != nil {
		c.OnStateChange(s)
	}
}

// sheetLayout is the header row of a sheet and the columns the sync reads and writes.
type sheetLayout struct {
	headerRow     int
	headers       []string
	columns       []ResolvedColumn
	ticketColumns []int
	statusColumn  int
	processColumn int
}

func (c *SheetSyncController) readSheet(sheet Sheet) ([][]interface{}, sheetLayout, error) {
	var layout sheetLayout
	rows, err := sheet.Rows()
	if err != nil {
		return nil, layout, fmt.Errorf("failed to read sheet %s %w", sheet.Name(), err)
	}
	layout.headerRow = c.Context.TabSettings().HeaderRow
	if len(rows) < layout.headerRow {
		return nil, layout, fmt.Errorf("sheet %s has no header row %d", sheet.Name(), layout.headerRow)
	}
	for _, v := range rows[layout.headerRow-1] {
		layout.headers = append(layout.headers, CellString(v))
	}
	layout.columns = ResolveColumns(layout.headers, c.Context.Config.Mapping)
	for _, col := range layout.columns {
		if col.Entry.Target == TargetTicketID {
			layout.ticketColumns = append(layout.ticketColumns, col.Index)
		}
	}
	layout.statusColumn = headerIndex(layout.headers, HeaderStatus)
	layout.processColumn = headerIndex(layout.headers, HeaderProcess)
	return rows, layout, nil
}

func rowAt(rows [][]interface{}, n int) Row {
	if n < 1 || n > len(rows) {
		return Row{}
	}
	return Row(rows[n-1])
}

func (l sheetLayout) existingKey(row Row) string {
	for _, i := range l.ticketColumns {
		if key := row.Text(i); key != "" {
			return key
		}
	}
	return ""
}

// CreateTickets validates the candidate rows, asks the Prompter when only some are valid, then
// creates a ticket for every valid row and writes the key, link and status back into the sheet.
// Configuration problems fail the call before any row is read.
func (c *SheetSyncController) CreateTickets(ctx context.Context, sheet Sheet, opts CreateOptions) (Report, error) {
	report := Report{RunID: c.Context.RunID, Tab: sheet.Name()}
	defer c.enter(StateIdle)

	if err := c.Context.Config.Settings.Connection.Validate(); err != nil {
		return report, err
	}
	var tpl *TicketTemplate
	if opts.Template != "" {
		t, err := c.Context.Config.Template(opts.Template)
		if err != nil {
			return report, err
		}
		tpl = &t
	}
	rows, layout, err := c.readSheet(sheet)
	if err != nil {
		return report, err
	}
	tab := c.Context.TabSettings()
	mapping := c.Context.Config.Mapping

	c.enter(StateValidating)
	wholeSheet := len(opts.Rows) == 0
	validation := ValidationReport{Tab: sheet.Name()}
	for _, n := range candidateRows(opts.Rows, layout.headerRow, len(rows)) {
		row := rowAt(rows, n)
		if key := layout.existingKey(row); key != "" {
			report.Skipped++
			continue
		}
		// rows holding only a row number or sync output are not data rows
		if wholeSheet && isDataEmpty(row, layout.headers, layout.columns) {
			continue
		}
		if wholeSheet && layout.processColumn >= 0 && !isTruthy(row.Cell(layout.processColumn)) {
			report.Skipped++
			continue
		}
		var result ValidationResult
		if tpl != nil {
			result = ValidateRowForTemplate(*tpl, row, layout.headers, mapping, tab)
		} else {
			result = ValidateRow(row, layout.headers, mapping, tab)
		}
		if result.OK {
			validation.ValidRows = append(validation.ValidRows, n)
		} else {
			validation.Invalid = append(validation.Invalid, RowError{Row: n, Errors: result.Errors})
		}
	}
	report.ValidationErrors = validation.Invalid
	report.ValidationSkipped = len(validation.Invalid)

	if len(validation.Invalid) > 0 {
		c.enter(StatePartiallyInvalid)
		if len(validation.ValidRows) > 0 && (c.Prompter == nil || !c.Prompter.ConfirmPartial(validation)) {
			report.Aborted = true
			log.Printf("run %s: cancelled with %d invalid row(s)", report.RunID, len(validation.Invalid))
			return report, nil
		}
	} else {
		c.enter(StateAllValid)
	}

	c.enter(StateCreating)
	for _, n := range validation.ValidRows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		row := rowAt(rows, n)
		var payload TicketPayload
		if tpl != nil {
			payload, err = BuildPayloadFromTemplate(*tpl, layout.headers, row, mapping, tab)
		} else {
			payload, err = BuildPayload(layout.headers, row, mapping, tab)
		}
		if err != nil {
			report.Errored++
			report.Errors = append(report.Errors, RowError{Row: n, Errors: []error{err}})
			continue
		}
		created, err := c.Tracker.CreateTicket(ctx, payload)
		if err != nil {
			log.Printf("run %s: row %d failed: %v", report.RunID, n, err)
			report.Errored++
			report.Errors = append(report.Errors, RowError{Row: n, Errors: []error{err}})
			continue
		}
		log.Printf("run %s: row %d created %s", report.RunID, n, created.Key)
		report.Created = append(report.Created, CreatedRow{Row: n, Key: created.Key})
		if warnings := c.writeBack(ctx, sheet, layout, n, payload, created); len(warnings) > 0 {
			report.Warnings = append(report.Warnings, RowError{Row: n, Errors: warnings})
		}
	}

	c.enter(StateReporting)
	log.Printf("run %s: created %d, skipped %d, invalid %d, errors %d",
		report.RunID, len(report.Created), report.Skipped, report.ValidationSkipped, report.Errored)
	return report, nil
}

// writeBack fills the ticket id columns with the linked key and the Status column with the
// ticket's current status. Failures here do not undo the created ticket.
func (c *SheetSyncController) writeBack(ctx context.Context, sheet Sheet, layout sheetLayout, n int, payload TicketPayload, created CreatedTicket) []error {
	var warnings []error
	url := c.Context.Config.Settings.Connection.BrowseURL(created.Key)
	if len(payload.OutputColumns) == 0 {
		log.Printf("Warning: run %s: row %d has no %q column for %s", c.Context.RunID, n, HeaderTicketKey, created.Key)
	}
	for _, col := range payload.OutputColumns {
		if err := sheet.SetLink(n, col+1, created.Key, url); err != nil {
			warnings = append(warnings, fmt.Errorf("failed to write %s: %w", created.Key, err))
		}
	}
	if layout.statusColumn < 0 {
		return warnings
	}
	fetched, err := c.Tracker.GetTicket(ctx, created.Key)
	if err != nil {
		log.Printf("Warning: run %s: row %d status of %s not read: %v", c.Context.RunID, n, created.Key, err)
		return warnings
	}
	if err := sheet.SetValue(n, layout.statusColumn+1, fetched.Status); err != nil {
		warnings = append(warnings, fmt.Errorf("failed to write status: %w", err))
	}
	return warnings
}

// candidateRows lists the data rows of a run in sheet order.
func candidateRows(selected []int, headerRow, rowCount int) []int {
	if len(selected) == 0 {
		var result []int
		for n := headerRow + 1; n <= rowCount; n++ {
			result = append(result, n)
		}
		return result
	}
	seen := make(map[int]bool)
	var result []int
	for _, n := range selected {
		if n <= headerRow || seen[n] {
			continue
		}
		seen[n] = true
		result = append(result, n)
	}
	sort.Ints(result)
	return result
}

// CreateTicketForRow creates the ticket for a single row. Validation problems come back as errors
// instead of going through the Prompter.
func (c *SheetSyncController) CreateTicketForRow(ctx context.Context, sheet Sheet, row int, template string) (CreatedRow, error) {
	report, err := c.CreateTickets(ctx, sheet, CreateOptions{Rows: []int{row}, Template: template})
	if err != nil {
		return CreatedRow{}, err
	}
	switch {
	case len(report.Created) == 1:
		return report.Created[0], nil
	case len(report.ValidationErrors) > 0:
		return CreatedRow{}, fmt.Errorf("row %d: %w", row, errors.Join(report.ValidationErrors[0].Errors...))
	case len(report.Errors) > 0:
		return CreatedRow{}, fmt.Errorf("row %d: %w", row, errors.Join(report.Errors[0].Errors...))
	case report.Skipped > 0:
		return CreatedRow{}, fmt.Errorf("row %d already has a ticket", row)
	}
	return CreatedRow{}, fmt.Errorf("row %d is not a data row", row)
}

// SyncStatus re-reads the status of every row that has a ticket id and overwrites its Status cell.
func (c *SheetSyncController) SyncStatus(ctx context.Context, sheet Sheet) (StatusReport, error) {
	report := StatusReport{RunID: c.Context.RunID, Tab: sheet.Name()}
	if err := c.Context.Config.Settings.Connection.Validate(); err != nil {
		return report, err
	}
	rows, layout, err := c.readSheet(sheet)
	if err != nil {
		return report, err
	}
	if layout.statusColumn < 0 {
		return report, fmt.Errorf("sheet %s has no %q column", sheet.Name(), HeaderStatus)
	}

	for n := layout.headerRow + 1; n <= len(rows); n++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		row := rowAt(rows, n)
		key := layout.existingKey(row)
		if key == "" {
			continue
		}
		report.Checked++
		fetched, err := c.Tracker.GetTicket(ctx, key)
		if err != nil {
			report.Errored++
			report.Errors = append(report.Errors, RowError{Row: n, Errors: []error{err}})
			continue
		}
		if err := sheet.SetValue(n, layout.statusColumn+1, fetched.Status); err != nil {
			report.Errored++
			report.Errors = append(report.Errors, RowError{Row: n, Errors: []error{err}})
			continue
		}
		if !strings.EqualFold(row.Text(layout.statusColumn), fetched.Status) {
			report.Updated++
		}
	}
	log.Printf("run %s: status checked %d, updated %d, errors %d", report.RunID, report.Checked, report.Updated, report.Errored)
	return report, nil
}
