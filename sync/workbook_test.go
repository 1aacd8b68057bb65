package sync

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestWorkbook_TypedRowsAndLinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.xlsx")
	wb := NewWorkbook(path)
	sheet, err := wb.AddSheet("Bugs",
		[]interface{}{"Summary", "Due", "Points", "Process", "Ticket Key"},
		[]interface{}{"Fix login"},
	)
	if err != nil {
		t.Fatal(err)
	}
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for col, v := range map[int]interface{}{2: due, 3: 3.5, 4: true} {
		if err := sheet.SetValue(2, col, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := sheet.SetLink(2, 5, "PROJ-1", "https://acme.atlassian.net/browse/PROJ-1"); err != nil {
		t.Fatal(err)
	}
	if err := wb.Save(); err != nil {
		t.Fatal(err)
	}
	wb.Close()

	reopened, err := OpenWorkbook(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if names := reopened.SheetNames(); !reflect.DeepEqual(names, []string{"Bugs"}) {
		t.Errorf("Expected only the Bugs sheet but have: %v", names)
	}
	if _, err := reopened.Sheet("Missing"); err == nil {
		t.Error("Expected an error for a missing sheet")
	}
	bugs, err := reopened.Sheet("Bugs")
	if err != nil {
		t.Fatal(err)
	}
	rows, err := bugs.Rows()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || len(rows[1]) != 5 {
		t.Fatalf("Expected 2 rows of 5 cells but have: %v", rows)
	}
	row := Row(rows[1])
	if row.Cell(0) != "Fix login" {
		t.Errorf("Expected text Fix login but have: %#v", row.Cell(0))
	}
	if d, ok := row.Cell(1).(time.Time); !ok || CellString(d) != "2024-03-01" {
		t.Errorf("Expected the date 2024-03-01 but have: %#v", row.Cell(1))
	}
	if row.Cell(2) != 3.5 {
		t.Errorf("Expected the number 3.5 but have: %#v", row.Cell(2))
	}
	if row.Cell(3) != true {
		t.Errorf("Expected the boolean true but have: %#v", row.Cell(3))
	}
	if link, err := bugs.Link(2, 5); err != nil || link != "https://acme.atlassian.net/browse/PROJ-1" {
		t.Errorf("Expected the PROJ-1 link but have: %q %v", link, err)
	}
	if link, _ := bugs.Link(2, 1); link != "" {
		t.Errorf("Expected no link on the summary but have: %q", link)
	}
}

func TestWorkbookSheet_DrivesController(t *testing.T) {
	wb := NewWorkbook(filepath.Join(t.TempDir(), "tickets.xlsx"))
	defer wb.Close()
	sheet, err := wb.AddSheet("Bugs",
		controllerHeaders,
		[]interface{}{"Fix", "PROJ-100", "High"},
	)
	if err != nil {
		t.Fatal(err)
	}
	report, err := newTestController(&fakeTracker{}, nil).CreateTickets(context.Background(), sheet, CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Created) != 1 {
		t.Fatalf("Expected one ticket but have: %s", report.Summary())
	}
	rows, _ := sheet.Rows()
	if Row(rows[1]).Text(3) != "PROJ-1" || Row(rows[1]).Text(4) != "To Do" {
		t.Errorf("Expected PROJ-1 and To Do written back but have: %v", rows[1])
	}
	if link, _ := sheet.Link(2, 4); link != "https://acme.atlassian.net/browse/PROJ-1" {
		t.Errorf("Expected the browse link but have: %q", link)
	}
}

func TestIsDateNumFmt(t *testing.T) {
	cases := map[string]bool{
		"yyyy-mm-dd":      true,
		"d mmm":           true,
		"0.00":            false,
		`"days" 0`:        false,
		`[$-409]h:mm AM`:  false,
		`"at" hh:mm dddd`: true,
		`[Red]0.00`:       false,
		`[$-409]d mmm`:    true,
	}
	for format, expected := range cases {
		if have := isDateNumFmt(format); have != expected {
			t.Errorf("Expected %q to be %t but have: %t", format, expected, have)
		}
	}
	if !isBuiltinDateNumFmt(14) || isBuiltinDateNumFmt(2) {
		t.Error("Expected format 14 to be a date and 2 not to be")
	}
}
