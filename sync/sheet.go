package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sheet is the spreadsheet tab a sync runs against. Rows and columns are 1-based, the way the
// spreadsheet shows them. Cell values are string, float64, bool, time.Time, []string or nil.
type Sheet interface {
	Name() string
	Rows() ([][]interface{}, error)
	SetValue(row, col int, value interface{}) error
	SetLink(row, col int, text, url string) error
}

// Row is one sheet row aligned with the header row.
type Row []interface{}

// Cell returns the value at a 0-based column, or nil past the end of the row.
func (r Row) Cell(i int) interface{} {
	if i < 0 || i >= len(r) {
		return nil
	}
	return r[i]
}

// Text returns the cell at a 0-based column as trimmed text.
func (r Row) Text(i int) string {
	return CellString(r.Cell(i))
}

// CellString renders a cell value as trimmed text. Dates render as YYYY-MM-DD.
func CellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(DateLayout)
	case []string:
		return strings.Join(t, ", ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// DateLayout is the Jira duedate format.
const DateLayout = "2006-01-02"

func isTruthy(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	switch strings.ToLower(CellString(v)) {
	case "true", "yes", "y", "x", "1", "✓", "✔":
		return true
	}
	return false
}

// MemorySheet is a Sheet held entirely in memory.
type MemorySheet struct {
	Title string
	Cells [][]interface{}
	Links map[string]string
}

func NewMemorySheet(title string, rows ...[]interface{}) *MemorySheet {
	return &MemorySheet{Title: title, Cells: rows, Links: make(map[string]string)}
}

func (s *MemorySheet) Name() string { return s.Title }

func (s *MemorySheet) Rows() ([][]interface{}, error) {
	result := make([][]interface{}, len(s.Cells))
	for i, r := range s.Cells {
		result[i] = append([]interface{}(nil), r...)
	}
	return result, nil
}

func (s *MemorySheet) SetValue(row, col int, value interface{}) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("invalid cell %d,%d", row, col)
	}
	for len(s.Cells) < row {
		s.Cells = append(s.Cells, nil)
	}
	for len(s.Cells[row-1]) < col {
		s.Cells[row-1] = append(s.Cells[row-1], nil)
	}
	s.Cells[row-1][col-1] = value
	return nil
}

func (s *MemorySheet) SetLink(row, col int, text, url string) error {
	if err := s.SetValue(row, col, text); err != nil {
		return err
	}
	if s.Links == nil {
		s.Links = make(map[string]string)
	}
	s.Links[fmt.Sprintf("%d,%d", row, col)] = url
	return nil
}

// Value returns the cell at 1-based coordinates.
func (s *MemorySheet) Value(row, col int) interface{} {
	if row < 1 || row > len(s.Cells) {
		return nil
	}
	return Row(s.Cells[row-1]).Cell(col - 1)
}

// Link returns the hyperlink set at 1-based coordinates.
func (s *MemorySheet) Link(row, col int) string {
	return s.Links[fmt.Sprintf("%d,%d", row, col)]
}
