package sync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook is an .xlsx file whose tabs are synced.
type Workbook struct {
	path string
	file *excelize.File
}

// OpenWorkbook opens an existing .xlsx file.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s %w", path, err)
	}
	return &Workbook{path: path, file: f}, nil
}

// NewWorkbook starts an empty workbook that is written to path on Save.
func NewWorkbook(path string) *Workbook {
	return &Workbook{path: path, file: excelize.NewFile()}
}

// SheetNames lists the tabs in workbook order.
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// Sheet returns the named tab.
func (w *Workbook) Sheet(name string) (*WorkbookSheet, error) {
	idx, err := w.file.GetSheetIndex(name)
	if err != nil {
		return nil, fmt.Errorf("failed to find sheet %s %w", name, err)
	}
	if idx < 0 {
		return nil, fmt.Errorf("workbook %s has no sheet %q", w.path, name)
	}
	return &WorkbookSheet{file: w.file, name: name}, nil
}

// AddSheet creates a tab holding rows, replacing the default empty tab of a new workbook.
func (w *Workbook) AddSheet(name string, rows ...[]interface{}) (*WorkbookSheet, error) {
	if _, err := w.file.NewSheet(name); err != nil {
		return nil, fmt.Errorf("failed to add sheet %s %w", name, err)
	}
	if list := w.file.GetSheetList(); len(list) == 2 && list[0] == "Sheet1" && name != "Sheet1" {
		if err := w.file.DeleteSheet("Sheet1"); err != nil {
			return nil, err
		}
	}
	sheet := &WorkbookSheet{file: w.file, name: name}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		r := row
		if err := w.file.SetSheetRow(name, cell, &r); err != nil {
			return nil, fmt.Errorf("failed to write row %d %w", i+1, err)
		}
	}
	return sheet, nil
}

// Save writes the workbook back to its path.
func (w *Workbook) Save() error {
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook %s %w", w.path, err)
	}
	return nil
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// WorkbookSheet is a Sheet backed by one tab of a Workbook.
type WorkbookSheet struct {
	file *excelize.File
	name string
}

func (s *WorkbookSheet) Name() string { return s.name }

// Rows reads the tab with typed values: numbers become float64, booleans bool and date-formatted
// numbers time.Time. Every row is padded to the widest row.
func (s *WorkbookSheet) Rows() ([][]interface{}, error) {
	raw, err := s.file.GetRows(s.name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s %w", s.name, err)
	}
	width := 0
	for _, r := range raw {
		if len(r) > width {
			width = len(r)
		}
	}
	result := make([][]interface{}, len(raw))
	for i, r := range raw {
		row := make([]interface{}, width)
		for j, text := range r {
			if text == "" {
				continue
			}
			row[j] = s.typedValue(i+1, j+1, text)
		}
		result[i] = row
	}
	return result, nil
}

func (s *WorkbookSheet) typedValue(row, col int, text string) interface{} {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return text
	}
	cellType, err := s.file.GetCellType(s.name, cell)
	if err != nil {
		return text
	}
	switch cellType {
	case excelize.CellTypeBool:
		return text == "1" || strings.EqualFold(text, "true")
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return text
		}
		if cellType == excelize.CellTypeDate || s.isDateFormatted(cell) {
			if t, err := excelize.ExcelDateToTime(n, false); err == nil {
				return t
			}
		}
		return n
	}
	return text
}

func (s *WorkbookSheet) isDateFormatted(cell string) bool {
	idx, err := s.file.GetCellStyle(s.name, cell)
	if err != nil || idx == 0 {
		return false
	}
	style, err := s.file.GetStyle(idx)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateNumFmt(*style.CustomNumFmt)
	}
	return isBuiltinDateNumFmt(style.NumFmt)
}

// isBuiltinDateNumFmt reports the built-in number formats that display dates.
func isBuiltinDateNumFmt(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

// isDateNumFmt looks for date tokens outside quoted literals and [...] sections (colors, locales,
// conditions) of a custom number format.
func isDateNumFmt(format string) bool {
	quoted, bracketed := false, false
	for _, r := range strings.ToLower(format) {
		switch {
		case r == '"' && !bracketed:
			quoted = !quoted
		case quoted:
		case r == '[':
			bracketed = true
		case r == ']':
			bracketed = false
		case bracketed:
		case r == 'y' || r == 'd':
			return true
		}
	}
	return false
}

func (s *WorkbookSheet) SetValue(row, col int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := s.file.SetCellValue(s.name, cell, value); err != nil {
		return fmt.Errorf("failed to write %s!%s %w", s.name, cell, err)
	}
	return nil
}

// SetLink writes text into the cell and attaches an external hyperlink to url.
func (s *WorkbookSheet) SetLink(row, col int, text, url string) error {
	if err := s.SetValue(row, col, text); err != nil {
		return err
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	display := text
	if err := s.file.SetCellHyperLink(s.name, cell, url, "External", excelize.HyperlinkOpts{Display: &display}); err != nil {
		return fmt.Errorf("failed to link %s!%s %w", s.name, cell, err)
	}
	return nil
}

// Link returns the hyperlink target of a cell, or "" when it has none.
func (s *WorkbookSheet) Link(row, col int) (string, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	ok, target, err := s.file.GetCellHyperLink(s.name, cell)
	if err != nil || !ok {
		return "", err
	}
	return target, nil
}
