/*
Package sheet provides StoreGateway implementations for the reminder core.

IMPLEMENTATIONS:
  Google:   Google Sheets API (production)
  Workbook: Local .xlsx file via excelize (single-machine deployments)
  Memory:   In-memory table (tests, -demo mode)

RANGES:
  All gateways are configured with an A1 range such as "Hoja1!A1:D".
  The first cell of the range fixes where the header row is and which
  sheet column the first header cell lives in; every write goes back
  through those coordinates.
*/
package sheet

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// Range is a parsed A1 range.
type Range struct {
	// Sheet is the worksheet title, "" when the range has none.
	Sheet string
	// StartRow and StartColumn are the 1-based coordinates of the first cell.
	StartRow    int
	StartColumn int
	// EndColumn is 0 when the range is open to the right.
	EndColumn int
	// EndRow is 0 when the range is open at the bottom.
	EndRow int
	raw    string
}

// ParseRange parses "Sheet!A1:D", "'My sheet'!B3:E10", "Sheet", "A2:F" or "B:E".
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, fmt.Errorf("empty range")
	}

	r := Range{StartRow: 1, StartColumn: 1, raw: s}
	cells := s
	if i := strings.LastIndex(s, "!"); i >= 0 {
		r.Sheet = unquoteSheet(s[:i])
		cells = s[i+1:]
	} else if !looksLikeCells(s) {
		r.Sheet = unquoteSheet(s)
		return r, nil
	}

	if cells == "" {
		return r, nil
	}

	start, end, _ := strings.Cut(cells, ":")
	col, row, err := splitCell(start)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	r.StartColumn = col
	if row > 0 {
		r.StartRow = row
	}

	if end != "" {
		endCol, endRow, err := splitCell(end)
		if err != nil {
			return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
		}
		if endRow > 0 && endRow < r.StartRow {
			return Range{}, fmt.Errorf("invalid range %q: end row before start row", s)
		}
		r.EndColumn = endCol
		r.EndRow = endRow
	}
	return r, nil
}

// String returns the range as configured.
func (r Range) String() string {
	return r.raw
}

// CellName returns the A1 reference of a sheet cell, prefixed with the quoted
// sheet title when the range has one.
func (r Range) CellName(row, column int) (string, error) {
	name, err := excelize.CoordinatesToCellName(column, row)
	if err != nil {
		return "", err
	}
	if r.Sheet == "" {
		return name, nil
	}
	return quoteSheet(r.Sheet) + "!" + name, nil
}

// splitCell accepts "B3" or a bare column "B" (row 0).
func splitCell(ref string) (col, row int, err error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return 0, 0, fmt.Errorf("empty cell reference")
	}
	if strings.IndexFunc(ref, unicode.IsDigit) < 0 {
		col, err = excelize.ColumnNameToNumber(ref)
		return col, 0, err
	}
	return excelize.CellNameToCoordinates(ref)
}

// looksLikeCells reports whether s is a bare cell range without a sheet title.
func looksLikeCells(s string) bool {
	start, _, _ := strings.Cut(s, ":")
	_, _, err := splitCell(start)
	return err == nil && strings.Contains(s, ":")
}

func unquoteSheet(title string) string {
	if len(title) >= 2 && title[0] == '\'' && title[len(title)-1] == '\'' {
		return strings.ReplaceAll(title[1:len(title)-1], "''", "'")
	}
	return title
}

// quoteSheet always quotes: titles like "2024" or "Datos-2025" are not valid
// unquoted.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// splitHeader separates the header from the data rows. Rows are not padded;
// the core treats missing cells as empty.
func splitHeader(rows [][]string) ([]string, [][]string) {
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], rows[1:]
}
