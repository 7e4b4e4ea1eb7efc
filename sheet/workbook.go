package sheet

import (
	"context"
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/warp/reminder-bridge/reminder"
)

// Workbook is a StoreGateway over a local .xlsx file. The file is opened
// on every call so edits made in a spreadsheet application between passes
// are picked up.
type Workbook struct {
	path string
	rng  Range
	mu   sync.Mutex
}

// NewWorkbook creates a gateway for the range of the workbook at path.
func NewWorkbook(path string, rng Range) *Workbook {
	return &Workbook{path: path, rng: rng}
}

// ReadAll returns the configured range of the worksheet.
func (w *Workbook) ReadAll(_ context.Context) (reminder.Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return reminder.Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	name, err := w.sheetName(f)
	if err != nil {
		return reminder.Table{}, err
	}

	all, err := f.GetRows(name)
	if err != nil {
		return reminder.Table{}, fmt.Errorf("read sheet %q: %w", name, err)
	}

	mem := NewMemory(w.rng, all)
	return mem.ReadAll(context.Background())
}

// WriteCell sets one cell and saves the file.
func (w *Workbook) WriteCell(_ context.Context, row, column int, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	name, err := w.sheetName(f)
	if err != nil {
		return err
	}

	cell, err := excelize.CoordinatesToCellName(column, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(name, cell, value); err != nil {
		return fmt.Errorf("set %s!%s: %w", name, cell, err)
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// sheetName resolves the configured sheet, defaulting to the first one.
func (w *Workbook) sheetName(f *excelize.File) (string, error) {
	if w.rng.Sheet != "" {
		if idx, err := f.GetSheetIndex(w.rng.Sheet); err != nil || idx < 0 {
			return "", fmt.Errorf("sheet %q not found in %s", w.rng.Sheet, w.path)
		}
		return w.rng.Sheet, nil
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook %s has no sheets", w.path)
	}
	return sheets[0], nil
}
