package sheet

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/reminder-bridge/reminder"
)

// =============================================================================
// MEMORY SHEET - In-memory implementation (for testing/dev)
// =============================================================================

// Write is one recorded WriteCell call.
type Write struct {
	Row    int
	Column int
	Value  string
}

// Memory is a worksheet held in memory. Cells are addressed from A1 exactly
// like a real sheet, and only the configured range is visible to ReadAll.
type Memory struct {
	mu     sync.RWMutex
	rng    Range
	cells  [][]string
	writes []Write
}

// NewMemory creates a sheet whose A1 cell is cells[0][0].
func NewMemory(rng Range, cells [][]string) *Memory {
	if rng.StartRow < 1 {
		rng.StartRow = 1
	}
	if rng.StartColumn < 1 {
		rng.StartColumn = 1
	}
	copied := make([][]string, len(cells))
	for i, row := range cells {
		copied[i] = append([]string(nil), row...)
	}
	return &Memory{rng: rng, cells: copied}
}

// ReadAll returns the configured range, bounded by its end row and column.
func (m *Memory) ReadAll(_ context.Context) (reminder.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	last := len(m.cells)
	if m.rng.EndRow > 0 && m.rng.EndRow < last {
		last = m.rng.EndRow
	}

	var rows [][]string
	for r := m.rng.StartRow - 1; r < last; r++ {
		rows = append(rows, m.sliceRowLocked(m.cells[r]))
	}
	header, data := splitHeader(rows)
	return reminder.Table{
		HeaderRow:   m.rng.StartRow,
		FirstColumn: m.rng.StartColumn,
		Header:      header,
		Rows:        data,
	}, nil
}

func (m *Memory) sliceRowLocked(row []string) []string {
	from := m.rng.StartColumn - 1
	if from >= len(row) {
		return []string{}
	}
	to := len(row)
	if m.rng.EndColumn > 0 && m.rng.EndColumn < to {
		to = m.rng.EndColumn
	}
	return append([]string(nil), row[from:to]...)
}

// WriteCell overwrites one cell, growing the grid when needed.
func (m *Memory) WriteCell(_ context.Context, row, column int, value string) error {
	if row < 1 || column < 1 {
		return fmt.Errorf("invalid cell (%d, %d)", row, column)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.cells) < row {
		m.cells = append(m.cells, nil)
	}
	for len(m.cells[row-1]) < column {
		m.cells[row-1] = append(m.cells[row-1], "")
	}
	m.cells[row-1][column-1] = value
	m.writes = append(m.writes, Write{Row: row, Column: column, Value: value})
	return nil
}

// Cell returns the value at a 1-based sheet coordinate.
func (m *Memory) Cell(row, column int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if row < 1 || row > len(m.cells) || column < 1 || column > len(m.cells[row-1]) {
		return ""
	}
	return m.cells[row-1][column-1]
}

// Writes returns every WriteCell call in order.
func (m *Memory) Writes() []Write {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Write(nil), m.writes...)
}
