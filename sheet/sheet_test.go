package sheet

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/reminder-bridge/reminder"
)

// =============================================================================
// RANGE PARSING
// =============================================================================

func TestParseRange(t *testing.T) {
	tests := []struct {
		in        string
		sheet     string
		row, col  int
		endColumn int
		endRow    int
	}{
		{"Hoja1!A1:D", "Hoja1", 1, 1, 4, 0},
		{"Hoja1!B3:E", "Hoja1", 3, 2, 5, 0},
		{"'Mi hoja'!A1:D100", "Mi hoja", 1, 1, 4, 100},
		{"'It''s'!C2", "It's", 2, 3, 0, 0},
		{"Hoja1", "Hoja1", 1, 1, 0, 0},
		{"A2:F", "", 2, 1, 6, 0},
		{"B:E", "", 1, 2, 5, 0},
		{"Hoja1!", "Hoja1", 1, 1, 0, 0},
		{"Hoja1!B3:E7", "Hoja1", 3, 2, 5, 7},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseRange(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.sheet, r.Sheet)
			assert.Equal(t, tt.row, r.StartRow)
			assert.Equal(t, tt.col, r.StartColumn)
			assert.Equal(t, tt.endColumn, r.EndColumn)
			assert.Equal(t, tt.endRow, r.EndRow)
			assert.Equal(t, tt.in, r.String())
		})
	}
}

func TestParseRange_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "Hoja1!1A:D", "Hoja1!A1:9", "Hoja1!A5:D2"} {
		_, err := ParseRange(in)
		assert.Error(t, err, in)
	}
}

func TestRange_CellName(t *testing.T) {
	r, _ := ParseRange("Hoja1!A1:D")
	name, err := r.CellName(2, 4)
	require.NoError(t, err)
	assert.Equal(t, "'Hoja1'!D2", name)

	r, _ = ParseRange("'Mi hoja'!A1:D")
	name, _ = r.CellName(10, 1)
	assert.Equal(t, "'Mi hoja'!A10", name)

	// Numeric and hyphenated titles are quoted too
	r, _ = ParseRange("2024!A1:D")
	name, _ = r.CellName(2, 4)
	assert.Equal(t, "'2024'!D2", name)

	r, _ = ParseRange("Datos-2025!A1:D")
	name, _ = r.CellName(2, 4)
	assert.Equal(t, "'Datos-2025'!D2", name)

	r, _ = ParseRange("'It''s'!A1:D")
	name, _ = r.CellName(2, 1)
	assert.Equal(t, "'It''s'!A2", name)

	r, _ = ParseRange("A1:D")
	name, _ = r.CellName(3, 28)
	assert.Equal(t, "AB3", name)
}

// =============================================================================
// MEMORY
// =============================================================================

func TestMemory_ReadAllHonoursRange(t *testing.T) {
	rng, _ := ParseRange("Hoja1!B3:E")
	m := NewMemory(rng, [][]string{
		{"title"},
		{},
		{"", "Nombre", "Cargo", "Fecha", "Enviado", "Notas"},
		{"x", "Ana", "Jefa", "01/06/25"},
	})

	table, err := m.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, table.HeaderRow)
	assert.Equal(t, 2, table.FirstColumn)
	assert.Equal(t, []string{"Nombre", "Cargo", "Fecha", "Enviado"}, table.Header)
	assert.Equal(t, [][]string{{"Ana", "Jefa", "01/06/25"}}, table.Rows)
}

func TestMemory_WriteCellGrowsGrid(t *testing.T) {
	rng, _ := ParseRange("A1:D")
	m := NewMemory(rng, [][]string{{"a"}})

	require.NoError(t, m.WriteCell(context.Background(), 3, 4, "sí"))
	assert.Equal(t, "sí", m.Cell(3, 4))
	assert.Equal(t, "", m.Cell(3, 1))
	assert.Equal(t, []Write{{Row: 3, Column: 4, Value: "sí"}}, m.Writes())

	assert.Error(t, m.WriteCell(context.Background(), 0, 1, "x"))
}

func TestMemory_WithService_OffsetRange(t *testing.T) {
	// GIVEN: A sheet whose table starts at B3
	rng, _ := ParseRange("Hoja1!B3:E")
	m := NewMemory(rng, [][]string{
		{"Recordatorios"},
		{},
		{"", "Nombre", "Cargo", "Fecha", "Enviado"},
		{"", "Ana", "Jefa", "01/06/25", ""},
	})
	channel := &okChannel{}
	svc := reminder.NewService(m, channel, []string{"a"})

	// WHEN: Running a pass for the record's day
	result, err := svc.RunReconciliation(context.Background(), reminder.NewDate(2025, time.June, 1), reminder.ModeToday)
	require.NoError(t, err)

	// THEN: The marker lands on sheet row 4, column E
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, reminder.SentMarker, m.Cell(4, 5))
}

func TestMemory_WithService_BoundedRange(t *testing.T) {
	// GIVEN: A range that ends on row 2, with a due row below it
	rng, err := ParseRange("Hoja1!A1:D2")
	require.NoError(t, err)
	m := NewMemory(rng, [][]string{
		{"Nombre", "Cargo", "Fecha", "Enviado"},
		{"Dentro", "Jefa", "01/06/25", ""},
		{"Fuera", "Jefa", "01/06/25", ""},
	})
	channel := &okChannel{}
	svc := reminder.NewService(m, channel, []string{"a"})

	// WHEN
	result, err := svc.RunReconciliation(context.Background(), reminder.NewDate(2025, time.June, 1), reminder.ModeToday)
	require.NoError(t, err)

	// THEN: Only the row inside the range is sent and marked
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, 1, channel.sent)
	assert.Equal(t, []Write{{Row: 2, Column: 4, Value: reminder.SentMarker}}, m.Writes())
	assert.Empty(t, m.Cell(3, 4))
}

type okChannel struct{ sent int }

func (c *okChannel) IsReady() bool { return true }
func (c *okChannel) Send(context.Context, string, string) error {
	c.sent++
	return nil
}

// =============================================================================
// WORKBOOK
// =============================================================================

func writeTestWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}

	path := filepath.Join(t.TempDir(), "recordatorios.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestWorkbook_ReadAndWrite(t *testing.T) {
	path := writeTestWorkbook(t, [][]string{
		{"Nombre", "Cargo", "Fecha", "Enviado"},
		{"Ana", "Jefa", "01/06/25", "no"},
	})
	rng, _ := ParseRange("Sheet1!A1:D")
	wb := NewWorkbook(path, rng)
	ctx := context.Background()

	table, err := wb.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nombre", "Cargo", "Fecha", "Enviado"}, table.Header)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Ana", table.Rows[0][0])

	require.NoError(t, wb.WriteCell(ctx, 2, 4, reminder.SentMarker))

	table, err = wb.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, reminder.SentMarker, table.Rows[0][3])
}

func TestWorkbook_BoundedRange(t *testing.T) {
	path := writeTestWorkbook(t, [][]string{
		{"Nombre", "Cargo", "Fecha", "Enviado"},
		{"Ana", "Jefa", "01/06/25", ""},
		{"Luis", "Jefe", "01/06/25", ""},
		{"Fuera", "Jefa", "01/06/25", ""},
	})
	rng, _ := ParseRange("Sheet1!A1:D3")

	table, err := NewWorkbook(path, rng).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Luis", table.Rows[1][0])
}

func TestWorkbook_DefaultsToFirstSheet(t *testing.T) {
	path := writeTestWorkbook(t, [][]string{{"Nombre", "Cargo", "Fecha", "Enviado"}})
	rng, _ := ParseRange("A1:D")

	table, err := NewWorkbook(path, rng).ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, table.Header, 4)
	assert.Empty(t, table.Rows)
}

func TestWorkbook_UnknownSheet(t *testing.T) {
	path := writeTestWorkbook(t, [][]string{{"Nombre"}})
	rng, _ := ParseRange("Hoja9!A1:D")

	_, err := NewWorkbook(path, rng).ReadAll(context.Background())
	assert.ErrorContains(t, err, "Hoja9")
}

// =============================================================================
// GOOGLE
// =============================================================================

func TestStringRows(t *testing.T) {
	rows := stringRows([][]interface{}{
		{"Nombre", "Cargo"},
		{},
		{"Ana", nil, 3.0},
	})

	assert.Equal(t, [][]string{{"Nombre", "Cargo"}, {}, {"Ana", "", "3"}}, rows)
}

// =============================================================================
// DEMO SCENARIOS
// =============================================================================

func TestDemo_Mixed(t *testing.T) {
	today := reminder.NewDate(2025, time.March, 14)
	m, err := Demo("mixed", today)
	require.NoError(t, err)

	svc := reminder.NewService(m, &okChannel{}, []string{"a"})

	view, err := svc.Preview(context.Background(), today, reminder.ModeToday)
	require.NoError(t, err)
	require.Len(t, view.Due, 1)
	assert.Equal(t, "Ana", view.Due[0].Name)

	view, err = svc.Preview(context.Background(), today, reminder.ModeUntilToday)
	require.NoError(t, err)
	require.Len(t, view.Due, 2)
	assert.Equal(t, "Luis", view.Due[1].Name)
}

func TestDemo_Offset(t *testing.T) {
	today := reminder.NewDate(2025, time.March, 14)
	m, err := Demo("offset", today)
	require.NoError(t, err)

	svc := reminder.NewService(m, &okChannel{}, []string{"a"})
	result, err := svc.RunReconciliation(context.Background(), today, reminder.ModeToday)
	require.NoError(t, err)

	// Luis is already marked with an upper-case "SÍ"
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, reminder.SentMarker, m.Cell(4, 5))
}

func TestDemo_Unknown(t *testing.T) {
	_, err := Demo("nope", reminder.NewDate(2025, time.March, 14))
	assert.ErrorContains(t, err, "mixed, backlog, offset")
}

func TestDemo_AllScenariosBuild(t *testing.T) {
	for _, s := range Scenarios {
		_, err := Demo(s.ID, reminder.NewDate(2025, time.March, 14))
		assert.NoError(t, err, s.ID)
	}
}
