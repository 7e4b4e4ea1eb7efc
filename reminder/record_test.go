package reminder_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/reminder-bridge/reminder"
)

func TestBuildHeaderMap_ResolvesAliases(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		date   int
	}{
		{"exact", []string{"Nombre", "Cargo", "Fecha", "Enviado"}, 3},
		{"bracket alias with space", []string{" NOMBRE ", "cargo", "Fecha (dd/mm/yy)", "ENVIADO"}, 3},
		{"bracket alias without space", []string{"Enviado", "Fecha(DD/MM/YY)", "Nombre", "Cargo"}, 2},
		{"english headers", []string{"Name", "Role", "Date", "Sent"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := reminder.BuildHeaderMap(tt.header, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.date, h.Column(reminder.FieldDate))
		})
	}
}

func TestBuildHeaderMap_MissingFields(t *testing.T) {
	_, err := reminder.BuildHeaderMap([]string{"Nombre", "Fecha", "Notas"}, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, reminder.ErrMissingHeaders))

	var mh *reminder.MissingHeadersError
	require.True(t, errors.As(err, &mh))
	assert.Equal(t, []reminder.Field{reminder.FieldRole, reminder.FieldSent}, mh.Fields)
	assert.Contains(t, err.Error(), "role, sent")
}

func TestBuildHeaderMap_ColumnOffset(t *testing.T) {
	// Range starting at column C
	h, err := reminder.BuildHeaderMap(spanishHeader, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Column(reminder.FieldName))
	assert.Equal(t, 6, h.Column(reminder.FieldSent))
	assert.Equal(t, 5, h.Columns["fecha"])
}

func TestBuildHeaderMap_FirstMatchingColumnWins(t *testing.T) {
	h, err := reminder.BuildHeaderMap([]string{"Nombre", "Cargo", "Date", "Fecha", "Enviado"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Column(reminder.FieldDate))
}

func TestProject_RowNumbersAndShortRows(t *testing.T) {
	// GIVEN: Header on row 1, a full row, a short row and a blank row
	table := reminder.Table{
		HeaderRow:   1,
		FirstColumn: 1,
		Header:      spanishHeader,
		Rows: [][]string{
			{" Ana ", "Jefa", "01/06/25", "No"},
			{"Luis", "Analista"},
			{},
			{"Eva", "", "31/02/2025", "SÍ"},
		},
	}

	// WHEN: Projecting
	_, records, err := reminder.Project(table)
	require.NoError(t, err)
	require.Len(t, records, 4)

	// THEN: Row numbers are header-inclusive and positional
	for i, r := range records {
		assert.Equal(t, i+2, r.RowNumber)
	}

	assert.Equal(t, "Ana", records[0].Name)
	assert.Equal(t, "no", records[0].SentFlag)
	require.NotNil(t, records[0].Date)
	assert.Equal(t, reminder.NewDate(2025, time.June, 1), *records[0].Date)

	assert.Equal(t, "Analista", records[1].Role)
	assert.Nil(t, records[1].Date)
	assert.Equal(t, "", records[1].SentFlag)

	assert.Equal(t, "", records[2].Name)

	assert.Nil(t, records[3].Date, "invalid calendar date must not parse")
	assert.True(t, records[3].AlreadySent())
	assert.Equal(t, "31/02/2025", records[3].RawDate)
}

func TestProject_HeaderBelowRowOne(t *testing.T) {
	table := reminder.Table{
		HeaderRow:   3,
		FirstColumn: 2,
		Header:      spanishHeader,
		Rows:        [][]string{{"Ana", "Jefa", "01/06/25", ""}},
	}

	h, records, err := reminder.Project(table)
	require.NoError(t, err)
	assert.Equal(t, 4, records[0].RowNumber)
	assert.Equal(t, 5, h.Column(reminder.FieldSent))
}

func TestProject_MissingHeadersReturnsNoRecords(t *testing.T) {
	table := reminder.Table{Header: []string{"Nombre", "Fecha", "Enviado"}, Rows: [][]string{{"Ana", "01/06/25", ""}}}

	_, records, err := reminder.Project(table)
	assert.ErrorIs(t, err, reminder.ErrMissingHeaders)
	assert.Nil(t, records)
}

func TestRender(t *testing.T) {
	d := reminder.NewDate(2025, time.June, 1)
	text := reminder.Render(reminder.Record{Name: "Ana", Role: "Jefa", Date: &d})

	assert.Contains(t, text, "Nombre: Ana")
	assert.Contains(t, text, "Cargo: Jefa")
	assert.Contains(t, text, "Fecha: 01/06/2025")
}

func TestRender_EmptyRecordDoesNotFail(t *testing.T) {
	text := reminder.Render(reminder.Record{})
	assert.Contains(t, text, "Nombre: \n")
	assert.Contains(t, text, "Fecha: \n")
}
