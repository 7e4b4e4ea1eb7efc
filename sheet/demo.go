/*
demo.go - Demo sheets for local runs and demonstrations

PURPOSE:
  Provides pre-built in-memory sheets, dated relative to "today", so the
  server can be exercised end to end without a spreadsheet account.

AVAILABLE SCENARIOS:
  mixed:    Due today, overdue, already sent, blank and garbage dates
  backlog:  Several overdue rows, meant for mode=until_today
  offset:   Header on row 3 starting at column B ("Hoja1!B3:E")

USAGE:
  ./server -demo=mixed

NOTE:
  Demo sheets live in memory; marks are lost on restart.
*/
package sheet

import (
	"fmt"
	"strings"

	"github.com/warp/reminder-bridge/reminder"
)

// Scenario describes a demo sheet.
type Scenario struct {
	ID          string
	Name        string
	Description string
}

// Scenarios lists the available demo sheets.
var Scenarios = []Scenario{
	{ID: "mixed", Name: "Mixed", Description: "Due today, overdue, already sent, blank and garbage dates"},
	{ID: "backlog", Name: "Backlog", Description: "Several overdue rows for until_today"},
	{ID: "offset", Name: "Offset range", Description: "Header on row 3 starting at column B"},
}

// Demo builds the named scenario relative to today.
func Demo(id string, today reminder.Date) (*Memory, error) {
	d := func(days int) string { return today.AddDays(days).Display() }

	switch id {
	case "mixed":
		rng, _ := ParseRange("Hoja1!A1:D")
		return NewMemory(rng, [][]string{
			{"Nombre", "Cargo", "Fecha (dd/mm/yy)", "Enviado"},
			{"Ana", "Gerente", d(0), ""},
			{"Luis", "Analista", d(-1), ""},
			{"Eva", "Directora", d(0), reminder.SentMarker},
			{"Sin fecha", "Becario", "", ""},
			{"Fecha rota", "Becario", "31/02/25", ""},
			{"Mañana", "Consultor", d(1), ""},
		}), nil

	case "backlog":
		rng, _ := ParseRange("Hoja1!A1:D")
		cells := [][]string{{"Nombre", "Cargo", "Fecha", "Enviado"}}
		for i := 5; i >= 0; i-- {
			cells = append(cells, []string{fmt.Sprintf("Persona %d", 6-i), "Operaciones", d(-i), ""})
		}
		return NewMemory(rng, cells), nil

	case "offset":
		rng, _ := ParseRange("Hoja1!B3:E")
		return NewMemory(rng, [][]string{
			{"", "Reporte semanal"},
			{},
			{"", "Nombre", "Cargo", "Fecha", "Enviado"},
			{"", "Ana", "Gerente", d(0), ""},
			{"", "Luis", "Analista", d(0), "SÍ"},
		}), nil
	}

	return nil, fmt.Errorf("unknown demo scenario %q (available: %s)", id, strings.Join(ScenarioIDs(), ", "))
}

// ScenarioIDs returns the IDs of Scenarios in order.
func ScenarioIDs() []string {
	ids := make([]string, len(Scenarios))
	for i, s := range Scenarios {
		ids[i] = s.ID
	}
	return ids
}
