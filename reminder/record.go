/*
record.go - Projection of raw sheet rows into typed records

PURPOSE:
  Sheet rows arrive as ragged [][]string. Projection resolves the header
  row into a HeaderMap once per pass and turns every data row into a
  Record with explicit empty-string normalization for missing cells.

HEADER MATCHING:
  Header cells are trimmed and lowercased, then matched against the
  aliases of four logical fields:

    name  nombre, name
    role  cargo, role
    date  fecha, fecha (dd/mm/yy), fecha(dd/mm/yy), date
    sent  enviado, sent

  The first matching column wins. Any unresolved field aborts the pass
  with a MissingHeadersError before anything is sent.

ROW NUMBERS:
  RowNumber = HeaderRow + offset + 1, so with the header on row 1 the
  first data row is row 2. This is the only link back to the sheet for
  the sent-marker write and must stay positional.
*/
package reminder

import "strings"

// SentMarker is the value written to (and recognised in) the sent column.
const SentMarker = "sí"

// Field is a logical column of the reminder sheet.
type Field string

const (
	FieldName Field = "name"
	FieldRole Field = "role"
	FieldDate Field = "date"
	FieldSent Field = "sent"
)

// RequiredFields lists every logical field in reporting order.
var RequiredFields = []Field{FieldName, FieldRole, FieldDate, FieldSent}

var headerAliases = map[Field][]string{
	FieldName: {"nombre", "name"},
	FieldRole: {"cargo", "role"},
	FieldDate: {"fecha", "fecha (dd/mm/yy)", "fecha(dd/mm/yy)", "date"},
	FieldSent: {"enviado", "sent"},
}

// =============================================================================
// HEADER MAP
// =============================================================================

// HeaderMap resolves header text and logical fields to sheet columns.
type HeaderMap struct {
	// Columns maps normalized header text to its 1-based sheet column.
	Columns map[string]int
	// Fields maps each logical field to its 1-based sheet column.
	Fields map[Field]int

	firstColumn int
}

// Column returns the sheet column of a logical field.
func (h HeaderMap) Column(f Field) int {
	return h.Fields[f]
}

// index returns the 0-based position of a logical field inside a row.
func (h HeaderMap) index(f Field) int {
	return h.Fields[f] - h.firstColumn
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// BuildHeaderMap resolves the header row. firstColumn is the sheet column of
// header[0]; values below 1 are treated as 1.
func BuildHeaderMap(header []string, firstColumn int) (HeaderMap, error) {
	if firstColumn < 1 {
		firstColumn = 1
	}
	h := HeaderMap{
		Columns:     make(map[string]int, len(header)),
		Fields:      make(map[Field]int, len(RequiredFields)),
		firstColumn: firstColumn,
	}

	for i, cell := range header {
		key := normalizeHeader(cell)
		if key == "" {
			continue
		}
		if _, seen := h.Columns[key]; !seen {
			h.Columns[key] = firstColumn + i
		}
	}

	var missing []Field
	for _, f := range RequiredFields {
		col, ok := resolveField(h.Columns, f)
		if !ok {
			missing = append(missing, f)
			continue
		}
		h.Fields[f] = col
	}
	if len(missing) > 0 {
		return h, &MissingHeadersError{Fields: missing}
	}
	return h, nil
}

// resolveField picks the left-most column matching any alias of f.
func resolveField(columns map[string]int, f Field) (int, bool) {
	best := 0
	for _, alias := range headerAliases[f] {
		if col, ok := columns[alias]; ok && (best == 0 || col < best) {
			best = col
		}
	}
	return best, best > 0
}

// =============================================================================
// RECORD
// =============================================================================

// Record is one data row of the sheet. Records are rebuilt on every pass.
type Record struct {
	RowNumber int
	Name      string
	Role      string
	// Date is nil when the cell is blank or unparseable.
	Date     *Date
	SentFlag string
	// RawDate keeps the cell text for inspection endpoints.
	RawDate string
}

// AlreadySent reports whether the row carries the sent marker.
func (r Record) AlreadySent() bool {
	return r.SentFlag == SentMarker
}

// Project builds the header map and one record per data row.
func Project(table Table) (HeaderMap, []Record, error) {
	headerRow := table.HeaderRow
	if headerRow < 1 {
		headerRow = 1
	}

	h, err := BuildHeaderMap(table.Header, table.FirstColumn)
	if err != nil {
		return h, nil, err
	}

	records := make([]Record, 0, len(table.Rows))
	for offset, row := range table.Rows {
		rawDate := cell(row, h.index(FieldDate))
		rec := Record{
			RowNumber: headerRow + offset + 1,
			Name:      cell(row, h.index(FieldName)),
			Role:      cell(row, h.index(FieldRole)),
			SentFlag:  strings.ToLower(cell(row, h.index(FieldSent))),
			RawDate:   rawDate,
		}
		if d, ok := ParseDate(rawDate); ok {
			rec.Date = &d
		}
		records = append(records, rec)
	}
	return h, records, nil
}

// cell returns the trimmed cell at i, or "" when the row is too short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
