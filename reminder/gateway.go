/*
gateway.go - Interfaces to the spreadsheet and the messaging channel

PURPOSE:
  The core never talks to Google Sheets, an xlsx file, WhatsApp or an
  e-mail provider directly. It reads and writes through StoreGateway and
  sends through ChannelGateway.

ADDRESSING:
  StoreGateway uses 1-based sheet coordinates. Table.HeaderRow and
  Table.FirstColumn say where the configured range starts, so a range
  such as "Hoja1!B3:E" still writes the sent marker on the right cell.

IMPLEMENTATIONS:
  - sheet/google.go:   Google Sheets API
  - sheet/workbook.go: Local .xlsx file
  - sheet/memory.go:   In-memory (tests, demo mode)
  - channel/whatsapp.go: WhatsApp multi-device session
  - channel/email.go:    Resend e-mail API
*/
package reminder

import "context"

// =============================================================================
// STORE GATEWAY
// =============================================================================

// Table is the full configured range of the sheet.
type Table struct {
	// HeaderRow is the sheet row holding the header (1 for ranges at A1).
	HeaderRow int
	// FirstColumn is the sheet column of the range's first cell (1 = A).
	FirstColumn int
	Header      []string
	Rows        [][]string
}

// StoreGateway reads and writes the backing spreadsheet.
type StoreGateway interface {
	// ReadAll returns the header and every data row of the configured range.
	ReadAll(ctx context.Context) (Table, error)

	// WriteCell overwrites a single cell. Row and column are 1-based sheet
	// coordinates.
	WriteCell(ctx context.Context, row, column int, value string) error
}

// =============================================================================
// CHANNEL GATEWAY
// =============================================================================

// ChannelGateway sends messages over an authenticated messaging session.
type ChannelGateway interface {
	// IsReady reports whether the session can send right now.
	IsReady() bool

	// Send delivers message to address.
	Send(ctx context.Context, address, message string) error
}
