package sheet

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/warp/reminder-bridge/reminder"
)

// GoogleConfig configures the Google Sheets gateway.
type GoogleConfig struct {
	SpreadsheetID string
	Range         Range
	// CredentialsFile is a service-account JSON key. Empty means Application
	// Default Credentials.
	CredentialsFile string
}

// Google is a StoreGateway over the Google Sheets API.
type Google struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	rng           Range
}

// NewGoogle builds the Sheets client.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Google{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		rng:           cfg.Range,
	}, nil
}

// ReadAll fetches the configured range as formatted values.
func (g *Google) ReadAll(ctx context.Context) (reminder.Table, error) {
	resp, err := g.values.Get(g.spreadsheetID, g.rng.String()).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return reminder.Table{}, fmt.Errorf("read %s: %w", g.rng, err)
	}

	header, data := splitHeader(stringRows(resp.Values))
	return reminder.Table{
		HeaderRow:   g.rng.StartRow,
		FirstColumn: g.rng.StartColumn,
		Header:      header,
		Rows:        data,
	}, nil
}

// WriteCell overwrites one cell with a raw (unparsed) value.
func (g *Google) WriteCell(ctx context.Context, row, column int, value string) error {
	cell, err := g.rng.CellName(row, column)
	if err != nil {
		return err
	}

	_, err = g.values.Update(g.spreadsheetID, cell, &sheets.ValueRange{
		Values: [][]interface{}{{value}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", cell, err)
	}
	return nil
}

// stringRows converts API values to text. The API omits trailing empty
// cells, so rows come back ragged.
func stringRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			if v == nil {
				continue
			}
			rows[i][j] = fmt.Sprint(v)
		}
	}
	return rows
}
