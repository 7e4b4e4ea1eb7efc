/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the reminder core from the external API contract:
  - Dates are rendered as YYYY-MM-DD (reference) and DD/MM/YYYY (sheet)
  - Errors are flattened to strings
  - Sheet columns are exposed both as numbers and as letters

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Complex response wrappers

TYPES:
  Session:        StatusDTO
  Sheet:          HeaderDTO, HeadersResponse, RecordDTO, PreviewResponse
  Reconciliation: ProcessedDTO, SendResponse
  History:        RunDTO, DeliveryDTO, RunDetailResponse
  Errors:         ErrorResponse

SEE ALSO:
  - handlers.go: Uses these types
  - reminder/engine.go: Result and Processed
*/
package api

import (
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/warp/reminder-bridge/channel"
	"github.com/warp/reminder-bridge/reminder"
	"github.com/warp/reminder-bridge/store/sqlite"
)

// =============================================================================
// SESSION DTOs
// =============================================================================

// StatusDTO describes the messaging session and the trigger defaults.
type StatusDTO struct {
	State        string `json:"state"`
	Ready        bool   `json:"ready"`
	HasCode      bool   `json:"has_code"`
	Reason       string `json:"reason,omitempty"`
	ChangedAt    string `json:"changed_at"`
	Mode         string `json:"mode"`
	Destinations int    `json:"destinations"`
	Today        string `json:"today"`
	Busy         bool   `json:"busy"`
}

func toStatusDTO(s channel.Status) StatusDTO {
	return StatusDTO{
		State:     string(s.State),
		Ready:     s.Ready,
		HasCode:   s.HasCode,
		Reason:    s.Reason,
		ChangedAt: s.ChangedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// SHEET DTOs
// =============================================================================

// HeaderDTO is one resolved logical column.
type HeaderDTO struct {
	Field  string `json:"field"`
	Column int    `json:"column"`
	Letter string `json:"letter"`
}

// HeadersResponse is the resolved header row.
type HeadersResponse struct {
	Fields  []HeaderDTO    `json:"fields"`
	Columns map[string]int `json:"columns"`
}

func toHeadersResponse(h reminder.HeaderMap) HeadersResponse {
	resp := HeadersResponse{
		Fields:  make([]HeaderDTO, 0, len(reminder.RequiredFields)),
		Columns: h.Columns,
	}
	if resp.Columns == nil {
		resp.Columns = map[string]int{}
	}
	for _, f := range reminder.RequiredFields {
		col := h.Column(f)
		if col == 0 {
			continue
		}
		letter, _ := excelize.ColumnNumberToName(col)
		resp.Fields = append(resp.Fields, HeaderDTO{Field: string(f), Column: col, Letter: letter})
	}
	return resp
}

// RecordDTO is one due row.
type RecordDTO struct {
	Row     int    `json:"row"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Date    string `json:"date,omitempty"`
	RawDate string `json:"raw_date"`
	Message string `json:"message"`
}

// PreviewResponse is the due set of a reference date.
type PreviewResponse struct {
	ReferenceDate string          `json:"reference_date"`
	Mode          string          `json:"mode"`
	Total         int             `json:"total"`
	DueCount      int             `json:"due_count"`
	Due           []RecordDTO     `json:"due"`
	Headers       HeadersResponse `json:"headers"`
}

func toPreviewResponse(v *reminder.DueSetView) PreviewResponse {
	resp := PreviewResponse{
		ReferenceDate: v.ReferenceDate.String(),
		Mode:          string(v.Mode),
		Total:         v.Total,
		DueCount:      len(v.Due),
		Due:           make([]RecordDTO, 0, len(v.Due)),
		Headers:       toHeadersResponse(v.Headers),
	}
	for _, r := range v.Due {
		dto := RecordDTO{
			Row:     r.RowNumber,
			Name:    r.Name,
			Role:    r.Role,
			RawDate: r.RawDate,
			Message: reminder.Render(r),
		}
		if r.Date != nil {
			dto.Date = r.Date.Display()
		}
		resp.Due = append(resp.Due, dto)
	}
	return resp
}

// =============================================================================
// RECONCILIATION DTOs
// =============================================================================

// ProcessedDTO is the outcome of one due row.
type ProcessedDTO struct {
	Row     int      `json:"row"`
	Name    string   `json:"name"`
	Outcome string   `json:"outcome"`
	Errors  []string `json:"errors,omitempty"`
}

// SendResponse is the accounting of one pass.
type SendResponse struct {
	RunID         string         `json:"run_id,omitempty"`
	ReferenceDate string         `json:"reference_date"`
	Mode          string         `json:"mode"`
	Count         int            `json:"count"`
	Sent          int            `json:"sent"`
	Failed        int            `json:"failed"`
	Processed     []ProcessedDTO `json:"processed"`
}

func toSendResponse(runID string, res *reminder.Result) SendResponse {
	resp := SendResponse{
		RunID:         runID,
		ReferenceDate: res.ReferenceDate.String(),
		Mode:          string(res.Mode),
		Count:         res.Count,
		Sent:          res.Sent,
		Failed:        res.Failed,
		Processed:     make([]ProcessedDTO, 0, len(res.Processed)),
	}
	for _, p := range res.Processed {
		resp.Processed = append(resp.Processed, ProcessedDTO{
			Row:     p.RowNumber,
			Name:    p.Name,
			Outcome: string(p.Outcome),
			Errors:  errorStrings(p.Errors),
		})
	}
	return resp
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

// =============================================================================
// HISTORY DTOs
// =============================================================================

// RunDTO is one stored pass.
type RunDTO struct {
	ID            string `json:"id"`
	ReferenceDate string `json:"reference_date"`
	Mode          string `json:"mode"`
	Status        string `json:"status"`
	Count         int    `json:"count"`
	Sent          int    `json:"sent"`
	Failed        int    `json:"failed"`
	Error         string `json:"error,omitempty"`
	StartedAt     string `json:"started_at,omitempty"`
	CompletedAt   string `json:"completed_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toRunDTO(run sqlite.ReconciliationRun) RunDTO {
	dto := RunDTO{
		ID:            run.ID,
		ReferenceDate: run.ReferenceDate,
		Mode:          run.Mode,
		Status:        run.Status,
		Count:         run.DueCount,
		Sent:          run.SentCount,
		Failed:        run.FailedCount,
		Error:         run.Error,
		CreatedAt:     run.CreatedAt.Format(time.RFC3339),
	}
	if run.StartedAt != nil {
		dto.StartedAt = run.StartedAt.Format(time.RFC3339)
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

// DeliveryDTO is one stored row outcome.
type DeliveryDTO struct {
	Row     int      `json:"row"`
	Name    string   `json:"name"`
	Outcome string   `json:"outcome"`
	Errors  []string `json:"errors,omitempty"`
}

// RunDetailResponse is a pass with its deliveries.
type RunDetailResponse struct {
	RunDTO
	Deliveries []DeliveryDTO `json:"deliveries"`
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
