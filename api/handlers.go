/*
handlers.go - HTTP API handlers for the reminder bridge

PURPOSE:
  Exposes the reminder service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the reminder core and the messaging
  session.

ENDPOINTS:
  Session:
    GET    /api/status                 Session state and trigger defaults
    GET    /api/qr                     Current pairing code as PNG
    POST   /api/session/pair           Start pairing again after a logout
    GET    /qr                         Auto-refreshing pairing page

  Sheet:
    GET    /api/headers                Resolved header row
    GET    /api/preview?date=&mode=    Due set, no side effects

  Reconciliation:
    POST   /api/send?date=&mode=       Run a send-then-mark pass
    GET    /api/reconciliation/runs    Pass history (?status=)
    GET    /api/reconciliation/runs/{id}  One pass with row outcomes

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: the reminder core (sheet + channel + engine)
  - Runs:    SQLite pass history (optional)
  - Session: lifecycle of the messaging channel

REQUEST FLOW:
  1. Parse query parameters (date defaults to today, mode to the configured default)
  2. Call the reminder service
  3. Record the pass in history
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  - 400: Invalid date
  - 404: Unknown run, no pairing code
  - 409: A pass is already running
  - 422: Sheet layout or destination configuration problem
  - 502: The spreadsheet could not be read
  - 503: Messaging channel not ready
  - 500: Internal errors

A pass is not bound to the request that triggered it: once the sheet has
been read and sends start, a client disconnect must not leave a sent row
unmarked.

SECURITY NOTE:
  No authentication. Run behind a trusted network or a reverse proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/reminder-bridge/channel"
	"github.com/warp/reminder-bridge/reminder"
	"github.com/warp/reminder-bridge/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pairer restarts the pairing flow of a messaging channel.
type Pairer interface {
	Start() error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *reminder.Service
	Runs    *sqlite.Store
	Session *channel.Session
	// Pairer is nil for channels without a pairing flow.
	Pairer Pairer
	Logger *slog.Logger

	now func() time.Time
}

// NewHandler creates a new handler. runs may be nil to disable history.
func NewHandler(service *reminder.Service, runs *sqlite.Store, session *channel.Session) *Handler {
	return &Handler{
		Service: service,
		Runs:    runs,
		Session: session,
		now:     time.Now,
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// =============================================================================
// SESSION ENDPOINTS
// =============================================================================

// Status returns the session state and the trigger defaults.
// GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	dto := toStatusDTO(h.Session.Snapshot())
	dto.Mode = string(h.Service.ResolveMode(""))
	dto.Destinations = len(h.Service.Destinations)
	dto.Today = h.Service.Today().String()
	dto.Busy = h.Service.Busy()
	writeJSON(w, http.StatusOK, dto)
}

// QR returns the current pairing code as a PNG.
// GET /api/qr
func (h *Handler) QR(w http.ResponseWriter, r *http.Request) {
	code, ok := h.Session.PairingCode()
	if !ok {
		writeCodedError(w, http.StatusNotFound, "no_pairing_code", "No pairing code available", nil)
		return
	}

	png, err := channel.QRCodePNG(code, channel.DefaultQRSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render QR code", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

var qrPage = template.Must(template.New("qr").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>Vincular sesión</title>
</head>
<body style="font-family: system-ui; max-width: 480px; margin: 50px auto; text-align: center;">
<h1>Vincular sesión</h1>
{{if .Ready}}
<p>✅ Sesión conectada.</p>
{{else if .HasCode}}
<p>Escanea el código desde <em>Dispositivos vinculados</em>.</p>
<img src="/api/qr?t={{.Stamp}}" alt="QR" width="320" height="320">
{{else}}
<p>Estado: {{.State}}{{if .Reason}} ({{.Reason}}){{end}}</p>
<p>Esperando código…</p>
{{end}}
</body>
</html>`))

// QRPage renders a small page that embeds the QR and refreshes itself.
// GET /qr
func (h *Handler) QRPage(w http.ResponseWriter, r *http.Request) {
	s := h.Session.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err := qrPage.Execute(w, map[string]any{
		"Ready":   s.Ready,
		"HasCode": s.HasCode,
		"State":   s.State,
		"Reason":  s.Reason,
		"Stamp":   h.now().Unix(),
	})
	if err != nil {
		h.logger().Error("qr_page_render_failed", "error", err)
	}
}

// Pair restarts the pairing flow, e.g. after the device was logged out.
// POST /api/session/pair
func (h *Handler) Pair(w http.ResponseWriter, r *http.Request) {
	if h.Pairer == nil {
		writeCodedError(w, http.StatusNotImplemented, "pairing_unsupported", "Channel has no pairing flow", nil)
		return
	}
	if h.Session.IsReady() {
		writeJSON(w, http.StatusOK, toStatusDTO(h.Session.Snapshot()))
		return
	}
	if err := h.Pairer.Start(); err != nil {
		writeError(w, http.StatusBadGateway, "Failed to start pairing", err)
		return
	}
	writeJSON(w, http.StatusAccepted, toStatusDTO(h.Session.Snapshot()))
}

// =============================================================================
// SHEET ENDPOINTS
// =============================================================================

// Headers returns the resolved header row.
// GET /api/headers
func (h *Handler) Headers(w http.ResponseWriter, r *http.Request) {
	hm, err := h.Service.Headers(r.Context())
	if err != nil {
		h.writeReminderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHeadersResponse(hm))
}

// Preview returns the due set without sending anything.
// GET /api/preview?date=YYYY-MM-DD&mode=today|until_today
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	ref, mode, ok := h.parseTrigger(w, r)
	if !ok {
		return
	}

	view, err := h.Service.Preview(r.Context(), ref, mode)
	if err != nil {
		h.writeReminderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewResponse(view))
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

// Send runs one reconciliation pass and records it in history.
// POST /api/send?date=YYYY-MM-DD&mode=today|until_today
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	ref, mode, ok := h.parseTrigger(w, r)
	if !ok {
		return
	}

	// Detached from the request: history writes must survive a client hang-up too.
	ctx := context.WithoutCancel(r.Context())

	started := h.now()
	run := sqlite.ReconciliationRun{
		ID:            uuid.NewString(),
		ReferenceDate: ref.String(),
		Mode:          string(mode),
		Status:        sqlite.StatusRunning,
		StartedAt:     &started,
		CreatedAt:     started,
	}
	h.saveRun(ctx, run)

	result, err := h.Service.RunReconciliation(ctx, ref, mode)

	completed := h.now()
	run.CompletedAt = &completed
	switch {
	case errors.Is(err, reminder.ErrPassInProgress):
		run.Status = sqlite.StatusRejected
		run.Error = err.Error()
	case err != nil:
		run.Status = sqlite.StatusFailed
		run.Error = err.Error()
	default:
		run.Status = sqlite.StatusCompleted
	}
	if result != nil {
		run.DueCount, run.SentCount, run.FailedCount = result.Count, result.Sent, result.Failed
		h.saveDeliveries(ctx, run, result)
	}
	h.saveRun(ctx, run)

	if err != nil {
		h.writeReminderError(w, err)
		return
	}

	runID := run.ID
	if h.Runs == nil {
		runID = ""
	}
	writeJSON(w, http.StatusOK, toSendResponse(runID, result))
}

// ListReconciliationRuns returns reconciliation run history.
// GET /api/reconciliation/runs
func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []RunDTO{}})
		return
	}
	status := r.URL.Query().Get("status")

	runs, err := h.Runs.GetReconciliationRuns(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reconciliation runs", err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// GetReconciliationRun returns one pass with its row outcomes.
// GET /api/reconciliation/runs/{id}
func (h *Handler) GetReconciliationRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.Runs == nil {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}

	run, deliveries, err := h.Runs.GetReconciliationRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reconciliation run", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}

	resp := RunDetailResponse{
		RunDTO:     toRunDTO(*run),
		Deliveries: make([]DeliveryDTO, 0, len(deliveries)),
	}
	for _, d := range deliveries {
		resp.Deliveries = append(resp.Deliveries, DeliveryDTO{
			Row:     d.RowNumber,
			Name:    d.Name,
			Outcome: d.Outcome,
			Errors:  d.Errors,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HISTORY
// =============================================================================

// saveRun records a run. History is best effort: the sheet already holds
// the outcome, so a failure here is logged and the request goes on.
func (h *Handler) saveRun(ctx context.Context, run sqlite.ReconciliationRun) {
	if h.Runs == nil {
		return
	}
	if err := h.Runs.SaveReconciliationRun(ctx, run); err != nil {
		h.logger().Warn("run_history_save_failed", "run_id", run.ID, "status", run.Status, "error", err)
	}
}

func (h *Handler) saveDeliveries(ctx context.Context, run sqlite.ReconciliationRun, result *reminder.Result) {
	if h.Runs == nil || len(result.Processed) == 0 {
		return
	}
	deliveries := make([]sqlite.Delivery, 0, len(result.Processed))
	for _, p := range result.Processed {
		deliveries = append(deliveries, sqlite.Delivery{
			RunID:     run.ID,
			RowNumber: p.RowNumber,
			Name:      p.Name,
			Outcome:   string(p.Outcome),
			Errors:    errorStrings(p.Errors),
		})
	}
	if err := h.Runs.SaveDeliveries(ctx, run.ID, deliveries); err != nil {
		h.logger().Warn("run_history_save_failed", "run_id", run.ID, "error", err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// parseTrigger reads ?date= and ?mode=. An unparseable date is a 400; an
// unknown mode falls back to "today".
func (h *Handler) parseTrigger(w http.ResponseWriter, r *http.Request) (reminder.Date, reminder.Mode, bool) {
	q := r.URL.Query()
	mode := h.Service.ResolveMode(q.Get("mode"))

	raw := q.Get("date")
	if raw == "" {
		return h.Service.Today(), mode, true
	}
	ref, ok := reminder.ParseISODate(raw)
	if !ok {
		// Accept the sheet format as well.
		ref, ok = reminder.ParseDate(raw)
	}
	if !ok {
		writeCodedError(w, http.StatusBadRequest, "invalid_date", "Invalid date, expected YYYY-MM-DD", nil)
		return reminder.Date{}, "", false
	}
	return ref, mode, true
}

// writeReminderError maps reminder errors to HTTP status codes.
func (h *Handler) writeReminderError(w http.ResponseWriter, err error) {
	var missing *reminder.MissingHeadersError
	switch {
	case errors.As(err, &missing):
		fields := make([]string, len(missing.Fields))
		for i, f := range missing.Fields {
			fields[i] = string(f)
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   err.Error(),
			Code:    "missing_headers",
			Details: map[string]any{"missing": fields},
		})
	case errors.Is(err, reminder.ErrNoDestinations):
		writeCodedError(w, http.StatusUnprocessableEntity, "no_destinations", "No destination addresses configured", err)
	case errors.Is(err, reminder.ErrChannelNotReady):
		writeCodedError(w, http.StatusServiceUnavailable, "channel_not_ready", "Messaging channel not ready", err)
	case errors.Is(err, reminder.ErrPassInProgress):
		writeCodedError(w, http.StatusConflict, "pass_in_progress", "A reconciliation pass is already running", err)
	case errors.Is(err, reminder.ErrStoreUnavailable):
		writeCodedError(w, http.StatusBadGateway, "store_unavailable", "Spreadsheet could not be read", err)
	default:
		h.logger().Error("request_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeCodedError(w, status, "", message, err)
}

func writeCodedError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
