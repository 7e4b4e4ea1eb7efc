/*
engine.go - Due-set selection and the send-then-mark reconciliation pass

PURPOSE:
  Given the records of one pass, decides which are due, sends each due
  record to every destination, and writes the sent marker back only when
  every send for that record succeeded.

GUARANTEES (per pass):
  - Each due record is attempted at most once.
  - The sent marker is never written before all sends for the record
    succeed, so a partial failure never produces a false "sent" state.
  - A failed send to one destination does not stop the remaining
    destinations or the remaining records.
  - A failed write-back is recorded and the next record is processed.

NOT GUARANTEED:
  Exactly-once delivery across passes. If the write-back fails after the
  sends succeeded, the row stays unmarked and the next pass sends again.

ORDER OF CHECKS:
  1. No destinations         -> ErrNoDestinations
  2. Empty due set           -> empty result, no gateway calls
  3. Channel not ready       -> ErrChannelNotReady
  4. Per record: render, send to all, mark

PACING:
  Delay is inserted between successive destination sends and between
  successive records. It only paces the messaging channel; it does not
  reorder anything.
*/
package reminder

import (
	"context"
	"log/slog"
	"time"
)

// =============================================================================
// DUE SET
// =============================================================================

// ComputeDueSet returns the records due on ref under mode, in row order.
// It has no side effects.
func ComputeDueSet(records []Record, ref Date, mode Mode) []Record {
	due := make([]Record, 0)
	for _, r := range records {
		if r.Date == nil || r.AlreadySent() {
			continue
		}
		if IsDue(*r.Date, ref, mode) {
			due = append(due, r)
		}
	}
	return due
}

// =============================================================================
// RESULT
// =============================================================================

// Outcome is the final state of one due record after a pass.
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeSendFailed  Outcome = "send_failed"
	OutcomeWriteFailed Outcome = "write_failed"
)

// Processed is the accounting for one due record.
type Processed struct {
	RowNumber int
	Name      string
	Outcome   Outcome
	Errors    []error
}

// Result is the complete accounting of a pass, including partial failures.
type Result struct {
	ReferenceDate Date
	Mode          Mode
	Processed     []Processed
	// Count is the number of due records attempted.
	Count int
	// Sent is the number of records marked sent.
	Sent int
	// Failed is Count - Sent.
	Failed int
}

// =============================================================================
// ENGINE
// =============================================================================

// ReconcileInput is everything one pass needs besides the gateways.
type ReconcileInput struct {
	Records       []Record
	SentColumn    int
	ReferenceDate Date
	Mode          Mode
	Destinations  []string
}

// Engine runs reconciliation passes against a channel and a store.
type Engine struct {
	Channel ChannelGateway
	Store   StoreGateway
	// Delay paces consecutive sends. Zero disables pacing.
	Delay  time.Duration
	Logger *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Reconcile runs one pass. Only abort-class errors are returned; per-record
// failures are reported in the result.
func (e *Engine) Reconcile(ctx context.Context, in ReconcileInput) (*Result, error) {
	if len(in.Destinations) == 0 {
		return nil, ErrNoDestinations
	}

	result := &Result{
		ReferenceDate: in.ReferenceDate,
		Mode:          in.Mode,
		Processed:     []Processed{},
	}

	due := ComputeDueSet(in.Records, in.ReferenceDate, in.Mode)
	if len(due) == 0 {
		return result, nil
	}

	if !e.Channel.IsReady() {
		return nil, ErrChannelNotReady
	}

	log := e.logger()
	for i, rec := range due {
		if i > 0 {
			if err := e.pause(ctx); err != nil {
				return result, err
			}
		}

		p := e.process(ctx, rec, in)
		result.Processed = append(result.Processed, p)
		result.Count++
		if p.Outcome == OutcomeSent {
			result.Sent++
		} else {
			result.Failed++
		}

		log.Info("reminder_processed",
			"row", rec.RowNumber, "name", rec.Name, "outcome", p.Outcome, "errors", len(p.Errors))
	}

	return result, nil
}

// process sends one record to every destination and marks it on full success.
func (e *Engine) process(ctx context.Context, rec Record, in ReconcileInput) Processed {
	p := Processed{RowNumber: rec.RowNumber, Name: rec.Name}
	text := Render(rec)
	log := e.logger()

	for i, addr := range in.Destinations {
		if i > 0 {
			if err := e.pause(ctx); err != nil {
				p.Errors = append(p.Errors, &SendError{RowNumber: rec.RowNumber, Address: addr, Err: err})
				continue
			}
		}
		if err := e.Channel.Send(ctx, addr, text); err != nil {
			log.Warn("reminder_send_failed", "row", rec.RowNumber, "to", addr, "error", err)
			p.Errors = append(p.Errors, &SendError{RowNumber: rec.RowNumber, Address: addr, Err: err})
		}
	}

	if len(p.Errors) > 0 {
		p.Outcome = OutcomeSendFailed
		return p
	}

	if err := e.Store.WriteCell(ctx, rec.RowNumber, in.SentColumn, SentMarker); err != nil {
		// Sends already went out: the next pass will send this row again.
		log.Error("reminder_mark_failed", "row", rec.RowNumber, "column", in.SentColumn, "error", err)
		p.Errors = append(p.Errors, &WriteError{RowNumber: rec.RowNumber, Column: in.SentColumn, Err: err})
		p.Outcome = OutcomeWriteFailed
		return p
	}

	p.Outcome = OutcomeSent
	return p
}

func (e *Engine) pause(ctx context.Context) error {
	if e.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
