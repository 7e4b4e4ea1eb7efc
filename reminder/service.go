/*
service.go - Trigger surface consumed by the HTTP layer

PURPOSE:
  Wires the store gateway, projection and engine together for the three
  operations the outside world can ask for:

    Headers            resolve the header row (inspection)
    Preview            compute the due set without side effects
    RunReconciliation  run a full send-then-mark pass

SINGLE WRITER:
  RunReconciliation holds a mutex for the whole pass and uses TryLock, so
  an overlapping call fails fast with ErrPassInProgress instead of
  queueing behind a pass that may take minutes. Preview and Headers are
  read-only and never take the lock.

FRESH READS:
  Every call reads the sheet again. Nothing is cached between requests;
  the sheet is the only source of truth for "already sent".
*/
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DueSetView is the read-only answer of Preview.
type DueSetView struct {
	ReferenceDate Date
	Mode          Mode
	Headers       HeaderMap
	Total         int
	Due           []Record
}

// Service is the trigger surface of the reminder core.
type Service struct {
	Store        StoreGateway
	Engine       *Engine
	Destinations []string
	DefaultMode  Mode
	Location     *time.Location
	Logger       *slog.Logger

	mu sync.Mutex
}

// NewService creates a service sending through channel and marking rows
// through store.
func NewService(store StoreGateway, channel ChannelGateway, destinations []string) *Service {
	return &Service{
		Store:        store,
		Engine:       &Engine{Channel: channel, Store: store},
		Destinations: destinations,
		DefaultMode:  ModeToday,
		Location:     time.UTC,
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Today returns the current reference date in the service location.
func (s *Service) Today() Date {
	return Today(s.Location)
}

// ResolveMode returns the configured default for an empty mode string.
func (s *Service) ResolveMode(raw string) Mode {
	if raw == "" {
		if s.DefaultMode == "" {
			return ModeToday
		}
		return s.DefaultMode
	}
	return ParseMode(raw)
}

// load reads the sheet and projects it.
func (s *Service) load(ctx context.Context) (HeaderMap, []Record, error) {
	table, err := s.Store.ReadAll(ctx)
	if err != nil {
		return HeaderMap{}, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return Project(table)
}

// Headers resolves the header row of the sheet.
func (s *Service) Headers(ctx context.Context) (HeaderMap, error) {
	table, err := s.Store.ReadAll(ctx)
	if err != nil {
		return HeaderMap{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return BuildHeaderMap(table.Header, table.FirstColumn)
}

// Preview computes the due set without sending or writing anything.
func (s *Service) Preview(ctx context.Context, ref Date, mode Mode) (*DueSetView, error) {
	h, records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return &DueSetView{
		ReferenceDate: ref,
		Mode:          mode,
		Headers:       h,
		Total:         len(records),
		Due:           ComputeDueSet(records, ref, mode),
	}, nil
}

// RunReconciliation runs one pass against the configured destinations.
// It returns ErrPassInProgress if another pass is running.
func (s *Service) RunReconciliation(ctx context.Context, ref Date, mode Mode) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrPassInProgress
	}
	defer s.mu.Unlock()

	log := s.logger()
	log.Info("reconciliation_started", "reference_date", ref.String(), "mode", mode)

	h, records, err := s.load(ctx)
	if err != nil {
		log.Error("reconciliation_aborted", "error", err)
		return nil, err
	}

	result, err := s.Engine.Reconcile(ctx, ReconcileInput{
		Records:       records,
		SentColumn:    h.Column(FieldSent),
		ReferenceDate: ref,
		Mode:          mode,
		Destinations:  s.Destinations,
	})
	if err != nil {
		log.Error("reconciliation_aborted", "error", err)
		return result, err
	}

	log.Info("reconciliation_completed",
		"reference_date", ref.String(), "mode", mode,
		"count", result.Count, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

// Busy reports whether a pass is running right now.
func (s *Service) Busy() bool {
	if s.mu.TryLock() {
		s.mu.Unlock()
		return false
	}
	return true
}
