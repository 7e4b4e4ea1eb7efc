package reminder_test

import (
	"context"
	"errors"
	"sync"

	"github.com/warp/reminder-bridge/reminder"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type sendCall struct {
	Address string
	Message string
}

type writeCall struct {
	Row    int
	Column int
	Value  string
}

// stubChannel records sends. failFor makes sends to those addresses fail.
type stubChannel struct {
	mu        sync.Mutex
	ready     bool
	failFor   map[string]bool
	sends     []sendCall
	readyHits int
	// block, when non-nil, is waited on inside Send.
	block chan struct{}
	// entered is signalled when Send is first reached.
	entered chan struct{}
}

func newStubChannel() *stubChannel {
	return &stubChannel{ready: true, failFor: map[string]bool{}}
}

func (c *stubChannel) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readyHits++
	return c.ready
}

func (c *stubChannel) Send(_ context.Context, address, message string) error {
	if c.entered != nil {
		select {
		case c.entered <- struct{}{}:
		default:
		}
	}
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, sendCall{Address: address, Message: message})
	if c.failFor[address] {
		return errors.New("session dropped")
	}
	return nil
}

func (c *stubChannel) Sends() []sendCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sendCall(nil), c.sends...)
}

// stubStore serves a fixed table and records writes.
type stubStore struct {
	mu      sync.Mutex
	table   reminder.Table
	readErr error
	failRow map[int]bool
	writes  []writeCall
}

func newStubStore(header []string, rows ...[]string) *stubStore {
	return &stubStore{
		table:   reminder.Table{HeaderRow: 1, FirstColumn: 1, Header: header, Rows: rows},
		failRow: map[int]bool{},
	}
}

func (s *stubStore) ReadAll(context.Context) (reminder.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return reminder.Table{}, s.readErr
	}
	return s.table, nil
}

func (s *stubStore) WriteCell(_ context.Context, row, column int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, writeCall{Row: row, Column: column, Value: value})
	if s.failRow[row] {
		return errors.New("quota exceeded")
	}
	return nil
}

func (s *stubStore) Writes() []writeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]writeCall(nil), s.writes...)
}

var spanishHeader = []string{"Nombre", "Cargo", "Fecha", "Enviado"}
