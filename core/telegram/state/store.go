package state

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/m3rciful/doorshop/core/logger"
)

// Dialog is one user's progress through a multi-step flow.
type Dialog struct {
	Flow   string
	Step   int
	ChatID int64
	Fields map[string]any
}

// Active reports whether d belongs to a flow.
func (d Dialog) Active() bool { return d.Flow != "" }

// Clone returns a copy whose Fields map can be modified independently.
func (d Dialog) Clone() Dialog {
	d.Fields = maps.Clone(d.Fields)
	if d.Fields == nil {
		d.Fields = make(map[string]any)
	}
	return d
}

// String returns field key as a string.
func (d Dialog) String(key string) string {
	s, _ := d.Fields[key].(string)
	return s
}

// Int64 returns field key as an int64.
func (d Dialog) Int64(key string) (int64, bool) {
	v, ok := d.Fields[key].(int64)
	return v, ok
}

// Store holds dialogs keyed by user id. A user runs at most one flow.
type Store struct {
	mu      sync.RWMutex
	dialogs map[int64]Dialog
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{dialogs: make(map[int64]Dialog)}
}

// Get returns the user's dialog.
func (s *Store) Get(userID int64) (Dialog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dialogs[userID]
	return d, ok
}

// Start begins flow for the user, replacing whatever flow was running.
func (s *Store) Start(ctx context.Context, userID, chatID int64, flow string, fields map[string]any) Dialog {
	d := Dialog{Flow: flow, ChatID: chatID, Fields: maps.Clone(fields)}
	if d.Fields == nil {
		d.Fields = make(map[string]any)
	}
	s.mu.Lock()
	prev, had := s.dialogs[userID]
	s.dialogs[userID] = d
	s.mu.Unlock()
	if had {
		logger.Debug(ctx, logger.CompDialog, "dialog.replaced",
			slog.String("flow", flow),
			slog.String("previous", prev.Flow),
			slog.Int("step", prev.Step),
		)
	}
	return d
}

// Put stores d as the user's current dialog.
func (s *Store) Put(userID int64, d Dialog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs[userID] = d
}

// Clear removes the user's dialog and returns it.
func (s *Store) Clear(userID int64) (Dialog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dialogs[userID]
	delete(s.dialogs, userID)
	return d, ok
}

// InProgress reports whether the user is inside a flow.
func (s *Store) InProgress(userID int64) bool {
	d, ok := s.Get(userID)
	return ok && d.Active()
}

// Len returns the number of open dialogs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dialogs)
}
