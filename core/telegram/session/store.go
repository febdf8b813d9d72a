// Package session tracks the messages the bot owns in every chat: one
// editable main-menu anchor and a list of ephemeral messages that are
// deleted on the next navigation.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/m3rciful/doorshop/core/logger"
	"github.com/m3rciful/doorshop/core/telegram/gateway"

	tele "gopkg.in/telebot.v4"
)

// Messenger is the part of the gateway the store needs.
type Messenger interface {
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb *tele.ReplyMarkup) error
	Delete(ctx context.Context, chatID int64, messageID int) error
}

type anchor struct {
	id    int
	media bool
}

// Store owns the main-menu and ephemeral message maps. Safe for concurrent use.
type Store struct {
	msg Messenger

	mu        sync.Mutex
	mainMenu  map[int64]anchor
	ephemeral map[int64][]int
}

// New returns an empty Store that edits and deletes through msg.
func New(msg Messenger) *Store {
	return &Store{
		msg:       msg,
		mainMenu:  make(map[int64]anchor),
		ephemeral: make(map[int64][]int),
	}
}

// MainMenu returns the id of the chat's live main-menu message.
func (s *Store) MainMenu(chatID int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.mainMenu[chatID]
	return a.id, ok
}

// Ephemeral returns a copy of the chat's tracked ephemeral ids.
func (s *Store) Ephemeral(chatID int64) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ephemeral[chatID])
}

// RegisterMainMenu records a text message as the chat's main menu.
func (s *Store) RegisterMainMenu(chatID int64, messageID int) {
	s.setMainMenu(chatID, anchor{id: messageID})
}

// RegisterMediaMainMenu records a photo or video message as the main menu.
// It cannot be edited into text, so the next UpdateMainMenu replaces it.
func (s *Store) RegisterMediaMainMenu(chatID int64, messageID int) {
	s.setMainMenu(chatID, anchor{id: messageID, media: true})
}

func (s *Store) setMainMenu(chatID int64, a anchor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mainMenu[chatID] = a
}

// RegisterEphemeral appends ids to the chat's ephemeral list.
func (s *Store) RegisterEphemeral(chatID int64, messageIDs ...int) {
	if len(messageIDs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ephemeral[chatID] = append(s.ephemeral[chatID], messageIDs...)
}

// ForgetEphemeral removes messageID from the chat's ephemeral list without
// touching the chat. It reports whether the id was tracked.
func (s *Store) ForgetEphemeral(chatID int64, messageID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.ephemeral[chatID]
	i := slices.Index(ids, messageID)
	if i < 0 {
		return false
	}
	ids = slices.Delete(ids, i, i+1)
	if len(ids) == 0 {
		delete(s.ephemeral, chatID)
	} else {
		s.ephemeral[chatID] = ids
	}
	return true
}

// ForgetMainMenu drops the anchor without touching the chat.
func (s *Store) ForgetMainMenu(chatID int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.mainMenu[chatID]
	delete(s.mainMenu, chatID)
	return a.id, ok
}

// UpdateMainMenu edits the live main menu in place and reports success.
// On false the anchor is gone and the caller sends a fresh message and
// registers it. A media anchor or a failed edit is deleted best-effort.
func (s *Store) UpdateMainMenu(ctx context.Context, chatID int64, text string, kb *tele.ReplyMarkup) bool {
	s.mu.Lock()
	a, ok := s.mainMenu[chatID]
	s.mu.Unlock()
	if !ok {
		return false
	}

	reason := "media_anchor"
	if !a.media {
		err := s.msg.EditText(ctx, chatID, a.id, text, kb)
		if err == nil {
			return true
		}
		reason = "edit_failed"
		if errors.Is(err, gateway.ErrNotModified) {
			reason = "not_modified"
		}
		logger.Debug(ctx, logger.CompSession, "main_menu.edit_failed",
			slog.Int("message_id", a.id),
			slog.String("reason", reason),
			logger.Err(err),
		)
	}

	s.forgetIf(chatID, a.id)
	s.delete(ctx, chatID, a.id, "main_menu")
	logger.Debug(ctx, logger.CompSession, "main_menu.replace",
		slog.Int("message_id", a.id),
		slog.String("reason", reason),
	)
	return false
}

func (s *Store) forgetIf(chatID int64, messageID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.mainMenu[chatID]; ok && cur.id == messageID {
		delete(s.mainMenu, chatID)
	}
}

// PurgeEphemeral clears the chat's ephemeral list, then deletes every
// message that was on it. Delete failures are logged and skipped.
func (s *Store) PurgeEphemeral(ctx context.Context, chatID int64) {
	s.mu.Lock()
	ids := s.ephemeral[chatID]
	delete(s.ephemeral, chatID)
	s.mu.Unlock()

	failed := 0
	for _, id := range ids {
		if !s.delete(ctx, chatID, id, "ephemeral") {
			failed++
		}
	}
	if len(ids) > 0 {
		logger.Debug(ctx, logger.CompSession, "ephemeral.purged",
			slog.Int("count", len(ids)),
			slog.Int("failed", failed),
		)
	}
}

// PurgeAll purges ephemeral messages and, unless keepMainMenu is set,
// deletes and forgets the main menu as well.
func (s *Store) PurgeAll(ctx context.Context, chatID int64, keepMainMenu bool) {
	s.PurgeEphemeral(ctx, chatID)
	if keepMainMenu {
		return
	}
	if id, ok := s.ForgetMainMenu(chatID); ok {
		s.delete(ctx, chatID, id, "main_menu")
	}
}

func (s *Store) delete(ctx context.Context, chatID int64, messageID int, kind string) bool {
	if err := s.msg.Delete(ctx, chatID, messageID); err != nil {
		logger.Warn(ctx, logger.CompSession, "message.delete_failed",
			slog.Int("message_id", messageID),
			slog.String("kind", kind),
			logger.Err(err),
		)
		return false
	}
	return true
}
