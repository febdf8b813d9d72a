// Package gateway is the narrow messaging port the shop talks through.
// Telebot implements it on a live bot; tests use in-memory fakes.
package gateway

import (
	"context"
	"io"

	tele "gopkg.in/telebot.v4"
)

// Kind is the media type of an attachment.
type Kind string

const (
	Photo Kind = "photo"
	Video Kind = "video"
)

// Media references an attachment by Telegram file id or by local path.
// FileID wins when both are set.
type Media struct {
	Kind   Kind
	FileID string
	Path   string
}

// Document is an outgoing file built in memory.
type Document struct {
	Name    string
	Reader  io.Reader
	Caption string
}

// Gateway sends, edits and deletes chat messages and downloads media.
// Message ids are returned so callers can track them.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string, kb *tele.ReplyMarkup) (int, error)
	SendMedia(ctx context.Context, chatID int64, m Media, caption string, kb *tele.ReplyMarkup) (int, error)
	SendMediaGroup(ctx context.Context, chatID int64, items []Media) ([]int, error)
	SendDocument(ctx context.Context, chatID int64, doc Document) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb *tele.ReplyMarkup) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	Download(ctx context.Context, fileID, dest string) error
}
