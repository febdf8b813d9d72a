package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/doorshop/core/logger"

	tele "gopkg.in/telebot.v4"
)

// ErrNotModified is returned by EditText when the message already shows the
// requested content.
var ErrNotModified = errors.New("gateway: message is not modified")

// Telebot implements Gateway on a telebot instance.
type Telebot struct {
	bot *tele.Bot
}

// NewTelebot wraps bot.
func NewTelebot(bot *tele.Bot) *Telebot {
	return &Telebot{bot: bot}
}

func sendOpts(kb *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{ReplyMarkup: kb}
}

func (m Media) file() tele.File {
	if m.FileID != "" {
		return tele.File{FileID: m.FileID}
	}
	return tele.FromDisk(m.Path)
}

func (m Media) inputtable(caption string) (tele.Inputtable, error) {
	switch m.Kind {
	case Photo:
		return &tele.Photo{File: m.file(), Caption: caption}, nil
	case Video:
		return &tele.Video{File: m.file(), Caption: caption}, nil
	default:
		return nil, fmt.Errorf("gateway: unsupported media kind %q", m.Kind)
	}
}

// SendText sends a plain text message.
func (t *Telebot) SendText(ctx context.Context, chatID int64, text string, kb *tele.ReplyMarkup) (int, error) {
	start := time.Now()
	msg, err := t.bot.Send(tele.ChatID(chatID), text, sendOpts(kb))
	t.trace(ctx, "sendMessage", chatID, start, err)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// SendMedia sends one photo or video with an optional caption and keyboard.
func (t *Telebot) SendMedia(ctx context.Context, chatID int64, m Media, caption string, kb *tele.ReplyMarkup) (int, error) {
	what, err := m.inputtable(caption)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	msg, err := t.bot.Send(tele.ChatID(chatID), what, sendOpts(kb))
	endpoint := "sendPhoto"
	if m.Kind == Video {
		endpoint = "sendVideo"
	}
	t.trace(ctx, endpoint, chatID, start, err)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// SendMediaGroup sends items as one album. Albums carry no keyboard.
func (t *Telebot) SendMediaGroup(ctx context.Context, chatID int64, items []Media) ([]int, error) {
	album := make(tele.Album, 0, len(items))
	for _, m := range items {
		in, err := m.inputtable("")
		if err != nil {
			return nil, err
		}
		album = append(album, in)
	}
	start := time.Now()
	msgs, err := t.bot.SendAlbum(tele.ChatID(chatID), album)
	t.trace(ctx, "sendMediaGroup", chatID, start, err)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
	}
	return ids, nil
}

// SendDocument uploads doc from memory.
func (t *Telebot) SendDocument(ctx context.Context, chatID int64, doc Document) (int, error) {
	start := time.Now()
	msg, err := t.bot.Send(tele.ChatID(chatID), &tele.Document{
		File:     tele.FromReader(doc.Reader),
		FileName: doc.Name,
		Caption:  doc.Caption,
	})
	t.trace(ctx, "sendDocument", chatID, start, err)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// EditText replaces the text and keyboard of a text message.
func (t *Telebot) EditText(ctx context.Context, chatID int64, messageID int, text string, kb *tele.ReplyMarkup) error {
	start := time.Now()
	_, err := t.bot.Edit(stored(chatID, messageID), text, sendOpts(kb))
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		err = fmt.Errorf("%w: %v", ErrNotModified, err)
	}
	t.trace(ctx, "editMessageText", chatID, start, err)
	return err
}

// Delete removes a message.
func (t *Telebot) Delete(ctx context.Context, chatID int64, messageID int) error {
	start := time.Now()
	err := t.bot.Delete(stored(chatID, messageID))
	t.trace(ctx, "deleteMessage", chatID, start, err)
	return err
}

// Download saves the file behind fileID to dest.
func (t *Telebot) Download(ctx context.Context, fileID, dest string) error {
	start := time.Now()
	err := t.bot.Download(&tele.File{FileID: fileID}, dest)
	t.trace(ctx, "getFile", 0, start, err)
	return err
}

func stored(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{ChatID: chatID, MessageID: strconv.Itoa(messageID)}
}

func (t *Telebot) trace(ctx context.Context, endpoint string, chatID int64, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("endpoint", endpoint),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if chatID != 0 {
		attrs = append(attrs, slog.Int64("target_chat", chatID))
	}
	if err != nil {
		attrs = append(attrs, logger.Err(err))
	}
	logger.Debug(ctx, logger.CompTG, "api.call", attrs...)
}
