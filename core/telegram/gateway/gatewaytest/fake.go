// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/m3rciful/doorshop/core/telegram/gateway"

	tele "gopkg.in/telebot.v4"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("gatewaytest: injected failure")

// Op names a recorded call.
type Op string

const (
	OpSendText     Op = "send_text"
	OpSendMedia    Op = "send_media"
	OpSendGroup    Op = "send_group"
	OpSendDocument Op = "send_document"
	OpEdit         Op = "edit"
	OpDelete       Op = "delete"
	OpDownload     Op = "download"
)

// Call is one recorded gateway call.
type Call struct {
	Op        Op
	ChatID    int64
	MessageID int
	Text      string
	Media     []gateway.Media
	Keyboard  *tele.ReplyMarkup
	Body      []byte
}

// Message is a message still visible in a chat.
type Message struct {
	ChatID   int64
	Text     string
	Media    *gateway.Media
	Keyboard *tele.ReplyMarkup
}

// Fake records calls and simulates chat contents.
type Fake struct {
	mu       sync.Mutex
	nextID   int
	calls    []Call
	messages map[int]*Message

	// FailEdit makes every EditText fail.
	FailEdit bool
	// FailDelete lists message ids whose deletion fails.
	FailDelete map[int]bool
	// FailSendTo lists chats every send to fails.
	FailSendTo map[int64]bool
	// DownloadBody is written to the destination on Download.
	DownloadBody []byte
}

// New returns an empty Fake. Message ids start at 100.
func New() *Fake {
	return &Fake{
		nextID:     100,
		messages:   make(map[int]*Message),
		FailDelete: make(map[int]bool),
		FailSendTo: make(map[int64]bool),
	}
}

func (f *Fake) record(c Call) {
	f.calls = append(f.calls, c)
}

func (f *Fake) newMessage(m *Message) int {
	f.nextID++
	f.messages[f.nextID] = m
	return f.nextID
}

// SendText implements gateway.Gateway.
func (f *Fake) SendText(_ context.Context, chatID int64, text string, kb *tele.ReplyMarkup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSendTo[chatID] {
		return 0, ErrInjected
	}
	id := f.newMessage(&Message{ChatID: chatID, Text: text, Keyboard: kb})
	f.record(Call{Op: OpSendText, ChatID: chatID, MessageID: id, Text: text, Keyboard: kb})
	return id, nil
}

// SendMedia implements gateway.Gateway.
func (f *Fake) SendMedia(_ context.Context, chatID int64, m gateway.Media, caption string, kb *tele.ReplyMarkup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSendTo[chatID] {
		return 0, ErrInjected
	}
	media := m
	id := f.newMessage(&Message{ChatID: chatID, Text: caption, Media: &media, Keyboard: kb})
	f.record(Call{Op: OpSendMedia, ChatID: chatID, MessageID: id, Text: caption, Media: []gateway.Media{m}, Keyboard: kb})
	return id, nil
}

// SendMediaGroup implements gateway.Gateway.
func (f *Fake) SendMediaGroup(_ context.Context, chatID int64, items []gateway.Media) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSendTo[chatID] {
		return nil, ErrInjected
	}
	ids := make([]int, len(items))
	for i := range items {
		media := items[i]
		ids[i] = f.newMessage(&Message{ChatID: chatID, Media: &media})
	}
	f.record(Call{Op: OpSendGroup, ChatID: chatID, MessageID: ids[0], Media: append([]gateway.Media(nil), items...)})
	return ids, nil
}

// SendDocument implements gateway.Gateway.
func (f *Fake) SendDocument(_ context.Context, chatID int64, doc gateway.Document) (int, error) {
	body, err := io.ReadAll(doc.Reader)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSendTo[chatID] {
		return 0, ErrInjected
	}
	id := f.newMessage(&Message{ChatID: chatID, Text: doc.Caption})
	f.record(Call{Op: OpSendDocument, ChatID: chatID, MessageID: id, Text: doc.Name, Body: body})
	return id, nil
}

// EditText implements gateway.Gateway.
func (f *Fake) EditText(_ context.Context, chatID int64, messageID int, text string, kb *tele.ReplyMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Op: OpEdit, ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb})
	m, ok := f.messages[messageID]
	if f.FailEdit || !ok || m.Media != nil {
		return ErrInjected
	}
	m.Text, m.Keyboard = text, kb
	return nil
}

// Delete implements gateway.Gateway.
func (f *Fake) Delete(_ context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Op: OpDelete, ChatID: chatID, MessageID: messageID})
	if f.FailDelete[messageID] {
		return ErrInjected
	}
	if _, ok := f.messages[messageID]; !ok {
		return ErrInjected
	}
	delete(f.messages, messageID)
	return nil
}

// Download implements gateway.Gateway by writing DownloadBody to dest.
func (f *Fake) Download(_ context.Context, fileID, dest string) error {
	f.mu.Lock()
	body := f.DownloadBody
	f.record(Call{Op: OpDownload, Text: fileID})
	f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, body, 0o644)
}

// Calls returns a copy of every recorded call.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsOf returns recorded calls with the given op.
func (f *Fake) CallsOf(op Op) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls but keeps chat contents.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Visible returns the messages currently shown in chatID.
func (f *Fake) Visible(chatID int64) map[int]Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]Message)
	for id, m := range f.messages {
		if m.ChatID == chatID {
			out[id] = *m
		}
	}
	return out
}

// Message returns a visible message by id.
func (f *Fake) Message(id int) (Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

var _ gateway.Gateway = (*Fake)(nil)
