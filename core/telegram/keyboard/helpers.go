package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes a convenience wrapper for inline button properties.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

const defaultCancelButtonText = "❌ Отменить"

// InlineButtons builds an inline keyboard where each provided button is placed on its own row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	rows := make([][]InlineBtn, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineBtn{b})
	}
	return InlineButtonsRows(rows...)
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn. Empty rows are dropped.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			if btn.Data == "" {
				r[j] = *markup.Data(btn.Text, btn.Unique).Inline()
			} else {
				r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
			}
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// InlineButtonsNPerRow splits a flat list of buttons into rows with up to n buttons per row.
// If n <= 1, it behaves like InlineButtons (one per row).
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	if n <= 1 {
		return InlineButtons(buttons)
	}
	var rows [][]InlineBtn
	for i := 0; i < len(buttons); i += n {
		rows = append(rows, buttons[i:min(i+n, len(buttons))])
	}
	return InlineButtonsRows(rows...)
}

// CancelButton returns a reusable cancel button for the given action.
// Optional arguments override payload (first value) and label (second value).
func CancelButton(action string, options ...string) InlineBtn {
	btn := InlineBtn{Text: defaultCancelButtonText, Unique: action}
	if len(options) > 0 {
		btn.Data = options[0]
	}
	if len(options) > 1 && options[1] != "" {
		btn.Text = options[1]
	}
	return btn
}

// SingleCancelMarkup creates an inline keyboard with a single cancel button.
func SingleCancelMarkup(action string, options ...string) *tele.ReplyMarkup {
	return InlineButtonsRows([]InlineBtn{CancelButton(action, options...)})
}

// Buttons returns the flattened inline buttons of markup, for inspection.
func Buttons(markup *tele.ReplyMarkup) []tele.InlineButton {
	if markup == nil {
		return nil
	}
	var out []tele.InlineButton
	for _, row := range markup.InlineKeyboard {
		out = append(out, row...)
	}
	return out
}
