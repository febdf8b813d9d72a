package callbacks

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Sep separates payload parts; telebot joins markup.Data arguments with it.
const Sep = "|"

// PayloadInt64 parses callback payload as int64.
func PayloadInt64(c tele.Context) (int64, error) {
	return strconv.ParseInt(CallbackPayload(c), 10, 64)
}

// PayloadInt parses callback payload as int.
func PayloadInt(c tele.Context) (int, error) {
	return strconv.Atoi(CallbackPayload(c))
}

// PayloadParts splits the callback payload into its parts.
func PayloadParts(c tele.Context) ([]string, error) {
	p := CallbackPayload(c)
	if p == "" {
		return nil, strconv.ErrSyntax
	}
	return strings.Split(p, Sep), nil
}

// PayloadInt64s parses a payload like "12|3" into exactly n int64 values.
func PayloadInt64s(c tele.Context, n int) ([]int64, error) {
	parts, err := PayloadParts(c)
	if err != nil {
		return nil, err
	}
	if len(parts) != n {
		return nil, fmt.Errorf("payload %q: want %d parts, got %d", CallbackPayload(c), n, len(parts))
	}
	out := make([]int64, n)
	for i, p := range parts {
		if out[i], err = strconv.ParseInt(p, 10, 64); err != nil {
			return nil, fmt.Errorf("payload part %d: %w", i, err)
		}
	}
	return out, nil
}

// Payload joins values into a payload string accepted by PayloadInt64s.
func Payload(values ...int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, Sep)
}
