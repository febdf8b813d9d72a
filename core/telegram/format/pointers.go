package format

import "strconv"

// DerefString safely dereferences a *string and returns a default value if nil.
func DerefString(s *string, defaultVal string) string {
	if s != nil {
		return *s
	}
	return defaultVal
}

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Rub renders an integer rouble amount as used in captions.
func Rub(amount int64) string {
	return strconv.FormatInt(amount, 10) + " руб."
}
