package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	minQueryRunes = 5
	maxQueryRunes = 500
)

// ValidateQuery validates a user question before it enters the pipeline.
func ValidateQuery(q Query) error {
	text := strings.TrimSpace(q.Text)
	n := utf8.RuneCountInString(text)
	if n < minQueryRunes {
		return NewValidationError("text", text, ErrQueryTooShort)
	}
	if n > maxQueryRunes {
		return NewValidationError("text", truncateRunes(text, 32)+"...", ErrQueryTooLong)
	}
	return nil
}

// truncateRunes cuts text to at most n runes, never splitting a rune.
func truncateRunes(text string, n int) string {
	for i := range text {
		if n == 0 {
			return text[:i]
		}
		n--
	}
	return text
}
