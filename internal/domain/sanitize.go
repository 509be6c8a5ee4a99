package domain

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxNameLength caps location display names, in runes.
const MaxNameLength = 100

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// SanitizeName strips HTML tags, collapses whitespace and truncates to
// MaxNameLength runes.
func SanitizeName(s string) string {
	s = htmlTagRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > MaxNameLength {
		s = string([]rune(s)[:MaxNameLength])
	}
	return s
}

// ValidateName sanitizes a user-supplied name and rejects it if nothing remains.
func ValidateName(s string) (string, error) {
	clean := SanitizeName(s)
	if clean == "" {
		return "", errors.New("name is empty after removing markup")
	}
	return clean, nil
}
