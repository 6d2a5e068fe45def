package service

import (
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"
)

// fieldErrors collects human-readable validation messages.
type fieldErrors []string

func (f *fieldErrors) add(msg string) { *f = append(*f, msg) }

func (f *fieldErrors) length(field, value string, lo, hi int) {
	n := utf8.RuneCountInString(value)
	switch {
	case n < lo:
		f.add(field + " must be at least " + strconv.Itoa(lo) + " characters")
	case hi > 0 && n > hi:
		f.add(field + " must be at most " + strconv.Itoa(hi) + " characters")
	}
}

func (f *fieldErrors) email(value string) {
	if !validEmail(value) {
		f.add("email must be a valid email address")
	}
}

// err returns a BadRequest carrying the collected messages, or nil.
func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return badRequest("validation error", f...)
}

func validEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value && strings.Contains(value[strings.LastIndex(value, "@"):], ".")
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
