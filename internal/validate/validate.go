// Package validate holds the input screens applied to free-text answers.
package validate

import (
	"regexp"
	"unicode/utf8"
)

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[A-Za-z]{2,}$`)
	phoneRe = regexp.MustCompile(`^[0-9+\-()\s]+$`)
)

const (
	phoneMinLen = 6
	phoneMaxLen = 20
)

// Email reports whether s looks like local@domain.tld with a tld of at least two letters.
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// Phone reports whether s is 6-20 characters of digits, '+', '-', parentheses and whitespace.
// It does not check country codes.
func Phone(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < phoneMinLen || n > phoneMaxLen {
		return false
	}
	return phoneRe.MatchString(s)
}
