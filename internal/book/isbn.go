package book

import (
	"errors"
	"fmt"
	"github.com/samber/mo"
	"strings"
)

type ISBN string
type ISBN10 ISBN
type ISBN13 ISBN

var (
	ErrInvalidIsbn   = errors.New("invalid isbn")
	ErrUnconvertible = errors.New("isbn cannot be converted")
)

var badIsbns = map[string]struct{}{
	"0123456789": {},
	"0000000000": {},
	"1111111111": {},
	"2222222222": {},
	"3333333333": {},
	"4444444444": {},
	"5555555555": {},
	"6666666666": {},
	"7777777777": {},
	"8888888888": {},
	"9999999999": {},
}

// Normalize keeps only digits and the ISBN-10 check character, uppercased.
func Normalize(raw string) string {
	var b strings.Builder
	for _, c := range raw {
		switch {
		case '0' <= c && c <= '9':
			b.WriteRune(c)
		case c == 'X' || c == 'x':
			b.WriteRune('X')
		}
	}
	return b.String()
}

// DigitsOnly strips every non-digit character, including X.
func DigitsOnly(raw string) string {
	var b strings.Builder
	for _, c := range raw {
		if '0' <= c && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func IsIsbnCandidate(s string) bool {
	l := len(s)
	if l != 10 && l != 13 {
		return false
	}

	for _, c := range strings.ToUpper(s) {
		if c != 'X' && c > '9' {
			return false
		}
		if c != 'X' && c < '0' {
			return false
		}
	}

	_, isBad := badIsbns[s]
	return !isBad
}

func (isbn ISBN10) IsValid() bool {
	s := string(isbn)
	if len(s) != 10 {
		return false
	}

	sum := 0
	for i, c := range s {
		var value int
		switch {
		case '0' <= c && c <= '9':
			value = int(c - '0')
		case c == 'X' && i == 9:
			value = 10
		default:
			return false
		}
		sum += value * (10 - i)
	}

	return sum%11 == 0
}

func (isbn ISBN13) IsValid() bool {
	s := string(isbn)
	if len(s) != 13 || !isDigits(s) {
		return false
	}

	var multiplier = 1
	var sum = 0
	for _, c := range s {
		sum += multiplier * int(c-'0')
		multiplier ^= 1 ^ 3
	}

	return sum%10 == 0
}

func isbn13CheckDigit(base string) byte {
	sum := 0
	for i, c := range base {
		weight := 1
		if i%2 == 1 {
			weight = 3
		}
		sum += weight * int(c-'0')
	}
	return byte('0' + (10-sum%10)%10)
}

func isbn10CheckDigit(base string) byte {
	sum := 0
	for i, c := range base {
		sum += (10 - i) * int(c-'0')
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return 'X'
	}
	return byte('0' + check)
}

// To13 drops the check digit, prefixes 978 and recomputes the ISBN-13 check digit.
// The input checksum is not verified.
func (isbn ISBN10) To13() (ISBN13, error) {
	s := string(isbn)
	if len(s) != 10 {
		return "", fmt.Errorf("%w: isbn-10 %q has %d characters", ErrUnconvertible, s, len(s))
	}

	base := "978" + s[:9]
	if !isDigits(base) {
		return "", fmt.Errorf("%w: isbn-10 %q has non-digit characters", ErrUnconvertible, s)
	}

	return ISBN13(base + string(isbn13CheckDigit(base))), nil
}

// To10 only works for the 978 prefix. 979 books have no ISBN-10 form.
func (isbn ISBN13) To10() (ISBN10, error) {
	s := string(isbn)
	if len(s) != 13 || !isDigits(s) {
		return "", fmt.Errorf("%w: %q is not a 13 digit isbn", ErrUnconvertible, s)
	}
	if !strings.HasPrefix(s, "978") {
		return "", fmt.Errorf("%w: %q does not start with 978", ErrUnconvertible, s)
	}

	base := s[3:12]
	return ISBN10(base + string(isbn10CheckDigit(base))), nil
}

// Identifier is a normalized ISBN with both forms filled in where they exist.
type Identifier struct {
	Text   string            `json:"text"`
	Isbn10 mo.Option[ISBN10] `json:"isbn10"`
	Isbn13 mo.Option[ISBN13] `json:"isbn13"`
}

func Identify(raw string) Identifier {
	id := Identifier{Text: Normalize(raw)}

	switch len(id.Text) {
	case 10:
		isbn10 := ISBN10(id.Text)
		if !isbn10.IsValid() {
			break
		}
		id.Isbn10 = mo.Some(isbn10)
		if isbn13, err := isbn10.To13(); err == nil {
			id.Isbn13 = mo.Some(isbn13)
		}
	case 13:
		isbn13 := ISBN13(id.Text)
		if !isbn13.IsValid() {
			break
		}
		id.Isbn13 = mo.Some(isbn13)
		if isbn10, err := isbn13.To10(); err == nil {
			id.Isbn10 = mo.Some(isbn10)
		}
	}

	return id
}

func (id Identifier) IsValid() bool {
	return id.Isbn10.IsPresent() || id.Isbn13.IsPresent()
}

func IsValidIsbn(s string) bool {
	return ISBN10(s).IsValid() || ISBN13(s).IsValid()
}
