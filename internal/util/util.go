package util

import (
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/samber/lo"
	"os"
	"regexp"
	"strings"
)

const Isbn10Pattern = "([0-9\\-\\s]+[0-9Xx])"
const Isbn13Pattern = "([0-9\\-\\s]+[0-9])"

var whitespace = regexp.MustCompile("[\\s\\-]+")

func identifyIsbns[I any](text string, pattern string, maker func(string) I) []I {
	identifier := regexp.MustCompile(pattern)
	occurrences := identifier.FindAllString(text, -1)
	return lo.FilterMap(occurrences, func(occ string, _ int) (I, bool) {
		clean := whitespace.ReplaceAllString(occ, "")
		if book.IsIsbnCandidate(clean) {
			return maker(strings.ToUpper(clean)), true
		}
		return maker(""), false
	})
}

func IdentifyIsbn10s(text string) []book.ISBN10 {
	return lo.Filter(identifyIsbns(text, Isbn10Pattern, func(s string) book.ISBN10 {
		return book.ISBN10(s)
	}), func(isbn book.ISBN10, _ int) bool {
		return isbn.IsValid()
	})
}

func IdentifyIsbn13s(text string) []book.ISBN13 {
	return lo.Filter(identifyIsbns(text, Isbn13Pattern, func(s string) book.ISBN13 {
		return book.ISBN13(s)
	}), func(isbn book.ISBN13, _ int) bool {
		return isbn.IsValid()
	})
}

// SplitQuery interprets a free-form line as an identifier and/or title. A
// line carrying a valid ISBN is searched by that ISBN; anything else is
// treated as a title.
func SplitQuery(line string) (isbn string, title string) {
	line = strings.TrimSpace(line)
	if isbn13s := IdentifyIsbn13s(line); len(isbn13s) > 0 {
		return string(isbn13s[0]), ""
	}
	if isbn10s := IdentifyIsbn10s(line); len(isbn10s) > 0 {
		return string(isbn10s[0]), ""
	}
	return "", line
}

// CollapseSpace trims text and folds runs of whitespace into single spaces.
func CollapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func Truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

func ExpandUser(p string) string {
	if strings.HasPrefix(p, "~") {
		return os.Getenv("HOME") + p[1:]
	}
	return p
}

func PathExists(p string) (bool, error) {
	_, err := os.Stat(p)
	return err == nil, err
}

type ObjectWriter[I any] interface {
	WriteObject(I)
	Close()
}
