package library

import (
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/config"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"strings"
)

// KnownBooks answers for books whose holdings were verified by hand.
type KnownBooks interface {
	Lookup(isbn string, title string) mo.Option[book.Availability]
}

// DefaultKnownBooks were checked against the library catalogue in person.
func DefaultKnownBooks() []config.KnownBook {
	return []config.KnownBook{
		{
			Isbns:         []string{"9788994492001", "9789944920019", "8994492003", "8994492001"},
			TitleContains: "자바의 정석",
			Location:      "중앙도서관",
			CallNumber:    "005.133",
			Available:     true,
		},
	}
}

type StaticTable struct {
	entries []config.KnownBook
	urls    SearchUrls
}

// NewStaticTable serves the default entries followed by extra.
func NewStaticTable(urls SearchUrls, extra []config.KnownBook) *StaticTable {
	return &StaticTable{
		entries: append(DefaultKnownBooks(), extra...),
		urls:    urls,
	}
}

func (t *StaticTable) Lookup(isbn string, title string) mo.Option[book.Availability] {
	for _, entry := range t.entries {
		if !matches(entry, isbn, title) {
			continue
		}
		return mo.Some(book.Availability{
			Found:      true,
			Loanable:   entry.Available,
			Location:   book.OptionalString(entry.Location),
			CallNumber: book.OptionalString(entry.CallNumber),
			DetailUrl:  t.urls.For(isbn),
		})
	}
	return mo.None[book.Availability]()
}

func matches(entry config.KnownBook, isbn string, title string) bool {
	if len(isbn) != 0 && lo.Contains(entry.Isbns, isbn) {
		return true
	}
	return len(title) != 0 && len(entry.TitleContains) != 0 && strings.Contains(title, entry.TitleContains)
}
