package book_test

import (
	"errors"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestIsbnCandidacy(t *testing.T) {
	assert.True(t, book.IsIsbnCandidate("9781718501263"))
	assert.True(t, book.IsIsbnCandidate("9781718501270"))
	assert.True(t, book.IsIsbnCandidate("1718501269"))

	assert.False(t, book.IsIsbnCandidate("123"))
	assert.False(t, book.IsIsbnCandidate("11111111111"))
	assert.False(t, book.IsIsbnCandidate("0000000000"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", book.Normalize(""))
	assert.Equal(t, "080442957X", book.Normalize("0-8044-2957-x"))
	assert.Equal(t, "9780306406157", book.Normalize("ISBN 978-0-306-40615-7"))
	assert.Equal(t, "0804429579", book.DigitsOnly("0-8044-2957-9x"))
}

func TestIsbn10Validity(t *testing.T) {
	assert.True(t, book.ISBN10("1718501269").IsValid())
	assert.True(t, book.ISBN10("0306406152").IsValid())
	assert.True(t, book.ISBN10("080442957X").IsValid())

	assert.False(t, book.ISBN10("0306406153").IsValid())
	assert.False(t, book.ISBN10("030640615").IsValid())
	assert.False(t, book.ISBN10("03064061520").IsValid())
	assert.False(t, book.ISBN10("03064A6152").IsValid())
	// X is only a check character
	assert.False(t, book.ISBN10("0X00000009").IsValid())
}

func TestIsbn13Validity(t *testing.T) {
	assert.True(t, book.ISBN13("9781718501263").IsValid())
	assert.True(t, book.ISBN13("9781718501270").IsValid())
	assert.True(t, book.ISBN13("9780306406157").IsValid())

	assert.False(t, book.ISBN13("9780306406158").IsValid())
	assert.False(t, book.ISBN13("1234567891123").IsValid())
	assert.False(t, book.ISBN13("978030640615").IsValid())
	assert.False(t, book.ISBN13("978030640615X").IsValid())
}

func TestIsbn10To13(t *testing.T) {
	cases := map[book.ISBN10]book.ISBN13{
		"8966260950": "9788966260959",
		"0306406152": "9780306406157",
		"1718501269": "9781718501263",
		"080442957X": "9780804429573",
		// the check digit is recomputed from the first nine digits
		"8994492046": "9788994492049",
	}

	for isbn10, expected := range cases {
		isbn13, err := isbn10.To13()
		require.NoError(t, err)
		assert.Equal(t, expected, isbn13)
		assert.True(t, strings.HasPrefix(string(isbn13), "978"))
		assert.True(t, isbn13.IsValid(), "%s -> %s should be a valid isbn-13", isbn10, isbn13)
	}

	_, err := book.ISBN10("123").To13()
	assert.True(t, errors.Is(err, book.ErrUnconvertible))
}

func TestIsbn13To10RoundTrip(t *testing.T) {
	for _, isbn10 := range []book.ISBN10{"8966260950", "0306406152", "1718501269", "080442957X", "8994492003"} {
		isbn13, err := isbn10.To13()
		require.NoError(t, err)

		back, err := isbn13.To10()
		require.NoError(t, err)
		assert.Equal(t, isbn10, back)
	}
}

func TestIsbn13To10Rejects979(t *testing.T) {
	isbn13 := book.ISBN13("9791162241264")
	require.True(t, isbn13.IsValid())

	_, err := isbn13.To10()
	assert.True(t, errors.Is(err, book.ErrUnconvertible))

	_, err = book.ISBN13("97803064061").To10()
	assert.True(t, errors.Is(err, book.ErrUnconvertible))
}

func TestIdentify(t *testing.T) {
	id := book.Identify("0-306-40615-2")
	assert.True(t, id.IsValid())
	assert.Equal(t, book.ISBN10("0306406152"), id.Isbn10.MustGet())
	assert.Equal(t, book.ISBN13("9780306406157"), id.Isbn13.MustGet())

	id = book.Identify("979-11-6224-126-4")
	assert.True(t, id.IsValid())
	assert.True(t, id.Isbn10.IsAbsent())

	id = book.Identify("0306406153")
	assert.False(t, id.IsValid())
	assert.Equal(t, "0306406153", id.Text)
}

func TestBuildDeepLinks(t *testing.T) {
	links, err := book.BuildDeepLinks("978-0-306-40615-7")
	require.NoError(t, err)
	require.Len(t, links, 4)

	sources := []string{"yes24", "kyobo", "yjcEbook", "yjcCentral"}
	for i, link := range links {
		assert.Equal(t, sources[i], link.Source)
		assert.Contains(t, link.Url, "9780306406157")
	}

	url, found := links.Url("kyobo")
	assert.True(t, found)
	assert.Equal(t, "https://search.kyobobook.co.kr/search?keyword=9780306406157", url)
	assert.Len(t, links.ToMap(), 4)
}

func TestBuildDeepLinksInvalid(t *testing.T) {
	_, err := book.BuildDeepLinks("9780306406158")
	assert.True(t, errors.Is(err, book.ErrInvalidIsbn))

	_, err = book.BuildDeepLinks("")
	assert.True(t, errors.Is(err, book.ErrInvalidIsbn))

	links, err := book.BuildDeepLinks("0X00000009")
	assert.True(t, errors.Is(err, book.ErrInvalidIsbn))
	assert.Empty(t, links)
}

func TestQuotes(t *testing.T) {
	q := book.FoundQuote("yes24", "YES24", 18000, "무료배송", "https://example.com")
	assert.True(t, q.Available)
	assert.Equal(t, 18000, q.Price.MustGet())

	q = book.UnavailableQuote("yes24", "YES24", "https://example.com")
	assert.False(t, q.Available)
	assert.True(t, q.Price.IsAbsent())
	assert.True(t, q.Delivery.IsAbsent())
	assert.Equal(t, "https://example.com", q.Url)
}
