package internal_test

import (
	"context"
	"encoding/json"
	"github.com/larkwiot/bookscout/internal"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/config"
	"github.com/larkwiot/bookscout/internal/util"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
)

type fakePrices struct {
	calls atomic.Int64
}

func (p *fakePrices) GetPrices(ctx context.Context, isbn string, title string) []book.Quote {
	p.calls.Add(1)
	key := isbn
	if len(key) == 0 {
		key = title
	}
	return []book.Quote{
		book.FoundQuote("yes24", "YES24", 18000, "무료배송", "https://yes24/"+key),
		book.UnavailableQuote("kyobo", "교보문고", "https://kyobo/"+key),
	}
}

type fakeLibrary struct {
	calls   atomic.Int64
	unknown bool
}

func (l *fakeLibrary) CheckAvailability(ctx context.Context, isbn string, title string) mo.Option[book.Availability] {
	l.calls.Add(1)
	if l.unknown {
		return mo.None[book.Availability]()
	}
	return mo.Some(book.Availability{Found: true, Loanable: true, DetailUrl: "https://lib/" + isbn})
}

func (l *fakeLibrary) CheckAvailabilityWithDetails(ctx context.Context, isbn string, title string, author string, publisher string) mo.Option[book.Availability] {
	return l.CheckAvailability(ctx, isbn, title)
}

type fakeSearch struct{}

func (fakeSearch) Search(ctx context.Context, query string, source string) ([]book.SearchResult, error) {
	return []book.SearchResult{{Title: query, Source: source}}, nil
}

type memoryWriter struct {
	lock    sync.Mutex
	reports []*internal.Report
	closed  bool
}

func (w *memoryWriter) WriteObject(report *internal.Report) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.reports = append(w.reports, report)
}

func (w *memoryWriter) Close() {
	w.closed = true
}

func (w *memoryWriter) Queries() []string {
	w.lock.Lock()
	defer w.lock.Unlock()
	queries := make([]string, 0, len(w.reports))
	for _, report := range w.reports {
		queries = append(queries, report.Query)
	}
	sort.Strings(queries)
	return queries
}

var _ util.ObjectWriter[*internal.Report] = &memoryWriter{}

func TestLookup(t *testing.T) {
	prices := &fakePrices{}
	lib := &fakeLibrary{}
	bm := internal.NewBookManagerWith(prices, lib, fakeSearch{}, nil)

	report := bm.Lookup(context.Background(), " 9788966260959 ", "")
	assert.Equal(t, "9788966260959", report.Query)
	assert.Len(t, report.Prices, 2)
	assert.True(t, report.Library.MustGet().Loanable)
	assert.Len(t, report.Links, 4)
	assert.Contains(t, report.Links["yes24"], "9788966260959")
	assert.Equal(t, book.ISBN13("9788966260959"), report.Isbn13.MustGet())
	assert.Equal(t, book.ISBN10("8966260950"), report.Isbn10.MustGet())
	assert.False(t, report.Incomplete())
}

func TestLookupByTitleHasNoLinks(t *testing.T) {
	bm := internal.NewBookManagerWith(&fakePrices{}, &fakeLibrary{unknown: true}, fakeSearch{}, nil)

	report := bm.Lookup(context.Background(), "", "클린 코드")
	assert.Equal(t, "클린 코드", report.Query)
	assert.Nil(t, report.Links)
	assert.True(t, report.Isbn13.IsAbsent())
	assert.True(t, report.Library.IsAbsent())
	assert.True(t, report.Incomplete())
}

func TestPassThroughOperations(t *testing.T) {
	bm := internal.NewBookManagerWith(&fakePrices{}, &fakeLibrary{}, fakeSearch{}, nil)

	results, err := bm.Search(context.Background(), "dune", "auto")
	require.NoError(t, err)
	assert.Equal(t, "auto", results[0].Source)

	_, err = bm.BuildDeepLinks("not an isbn")
	assert.ErrorIs(t, err, book.ErrInvalidIsbn)

	assert.True(t, bm.CheckAvailabilityWithDetails(context.Background(), "9780306406157", "", "a", "p").IsPresent())
	assert.Empty(t, bm.Statuses())
}

func writeLines(t *testing.T, lines string) string {
	path := filepath.Join(t.TempDir(), "books.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func TestBatch(t *testing.T) {
	input := writeLines(t, `# reading list
978-89-6626-095-9

자바의 정석
9788966260959 Clean Code
자바의 정석
`)

	prices := &fakePrices{}
	bm := internal.NewBookManagerWith(prices, &fakeLibrary{}, fakeSearch{}, nil)
	output := &memoryWriter{}

	require.NoError(t, bm.Batch(context.Background(), input, 2, false, output))

	assert.Equal(t, []string{"978-89-6626-095-9", "9788966260959 Clean Code", "자바의 정석"}, output.Queries())
	assert.EqualValues(t, 3, prices.calls.Load())

	for _, report := range output.reports {
		if report.Query == "자바의 정석" {
			assert.Empty(t, report.Isbn)
			assert.Equal(t, "자바의 정석", report.Title)
		} else {
			assert.Equal(t, "9788966260959", report.Isbn)
		}
	}
}

func TestBatchDryRun(t *testing.T) {
	input := writeLines(t, "0306406152\nsome title\n")

	prices := &fakePrices{}
	lib := &fakeLibrary{}
	bm := internal.NewBookManagerWith(prices, lib, fakeSearch{}, nil)
	output := &memoryWriter{}

	require.NoError(t, bm.Batch(context.Background(), input, 4, true, output))
	assert.Len(t, output.reports, 2)
	for _, report := range output.reports {
		if report.Query == "0306406152" {
			assert.Equal(t, book.ISBN13("9780306406157"), report.Isbn13.MustGet())
			assert.Len(t, report.Links, 4)
		}
	}
	assert.Zero(t, prices.calls.Load())
	assert.Zero(t, lib.calls.Load())
}

func TestBatchMissingInput(t *testing.T) {
	bm := internal.NewBookManagerWith(&fakePrices{}, &fakeLibrary{}, fakeSearch{}, nil)
	err := bm.Batch(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), 1, false, &memoryWriter{})
	assert.Error(t, err)
}

func TestImportSkipsFinishedLines(t *testing.T) {
	complete := internal.Report{
		Query:   "9780306406157",
		Isbn:    "9780306406157",
		Prices:  []book.Quote{book.FoundQuote("yes24", "YES24", 1000, "", "u")},
		Library: mo.Some(book.Availability{Found: true, DetailUrl: "d"}),
	}
	incomplete := internal.Report{
		Query:  "some title",
		Title:  "some title",
		Prices: []book.Quote{},
	}

	data, err := json.Marshal(map[string]internal.Report{
		complete.Query:   complete,
		incomplete.Query: incomplete,
	})
	require.NoError(t, err)
	cachePath := filepath.Join(t.TempDir(), "previous.json")
	require.NoError(t, os.WriteFile(cachePath, data, 0644))

	input := writeLines(t, "9780306406157\nsome title\n")

	prices := &fakePrices{}
	bm := internal.NewBookManagerWith(prices, &fakeLibrary{}, fakeSearch{}, nil)
	require.NoError(t, bm.Import(cachePath, true))

	output := &memoryWriter{}
	require.NoError(t, bm.Batch(context.Background(), input, 1, false, output))

	// the cached report is written back out and only the incomplete one is looked up again
	assert.Equal(t, []string{"9780306406157", "some title"}, output.Queries())
	assert.EqualValues(t, 1, prices.calls.Load())
}

func TestBatchWritesJsonStream(t *testing.T) {
	input := writeLines(t, "9780306406157\n")
	outputPath := filepath.Join(t.TempDir(), "out.json")

	writer, err := util.NewJsonStreamWriter(outputPath, func(report *internal.Report) (string, any) {
		return report.Query, report
	}, nil)
	require.NoError(t, err)

	bm := internal.NewBookManagerWith(&fakePrices{}, &fakeLibrary{}, fakeSearch{}, nil)
	require.NoError(t, bm.Batch(context.Background(), input, 1, false, writer))
	writer.Close()

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var reports map[string]internal.Report
	require.NoError(t, json.Unmarshal(data, &reports))
	require.Contains(t, reports, "9780306406157")
	assert.True(t, reports["9780306406157"].Library.MustGet().Found)
	assert.Equal(t, 18000, reports["9780306406157"].Prices[0].Price.MustGet())
}

func TestNewBookManagerFromConfig(t *testing.T) {
	conf := config.Default()
	bm, err := internal.NewBookManager(conf, nil)
	require.NoError(t, err)
	defer bm.Shutdown()

	statuses := bm.Statuses()
	assert.Len(t, statuses, 3)
}
