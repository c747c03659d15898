package stores_test

import (
	"context"
	"fmt"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/stores"
	"github.com/larkwiot/bookscout/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testSite(key string, server *httptest.Server) stores.Site {
	return stores.Site{
		Key:  key,
		Name: strings.ToUpper(key),
		SearchUrl: func(query string) string {
			return server.URL + "/search?query=" + url.QueryEscape(query)
		},
		Selector: "span.price",
		Delivery: "무료배송",
	}
}

func pageServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func priceHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body>%s</body></html>", body)
	}
}

func TestParsePrice(t *testing.T) {
	price, err := stores.ParsePrice("18,000원")
	require.NoError(t, err)
	assert.Equal(t, 18000, price)

	price, err = stores.ParsePrice("  32,400 ")
	require.NoError(t, err)
	assert.Equal(t, 32400, price)

	_, err = stores.ParsePrice("품절")
	assert.Error(t, err)
}

func TestScraperFound(t *testing.T) {
	var userAgent atomic.Value
	server := pageServer(t, func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.UserAgent())
		priceHandler(`<span class="price">18,000원</span><span class="price">9,000원</span>`)(w, r)
	})

	scraper := stores.NewScraper(testSite("yes24", server), server.Client(), "bookscout-test", time.Second, nil)
	quote := scraper.Fetch(context.Background(), "9788966260959")

	assert.True(t, quote.Available)
	assert.Equal(t, 18000, quote.Price.MustGet())
	assert.Equal(t, "무료배송", quote.Delivery.MustGet())
	assert.Equal(t, "yes24", quote.Store)
	assert.Equal(t, "YES24", quote.StoreName)
	assert.Contains(t, quote.Url, "query=9788966260959")
	assert.Equal(t, "bookscout-test", userAgent.Load())
}

func TestScraperDegradesToUnavailable(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"missing element": priceHandler(`<div>no results</div>`),
		"no digits":       priceHandler(`<span class="price">품절</span>`),
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			server := pageServer(t, handler)
			scraper := stores.NewScraper(testSite("kyobo", server), server.Client(), "test", time.Second, nil)

			quote := scraper.Fetch(context.Background(), "자바의 정석")
			assert.False(t, quote.Available)
			assert.True(t, quote.Price.IsAbsent())
			assert.True(t, quote.Delivery.IsAbsent())
			assert.Contains(t, quote.Url, url.QueryEscape("자바의 정석"))
		})
	}
}

func TestScraperTimeout(t *testing.T) {
	release := make(chan struct{})
	server := pageServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	scraper := stores.NewScraper(testSite("aladin", server), server.Client(), "test", 50*time.Millisecond, nil)

	start := time.Now()
	quote := scraper.Fetch(context.Background(), "9780306406157")
	assert.False(t, quote.Available)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEnabledSites(t *testing.T) {
	keys := func(sites []stores.Site) []string {
		out := make([]string, 0, len(sites))
		for _, site := range sites {
			out = append(out, site.Key)
		}
		return out
	}

	assert.Equal(t, []string{"yes24", "aladin", "kyobo", "interpark"}, keys(stores.DefaultSites()))
	assert.Equal(t, []string{"yes24", "kyobo"}, keys(stores.EnabledSites([]string{"aladin", "interpark"})))
}

func TestDefaultSiteUrlsAreEscaped(t *testing.T) {
	for _, site := range stores.DefaultSites() {
		u := site.SearchUrl("자바 정석&x")
		assert.NotContains(t, u, " ")
		assert.NotContains(t, u, "&x")
	}
}

func newAggregator(t *testing.T, deadline time.Duration, fetchers ...stores.Fetcher) *stores.Aggregator {
	pool := util.NewThreadPool(4)
	t.Cleanup(pool.Close)
	return stores.NewAggregator(fetchers, pool, deadline, nil)
}

func TestAggregatorOrderAndMix(t *testing.T) {
	found := pageServer(t, priceHandler(`<span class="price">15,300원</span>`))
	broken := pageServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	slow := pageServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		priceHandler(`<span class="price">14,000원</span>`)(w, r)
	})

	aggregator := newAggregator(t, 5*time.Second,
		stores.NewScraper(testSite("a", slow), slow.Client(), "test", time.Second, nil),
		stores.NewScraper(testSite("b", broken), broken.Client(), "test", time.Second, nil),
		stores.NewScraper(testSite("c", found), found.Client(), "test", time.Second, nil),
	)

	quotes := aggregator.GetPrices(context.Background(), "9788966260959", "ignored title")
	require.Len(t, quotes, 3)

	assert.Equal(t, "a", quotes[0].Store)
	assert.True(t, quotes[0].Available)
	assert.Equal(t, 14000, quotes[0].Price.MustGet())

	assert.Equal(t, "b", quotes[1].Store)
	assert.False(t, quotes[1].Available)

	assert.Equal(t, "c", quotes[2].Store)
	assert.Equal(t, 15300, quotes[2].Price.MustGet())
	assert.Contains(t, quotes[2].Url, "9788966260959")
}

func TestAggregatorFallsBackToTitle(t *testing.T) {
	var query atomic.Value
	server := pageServer(t, func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query().Get("query"))
		priceHandler(`<span class="price">1,000</span>`)(w, r)
	})

	aggregator := newAggregator(t, time.Second,
		stores.NewScraper(testSite("a", server), server.Client(), "test", time.Second, nil))

	quotes := aggregator.GetPrices(context.Background(), "  ", " 토비의 스프링 ")
	require.Len(t, quotes, 1)
	assert.Equal(t, "토비의 스프링", query.Load())
}

func TestAggregatorEmptyInputMakesNoCalls(t *testing.T) {
	var calls atomic.Int64
	server := pageServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	aggregator := newAggregator(t, time.Second,
		stores.NewScraper(testSite("a", server), server.Client(), "test", time.Second, nil))

	quotes := aggregator.GetPrices(context.Background(), "", "")
	assert.Empty(t, quotes)
	assert.NotNil(t, quotes)
	assert.Zero(t, calls.Load())
}

// blockingFetcher ignores its context entirely, like a store whose client
// has no timeout.
type blockingFetcher struct {
	key     string
	release chan struct{}
}

func (f *blockingFetcher) Key() string  { return f.key }
func (f *blockingFetcher) Name() string { return f.key }

func (f *blockingFetcher) Fetch(ctx context.Context, searchKey string) book.Quote {
	<-f.release
	return book.FoundQuote(f.key, f.key, 1, "", "late")
}

func (f *blockingFetcher) Unavailable(searchKey string) book.Quote {
	return book.UnavailableQuote(f.key, f.key, "https://example.com/"+searchKey)
}

func TestAggregatorDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	fetchers := []stores.Fetcher{
		&blockingFetcher{key: "one", release: release},
		&blockingFetcher{key: "two", release: release},
		&blockingFetcher{key: "three", release: release},
		&blockingFetcher{key: "four", release: release},
	}

	aggregator := newAggregator(t, 100*time.Millisecond, fetchers...)

	start := time.Now()
	quotes := aggregator.GetPrices(context.Background(), "9780306406157", "")
	elapsed := time.Since(start)

	require.Len(t, quotes, 4)
	for i, quote := range quotes {
		assert.Equal(t, fetchers[i].Key(), quote.Store)
		assert.False(t, quote.Available)
		assert.Equal(t, "https://example.com/9780306406157", quote.Url)
	}
	assert.Less(t, elapsed, time.Second)
}
