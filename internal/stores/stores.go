// Package stores fetches book prices from online bookstores.
//
// Every store is scraped independently. A Fetcher never returns an error:
// network failures, timeouts and markup it cannot read all degrade to an
// unavailable quote that still carries the attempted URL, so one store
// changing its pages never affects the others.
package stores

import (
	"context"
	"fmt"
	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/util"
	"net/http"
	"strconv"
	"time"
)

type Fetcher interface {
	Key() string
	Name() string
	Fetch(ctx context.Context, searchKey string) book.Quote
	Unavailable(searchKey string) book.Quote
}

// Site describes how to search one store and where its price lives in the
// result page.
type Site struct {
	Key       string
	Name      string
	SearchUrl func(query string) string
	Selector  string
	Delivery  string
}

type Scraper struct {
	site      Site
	client    *http.Client
	userAgent string
	timeout   time.Duration
	logger    *log.Logger
}

func NewScraper(site Site, client *http.Client, userAgent string, timeout time.Duration, logger *log.Logger) *Scraper {
	if logger == nil {
		logger = log.Default()
	}
	return &Scraper{
		site:      site,
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		logger:    logger.WithPrefix(site.Key),
	}
}

func (s *Scraper) Key() string {
	return s.site.Key
}

func (s *Scraper) Name() string {
	return s.site.Name
}

func (s *Scraper) Unavailable(searchKey string) book.Quote {
	return book.UnavailableQuote(s.site.Key, s.site.Name, s.site.SearchUrl(searchKey))
}

func (s *Scraper) Fetch(ctx context.Context, searchKey string) book.Quote {
	url := s.site.SearchUrl(searchKey)

	price, err := s.fetchPrice(ctx, url)
	if err != nil {
		s.logger.Warn("price lookup failed", "query", searchKey, "err", err)
		return book.UnavailableQuote(s.site.Key, s.site.Name, url)
	}

	s.logger.Info("price found", "query", searchKey, "price", price)
	return book.FoundQuote(s.site.Key, s.site.Name, price, s.site.Delivery, url)
}

func (s *Scraper) fetchPrice(ctx context.Context, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	request.Header.Set("User-Agent", s.userAgent)

	response, err := s.client.Do(request)
	if err != nil {
		return 0, err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return 0, fmt.Errorf("%s returned status code %d", s.site.Name, response.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(response.Body)
	if err != nil {
		return 0, err
	}

	element := doc.Find(s.site.Selector).First()
	if element.Length() == 0 {
		return 0, fmt.Errorf("no element matching %q", s.site.Selector)
	}

	return ParsePrice(element.Text())
}

// ParsePrice reads a price out of display text such as "18,000원".
func ParsePrice(text string) (int, error) {
	digits := book.DigitsOnly(text)
	if len(digits) == 0 {
		return 0, fmt.Errorf("no digits in price text %q", util.Truncate(text, 40))
	}
	return strconv.Atoi(digits)
}
