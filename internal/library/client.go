// Package library answers whether the campus library holds a book and
// whether a copy can be borrowed right now.
//
// The remote backend is asked first. When it cannot be reached the client
// scrapes the library website (if enabled) and then consults a table of
// holdings that were verified by hand. When none of those can answer the
// result is None, which callers must keep distinct from "not found".
package library

import (
	"context"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/cache"
	"github.com/larkwiot/bookscout/internal/config"
	"github.com/samber/mo"
	"golang.org/x/sync/singleflight"
	"strings"
)

type Searcher interface {
	Search(ctx context.Context, query string) (book.Availability, error)
}

type Client struct {
	backend Backend
	scraper Searcher
	known   KnownBooks
	results cache.Cache[book.ISBN13, book.Availability]
	urls    SearchUrls
	logger  *log.Logger

	// concurrent lookups of one isbn13 share a single backend call
	inflight singleflight.Group
}

// NewClient wires a client from its parts. scraper may be nil to skip the
// website fallback.
func NewClient(backend Backend, scraper Searcher, known KnownBooks, results cache.Cache[book.ISBN13, book.Availability], urls SearchUrls, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		backend: backend,
		scraper: scraper,
		known:   known,
		results: results,
		urls:    urls,
		logger:  logger.WithPrefix("library"),
	}
}

// NewClientFromConfig also returns the remote backend so it can be handed to
// the service manager for health checks.
func NewClientFromConfig(conf *config.LibraryConfig, userAgent string, logger *log.Logger) (*Client, *RemoteBackend) {
	client := cleanhttp.DefaultPooledClient()
	urls := SearchUrls{Base: strings.TrimRight(conf.SiteUrl, "/")}

	backend := NewRemoteBackend(conf.BackendUrl, client, conf.Timeout(), logger)

	var scraper Searcher
	if conf.Scrape {
		scraper = NewScraper(urls, client, userAgent, conf.Timeout(), logger)
	}

	return NewClient(
		backend,
		scraper,
		NewStaticTable(urls, conf.Known),
		cache.NewTTLCache[book.ISBN13, book.Availability](conf.CacheTTL()),
		urls,
		logger,
	), backend
}

func (c *Client) SearchUrls() SearchUrls {
	return c.urls
}

// CheckAvailability looks a book up by isbn, or by title when the isbn is
// missing or malformed. Every isbn is normalized to its 13 digit form before
// it reaches the backend or the cache.
func (c *Client) CheckAvailability(ctx context.Context, isbn string, title string) mo.Option[book.Availability] {
	isbn = strings.TrimSpace(isbn)
	title = strings.TrimSpace(title)

	if len(isbn) == 0 {
		if len(title) == 0 {
			c.logger.Debug("no isbn or title, skipping library lookup")
			return mo.Some(book.NotFound(c.urls.Generic()))
		}
		c.logger.Info("no isbn, searching by title", "title", title)
		result, _ := c.resolve(ctx, "", title)
		return result
	}

	digits := book.DigitsOnly(isbn)
	var isbn13 book.ISBN13
	switch len(digits) {
	case 10:
		converted, err := book.ISBN10(digits).To13()
		if err != nil {
			c.logger.Warn("isbn-10 could not be converted", "isbn", digits, "err", err)
			return c.byTitle(ctx, digits, title)
		}
		c.logger.Debug("converted isbn-10", "isbn10", digits, "isbn13", converted)
		isbn13 = converted
	case 13:
		isbn13 = book.ISBN13(digits)
	default:
		c.logger.Warn("malformed isbn", "isbn", digits, "length", len(digits))
		return c.byTitle(ctx, digits, title)
	}

	if cached, found := c.results.Get(isbn13); found {
		c.logger.Debug("cache hit", "isbn", isbn13)
		return mo.Some(cached)
	}

	value, _, shared := c.inflight.Do(string(isbn13), func() (any, error) {
		// a lookup that finished after the check above has already filled the cache
		if cached, found := c.results.Get(isbn13); found {
			return mo.Some(cached), nil
		}
		result, fromBackend := c.resolve(ctx, string(isbn13), title)
		if fromBackend {
			c.results.Put(isbn13, result.MustGet())
		}
		return result, nil
	})
	if shared {
		c.logger.Debug("joined in-flight lookup", "isbn", isbn13)
	}
	return value.(mo.Option[book.Availability])
}

// CheckAvailabilityWithDetails accepts author and publisher for future
// disambiguation but currently answers exactly like CheckAvailability.
func (c *Client) CheckAvailabilityWithDetails(ctx context.Context, isbn string, title string, author string, publisher string) mo.Option[book.Availability] {
	c.logger.Debug("detailed lookup", "isbn", isbn, "title", title, "author", author, "publisher", publisher)
	return c.CheckAvailability(ctx, isbn, title)
}

func (c *Client) byTitle(ctx context.Context, malformed string, title string) mo.Option[book.Availability] {
	if len(title) == 0 {
		return mo.Some(book.NotFound(c.urls.For(malformed)))
	}
	c.logger.Info("searching by title instead", "title", title)
	result, _ := c.resolve(ctx, "", title)
	return result
}

// resolve walks the fallback chain. The second return value is true only
// when the answer came from the remote backend.
func (c *Client) resolve(ctx context.Context, isbn string, title string) (mo.Option[book.Availability], bool) {
	query := isbn
	if len(query) == 0 {
		query = title
	}

	response, err := c.backend.Check(ctx, isbn, title)
	if err == nil {
		result := response.Availability(c.urls.For(query))
		c.logger.Info("library lookup", "query", query, "found", result.Found, "available", result.Loanable, "location", result.Location.OrElse(""))
		return mo.Some(result), true
	}
	c.logger.Warn("library backend failed", "query", query, "err", err)

	if c.scraper != nil {
		result, err := c.scraper.Search(ctx, query)
		switch {
		case err != nil:
			c.logger.Warn("library scrape failed", "query", query, "err", err)
		case result.Error.IsPresent():
			c.logger.Warn("library page could not be read", "query", query, "reason", result.Error.MustGet())
		default:
			return mo.Some(result), false
		}
	}

	known := c.known.Lookup(isbn, title)
	if known.IsPresent() {
		c.logger.Info("answered from known books", "query", query)
	} else {
		c.logger.Warn("library availability could not be determined", "query", query)
	}
	return known, false
}
