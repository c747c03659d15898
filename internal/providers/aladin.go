package providers

import (
	"context"
	"fmt"
	"github.com/charmbracelet/log"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/config"
	"github.com/samber/lo"
	"net/url"
	"time"
)

const (
	aladinPageSize   = 50
	aladinApiVersion = "20131101"
)

type QueryType string

const (
	QueryIsbn13 QueryType = "ISBN13"
	QueryTitle  QueryType = "Title"
)

// ClassifyQuery decides whether a query is an isbn lookup. Ten digit queries
// go through the same ISBN-10 conversion the rest of the program uses.
func ClassifyQuery(query string) (QueryType, string) {
	digits := book.DigitsOnly(query)
	switch len(digits) {
	case 10:
		isbn13, err := book.ISBN10(digits).To13()
		if err == nil {
			return QueryIsbn13, string(isbn13)
		}
	case 13:
		return QueryIsbn13, digits
	}
	return QueryTitle, query
}

type Aladin struct {
	*Generic
	ttbKey string
	url    string
}

func NewAladin(conf *config.AladinConfig, search *config.SearchConfig, logger *log.Logger) *Aladin {
	return &Aladin{
		Generic: NewGeneric("aladin", conf.RequestsPerSecond, search.Timeout(), search.MaxRetries, logger),
		ttbKey:  conf.TtbKey,
		url:     conf.Url,
	}
}

func (a *Aladin) SelfCheck() (bool, string) {
	if len(a.ttbKey) == 0 {
		return false, "aladin ttb key not configured"
	}
	return true, ""
}

type aladinItem struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Publisher  string `json:"publisher"`
	PubDate    string `json:"pubDate"`
	Cover      string `json:"cover"`
	Isbn       string `json:"isbn"`
	Isbn13     string `json:"isbn13"`
	PriceSales int    `json:"priceSales"`
}

type aladinResponse struct {
	Item []aladinItem `json:"item"`
}

func (a *Aladin) Search(ctx context.Context, query string) ([]book.SearchResult, error) {
	if len(a.ttbKey) == 0 {
		return nil, fmt.Errorf("%w: aladin ttb key is missing", ErrNotConfigured)
	}

	queryType, searchQuery := ClassifyQuery(query)

	params := url.Values{}
	params.Set("ttbkey", a.ttbKey)
	params.Set("Query", searchQuery)
	params.Set("QueryType", string(queryType))
	params.Set("SearchTarget", "Book")
	params.Set("MaxResults", fmt.Sprint(aladinPageSize))
	params.Set("start", "1")
	params.Set("output", "js")
	params.Set("Version", aladinApiVersion)

	var response aladinResponse
	if err := a.getJson(ctx, a.url+"?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	a.logger.Debug("search complete", "query", searchQuery, "type", queryType, "results", len(response.Item))

	return lo.Map(response.Item, func(item aladinItem, _ int) book.SearchResult {
		isbn := item.Isbn13
		if len(isbn) == 0 {
			isbn = item.Isbn
		}
		return book.SearchResult{
			Isbn:        isbn,
			Title:       item.Title,
			Author:      item.Author,
			Publisher:   item.Publisher,
			ImageUrl:    item.Cover,
			PublishDate: parseDate(time.DateOnly, item.PubDate),
			Price:       optionalPrice(item.PriceSales),
			Source:      "aladin",
		}
	}), nil
}
