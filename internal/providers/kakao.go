package providers

import (
	"context"
	"fmt"
	"github.com/charmbracelet/log"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/config"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const kakaoPageSize = 50

type Kakao struct {
	*Generic
	apiKey string
	url    string
}

func NewKakao(conf *config.KakaoConfig, search *config.SearchConfig, logger *log.Logger) *Kakao {
	return &Kakao{
		Generic: NewGeneric("kakao", conf.RequestsPerSecond, search.Timeout(), search.MaxRetries, logger),
		apiKey:  conf.ApiKey,
		url:     conf.Url,
	}
}

func (k *Kakao) SelfCheck() (bool, string) {
	if len(k.apiKey) == 0 {
		return false, "kakao api key not configured"
	}
	return true, ""
}

type kakaoDocument struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Publisher string   `json:"publisher"`
	Thumbnail string   `json:"thumbnail"`
	Isbn      string   `json:"isbn"`
	Datetime  string   `json:"datetime"`
	Price     int      `json:"price"`
}

type kakaoResponse struct {
	Documents []kakaoDocument `json:"documents"`
}

func (k *Kakao) Search(ctx context.Context, query string) ([]book.SearchResult, error) {
	if len(k.apiKey) == 0 {
		return nil, fmt.Errorf("%w: kakao api key is missing", ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("size", fmt.Sprint(kakaoPageSize))

	header := http.Header{}
	header.Set("Authorization", "KakaoAK "+k.apiKey)

	var response kakaoResponse
	if err := k.getJson(ctx, k.url+"?"+params.Encode(), header, &response); err != nil {
		return nil, err
	}

	k.logger.Debug("search complete", "query", query, "results", len(response.Documents))

	return lo.Map(response.Documents, func(doc kakaoDocument, _ int) book.SearchResult {
		return book.SearchResult{
			Isbn:        firstIsbn(doc.Isbn),
			Title:       doc.Title,
			Author:      strings.Join(doc.Authors, ", "),
			Publisher:   doc.Publisher,
			ImageUrl:    doc.Thumbnail,
			PublishDate: parseDate(time.RFC3339, doc.Datetime),
			Price:       optionalPrice(doc.Price),
			Source:      "kakao",
		}
	}), nil
}

// firstIsbn picks the first of the space separated isbns kakao returns,
// usually the ISBN-10.
func firstIsbn(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func parseDate(layout string, value string) mo.Option[time.Time] {
	if len(value) == 0 {
		return mo.None[time.Time]()
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return mo.None[time.Time]()
	}
	return mo.Some(t)
}

func optionalPrice(price int) mo.Option[int] {
	if price <= 0 {
		return mo.None[int]()
	}
	return mo.Some(price)
}
