package library

import (
	"context"
	"fmt"
	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/util"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// SearchUrls builds links into the library's own search page.
type SearchUrls struct {
	Base string
}

func (s SearchUrls) Generic() string {
	return s.Base + "/Cheetah/Search/AdvenceSearch#/basic"
}

func (s SearchUrls) For(query string) string {
	if len(query) == 0 {
		return s.Generic()
	}
	return s.Base + "/Cheetah/Search/AdvenceSearch#/total/" + url.QueryEscape(query)
}

var (
	loanableTerms = []string{
		"대출가능", "대출 가능", "이용가능", "이용 가능", "비치중", "소장중",
		"available", "on shelf", "not checked out",
	}
	unavailableTerms = []string{
		"대출중", "대출 중", "대출불가", "대출 불가", "checked out", "on loan",
		"예약", "reserved", "분실", "제적", "연체", "overdue",
	}
	negatedTerms = strings.NewReplacer("unavailable", "", "not available", "")

	notHeldTerms  = []string{"소장하고 있지 않습니다", "소장 없음"}
	noResultTerms = []string{"검색결과가 없습니다", "검색 결과가 없습니다", "no results"}

	namedLocations  = []string{"중앙도서관", "제1자료실", "제2자료실", "참고자료실", "정기간행물실"}
	locationPattern = regexp.MustCompile(`\S*자료실\S*`)
)

const (
	resultSelector = ".result-item, .search-result, .list-item, .book-item, " +
		"table.table tbody tr, .list-group-item, [class*='result'], " +
		".search-list li, .result-list-item, .search_result, " +
		"[class*='book'], [class*='item'], .resultSet"
	tableRowSelector   = "table tr:has(td)"
	callNumberSelector = ".call-number, .callnumber, .call-num, [class*='call']"
)

// ClassifyLoanable reports whether text says a copy can be borrowed.
// Positive terms win over negative ones and unknown text is not loanable.
// "unavailable" must not count as a match for "available".
func ClassifyLoanable(text string) bool {
	lower := strings.ToLower(text)
	positive := negatedTerms.Replace(lower)
	for _, term := range loanableTerms {
		if strings.Contains(positive, term) {
			return true
		}
	}
	for _, term := range unavailableTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}
	return false
}

func ExtractLocation(text string) string {
	for _, location := range namedLocations {
		if strings.Contains(text, location) {
			return location
		}
	}
	return locationPattern.FindString(text)
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func isNoResultsPage(text string) bool {
	lower := strings.ToLower(text)
	if containsAny(lower, noResultTerms) {
		return true
	}
	return strings.Contains(lower, "검색된") && (strings.Contains(lower, "0건") || strings.Contains(lower, "0 건"))
}

// ParseResults reads the first hit of a library search result page.
func ParseResults(doc *goquery.Document, detailUrl string) book.Availability {
	items := doc.Find(resultSelector)
	if items.Length() == 0 {
		items = doc.Find(tableRowSelector)
	}

	if items.Length() == 0 {
		if isNoResultsPage(doc.Find("body").Text()) {
			return book.NotFound(detailUrl)
		}
		return book.FailedAvailability("자동 확인 실패 - 링크에서 직접 확인하세요", detailUrl)
	}

	first := items.First()
	text := util.CollapseSpace(first.Text())
	markup, _ := first.Html()

	return book.Availability{
		Found:      !containsAny(strings.ToLower(text), notHeldTerms),
		Loanable:   ClassifyLoanable(markup + " " + text),
		Location:   book.OptionalString(ExtractLocation(text)),
		CallNumber: book.OptionalString(strings.TrimSpace(first.Find(callNumberSelector).First().Text())),
		DetailUrl:  detailUrl,
	}
}

// Scraper searches the library website directly. It is only used when the
// remote backend cannot answer.
type Scraper struct {
	urls      SearchUrls
	client    *http.Client
	userAgent string
	timeout   time.Duration
	logger    *log.Logger
}

func NewScraper(urls SearchUrls, client *http.Client, userAgent string, timeout time.Duration, logger *log.Logger) *Scraper {
	if logger == nil {
		logger = log.Default()
	}
	return &Scraper{
		urls:      urls,
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		logger:    logger.WithPrefix("library-scrape"),
	}
}

func (s *Scraper) Search(ctx context.Context, query string) (book.Availability, error) {
	detailUrl := s.urls.For(query)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, detailUrl, nil)
	if err != nil {
		return book.Availability{}, err
	}
	request.Header.Set("User-Agent", s.userAgent)
	request.Header.Set("Referer", s.urls.Base)

	response, err := s.client.Do(request)
	if err != nil {
		return book.Availability{}, err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return book.Availability{}, fmt.Errorf("library site returned status code %d", response.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(response.Body)
	if err != nil {
		return book.Availability{}, err
	}

	result := ParseResults(doc, detailUrl)
	s.logger.Debug("parsed library page", "query", query, "found", result.Found, "available", result.Loanable)
	return result, nil
}
