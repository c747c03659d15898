package internal

import (
	"bufio"
	"context"
	"encoding/json"
	"github.com/charmbracelet/log"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/config"
	"github.com/larkwiot/bookscout/internal/library"
	"github.com/larkwiot/bookscout/internal/providers"
	"github.com/larkwiot/bookscout/internal/service"
	"github.com/larkwiot/bookscout/internal/stores"
	"github.com/larkwiot/bookscout/internal/util"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"os"
	"strings"
	"sync"
)

type PriceSource interface {
	GetPrices(ctx context.Context, isbn string, title string) []book.Quote
}

type LibrarySource interface {
	CheckAvailability(ctx context.Context, isbn string, title string) mo.Option[book.Availability]
	CheckAvailabilityWithDetails(ctx context.Context, isbn string, title string, author string, publisher string) mo.Option[book.Availability]
}

type SearchSource interface {
	Search(ctx context.Context, query string, source string) ([]book.SearchResult, error)
}

// Report is everything known about one book.
type Report struct {
	Query   string                       `json:"query"`
	Isbn    string                       `json:"isbn,omitempty"`
	Isbn10  mo.Option[book.ISBN10]       `json:"isbn10"`
	Isbn13  mo.Option[book.ISBN13]       `json:"isbn13"`
	Title   string                       `json:"title,omitempty"`
	Prices  []book.Quote                 `json:"prices"`
	Library mo.Option[book.Availability] `json:"library"`
	Links   map[string]string            `json:"links,omitempty"`
}

// identify fills both isbn forms and the deep links when the isbn is valid.
func (r *Report) identify() {
	id := book.Identify(r.Isbn)
	r.Isbn10 = id.Isbn10
	r.Isbn13 = id.Isbn13
	if !id.IsValid() {
		return
	}
	if links, err := book.BuildDeepLinks(id.Text); err == nil {
		r.Links = links.ToMap()
	}
}

// Incomplete reports whether a retry could learn more: the library could not
// answer or no store had a price.
func (r *Report) Incomplete() bool {
	return r.Library.IsAbsent() || !lo.SomeBy(r.Prices, func(q book.Quote) bool {
		return q.Available
	})
}

type BookManager struct {
	prices   PriceSource
	library  LibrarySource
	search   SearchSource
	services *service.ServiceManager
	shutdown []func()
	logger   *log.Logger

	bookStateLock sync.Mutex
	books         map[string]Report
}

func NewBookManager(conf *config.Config, logger *log.Logger) (*BookManager, error) {
	err := conf.Validate()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.Default()
	}

	aggregator := stores.NewAggregatorFromConfig(&conf.Stores, logger)
	libraryClient, backend := library.NewClientFromConfig(&conf.Library, conf.Stores.UserAgent, logger)
	searchClient, searchServices := providers.NewClientFromConfig(conf, logger)

	bm := NewBookManagerWith(aggregator, libraryClient, searchClient, logger)

	bm.services = service.NewServiceManager(conf.Server.HealthCheckInterval(), logger)
	bm.services.Manage(backend)
	for _, svc := range searchServices {
		bm.services.Manage(svc)
	}

	bm.shutdown = append(bm.shutdown, aggregator.Close, bm.services.Close)

	logger.Info("book manager ready", "stores", aggregator.Stores(), "library", conf.Library.BackendUrl, "redis", conf.Redis.Enable)
	return bm, nil
}

// NewBookManagerWith wires a manager from ready made parts. It has no
// service manager, so Statuses is empty.
func NewBookManagerWith(prices PriceSource, availability LibrarySource, search SearchSource, logger *log.Logger) *BookManager {
	if logger == nil {
		logger = log.Default()
	}
	return &BookManager{
		prices:  prices,
		library: availability,
		search:  search,
		logger:  logger.WithPrefix("bookmanager"),
		books:   make(map[string]Report),
	}
}

func (bm *BookManager) Shutdown() {
	for _, fn := range bm.shutdown {
		fn()
	}
}

func (bm *BookManager) GetPrices(ctx context.Context, isbn string, title string) []book.Quote {
	return bm.prices.GetPrices(ctx, isbn, title)
}

func (bm *BookManager) CheckAvailability(ctx context.Context, isbn string, title string) mo.Option[book.Availability] {
	return bm.library.CheckAvailability(ctx, isbn, title)
}

func (bm *BookManager) CheckAvailabilityWithDetails(ctx context.Context, isbn string, title string, author string, publisher string) mo.Option[book.Availability] {
	return bm.library.CheckAvailabilityWithDetails(ctx, isbn, title, author, publisher)
}

func (bm *BookManager) BuildDeepLinks(isbn string) (book.DeepLinks, error) {
	return book.BuildDeepLinks(isbn)
}

func (bm *BookManager) Search(ctx context.Context, query string, source string) ([]book.SearchResult, error) {
	return bm.search.Search(ctx, query, source)
}

func (bm *BookManager) Statuses() []service.Status {
	if bm.services == nil {
		return []service.Status{}
	}
	return bm.services.Statuses()
}

// Lookup fetches prices and library availability at the same time and adds
// deep links when the isbn is valid.
func (bm *BookManager) Lookup(ctx context.Context, isbn string, title string) Report {
	report := Report{
		Query: strings.TrimSpace(lo.Ternary(len(strings.TrimSpace(isbn)) != 0, isbn, title)),
		Isbn:  strings.TrimSpace(isbn),
		Title: strings.TrimSpace(title),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.Prices = bm.prices.GetPrices(gctx, report.Isbn, report.Title)
		return nil
	})
	g.Go(func() error {
		report.Library = bm.library.CheckAvailability(gctx, report.Isbn, report.Title)
		return nil
	})

	report.identify()

	_ = g.Wait()
	return report
}

// Import loads a previous batch output so finished lines are skipped. With
// retry, incomplete reports are dropped and looked up again.
func (bm *BookManager) Import(outputPath string, retry bool) error {
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return err
	}

	var previous map[string]Report
	if err := json.Unmarshal(data, &previous); err != nil {
		return err
	}

	bm.bookStateLock.Lock()
	defer bm.bookStateLock.Unlock()

	for key, report := range previous {
		if retry && report.Incomplete() {
			continue
		}
		bm.books[key] = report
	}

	bm.logger.Info("loaded cached reports", "path", outputPath, "reports", len(bm.books), "dropped", len(previous)-len(bm.books))
	return nil
}

func (bm *BookManager) isProcessed(query string) bool {
	bm.bookStateLock.Lock()
	defer bm.bookStateLock.Unlock()
	_, isProcessed := bm.books[query]
	return isProcessed
}

func (bm *BookManager) finish(report Report, output util.ObjectWriter[*Report]) {
	bm.bookStateLock.Lock()
	bm.books[report.Query] = report
	bm.bookStateLock.Unlock()

	output.WriteObject(&report)
}

func readQueries(inputPath string) ([]string, error) {
	fh, err := os.Open(inputPath)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	queries := make([]string, 0)
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := util.CollapseSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lo.Uniq(queries), nil
}

// Batch looks up every line of inputPath, at most threads at a time, and
// writes one report per line to output. Each line is an isbn or a title. A
// dry run only resolves isbns and deep links without any network calls.
func (bm *BookManager) Batch(ctx context.Context, inputPath string, threads int, dryRun bool, output util.ObjectWriter[*Report]) error {
	queries, err := readQueries(inputPath)
	if err != nil {
		return err
	}

	if threads < 1 {
		threads = 1
	}

	bm.logger.Info("starting batch", "input", inputPath, "lines", len(queries), "threads", threads, "dryRun", dryRun)

	pb := progressbar.NewOptions(
		len(queries),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetDescription("looking up books"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWriter(os.Stderr),
	)
	defer pb.Close()

	// write any cached reports back out so the new output is complete
	bm.bookStateLock.Lock()
	for _, report := range bm.books {
		output.WriteObject(&report)
	}
	bm.bookStateLock.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)

	for _, query := range queries {
		if bm.isProcessed(query) {
			_ = pb.Add(1)
			continue
		}

		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			defer func() { _ = pb.Add(1) }()

			isbn, title := util.SplitQuery(query)
			var report Report
			if dryRun {
				report = Report{Query: query, Isbn: isbn, Title: title, Prices: []book.Quote{}}
				report.identify()
			} else {
				report = bm.Lookup(gctx, isbn, title)
				report.Query = query
			}

			bm.finish(report, output)
			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		bm.logger.Warn("batch interrupted", "err", err)
		return err
	}

	bm.logger.Info("batch complete", "lines", len(queries))
	return nil
}
