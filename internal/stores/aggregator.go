package stores

import (
	"context"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/config"
	"github.com/larkwiot/bookscout/internal/util"
	"github.com/samber/lo"
	"strings"
	"time"
)

// Aggregator fans one price request out to every store on a shared worker
// pool. Prices are never cached.
type Aggregator struct {
	fetchers []Fetcher
	pool     *util.ThreadPool
	deadline time.Duration
	logger   *log.Logger
}

func NewAggregator(fetchers []Fetcher, pool *util.ThreadPool, deadline time.Duration, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		fetchers: fetchers,
		pool:     pool,
		deadline: deadline,
		logger:   logger.WithPrefix("prices"),
	}
}

// NewAggregatorFromConfig scrapes every enabled store with its own pooled
// HTTP client and worker pool. Close releases the pool.
func NewAggregatorFromConfig(conf *config.StoresConfig, logger *log.Logger) *Aggregator {
	client := cleanhttp.DefaultPooledClient()

	fetchers := lo.Map(EnabledSites(conf.Disabled), func(site Site, _ int) Fetcher {
		return NewScraper(site, client, conf.UserAgent, conf.Timeout(), logger)
	})

	return NewAggregator(fetchers, util.NewThreadPool(conf.Workers), conf.Deadline(), logger)
}

func (a *Aggregator) Close() {
	a.pool.Close()
}

func (a *Aggregator) Stores() []string {
	return lo.Map(a.fetchers, func(f Fetcher, _ int) string {
		return f.Key()
	})
}

// GetPrices returns one quote per store in registration order. Stores still
// running when the deadline passes are reported unavailable and their late
// results are dropped.
func (a *Aggregator) GetPrices(ctx context.Context, isbn string, title string) []book.Quote {
	searchKey := strings.TrimSpace(isbn)
	if len(searchKey) == 0 {
		searchKey = strings.TrimSpace(title)
	}
	if len(searchKey) == 0 {
		a.logger.Warn("no isbn or title, skipping price lookup")
		return []book.Quote{}
	}

	ctx, cancel := context.WithTimeout(ctx, a.deadline)
	defer cancel()

	futures := lo.Map(a.fetchers, func(f Fetcher, _ int) *util.Future[book.Quote] {
		return util.Go(ctx, a.pool, func() book.Quote {
			return f.Fetch(ctx, searchKey)
		})
	})

	quotes := make([]book.Quote, len(a.fetchers))
	for i, future := range futures {
		quote, done := future.Await(ctx)
		if !done {
			a.logger.Warn("price lookup missed the deadline", "store", a.fetchers[i].Key(), "deadline", a.deadline, "busy", a.pool.Count.Load())
			quote = a.fetchers[i].Unavailable(searchKey)
		}
		quotes[i] = quote
	}

	a.logger.Info("price lookup complete", "query", searchKey, "available", lo.CountBy(quotes, func(q book.Quote) bool {
		return q.Available
	}), "stores", len(quotes), "busy", a.pool.Count.Load())

	return quotes
}
