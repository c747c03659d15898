package providers

import (
	"context"
	"fmt"
	"github.com/charmbracelet/log"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/cache"
	"github.com/larkwiot/bookscout/internal/config"
	"github.com/larkwiot/bookscout/internal/service"
	"github.com/redis/go-redis/v9"
	"strings"
)

const (
	SourceKakao  = "kakao"
	SourceAladin = "aladin"
	SourceAuto   = "auto"
)

type Client struct {
	primary   Provider
	secondary Provider
	results   cache.Cache[string, []book.SearchResult]
	logger    *log.Logger
}

// NewClient searches primary for "kakao", secondary for "aladin", and both in
// that order for "auto".
func NewClient(primary Provider, secondary Provider, results cache.Cache[string, []book.SearchResult], logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		primary:   primary,
		secondary: secondary,
		results:   results,
		logger:    logger.WithPrefix("search"),
	}
}

// NewClientFromConfig builds the kakao and aladin providers, sharing results
// through redis when it is enabled. The returned services should be handed to
// a service manager.
func NewClientFromConfig(conf *config.Config, logger *log.Logger) (*Client, []service.Service) {
	kakao := NewKakao(&conf.Kakao, &conf.Search, logger)
	aladin := NewAladin(&conf.Aladin, &conf.Search, logger)
	services := []service.Service{kakao, aladin}

	var results cache.Cache[string, []book.SearchResult]
	if conf.Redis.Enable {
		redisCache := cache.NewRedisCache[string, []book.SearchResult](
			redis.NewClient(&redis.Options{
				Addr:     conf.Redis.Addr,
				Password: conf.Redis.Password,
				DB:       conf.Redis.DB,
			}),
			conf.Redis.Prefix+"search:",
			conf.Search.CacheTTL(),
			logger,
		)
		results = redisCache
		services = append(services, redisCache)
	} else {
		results = cache.NewTTLCache[string, []book.SearchResult](conf.Search.CacheTTL())
	}

	return NewClient(kakao, aladin, results, logger), services
}

// Search queries the provider named by source, which defaults to kakao.
//
// "auto" moves on to the second provider only when the first one finds
// nothing. An error from the first provider is returned as is.
func (c *Client) Search(ctx context.Context, query string, source string) ([]book.SearchResult, error) {
	query = strings.TrimSpace(query)
	if len(query) == 0 {
		return []book.SearchResult{}, nil
	}

	source = strings.ToLower(strings.TrimSpace(source))
	if len(source) == 0 {
		source = SourceKakao
	}

	cacheKey := query + "::" + source
	if cached, found := c.results.Get(cacheKey); found {
		c.logger.Debug("cache hit", "key", cacheKey)
		return cached, nil
	}

	var results []book.SearchResult
	var err error
	switch source {
	case SourceKakao:
		results, err = c.primary.Search(ctx, query)
	case SourceAladin:
		results, err = c.secondary.Search(ctx, query)
	case SourceAuto:
		results, err = c.auto(ctx, query)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
	}
	if err != nil {
		c.logger.Warn("search failed", "query", query, "source", source, "err", err)
		return nil, err
	}

	c.results.Put(cacheKey, results)
	return results, nil
}

func (c *Client) auto(ctx context.Context, query string) ([]book.SearchResult, error) {
	results, err := c.primary.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) != 0 {
		return results, nil
	}

	c.logger.Info("no results, trying next provider", "query", query, "provider", c.secondary.Name())
	return c.secondary.Search(ctx, query)
}
