package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
	"net/http"
	"sync/atomic"
	"time"
)

const rateLimitCooldown = time.Minute

// Generic holds what every provider shares: a retrying HTTP client, a
// request rate limit and a cool-down after the upstream reports 429.
type Generic struct {
	name         string
	client       *retryablehttp.Client
	limiter      *rate.Limiter
	limitedUntil atomic.Int64
	logger       *log.Logger
}

func NewGeneric(name string, requestsPerSecond float64, timeout time.Duration, maxRetries int, logger *log.Logger) *Generic {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix(name)

	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = leveledLogger{logger}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Generic{
		name:    name,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger,
	}
}

func (g *Generic) Name() string {
	return g.name
}

func (g *Generic) rateLimited() bool {
	return time.Now().UnixNano() < g.limitedUntil.Load()
}

func (g *Generic) HealthCheck() (bool, string) {
	if g.rateLimited() {
		return false, "rate limit exceeded"
	}
	return true, ""
}

func (g *Generic) getJson(ctx context.Context, endpoint string, header http.Header, out any) error {
	if g.rateLimited() {
		return fmt.Errorf("%w: %s is cooling down after a rate limit", ErrUpstream, g.name)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	request, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	for key, values := range header {
		request.Header[key] = values
	}
	request.Header.Set("Accept", "application/json")

	response, err := g.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %s request failed: %w", ErrUpstream, g.name, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusTooManyRequests {
		g.limitedUntil.Store(time.Now().Add(rateLimitCooldown).UnixNano())
		g.logger.Error("rate limit exceeded, pausing provider", "for", rateLimitCooldown)
		return fmt.Errorf("%w: %s rate limit exceeded", ErrUpstream, g.name)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned status code %d", ErrUpstream, g.name, response.StatusCode)
	}

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s response could not be decoded: %w", ErrUpstream, g.name, err)
	}

	return nil
}

// leveledLogger lets retryablehttp log through charmbracelet/log.
type leveledLogger struct {
	logger *log.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}
