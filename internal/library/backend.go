package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/charmbracelet/log"
	"github.com/larkwiot/bookscout/internal/book"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrBackend = errors.New("library backend unavailable")

type Backend interface {
	Check(ctx context.Context, isbn string, title string) (Response, error)
}

// Response is the library backend's answer. Empty strings mean unset.
type Response struct {
	Found        bool   `json:"found"`
	Available    bool   `json:"available"`
	Location     string `json:"location"`
	CallNumber   string `json:"call_number"`
	DetailUrl    string `json:"detail_url"`
	ErrorMessage string `json:"error_message"`
}

func (r Response) Availability(fallbackUrl string) book.Availability {
	detailUrl := r.DetailUrl
	if len(detailUrl) == 0 {
		detailUrl = fallbackUrl
	}
	return book.Availability{
		Found:      r.Found,
		Loanable:   r.Available,
		Location:   book.OptionalString(r.Location),
		CallNumber: book.OptionalString(r.CallNumber),
		DetailUrl:  detailUrl,
		Error:      book.OptionalString(r.ErrorMessage),
	}
}

type RemoteBackend struct {
	baseUrl string
	client  *http.Client
	timeout time.Duration
	logger  *log.Logger
}

func NewRemoteBackend(baseUrl string, client *http.Client, timeout time.Duration, logger *log.Logger) *RemoteBackend {
	if logger == nil {
		logger = log.Default()
	}
	return &RemoteBackend{
		baseUrl: strings.TrimRight(baseUrl, "/"),
		client:  client,
		timeout: timeout,
		logger:  logger.WithPrefix("library-backend"),
	}
}

func (b *RemoteBackend) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)

	endpoint := b.baseUrl + path
	if len(query) != 0 {
		endpoint += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	request.Header.Set("Accept", "application/json")

	response, err := b.client.Do(request)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	response.Body = &cancelOnClose{ReadCloser: response.Body, cancel: cancel}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		response.Body.Close()
		return nil, fmt.Errorf("%w: %s returned status code %d", ErrBackend, path, response.StatusCode)
	}

	return response, nil
}

// Check asks the backend for either an isbn or a title; empty arguments are
// left out of the request.
func (b *RemoteBackend) Check(ctx context.Context, isbn string, title string) (Response, error) {
	query := url.Values{}
	if len(isbn) != 0 {
		query.Set("isbn", isbn)
	}
	if len(title) != 0 {
		query.Set("title", title)
	}

	response, err := b.get(ctx, "/api/library/check", query)
	if err != nil {
		return Response{}, err
	}
	defer response.Body.Close()

	var result Response
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return Response{}, fmt.Errorf("%w: could not decode response: %w", ErrBackend, err)
	}

	b.logger.Debug("backend answered", "isbn", isbn, "title", title, "found", result.Found, "available", result.Available)
	return result, nil
}

func (b *RemoteBackend) Name() string {
	return "LibraryBackend"
}

func (b *RemoteBackend) SelfCheck() (bool, string) {
	if len(b.baseUrl) == 0 {
		return false, "no backend url configured"
	}
	if b.client == nil {
		return false, "no http client configured"
	}
	return true, ""
}

func (b *RemoteBackend) HealthCheck() (bool, string) {
	response, err := b.get(context.Background(), "/health", nil)
	if err != nil {
		return false, err.Error()
	}
	response.Body.Close()
	return true, ""
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
