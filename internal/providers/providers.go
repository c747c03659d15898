// Package providers searches bibliographic APIs for book metadata.
package providers

import (
	"context"
	"errors"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/service"
)

var (
	// ErrNotConfigured means a credential is missing. Retrying cannot help.
	ErrNotConfigured     = errors.New("search provider not configured")
	ErrUpstream          = errors.New("search provider failed")
	ErrUnsupportedSource = errors.New("unsupported search source")
)

type Provider interface {
	service.Service
	Search(ctx context.Context, query string) ([]book.SearchResult, error)
}
