package book

import (
	"fmt"
	"github.com/samber/mo"
	"time"
)

// Quote is one store's answer for a single price request. A failed fetch
// still produces a Quote, just without a price.
type Quote struct {
	Store     string            `json:"store"`
	StoreName string            `json:"storeName"`
	Available bool              `json:"available"`
	Price     mo.Option[int]    `json:"price"`
	Delivery  mo.Option[string] `json:"deliveryInfo"`
	Url       string            `json:"url"`
}

func FoundQuote(store string, storeName string, price int, delivery string, url string) Quote {
	q := Quote{
		Store:     store,
		StoreName: storeName,
		Available: true,
		Price:     mo.Some(price),
		Url:       url,
	}
	if len(delivery) != 0 {
		q.Delivery = mo.Some(delivery)
	}
	return q
}

func UnavailableQuote(store string, storeName string, url string) Quote {
	return Quote{
		Store:     store,
		StoreName: storeName,
		Available: false,
		Url:       url,
	}
}

func (q *Quote) String() string {
	if !q.Available {
		return fmt.Sprintf("%s: unavailable (%s)", q.StoreName, q.Url)
	}
	return fmt.Sprintf("%s: %d (%s)", q.StoreName, q.Price.OrElse(0), q.Url)
}

// Availability is a library holding record. DetailUrl is always set so a
// caller can check by hand when nothing else is known.
type Availability struct {
	Found      bool              `json:"found"`
	Loanable   bool              `json:"available"`
	Location   mo.Option[string] `json:"location"`
	CallNumber mo.Option[string] `json:"callNumber"`
	DetailUrl  string            `json:"detailUrl"`
	Error      mo.Option[string] `json:"errorMessage"`
}

func NotFound(detailUrl string) Availability {
	return Availability{DetailUrl: detailUrl}
}

func FailedAvailability(message string, detailUrl string) Availability {
	return Availability{DetailUrl: detailUrl, Error: mo.Some(message)}
}

// OptionalString maps the empty string to None.
func OptionalString(s string) mo.Option[string] {
	if len(s) == 0 {
		return mo.None[string]()
	}
	return mo.Some(s)
}

type SearchResult struct {
	Isbn        string               `json:"isbn"`
	Title       string               `json:"title"`
	Author      string               `json:"author"`
	Publisher   string               `json:"publisher"`
	ImageUrl    string               `json:"imageUrl"`
	PublishDate mo.Option[time.Time] `json:"publishedDate"`
	Price       mo.Option[int]       `json:"price"`
	Source      string               `json:"source"`
}

func (r *SearchResult) String() string {
	return fmt.Sprintf("{\"isbn\": \"%s\", \"title\": \"%s\", \"author\": \"%s\", \"publisher\": \"%s\", \"source\": %s}", r.Isbn, r.Title, r.Author, r.Publisher, r.Source)
}
