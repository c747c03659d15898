package stores

import (
	"github.com/samber/lo"
	"net/url"
)

const freeDelivery = "무료배송"

func searchUrl(prefix string) func(string) string {
	return func(query string) string {
		return prefix + url.QueryEscape(query)
	}
}

var (
	Yes24 = Site{
		Key:       "yes24",
		Name:      "YES24",
		SearchUrl: searchUrl("https://www.yes24.com/Product/Search?domain=BOOK&query="),
		Selector:  "em.yes_m, strong.txt_num",
		Delivery:  freeDelivery,
	}
	Aladin = Site{
		Key:       "aladin",
		Name:      "알라딘",
		SearchUrl: searchUrl("https://www.aladin.co.kr/search/wsearchresult.aspx?SearchTarget=Book&SearchWord="),
		Selector:  "span.ss_p2 b, span.ss_p2",
		Delivery:  freeDelivery,
	}
	Kyobo = Site{
		Key:       "kyobo",
		Name:      "교보문고",
		SearchUrl: searchUrl("https://search.kyobobook.co.kr/search?keyword="),
		Selector:  "span.val, span.price_val",
		Delivery:  freeDelivery,
	}
	Interpark = Site{
		Key:       "interpark",
		Name:      "인터파크",
		SearchUrl: searchUrl("https://book.interpark.com/search?query="),
		Selector:  "em.price_real, span.price",
		Delivery:  freeDelivery,
	}
)

// DefaultSites lists every supported store in registration order.
func DefaultSites() []Site {
	return []Site{Yes24, Aladin, Kyobo, Interpark}
}

func EnabledSites(disabled []string) []Site {
	return lo.Filter(DefaultSites(), func(site Site, _ int) bool {
		return !lo.Contains(disabled, site.Key)
	})
}
