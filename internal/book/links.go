package book

import (
	"fmt"
	"github.com/samber/lo"
)

type LinkSite struct {
	Source string
	Prefix string
}

type DeepLink struct {
	Source string `json:"source"`
	Url    string `json:"url"`
}

type DeepLinks []DeepLink

func DefaultLinkSites() []LinkSite {
	return []LinkSite{
		{Source: "yes24", Prefix: "http://www.yes24.com/Product/Search?domain=BOOK&query="},
		{Source: "kyobo", Prefix: "https://search.kyobobook.co.kr/search?keyword="},
		{Source: "yjcEbook", Prefix: "https://ebook.yjc.ac.kr/search?query="},
		{Source: "yjcCentral", Prefix: "https://lib.yjc.ac.kr/WebYJC/Aspx/search/searchotb.aspx?query="},
	}
}

func BuildDeepLinks(raw string) (DeepLinks, error) {
	return BuildDeepLinksFor(raw, DefaultLinkSites())
}

// BuildDeepLinksFor returns one link per site, in site order.
func BuildDeepLinksFor(raw string, sites []LinkSite) (DeepLinks, error) {
	isbn := Normalize(raw)
	if !IsValidIsbn(isbn) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIsbn, raw)
	}

	return lo.Map(sites, func(site LinkSite, _ int) DeepLink {
		return DeepLink{Source: site.Source, Url: site.Prefix + isbn}
	}), nil
}

func (links DeepLinks) Url(source string) (string, bool) {
	link, found := lo.Find(links, func(l DeepLink) bool {
		return l.Source == source
	})
	return link.Url, found
}

func (links DeepLinks) ToMap() map[string]string {
	return lo.SliceToMap(links, func(l DeepLink) (string, string) {
		return l.Source, l.Url
	})
}
