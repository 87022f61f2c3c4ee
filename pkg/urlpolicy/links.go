package urlpolicy

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks resolves every hyperlink in the markup against the current
// page's address, normalizes it, and keeps the ones that pass validity.
// The result is de-duplicated in document order.
func (p *Policy) ExtractLinks(body, currentURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		p.logger.Error("error extracting links", "url", currentURL, "error", err)
		return nil
	}
	base, err := url.Parse(currentURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		link := Normalize(base.ResolveReference(ref).String())
		if link == "" || !p.IsValid(link) {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}
