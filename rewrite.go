package vitessr

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RewriteHTML rewrites script sources and link targets in an already rendered page.
// Elements whose path is not in the manifest are left as they are. In development the
// document is copied through unchanged apart from parser normalization.
func RewriteHTML(r *Resolver, src io.Reader, dst io.Writer) error {
	doc, err := goquery.NewDocumentFromReader(src)
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	if r != nil && r.production() {
		rewriteDocument(r, doc)
	}

	out, err := doc.Html()
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if _, err := io.WriteString(dst, out); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

func rewriteDocument(r *Resolver, doc *goquery.Document) {
	log := loggerOrNop(r.Logger)

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if isExternalURL(src) {
			return
		}
		asset, ok := r.ResolveSrc(src)
		if !ok {
			log.Debug("left script untouched: " + src)
			return
		}
		s.SetAttr("src", asset.URL)
		if len(asset.CSS) > 0 {
			s.BeforeHtml(stylesheetLinks(asset.CSS, selectionCompanionAttrs(s)))
		}
	})

	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if isExternalURL(href) {
			return
		}
		url, ok := r.ResolveHref(href)
		if !ok {
			log.Debug("left link untouched: " + href)
			return
		}
		s.SetAttr("href", url)
	})
}

func selectionCompanionAttrs(s *goquery.Selection) []Attr {
	var attrs []Attr
	for _, name := range []string{"crossorigin", "nonce"} {
		if v, ok := s.Attr(name); ok {
			attrs = append(attrs, Attr{Name: name, Value: v, Boolean: v == ""})
		}
	}
	return attrs
}

func isExternalURL(u string) bool {
	return strings.HasPrefix(u, "//") || strings.Contains(u, "://") || strings.HasPrefix(u, "data:")
}
