package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// lazySrcAttr is where WeChat articles keep the real image URL; src is
// usually a placeholder until the image scrolls into view.
const lazySrcAttr = "data-src"

var imgSelector = cascadia.MustCompile("img")

// ExtractImageURLs returns the source of every <img> in document order,
// preferring the lazy-load attribute over src. Tags with neither are
// skipped. No deduplication is performed.
func ExtractImageURLs(rawHTML string) []string {
	urls := make([]string, 0)

	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return urls
	}

	goquery.NewDocumentFromNode(root).
		FindMatcher(imgSelector).
		Each(func(_ int, s *goquery.Selection) {
			if src := imageSource(s); src != "" {
				urls = append(urls, src)
			}
		})

	return urls
}

func imageSource(s *goquery.Selection) string {
	if v, ok := s.Attr(lazySrcAttr); ok && v != "" {
		return v
	}
	if v, ok := s.Attr("src"); ok && v != "" {
		return v
	}
	return ""
}
