package extractor

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ArticleTitle returns a best-effort title for the article, used as the PDF
// document title. Readability is tried first; og:title and <title> are the
// fallbacks. Returns "" when nothing usable is found.
func ArticleTitle(rawHTML, pageURL string) string {
	if parsedURL, err := nurl.Parse(pageURL); err == nil {
		article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
		if err == nil {
			if title := strings.TrimSpace(article.Title); title != "" {
				return title
			}
		} else {
			slog.Debug("readability: title extraction failed", "url", pageURL, "error", err)
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if title := strings.TrimSpace(og); title != "" {
			return title
		}
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
