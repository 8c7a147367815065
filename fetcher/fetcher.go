// Package fetcher retrieves article pages and slide images with a fixed
// desktop-browser identity.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/use-agent/slidepdf/engine"
	"golang.org/x/net/html/charset"
)

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

// DefaultTimeout bounds each individual fetch.
const DefaultTimeout = 30 * time.Second

// FetchError reports a failed fetch. StatusCode is the origin's status when
// it answered with an error status, and 0 for transport-level failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Options configures a Fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher fetches article HTML through one engine and images through another.
type Fetcher struct {
	html      engine.Engine
	images    engine.Engine
	userAgent string
	timeout   time.Duration
}

// New creates a Fetcher. htmlEngine may be a Dispatcher; imageEngine should
// be a plain HTTP engine since image bytes must come back untouched.
func New(htmlEngine, imageEngine engine.Engine, opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Fetcher{
		html:      htmlEngine,
		images:    imageEngine,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
	}
}

// FetchHTML returns the article page decoded to UTF-8.
func (f *Fetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	res, err := f.html.Fetch(ctx, &engine.FetchRequest{
		URL:     pageURL,
		Headers: map[string]string{"User-Agent": f.userAgent},
		Timeout: f.timeout,
	})
	if err != nil {
		return "", wrapError(pageURL, err)
	}
	return decodeHTML(res.Body, res.ContentType), nil
}

// DownloadImage returns the raw bytes of an image. The referer is the
// article URL; the WeChat image host rejects requests without it.
func (f *Fetcher) DownloadImage(ctx context.Context, imageURL, referer string) ([]byte, error) {
	res, err := f.images.Fetch(ctx, &engine.FetchRequest{
		URL: imageURL,
		Headers: map[string]string{
			"User-Agent": f.userAgent,
			"Referer":    referer,
			"Accept":     "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
		},
		Timeout: f.timeout,
	})
	if err != nil {
		return nil, wrapError(imageURL, err)
	}
	return res.Body, nil
}

func wrapError(rawURL string, err error) *FetchError {
	fe := &FetchError{URL: rawURL, Err: err}
	var statusErr *engine.StatusError
	if errors.As(err, &statusErr) {
		fe.StatusCode = statusErr.StatusCode
	}
	return fe
}

// decodeHTML converts body to UTF-8 using the Content-Type charset, a
// <meta charset> declaration, or content sniffing, in that order.
func decodeHTML(body []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
