package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// BrowserOptions controls the headless Chromium used by RodEngine.
type BrowserOptions struct {
	Headless  bool
	NoSandbox bool
	Bin       string
	Proxy     string
	Stealth   bool
}

// RodEngine renders article pages in headless Chromium. It is only used for
// article HTML; image bytes always go through HTTPEngine.
type RodEngine struct {
	browser *rod.Browser
	stealth bool
	name    string
}

// NewRodEngine launches a browser process that lives until Close.
func NewRodEngine(opts BrowserOptions) (*RodEngine, error) {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox)

	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("rod: launch browser: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("rod: connect browser: %w", err)
	}

	name := "rod"
	if opts.Stealth {
		name = "rod-stealth"
	}
	return &RodEngine{browser: browser, stealth: opts.Stealth, name: name}, nil
}

func (e *RodEngine) Name() string { return e.name }

// Fetch navigates a fresh tab to req.URL and returns the rendered HTML.
func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	page, err := e.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("%s: open page: %w", e.name, err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("rod: failed to close page", "error", closeErr)
		}
	}()

	if e.stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	extra := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		if k == "User-Agent" {
			if uaErr := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: v}); uaErr != nil {
				slog.Warn("rod: failed to override user agent", "error", uaErr)
			}
			continue
		}
		extra[k] = v
	}
	if len(extra) > 0 {
		if hdrErr := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(extra)}).Call(page); hdrErr != nil {
			slog.Warn("rod: failed to set extra headers", "error", hdrErr)
		}
	}

	p := page.Context(ctx)
	if err := p.Navigate(req.URL); err != nil {
		return nil, fmt.Errorf("%s: navigate: %w", e.name, err)
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}

	statusCode := 0
	if res, evalErr := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); evalErr == nil {
		statusCode = res.Value.Int()
	}
	if statusCode >= 400 {
		return nil, &StatusError{StatusCode: statusCode, URL: req.URL}
	}
	if statusCode == 0 {
		statusCode = 200
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("%s: read html: %w", e.name, err)
	}

	finalURL := req.URL
	if res, evalErr := p.Eval(`() => window.location.href`); evalErr == nil && res.Value.Str() != "" {
		finalURL = res.Value.Str()
	}

	return &FetchResult{
		Body:        []byte(rawHTML),
		ContentType: "text/html; charset=utf-8",
		StatusCode:  statusCode,
		FinalURL:    finalURL,
		EngineName:  e.name,
	}, nil
}

// Close shuts the browser process down.
func (e *RodEngine) Close() error {
	return e.browser.Close()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
