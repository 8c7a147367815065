package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/use-agent/slidepdf/config"
	"github.com/use-agent/slidepdf/fetcher"
	"github.com/use-agent/slidepdf/metrics"
	"github.com/use-agent/slidepdf/models"
	"github.com/use-agent/slidepdf/pipeline"
)

const articleURL = "https://mp.weixin.qq.com/s/deck"

type stubFetcher struct {
	html    string
	htmlErr error
	slide   []byte
}

func (s *stubFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	return s.html, s.htmlErr
}

func (s *stubFetcher) DownloadImage(ctx context.Context, imageURL, referer string) ([]byte, error) {
	if strings.Contains(imageURL, "missing") {
		return nil, &fetcher.FetchError{URL: imageURL, StatusCode: http.StatusNotFound}
	}
	return s.slide, nil
}

func slideDeck(t *testing.T, n int, host string) *stubFetcher {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1280, 720)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	var page strings.Builder
	page.WriteString("<html><head><title>Deck</title></head><body>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&page, `<img data-src="https://%s/mmbiz_jpg/%d/640">`, host, i)
	}
	page.WriteString("</body></html>")
	return &stubFetcher{html: page.String(), slide: buf.Bytes()}
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Mode: "test", CORSOrigins: []string{"*"}},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestRouter(t *testing.T, f pipeline.Fetcher, cfg *config.Config) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := pipeline.New(f, pipeline.Options{
		Metrics: m,
		Now:     func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	return NewRouter(cfg, Deps{Pipeline: p, Metrics: m, Gatherer: reg, StartTime: time.Now()})
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return resp.Detail
}

func TestProcess_ReturnsPDF(t *testing.T) {
	h := newTestRouter(t, slideDeck(t, 8, "mmbiz.qpic.cn"), testConfig())

	w := post(h, "/api/process", `{"url":"`+articleURL+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="ppt.pdf"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}
	if pc := w.Header().Get("X-Page-Count"); pc != "4" {
		t.Errorf("X-Page-Count = %q, want 4", pc)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestProcess_InvalidBody(t *testing.T) {
	h := newTestRouter(t, slideDeck(t, 8, "mmbiz.qpic.cn"), testConfig())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"url":`},
		{"missing url", `{}`},
		{"not a url", `{"url":"deck"}`},
		{"unsupported scheme", `{"url":"ftp://example.com/deck"}`},
		{"zero min width", `{"url":"` + articleURL + `","filters":{"min_width":0}}`},
		{"negative trim", `{"url":"` + articleURL + `","filters":{"trim_leading":-1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(h, "/api/process", tt.body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422 (body %s)", w.Code, w.Body.String())
			}
			if detail(t, w) == "" {
				t.Error("empty detail")
			}
		})
	}
}

func TestProcess_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		fetcher    func(t *testing.T) *stubFetcher
		body       string
		wantStatus int
		wantDetail string
	}{
		{
			name: "upstream status passed through",
			fetcher: func(t *testing.T) *stubFetcher {
				return &stubFetcher{htmlErr: &fetcher.FetchError{URL: articleURL, StatusCode: http.StatusForbidden}}
			},
			wantStatus: http.StatusForbidden,
			wantDetail: "failed to fetch article",
		},
		{
			name: "transport failure",
			fetcher: func(t *testing.T) *stubFetcher {
				return &stubFetcher{htmlErr: &fetcher.FetchError{URL: articleURL, Err: errors.New("dial tcp: refused")}}
			},
			wantStatus: http.StatusBadGateway,
			wantDetail: "failed to reach article host",
		},
		{
			name: "no image tags",
			fetcher: func(t *testing.T) *stubFetcher {
				return &stubFetcher{html: "<p>nothing</p>"}
			},
			wantStatus: http.StatusNotFound,
			wantDetail: "no image tags found in article",
		},
		{
			name: "disallowed domain",
			fetcher: func(t *testing.T) *stubFetcher {
				return slideDeck(t, 8, "images.example.com")
			},
			wantStatus: http.StatusNotFound,
			wantDetail: "no image URLs left after domain filtering",
		},
		{
			name: "trimmed to nothing",
			fetcher: func(t *testing.T) *stubFetcher {
				return slideDeck(t, 4, "mmbiz.qpic.cn")
			},
			wantStatus: http.StatusNotFound,
			wantDetail: "no image URLs left after edge trimming",
		},
		{
			name: "nothing passes filters",
			fetcher: func(t *testing.T) *stubFetcher {
				return slideDeck(t, 8, "mmbiz.qpic.cn")
			},
			body:       `{"url":"` + articleURL + `","filters":{"min_width":4000}}`,
			wantStatus: http.StatusNotFound,
			wantDetail: "no images passed the quality filters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, tt.fetcher(t), testConfig())
			body := tt.body
			if body == "" {
				body = `{"url":"` + articleURL + `"}`
			}

			w := post(h, "/api/process", body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := detail(t, w); got != tt.wantDetail {
				t.Errorf("detail = %q, want %q", got, tt.wantDetail)
			}
		})
	}
}

// readEvents parses the data lines of an SSE body.
func readEvents(t *testing.T, body []byte) []pipeline.Event {
	t.Helper()
	var events []pipeline.Event
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		var ev pipeline.Event
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); err != nil {
			t.Fatalf("decode event %q: %v", data, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return events
}

func TestProcessStream_Completes(t *testing.T) {
	h := newTestRouter(t, slideDeck(t, 8, "mmbiz.qpic.cn"), testConfig())

	w := post(h, "/api/process-stream", `{"url":"`+articleURL+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := readEvents(t, w.Body.Bytes())
	if len(events) < 2 {
		t.Fatalf("got %d events", len(events))
	}
	prev := -1
	for _, ev := range events {
		if ev.Progress < prev {
			t.Errorf("progress went backwards: %d after %d", ev.Progress, prev)
		}
		prev = ev.Progress
	}

	last := events[len(events)-1]
	if last.Stage != pipeline.StageCompleted {
		t.Fatalf("last stage = %s, want completed", last.Stage)
	}
	pdf, err := base64.StdEncoding.DecodeString(last.PDFBase64)
	if err != nil {
		t.Fatalf("decode pdf: %v", err)
	}

	sync := post(h, "/api/process", `{"url":"`+articleURL+`"}`)
	if !bytes.Equal(pdf, sync.Body.Bytes()) {
		t.Error("streamed PDF differs from /api/process output")
	}
}

func TestProcessStream_ErrorEvent(t *testing.T) {
	h := newTestRouter(t, slideDeck(t, 8, "images.example.com"), testConfig())

	w := post(h, "/api/process-stream", `{"url":"`+articleURL+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	events := readEvents(t, w.Body.Bytes())
	var errs int
	for _, ev := range events {
		if ev.Stage == pipeline.StageError {
			errs++
		}
	}
	if errs != 1 {
		t.Fatalf("error events = %d, want 1", errs)
	}
	last := events[len(events)-1]
	if last.ErrorKind != pipeline.KindFilteredOut {
		t.Errorf("error_kind = %q, want %q", last.ErrorKind, pipeline.KindFilteredOut)
	}
}

func TestProcessStream_InvalidBody(t *testing.T) {
	h := newTestRouter(t, slideDeck(t, 8, "mmbiz.qpic.cn"), testConfig())

	w := post(h, "/api/process-stream", `{"url":""}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); strings.HasPrefix(ct, "text/event-stream") {
		t.Error("stream opened for an invalid request")
	}
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, &stubFetcher{}, testConfig())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, slideDeck(t, 8, "mmbiz.qpic.cn"), testConfig())
	post(h, "/api/process", `{"url":"`+articleURL+`"}`)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`slidepdf_pipeline_runs_total{mode="sync",outcome="completed"} 1`,
		`slidepdf_images_total{result="kept"} 4`,
		`http_requests_total{method="POST",path="/api/process",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	h := newTestRouter(t, &stubFetcher{}, cfg)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, &stubFetcher{}, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/process", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	h := newTestRouter(t, &stubFetcher{}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>slidepdf</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Static.Dir = dir
	h := newTestRouter(t, &stubFetcher{}, cfg)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "slidepdf") {
		t.Errorf("GET / = %d %q, want index.html", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "<h1>") {
		t.Errorf("API route shadowed by static files: %d %q", w.Code, w.Body.String())
	}
}
