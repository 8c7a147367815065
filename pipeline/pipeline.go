// Package pipeline turns an article URL into a PDF of its slide images.
//
// The step sequence is fixed:
//
//	fetch HTML → extract <img> URLs → domain filter → edge trim →
//	download + geometry filter → build PDF
//
// Process runs it synchronously; Stream runs the same steps and yields a
// progress Event at every stage boundary.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/use-agent/slidepdf/extractor"
	"github.com/use-agent/slidepdf/filter"
	"github.com/use-agent/slidepdf/metrics"
	"github.com/use-agent/slidepdf/pdf"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultFilename is the attachment name of every generated PDF.
const DefaultFilename = "ppt.pdf"

// Fetcher is what the pipeline needs from the network.
type Fetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
	DownloadImage(ctx context.Context, imageURL, referer string) ([]byte, error)
}

// Request is one article to convert.
type Request struct {
	URL     string
	Filters filter.Settings
}

// Result is a successfully generated PDF.
type Result struct {
	PDF       []byte
	Filename  string
	Title     string
	PageCount int

	TotalFound        int
	AfterDomainFilter int
	AfterTrim         int

	// SourceURLs lists the image behind each page, in page order.
	SourceURLs []string
}

// Options tunes a Pipeline.
type Options struct {
	// Concurrency is the number of parallel image downloads. Default 4.
	Concurrency int

	// RatePerSecond paces image downloads within a run; 0 disables pacing.
	RatePerSecond float64
	Burst         int

	Metrics *metrics.Metrics

	// Now stamps the PDF creation date. Default time.Now.
	Now func() time.Time
}

// Pipeline is safe for concurrent use; runs share no mutable state.
type Pipeline struct {
	fetcher       Fetcher
	concurrency   int
	ratePerSecond float64
	burst         int
	metrics       *metrics.Metrics
	now           func() time.Time
}

// New creates a Pipeline.
func New(f Fetcher, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		fetcher:       f,
		concurrency:   opts.Concurrency,
		ratePerSecond: opts.RatePerSecond,
		burst:         opts.Burst,
		metrics:       opts.Metrics,
		now:           opts.Now,
	}
}

// errStopped means the Stream consumer stopped iterating.
var errStopped = errors.New("pipeline: consumer stopped")

// Process runs the pipeline to completion. Failures are *Error values.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := p.run(ctx, req, func(Event) bool { return true })
	p.observe("sync", err, start)
	return res, err
}

// Stream runs the pipeline and yields progress events. The sequence ends
// with exactly one completed or error event, unless the consumer stops
// early, in which case outstanding downloads are cancelled.
func (p *Pipeline) Stream(ctx context.Context, req Request) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		start := time.Now()
		last := progressFetching
		emit := func(ev Event) bool {
			last = ev.Progress
			return yield(ev)
		}

		res, err := p.run(ctx, req, emit)
		p.observe("stream", err, start)

		if errors.Is(err, errStopped) {
			return
		}
		if err != nil {
			yield(errorEvent(AsError(err), last))
			return
		}
		yield(Event{
			Stage:      StageCompleted,
			Progress:   progressCompleted,
			Message:    "PDF ready",
			ImageCount: res.PageCount,
			PageCount:  res.PageCount,
			Filename:   res.Filename,
			PDFBase64:  base64.StdEncoding.EncodeToString(res.PDF),
		})
	}
}

func (p *Pipeline) run(ctx context.Context, req Request, emit func(Event) bool) (*Result, error) {
	log := slog.With("url", req.URL)
	settings := req.Filters

	if !emit(Event{Stage: StageFetchingHTML, Progress: progressFetching, Message: "fetching article"}) {
		return nil, errStopped
	}
	rawHTML, err := p.fetcher.FetchHTML(ctx, req.URL)
	if err != nil {
		log.Warn("article fetch failed", "error", err)
		return nil, fetchFailed(err)
	}

	if !emit(Event{Stage: StageExtractingURLs, Progress: progressExtracting, Message: "extracting image URLs"}) {
		return nil, errStopped
	}
	candidates := extractor.ExtractImageURLs(rawHTML)
	if len(candidates) == 0 {
		return nil, newError(KindNoImages, "no image tags found in article", nil)
	}

	if !emit(Event{
		Stage:      StageFilteringDomains,
		Progress:   progressFiltering,
		Message:    "filtering image domains",
		TotalFound: len(candidates),
	}) {
		return nil, errStopped
	}
	allowed := filter.FilterDomains(candidates, settings.AllowedDomains)
	if len(allowed) == 0 {
		return nil, newError(KindFilteredOut, "no image URLs left after domain filtering", nil)
	}

	if !emit(Event{
		Stage:             StageTrimmingEdges,
		Progress:          progressTrimming,
		Message:           "trimming leading and trailing images",
		AfterDomainFilter: len(allowed),
	}) {
		return nil, errStopped
	}
	trimmed := filter.ApplyEdgeTrimming(allowed, settings.TrimLeading, settings.TrimTrailing)
	if len(trimmed) == 0 {
		return nil, newError(KindTrimmedOut, "no image URLs left after edge trimming", nil)
	}

	if !emit(Event{
		Stage:     StageDownloadingImages,
		Progress:  progressDownloadStart,
		Message:   "downloading images",
		AfterTrim: len(trimmed),
		Total:     len(trimmed),
	}) {
		return nil, errStopped
	}
	images, sources, err := p.download(ctx, req.URL, trimmed, settings, emit)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, newError(KindNoValidImages, "no images passed the quality filters", nil)
	}
	log.Info("images selected",
		"found", len(candidates),
		"after_domain_filter", len(allowed),
		"after_trim", len(trimmed),
		"kept", len(images),
	)

	if !emit(Event{
		Stage:      StageGeneratingPDF,
		Progress:   progressDownloadEnd,
		Message:    "generating PDF",
		ImageCount: len(images),
	}) {
		return nil, errStopped
	}
	title := extractor.ArticleTitle(rawHTML, req.URL)
	doc, err := pdf.Build(images, pdf.Options{Title: title, CreatedAt: p.now()})
	if err != nil {
		return nil, newError(KindPDFFailed, "failed to generate PDF", err)
	}
	p.metrics.ObservePages(len(images))

	if !emit(Event{
		Stage:      StageGeneratingPDF,
		Progress:   progressRendered,
		Message:    "PDF generated",
		ImageCount: len(images),
	}) {
		return nil, errStopped
	}

	return &Result{
		PDF:               doc,
		Filename:          DefaultFilename,
		Title:             title,
		PageCount:         len(images),
		TotalFound:        len(candidates),
		AfterDomainFilter: len(allowed),
		AfterTrim:         len(trimmed),
		SourceURLs:        sources,
	}, nil
}

type downloadOutcome struct {
	index int
	image *filter.Image
}

// download fetches and filters every URL with bounded concurrency. The
// returned images keep the order of urls regardless of completion order.
// Failed and rejected images are dropped silently.
func (p *Pipeline) download(ctx context.Context, referer string, urls []string, settings filter.Settings, emit func(Event) bool) ([]filter.Image, []string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if p.ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.ratePerSecond), p.burst)
	}

	outcomes := make(chan downloadOutcome, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	go func() {
		for i, u := range urls {
			g.Go(func() error {
				outcomes <- downloadOutcome{index: i, image: p.fetchImage(gctx, limiter, u, referer, settings)}
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	slots := make([]*filter.Image, len(urls))
	done, kept := 0, 0
	for o := range outcomes {
		done++
		if o.image != nil {
			slots[o.index] = o.image
			kept++
		}
		if !emit(Event{
			Stage:    StageDownloadingImages,
			Progress: downloadProgress(done, len(urls)),
			Current:  done,
			Total:    len(urls),
			Kept:     kept,
		}) {
			cancel()
			for range outcomes {
			}
			return nil, nil, errStopped
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	images := make([]filter.Image, 0, kept)
	sources := make([]string, 0, kept)
	for i, img := range slots {
		if img != nil {
			images = append(images, *img)
			sources = append(sources, urls[i])
		}
	}
	return images, sources, nil
}

func (p *Pipeline) fetchImage(ctx context.Context, limiter *rate.Limiter, imageURL, referer string, settings filter.Settings) *filter.Image {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
	}
	if ctx.Err() != nil {
		return nil
	}

	data, err := p.fetcher.DownloadImage(ctx, imageURL, referer)
	if err != nil {
		slog.Debug("image download failed, skipping", "image", imageURL, "error", err)
		p.metrics.ObserveImage(metrics.ImageFailed)
		return nil
	}

	img, err := filter.Inspect(data)
	if err != nil {
		slog.Debug("image undecodable, skipping", "image", imageURL, "error", err)
		p.metrics.ObserveImage(metrics.ImageRejected)
		return nil
	}
	if !filter.Passes(img, settings) {
		slog.Debug("image rejected by filters",
			"image", imageURL,
			"width", img.Width,
			"height", img.Height,
		)
		p.metrics.ObserveImage(metrics.ImageRejected)
		return nil
	}
	if err := filter.Verify(img); err != nil {
		slog.Debug("image data corrupt, skipping", "image", imageURL, "format", img.Format, "error", err)
		p.metrics.ObserveImage(metrics.ImageRejected)
		return nil
	}

	p.metrics.ObserveImage(metrics.ImageKept)
	return &img
}

func (p *Pipeline) observe(mode string, err error, start time.Time) {
	outcome := string(StageCompleted)
	switch {
	case errors.Is(err, errStopped):
		outcome = "stopped"
	case err != nil:
		outcome = string(AsError(err).Kind)
	}
	p.metrics.ObserveRun(mode, outcome, time.Since(start))
}
